package dom

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/ppiankov/coursepilot/internal/model"
	"github.com/ppiankov/coursepilot/internal/util"
)

// parsed is what one look at a page yields: how many containers rendered, and the records found in them
type parsed[T any] struct {
	containers int
	records    []T
}

var (
	homeIDExpr  = regexp.MustCompile(`/d2l/home/(\d+)`)
	pointsExpr  = regexp.MustCompile(`^\s*(-?[\d.,]+)\s*/\s*([\d.,]+)\s*$`)
	dueExpr     = regexp.MustCompile(`(?i)due\s*(?:on|date)?\s*:?\s*(.+)$`)
	statusWords = []string{"not submitted", "submitted", "feedback", "completed", "late", "missing", "graded"}
)

// dateLayouts covers the formats Brightspace renders in English and French locales
var dateLayouts = []string{
	time.RFC3339,
	"January 2, 2006 3:04 PM",
	"Jan 2, 2006 3:04 PM",
	"January 2, 2006",
	"Jan 2, 2006",
	"2006-01-02 15:04",
	"2006-01-02",
	"2 January 2006 15:04",
	"2 Jan 2006",
}

func text(s *goquery.Selection) string {
	return util.CollapseSpace(s.Text())
}

func firstText(s *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	return text(s.Find(selector).First())
}

func parseCourses(doc *goquery.Document, sel Selectors, baseURL string) parsed[model.Course] {
	containers := doc.Find(sel.Container)
	out := parsed[model.Course]{containers: containers.Length(), records: []model.Course{}}
	seen := make(map[string]struct{})

	containers.Find(sel.Record).Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		m := homeIDExpr.FindStringSubmatch(href)
		if m == nil {
			return
		}
		id := m[1]
		if _, dup := seen[id]; dup {
			return
		}

		name := text(a)
		if title, ok := a.Attr("title"); ok && name == "" {
			name = util.CollapseSpace(title)
		}
		if name == "" {
			return
		}
		seen[id] = struct{}{}

		code := firstText(a, sel.Code)
		if code == "" {
			code = model.Course{Name: name}.FriendlyCode()
		}

		out.records = append(out.records, model.Course{
			ID:       id,
			Name:     name,
			Code:     code,
			Homepage: model.StringPtr(absolute(baseURL, href)),
		})
	})
	return out
}

func parseGrades(doc *goquery.Document, sel Selectors) parsed[model.Grade] {
	containers := doc.Find(sel.Container)
	out := parsed[model.Grade]{containers: containers.Length(), records: []model.Grade{}}

	containers.Find(sel.Record).Each(func(_ int, row *goquery.Selection) {
		name := firstText(row, sel.Name)
		cells := row.Find("td")
		if name == "" {
			name = text(cells.First())
			cells = cells.Slice(1, cells.Length())
		}
		if name == "" {
			return
		}

		g := model.Grade{Name: name}
		cells.Each(func(_ int, cell *goquery.Selection) {
			value := text(cell)
			if value == "" {
				return
			}
			if m := pointsExpr.FindStringSubmatch(value); m != nil {
				g.PointsNumerator = parseNumber(m[1])
				g.PointsDenominator = parseNumber(m[2])
				return
			}
			g.DisplayedGrade = model.StringPtr(value)
		})
		out.records = append(out.records, g)
	})
	return out
}

func parseAssignments(doc *goquery.Document, sel Selectors, baseURL string) parsed[model.Assignment] {
	containers := doc.Find(sel.Container)
	out := parsed[model.Assignment]{containers: containers.Length(), records: []model.Assignment{}}

	containers.Find(sel.Record).Each(func(_ int, row *goquery.Selection) {
		link := row.Find(sel.Link).First()
		name := text(link)
		if name == "" {
			return
		}

		a := model.Assignment{Name: name}
		if href, ok := link.Attr("href"); ok {
			a.Link = model.StringPtr(absolute(baseURL, href))
		}

		row.Find(sel.Date).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			a.DueDate = parseDue(text(s))
			return a.DueDate == nil
		})
		a.Status = findStatus(row, sel.Status)
		out.records = append(out.records, a)
	})
	return out
}

func parseAnnouncements(doc *goquery.Document, sel Selectors) parsed[model.Announcement] {
	containers := doc.Find(sel.Container)
	out := parsed[model.Announcement]{containers: containers.Length(), records: []model.Announcement{}}

	containers.Find(sel.Record).Each(func(_ int, item *goquery.Selection) {
		title := firstText(item, sel.Name)
		if title == "" {
			return
		}

		a := model.Announcement{
			Title: title,
			Body:  model.StringPtr(firstText(item, sel.Body)),
		}
		date := item.Find(sel.Date).First()
		if raw, ok := date.Attr("title"); ok {
			a.PublishDate = parseDate(raw)
		}
		if a.PublishDate == nil {
			a.PublishDate = parseDate(stripPosted(text(date)))
		}
		out.records = append(out.records, a)
	})
	return out
}

func findStatus(row *goquery.Selection, selector string) *string {
	var status *string
	row.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		value := text(s)
		lower := strings.ToLower(value)
		for _, word := range statusWords {
			if strings.Contains(lower, word) {
				status = model.StringPtr(value)
				return false
			}
		}
		return true
	})
	return status
}

func parseDue(s string) *time.Time {
	if m := dueExpr.FindStringSubmatch(s); m != nil {
		s = m[1]
	}
	return parseDate(s)
}

func stripPosted(s string) string {
	for _, prefix := range []string{"Posted", "Publié"} {
		s = strings.TrimSpace(strings.TrimPrefix(s, prefix))
	}
	return s
}

// parseDate tries the known layouts; unknown formats map to nil, never to a guess
func parseDate(s string) *time.Time {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "."))
	if s == "" {
		return nil
	}
	if t := model.TimePtr(s); t != nil {
		return t
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

// parseNumber accepts "9.5", "9,5", "1,000.5" and "1.000,5": when both
// separators appear the last one is the decimal point
func parseNumber(s string) *float64 {
	s = strings.TrimSpace(s)
	comma, dot := strings.LastIndex(s, ","), strings.LastIndex(s, ".")
	switch {
	case comma >= 0 && dot > comma:
		s = strings.ReplaceAll(s, ",", "")
	case comma >= 0 && dot >= 0:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	default:
		s = strings.ReplaceAll(s, ",", ".")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}

func absolute(baseURL, ref string) string {
	base, err := url.Parse(strings.TrimRight(baseURL, "/") + "/")
	if err != nil {
		return ref
	}
	u, err := base.Parse(ref)
	if err != nil {
		return ref
	}
	return u.String()
}
