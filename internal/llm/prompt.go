package llm

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ppiankov/coursepilot/internal/model"
	"github.com/ppiankov/coursepilot/internal/term"
)

// Context limits keep the prompt small enough for fast models
const (
	maxPromptCourses       = 15
	maxPromptGradeSets     = 20
	maxPromptAssignSets    = 15
	maxPromptAssignItems   = 5
	maxPromptAnnouncements = 10
	maxAnnouncementBody    = 200

	// HistoryTurns is how many recent turns are replayed to the model
	HistoryTurns = 5
)

const promptRules = `You are an AI assistant for university students using Brightspace.
You help students with their courses, grades, assignments, and announcements.

CRITICAL FILTERING RULES:
- When the user asks about a SPECIFIC course (e.g., "CSI2532", "MAT2777"), show ONLY that course's data
- When the user asks for "latest" or "recent", show ONLY the most recent 1-3 items
- When the user asks "what's due", show ONLY upcoming items sorted by date
- NEVER dump all data unless explicitly asked for "all" or "everything"
- Use the friendly course codes (CSI2532, MAT2777), not the internal codes
- If the data below does not contain the answer, say so instead of guessing
`

const promptExamples = `
RESPONSE EXAMPLES:
User: "Show me only CSI2532 grades"
You: "Here are your CSI2532 grades:
• Devoir 1: A+
• Mi-Session: A"

User: "What's the latest announcement?"
You: "The latest announcement is from MAT2777 on 2025-10-15: 'Midterm Results Posted'"

User: "When is MAT2777 homework due?"
You: "MAT2777 assignments:
• Devoir 3: Due October 25, 2025
• Devoir 4: Due November 8, 2025"

REMEMBER: Filter data precisely based on what the user asks!
`

// BuildSystemPrompt renders the course context into the system prompt
func BuildSystemPrompt(snap term.Snapshot, now time.Time) string {
	codes := codeIndex(snap.Courses)

	var b strings.Builder
	b.WriteString(promptRules)
	fmt.Fprintf(&b, "\nToday is %s.\n", now.Format("Monday, 2006-01-02"))

	if len(snap.Courses) > 0 {
		fmt.Fprintf(&b, "\n## Student's Courses (%d total):\n", len(snap.Courses))
		n := 0
		for _, c := range snap.Courses {
			if c.IsActive != nil && !*c.IsActive {
				continue
			}
			if n == maxPromptCourses {
				break
			}
			n++
			fmt.Fprintf(&b, "- %s (Internal: %s, OrgID: %s): %s\n", c.FriendlyCode(), orNA(c.Code), orNA(c.ID), c.Name)
		}
	}

	if sets := nonEmpty(snap.Grades); len(sets) > 0 {
		b.WriteString("\n## Grades Data:\n")
		for i, set := range sets {
			if i == maxPromptGradeSets {
				break
			}
			fmt.Fprintf(&b, "\n**%s** (Internal: %s):\n", codes.lookup(set.CourseRef), orNA(set.CourseCode))
			for _, g := range set.Items {
				line := fmt.Sprintf("  - %s: %s", g.Name, orNA(deref(g.DisplayedGrade)))
				if g.PointsNumerator != nil && g.PointsDenominator != nil {
					line += fmt.Sprintf(" (%s/%s)", formatPoints(*g.PointsNumerator), formatPoints(*g.PointsDenominator))
				}
				b.WriteString(line + "\n")
			}
		}
	}

	if sets := nonEmpty(snap.Assignments); len(sets) > 0 {
		b.WriteString("\n## Assignments & Due Dates:\n")
		for i, set := range sets {
			if i == maxPromptAssignSets {
				break
			}
			fmt.Fprintf(&b, "\n**%s**:\n", codes.lookup(set.CourseRef))
			for j, a := range set.Items {
				if j == maxPromptAssignItems {
					break
				}
				line := "  - " + a.Name
				if a.DueDate != nil {
					line += " | Due: " + a.DueDate.Format("2006-01-02")
				}
				if a.Status != nil {
					line += " | Status: " + *a.Status
				}
				b.WriteString(line + "\n")
			}
		}
	}

	if news := latestAnnouncements(snap.Announcements, codes, maxPromptAnnouncements); len(news) > 0 {
		b.WriteString("\n## Recent Announcements:\n")
		for _, a := range news {
			date := "No date"
			if a.PublishDate != nil {
				date = a.PublishDate.Format("2006-01-02")
			}
			fmt.Fprintf(&b, "\n%s | %s:\n  Title: %s\n", a.course, date, a.Title)
			if body := truncate(deref(a.Body), maxAnnouncementBody); body != "" {
				fmt.Fprintf(&b, "  %s\n", body)
			}
		}
	}

	b.WriteString(promptExamples)
	return b.String()
}

// Temperature picks a sampling temperature from the wording of the question:
// factual lookups are precise, advice is looser.
func Temperature(query string) float32 {
	q := strings.ToLower(query)
	switch {
	case containsAny(q, "when", "what", "which", "latest", "recent", "due", "grade", "announcement"):
		return 0.3
	case containsAny(q, "should", "recommend", "suggest", "advice", "help", "how"):
		return 0.7
	}
	return 0.5
}

// HistoryMessages converts the newest n turns into model messages.
// Failure explanations are local UI text and are not replayed.
func HistoryMessages(turns []model.Turn, n int) []Message {
	kept := make([]Message, 0, len(turns))
	for _, t := range turns {
		if t.Failed || strings.TrimSpace(t.Content) == "" {
			continue
		}
		kept = append(kept, Message{Role: string(t.Role), Content: t.Content})
	}
	if n >= 0 && len(kept) > n {
		kept = kept[len(kept)-n:]
	}
	return kept
}

type courseCodes map[string]string

func codeIndex(courses []model.Course) courseCodes {
	idx := make(courseCodes, len(courses))
	for _, c := range courses {
		if c.ID != "" {
			idx[c.ID] = c.FriendlyCode()
		}
	}
	return idx
}

func (idx courseCodes) lookup(ref model.CourseRef) string {
	if code, ok := idx[ref.CourseID]; ok && code != "" {
		return code
	}
	code := model.Course{Name: ref.CourseName, Code: ref.CourseCode}.FriendlyCode()
	return orNA(code)
}

type datedAnnouncement struct {
	model.Announcement
	course string
}

// latestAnnouncements flattens all sets and returns the newest n, undated last
func latestAnnouncements(sets []model.AnnouncementSet, codes courseCodes, n int) []datedAnnouncement {
	var all []datedAnnouncement
	for _, set := range sets {
		code := codes.lookup(set.CourseRef)
		for _, a := range set.Items {
			all = append(all, datedAnnouncement{Announcement: a, course: code})
		}
	}
	sort.SliceStable(all, func(i, j int) bool {
		a, b := all[i].PublishDate, all[j].PublishDate
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		}
		return a.After(*b)
	})
	if len(all) > n {
		all = all[:n]
	}
	return all
}

func nonEmpty[T any](sets []model.ItemSet[T]) []model.ItemSet[T] {
	out := make([]model.ItemSet[T], 0, len(sets))
	for _, s := range sets {
		if len(s.Items) > 0 {
			out = append(out, s)
		}
	}
	return out
}

func containsAny(s string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func formatPoints(f float64) string {
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.2f", f), "0"), ".")
}

func truncate(s string, max int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= max {
		return string(r)
	}
	return string(r[:max]) + "..."
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}
