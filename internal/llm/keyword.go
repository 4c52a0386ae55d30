package llm

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ppiankov/coursepilot/internal/chat"
	"github.com/ppiankov/coursepilot/internal/model"
)

const syncHint = "Run `coursepilot sync` to load your course data."

// KeywordAnswer is the deterministic responder used without a model.
// Checks run in order: courses, grades, assignments, announcements, help.
func KeywordAnswer(req chat.Request, now time.Time) string {
	q := strings.ToLower(req.Query)
	snap := req.Context
	codes := codeIndex(snap.Courses)

	switch {
	case containsAny(q, "course", "class", "what do i have"):
		return answerCourses(snap.Courses)
	case strings.Contains(q, "grade"):
		return answerGrades(snap.Grades, codes)
	case containsAny(q, "assignment", "due"):
		return answerAssignments(snap.Assignments, codes, now)
	case containsAny(q, "announcement", "news"):
		return answerAnnouncements(snap.Announcements, codes)
	case containsAny(q, "help", "what can you do"):
		return helpText
	}

	var b strings.Builder
	fmt.Fprintf(&b, "I received your question: '%s'\n\n", req.Query)
	if n := len(snap.Courses); n > 0 {
		fmt.Fprintf(&b, "I have data for %d courses:\n", n)
		for i, c := range snap.Courses {
			if i == 3 {
				fmt.Fprintf(&b, "• ... and %d more\n", n-3)
				break
			}
			fmt.Fprintf(&b, "• %s\n", c.Name)
		}
		b.WriteString("\n")
	}
	b.WriteString("You can ask me about:\n• Your courses and their details\n• Grades\n• Assignments and due dates\n• Announcements\n")
	return b.String()
}

const helpText = `I'm your Brightspace assistant! Here's what I can help with:

📚 Courses: "What courses do I have?"
📊 Grades: "What are my grades in CSI2532?"
📝 Assignments: "What's due this week?"
📢 Announcements: "Any recent announcements?"

💡 Tip: run ` + "`coursepilot sync`" + ` first so I have your latest data.`

func answerCourses(courses []model.Course) string {
	if len(courses) == 0 {
		return "I don't see any courses loaded yet. " + syncHint
	}
	var b strings.Builder
	fmt.Fprintf(&b, "You have %d courses:\n\n", len(courses))
	for i, c := range courses {
		fmt.Fprintf(&b, "%d. %s\n", i+1, c.Name)
		fmt.Fprintf(&b, "   Code: %s\n", orNA(c.FriendlyCode()))
		if c.Homepage != nil {
			fmt.Fprintf(&b, "   Link: %s\n", *c.Homepage)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func answerGrades(sets []model.GradeSet, codes courseCodes) string {
	sets = nonEmpty(sets)
	if len(sets) == 0 {
		return "I don't have grades data yet. " + syncHint
	}
	var b strings.Builder
	fmt.Fprintf(&b, "I found grades for %d courses:\n", len(sets))
	for _, set := range sets {
		fmt.Fprintf(&b, "\n%s:\n", codes.lookup(set.CourseRef))
		for _, g := range set.Items {
			fmt.Fprintf(&b, "• %s: %s\n", g.Name, orNA(deref(g.DisplayedGrade)))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

type dueItem struct {
	model.Assignment
	course string
}

func answerAssignments(sets []model.AssignmentSet, codes courseCodes, now time.Time) string {
	var upcoming []dueItem
	for _, set := range sets {
		for _, a := range set.Items {
			if a.DueDate != nil && !a.DueDate.Before(now) {
				upcoming = append(upcoming, dueItem{Assignment: a, course: codes.lookup(set.CourseRef)})
			}
		}
	}
	if len(upcoming) == 0 {
		if len(nonEmpty(sets)) == 0 {
			return "I don't have assignment data yet. " + syncHint
		}
		return "Nothing with an upcoming due date. 🎉"
	}

	sort.SliceStable(upcoming, func(i, j int) bool {
		return upcoming[i].DueDate.Before(*upcoming[j].DueDate)
	})
	if len(upcoming) > 10 {
		upcoming = upcoming[:10]
	}

	var b strings.Builder
	b.WriteString("Upcoming assignments:\n\n")
	for _, a := range upcoming {
		fmt.Fprintf(&b, "• %s | %s: Due %s\n", a.course, a.Name, a.DueDate.Format("January 2, 2006"))
	}
	return strings.TrimRight(b.String(), "\n")
}

func answerAnnouncements(sets []model.AnnouncementSet, codes courseCodes) string {
	news := latestAnnouncements(sets, codes, 5)
	if len(news) == 0 {
		return "I don't have any announcements yet. " + syncHint
	}
	var b strings.Builder
	b.WriteString("Latest announcements:\n\n")
	for _, a := range news {
		date := "No date"
		if a.PublishDate != nil {
			date = a.PublishDate.Format("2006-01-02")
		}
		fmt.Fprintf(&b, "• %s | %s: %s\n", a.course, date, a.Title)
	}
	return strings.TrimRight(b.String(), "\n")
}
