package llm

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/coursepilot/internal/model"
	"github.com/ppiankov/coursepilot/internal/term"
)

var promptNow = time.Date(2025, 10, 20, 9, 0, 0, 0, time.UTC)

func day(d int) *time.Time {
	t := time.Date(2025, 10, d, 12, 0, 0, 0, time.UTC)
	return &t
}

func sampleSnapshot() term.Snapshot {
	databases := model.Course{ID: "7", Name: "CSI2532[A] Bases de données", Code: "2251_CSI2532_A", IsActive: model.BoolPtr(true)}
	proba := model.Course{ID: "9", Name: "MAT2777 Probabilités", Code: "MAT2777"}
	old := model.Course{ID: "3", Name: "ITI1100 Old", Code: "ITI1100", IsActive: model.BoolPtr(false)}

	return term.Snapshot{
		Courses: []model.Course{databases, proba, old},
		Grades: []model.GradeSet{
			{CourseRef: databases.Ref(), Items: []model.Grade{
				{Name: "Devoir 1", DisplayedGrade: model.StringPtr("A+"), PointsNumerator: model.FloatPtr(9.5), PointsDenominator: model.FloatPtr(10)},
			}},
			{CourseRef: proba.Ref(), Items: []model.Grade{}},
		},
		Assignments: []model.AssignmentSet{
			{CourseRef: proba.Ref(), Items: []model.Assignment{
				{Name: "Devoir 3", DueDate: day(25)},
				{Name: "Devoir 4"},
			}},
		},
		Announcements: []model.AnnouncementSet{
			{CourseRef: proba.Ref(), Items: []model.Announcement{
				{Title: "Welcome", PublishDate: day(1)},
				{Title: "Midterm Results Posted", PublishDate: day(15), Body: model.StringPtr(strings.Repeat("x", 300))},
			}},
			{CourseRef: databases.Ref(), Items: []model.Announcement{
				{Title: "Undated note"},
			}},
		},
	}
}

func TestBuildSystemPrompt(t *testing.T) {
	prompt := BuildSystemPrompt(sampleSnapshot(), promptNow)

	assert.Contains(t, prompt, "Today is Monday, 2025-10-20.")
	assert.Contains(t, prompt, "## Student's Courses (3 total):")
	assert.Contains(t, prompt, "- CSI2532 (Internal: 2251_CSI2532_A, OrgID: 7): CSI2532[A] Bases de données")
	assert.Contains(t, prompt, "- MAT2777 (Internal: MAT2777, OrgID: 9)", "unknown activity counts as active")
	assert.NotContains(t, prompt, "ITI1100 Old", "inactive courses are left out")

	assert.Contains(t, prompt, "**CSI2532** (Internal: 2251_CSI2532_A):\n  - Devoir 1: A+ (9.5/10)")
	assert.NotContains(t, prompt, "**MAT2777** (Internal: MAT2777):\n\n", "empty grade sets are skipped")

	assert.Contains(t, prompt, "  - Devoir 3 | Due: 2025-10-25")
	assert.Contains(t, prompt, "  - Devoir 4\n")

	midterm := strings.Index(prompt, "Midterm Results Posted")
	welcome := strings.Index(prompt, "Title: Welcome")
	undated := strings.Index(prompt, "Undated note")
	require.True(t, midterm > 0 && welcome > 0 && undated > 0)
	assert.Less(t, midterm, welcome, "newest first")
	assert.Less(t, welcome, undated, "undated last")
	assert.Contains(t, prompt, "CSI2532 | No date:")
	assert.Contains(t, prompt, strings.Repeat("x", 200)+"...")
	assert.NotContains(t, prompt, strings.Repeat("x", 201))
}

func TestBuildSystemPrompt_Limits(t *testing.T) {
	var snap term.Snapshot
	for i := 0; i < 25; i++ {
		c := model.Course{ID: fmt.Sprint(i), Name: fmt.Sprintf("C%02d", i)}
		snap.Courses = append(snap.Courses, c)

		items := make([]model.Assignment, 8)
		for j := range items {
			items[j] = model.Assignment{Name: fmt.Sprintf("A%02d-%d", i, j)}
		}
		snap.Assignments = append(snap.Assignments, model.AssignmentSet{CourseRef: c.Ref(), Items: items})

		news := make([]model.Announcement, 1)
		news[0] = model.Announcement{Title: fmt.Sprintf("N%02d", i), PublishDate: day(1 + i)}
		snap.Announcements = append(snap.Announcements, model.AnnouncementSet{CourseRef: c.Ref(), Items: news})
	}

	prompt := BuildSystemPrompt(snap, promptNow)

	assert.Equal(t, 15, strings.Count(prompt, "(Internal: N/A, OrgID:"))
	assert.Contains(t, prompt, "A14-4")
	assert.NotContains(t, prompt, "A14-5", "at most 5 assignments per course")
	assert.NotContains(t, prompt, "A15-0", "at most 15 assignment sets")
	assert.Equal(t, 10, strings.Count(prompt, "  Title: N"))
	assert.Contains(t, prompt, "Title: N24")
	assert.NotContains(t, prompt, "Title: N14", "only the newest 10 announcements")
}

func TestTemperature(t *testing.T) {
	tests := map[string]float32{
		"What's due this week?":          0.3,
		"latest announcement":            0.3,
		"Should I drop MAT2777?":         0.7,
		"Can you suggest a study plan":   0.7,
		"Tell me a joke":                 0.5,
		"WHEN is the CSI2532 final exam": 0.3,
	}
	for query, want := range tests {
		assert.Equal(t, want, Temperature(query), query)
	}
}

func TestHistoryMessages(t *testing.T) {
	turns := []model.Turn{
		{Role: model.RoleUser, Content: "q1"},
		{Role: model.RoleAssistant, Content: "a1"},
		{Role: model.RoleUser, Content: "q2"},
		{Role: model.RoleAssistant, Content: "I couldn't reach the assistant service.", Failed: true},
		{Role: model.RoleUser, Content: "q3"},
		{Role: model.RoleAssistant, Content: "a3"},
		{Role: model.RoleUser, Content: "q4"},
	}

	got := HistoryMessages(turns, HistoryTurns)

	require.Len(t, got, 5)
	assert.Equal(t, Message{Role: "assistant", Content: "a1"}, got[0])
	assert.Equal(t, "q4", got[4].Content)
	for _, m := range got {
		assert.NotContains(t, m.Content, "couldn't reach")
	}
	assert.Empty(t, HistoryMessages(nil, 5))
}
