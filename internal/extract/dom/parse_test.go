package dom

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/coursepilot/internal/model"
)

func mustDoc(t *testing.T, markup string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	require.NoError(t, err)
	return doc
}

func TestParseCourses(t *testing.T) {
	doc := mustDoc(t, `<d2l-my-courses>
		<a href="/d2l/home/7">CSI2532[A] Bases de données</a>
		<a href="/d2l/home/7">duplicate link</a>
		<a href="/d2l/home/9" title="MAT2777 Probabilités"><span class="d2l-card-code">MAT2777</span></a>
		<a href="/d2l/lms/news/main.d2l?ou=7">Not a course link</a>
	</d2l-my-courses>`)

	p := parseCourses(doc, DefaultSelectors[model.KindCourses], "https://lms.example.edu")

	assert.Equal(t, 1, p.containers)
	require.Len(t, p.records, 2)
	assert.Equal(t, "7", p.records[0].ID)
	assert.Equal(t, "CSI2532", p.records[0].Code)
	assert.Equal(t, "https://lms.example.edu/d2l/home/7", *p.records[0].Homepage)
	assert.Nil(t, p.records[0].IsActive, "the page does not say whether a course is active")

	assert.Equal(t, "9", p.records[1].ID)
	assert.Equal(t, "MAT2777", p.records[1].Code)
}

func TestParseAssignments(t *testing.T) {
	doc := mustDoc(t, `<table class="d2l-table">
		<tr><th>Assignment</th><th>Status</th></tr>
		<tr>
			<td><a href="/d2l/lms/dropbox/user/folder_submit_files.d2l?db=11&ou=7">Devoir 3</a>
				<div class="d2l-dates-text">Due on Oct 25, 2025 11:59 PM</div></td>
			<td><span class="d2l-status">Not Submitted</span></td>
		</tr>
		<tr>
			<td><a href="/d2l/lms/dropbox/user/folder_submit_files.d2l?db=12&ou=7">Projet</a></td>
			<td>—</td>
		</tr>
	</table>`)

	p := parseAssignments(doc, DefaultSelectors[model.KindAssignments], "https://lms.example.edu")

	require.Len(t, p.records, 2)
	first := p.records[0]
	assert.Equal(t, "Devoir 3", first.Name)
	require.NotNil(t, first.DueDate)
	assert.Equal(t, 2025, first.DueDate.Year())
	assert.Equal(t, 25, first.DueDate.Day())
	require.NotNil(t, first.Status)
	assert.Equal(t, "Not Submitted", *first.Status)
	assert.Contains(t, *first.Link, "db=11")

	second := p.records[1]
	assert.Nil(t, second.DueDate, "missing date is null")
	assert.Nil(t, second.Status, "unknown status is null")
}

func TestParseAnnouncements(t *testing.T) {
	doc := mustDoc(t, `<div class="d2l-datalist">
		<div class="d2l-datalist-item">
			<h2>Midterm Results Posted</h2>
			<abbr class="d2l-fuzzydate" title="2025-10-15T14:00:00Z">2 days ago</abbr>
			<div class="d2l-htmlblock"><p>Results are <b>posted</b>.</p></div>
		</div>
		<div class="d2l-datalist-item">
			<h2>Welcome</h2>
			<span class="d2l-dates-text">Posted Sep 3, 2025</span>
		</div>
		<div class="d2l-datalist-item"><p>no title, skipped</p></div>
	</div>`)

	p := parseAnnouncements(doc, DefaultSelectors[model.KindAnnouncements])

	require.Len(t, p.records, 2)
	assert.Equal(t, "Midterm Results Posted", p.records[0].Title)
	assert.Equal(t, "Results are posted.", *p.records[0].Body)
	require.NotNil(t, p.records[0].PublishDate)
	assert.Equal(t, 15, p.records[0].PublishDate.Day())

	assert.Nil(t, p.records[1].Body)
	require.NotNil(t, p.records[1].PublishDate)
	assert.Equal(t, 9, int(p.records[1].PublishDate.Month()))
}

func TestParseGrades_ContainerWithoutRecords(t *testing.T) {
	doc := mustDoc(t, `<table class="d2l-table"><tr><th>Grade Item</th><th>Points</th></tr></table>`)

	p := parseGrades(doc, DefaultSelectors[model.KindGrades])

	assert.Equal(t, 1, p.containers)
	assert.Empty(t, p.records)
}

func TestParseDate(t *testing.T) {
	for _, in := range []string{"2025-10-15", "Oct 15, 2025", "October 15, 2025 3:04 PM", "2025-10-15T10:00:00Z"} {
		got := parseDate(in)
		require.NotNil(t, got, in)
		assert.Equal(t, 15, got.Day(), in)
	}
	assert.Nil(t, parseDate("sometime soon"))
	assert.Nil(t, parseDate(""))
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"9.5", 9.5},
		{"9,5", 9.5},
		{" 12,5 ", 12.5},
		{"1,000.5", 1000.5},
		{"1,000,000.25", 1000000.25},
		{"1.000,5", 1000.5},
		{"85", 85},
	}
	for _, tt := range tests {
		got := parseNumber(tt.in)
		if assert.NotNil(t, got, tt.in) {
			assert.Equal(t, tt.want, *got, tt.in)
		}
	}

	assert.Nil(t, parseNumber("n/a"))
	assert.Nil(t, parseNumber(""))
	assert.Nil(t, parseNumber("1,000,5"))
}
