package dom

import (
	"fmt"
	"net/url"

	"github.com/ppiankov/coursepilot/internal/model"
)

// Selectors locate records of one kind in a rendered LMS page.
// Host markup changes are absorbed here and nowhere else.
type Selectors struct {
	Container string // Element(s) that exist once the list has rendered
	Record    string // One record, searched inside Container
	Name      string // Record title, searched inside Record
	Link      string
	Date      string
	Body      string
	Status    string
	Code      string
}

// DefaultSelectors match the Brightspace Daylight experience
var DefaultSelectors = map[model.Kind]Selectors{
	model.KindCourses: {
		Container: "d2l-my-courses, .d2l-my-courses-widget, #courses-list",
		Record:    `a[href*="/d2l/home/"]`,
		Code:      ".d2l-card-code, .course-code",
	},
	model.KindGrades: {
		Container: "table.d2l-table, table.d2l-grid",
		Record:    "tr:has(td)",
		Name:      "th label, th, td.d2l-grades-name",
	},
	model.KindAssignments: {
		Container: "table.d2l-table, table.d2l-grid",
		Record:    `tr:has(a[href*="folder_submit_files"]), tr:has(a[href*="db="])`,
		Name:      `a[href*="folder_submit_files"], a[href*="db="]`,
		Link:      `a[href*="folder_submit_files"], a[href*="db="]`,
		Date:      ".d2l-dates-text, .ds_b, .d2l-body-small",
		Status:    ".d2l-status, .dco_c, td:nth-child(2)",
	},
	model.KindAnnouncements: {
		Container: ".d2l-datalist, #NewsItemsList, d2l-list",
		Record:    ".d2l-datalist-item, .d2l-newsitem, d2l-list-item",
		Name:      "h2, h3, .d2l-heading, .d2l-newsitem-title",
		Date:      ".d2l-fuzzydate, .d2l-dates-text, .d2l-newsitem-date",
		Body:      ".d2l-htmlblock, .d2l-htmlblock-untrusted, d2l-html-block, .d2l-newsitem-body",
	},
}

// PageURL returns the page listing kind for course (course is ignored for KindCourses)
func PageURL(baseURL string, kind model.Kind, course model.Course) (string, error) {
	if kind == model.KindCourses {
		return baseURL + "/d2l/home", nil
	}
	if course.ID == "" {
		return "", fmt.Errorf("course %q has no identifier to build a page URL", course.Name)
	}

	ou := url.QueryEscape(course.ID)
	switch kind {
	case model.KindGrades:
		return baseURL + "/d2l/lms/grades/my_grades/main.d2l?ou=" + ou, nil
	case model.KindAssignments:
		return baseURL + "/d2l/lms/dropbox/user/folders_list.d2l?ou=" + ou, nil
	case model.KindAnnouncements:
		return baseURL + "/d2l/lms/news/main.d2l?ou=" + ou, nil
	}
	return "", fmt.Errorf("no page for kind %q", kind)
}
