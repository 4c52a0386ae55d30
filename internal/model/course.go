package model

import (
	"fmt"
	"strings"
	"time"
)

// Kind names one of the extracted data categories
type Kind string

const (
	KindCourses       Kind = "courses"
	KindGrades        Kind = "grades"
	KindAssignments   Kind = "assignments"
	KindAnnouncements Kind = "announcements"
)

// AllKinds lists every kind in extraction order (courses first, the rest depend on it)
var AllKinds = []Kind{KindCourses, KindGrades, KindAssignments, KindAnnouncements}

// ParseKind converts a user-supplied string into a Kind
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllKinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown kind %q (supported: courses, grades, assignments, announcements)", s)
}

// PerCourse reports whether the kind is fetched once per course
func (k Kind) PerCourse() bool {
	return k != KindCourses
}

// Course is one enrollment as seen by the student
type Course struct {
	ID        string     `json:"identifier"` // Opaque source id (org unit id)
	Name      string     `json:"name"`       // Display name, e.g. "CSI2532[A] Databases"
	Code      string     `json:"code"`       // Short code
	Homepage  *string    `json:"homepage"`   // Link to the course home page
	IsActive  *bool      `json:"isActive"`   // Source-declared activity flag
	StartDate *time.Time `json:"startDate"`
	EndDate   *time.Time `json:"endDate"`
}

// Key returns the identity of the course across batches.
// The identifier wins when present because codes are not unique across sections.
func (c Course) Key() string {
	if c.ID != "" {
		return "id:" + c.ID
	}
	return "code:" + strings.ToUpper(c.Code)
}

// FriendlyCode returns the catalogue code shown to students.
// Brightspace names look like "CSI2532[A] Bases de données", the part before '[' is the code.
func (c Course) FriendlyCode() string {
	if i := strings.Index(c.Name, "["); i > 0 {
		return strings.TrimSpace(c.Name[:i])
	}
	if c.Code != "" {
		return c.Code
	}
	return c.Name
}

// Ref returns the course reference embedded in child records
func (c Course) Ref() CourseRef {
	return CourseRef{CourseID: c.ID, CourseName: c.Name, CourseCode: c.Code}
}

// CourseRef links a child record set back to its course
type CourseRef struct {
	CourseID   string `json:"courseIdentifier"`
	CourseName string `json:"courseName"`
	CourseCode string `json:"courseCode"`
}

// Grade is one grade item of a course
type Grade struct {
	Name              string     `json:"name"`
	DisplayedGrade    *string    `json:"displayedGrade"`
	PointsNumerator   *float64   `json:"pointsNumerator"`
	PointsDenominator *float64   `json:"pointsDenominator"`
	LastModified      *time.Time `json:"lastModified"`
}

// Assignment is one deadline-bearing work item
type Assignment struct {
	Name    string     `json:"name"`
	DueDate *time.Time `json:"dueDate"`
	Status  *string    `json:"status"`
	Link    *string    `json:"link"`
}

// Announcement is one course news item
type Announcement struct {
	Title       string     `json:"title"`
	Body        *string    `json:"body"`
	PublishDate *time.Time `json:"publishDate"`
}

// ItemSet holds the records of one kind for one course.
// An empty Items slice means "attempted, nothing found"; Error is set when the course leg failed.
type ItemSet[T any] struct {
	CourseRef
	Items    []T      `json:"items"`
	Strategy Strategy `json:"strategy,omitempty"`
	Error    string   `json:"error,omitempty"`
}

// Failed reports whether the course leg produced an error instead of items
func (s ItemSet[T]) Failed() bool {
	return s.Error != ""
}

type (
	GradeSet        = ItemSet[Grade]
	AssignmentSet   = ItemSet[Assignment]
	AnnouncementSet = ItemSet[Announcement]
)

// Helpers for optional fields. Absent source fields stay nil, never "".

// StringPtr returns nil for blank strings
func StringPtr(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// BoolPtr returns a pointer to b
func BoolPtr(b bool) *bool {
	return &b
}

// FloatPtr returns a pointer to f
func FloatPtr(f float64) *float64 {
	return &f
}

// TimePtr parses an ISO-8601 timestamp, returning nil when absent or unparseable
func TimePtr(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}
