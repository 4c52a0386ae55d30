// Package term decides which courses (and their child records) belong to the current term.
package term

import (
	"time"

	"github.com/ppiankov/coursepilot/internal/model"
)

const day = 24 * time.Hour

// Decision explains why a course was kept or dropped
type Decision int

const (
	IncludeActive  Decision = iota // Source says the course is active
	ExcludeEnded                   // Ended before the lookback window
	ExcludeFuture                  // Starts after the lookahead window
	IncludeDefault                 // No conclusive signal
)

// Included reports whether the decision keeps the course
func (d Decision) Included() bool {
	return d == IncludeActive || d == IncludeDefault
}

func (d Decision) String() string {
	switch d {
	case IncludeActive:
		return "active"
	case ExcludeEnded:
		return "ended"
	case ExcludeFuture:
		return "future"
	default:
		return "default"
	}
}

// Classify applies the rules in order; the first match wins
func Classify(c model.Course, cfg model.TermFilterConfig, now time.Time) Decision {
	if c.IsActive != nil && *c.IsActive {
		return IncludeActive
	}
	if c.EndDate != nil && c.EndDate.Before(now.Add(-time.Duration(cfg.LookbackWindowDays)*day)) {
		return ExcludeEnded
	}
	if c.StartDate != nil && c.StartDate.After(now.Add(time.Duration(cfg.LookaheadWindowDays)*day)) {
		return ExcludeFuture
	}
	return IncludeDefault
}

// FilterCurrent returns the courses that belong to the current term.
// With CurrentTermOnly off the input is returned unchanged.
func FilterCurrent(courses []model.Course, cfg model.TermFilterConfig, now time.Time) []model.Course {
	out := make([]model.Course, 0, len(courses))
	for _, c := range courses {
		if !cfg.CurrentTermOnly || Classify(c, cfg, now).Included() {
			out = append(out, c)
		}
	}
	return out
}

// IDSet is the set of course identifiers considered current
type IDSet map[string]struct{}

// CurrentIDs collects the identifiers of the given (already filtered) courses
func CurrentIDs(courses []model.Course) IDSet {
	ids := make(IDSet, len(courses))
	for _, c := range courses {
		if c.ID != "" {
			ids[c.ID] = struct{}{}
		}
	}
	return ids
}

// Has reports whether id belongs to the set. Empty ids never match.
func (s IDSet) Has(id string) bool {
	if id == "" {
		return false
	}
	_, ok := s[id]
	return ok
}

// FilterSets keeps the per-course sets whose course is current.
// Sets that cannot be matched are dropped when filtering and kept otherwise.
func FilterSets[T any](sets []model.ItemSet[T], ids IDSet, enabled bool) []model.ItemSet[T] {
	out := make([]model.ItemSet[T], 0, len(sets))
	for _, s := range sets {
		if !enabled || ids.Has(s.CourseID) {
			out = append(out, s)
		}
	}
	return out
}

// Snapshot is the filtered view of all stored kinds used for chat context
type Snapshot struct {
	Courses       []model.Course          `json:"courses"`
	Grades        []model.GradeSet        `json:"grades"`
	Assignments   []model.AssignmentSet   `json:"assignments"`
	Announcements []model.AnnouncementSet `json:"announcements"`
}

// Apply filters courses first, then derives the child sets from the surviving identifiers
func Apply(snap Snapshot, cfg model.TermFilterConfig, now time.Time) Snapshot {
	courses := FilterCurrent(snap.Courses, cfg, now)
	ids := CurrentIDs(courses)
	return Snapshot{
		Courses:       courses,
		Grades:        FilterSets(snap.Grades, ids, cfg.CurrentTermOnly),
		Assignments:   FilterSets(snap.Assignments, ids, cfg.CurrentTermOnly),
		Announcements: FilterSets(snap.Announcements, ids, cfg.CurrentTermOnly),
	}
}
