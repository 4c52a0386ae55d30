package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Strategy names the method that produced a batch or a course leg
type Strategy string

const (
	StrategyAPI    Strategy = "api"    // Structured Valence API
	StrategyScrape Strategy = "scrape" // Rendered DOM scraping
	StrategyMixed  Strategy = "mixed"  // Per-course legs used different strategies
	StrategyNone   Strategy = "none"   // No strategy ran (batch-level failure)
)

// ExtractionBatch is the full result of one extraction call for one kind.
// It replaces any previously stored batch of the same kind.
type ExtractionBatch struct {
	Kind          Kind
	Strategy      Strategy
	Courses       []Course
	Grades        []GradeSet
	Assignments   []AssignmentSet
	Announcements []AnnouncementSet
	ExtractedAt   time.Time
	Error         string
}

// NewBatch returns an empty batch whose record slice for kind is non-nil
func NewBatch(kind Kind) ExtractionBatch {
	b := ExtractionBatch{Kind: kind, Strategy: StrategyNone, ExtractedAt: time.Now().UTC()}
	b.normalize()
	return b
}

// Len returns the number of top-level records (courses or per-course sets)
func (b ExtractionBatch) Len() int {
	switch b.Kind {
	case KindCourses:
		return len(b.Courses)
	case KindGrades:
		return len(b.Grades)
	case KindAssignments:
		return len(b.Assignments)
	case KindAnnouncements:
		return len(b.Announcements)
	}
	return 0
}

// ItemCount returns the number of leaf records across all sets
func (b ExtractionBatch) ItemCount() int {
	n := 0
	switch b.Kind {
	case KindCourses:
		return len(b.Courses)
	case KindGrades:
		for _, s := range b.Grades {
			n += len(s.Items)
		}
	case KindAssignments:
		for _, s := range b.Assignments {
			n += len(s.Items)
		}
	case KindAnnouncements:
		for _, s := range b.Announcements {
			n += len(s.Items)
		}
	}
	return n
}

// FailedLegs counts per-course sets carrying an error
func (b ExtractionBatch) FailedLegs() int {
	n := 0
	for _, s := range b.Grades {
		if s.Failed() {
			n++
		}
	}
	for _, s := range b.Assignments {
		if s.Failed() {
			n++
		}
	}
	for _, s := range b.Announcements {
		if s.Failed() {
			n++
		}
	}
	return n
}

// normalize makes the slice for b.Kind non-nil, including each set's Items
func (b *ExtractionBatch) normalize() {
	switch b.Kind {
	case KindCourses:
		if b.Courses == nil {
			b.Courses = []Course{}
		}
	case KindGrades:
		if b.Grades == nil {
			b.Grades = []GradeSet{}
		}
		for i := range b.Grades {
			if b.Grades[i].Items == nil {
				b.Grades[i].Items = []Grade{}
			}
		}
	case KindAssignments:
		if b.Assignments == nil {
			b.Assignments = []AssignmentSet{}
		}
		for i := range b.Assignments {
			if b.Assignments[i].Items == nil {
				b.Assignments[i].Items = []Assignment{}
			}
		}
	case KindAnnouncements:
		if b.Announcements == nil {
			b.Announcements = []AnnouncementSet{}
		}
		for i := range b.Announcements {
			if b.Announcements[i].Items == nil {
				b.Announcements[i].Items = []Announcement{}
			}
		}
	}
}

// batchWire is the persisted shape: {kind, strategyUsed, courses|items, extractedAt, error?}
type batchWire struct {
	Kind        Kind            `json:"kind"`
	Strategy    Strategy        `json:"strategyUsed"`
	Courses     *[]Course       `json:"courses,omitempty"`
	Items       json.RawMessage `json:"items,omitempty"`
	ExtractedAt time.Time       `json:"extractedAt"`
	Error       string          `json:"error,omitempty"`
}

// MarshalJSON emits exactly one of courses/items, always as an array
func (b ExtractionBatch) MarshalJSON() ([]byte, error) {
	b.normalize()
	w := batchWire{
		Kind:        b.Kind,
		Strategy:    b.Strategy,
		ExtractedAt: b.ExtractedAt,
		Error:       b.Error,
	}

	var (
		items []byte
		err   error
	)
	switch b.Kind {
	case KindCourses:
		w.Courses = &b.Courses
	case KindGrades:
		items, err = json.Marshal(b.Grades)
	case KindAssignments:
		items, err = json.Marshal(b.Assignments)
	case KindAnnouncements:
		items, err = json.Marshal(b.Announcements)
	default:
		return nil, fmt.Errorf("marshal batch: unknown kind %q", b.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("marshal batch items: %w", err)
	}
	w.Items = items

	return json.Marshal(w)
}

// UnmarshalJSON decodes items into the slice matching the batch kind
func (b *ExtractionBatch) UnmarshalJSON(data []byte) error {
	var w batchWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	*b = ExtractionBatch{
		Kind:        w.Kind,
		Strategy:    w.Strategy,
		ExtractedAt: w.ExtractedAt,
		Error:       w.Error,
	}
	if w.Courses != nil {
		b.Courses = *w.Courses
	}

	if len(w.Items) > 0 {
		var err error
		switch w.Kind {
		case KindGrades:
			err = json.Unmarshal(w.Items, &b.Grades)
		case KindAssignments:
			err = json.Unmarshal(w.Items, &b.Assignments)
		case KindAnnouncements:
			err = json.Unmarshal(w.Items, &b.Announcements)
		}
		if err != nil {
			return fmt.Errorf("unmarshal %s items: %w", w.Kind, err)
		}
	}

	b.normalize()
	return nil
}
