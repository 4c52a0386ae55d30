// Package extract runs the ordered strategy chain (structured API, then DOM scraping)
// and assembles normalized ExtractionBatches.
package extract

import (
	"context"
	"errors"

	"github.com/ppiankov/coursepilot/internal/model"
)

// ErrNoCourses is the only batch-level failure: without a course list the
// per-course fan-out cannot start.
var ErrNoCourses = errors.New("no courses available")

// Outcome is the result of one strategy attempt: either Success with records
// (possibly none) or Failure with a reason. Callers branch on OK, never on panics.
type Outcome[T any] struct {
	Records   []T
	Reason    error // Non-nil marks a failure
	Exhausted bool  // Success reached only by running out of retry attempts
}

// Success wraps records; a nil slice becomes empty
func Success[T any](records []T) Outcome[T] {
	if records == nil {
		records = []T{}
	}
	return Outcome[T]{Records: records}
}

// EmptyAfterRetry is a success with no records after the attempt budget ran out
func EmptyAfterRetry[T any]() Outcome[T] {
	return Outcome[T]{Records: []T{}, Exhausted: true}
}

// Failure marks the strategy as failed; the orchestrator moves on to the next one
func Failure[T any](reason error) Outcome[T] {
	if reason == nil {
		reason = errors.New("strategy failed")
	}
	return Outcome[T]{Reason: reason}
}

// OK reports whether the attempt succeeded
func (o Outcome[T]) OK() bool {
	return o.Reason == nil
}

// Strategy is one way of obtaining records. Implementations never panic on
// bad input; every problem comes back as a Failure outcome.
type Strategy interface {
	Name() model.Strategy
	Courses(ctx context.Context) Outcome[model.Course]
	Grades(ctx context.Context, course model.Course) Outcome[model.Grade]
	Assignments(ctx context.Context, course model.Course) Outcome[model.Assignment]
	Announcements(ctx context.Context, course model.Course) Outcome[model.Announcement]
}
