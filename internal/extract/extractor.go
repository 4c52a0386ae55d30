package extract

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/coursepilot/internal/logging"
	"github.com/ppiankov/coursepilot/internal/model"
	"github.com/ppiankov/coursepilot/internal/worker"
)

var errCoursesFailed = errors.New("every strategy failed to list courses")

// BatchReader gives access to previously persisted batches
type BatchReader interface {
	Get(ctx context.Context, kind model.Kind) (model.ExtractionBatch, bool, error)
}

// Extractor tries its strategies in order and normalizes the result into a batch.
// It never returns an error: failures end up in the batch or in per-course sets.
type Extractor struct {
	strategies []Strategy
	known      BatchReader
	workers    int
	logger     *zap.Logger
	now        func() time.Time
}

// New creates an extractor. strategies are tried in the given order.
// known supplies the stored course list for per-course kinds and may be nil.
func New(strategies []Strategy, known BatchReader, workers int, logger *zap.Logger) *Extractor {
	if workers <= 0 {
		workers = 4
	}
	return &Extractor{
		strategies: strategies,
		known:      known,
		workers:    workers,
		logger:     logging.OrNop(logger),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Extract produces a fresh batch for kind
func (e *Extractor) Extract(ctx context.Context, kind model.Kind) model.ExtractionBatch {
	if kind == model.KindCourses {
		return e.ExtractCourses(ctx)
	}

	courses, err := e.knownCourses(ctx)
	if err != nil {
		return e.failed(kind, err)
	}
	return e.ExtractFor(ctx, kind, courses)
}

// ExtractCourses enumerates enrollments, first strategy that succeeds wins
func (e *Extractor) ExtractCourses(ctx context.Context) model.ExtractionBatch {
	start := time.Now()
	var reasons []error

	for _, s := range e.strategies {
		out := attempt(func() Outcome[model.Course] { return s.Courses(ctx) })
		if !out.OK() {
			e.logger.Debug("course strategy failed, falling back",
				zap.String("strategy", string(s.Name())), zap.Error(out.Reason))
			reasons = append(reasons, fmt.Errorf("%s: %w", s.Name(), out.Reason))
			continue
		}

		batch := e.newBatch(model.KindCourses)
		batch.Strategy = s.Name()
		batch.Courses = dedupeCourses(out.Records)
		e.logger.Info("courses extracted",
			zap.String("strategy", string(s.Name())),
			zap.Int("count", len(batch.Courses)),
			zap.Bool("exhausted", out.Exhausted),
			zap.Duration("latency", time.Since(start)))
		return batch
	}

	return e.failed(model.KindCourses, errors.Join(reasons...))
}

// ExtractFor fans out over the courses that are not explicitly inactive.
// The batch holds exactly one set per such course; failed legs carry Error.
// No courses means an empty batch, not a failure.
func (e *Extractor) ExtractFor(ctx context.Context, kind model.Kind, courses []model.Course) model.ExtractionBatch {
	targets := make([]model.Course, 0, len(courses))
	for _, c := range courses {
		if c.IsActive == nil || *c.IsActive {
			targets = append(targets, c)
		}
	}

	start := time.Now()
	batch := e.newBatch(kind)
	switch kind {
	case model.KindGrades:
		batch.Grades, batch.Strategy = fanOut(ctx, e, targets, Strategy.Grades)
	case model.KindAssignments:
		batch.Assignments, batch.Strategy = fanOut(ctx, e, targets, Strategy.Assignments)
	case model.KindAnnouncements:
		batch.Announcements, batch.Strategy = fanOut(ctx, e, targets, Strategy.Announcements)
	default:
		return e.failed(kind, fmt.Errorf("kind %q is not per-course", kind))
	}

	e.logger.Info("per-course extraction finished",
		zap.String("kind", string(kind)),
		zap.String("strategy", string(batch.Strategy)),
		zap.Int("courses", batch.Len()),
		zap.Int("items", batch.ItemCount()),
		zap.Int("failed", batch.FailedLegs()),
		zap.Duration("latency", time.Since(start)))
	return batch
}

func (e *Extractor) knownCourses(ctx context.Context) ([]model.Course, error) {
	if e.known != nil {
		stored, ok, err := e.known.Get(ctx, model.KindCourses)
		if err != nil {
			e.logger.Warn("reading stored courses failed", zap.Error(err))
		}
		if ok && stored.Error == "" && len(stored.Courses) > 0 {
			return stored.Courses, nil
		}
	}

	fresh := e.ExtractCourses(ctx)
	if fresh.Error != "" {
		return nil, errCoursesFailed
	}
	return fresh.Courses, nil
}

func (e *Extractor) newBatch(kind model.Kind) model.ExtractionBatch {
	b := model.NewBatch(kind)
	b.ExtractedAt = e.now()
	return b
}

// failed builds the batch-level failure: empty records and an error text
func (e *Extractor) failed(kind model.Kind, reason error) model.ExtractionBatch {
	err := ErrNoCourses
	if reason != nil {
		err = fmt.Errorf("%w: %v", ErrNoCourses, reason)
	}
	e.logger.Warn("extraction failed", zap.String("kind", string(kind)), zap.Error(err))

	b := e.newBatch(kind)
	b.Error = err.Error()
	return b
}

// leg extracts one course's records, trying each strategy in order
func leg[T any](ctx context.Context, e *Extractor, course model.Course, get func(Strategy, context.Context, model.Course) Outcome[T]) model.ItemSet[T] {
	set := model.ItemSet[T]{CourseRef: course.Ref(), Items: []T{}}
	var reasons []error

	for _, s := range e.strategies {
		out := attempt(func() Outcome[T] { return get(s, ctx, course) })
		if out.OK() {
			set.Items = out.Records
			set.Strategy = s.Name()
			return set
		}
		e.logger.Debug("course leg strategy failed",
			zap.String("course", course.ID),
			zap.String("strategy", string(s.Name())),
			zap.Error(out.Reason))
		reasons = append(reasons, fmt.Errorf("%s: %w", s.Name(), out.Reason))
	}

	if len(reasons) == 0 {
		reasons = append(reasons, errors.New("no strategy configured"))
	}
	set.Error = errors.Join(reasons...).Error()
	return set
}

// fanOut runs one leg per course concurrently and waits for all of them
func fanOut[T any](ctx context.Context, e *Extractor, courses []model.Course, get func(Strategy, context.Context, model.Course) Outcome[T]) ([]model.ItemSet[T], model.Strategy) {
	sets := worker.Gather(ctx, e.workers, courses,
		func(ctx context.Context, c model.Course) model.ItemSet[T] {
			return leg(ctx, e, c, get)
		},
		func(c model.Course, err error) model.ItemSet[T] {
			return model.ItemSet[T]{CourseRef: c.Ref(), Items: []T{}, Error: err.Error()}
		})

	used := make(map[model.Strategy]struct{})
	for _, s := range sets {
		if !s.Failed() {
			used[s.Strategy] = struct{}{}
		}
	}
	return sets, combine(used)
}

func combine(used map[model.Strategy]struct{}) model.Strategy {
	switch len(used) {
	case 0:
		return model.StrategyNone
	case 1:
		for s := range used {
			return s
		}
	}
	return model.StrategyMixed
}

func attempt[T any](fn func() Outcome[T]) (out Outcome[T]) {
	defer func() {
		if r := recover(); r != nil {
			out = Failure[T](fmt.Errorf("strategy panicked: %v", r))
		}
	}()
	out = fn()
	if out.OK() && out.Records == nil {
		out.Records = []T{}
	}
	return out
}

func dedupeCourses(courses []model.Course) []model.Course {
	seen := make(map[string]struct{}, len(courses))
	out := make([]model.Course, 0, len(courses))
	for _, c := range courses {
		key := c.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
	}
	return out
}
