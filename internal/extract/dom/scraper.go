// Package dom is the scraping strategy: it reads rendered LMS pages and
// retries with a constant delay until records appear or the budget runs out.
package dom

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/ppiankov/coursepilot/internal/extract"
	"github.com/ppiankov/coursepilot/internal/logging"
	"github.com/ppiankov/coursepilot/internal/model"
)

// Readiness classifies one look at a page
type Readiness int

const (
	NotReady  Readiness = iota // No container rendered (or the snapshot failed)
	Ambiguous                  // Containers present but no parseable records
	Found                      // At least one record
)

func (r Readiness) String() string {
	switch r {
	case NotReady:
		return "not-ready"
	case Ambiguous:
		return "ambiguous"
	default:
		return "found"
	}
}

// SleepFunc waits d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Options tune the retry loop
type Options struct {
	MaxAttempts int
	RetryDelay  time.Duration
	Selectors   map[model.Kind]Selectors // nil uses DefaultSelectors
	Sleep       SleepFunc                // nil uses a timer
}

// Scraper implements extract.Strategy over a PageSource
type Scraper struct {
	source      PageSource
	baseURL     string
	selectors   map[model.Kind]Selectors
	maxAttempts int
	delay       time.Duration
	sleep       SleepFunc
	logger      *zap.Logger
}

var _ extract.Strategy = (*Scraper)(nil)

// New creates the scraping strategy
func New(source PageSource, baseURL string, opts Options, logger *zap.Logger) *Scraper {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 10
	}
	if opts.RetryDelay < 0 {
		opts.RetryDelay = 0
	}
	if opts.Selectors == nil {
		opts.Selectors = DefaultSelectors
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepCtx
	}
	return &Scraper{
		source:      source,
		baseURL:     strings.TrimRight(baseURL, "/"),
		selectors:   opts.Selectors,
		maxAttempts: opts.MaxAttempts,
		delay:       opts.RetryDelay,
		sleep:       opts.Sleep,
		logger:      logging.OrNop(logger),
	}
}

// Name implements extract.Strategy
func (s *Scraper) Name() model.Strategy {
	return model.StrategyScrape
}

// Courses implements extract.Strategy
func (s *Scraper) Courses(ctx context.Context) extract.Outcome[model.Course] {
	sel := s.selectors[model.KindCourses]
	return probe(ctx, s, model.KindCourses, model.Course{}, func(doc *goquery.Document) parsed[model.Course] {
		return parseCourses(doc, sel, s.baseURL)
	})
}

// Grades implements extract.Strategy
func (s *Scraper) Grades(ctx context.Context, course model.Course) extract.Outcome[model.Grade] {
	sel := s.selectors[model.KindGrades]
	return probe(ctx, s, model.KindGrades, course, func(doc *goquery.Document) parsed[model.Grade] {
		return parseGrades(doc, sel)
	})
}

// Assignments implements extract.Strategy
func (s *Scraper) Assignments(ctx context.Context, course model.Course) extract.Outcome[model.Assignment] {
	sel := s.selectors[model.KindAssignments]
	return probe(ctx, s, model.KindAssignments, course, func(doc *goquery.Document) parsed[model.Assignment] {
		return parseAssignments(doc, sel, s.baseURL)
	})
}

// Announcements implements extract.Strategy
func (s *Scraper) Announcements(ctx context.Context, course model.Course) extract.Outcome[model.Announcement] {
	sel := s.selectors[model.KindAnnouncements]
	return probe(ctx, s, model.KindAnnouncements, course, func(doc *goquery.Document) parsed[model.Announcement] {
		return parseAnnouncements(doc, sel)
	})
}

// probe looks at the page up to maxAttempts times, sleeping a constant delay in between.
// It stops on the first attempt that finds records. Running out of attempts is an
// empty success unless no attempt could read the page at all.
func probe[T any](ctx context.Context, s *Scraper, kind model.Kind, course model.Course, parse func(*goquery.Document) parsed[T]) extract.Outcome[T] {
	pageURL, err := PageURL(s.baseURL, kind, course)
	if err != nil {
		return extract.Failure[T](err)
	}

	page, err := s.source.Open(ctx, pageURL)
	if err != nil {
		return extract.Failure[T](fmt.Errorf("open %s: %w", pageURL, err))
	}
	defer func() { _ = page.Close() }()

	var (
		snapshotErrs int
		lastErr      error
	)
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		state, records, err := look(ctx, page, parse)
		if err != nil {
			snapshotErrs++
			lastErr = err
		}

		s.logger.Debug("scrape attempt",
			zap.String("kind", string(kind)),
			zap.String("course", course.ID),
			zap.Int("attempt", attempt),
			zap.Stringer("state", state),
			zap.Error(err))

		if state == Found {
			return extract.Success(records)
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return extract.Failure[T](err)
		}
		if attempt < s.maxAttempts {
			if err := s.sleep(ctx, s.delay); err != nil {
				return extract.Failure[T](err)
			}
		}
	}

	if snapshotErrs == s.maxAttempts {
		return extract.Failure[T](fmt.Errorf("page unreachable after %d attempts: %w", s.maxAttempts, lastErr))
	}
	return extract.EmptyAfterRetry[T]()
}

func look[T any](ctx context.Context, page Page, parse func(*goquery.Document) parsed[T]) (Readiness, []T, error) {
	markup, err := page.HTML(ctx)
	if err != nil {
		return NotReady, nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return NotReady, nil, fmt.Errorf("parse document: %w", err)
	}

	p := parse(doc)
	switch {
	case p.containers == 0:
		return NotReady, nil, nil
	case len(p.records) == 0:
		return Ambiguous, nil, nil
	}
	return Found, p.records, nil
}
