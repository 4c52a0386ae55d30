// Package pipeline wires the extraction strategies to the local store and
// exposes them as the "extractor" endpoint on the bridge.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/coursepilot/internal/extract"
	"github.com/ppiankov/coursepilot/internal/extract/api"
	"github.com/ppiankov/coursepilot/internal/extract/dom"
	"github.com/ppiankov/coursepilot/internal/fetch"
	"github.com/ppiankov/coursepilot/internal/logging"
	"github.com/ppiankov/coursepilot/internal/model"
	"github.com/ppiankov/coursepilot/internal/util"
	"github.com/ppiankov/coursepilot/internal/worker"
)

// BatchStore is the persistence the pipeline writes to; *store.Store implements it
type BatchStore interface {
	Get(ctx context.Context, kind model.Kind) (model.ExtractionBatch, bool, error)
	Put(ctx context.Context, kind model.Kind, batch model.ExtractionBatch) error
}

// Pipeline extracts batches and persists each one, replacing the previous batch of its kind
type Pipeline struct {
	extractor *extract.Extractor
	store     BatchStore
	closers   []io.Closer
	logger    *zap.Logger
}

// New builds the strategy chain from cfg: the Valence API first, then page scraping when enabled
func New(cfg *model.Config, st BatchStore, logger *zap.Logger) *Pipeline {
	logger = logging.OrNop(logger)

	fetcher := fetch.New(fetch.Options{
		Timeout:    cfg.Source.Timeout,
		UserAgent:  cfg.Source.UserAgent,
		MaxBytes:   cfg.Source.MaxBodyBytes,
		Cookie:     cfg.Source.SessionCookie,
		HTTPProxy:  cfg.Source.HTTPProxy,
		HTTPSProxy: cfg.Source.HTTPSProxy,
		Limiter:    worker.NewLimiter(cfg.Source.RequestsPerSecond, cfg.Source.Burst),
	})

	strategies := []extract.Strategy{
		api.New(fetcher, cfg.Source, logger.Named("api")),
	}

	var closers []io.Closer
	if cfg.Scrape.Enabled {
		var pages dom.PageSource
		switch cfg.Scrape.PageSource {
		case "rod":
			rodSource := dom.NewRodPageSource(cfg.Scrape.DebuggerURL, cfg.Source.Timeout)
			closers = append(closers, rodSource)
			pages = rodSource
		default:
			var robots *util.RobotsChecker
			if cfg.Scrape.RespectRobots {
				robots = util.NewRobotsChecker(fetcher.Client(), cfg.Source.UserAgent)
			}
			pages = dom.NewHTTPPageSource(fetcher, robots)
		}
		strategies = append(strategies, dom.New(pages, cfg.Source.BaseURL, dom.Options{
			MaxAttempts: cfg.Scrape.MaxAttempts,
			RetryDelay:  cfg.Scrape.RetryDelay,
		}, logger.Named("dom")))
	}

	p := NewWithExtractor(extract.New(strategies, st, cfg.Concurrency.CourseWorkers, logger.Named("extract")), st, logger)
	p.closers = closers
	return p
}

// NewWithExtractor assembles a pipeline from an existing extractor
func NewWithExtractor(extractor *extract.Extractor, st BatchStore, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		extractor: extractor,
		store:     st,
		logger:    logging.OrNop(logger),
	}
}

// Extract produces and persists a fresh batch for kind. Per-course kinds sync
// the course list first when none is stored yet. The error reports persistence
// problems only; extraction problems live inside the batch.
func (p *Pipeline) Extract(ctx context.Context, kind model.Kind) (model.ExtractionBatch, error) {
	if kind.PerCourse() {
		if _, ok, err := p.store.Get(ctx, model.KindCourses); err == nil && !ok {
			if _, err := p.Extract(ctx, model.KindCourses); err != nil {
				return model.NewBatch(kind), err
			}
		}
	}

	start := time.Now()
	batch := p.extractor.Extract(ctx, kind)
	if err := p.store.Put(ctx, kind, batch); err != nil {
		return batch, fmt.Errorf("persist %s batch: %w", kind, err)
	}

	p.logger.Debug("batch persisted",
		zap.String("kind", string(kind)),
		zap.String("strategy", string(batch.Strategy)),
		zap.Duration("latency", time.Since(start)))
	return batch, nil
}

// Sync extracts kinds in order (all kinds when empty), courses first
func (p *Pipeline) Sync(ctx context.Context, kinds []model.Kind) ([]model.ExtractionBatch, error) {
	if len(kinds) == 0 {
		kinds = model.AllKinds
	}
	kinds = coursesFirst(kinds)

	out := make([]model.ExtractionBatch, 0, len(kinds))
	for _, kind := range kinds {
		batch, err := p.Extract(ctx, kind)
		if err != nil {
			return out, err
		}
		out = append(out, batch)
	}
	return out, nil
}

// Close releases page sources that hold resources (a launched browser)
func (p *Pipeline) Close() error {
	var firstErr error
	for _, c := range p.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func coursesFirst(kinds []model.Kind) []model.Kind {
	out := make([]model.Kind, 0, len(kinds))
	seen := make(map[model.Kind]bool)
	for _, k := range kinds {
		if k == model.KindCourses && !seen[k] {
			out = append(out, k)
			seen[k] = true
		}
	}
	for _, k := range kinds {
		if !seen[k] {
			out = append(out, k)
			seen[k] = true
		}
	}
	return out
}
