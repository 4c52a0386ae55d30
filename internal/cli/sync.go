package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/coursepilot/internal/bridge"
	"github.com/ppiankov/coursepilot/internal/model"
	"github.com/ppiankov/coursepilot/internal/pipeline"
)

var (
	syncTimeout time.Duration
	syncJSON    bool
	syncCookie  string
	syncNoDOM   bool
)

// syncCmd represents the sync command
var syncCmd = &cobra.Command{
	Use:   "sync [kind...]",
	Short: "Extract fresh data from Brightspace into the local store",
	Long: `Sync extracts courses, grades, assignments and announcements and replaces
the stored copy of each kind.

Each kind is pulled from the Brightspace API first; when the API refuses, the
rendered pages are scraped instead. Per-course kinds fan out over your courses,
and a course that fails both ways is recorded with its error instead of
failing the whole sync.

Kinds: courses, grades, assignments, announcements (default: all)

Example:
  coursepilot sync
  coursepilot sync grades assignments
  coursepilot sync courses --json`,
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)

	syncCmd.Flags().DurationVar(&syncTimeout, "timeout", 5*time.Minute, "overall sync timeout")
	syncCmd.Flags().BoolVar(&syncJSON, "json", false, "print the extracted batches as JSON on stdout")
	syncCmd.Flags().StringVar(&syncCookie, "cookie", "", "Brightspace session cookie (overrides source.session_cookie)")
	syncCmd.Flags().BoolVar(&syncNoDOM, "no-scrape", false, "disable the page scraping fallback")
}

func parseKinds(args []string) ([]model.Kind, error) {
	if len(args) == 0 {
		return model.AllKinds, nil
	}
	kinds := make([]model.Kind, 0, len(args))
	for _, arg := range args {
		k, err := model.ParseKind(arg)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}

func runSync(cmd *cobra.Command, args []string) error {
	kinds, err := parseKinds(args)
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if syncCookie != "" {
		a.cfg.Source.SessionCookie = syncCookie
	}
	if syncNoDOM {
		a.cfg.Scrape.Enabled = false
	}
	if a.cfg.Source.SessionCookie == "" {
		fmt.Fprintln(os.Stderr, "⚠ No session cookie configured; Brightspace will likely ask for a login.")
		fmt.Fprintln(os.Stderr, "  Set COURSEPILOT_SOURCE_SESSION_COOKIE or pass --cookie.")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, syncTimeout)
	defer cancel()

	p := pipeline.New(a.cfg, a.store, a.logger.Named("pipeline"))
	defer func() { _ = p.Close() }()

	b := bridge.New(syncTimeout, a.logger.Named("bridge"))
	unlisten, err := p.Listen(b)
	if err != nil {
		return err
	}
	defer unlisten()

	client := pipeline.NewClient(b)
	if err := client.Ping(ctx); err != nil {
		return fmt.Errorf("extractor not ready: %w", err)
	}

	if !syncJSON {
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
		fmt.Fprintf(os.Stderr, "  CoursePilot Sync\n")
		fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
		fmt.Fprintf(os.Stderr, "  Source:  %s\n", a.cfg.Source.BaseURL)
		fmt.Fprintf(os.Stderr, "  Scrape:  %v (%s)\n", a.cfg.Scrape.Enabled, a.cfg.Scrape.PageSource)
		fmt.Fprintf(os.Stderr, "\n")
	}

	start := time.Now()
	batches, err := client.Sync(ctx, kinds)
	if err != nil {
		return fmt.Errorf("sync: %w", err)
	}

	if syncJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(batches)
	}
	for _, batch := range batches {
		printBatchSummary(batch)
	}
	fmt.Fprintf(os.Stderr, "\nDone in %s\n", time.Since(start).Round(time.Millisecond))
	return nil
}

func printBatchSummary(b model.ExtractionBatch) {
	if b.Error != "" {
		fmt.Fprintf(os.Stderr, "✗ %-14s %s\n", b.Kind, b.Error)
		return
	}
	if b.Kind == model.KindCourses {
		fmt.Fprintf(os.Stderr, "✓ %-14s %d courses via %s\n", b.Kind, b.Len(), b.Strategy)
		return
	}
	fmt.Fprintf(os.Stderr, "✓ %-14s %d items in %d courses via %s\n",
		b.Kind, b.ItemCount(), b.Len(), b.Strategy)
	if failed := b.FailedLegs(); failed > 0 {
		fmt.Fprintf(os.Stderr, "  ⚠ %d courses could not be read\n", failed)
	}
}
