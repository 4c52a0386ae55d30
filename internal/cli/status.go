package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/coursepilot/internal/chat"
	"github.com/ppiankov/coursepilot/internal/model"
	"github.com/ppiankov/coursepilot/internal/term"
)

var (
	filterCurrentOnly bool
	filterLookback    int
	filterLookahead   int
	filterReset       bool
)

// filterCmd represents the filter command
var filterCmd = &cobra.Command{
	Use:   "filter",
	Short: "Show or change the current-term filter",
	Long: `Filter controls which courses count as "current term". Only current
courses and their grades, assignments and announcements are sent as context.

A course is kept when Brightspace marks it active; otherwise it is dropped
when it ended before the lookback window or starts after the lookahead window.

Example:
  coursepilot filter
  coursepilot filter --current-only=false
  coursepilot filter --lookback-days 150 --lookahead-days 14`,
	Args: cobra.NoArgs,
	RunE: runFilter,
}

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show stored data, session and backend health",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(filterCmd)
	rootCmd.AddCommand(statusCmd)

	filterCmd.Flags().BoolVar(&filterCurrentOnly, "current-only", true, "only use courses of the current term")
	filterCmd.Flags().IntVar(&filterLookback, "lookback-days", 0, "days after a course end it still counts as current")
	filterCmd.Flags().IntVar(&filterLookahead, "lookahead-days", 0, "days before a course start it already counts as current")
	filterCmd.Flags().BoolVar(&filterReset, "reset", false, "restore the configured defaults")
}

func runFilter(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	ctx := cmd.Context()
	cfg, err := a.store.TermFilter(ctx, a.cfg.Filter)
	if err != nil {
		return err
	}

	changed := false
	if filterReset {
		cfg = a.cfg.Filter
		changed = true
	}
	if cmd.Flags().Changed("current-only") {
		cfg.CurrentTermOnly = filterCurrentOnly
		changed = true
	}
	if cmd.Flags().Changed("lookback-days") {
		if filterLookback < 0 {
			return fmt.Errorf("--lookback-days must not be negative")
		}
		cfg.LookbackWindowDays = filterLookback
		changed = true
	}
	if cmd.Flags().Changed("lookahead-days") {
		if filterLookahead < 0 {
			return fmt.Errorf("--lookahead-days must not be negative")
		}
		cfg.LookaheadWindowDays = filterLookahead
		changed = true
	}

	if changed {
		if err := a.store.SetTermFilter(ctx, cfg); err != nil {
			return err
		}
		fmt.Println("✓ Filter updated")
	}

	fmt.Printf("Current term only: %v\n", cfg.CurrentTermOnly)
	fmt.Printf("Lookback window:   %d days\n", cfg.LookbackWindowDays)
	fmt.Printf("Lookahead window:  %d days\n", cfg.LookaheadWindowDays)

	batch, ok, err := a.store.Get(ctx, model.KindCourses)
	if err != nil || !ok {
		return err
	}
	now := time.Now()
	fmt.Println()
	for _, c := range batch.Courses {
		d := term.Classify(c, cfg, now)
		mark := "✓"
		if cfg.CurrentTermOnly && !d.Included() {
			mark = "·"
		}
		fmt.Printf("  %s %-50s %s\n", mark, c.Name, d)
	}
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()
	ctx := cmd.Context()

	fmt.Println("═══════════════════════════════════════════════════════════")
	fmt.Println("  CoursePilot Status")
	fmt.Println("═══════════════════════════════════════════════════════════")
	fmt.Printf("  Store:    %s\n", a.cfg.Store.Path)
	fmt.Printf("  Source:   %s\n", a.cfg.Source.BaseURL)
	fmt.Println()

	for _, kind := range model.AllKinds {
		batch, ok, err := a.store.Get(ctx, kind)
		switch {
		case err != nil:
			fmt.Printf("  %-14s unreadable: %v\n", kind, err)
		case !ok:
			fmt.Printf("  %-14s never synced\n", kind)
		case batch.Error != "":
			fmt.Printf("  %-14s failed %s: %s\n", kind, age(batch.ExtractedAt), batch.Error)
		default:
			fmt.Printf("  %-14s %d records via %s, %s\n", kind, batch.ItemCount(), batch.Strategy, age(batch.ExtractedAt))
		}
	}
	fmt.Println()

	sess, err := a.store.LoadSession(ctx)
	if err != nil {
		return err
	}
	if sess.ID == "" {
		fmt.Println("  Session:  none")
	} else {
		fmt.Printf("  Session:  %s (%d turns)\n", sess.ID, len(sess.Turns))
	}

	switch a.cfg.Chat.Mode {
	case "local":
		r, err := a.responder()
		if err != nil {
			fmt.Printf("  Backend:  local, misconfigured: %v\n", err)
		} else {
			fmt.Printf("  Backend:  local (%s)\n", r.Provider())
		}
	default:
		hctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		h, err := chat.NewClient(a.cfg.Chat.BackendURL, a.cfg.Chat.Timeout, a.logger).Health(hctx)
		if err != nil {
			fmt.Printf("  Backend:  %s unreachable: %v\n", a.cfg.Chat.BackendURL, err)
			fmt.Fprintln(os.Stderr, "\nStart it with: coursepilot serve")
		} else {
			fmt.Printf("  Backend:  %s %s (%s v%s)\n", a.cfg.Chat.BackendURL, h.Status, h.Service, h.Version)
		}
	}
	return nil
}

func age(t time.Time) string {
	if t.IsZero() {
		return "at an unknown time"
	}
	d := time.Since(t).Round(time.Minute)
	if d < time.Minute {
		return "just now"
	}
	return d.String() + " ago"
}
