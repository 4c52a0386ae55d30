package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/coursepilot/internal/model"
	"github.com/ppiankov/coursepilot/internal/session"
)

var (
	historyLimit int
	clearYes     bool
)

// askCmd represents the ask command
var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask one question about your courses",
	Long: `Ask sends one question to the chat backend together with the stored
courses of the current term and the recent turns of the conversation.

Example:
  coursepilot ask "What's due this week?"
  coursepilot ask "How am I doing in CSI2532?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

// chatCmd represents the interactive chat command
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive conversation",
	Long: `Chat reads questions from stdin, one per line, until EOF or /quit.

Commands inside the conversation:
  /clear    start a new conversation
  /history  show the turns so far
  /quit     leave`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the stored conversation",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

// clearCmd represents the clear command
var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Forget the conversation and start a new session",
	Args:  cobra.NoArgs,
	RunE:  runClear,
}

func init() {
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(clearCmd)

	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 0, "show only the last n turns (0 = all)")
	clearCmd.Flags().BoolVarP(&clearYes, "yes", "y", false, "do not ask for confirmation")
}

func runAsk(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	m, err := a.manager(ctx)
	if err != nil {
		return err
	}

	return askOne(ctx, m, strings.Join(args, " "), os.Stdout, os.Stderr)
}

// askOne asks a question, showing a typing indicator while the answer is pending.
// Backend failures are printed as the assistant turn and are not command errors.
func askOne(ctx context.Context, m *session.Manager, question string, out, status io.Writer) error {
	events, unsubscribe := m.Subscribe()
	indicatorDone := make(chan struct{})
	go func() {
		defer close(indicatorDone)
		for ev := range events {
			switch ev.State {
			case session.AwaitingResponse:
				fmt.Fprint(status, "… thinking\r")
			case session.Completed, session.Failed:
				fmt.Fprintf(status, "           \r")
			}
		}
	}()

	reply, err := m.Ask(ctx, question)
	unsubscribe()
	<-indicatorDone

	switch {
	case errors.Is(err, session.ErrEmptyQuery):
		return fmt.Errorf("question must not be empty")
	case errors.Is(err, session.ErrBusy):
		return err
	}

	fmt.Fprintln(out, reply.Content)
	if reply.LatencyMS > 0 {
		fmt.Fprintf(status, "(%s)\n", (time.Duration(reply.LatencyMS) * time.Millisecond).Round(10*time.Millisecond))
	}
	return nil
}

func runChat(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	m, err := a.manager(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "CoursePilot chat (%s backend). Type /quit to leave.\n", a.cfg.Chat.Mode)
	if n := len(m.History()); n > 0 {
		fmt.Fprintf(os.Stderr, "Continuing session %s (%d turns).\n", m.SessionID(), n)
	}

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Fprint(os.Stderr, "\n> ")
		if !scanner.Scan() {
			fmt.Fprintln(os.Stderr)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())

		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/history":
			printTurns(os.Stdout, m.History())
			continue
		case "/clear":
			if err := m.Clear(ctx); err != nil {
				return err
			}
			fmt.Fprintln(os.Stderr, "✓ Conversation cleared")
			continue
		}

		if err := askOne(ctx, m, line, os.Stdout, os.Stderr); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func runHistory(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	sess, err := a.store.LoadSession(cmd.Context())
	if err != nil {
		return err
	}
	if len(sess.Turns) == 0 {
		fmt.Fprintln(os.Stderr, "No conversation yet. Try: coursepilot ask \"What courses do I have?\"")
		return nil
	}

	fmt.Fprintf(os.Stderr, "Session %s\n\n", sess.ID)
	turns := sess.Turns
	if historyLimit > 0 {
		turns = sess.Recent(historyLimit)
	}
	printTurns(os.Stdout, turns)
	return nil
}

func runClear(cmd *cobra.Command, args []string) error {
	if !clearYes {
		fmt.Fprint(os.Stderr, "Forget the whole conversation? [y/N] ")
		answer, _ := bufio.NewReader(os.Stdin).ReadString('\n')
		if a := strings.ToLower(strings.TrimSpace(answer)); a != "y" && a != "yes" {
			fmt.Fprintln(os.Stderr, "Aborted")
			return nil
		}
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if err := a.store.ClearSession(cmd.Context()); err != nil {
		return err
	}
	fmt.Println("✓ Conversation cleared; the next question starts a new session")
	return nil
}

func printTurns(w io.Writer, turns []model.Turn) {
	for _, t := range turns {
		who := "you"
		if t.Role == model.RoleAssistant {
			who = "assistant"
			if t.Failed {
				who = "assistant (failed)"
			}
		}
		stamp := ""
		if !t.Timestamp.IsZero() {
			stamp = t.Timestamp.Local().Format("2006-01-02 15:04") + " "
		}
		fmt.Fprintf(w, "%s%s:\n%s\n\n", stamp, who, t.Content)
	}
}
