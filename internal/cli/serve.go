package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ppiankov/coursepilot/internal/server"
)

var serveAddr string

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the chat backend",
	Long: `Serve runs the HTTP chat backend that "ask" and "chat" talk to in remote mode.

Endpoints:
  POST /api/chat/query   answer one question
  GET  /api/health       liveness

The backend answers with the configured LLM (llm.provider). Without one it
falls back to keyword answers built from the request context.

Example:
  MISTRAL_API_KEY=... COURSEPILOT_LLM_PROVIDER=mistral coursepilot serve
  coursepilot serve --addr 127.0.0.1:9000`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	addr := a.cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	responder, err := a.responder()
	if err != nil {
		return fmt.Errorf("configure llm: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Chat backend on http://%s (answers: %s)\n", addr, responder.Provider())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return server.New(responder, version, a.logger.Named("server")).ListenAndServe(ctx, addr)
}
