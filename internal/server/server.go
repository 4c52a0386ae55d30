// Package server exposes a chat.Backend over HTTP for `coursepilot serve`.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/coursepilot/internal/chat"
	"github.com/ppiankov/coursepilot/internal/logging"
)

const (
	// ServiceName is reported by the health endpoint
	ServiceName = "coursepilot"

	maxRequestBytes = 4 << 20
	shutdownGrace   = 5 * time.Second
)

// Server answers POST /api/chat/query and GET /api/health
type Server struct {
	backend chat.Backend
	version string
	now     func() time.Time
	logger  *zap.Logger
}

// New creates a server answering with backend
func New(backend chat.Backend, version string, logger *zap.Logger) *Server {
	return &Server{
		backend: backend,
		version: version,
		now:     time.Now,
		logger:  logging.OrNop(logger),
	}
}

// Handler returns the routed handler
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/chat/query", s.handleQuery)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	return mux
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("chat backend listening", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req chat.Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query must not be empty")
		return
	}

	start := s.now()
	resp, err := s.backend.Query(r.Context(), req)
	if err != nil {
		s.logger.Error("answer query",
			zap.String("session", req.SessionID),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if resp.SuggestedActions == nil {
		resp.SuggestedActions = chat.DefaultActions()
	}

	s.logger.Info("query answered",
		zap.String("session", req.SessionID),
		zap.Int("courses", len(req.Context.Courses)),
		zap.Int("recent_turns", len(req.RecentTurns)),
		zap.Duration("latency", s.now().Sub(start)))
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, chat.Health{
		Status:    "healthy",
		Service:   ServiceName,
		Version:   s.version,
		Timestamp: s.now().UTC(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError uses the {"detail": ...} shape the chat client understands
func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
