package cli

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ppiankov/coursepilot/internal/chat"
	"github.com/ppiankov/coursepilot/internal/llm"
	"github.com/ppiankov/coursepilot/internal/logging"
	"github.com/ppiankov/coursepilot/internal/model"
	"github.com/ppiankov/coursepilot/internal/session"
	"github.com/ppiankov/coursepilot/internal/store"
)

// app holds the components shared by the commands
type app struct {
	cfg    *model.Config
	logger *zap.Logger
	store  *store.Store
}

func newApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.JSON)
	if err != nil {
		return nil, err
	}
	st, err := store.Open(cfg.Store.Path, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, fmt.Errorf("open store %s: %w", cfg.Store.Path, err)
	}
	return &app{cfg: cfg, logger: logger, store: st}, nil
}

func (a *app) Close() error {
	_ = a.logger.Sync()
	return a.store.Close()
}

// responder builds the in-process backend: the configured model, or keyword matching
func (a *app) responder() (*llm.Responder, error) {
	config := llm.ConfigFromModel(a.cfg)
	provider, err := llm.NewProvider(config)
	if err != nil {
		return nil, err
	}
	return llm.NewResponder(provider, config, a.logger), nil
}

// backend returns the chat backend selected by chat.mode
func (a *app) backend() (chat.Backend, error) {
	if a.cfg.Chat.Mode == "local" {
		r, err := a.responder()
		if err != nil {
			return nil, err
		}
		return r, nil
	}
	return chat.NewClient(a.cfg.Chat.BackendURL, a.cfg.Chat.Timeout, a.logger), nil
}

// manager builds a session manager with the persisted session loaded
func (a *app) manager(ctx context.Context) (*session.Manager, error) {
	backend, err := a.backend()
	if err != nil {
		return nil, err
	}
	m := session.New(backend, a.store, session.Options{
		HistoryWindow: a.cfg.Chat.HistoryWindow,
		DefaultFilter: a.cfg.Filter,
	}, a.logger)
	if err := m.Load(ctx); err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	return m, nil
}
