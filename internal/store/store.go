// Package store is the device-scoped persistence of extracted batches and session state.
package store

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/ppiankov/coursepilot/internal/logging"
	"github.com/ppiankov/coursepilot/internal/model"
)

// Keys besides the four extraction kinds
const (
	KeySessionID  = "sessionId"
	KeyTurns      = "turns"
	KeyTermFilter = "termFilter"
)

// Store is a layered key/value store: a memory layer over a persistent backend.
// Writes are last-write-wins per key; a batch put replaces the previous batch of its kind.
type Store struct {
	memory  *memoryLayer
	backend Backend
	logger  *zap.Logger
}

// New wraps backend with a memory layer
func New(backend Backend, logger *zap.Logger) *Store {
	return &Store{
		memory:  newMemoryLayer(),
		backend: backend,
		logger:  logging.OrNop(logger),
	}
}

// Open opens the SQLite-backed store at path
func Open(path string, logger *zap.Logger) (*Store, error) {
	backend, err := OpenSQLite(path)
	if err != nil {
		return nil, err
	}
	return New(backend, logger), nil
}

// Close releases the backend
func (s *Store) Close() error {
	return s.backend.Close()
}

// Put replaces the stored batch for kind
func (s *Store) Put(ctx context.Context, kind model.Kind, batch model.ExtractionBatch) error {
	batch.Kind = kind
	data, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("encode %s batch: %w", kind, err)
	}
	return s.setMany(ctx, map[string][]byte{string(kind): data})
}

// Get returns the last persisted batch for kind, possibly stale
func (s *Store) Get(ctx context.Context, kind model.Kind) (model.ExtractionBatch, bool, error) {
	var batch model.ExtractionBatch
	ok, err := s.getJSON(ctx, string(kind), &batch)
	if err != nil || !ok {
		return model.ExtractionBatch{}, false, err
	}
	return batch, true, nil
}

// Clear removes keys as one write. Missing keys are ignored.
func (s *Store) Clear(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.backend.Delete(ctx, keys...); err != nil {
		return fmt.Errorf("clear: %w", err)
	}
	s.memory.delete(keys...)
	return nil
}

// LoadSession returns the persisted session; absent keys give an empty session
func (s *Store) LoadSession(ctx context.Context) (model.Session, error) {
	sess := model.Session{Turns: []model.Turn{}}
	if _, err := s.getJSON(ctx, KeySessionID, &sess.ID); err != nil {
		return sess, err
	}
	if _, err := s.getJSON(ctx, KeyTurns, &sess.Turns); err != nil {
		return sess, err
	}
	if sess.Turns == nil {
		sess.Turns = []model.Turn{}
	}
	return sess, nil
}

// SaveSession writes the session id and the turn log together
func (s *Store) SaveSession(ctx context.Context, sess model.Session) error {
	id, err := json.Marshal(sess.ID)
	if err != nil {
		return fmt.Errorf("encode session id: %w", err)
	}
	turns := sess.Turns
	if turns == nil {
		turns = []model.Turn{}
	}
	log, err := json.Marshal(turns)
	if err != nil {
		return fmt.Errorf("encode turns: %w", err)
	}
	return s.setMany(ctx, map[string][]byte{KeySessionID: id, KeyTurns: log})
}

// ClearSession drops the session id and the turn log in one transaction
func (s *Store) ClearSession(ctx context.Context) error {
	return s.Clear(ctx, KeySessionID, KeyTurns)
}

// TermFilter returns the persisted filter config, or def on first run
func (s *Store) TermFilter(ctx context.Context, def model.TermFilterConfig) (model.TermFilterConfig, error) {
	cfg := def
	ok, err := s.getJSON(ctx, KeyTermFilter, &cfg)
	if err != nil || !ok {
		return def, err
	}
	return cfg, nil
}

// SetTermFilter persists the filter config
func (s *Store) SetTermFilter(ctx context.Context, cfg model.TermFilterConfig) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode term filter: %w", err)
	}
	return s.setMany(ctx, map[string][]byte{KeyTermFilter: data})
}

func (s *Store) setMany(ctx context.Context, values map[string][]byte) error {
	if err := s.backend.SetMany(ctx, values); err != nil {
		return fmt.Errorf("persist: %w", err)
	}
	for key, value := range values {
		s.memory.set(key, value)
	}
	return nil
}

// getJSON decodes key into out. Undecodable values are logged and treated as absent.
func (s *Store) getJSON(ctx context.Context, key string, out any) (bool, error) {
	data, found := s.memory.get(key)
	if !found {
		var err error
		data, found, err = s.backend.Get(ctx, key)
		if err != nil {
			return false, fmt.Errorf("load: %w", err)
		}
		if !found {
			return false, nil
		}
		s.memory.set(key, data)
	}

	if err := json.Unmarshal(data, out); err != nil {
		s.logger.Warn("ignoring undecodable stored value", zap.String("key", key), zap.Error(err))
		return false, nil
	}
	return true, nil
}
