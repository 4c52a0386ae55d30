// Package session owns one conversation: its identifier, its turn log and the
// single in-flight question.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/coursepilot/internal/chat"
	"github.com/ppiankov/coursepilot/internal/logging"
	"github.com/ppiankov/coursepilot/internal/model"
	"github.com/ppiankov/coursepilot/internal/term"
)

var (
	// ErrBusy rejects a question while another one is awaiting its answer
	ErrBusy = errors.New("another question is still in flight")

	// ErrEmptyQuery rejects blank questions
	ErrEmptyQuery = errors.New("empty query")
)

// State is the position of the manager in the turn lifecycle
type State int

const (
	Idle State = iota
	Sending
	AwaitingResponse
	Completed
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Sending:
		return "sending"
	case AwaitingResponse:
		return "awaiting-response"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Event reports a state change to subscribers
type Event struct {
	State   State
	Pending bool          // A request is on the wire
	Latency time.Duration // Set on Completed and Failed
	Turn    *model.Turn   // The turn appended by this transition, if any
}

// Store is the persistence the manager reads context from and writes the turn log to
type Store interface {
	Get(ctx context.Context, kind model.Kind) (model.ExtractionBatch, bool, error)
	LoadSession(ctx context.Context) (model.Session, error)
	SaveSession(ctx context.Context, sess model.Session) error
	ClearSession(ctx context.Context) error
	TermFilter(ctx context.Context, def model.TermFilterConfig) (model.TermFilterConfig, error)
}

// Options tune the manager
type Options struct {
	HistoryWindow int                    // Recent turns sent along with a question
	DefaultFilter model.TermFilterConfig // Used until the user stores a filter
	Now           func() time.Time
	NewID         func() string
}

// Manager is the single owner of the session state. All writes go through it.
type Manager struct {
	mu      sync.Mutex
	state   State
	session model.Session
	subs    map[int]chan Event
	nextSub int

	backend chat.Backend
	store   Store
	opts    Options
	logger  *zap.Logger
}

// New creates a manager with an empty session; call Load to restore the persisted one
func New(backend chat.Backend, store Store, opts Options, logger *zap.Logger) *Manager {
	if opts.HistoryWindow <= 0 {
		opts.HistoryWindow = 6
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = func() string { return uuid.NewString() }
	}
	return &Manager{
		session: model.Session{Turns: []model.Turn{}},
		subs:    make(map[int]chan Event),
		backend: backend,
		store:   store,
		opts:    opts,
		logger:  logging.OrNop(logger),
	}
}

// Load restores the persisted session. An absent session is an empty one.
func (m *Manager) Load(ctx context.Context) error {
	sess, err := m.store.LoadSession(ctx)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Idle {
		return ErrBusy
	}
	m.session = sess
	return nil
}

// SessionID returns the current identifier, empty before the first question
func (m *Manager) SessionID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session.ID
}

// State returns the current lifecycle state
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// History returns a copy of the turn log, oldest first
func (m *Manager) History() []model.Turn {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Turn, len(m.session.Turns))
	copy(out, m.session.Turns)
	return out
}

// Subscribe returns a channel of state changes and a function to stop receiving them.
// Slow subscribers miss events rather than block the manager.
func (m *Manager) Subscribe() (<-chan Event, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextSub
	m.nextSub++
	ch := make(chan Event, 8)
	m.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			delete(m.subs, id)
			close(ch)
		})
	}
}

// Ask sends one question and waits for its answer. The returned turn is the
// assistant turn that was appended: the answer, or a readable failure
// explanation when err is non-nil. ErrEmptyQuery and ErrBusy leave the log untouched.
func (m *Manager) Ask(ctx context.Context, query string) (model.Turn, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return model.Turn{}, ErrEmptyQuery
	}

	m.mu.Lock()
	if m.state != Idle {
		m.mu.Unlock()
		return model.Turn{}, ErrBusy
	}
	if m.session.ID == "" {
		m.session.ID = m.opts.NewID()
	}
	recent := m.session.Recent(m.opts.HistoryWindow)
	userTurn := model.Turn{Role: model.RoleUser, Content: query, Timestamp: m.opts.Now().UTC()}
	m.session.Turns = append(m.session.Turns, userTurn)
	m.setState(Sending, Event{Turn: &userTurn})
	snapshot := m.snapshotLocked()
	m.mu.Unlock()

	m.persist(ctx, snapshot)

	req := chat.Request{
		Query:       query,
		Context:     m.assemble(ctx),
		SessionID:   snapshot.ID,
		RecentTurns: recent,
	}

	m.mu.Lock()
	m.setState(AwaitingResponse, Event{Pending: true})
	m.mu.Unlock()

	start := time.Now()
	resp, err := m.backend.Query(ctx, req)
	latency := time.Since(start)

	reply := model.Turn{
		Role:      model.RoleAssistant,
		Timestamp: m.opts.Now().UTC(),
		LatencyMS: latency.Milliseconds(),
	}
	final := Completed
	if err != nil {
		reply.Content = Explain(err)
		reply.Failed = true
		final = Failed
		m.logger.Warn("chat request failed",
			zap.String("session", snapshot.ID),
			zap.Duration("latency", latency),
			zap.Error(err))
	} else {
		reply.Content = resp.Response
		m.logger.Debug("chat request answered",
			zap.String("session", snapshot.ID),
			zap.Duration("latency", latency))
	}

	m.mu.Lock()
	m.session.Turns = append(m.session.Turns, reply)
	m.setState(final, Event{Latency: latency, Turn: &reply})
	snapshot = m.snapshotLocked()
	m.mu.Unlock()

	m.persist(context.WithoutCancel(ctx), snapshot)

	m.mu.Lock()
	m.setState(Idle, Event{})
	m.mu.Unlock()

	return reply, err
}

// Clear drops the session identifier and the turn log in one persisted write
func (m *Manager) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Idle {
		return ErrBusy
	}
	if err := m.store.ClearSession(ctx); err != nil {
		return err
	}
	m.session = model.Session{Turns: []model.Turn{}}
	return nil
}

// assemble reads every kind concurrently and applies the term filter.
// Unreadable kinds count as empty: the question still goes out.
func (m *Manager) assemble(ctx context.Context) term.Snapshot {
	var (
		snap   term.Snapshot
		filter = m.opts.DefaultFilter
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		cfg, err := m.store.TermFilter(gctx, m.opts.DefaultFilter)
		if err != nil {
			m.logger.Warn("read term filter", zap.Error(err))
			return nil
		}
		filter = cfg
		return nil
	})
	for _, kind := range model.AllKinds {
		g.Go(func() error {
			batch, ok, err := m.store.Get(gctx, kind)
			if err != nil {
				m.logger.Warn("read stored batch", zap.String("kind", string(kind)), zap.Error(err))
				return nil
			}
			if !ok {
				return nil
			}
			switch kind {
			case model.KindCourses:
				snap.Courses = batch.Courses
			case model.KindGrades:
				snap.Grades = batch.Grades
			case model.KindAssignments:
				snap.Assignments = batch.Assignments
			case model.KindAnnouncements:
				snap.Announcements = batch.Announcements
			}
			return nil
		})
	}
	_ = g.Wait()

	return term.Apply(snap, filter, m.opts.Now())
}

func (m *Manager) persist(ctx context.Context, sess model.Session) {
	if err := m.store.SaveSession(ctx, sess); err != nil {
		m.logger.Warn("persist session", zap.String("session", sess.ID), zap.Error(err))
	}
}

func (m *Manager) snapshotLocked() model.Session {
	turns := make([]model.Turn, len(m.session.Turns))
	copy(turns, m.session.Turns)
	return model.Session{ID: m.session.ID, Turns: turns}
}

// setState must be called with mu held
func (m *Manager) setState(s State, ev Event) {
	m.state = s
	ev.State = s
	ev.Pending = s == AwaitingResponse
	for _, ch := range m.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
