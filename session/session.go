package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/paperflow/config"
	"github.com/dshills/paperflow/export"
	"github.com/dshills/paperflow/paper"
	"github.com/dshills/paperflow/store"
	"github.com/dshills/paperflow/workflow"
)

// ErrSessionNotFound is returned for unknown session ids.
var ErrSessionNotFound = errors.New("session: not found")

// ErrSessionComplete is returned when a decision arrives after completion.
var ErrSessionComplete = errors.New("session: already complete")

// trivialResponses are user confirmations carrying no information. When the
// manager requires a user response, these are rejected so a decision always
// reflects actual review.
var trivialResponses = map[string]bool{
	"":         true,
	"approve":  true,
	"ok":       true,
	"yes":      true,
	"y":        true,
	"proceed":  true,
	"continue": true,
	"确认":       true,
	"批准":       true,
	"同意":       true,
	"好":        true,
	"是":        true,
}

// EngineFactory builds an engine wired to one session's handler and
// progress callback.
type EngineFactory func(handler workflow.Handler, progress workflow.ProgressFunc) (*workflow.Engine, error)

// Session is one live run and its conversation state.
type Session struct {
	id      string
	query   string
	handler *CheckpointHandler
	cancel  context.CancelFunc
	done    chan struct{}

	mu             sync.Mutex
	startedAt      time.Time
	phase          workflow.Phase
	phaseDetails   string
	phaseUpdatedAt time.Time
	result         *paper.PaperCollection
	runErr         error
	complete       bool
}

func (s *Session) setPhase(phase workflow.Phase, details string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase = phase
	s.phaseDetails = details
	s.phaseUpdatedAt = time.Now().UTC()
}

func (s *Session) finish(coll paper.PaperCollection, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.runErr = err
	} else {
		s.result = &coll
	}
	s.complete = true
}

func (s *Session) isComplete() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.complete
}

// Manager owns the sessions map and translates tool calls into checkpoint
// decisions.
type Manager struct {
	newEngine           EngineFactory
	decideTimeout       time.Duration
	pollInterval        time.Duration
	requireUserResponse bool
	archive             store.Store

	mu       sync.Mutex
	sessions map[string]*Session
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithArchive persists each completed collection to st, keyed by session id.
// Export falls back to the archive when the session is gone.
func WithArchive(st store.Store) ManagerOption {
	return func(m *Manager) { m.archive = st }
}

// NewManager creates a Manager. Zero timing values in cfg take the defaults
// (15s decide timeout, 50ms poll interval).
func NewManager(factory EngineFactory, cfg config.SessionConfig, opts ...ManagerOption) *Manager {
	if cfg.DecideTimeout <= 0 {
		cfg.DecideTimeout = 15 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 50 * time.Millisecond
	}
	m := &Manager{
		newEngine:           factory,
		decideTimeout:       cfg.DecideTimeout,
		pollInterval:        cfg.PollInterval,
		requireUserResponse: cfg.RequireUserResponse,
		sessions:            make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start creates a session, launches its run in the background, and waits up
// to the decide timeout for the first checkpoint or completion.
func (m *Manager) Start(ctx context.Context, query string) (Snapshot, error) {
	if strings.TrimSpace(query) == "" {
		return Snapshot{}, errors.New("session: query must not be empty")
	}

	sess := &Session{
		id:        uuid.NewString(),
		query:     query,
		handler:   NewCheckpointHandler(),
		done:      make(chan struct{}),
		startedAt: time.Now().UTC(),
	}

	eng, err := m.newEngine(sess.handler, sess.setPhase)
	if err != nil {
		return Snapshot{}, fmt.Errorf("session: build engine: %w", err)
	}

	// The run outlives the start request; cancellation comes from Cleanup,
	// not from the caller's ctx.
	runCtx, cancel := context.WithCancel(context.Background())
	sess.cancel = cancel

	m.mu.Lock()
	m.sessions[sess.id] = sess
	m.mu.Unlock()

	go func() {
		defer close(sess.done)
		coll, err := eng.Run(runCtx, query)
		sess.finish(coll, err)
		if err == nil && m.archive != nil {
			saveCtx, saveCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer saveCancel()
			_ = m.archive.Save(saveCtx, store.Record{
				RunID:      sess.id,
				Query:      query,
				SavedAt:    time.Now().UTC(),
				Collection: coll,
			})
		}
	}()

	m.wait(ctx, sess, "")
	return m.snapshot(sess), nil
}

// DecideRequest is one verdict from the tool caller.
type DecideRequest struct {
	// Action is approve, edit, or reject (case-insensitive).
	Action string
	// Data optionally carries a revised strategy or feedback mapping.
	Data map[string]any
	// Note is free-text feedback.
	Note string
	// UserResponse is the caller's literal reply, checked against the
	// trivial-response guard when the manager requires one.
	UserResponse string
}

// Decide resolves the session's pending checkpoint and waits for the run to
// advance to a new checkpoint or completion before returning. If the run is
// still mid-iteration at the timeout, the snapshot reports progress instead
// of a stale checkpoint.
func (m *Manager) Decide(ctx context.Context, sessionID string, req DecideRequest) (Snapshot, error) {
	sess, err := m.session(sessionID)
	if err != nil {
		return Snapshot{}, err
	}
	if sess.isComplete() {
		return Snapshot{}, ErrSessionComplete
	}
	pending := sess.handler.Pending()
	if pending == nil {
		return Snapshot{}, ErrNoPendingCheckpoint
	}

	if m.requireUserResponse {
		resp := strings.ToLower(strings.TrimSpace(req.UserResponse))
		if trivialResponses[resp] {
			return Snapshot{}, errors.New("session: a substantive user_response is required; review the checkpoint before deciding")
		}
	}

	action, err := parseAction(req.Action)
	if err != nil {
		return Snapshot{}, err
	}

	decidedSig := pending.Signature()
	decision := workflow.Decision{Action: action, RevisedData: req.Data, Note: req.Note}
	if err := sess.handler.SetDecision(ctx, decision); err != nil {
		return Snapshot{}, err
	}

	m.wait(ctx, sess, decidedSig)
	return m.snapshot(sess), nil
}

// Get returns the session's current snapshot.
func (m *Manager) Get(sessionID string) (Snapshot, error) {
	sess, err := m.session(sessionID)
	if err != nil {
		return Snapshot{}, err
	}
	return m.snapshot(sess), nil
}

// Export renders a completed session's collection. Falls back to the archive
// when the session has been cleaned up.
func (m *Manager) Export(ctx context.Context, sessionID, format string) (string, error) {
	sess, err := m.session(sessionID)
	if err == nil {
		sess.mu.Lock()
		result := sess.result
		complete := sess.complete
		runErr := sess.runErr
		sess.mu.Unlock()

		if !complete {
			return "", errors.New("session: run still in progress, nothing to export")
		}
		if runErr != nil {
			return "", fmt.Errorf("session: run failed: %w", runErr)
		}
		return export.Export(*result, format)
	}

	if m.archive != nil {
		rec, archiveErr := m.archive.Load(ctx, sessionID)
		if archiveErr == nil {
			return export.Export(rec.Collection, format)
		}
	}
	return "", err
}

// Cleanup cancels the session's run if still going and removes it.
func (m *Manager) Cleanup(sessionID string) error {
	m.mu.Lock()
	sess, ok := m.sessions[sessionID]
	delete(m.sessions, sessionID)
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}

	sess.cancel()
	<-sess.done
	return nil
}

func (m *Manager) session(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// wait polls until the session completes, a checkpoint with a signature
// different from decidedSig is pending, the decide timeout elapses, or ctx
// is canceled.
func (m *Manager) wait(ctx context.Context, sess *Session, decidedSig string) {
	deadline := time.Now().Add(m.decideTimeout)
	for {
		if sess.isComplete() {
			return
		}
		if p := sess.handler.Pending(); p != nil && p.Signature() != decidedSig {
			return
		}
		if time.Now().After(deadline) {
			return
		}
		select {
		case <-time.After(m.pollInterval):
		case <-ctx.Done():
			return
		case <-sess.done:
			return
		}
	}
}

func parseAction(raw string) (workflow.Action, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "approve":
		return workflow.Approve, nil
	case "edit":
		return workflow.Edit, nil
	case "reject":
		return workflow.Reject, nil
	default:
		return "", fmt.Errorf("session: unknown action %q (want approve, edit, or reject)", raw)
	}
}
