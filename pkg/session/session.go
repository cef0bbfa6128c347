// Package session tracks the single active call session and owns its
// lifecycle transitions.
//
// At most one CallSession is active process-wide. Starting a session
// records the fixed opening greeting as the session's first agent
// exchange, which guarantees that every later exchange has a
// chronological predecessor for context threading.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/voxlinehq/voxline/pkg/artifact"
	"github.com/voxlinehq/voxline/pkg/ledger"
)

// Sentinel errors.
var (
	// ErrAlreadyActive is returned by Start when a session is open.
	ErrAlreadyActive = errors.New("session: a call session is already active")

	// ErrNoActiveSession is returned by End when no session is open.
	ErrNoActiveSession = errors.New("session: no active call session")
)

// Greeting values recorded on the opening exchange.
const (
	// GreetingInput marks the opening exchange; it has no triggering
	// transcript.
	GreetingInput = "Start of Conversation"

	// GreetingText is the agent's fixed opening utterance.
	GreetingText = "Γεία σας πως θα μπορούσα να σας εξυπηρετήσω;"
)

// Registry owns the active-session slot.
type Registry struct {
	ledger   *ledger.Ledger
	greeting string
	logger   *slog.Logger

	mu     sync.Mutex
	active atomic.Pointer[ledger.CallSession]
	halt   func()
}

// NewRegistry creates a Registry. An empty greeting defaults to
// GreetingText. logger may be nil for slog.Default.
func NewRegistry(led *ledger.Ledger, greeting string, logger *slog.Logger) *Registry {
	if greeting == "" {
		greeting = GreetingText
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{ledger: led, greeting: greeting, logger: logger}
}

// OnEnd registers a halt function invoked when a session ends, before the
// active handle is cleared. The pipeline registers its Stop here so that
// ending a call signals the in-flight capture loop.
func (r *Registry) OnEnd(halt func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.halt = halt
}

// Start opens a new call session and records the opening greeting
// exchange. Fails with ErrAlreadyActive if a session is open.
func (r *Registry) Start(ctx context.Context) (*ledger.CallSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active.Load() != nil {
		return nil, ErrAlreadyActive
	}

	s, err := r.ledger.CreateSession(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := r.ledger.Append(ctx, s.ID, ledger.SpeakerAgent, GreetingInput, r.greeting, artifact.GreetingAudio); err != nil {
		return nil, err
	}

	r.active.Store(s)
	r.logger.Info("session: started", "session_id", s.ID)
	return s, nil
}

// End closes the active session. The session row is retained; only the
// active handle is cleared. Any in-flight pipeline activity is signaled
// to stop, but End does not wait for it to drain. Callers that care
// should poll the processing flag.
func (r *Registry) End(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.active.Load()
	if s == nil {
		return ErrNoActiveSession
	}

	if r.halt != nil {
		r.halt()
	}
	r.active.Store(nil)
	r.logger.Info("session: ended", "session_id", s.ID)
	return nil
}

// Active returns the active session, or nil when none is open.
// Safe for concurrent use without holding the registry lock.
func (r *Registry) Active() *ledger.CallSession {
	return r.active.Load()
}
