package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/leofalp/duet/core/auth"
	"github.com/rs/xid"
)

// Conn is the transport half of a session. Implementations wrap a
// websocket or any other bidirectional push channel. Send and Close
// must be safe for concurrent use.
type Conn interface {
	Send(event Event) error
	Close() error
}

// State is the lifecycle position of a connection.
type State int

const (
	// StateConnected is the initial, unauthenticated state.
	StateConnected State = iota
	// StateAuthenticated means an identity is bound and a conversation
	// id is assigned.
	StateAuthenticated
	// StateClosed is terminal; no further events are delivered.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateAuthenticated:
		return "authenticated"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session is one live connection. It is created on connection open and
// destroyed on close; orchestrator calls made on its behalf reference it
// but never outlive its context.
type Session struct {
	ID string

	conn   Conn
	ctx    context.Context
	cancel context.CancelFunc

	mu             sync.Mutex
	state          State
	identity       auth.Identity
	conversationID string
	authFailures   int

	alive atomic.Bool
}

func newSession(conn Conn) *Session {
	ctx, cancel := context.WithCancel(context.Background())

	s := &Session{
		ID:     xid.New().String(),
		conn:   conn,
		ctx:    ctx,
		cancel: cancel,
		state:  StateConnected,
	}
	s.alive.Store(true)

	return s
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// Identity returns the bound identity; zero until authenticated.
func (s *Session) Identity() auth.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.identity
}

// ConversationID returns the bound conversation id; empty until
// authenticated.
func (s *Session) ConversationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.conversationID
}

// bind moves the session to the authenticated state.
func (s *Session) bind(identity auth.Identity, conversationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = StateAuthenticated
	s.identity = identity
	s.conversationID = conversationID
	s.authFailures = 0
}

// recordAuthFailure bumps the failure counter and reports the new total.
func (s *Session) recordAuthFailure() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.authFailures++

	return s.authFailures
}

// close marks the session closed and cancels its context. Reports false
// when the session was already closed.
func (s *Session) close() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		return false
	}

	s.state = StateClosed
	s.cancel()

	return true
}

// errSessionClosed reports an attempted delivery to a closed session.
var errSessionClosed = errors.New("session closed")

// send delivers one event, best-effort. A closed session delivers
// nothing: in-flight goroutines may still try to emit trailing events
// after a disconnect, and those must never reach the transport. Errors
// surface to the caller so the manager can decide whether the
// connection is gone.
func (s *Session) send(event Event) error {
	s.mu.Lock()
	closed := s.state == StateClosed
	s.mu.Unlock()

	if closed {
		return errSessionClosed
	}

	return s.conn.Send(event)
}
