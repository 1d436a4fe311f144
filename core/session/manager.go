// Package session owns the set of live persistent connections. Each
// connection walks a small state machine (connected, authenticated,
// closed): it authenticates against the auth collaborator, binds a
// conversation id, routes inbound chat messages to the orchestrator,
// fans status events out to peers, and is probed for liveness on a
// fixed interval.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/leofalp/duet/core/auth"
	"github.com/leofalp/duet/core/history"
	"github.com/leofalp/duet/core/ledger"
	"github.com/leofalp/duet/core/orchestrator"
	"github.com/rs/xid"
)

// Error kinds surfaced to clients in error events.
const (
	kindAuthenticationRequired = "authentication_required"
	kindInvalidCredential      = "invalid_credential"
	kindValidationFailure      = "validation_failure"
	kindQuotaExceeded          = "quota_exceeded"
	kindProviderUnavailable    = "provider_unavailable"
	kindAllProvidersFailed     = "all_providers_failed"
	kindInternal               = "internal"
)

const (
	// DefaultProbeInterval is the liveness probe period.
	DefaultProbeInterval = 30 * time.Second

	// DefaultMaxAuthFailures closes a connection after this many
	// consecutive failed credentials.
	DefaultMaxAuthFailures = 3

	defaultChatTemperature = 0.7
	defaultChatMaxTokens   = 1024
	defaultHistoryLimit    = 50
)

// Config carries the manager's collaborators.
type Config struct {
	Auth         auth.Authenticator
	Orchestrator *orchestrator.Orchestrator
	History      history.Store

	// ProbeInterval overrides DefaultProbeInterval when positive.
	ProbeInterval time.Duration

	// MaxAuthFailures overrides DefaultMaxAuthFailures when positive.
	MaxAuthFailures int

	Logger *slog.Logger
}

// Manager tracks live sessions and drives their state machines. All
// methods are safe for concurrent use.
type Manager struct {
	auth            auth.Authenticator
	orch            *orchestrator.Orchestrator
	history         history.Store
	probeInterval   time.Duration
	maxAuthFailures int
	logger          *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session

	// inflight tracks per-chat goroutines so Shutdown can wait for them.
	inflight sync.WaitGroup
}

// NewManager validates collaborators and builds a manager with no live
// sessions.
func NewManager(config Config) (*Manager, error) {
	if config.Auth == nil {
		return nil, fmt.Errorf("session: auth collaborator is required")
	}

	if config.Orchestrator == nil {
		return nil, fmt.Errorf("session: orchestrator is required")
	}

	if config.ProbeInterval <= 0 {
		config.ProbeInterval = DefaultProbeInterval
	}

	if config.MaxAuthFailures <= 0 {
		config.MaxAuthFailures = DefaultMaxAuthFailures
	}

	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	return &Manager{
		auth:            config.Auth,
		orch:            config.Orchestrator,
		history:         config.History,
		probeInterval:   config.ProbeInterval,
		maxAuthFailures: config.MaxAuthFailures,
		logger:          config.Logger,
		sessions:        make(map[string]*Session),
	}, nil
}

// Open registers a new connection in the connected state and returns its
// session.
func (m *Manager) Open(conn Conn) *Session {
	s := newSession(conn)

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	m.logger.Debug("session opened", slog.String("session_id", s.ID))

	return s
}

// Close removes a session from the live set, cancels any in-flight
// orchestrator call made on its behalf, and closes the transport.
// Idempotent.
func (m *Manager) Close(s *Session) {
	if !s.close() {
		return
	}

	m.mu.Lock()
	delete(m.sessions, s.ID)
	m.mu.Unlock()

	if err := s.conn.Close(); err != nil {
		m.logger.Debug("session transport close failed",
			slog.String("session_id", s.ID),
			slog.String("error", err.Error()))
	}

	m.logger.Debug("session closed", slog.String("session_id", s.ID))
}

// Len reports the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.sessions)
}

// HandleInbound dispatches one inbound message according to the session's
// state. Unauthenticated sessions may only authenticate or answer probes;
// anything else yields an error event without closing the connection.
func (m *Manager) HandleInbound(s *Session, inbound Inbound) {
	if s.State() == StateClosed {
		return
	}

	switch inbound.Type {
	case InboundPong:
		s.alive.Store(true)
	case InboundAuth:
		m.handleAuth(s, inbound)
	case InboundChat:
		m.handleChat(s, inbound)
	case InboundTyping:
		m.handleTyping(s, inbound)
	case InboundHistory:
		m.handleHistory(s, inbound)
	default:
		m.sendError(s, kindValidationFailure, fmt.Sprintf("unknown message type %q", inbound.Type))
	}
}

// handleAuth verifies the credential and binds identity and conversation
// id. A failed credential leaves the session connected and retryable
// until the failure threshold closes it.
func (m *Manager) handleAuth(s *Session, inbound Inbound) {
	if s.State() == StateAuthenticated {
		m.sendError(s, kindValidationFailure, "already authenticated")
		return
	}

	identity, err := m.auth.Verify(s.ctx, inbound.Credential)
	if err != nil {
		failures := s.recordAuthFailure()

		m.logger.Info("session auth failed",
			slog.String("session_id", s.ID),
			slog.Int("failures", failures))

		m.sendError(s, kindInvalidCredential, "credential rejected")

		if failures >= m.maxAuthFailures {
			m.Close(s)
		}

		return
	}

	conversationID := inbound.ConversationID
	if conversationID == "" {
		conversationID = xid.New().String()
	}

	s.bind(identity, conversationID)

	m.logger.Info("session authenticated",
		slog.String("session_id", s.ID),
		slog.String("identity", identity.ID),
		slog.String("conversation_id", conversationID))

	m.sendEvent(s, Event{Type: EventAck, ConversationID: conversationID})
}

// handleChat acknowledges immediately, then runs the orchestrator call in
// its own goroutine on the session's context so a disconnect cancels it.
func (m *Manager) handleChat(s *Session, inbound Inbound) {
	if !m.requireAuthenticated(s) {
		return
	}

	identity := s.Identity()
	conversationID := s.ConversationID()

	req := orchestrator.Request{
		Prompt:         inbound.Prompt,
		Preference:     orchestrator.ParsePreference(inbound.Preference),
		Temperature:    defaultChatTemperature,
		MaxTokens:      inbound.MaxTokens,
		Identity:       identity.ID,
		ConversationID: conversationID,
	}

	// nil means the client left it out; an explicit 0 is a valid
	// deterministic setting and passes through.
	if inbound.Temperature != nil {
		req.Temperature = *inbound.Temperature
	}

	if req.MaxTokens == 0 {
		req.MaxTokens = defaultChatMaxTokens
	}

	m.sendEvent(s, Event{Type: EventAck, ConversationID: conversationID})
	m.sendEvent(s, Event{Type: EventTyping, ConversationID: conversationID, Typing: true})

	m.inflight.Add(1)

	go func() {
		defer m.inflight.Done()
		defer m.sendEvent(s, Event{Type: EventTyping, ConversationID: conversationID, Typing: false})

		result, err := m.orch.Handle(s.ctx, req)
		if err != nil {
			if s.ctx.Err() != nil {
				// Disconnected mid-call; nobody is listening.
				return
			}

			kind, message := classifyError(err)
			m.sendError(s, kind, message)

			return
		}

		// Persisted after the call so the prompt is not read back as
		// prior context for its own request.
		m.persistTurn(history.Turn{
			ConversationID: conversationID,
			Identity:       identity.ID,
			Role:           "user",
			Text:           inbound.Prompt,
		})

		providers := strings.Join(result.ProvidersUsed, ",")

		m.persistTurn(history.Turn{
			ConversationID: conversationID,
			Identity:       identity.ID,
			Role:           "assistant",
			Text:           result.Merged,
			Provider:       providers,
		})

		m.sendEvent(s, Event{
			Type:           EventMessage,
			ConversationID: conversationID,
			Text:           result.Merged,
			Provider:       providers,
		})
	}()
}

// handleTyping relays the indicator to every other live session bound to
// the same conversation. Best-effort and never persisted.
func (m *Manager) handleTyping(s *Session, inbound Inbound) {
	if !m.requireAuthenticated(s) {
		return
	}

	conversationID := s.ConversationID()
	event := Event{Type: EventTyping, ConversationID: conversationID, Typing: inbound.Typing}

	for _, peer := range m.snapshot() {
		if peer.ID == s.ID || peer.State() != StateAuthenticated {
			continue
		}

		if peer.ConversationID() != conversationID {
			continue
		}

		_ = peer.send(event)
	}
}

// handleHistory reads prior turns from the store and emits them. Never
// reaches the orchestrator.
func (m *Manager) handleHistory(s *Session, inbound Inbound) {
	if !m.requireAuthenticated(s) {
		return
	}

	if m.history == nil {
		m.sendEvent(s, Event{Type: EventHistory, ConversationID: s.ConversationID()})
		return
	}

	limit := inbound.Limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	turns, err := m.history.ReadTurns(s.ctx, s.ConversationID(), limit)
	if err != nil {
		m.sendError(s, kindInternal, "history unavailable")
		return
	}

	payload := make([]Turn, 0, len(turns))
	for _, turn := range turns {
		payload = append(payload, Turn{Role: turn.Role, Text: turn.Text, Provider: turn.Provider})
	}

	m.sendEvent(s, Event{Type: EventHistory, ConversationID: s.ConversationID(), Turns: payload})
}

// Run drives the liveness probe loop until ctx is cancelled. Each round
// first closes every session that never acknowledged the previous probe,
// then clears the remaining flags and sends a fresh ping.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.probeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.probe()
		}
	}
}

func (m *Manager) probe() {
	for _, s := range m.snapshot() {
		if !s.alive.Load() {
			m.logger.Info("session failed liveness probe", slog.String("session_id", s.ID))
			m.Close(s)

			continue
		}

		s.alive.Store(false)

		if err := s.send(Event{Type: EventPing}); err != nil {
			m.Close(s)
		}
	}
}

// Shutdown closes every live session and waits for in-flight chat
// goroutines to finish.
func (m *Manager) Shutdown() {
	for _, s := range m.snapshot() {
		m.Close(s)
	}

	m.inflight.Wait()
}

func (m *Manager) snapshot() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}

	return sessions
}

func (m *Manager) requireAuthenticated(s *Session) bool {
	if s.State() == StateAuthenticated {
		return true
	}

	m.sendError(s, kindAuthenticationRequired, "authenticate first")

	return false
}

func (m *Manager) persistTurn(turn history.Turn) {
	if m.history == nil {
		return
	}

	// Persistence is best-effort for delivery purposes; a store outage
	// must not break the exchange.
	if err := m.history.AppendTurn(context.Background(), turn); err != nil {
		m.logger.Warn("turn persistence failed",
			slog.String("conversation_id", turn.ConversationID),
			slog.String("error", err.Error()))
	}
}

func (m *Manager) sendEvent(s *Session, event Event) {
	if err := s.send(event); err != nil {
		m.logger.Debug("event delivery failed",
			slog.String("session_id", s.ID),
			slog.String("event_type", string(event.Type)))
	}
}

func (m *Manager) sendError(s *Session, kind, message string) {
	m.sendEvent(s, Event{Type: EventError, ErrorKind: kind, ErrorMessage: message})
}

// classifyError maps orchestration failures to stable event kinds.
func classifyError(err error) (kind, message string) {
	var validationErr *orchestrator.ValidationError
	var unavailableErr *orchestrator.ProviderUnavailableError

	switch {
	case errors.As(err, &validationErr):
		return kindValidationFailure, validationErr.Error()
	case errors.Is(err, ledger.ErrQuotaExceeded):
		return kindQuotaExceeded, err.Error()
	case errors.Is(err, orchestrator.ErrAllProvidersFailed):
		return kindAllProvidersFailed, err.Error()
	case errors.As(err, &unavailableErr):
		return kindProviderUnavailable, unavailableErr.Error()
	case errors.Is(err, auth.ErrInvalidCredential):
		return kindInvalidCredential, err.Error()
	default:
		return kindInternal, err.Error()
	}
}
