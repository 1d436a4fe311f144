// Package ledger tracks per-identity token consumption against a monthly
// allowance. Quota periods are calendar months in UTC: the first request
// observed after a month boundary resets that identity's counter before any
// check is applied.
package ledger

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrQuotaExceeded is returned by Check when admitting the request could push
// the identity past its monthly allowance.
var ErrQuotaExceeded = errors.New("ledger: monthly token quota exceeded")

// Record is one immutable usage entry. Entries are append-only; corrections
// are new entries, never edits.
type Record struct {
	Identity  string    `json:"identity"`
	Provider  string    `json:"provider"`
	Model     string    `json:"model,omitempty"`
	Tokens    int64     `json:"tokens"`
	Cost      float64   `json:"cost"`
	CreatedAt time.Time `json:"created_at"`
}

// quotaState holds one identity's counters. Each state has its own mutex so
// heavy traffic from one identity never blocks another.
type quotaState struct {
	mu      sync.Mutex
	used    int64
	resetAt time.Time
	records []Record
}

// Ledger is the shared usage ledger. The outer RWMutex guards only the
// identity map; per-identity updates serialize on the state's own mutex.
type Ledger struct {
	mu        sync.RWMutex
	allowance int64
	states    map[string]*quotaState
}

// New creates a Ledger granting every identity the given number of tokens per
// calendar month.
func New(allowance int64) *Ledger {
	return &Ledger{
		allowance: allowance,
		states:    make(map[string]*quotaState),
	}
}

// Check admits or rejects a request that may consume up to estimate tokens.
// The identity's period is reset first if the calendar month has rolled over,
// so a stale counter can never deny a fresh month's request. Rejection is
// pessimistic: used + estimate > allowance fails even though the actual spend
// may come in lower.
func (l *Ledger) Check(identity string, estimate int64) error {
	state := l.state(identity)

	state.mu.Lock()
	defer state.mu.Unlock()

	state.maybeReset(time.Now().UTC())

	if state.used+estimate > l.allowance {
		return fmt.Errorf("%w: identity %q used %d of %d, estimate %d",
			ErrQuotaExceeded, identity, state.used, l.allowance, estimate)
	}

	return nil
}

// Record appends a usage entry and bumps the identity's counter. A zero
// CreatedAt is stamped with the current time.
func (l *Ledger) Record(rec Record) {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	state := l.state(rec.Identity)

	state.mu.Lock()
	defer state.mu.Unlock()

	state.maybeReset(time.Now().UTC())
	state.used += rec.Tokens
	state.records = append(state.records, rec)
}

// Used returns the identity's token consumption in the current period.
func (l *Ledger) Used(identity string) int64 {
	state := l.state(identity)

	state.mu.Lock()
	defer state.mu.Unlock()

	state.maybeReset(time.Now().UTC())
	return state.used
}

// Allowance returns the per-identity monthly allowance.
func (l *Ledger) Allowance() int64 {
	return l.allowance
}

// Records returns a copy of the identity's entries in the current period.
func (l *Ledger) Records(identity string) []Record {
	state := l.state(identity)

	state.mu.Lock()
	defer state.mu.Unlock()

	state.maybeReset(time.Now().UTC())

	out := make([]Record, len(state.records))
	copy(out, state.records)
	return out
}

// state returns the identity's quota state, creating it on first use.
func (l *Ledger) state(identity string) *quotaState {
	l.mu.RLock()
	state, ok := l.states[identity]
	l.mu.RUnlock()

	if ok {
		return state
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Re-check: another goroutine may have created it between the locks.
	if state, ok := l.states[identity]; ok {
		return state
	}

	state = &quotaState{resetAt: nextMonthStart(time.Now().UTC())}
	l.states[identity] = state
	return state
}

// maybeReset starts a new quota period when now has passed resetAt. Caller
// must hold the state's mutex.
func (s *quotaState) maybeReset(now time.Time) {
	if now.Before(s.resetAt) {
		return
	}

	s.used = 0
	s.records = nil
	s.resetAt = nextMonthStart(now)
}

// nextMonthStart returns the first instant of the month after now, in UTC.
func nextMonthStart(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
}
