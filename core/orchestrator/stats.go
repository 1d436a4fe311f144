package orchestrator

import "sync"

// Stats counts orchestration outcomes. It is injected rather than global so
// tests and multi-tenant embedders can hold separate counters. All methods
// are safe for concurrent use.
type Stats struct {
	mu        sync.Mutex
	total     int64
	succeeded int64
	failed    int64
}

// NewStats creates an empty counter set.
func NewStats() *Stats {
	return &Stats{}
}

// StatsSnapshot is a point-in-time view of the counters.
type StatsSnapshot struct {
	Total       int64   `json:"total"`
	Succeeded   int64   `json:"succeeded"`
	Failed      int64   `json:"failed"`
	SuccessRate float64 `json:"success_rate"`
}

func (s *Stats) recordSuccess() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.total++
	s.succeeded++
}

func (s *Stats) recordFailure() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.total++
	s.failed++
}

// Snapshot returns the current counters. SuccessRate is 0 when no calls have
// been recorded.
func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := StatsSnapshot{
		Total:     s.total,
		Succeeded: s.succeeded,
		Failed:    s.failed,
	}

	if s.total > 0 {
		snapshot.SuccessRate = float64(s.succeeded) / float64(s.total)
	}

	return snapshot
}

// Reset clears all counters.
func (s *Stats) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.total = 0
	s.succeeded = 0
	s.failed = 0
}
