// Package subscription holds the single shared (symbols, interval) pair that
// governs what the broadcast loop polls and how often.
package subscription

import (
	"errors"
	"sync"
	"time"
)

// ErrInvalidInterval is returned when a client supplies a non-positive
// interval. The previous interval is retained in that case.
var ErrInvalidInterval = errors.New("interval must be positive")

// State is the global subscription shared by all connections. Reads and
// writes go through a mutex so the broadcast loop never observes a torn
// (symbols, interval) pair.
type State struct {
	mu       sync.RWMutex
	symbols  []string
	interval time.Duration
}

// NewState creates the subscription state with its initial defaults.
func NewState(symbols []string, interval time.Duration) *State {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &State{
		symbols:  append([]string(nil), symbols...),
		interval: interval,
	}
}

// Snapshot returns a consistent copy of (symbols, interval) for one polling
// cycle. The returned slice is owned by the caller.
func (s *State) Snapshot() ([]string, time.Duration) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.symbols...), s.interval
}

// Change is a partial update to the subscription. A nil Symbols slice leaves
// the current list unchanged; an empty non-nil slice replaces it (and yields
// empty broadcasts). A nil Interval leaves the current interval unchanged.
type Change struct {
	Symbols  []string
	Interval *time.Duration
}

// Apply replaces the changed fields as a single atomic unit. An invalid
// interval is rejected field-wise: the symbols part of the same change still
// applies and ErrInvalidInterval is returned for the caller to log.
func (s *State) Apply(ch Change) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ch.Symbols != nil {
		s.symbols = append([]string(nil), ch.Symbols...)
	}
	if ch.Interval != nil {
		if *ch.Interval <= 0 {
			return ErrInvalidInterval
		}
		s.interval = *ch.Interval
	}
	return nil
}
