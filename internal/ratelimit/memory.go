package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Memory is a process-local sliding window limiter. Timestamps older than the
// window are pruned lazily on access; idle keys are never evicted.
type Memory struct {
	window Window
	now    func() time.Time

	mu   sync.Mutex
	hits map[string][]time.Time
}

// NewMemory returns an in-process limiter
func NewMemory(w Window) *Memory {
	return &Memory{window: w, now: time.Now, hits: make(map[string][]time.Time)}
}

// Allow records a hit for key and reports whether it fits in the window
func (m *Memory) Allow(_ context.Context, key string) (bool, error) {
	now := m.now()
	cutoff := now.Add(-m.window.Period)

	m.mu.Lock()
	defer m.mu.Unlock()

	recent := m.hits[key][:0]
	for _, ts := range m.hits[key] {
		if ts.After(cutoff) {
			recent = append(recent, ts)
		}
	}
	if len(recent) >= m.window.Max {
		m.hits[key] = recent
		return false, nil
	}
	m.hits[key] = append(recent, now)
	return true, nil
}
