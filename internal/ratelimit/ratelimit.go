// Package ratelimit implements sliding-window request counters keyed by
// "{route}:{client-ip}".
package ratelimit

import (
	"context"
	"time"
)

// Limiter decides whether one more request under key is allowed
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// Window is the shared limit configuration
type Window struct {
	Max    int           // requests allowed inside one window
	Period time.Duration // window length
}
