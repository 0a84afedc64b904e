// Package ratelimit caps how many scores a user may submit per window.
package ratelimit

import (
	"context"
	"time"

	"github.com/clickrush/apiserver/config"
	"github.com/clickrush/apiserver/internal/scoring"
	"github.com/google/uuid"
)

// Limiter decides whether a user may submit another score at now.
// It returns a *scoring.Error of KindRateLimited when the cap is reached.
type Limiter interface {
	Check(ctx context.Context, userID uuid.UUID, now time.Time) error
}

// Counter counts a user's persisted scores created at or after since.
type Counter interface {
	CountSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error)
}

// StoreLimiter is a read-only guard over persisted scores. Persisting a
// score is what advances the window, so two concurrent submissions may
// both pass.
type StoreLimiter struct {
	counter Counter
	cfg     config.RateLimitConfig
}

func NewStoreLimiter(counter Counter, cfg config.RateLimitConfig) *StoreLimiter {
	return &StoreLimiter{counter: counter, cfg: cfg}
}

func (l *StoreLimiter) Check(ctx context.Context, userID uuid.UUID, now time.Time) error {
	if !l.cfg.Enabled() {
		return nil
	}

	count, err := l.counter.CountSince(ctx, userID, now.Add(-l.cfg.Window))
	if err != nil {
		return err
	}
	if count >= l.cfg.MaxRequests {
		return scoring.RateLimited(l.cfg.Window)
	}
	return nil
}
