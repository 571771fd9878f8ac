package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/alanyoungcy/sentinel/internal/domain"
	"github.com/alanyoungcy/sentinel/internal/lock"
)

// SingleFlight wraps h with an in-process re-entrancy guard: if a previous
// firing of the same handler is still running, the new firing is skipped.
// This serializes a job within one process only; use WithLock for
// cross-process serialization.
func SingleFlight(h Handler, logger *slog.Logger) Handler {
	var running atomic.Bool
	return func(ctx context.Context) error {
		if !running.CompareAndSwap(false, true) {
			logger.Debug("previous firing still running, skipping")
			return nil
		}
		defer running.Store(false)
		return h(ctx)
	}
}

// WithLock wraps h in a distributed-lock scope so at most one process runs it
// at a time. Lock contention is treated as skip-this-cycle: another process
// is already doing the work. The TTL must exceed the expected handler
// duration so a second holder cannot slip in mid-run.
func WithLock(m *lock.Manager, key string, ttl time.Duration, h Handler, logger *slog.Logger) Handler {
	return func(ctx context.Context) error {
		err := m.Execute(ctx, key, ttl, h)
		if errors.Is(err, domain.ErrLockAcquireTimeout) {
			logger.Debug("lock held elsewhere, skipping cycle", slog.String("key", key))
			return nil
		}
		return err
	}
}
