// Package lock provides cross-process mutual exclusion on top of any store
// offering atomic set-if-absent-with-TTL and compare-then-delete primitives.
// Ownership is established purely by token equality in the store, so one
// process can never release another's lease.
package lock

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/sentinel/internal/domain"
)

// releaseTimeout bounds the store call when releasing a lease whose caller
// context may already be cancelled.
const releaseTimeout = 5 * time.Second

// Config holds the acquisition retry policy.
type Config struct {
	MaxRetries int           // additional attempts after the first
	RetryDelay time.Duration // fixed delay between attempts
}

// Manager acquires and releases distributed locks.
type Manager struct {
	store  domain.LockStore
	cfg    Config
	logger *slog.Logger
}

// NewManager creates a lock Manager over the given store.
func NewManager(store domain.LockStore, cfg Config, logger *slog.Logger) *Manager {
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 100 * time.Millisecond
	}
	return &Manager{
		store:  store,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "lock")),
	}
}

// Lease is a held lock. It must be released by the holder that acquired it;
// the TTL is the failure-safety valve if the holder crashes first.
type Lease struct {
	key   string
	token string
	mgr   *Manager
}

// Key returns the locked key.
func (l *Lease) Key() string { return l.key }

// Acquire attempts to take the lock for key with the given TTL, retrying on
// contention up to MaxRetries times with a fixed delay. Exhausting the retry
// budget fails with domain.ErrLockAcquireTimeout.
func (m *Manager) Acquire(ctx context.Context, key string, ttl time.Duration) (*Lease, error) {
	token := uuid.New().String()

	attempts := m.cfg.MaxRetries + 1
	for i := 0; i < attempts; i++ {
		ok, err := m.store.SetIfAbsent(ctx, key, token, ttl)
		if err != nil {
			return nil, fmt.Errorf("lock: acquire %s: %w", key, err)
		}
		if ok {
			return &Lease{key: key, token: token, mgr: m}, nil
		}

		if i == attempts-1 {
			break
		}
		timer := time.NewTimer(m.cfg.RetryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("lock: acquire %s: %w", key, ctx.Err())
		case <-timer.C:
		}
	}

	return nil, fmt.Errorf("lock: acquire %s after %d attempts: %w", key, attempts, domain.ErrLockAcquireTimeout)
}

// Release deletes the lease only while the store still holds this holder's
// token. If the lease expired and was re-acquired by another holder (or was
// never held), Release fails with domain.ErrLockNotHeld and leaves the other
// holder's lock untouched.
func (l *Lease) Release(ctx context.Context) error {
	deleted, err := l.mgr.store.DeleteIfEquals(ctx, l.key, l.token)
	if err != nil {
		return fmt.Errorf("lock: release %s: %w", l.key, err)
	}
	if !deleted {
		return fmt.Errorf("lock: release %s: %w", l.key, domain.ErrLockNotHeld)
	}
	return nil
}

// Execute runs fn while holding the lock for key, releasing it on every exit
// path. The release uses a detached context so it still succeeds when the
// caller's context was cancelled inside fn. fn's error wins over a release
// error.
func (m *Manager) Execute(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error {
	lease, err := m.Acquire(ctx, key, ttl)
	if err != nil {
		return err
	}

	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
		defer cancel()

		if relErr := lease.Release(releaseCtx); relErr != nil {
			m.logger.Warn("lock release failed",
				slog.String("key", key),
				slog.String("error", relErr.Error()),
			)
		}
	}()

	return fn(ctx)
}
