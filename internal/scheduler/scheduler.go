// Package scheduler owns one independent periodic timer per registered job
// and drives handler invocations with bounded retries. Firings of the same
// job are not serialized by the scheduler itself; jobs that must not overlap
// opt into SingleFlight or WithLock.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Handler is the job contract: a context-aware operation that signals failure
// by returning an error. Side effects (alerts, notifications) are the
// handler's responsibility.
type Handler func(ctx context.Context) error

// Job is the static configuration of one scheduled job.
type Job struct {
	Name           string
	Interval       time.Duration
	Enabled        bool
	RunImmediately bool
	MaxRetries     int           // additional attempts per firing
	RetryDelay     time.Duration // fixed delay between attempts
	Handler        Handler
}

// FailureFunc is invoked when a firing exhausts its retry budget. The job
// stays enabled and the next firing proceeds on schedule.
type FailureFunc func(ctx context.Context, job string, attempts int, err error)

type jobState struct {
	cfg     Job
	enabled atomic.Bool
}

// Scheduler drives all registered jobs. Register before Start; Enable and
// Disable may be called at any time.
type Scheduler struct {
	logger    *slog.Logger
	onFailure FailureFunc

	mu      sync.Mutex
	jobs    map[string]*jobState
	started bool
	stopCh  chan struct{}

	wg sync.WaitGroup
}

// New creates a Scheduler. onFailure may be nil.
func New(logger *slog.Logger, onFailure FailureFunc) *Scheduler {
	return &Scheduler{
		logger:    logger.With(slog.String("component", "scheduler")),
		onFailure: onFailure,
		jobs:      make(map[string]*jobState),
		stopCh:    make(chan struct{}),
	}
}

// Register adds a job. Names are unique within one Scheduler; registering
// after Start or with an invalid config fails.
func (s *Scheduler) Register(job Job) error {
	if job.Name == "" {
		return fmt.Errorf("scheduler: job name must not be empty")
	}
	if job.Interval <= 0 {
		return fmt.Errorf("scheduler: job %s: interval must be positive", job.Name)
	}
	if job.Handler == nil {
		return fmt.Errorf("scheduler: job %s: handler must not be nil", job.Name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("scheduler: job %s: cannot register after start", job.Name)
	}
	if _, exists := s.jobs[job.Name]; exists {
		return fmt.Errorf("scheduler: job %s: already registered", job.Name)
	}

	st := &jobState{cfg: job}
	st.enabled.Store(job.Enabled)
	s.jobs[job.Name] = st
	return nil
}

// Enable allows future firings of the named job.
func (s *Scheduler) Enable(name string) error { return s.setEnabled(name, true) }

// Disable stops future firings of the named job without affecting firings
// already in flight.
func (s *Scheduler) Disable(name string) error { return s.setEnabled(name, false) }

func (s *Scheduler) setEnabled(name string, enabled bool) error {
	s.mu.Lock()
	st, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("scheduler: job %s: not registered", name)
	}
	st.enabled.Store(enabled)
	s.logger.Info("job toggled", slog.String("job", name), slog.Bool("enabled", enabled))
	return nil
}

// Start launches one timer goroutine per registered job. Handlers receive
// ctx, so cancelling it also winds down in-flight work; Stop by contrast only
// clears the timers.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("scheduler: already started")
	}
	s.started = true
	jobs := make([]*jobState, 0, len(s.jobs))
	for _, st := range s.jobs {
		jobs = append(jobs, st)
	}
	s.mu.Unlock()

	for _, st := range jobs {
		s.wg.Add(1)
		go s.runLoop(ctx, st)
	}

	s.logger.Info("scheduler started", slog.Int("jobs", len(jobs)))
	return nil
}

// Stop clears all timers. In-flight handler invocations continue to their
// natural completion; use Wait to drain them.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.stopCh:
	default:
		close(s.stopCh)
	}
}

// Wait blocks until all timer loops and in-flight firings have finished.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// runLoop owns one job's timer. Each firing runs in its own goroutine so a
// slow handler never delays the ticker; overlap between firings of the same
// job is therefore possible unless the handler itself guards against it.
func (s *Scheduler) runLoop(ctx context.Context, st *jobState) {
	defer s.wg.Done()

	if st.cfg.RunImmediately && st.enabled.Load() {
		s.spawnFiring(ctx, st)
	}

	ticker := time.NewTicker(st.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			if !st.enabled.Load() {
				continue
			}
			s.spawnFiring(ctx, st)
		}
	}
}

func (s *Scheduler) spawnFiring(ctx context.Context, st *jobState) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runFiring(ctx, st)
	}()
}

// runFiring invokes the handler once, retrying the same firing up to
// MaxRetries additional times with a fixed delay. Exhausting the budget is
// logged and reported, and the job stays on schedule.
func (s *Scheduler) runFiring(ctx context.Context, st *jobState) {
	attempts := st.cfg.MaxRetries + 1

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = st.cfg.Handler(ctx)
		if err == nil {
			return
		}
		if ctx.Err() != nil {
			return
		}

		s.logger.Warn("job attempt failed",
			slog.String("job", st.cfg.Name),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", attempts),
			slog.String("error", err.Error()),
		)

		if attempt == attempts {
			break
		}
		timer := time.NewTimer(st.cfg.RetryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}

	s.logger.Error("job firing exhausted retries",
		slog.String("job", st.cfg.Name),
		slog.Int("attempts", attempts),
		slog.String("error", err.Error()),
	)
	if s.onFailure != nil {
		s.onFailure(ctx, st.cfg.Name, attempts, err)
	}
}
