package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterValidation(t *testing.T) {
	s := New(slog.Default(), nil)

	noop := func(context.Context) error { return nil }

	assert.Error(t, s.Register(Job{Interval: time.Second, Handler: noop}))
	assert.Error(t, s.Register(Job{Name: "a", Handler: noop}))
	assert.Error(t, s.Register(Job{Name: "a", Interval: time.Second}))

	require.NoError(t, s.Register(Job{Name: "a", Interval: time.Second, Handler: noop}))
	assert.Error(t, s.Register(Job{Name: "a", Interval: time.Second, Handler: noop}))
}

// One firing of a job with MaxRetries=2 invokes the handler exactly 3 times,
// then leaves the job alone until the next interval.
func TestRetryBoundPerFiring(t *testing.T) {
	var calls atomic.Int64
	var failures atomic.Int64

	s := New(slog.Default(), func(ctx context.Context, job string, attempts int, err error) {
		assert.Equal(t, "flaky", job)
		assert.Equal(t, 3, attempts)
		failures.Add(1)
	})

	require.NoError(t, s.Register(Job{
		Name:           "flaky",
		Interval:       time.Hour, // no second firing within the test window
		Enabled:        true,
		RunImmediately: true,
		MaxRetries:     2,
		RetryDelay:     time.Millisecond,
		Handler: func(context.Context) error {
			calls.Add(1)
			return errors.New("always fails")
		},
	}))

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Start(ctx))

	assert.Eventually(t, func() bool { return failures.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(3), calls.Load())

	// No further invocations after the firing gave up.
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int64(3), calls.Load())

	cancel()
	s.Stop()
	s.Wait()
}

func TestPeriodicFiring(t *testing.T) {
	var calls atomic.Int64

	s := New(slog.Default(), nil)
	require.NoError(t, s.Register(Job{
		Name:     "tick",
		Interval: 10 * time.Millisecond,
		Enabled:  true,
		Handler: func(context.Context) error {
			calls.Add(1)
			return nil
		},
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, s.Start(ctx))

	assert.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, 5*time.Millisecond)

	s.Stop()
	s.Wait()
}

func TestDisabledJobDoesNotFire(t *testing.T) {
	var calls atomic.Int64

	s := New(slog.Default(), nil)
	require.NoError(t, s.Register(Job{
		Name:           "dormant",
		Interval:       10 * time.Millisecond,
		Enabled:        false,
		RunImmediately: true,
		Handler: func(context.Context) error {
			calls.Add(1)
			return nil
		},
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, s.Start(ctx))

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, calls.Load())

	// Enabling mid-run starts future firings.
	require.NoError(t, s.Enable("dormant"))
	assert.Eventually(t, func() bool { return calls.Load() >= 1 }, time.Second, 5*time.Millisecond)

	s.Stop()
	s.Wait()
}

func TestDisableStopsFutureFirings(t *testing.T) {
	var calls atomic.Int64

	s := New(slog.Default(), nil)
	require.NoError(t, s.Register(Job{
		Name:     "toggled",
		Interval: 10 * time.Millisecond,
		Enabled:  true,
		Handler: func(context.Context) error {
			calls.Add(1)
			return nil
		},
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, s.Start(ctx))

	assert.Eventually(t, func() bool { return calls.Load() >= 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, s.Disable("toggled"))

	settled := calls.Load()
	time.Sleep(50 * time.Millisecond)
	// At most one more firing could have been in flight at disable time.
	assert.LessOrEqual(t, calls.Load(), settled+1)

	s.Stop()
	s.Wait()
}

func TestSingleFlightSkipsOverlap(t *testing.T) {
	var active atomic.Int64
	var maxActive atomic.Int64

	inner := func(ctx context.Context) error {
		n := active.Add(1)
		if n > maxActive.Load() {
			maxActive.Store(n)
		}
		time.Sleep(30 * time.Millisecond)
		active.Add(-1)
		return nil
	}

	h := SingleFlight(inner, slog.Default())

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = h(context.Background())
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), maxActive.Load())
}
