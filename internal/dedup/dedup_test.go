package dedup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/issyzac/reqcache/config"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func newTestDedup(t *testing.T) *Dedup {
	t.Helper()
	cfg := &config.Cache{Dedup: config.DedupCfg{DefaultTimeout: 5 * time.Second}}
	cfg.AdjustConfig()
	return New(context.Background(), &cfg.Dedup, "app:", testLogger(), clock.New())
}

// blockingFn returns a request function that signals on started, counts its
// invocations and blocks until release is closed.
func blockingFn(started chan<- struct{}, release <-chan struct{}, invocations *atomic.Int64, val any) RequestFunc {
	return func(ctx context.Context) (any, error) {
		invocations.Add(1)
		if started != nil {
			started <- struct{}{}
		}
		select {
		case <-release:
			return val, nil
		case <-ctx.Done():
			return nil, context.Cause(ctx)
		}
	}
}

type result struct {
	val any
	err error
}

func TestConcurrentCallsCollapse(t *testing.T) {
	d := newTestDedup(t)

	var invocations atomic.Int64
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	fn := blockingFn(started, release, &invocations, "shared")

	first := make(chan result, 1)
	go func() {
		v, err := d.Do(context.Background(), "app:GET /orders", fn)
		first <- result{v, err}
	}()
	<-started

	second := make(chan result, 1)
	go func() {
		v, err := d.Do(context.Background(), "app:GET /orders", fn)
		second <- result{v, err}
	}()

	// The attached caller must be visible as deduplicated before release.
	require.Eventually(t, func() bool {
		_, deduplicated, _, _ := d.DedupMetrics()
		return deduplicated == 1
	}, time.Second, time.Millisecond)

	close(release)

	r1, r2 := <-first, <-second
	require.NoError(t, r1.err)
	require.NoError(t, r2.err)
	require.Equal(t, "shared", r1.val)
	require.Equal(t, "shared", r2.val)

	require.EqualValues(t, 1, invocations.Load(), "second caller must never invoke fn")

	total, deduplicated, completed, failed := d.DedupMetrics()
	require.EqualValues(t, 2, total)
	require.EqualValues(t, 1, deduplicated)
	require.EqualValues(t, 1, completed)
	require.EqualValues(t, 0, failed)
}

func TestDistinctKeysDoNotCollapse(t *testing.T) {
	d := newTestDedup(t)

	var invocations atomic.Int64
	fn := func(ctx context.Context) (any, error) {
		invocations.Add(1)
		return "ok", nil
	}

	results := make(chan result, 2)
	for i := 0; i < 2; i++ {
		key := fmt.Sprintf("app:GET /orders?id=%d", i)
		go func() {
			v, err := d.Do(context.Background(), key, fn)
			results <- result{v, err}
		}()
	}
	for i := 0; i < 2; i++ {
		r := <-results
		require.NoError(t, r.err)
	}
	require.EqualValues(t, 2, invocations.Load())
}

func TestSubscriberCancellationIsIsolated(t *testing.T) {
	d := newTestDedup(t)

	var invocations atomic.Int64
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	fn := blockingFn(started, release, &invocations, "kept")

	originDone := make(chan result, 1)
	go func() {
		v, err := d.Do(context.Background(), "app:GET /wallet", fn)
		originDone <- result{v, err}
	}()
	<-started

	subCtx, subCancel := context.WithCancel(context.Background())
	subDone := make(chan result, 1)
	go func() {
		v, err := d.Do(subCtx, "app:GET /wallet", fn)
		subDone <- result{v, err}
	}()
	require.Eventually(t, func() bool {
		_, deduplicated, _, _ := d.DedupMetrics()
		return deduplicated == 1
	}, time.Second, time.Millisecond)

	// Cancelling the attached subscriber rejects only that subscriber.
	subCancel()
	sub := <-subDone
	require.ErrorIs(t, sub.err, ErrCancelled)

	close(release)
	origin := <-originDone
	require.NoError(t, origin.err)
	require.Equal(t, "kept", origin.val)

	_, _, completed, failed := d.DedupMetrics()
	require.EqualValues(t, 1, completed)
	require.EqualValues(t, 0, failed, "subscriber cancellation is not a shared failure")
}

func TestOriginatingCallerCancellationAbortsExecution(t *testing.T) {
	d := newTestDedup(t)

	started := make(chan struct{}, 1)
	release := make(chan struct{})
	defer close(release)
	var invocations atomic.Int64
	fn := blockingFn(started, release, &invocations, nil)

	originCtx, originCancel := context.WithCancel(context.Background())
	originDone := make(chan result, 1)
	go func() {
		v, err := d.Do(originCtx, "app:GET /promos", fn)
		originDone <- result{v, err}
	}()
	<-started

	subDone := make(chan result, 1)
	go func() {
		v, err := d.Do(context.Background(), "app:GET /promos", fn)
		subDone <- result{v, err}
	}()
	require.Eventually(t, func() bool {
		_, deduplicated, _, _ := d.DedupMetrics()
		return deduplicated == 1
	}, time.Second, time.Millisecond)

	// The originating caller's signal is forwarded into the execution, so
	// its cancellation takes the whole request down.
	originCancel()

	require.ErrorIs(t, (<-originDone).err, ErrCancelled)
	require.ErrorIs(t, (<-subDone).err, ErrCancelled)

	require.Eventually(t, func() bool {
		_, _, _, failed := d.DedupMetrics()
		return failed == 1
	}, time.Second, time.Millisecond)
	require.Empty(t, d.Pending())
}

func TestTimeoutRejectsAllAndFreesKey(t *testing.T) {
	d := newTestDedup(t)

	var invocations atomic.Int64
	neverSettles := func(ctx context.Context) (any, error) {
		invocations.Add(1)
		<-ctx.Done()
		return nil, context.Cause(ctx)
	}

	firstDone := make(chan result, 1)
	go func() {
		v, err := d.Do(context.Background(), "app:GET /slow", neverSettles, WithTimeout(30*time.Millisecond))
		firstDone <- result{v, err}
	}()

	secondDone := make(chan result, 1)
	require.Eventually(t, func() bool { return len(d.Pending()) == 1 }, time.Second, time.Millisecond)
	go func() {
		v, err := d.Do(context.Background(), "app:GET /slow", neverSettles)
		secondDone <- result{v, err}
	}()

	require.ErrorIs(t, (<-firstDone).err, ErrTimeout)
	require.ErrorIs(t, (<-secondDone).err, ErrTimeout)

	// The pending entry is gone: the failed counter moved once for the
	// shared execution and the key is immediately reusable.
	require.Empty(t, d.Pending())
	_, _, _, failed := d.DedupMetrics()
	require.EqualValues(t, 1, failed)

	v, err := d.Do(context.Background(), "app:GET /slow", func(ctx context.Context) (any, error) {
		invocations.Add(1)
		return "fresh", nil
	})
	require.NoError(t, err)
	require.Equal(t, "fresh", v)
	require.EqualValues(t, 2, invocations.Load())
}

func TestPreCancelledContextShortCircuits(t *testing.T) {
	d := newTestDedup(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var invocations atomic.Int64
	_, err := d.Do(ctx, "app:GET /orders", func(ctx context.Context) (any, error) {
		invocations.Add(1)
		return nil, nil
	})

	require.ErrorIs(t, err, ErrCancelled)
	require.Zero(t, invocations.Load(), "no network call for an already cancelled request")
	require.Empty(t, d.Pending())

	total, _, completed, failed := d.DedupMetrics()
	require.EqualValues(t, 1, total)
	require.Zero(t, completed)
	require.Zero(t, failed, "no execution was created, so none failed")
}

func TestCancelKey(t *testing.T) {
	d := newTestDedup(t)

	started := make(chan struct{}, 1)
	release := make(chan struct{})
	defer close(release)
	var invocations atomic.Int64

	done := make(chan result, 1)
	go func() {
		v, err := d.Do(context.Background(), "app:GET /orders", blockingFn(started, release, &invocations, nil))
		done <- result{v, err}
	}()
	<-started

	require.False(t, d.Cancel("app:GET /unknown"))
	require.True(t, d.Cancel("app:GET /orders"))

	require.ErrorIs(t, (<-done).err, ErrCancelled)
	require.Empty(t, d.Pending())
}

func TestCancelAll(t *testing.T) {
	d := newTestDedup(t)

	release := make(chan struct{})
	defer close(release)
	var invocations atomic.Int64

	results := make(chan result, 3)
	started := make(chan struct{}, 3)
	for i := 0; i < 3; i++ {
		key := fmt.Sprintf("app:GET /orders?page=%d", i)
		go func() {
			v, err := d.Do(context.Background(), key, blockingFn(started, release, &invocations, nil))
			results <- result{v, err}
		}()
	}
	for i := 0; i < 3; i++ {
		<-started
	}

	require.Equal(t, 3, d.CancelAll())
	for i := 0; i < 3; i++ {
		require.ErrorIs(t, (<-results).err, ErrCancelled)
	}
	require.Empty(t, d.Pending())
}

func TestUnderlyingFailurePropagatesVerbatim(t *testing.T) {
	d := newTestDedup(t)

	errUpstream := errors.New("upstream said 500")
	started := make(chan struct{}, 1)
	blocked := make(chan struct{})

	firstDone := make(chan result, 1)
	go func() {
		v, err := d.Do(context.Background(), "app:GET /wallet", func(ctx context.Context) (any, error) {
			started <- struct{}{}
			<-blocked
			return nil, errUpstream
		})
		firstDone <- result{v, err}
	}()
	<-started

	secondDone := make(chan result, 1)
	go func() {
		v, err := d.Do(context.Background(), "app:GET /wallet", func(ctx context.Context) (any, error) {
			t.Error("second fn must not run")
			return nil, nil
		})
		secondDone <- result{v, err}
	}()
	require.Eventually(t, func() bool {
		_, deduplicated, _, _ := d.DedupMetrics()
		return deduplicated == 1
	}, time.Second, time.Millisecond)

	close(blocked)

	require.ErrorIs(t, (<-firstDone).err, errUpstream)
	require.ErrorIs(t, (<-secondDone).err, errUpstream)

	// Failure is reported once per logical execution, not per subscriber.
	_, _, _, failed := d.DedupMetrics()
	require.EqualValues(t, 1, failed)
}

func TestPendingSnapshot(t *testing.T) {
	d := newTestDedup(t)

	started := make(chan struct{}, 1)
	release := make(chan struct{})
	var invocations atomic.Int64

	done := make(chan result, 1)
	go func() {
		v, err := d.Do(context.Background(), "app:GET /orders", blockingFn(started, release, &invocations, nil), WithTimeout(time.Minute))
		done <- result{v, err}
	}()
	<-started

	pending := d.Pending()
	require.Len(t, pending, 1)
	require.Equal(t, "app:GET /orders", pending[0].Key)
	require.Equal(t, time.Minute, pending[0].Timeout)
	require.False(t, pending[0].StartedAt.IsZero())

	close(release)
	<-done
	require.Empty(t, d.Pending())
}

func TestStatsRates(t *testing.T) {
	d := newTestDedup(t)
	require.Zero(t, d.Stats().DeduplicationRate, "rate is 0 with no requests")

	started := make(chan struct{}, 1)
	release := make(chan struct{})
	var invocations atomic.Int64

	first := make(chan result, 1)
	go func() {
		v, err := d.Do(context.Background(), "app:GET /x", blockingFn(started, release, &invocations, 1))
		first <- result{v, err}
	}()
	<-started

	second := make(chan result, 1)
	go func() {
		v, err := d.Do(context.Background(), "app:GET /x", blockingFn(nil, release, &invocations, 1))
		second <- result{v, err}
	}()
	require.Eventually(t, func() bool { return d.Stats().DeduplicatedRequests == 1 }, time.Second, time.Millisecond)

	close(release)
	<-first
	<-second

	st := d.Stats()
	require.EqualValues(t, 2, st.TotalRequests)
	require.InDelta(t, 0.5, st.DeduplicationRate, 1e-9)
}

func TestResetZeroesEverything(t *testing.T) {
	d := newTestDedup(t)

	started := make(chan struct{}, 1)
	release := make(chan struct{})
	defer close(release)
	var invocations atomic.Int64

	done := make(chan result, 1)
	go func() {
		v, err := d.Do(context.Background(), "app:GET /orders", blockingFn(started, release, &invocations, nil))
		done <- result{v, err}
	}()
	<-started

	d.Reset()

	require.ErrorIs(t, (<-done).err, ErrCancelled)
	require.Empty(t, d.Pending())

	st := d.Stats()
	require.Zero(t, st.TotalRequests)
	require.Zero(t, st.FailedRequests)
}
