package reqcache

import (
	"context"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/issyzac/reqcache/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func testConfig() *config.Cache {
	cfg := &config.Cache{
		Store: config.StoreCfg{
			Namespace:  "app:",
			DefaultTTL: time.Minute,
			MaxEntries: 100,
			Persistence: &config.PersistenceCfg{
				Backend: config.BackendMemory,
			},
		},
		Dedup:   config.DedupCfg{DefaultTimeout: 5 * time.Second},
		Monitor: &config.MonitorCfg{SampleCap: 100, MinHitRate: 0.3},
	}
	cfg.AdjustConfig()
	return cfg
}

func newTestClient(t *testing.T, mock *clock.Mock) *Cache {
	t.Helper()
	c, err := New(context.Background(), testConfig(), testLogger(), WithClock(mock))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestCacheLifecycleEndToEnd(t *testing.T) {
	mock := clock.NewMock()
	c := newTestClient(t, mock)

	key := c.Key("/wallet/balance", map[string]any{"customerId": 42})
	c.Set(key, map[string]any{"v": 1}, WithTTL(50*time.Millisecond))

	data, ok := c.Get(key)
	require.True(t, ok)
	require.Equal(t, map[string]any{"v": 1}, data)

	mock.Add(60 * time.Millisecond)
	_, ok = c.Get(key)
	require.False(t, ok)

	stats := c.CacheStats()
	require.Equal(t, int64(1), stats.Hits)
	require.Equal(t, int64(1), stats.Misses)
	require.InDelta(t, 0.5, stats.HitRate, 1e-9)

	// The monitor observed the same reads.
	sum := c.Summary()
	require.Equal(t, int64(1), sum.Hits)
	require.Equal(t, int64(1), sum.Misses)
}

func TestRequestDeduplicationEndToEnd(t *testing.T) {
	c := newTestClient(t, clock.NewMock())

	key := c.RequestKey("/orders", map[string]any{"page": 1}, "GET")
	release := make(chan struct{})
	var aCalls, bCalls atomic.Int64

	fnA := func(ctx context.Context) (any, error) {
		aCalls.Add(1)
		<-release
		return "orders-page-1", nil
	}
	fnB := func(ctx context.Context) (any, error) {
		bCalls.Add(1)
		return "should never run", nil
	}

	type outcome struct {
		val any
		err error
	}

	first := make(chan outcome, 1)
	go func() {
		v, err := c.Do(context.Background(), key, fnA)
		first <- outcome{v, err}
	}()

	require.Eventually(t, func() bool { return len(c.Pending()) == 1 },
		time.Second, time.Millisecond)

	second := make(chan outcome, 1)
	go func() {
		v, err := c.Do(context.Background(), key, fnB)
		second <- outcome{v, err}
	}()

	require.Eventually(t, func() bool {
		return c.RequestStats().DeduplicatedRequests == 1
	}, time.Second, time.Millisecond)
	close(release)

	a, b := <-first, <-second
	require.NoError(t, a.err)
	require.NoError(t, b.err)
	require.Equal(t, "orders-page-1", a.val)
	require.Equal(t, "orders-page-1", b.val)
	require.Equal(t, int64(1), aCalls.Load())
	require.Equal(t, int64(0), bCalls.Load(), "attached caller must not invoke its own function")

	stats := c.RequestStats()
	require.Equal(t, int64(2), stats.TotalRequests)
	require.Equal(t, int64(1), stats.DeduplicatedRequests)
	require.InDelta(t, 0.5, stats.DeduplicationRate, 1e-9)

	// The execution settled, so the monitor saw exactly one API call.
	require.Equal(t, int64(1), c.Summary().APICalls)
	require.Empty(t, c.Pending())
}

func TestMissThenFetchThenHit(t *testing.T) {
	c := newTestClient(t, clock.NewMock())

	key := c.Key("/wallet/balance", map[string]any{"customerId": 7})
	_, ok := c.Get(key)
	require.False(t, ok)

	v, err := c.Do(context.Background(), key, func(ctx context.Context) (any, error) {
		return 120.50, nil
	})
	require.NoError(t, err)
	c.Set(key, v)

	data, ok := c.Get(key)
	require.True(t, ok)
	require.Equal(t, 120.50, data)

	stats := c.CacheStats()
	require.Equal(t, int64(1), stats.Hits)
	require.Equal(t, int64(1), stats.Misses)
	require.Equal(t, int64(1), stats.Sets)
}

func TestResetRestoresCleanState(t *testing.T) {
	c := newTestClient(t, clock.NewMock())

	key := c.Key("/promotions", nil)
	c.Set(key, "promo")
	_, _ = c.Get(key)
	_, err := c.Do(context.Background(), key, func(ctx context.Context) (any, error) {
		return "x", nil
	})
	require.NoError(t, err)

	c.Reset()

	require.Zero(t, c.Len())
	require.Zero(t, c.CacheStats().Hits)
	require.Zero(t, c.RequestStats().TotalRequests)
	require.Zero(t, c.Summary().Hits)
}

func TestPrometheusRegistration(t *testing.T) {
	cfg := testConfig()
	cfg.Monitor.PrometheusEnabled = true

	reg := prometheus.NewRegistry()
	c, err := New(context.Background(), cfg, testLogger(), WithPrometheus(reg))
	require.NoError(t, err)
	defer c.Close()

	key := c.Key("/orders", nil)
	_, _ = c.Get(key)

	families, err := reg.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)
}
