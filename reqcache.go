// Package reqcache implements the request/caching core of an API client:
// a TTL store with a best-effort persisted mirror, oldest-by-write eviction,
// pattern invalidation, a request deduplicator that collapses concurrent
// identical calls into one in-flight execution, and a passive performance
// monitor.
package reqcache

import (
	"context"
	"io"
	"log/slog"
	"regexp"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/issyzac/reqcache/config"
	"github.com/issyzac/reqcache/internal/dedup"
	"github.com/issyzac/reqcache/internal/monitor"
	"github.com/issyzac/reqcache/internal/store"
	"github.com/issyzac/reqcache/internal/store/backend"
	"github.com/issyzac/reqcache/internal/sweeper"
	"github.com/issyzac/reqcache/internal/telemetry"
)

// Re-exported component types so callers only import this package.
type (
	SetOption   = store.SetOption
	StoreStats  = store.Stats
	RequestFunc = dedup.RequestFunc
	DoOption    = dedup.DoOption
	DedupStats  = dedup.Stats
	PendingInfo = dedup.PendingInfo
	Summary     = monitor.Summary
	Insights    = monitor.Insights
)

var (
	WithTTL      = store.WithTTL
	WithMetadata = store.WithMetadata
	WithTimeout  = dedup.WithTimeout

	ErrTimeout   = dedup.ErrTimeout
	ErrCancelled = dedup.ErrCancelled
)

// Client is the surface API wrappers consume. Construct one instance at
// startup and pass it by reference; Reset gives tests a clean slate without
// rebuilding the instance.
type Client interface {
	// store surface
	Key(endpoint string, params map[string]any) string
	Get(key string) (data any, ok bool)
	Set(key string, data any, opts ...SetOption)
	Delete(key string)
	Clear()
	ClearExpired() (removed int)
	InvalidateByPattern(pattern string) (removed int, err error)
	InvalidateByRegexp(re *regexp.Regexp) (removed int)
	Len() int
	Mem() int64
	CacheStats() StoreStats

	// dedup surface
	RequestKey(endpoint string, params map[string]any, method string) string
	Do(ctx context.Context, key string, fn RequestFunc, opts ...DoOption) (any, error)
	Cancel(key string) bool
	CancelAll() int
	Pending() []PendingInfo
	RequestStats() DedupStats

	// monitor surface
	RecordSample(label string, elapsed time.Duration)
	Summary() Summary
	Insights() Insights

	ForceSweep() (removed int)
	Reset()
	telemetry.Logger
	io.Closer
}

type Cache struct {
	store   store.Storer
	dedup   dedup.Deduplicator
	monitor monitor.Monitor
	sweeper sweeper.Sweeper
	logs    telemetry.Logger
	cls     context.CancelFunc
}

type options struct {
	clk clock.Clock
	reg prometheus.Registerer
}

type Option func(*options)

// WithClock substitutes the wall clock; tests pass a clock.Mock to make
// TTL expiry and eviction ordering deterministic.
func WithClock(clk clock.Clock) Option {
	return func(o *options) { o.clk = clk }
}

// WithPrometheus registers the monitor's counters and duration histogram
// with reg. Ignored when the monitor is disabled.
func WithPrometheus(reg prometheus.Registerer) Option {
	return func(o *options) { o.reg = reg }
}

func New(ctx context.Context, cfg *config.Cache, logger *slog.Logger, opts ...Option) (*Cache, error) {
	o := options{clk: clock.New()}
	for _, opt := range opts {
		opt(&o)
	}

	bk, err := backend.New(cfg.Store.Persistence)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	st := store.New(&cfg.Store, logger, o.clk, bk)
	dd := dedup.New(ctx, &cfg.Dedup, cfg.Store.Namespace, logger, o.clk)
	mon := monitor.New(cfg.Monitor, o.reg)
	sw := sweeper.New(ctx, cfg.Sweeper, logger, st)
	logs := telemetry.New(ctx, cfg, logger, st, dd, sw)

	return &Cache{
		store:   st,
		dedup:   dd,
		monitor: mon,
		sweeper: sw,
		logs:    logs,
		cls:     cancel,
	}, nil
}

func (c *Cache) Key(endpoint string, params map[string]any) string {
	return c.store.Key(endpoint, params)
}

// Get reads through the memory layer and the persisted mirror; the monitor
// observes the outcome but never influences it.
func (c *Cache) Get(key string) (any, bool) {
	data, ok := c.store.Get(key)
	if ok {
		c.monitor.RecordHit()
	} else {
		c.monitor.RecordMiss()
	}
	return data, ok
}

func (c *Cache) Set(key string, data any, opts ...SetOption) {
	c.store.Set(key, data, opts...)
}

func (c *Cache) Delete(key string) { c.store.Delete(key) }

func (c *Cache) Clear() { c.store.Clear() }

func (c *Cache) ClearExpired() int { return c.store.ClearExpired() }

func (c *Cache) InvalidateByPattern(pattern string) (int, error) {
	return c.store.InvalidateByPattern(pattern)
}

func (c *Cache) InvalidateByRegexp(re *regexp.Regexp) int {
	return c.store.InvalidateByRegexp(re)
}

func (c *Cache) Len() int { return c.store.Len() }

func (c *Cache) Mem() int64 { return c.store.Mem() }

func (c *Cache) CacheStats() StoreStats { return c.store.Stats() }

func (c *Cache) RequestKey(endpoint string, params map[string]any, method string) string {
	return c.dedup.RequestKey(endpoint, params, method)
}

// Do executes fn under key, collapsing concurrent callers onto one in-flight
// execution. The monitor times the underlying call only when this invocation
// actually starts one; attached subscribers record nothing.
func (c *Cache) Do(ctx context.Context, key string, fn RequestFunc, opts ...DoOption) (any, error) {
	timed := func(execCtx context.Context) (any, error) {
		start := time.Now()
		data, err := fn(execCtx)
		c.monitor.RecordAPICall(key, time.Since(start), err)
		return data, err
	}
	return c.dedup.Do(ctx, key, timed, opts...)
}

func (c *Cache) Cancel(key string) bool { return c.dedup.Cancel(key) }

func (c *Cache) CancelAll() int { return c.dedup.CancelAll() }

func (c *Cache) Pending() []PendingInfo { return c.dedup.Pending() }

func (c *Cache) RequestStats() DedupStats { return c.dedup.Stats() }

func (c *Cache) RecordSample(label string, elapsed time.Duration) {
	c.monitor.RecordSample(label, elapsed)
}

func (c *Cache) Summary() Summary { return c.monitor.Summary() }

func (c *Cache) Insights() Insights { return c.monitor.Insights() }

func (c *Cache) ForceSweep() int { return c.sweeper.ForceSweep() }

func (c *Cache) Interval() time.Duration { return c.logs.Interval() }

// Reset cancels every pending execution, drops every cached entry and zeroes
// all counters. Intended for test isolation.
func (c *Cache) Reset() {
	c.dedup.Reset()
	c.store.Reset()
	c.monitor.Reset()
}

func (c *Cache) Close() error {
	c.cls()
	return nil
}

var _ Client = (*Cache)(nil)
