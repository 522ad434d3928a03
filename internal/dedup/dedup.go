// Package dedup collapses concurrent identical requests into a single
// in-flight execution. Identity is semantic (endpoint + normalized params +
// method), never the request function's object identity: independent call
// sites issuing the same logical request share one network round trip.
package dedup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/issyzac/reqcache/config"
	"github.com/issyzac/reqcache/internal/keys"
)

var (
	// ErrTimeout is surfaced to every subscriber when the shared
	// execution outlives its timeout.
	ErrTimeout = errors.New("request timed out")

	// ErrCancelled is surfaced to a subscriber that cancels its own
	// interest, or to everyone when the shared execution is aborted.
	ErrCancelled = errors.New("request cancelled")
)

// RequestFunc performs the underlying network call. The supplied context is
// the shared execution's signal: it is cancelled on timeout, on Cancel, and
// when the originating caller's own context dies.
type RequestFunc func(ctx context.Context) (any, error)

type Deduplicator interface {
	RequestKey(endpoint string, params map[string]any, method string) string
	Do(ctx context.Context, key string, fn RequestFunc, opts ...DoOption) (any, error)
	Cancel(key string) bool
	CancelAll() int
	Pending() []PendingInfo
	DedupMetrics() (total, deduplicated, completed, failed int64)
	Stats() Stats
	Reset()
}

// Stats is a point-in-time snapshot of deduplicator counters.
// DeduplicationRate is 0 when no requests have been issued yet.
type Stats struct {
	TotalRequests        int64
	DeduplicatedRequests int64
	CompletedRequests    int64
	FailedRequests       int64
	DeduplicationRate    float64
	Pending              int
}

// PendingInfo is a diagnostic snapshot of one in-flight execution.
type PendingInfo struct {
	Key       string
	StartedAt time.Time
	Duration  time.Duration
	Timeout   time.Duration
}

type doOptions struct {
	timeout time.Duration
}

type DoOption func(*doOptions)

// WithTimeout overrides the configured default timeout for the shared
// execution started by this call. Ignored when the call attaches to an
// already pending execution.
func WithTimeout(timeout time.Duration) DoOption {
	return func(o *doOptions) { o.timeout = timeout }
}

// pendingRequest is the shared state of one in-flight execution. val and
// err are written exactly once, before done is closed.
type pendingRequest struct {
	key       string
	startedAt time.Time
	timeout   time.Duration
	ctx       context.Context
	cancel    context.CancelCauseFunc
	done      chan struct{}
	val       any
	err       error
}

type outcome struct {
	val any
	err error
}

type Dedup struct {
	ctx       context.Context
	cfg       *config.DedupCfg
	namespace string
	logger    *slog.Logger
	clock     clock.Clock

	mu      sync.Mutex
	pending map[string]*pendingRequest

	counters *dedupCounters
}

func New(ctx context.Context, cfg *config.DedupCfg, namespace string, logger *slog.Logger, clk clock.Clock) *Dedup {
	return &Dedup{
		ctx:       ctx,
		cfg:       cfg,
		namespace: namespace,
		logger:    logger,
		clock:     clk,
		pending:   make(map[string]*pendingRequest),
		counters:  newDedupCounters(),
	}
}

func (d *Dedup) RequestKey(endpoint string, params map[string]any, method string) string {
	return keys.Request(d.namespace, endpoint, params, method)
}

// Do returns the outcome of the shared execution for key, starting one when
// none is pending. A caller's own context cancels only that caller's
// subscription; the execution it originated is the exception, since its
// signal is forwarded into the request function.
func (d *Dedup) Do(ctx context.Context, key string, fn RequestFunc, opts ...DoOption) (any, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	d.counters.total.Add(1)

	// A caller that is already cancelled never reaches the network.
	if ctx.Err() != nil {
		return nil, fmt.Errorf("%w: %w", ErrCancelled, context.Cause(ctx))
	}

	o := doOptions{timeout: d.cfg.DefaultTimeout}
	for _, opt := range opts {
		opt(&o)
	}

	d.mu.Lock()
	if p, ok := d.pending[key]; ok {
		d.counters.deduplicated.Add(1)
		d.mu.Unlock()
		return d.await(ctx, p)
	}
	p := d.launch(ctx, key, fn, o.timeout)
	d.mu.Unlock()

	return d.await(ctx, p)
}

// launch starts the shared execution for key. Caller holds d.mu.
func (d *Dedup) launch(origin context.Context, key string, fn RequestFunc, timeout time.Duration) *pendingRequest {
	execCtx, cancel := context.WithCancelCause(d.ctx)
	p := &pendingRequest{
		key:       key,
		startedAt: d.clock.Now(),
		timeout:   timeout,
		ctx:       execCtx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	d.pending[key] = p

	// The originating caller's signal is forwarded into the execution:
	// its death aborts the underlying call for every subscriber.
	stopForward := context.AfterFunc(origin, func() {
		cancel(fmt.Errorf("%w: originating caller gone: %w", ErrCancelled, context.Cause(origin)))
	})

	timer := d.clock.AfterFunc(timeout, func() {
		cancel(fmt.Errorf("%w after %s", ErrTimeout, timeout))
	})

	resCh := make(chan outcome, 1)
	go func() {
		val, err := fn(execCtx)
		resCh <- outcome{val: val, err: err}
	}()

	go func() {
		var out outcome
		select {
		case out = <-resCh:
		case <-execCtx.Done():
			// Timeout or cancellation beat the request function; if it
			// ever settles later, the buffered channel lets its
			// goroutine exit quietly.
			out = outcome{err: terminalError(execCtx)}
		}

		timer.Stop()
		stopForward()
		cancel(context.Canceled)

		// The table entry is gone before the outcome is published, so
		// the key is immediately reusable after any terminal state.
		d.mu.Lock()
		if d.pending[key] == p {
			delete(d.pending, key)
		}
		d.mu.Unlock()

		p.val, p.err = out.val, out.err
		if p.err != nil {
			d.counters.failed.Add(1)
		} else {
			d.counters.completed.Add(1)
		}
		close(p.done)
	}()

	return p
}

func (d *Dedup) await(ctx context.Context, p *pendingRequest) (any, error) {
	select {
	case <-p.done:
		return p.val, p.err
	case <-ctx.Done():
		// Only this caller's interest ends here; the shared execution
		// and its other subscribers are unaffected.
		return nil, fmt.Errorf("%w: %w", ErrCancelled, context.Cause(ctx))
	}
}

// Cancel aborts the shared in-flight execution for key, if any. Every
// subscriber rejects with a cancellation error.
func (d *Dedup) Cancel(key string) bool {
	d.mu.Lock()
	p := d.pending[key]
	d.mu.Unlock()

	if p == nil {
		return false
	}
	p.cancel(fmt.Errorf("%w: cancelled by caller", ErrCancelled))
	return true
}

func (d *Dedup) CancelAll() int {
	d.mu.Lock()
	snapshot := make([]*pendingRequest, 0, len(d.pending))
	for _, p := range d.pending {
		snapshot = append(snapshot, p)
	}
	d.mu.Unlock()

	for _, p := range snapshot {
		p.cancel(fmt.Errorf("%w: cancel all", ErrCancelled))
	}
	return len(snapshot)
}

// Pending returns a diagnostic snapshot of in-flight executions, ordered by
// key for stable output.
func (d *Dedup) Pending() []PendingInfo {
	now := d.clock.Now()

	d.mu.Lock()
	out := make([]PendingInfo, 0, len(d.pending))
	for _, p := range d.pending {
		out = append(out, PendingInfo{
			Key:       p.key,
			StartedAt: p.startedAt,
			Duration:  now.Sub(p.startedAt),
			Timeout:   p.timeout,
		})
	}
	d.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func (d *Dedup) DedupMetrics() (total, deduplicated, completed, failed int64) {
	return d.counters.snapshot()
}

func (d *Dedup) Stats() Stats {
	total, deduplicated, completed, failed := d.counters.snapshot()
	st := Stats{
		TotalRequests:        total,
		DeduplicatedRequests: deduplicated,
		CompletedRequests:    completed,
		FailedRequests:       failed,
	}
	if total > 0 {
		st.DeduplicationRate = float64(deduplicated) / float64(total)
	}
	d.mu.Lock()
	st.Pending = len(d.pending)
	d.mu.Unlock()
	return st
}

// Reset cancels every pending execution, waits for settlement and zeroes
// all counters and tables. Test isolation hook.
func (d *Dedup) Reset() {
	d.mu.Lock()
	snapshot := make([]*pendingRequest, 0, len(d.pending))
	for _, p := range d.pending {
		snapshot = append(snapshot, p)
	}
	d.pending = make(map[string]*pendingRequest)
	d.mu.Unlock()

	for _, p := range snapshot {
		p.cancel(fmt.Errorf("%w: reset", ErrCancelled))
		<-p.done
	}
	d.counters.reset()
}

func terminalError(ctx context.Context) error {
	cause := context.Cause(ctx)
	if errors.Is(cause, ErrTimeout) || errors.Is(cause, ErrCancelled) {
		return cause
	}
	return fmt.Errorf("%w: %v", ErrCancelled, cause)
}
