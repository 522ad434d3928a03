// Package sweeper runs the background expiry pass: a rate-limited loop that
// removes entries failing the validity check from both store layers, so the
// cache does not rely solely on lazy removal during reads.
package sweeper

import (
	"context"
	"log/slog"

	"github.com/issyzac/reqcache/config"
	"github.com/issyzac/reqcache/internal/shared/rate"
)

// Store is the slice of the TTL store the sweeper needs.
type Store interface {
	Len() int
	ClearExpired() int
}

type Sweeper interface {
	ForceSweep() (removed int)
	SweeperMetrics() (scans, removed int64)
	Close() error
}

type SweepWorker struct {
	ctx      context.Context
	cancel   context.CancelFunc
	cfg      *config.SweeperCfg
	logger   *slog.Logger
	store    Store
	jitter   *rate.Jitter
	counters *sweeperCounters
}

func New(ctx context.Context, cfg *config.SweeperCfg, logger *slog.Logger, store Store) Sweeper {
	if !cfg.Enabled() {
		return &NoOpSweeper{}
	}

	ctx, cancel := context.WithCancel(ctx)
	return (&SweepWorker{
		ctx:      ctx,
		cancel:   cancel,
		cfg:      cfg,
		logger:   logger,
		store:    store,
		jitter:   rate.NewJitter(ctx, cfg.Rate),
		counters: newSweeperCounters(),
	}).run()
}

func (w *SweepWorker) ForceSweep() int {
	return w.sweep()
}

func (w *SweepWorker) SweeperMetrics() (scans, removed int64) {
	return w.counters.snapshot()
}

func (w *SweepWorker) Close() error {
	w.cancel()
	return nil
}

func (w *SweepWorker) run() *SweepWorker {
	w.logger.Info("sweeper is running", "rate", w.cfg.Rate)

	go func() {
		defer w.logger.Info("sweeper is stopped")
		for {
			select {
			case <-w.ctx.Done():
				return
			case <-w.jitter.Chan():
				w.sweep()
			}
		}
	}()

	return w
}

func (w *SweepWorker) sweep() int {
	if w.store.Len() == 0 {
		return 0
	}
	w.counters.scans.Add(1)
	removed := w.store.ClearExpired()
	if removed > 0 {
		w.counters.removed.Add(int64(removed))
	}
	return removed
}
