package telemetry

import (
	"context"
	"log/slog"
	"time"

	"github.com/issyzac/reqcache/config"
	"github.com/issyzac/reqcache/internal/dedup"
	"github.com/issyzac/reqcache/internal/shared/bytes"
	"github.com/issyzac/reqcache/internal/store"
	"github.com/issyzac/reqcache/internal/sweeper"
)

type Logger interface {
	Interval() time.Duration
	Close() error
}

// Logs periodically samples cumulative component counters and logs
// per-interval deltas. It never mutates the components it observes.
type Logs struct {
	ctx      context.Context
	cancel   context.CancelFunc
	cfg      *config.Cache
	logger   *slog.Logger
	store    store.Storer
	dedup    dedup.Deduplicator
	sweeper  sweeper.Sweeper
	interval time.Duration
}

func New(
	ctx context.Context,
	cfg *config.Cache,
	logger *slog.Logger,
	st store.Storer,
	dd dedup.Deduplicator,
	sw sweeper.Sweeper,
) *Logs {
	ctx, cancel := context.WithCancel(ctx)
	interval := time.Duration(0)
	if cfg.Telemetry.Enabled() {
		interval = cfg.Telemetry.LogsInterval
	}
	return (&Logs{
		ctx:      ctx,
		cancel:   cancel,
		cfg:      cfg,
		logger:   logger,
		store:    st,
		dedup:    dd,
		sweeper:  sw,
		interval: interval,
	}).run()
}

func (l *Logs) Interval() time.Duration {
	return l.interval
}

func (l *Logs) Close() error {
	l.cancel()
	return nil
}

func (l *Logs) run() *Logs {
	if l.cfg.Telemetry.Enabled() {
		go l.loop()
	}
	return l
}

func (l *Logs) loop() {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	s := newSampler(l.store, l.dedup, l.sweeper)
	prev := s.snapshot()

	for {
		select {
		case <-l.ctx.Done():
			return

		case <-ticker.C:
			cur := s.snapshot()
			d := deltaSnapshot(prev, cur)
			prev = cur

			common := []any{"interval", l.interval.String()}

			l.logger.Info("store",
				append(common,
					"hits", int64(d.hits),
					"misses", int64(d.misses),
					"sets", int64(d.sets),
					"deletes", int64(d.deletes),
					"evictions", int64(d.evictions),
					"entries", l.store.Len(),
					"size", bytes.FmtMem(uint64(l.store.Mem())),
					"limit", l.cfg.Store.MaxEntries,
				)...,
			)

			l.logger.Info("deduplicator",
				append(common,
					"requests", int64(d.dedupTotal),
					"deduplicated", int64(d.dedupShared),
					"completed", int64(d.dedupCompleted),
					"failed", int64(d.dedupFailed),
					"pending", len(l.dedup.Pending()),
				)...,
			)

			if l.cfg.Sweeper.Enabled() {
				l.logger.Info("sweeper",
					append(common,
						"scans", int64(d.sweepScans),
						"removed", int64(d.sweepRemoved),
					)...,
				)
			}
		}
	}
}
