package telemetry

import (
	"github.com/issyzac/reqcache/internal/dedup"
	"github.com/issyzac/reqcache/internal/store"
	"github.com/issyzac/reqcache/internal/sweeper"
)

type sampler struct {
	store   store.Storer
	dedup   dedup.Deduplicator
	sweeper sweeper.Sweeper
}

func newSampler(st store.Storer, dd dedup.Deduplicator, sw sweeper.Sweeper) sampler {
	return sampler{store: st, dedup: dd, sweeper: sw}
}

// snapshot holds cumulative counters (monotonic between resets).
type snapshot struct {
	hits      uint64
	misses    uint64
	sets      uint64
	deletes   uint64
	evictions uint64

	dedupTotal     uint64
	dedupShared    uint64
	dedupCompleted uint64
	dedupFailed    uint64

	sweepScans   uint64
	sweepRemoved uint64
}

func (s sampler) snapshot() snapshot {
	hits, misses, sets, deletes, evictions := s.store.StoreMetrics()
	total, shared, completed, failed := s.dedup.DedupMetrics()
	scans, removed := s.sweeper.SweeperMetrics()

	return snapshot{
		hits:      uint64(max(hits, 0)),
		misses:    uint64(max(misses, 0)),
		sets:      uint64(max(sets, 0)),
		deletes:   uint64(max(deletes, 0)),
		evictions: uint64(max(evictions, 0)),

		dedupTotal:     uint64(max(total, 0)),
		dedupShared:    uint64(max(shared, 0)),
		dedupCompleted: uint64(max(completed, 0)),
		dedupFailed:    uint64(max(failed, 0)),

		sweepScans:   uint64(max(scans, 0)),
		sweepRemoved: uint64(max(removed, 0)),
	}
}

// deltaSnapshot converts cumulative snapshots to per-interval deltas.
// If counters reset (cur < prev), it treats cur as the delta.
func deltaSnapshot(prev, cur snapshot) snapshot {
	return snapshot{
		hits:      delta(prev.hits, cur.hits),
		misses:    delta(prev.misses, cur.misses),
		sets:      delta(prev.sets, cur.sets),
		deletes:   delta(prev.deletes, cur.deletes),
		evictions: delta(prev.evictions, cur.evictions),

		dedupTotal:     delta(prev.dedupTotal, cur.dedupTotal),
		dedupShared:    delta(prev.dedupShared, cur.dedupShared),
		dedupCompleted: delta(prev.dedupCompleted, cur.dedupCompleted),
		dedupFailed:    delta(prev.dedupFailed, cur.dedupFailed),

		sweepScans:   delta(prev.sweepScans, cur.sweepScans),
		sweepRemoved: delta(prev.sweepRemoved, cur.sweepRemoved),
	}
}

func delta(prev, cur uint64) uint64 {
	if cur >= prev {
		return cur - prev
	}
	return cur
}
