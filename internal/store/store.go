// Package store implements the two-layer TTL store: an authoritative sharded
// in-memory index plus a best-effort persisted mirror. The mirror is a cache
// of the memory cache, never the reverse; on restart it seeds memory with
// whatever is still valid.
package store

import (
	"log/slog"
	"regexp"
	"sync/atomic"

	"github.com/benbjohnson/clock"
	"github.com/issyzac/reqcache/config"
	"github.com/issyzac/reqcache/internal/keys"
	"github.com/issyzac/reqcache/internal/store/backend"
)

type Storer interface {
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
	StoreMetrics() (hits, misses, sets, deletes, evictions int64)
	Stats() Stats
	Reset()
}

// Stats is a point-in-time snapshot of store counters.
// HitRate is 0 when no reads have happened yet.
type Stats struct {
	Hits       int64
	Misses     int64
	Sets       int64
	Deletes    int64
	Evictions  int64
	HitRate    float64
	MemorySize int
}

type Store struct {
	cfg      *config.StoreCfg
	logger   *slog.Logger
	clock    clock.Clock
	backend  backend.Backend
	shards   [numShards]*shard
	counters *storeCounters
	seq      atomic.Int64
	mem      atomic.Int64 // approximate serialized footprint of memory entries
}

func New(cfg *config.StoreCfg, logger *slog.Logger, clk clock.Clock, bk backend.Backend) *Store {
	s := &Store{
		cfg:      cfg,
		logger:   logger,
		clock:    clk,
		backend:  bk,
		counters: newStoreCounters(),
	}
	for i := range s.shards {
		s.shards[i] = newShard()
	}
	s.seed()
	return s
}

func (s *Store) Key(endpoint string, params map[string]any) string {
	return keys.Cache(s.cfg.Namespace, endpoint, params)
}

func (s *Store) Get(key string) (any, bool) {
	now := s.clock.Now()
	sh := s.shardFor(key)

	if e, ok := sh.get(key); ok {
		if !e.Expired(now) {
			s.counters.hits.Add(1)
			return e.Data, true
		}
		// Expired entries behave as absent and are dropped from both
		// layers on the way out.
		found := e
		if sh.removeIf(key, func(cur *Entry) bool { return cur == found }) {
			s.mem.Add(-found.size)
		}
		s.backend.RemoveItem(key)
		s.counters.misses.Add(1)
		return nil, false
	}

	// Memory miss: consult the mirror and lazily promote a valid entry.
	value, ok := s.backend.GetItem(key)
	if !ok {
		s.counters.misses.Add(1)
		return nil, false
	}

	e, err := decodeEntry(key, value)
	if err != nil {
		// Corrupted payloads are a miss, never an error, and the
		// offending entry is purged so it cannot hurt twice.
		s.backend.RemoveItem(key)
		s.counters.misses.Add(1)
		return nil, false
	}
	if e.Expired(now) {
		s.backend.RemoveItem(key)
		s.counters.misses.Add(1)
		return nil, false
	}

	e.seq = s.nextSeq()
	e.size = int64(len(key) + len(value))
	if prev := sh.set(e); prev != nil {
		s.mem.Add(-prev.size)
	}
	s.mem.Add(e.size)
	s.counters.hits.Add(1)
	return e.Data, true
}

func (s *Store) Set(key string, data any, opts ...SetOption) {
	o := setOptions{ttl: s.cfg.DefaultTTL}
	for _, opt := range opts {
		opt(&o)
	}

	e := &Entry{
		Key:       key,
		Data:      data,
		Timestamp: s.clock.Now(),
		TTL:       o.ttl,
		Metadata:  o.metadata,
		seq:       s.nextSeq(),
	}

	value, encErr := encodeEntry(e)
	if encErr == nil {
		e.size = int64(len(key) + len(value))
	}

	if prev := s.shardFor(key).set(e); prev != nil {
		s.mem.Add(-prev.size)
	}
	s.mem.Add(e.size)
	s.counters.sets.Add(1)

	if encErr != nil {
		s.logger.Debug("mirror write skipped", "key", key, "reason", encErr)
	} else {
		s.persist(e, value)
	}
	s.evictIfOverflown()
}

func (s *Store) Delete(key string) {
	e, removed := s.shardFor(key).remove(key)
	s.backend.RemoveItem(key)
	if removed {
		s.mem.Add(-e.size)
		s.counters.deletes.Add(1)
	}
}

// Clear drops every in-memory entry and every namespaced mirror entry.
// Foreign keys sharing the backend are left alone.
func (s *Store) Clear() {
	for _, sh := range s.shards {
		sh.mu.Lock()
		sh.items = make(map[string]*Entry)
		sh.mu.Unlock()
	}
	s.mem.Store(0)
	for _, key := range s.namespacedPersistedKeys() {
		s.backend.RemoveItem(key)
	}
}

// ClearExpired removes every entry failing the validity check "as of now"
// from both layers. Removal is atomic per key, safe against concurrent reads.
func (s *Store) ClearExpired() int {
	now := s.clock.Now()
	removed := 0
	for _, sh := range s.shards {
		for _, e := range sh.snapshot() {
			if !e.Expired(now) {
				continue
			}
			stale := e
			if sh.removeIf(e.Key, func(cur *Entry) bool { return cur == stale }) {
				s.mem.Add(-stale.size)
				s.backend.RemoveItem(e.Key)
				removed++
			}
		}
	}
	removed += s.purgeExpiredPersisted()
	return removed
}

// InvalidateByPattern treats pattern as regex source and removes every
// matching entry from both layers.
func (s *Store) InvalidateByPattern(pattern string) (int, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return 0, err
	}
	return s.InvalidateByRegexp(re), nil
}

// InvalidateByRegexp is the pre-compiled variant. This is an O(n) scan by
// design; n is bounded by the eviction policy.
func (s *Store) InvalidateByRegexp(re *regexp.Regexp) int {
	removed := 0
	for _, sh := range s.shards {
		for _, e := range sh.snapshot() {
			if !re.MatchString(e.Key) {
				continue
			}
			if cur, ok := sh.remove(e.Key); ok {
				s.mem.Add(-cur.size)
				s.backend.RemoveItem(e.Key)
				removed++
			}
		}
	}
	for _, key := range s.namespacedPersistedKeys() {
		if !re.MatchString(key) {
			continue
		}
		if _, ok := s.backend.GetItem(key); ok {
			s.backend.RemoveItem(key)
			removed++
		}
	}
	if removed > 0 {
		s.counters.deletes.Add(int64(removed))
	}
	return removed
}

func (s *Store) Len() int {
	total := 0
	for _, sh := range s.shards {
		total += sh.len()
	}
	return total
}

// Mem reports the approximate serialized footprint of the memory layer.
func (s *Store) Mem() int64 {
	return s.mem.Load()
}

func (s *Store) StoreMetrics() (hits, misses, sets, deletes, evictions int64) {
	return s.counters.snapshot()
}

func (s *Store) Stats() Stats {
	hits, misses, sets, deletes, evictions := s.counters.snapshot()
	st := Stats{
		Hits:       hits,
		Misses:     misses,
		Sets:       sets,
		Deletes:    deletes,
		Evictions:  evictions,
		MemorySize: s.Len(),
	}
	if reads := hits + misses; reads > 0 {
		st.HitRate = float64(hits) / float64(reads)
	}
	return st
}

// Reset clears both layers and zeroes all counters. Test isolation hook.
func (s *Store) Reset() {
	s.Clear()
	s.counters.reset()
}

func (s *Store) nextSeq() int64 {
	return s.seq.Add(1)
}
