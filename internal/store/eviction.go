package store

import "sort"

// evictIfOverflown enforces the MaxEntries bound after a write: when the
// in-memory count exceeds the limit, the oldest EvictionBatch entries by
// write timestamp are removed from both layers. This is LRU-by-write, not
// LRU-by-access: a read never rescues an entry from eviction.
func (s *Store) evictIfOverflown() {
	if s.Len() <= s.cfg.MaxEntries {
		return
	}

	all := make([]*Entry, 0, s.cfg.MaxEntries+1)
	for _, sh := range s.shards {
		all = append(all, sh.snapshot()...)
	}

	sort.Slice(all, func(i, j int) bool {
		a, b := all[i], all[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		return a.seq < b.seq
	})

	batch := s.cfg.EvictionBatch
	if batch > len(all) {
		batch = len(all)
	}

	evicted := int64(0)
	for _, victim := range all[:batch] {
		// Only evict the exact snapshot we ranked; a concurrent overwrite
		// produced a newer entry that must survive.
		v := victim
		if s.shardFor(v.Key).removeIf(v.Key, func(cur *Entry) bool { return cur == v }) {
			s.backend.RemoveItem(v.Key)
			s.mem.Add(-v.size)
			evicted++
		}
	}
	if evicted > 0 {
		s.counters.evictions.Add(evicted)
	}
}
