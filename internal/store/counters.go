package store

import "sync/atomic"

type storeCounters struct {
	hits      atomic.Int64
	misses    atomic.Int64
	sets      atomic.Int64
	deletes   atomic.Int64
	evictions atomic.Int64
}

func newStoreCounters() *storeCounters {
	return &storeCounters{
		hits:      atomic.Int64{},
		misses:    atomic.Int64{},
		sets:      atomic.Int64{},
		deletes:   atomic.Int64{},
		evictions: atomic.Int64{},
	}
}

func (c *storeCounters) snapshot() (hits, misses, sets, deletes, evictions int64) {
	return c.hits.Load(), c.misses.Load(), c.sets.Load(), c.deletes.Load(), c.evictions.Load()
}

func (c *storeCounters) reset() {
	c.hits.Store(0)
	c.misses.Store(0)
	c.sets.Store(0)
	c.deletes.Store(0)
	c.evictions.Store(0)
}
