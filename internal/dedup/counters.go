package dedup

import "sync/atomic"

type dedupCounters struct {
	total        atomic.Int64 // every Do call, attached or not
	deduplicated atomic.Int64 // Do calls that reused a pending execution
	completed    atomic.Int64 // shared executions settled successfully
	failed       atomic.Int64 // shared executions settled with any error
}

func newDedupCounters() *dedupCounters {
	return &dedupCounters{
		total:        atomic.Int64{},
		deduplicated: atomic.Int64{},
		completed:    atomic.Int64{},
		failed:       atomic.Int64{},
	}
}

func (c *dedupCounters) snapshot() (total, deduplicated, completed, failed int64) {
	return c.total.Load(), c.deduplicated.Load(), c.completed.Load(), c.failed.Load()
}

func (c *dedupCounters) reset() {
	c.total.Store(0)
	c.deduplicated.Store(0)
	c.completed.Store(0)
	c.failed.Store(0)
}
