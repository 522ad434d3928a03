package sweeper

import "sync/atomic"

type sweeperCounters struct {
	scans   atomic.Int64 // expiry passes over a non-empty store
	removed atomic.Int64 // entries dropped across all passes
}

func newSweeperCounters() *sweeperCounters {
	return &sweeperCounters{
		scans:   atomic.Int64{},
		removed: atomic.Int64{},
	}
}

func (c *sweeperCounters) snapshot() (scans, removed int64) {
	return c.scans.Load(), c.removed.Load()
}
