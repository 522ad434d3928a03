package sweeper

// NoOpSweeper is installed when background sweeping is disabled.
type NoOpSweeper struct{}

// ForceSweep does nothing and reports zero removals.
func (NoOpSweeper) ForceSweep() int { return 0 }

// SweeperMetrics always returns zero values.
func (NoOpSweeper) SweeperMetrics() (scans, removed int64) { return 0, 0 }

// Close does nothing and returns nil.
func (NoOpSweeper) Close() error { return nil }
