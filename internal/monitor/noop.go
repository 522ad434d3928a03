package monitor

import "time"

// NoOp is installed when monitoring is disabled. It records nothing and
// reports empty summaries.
type NoOp struct{}

func (NoOp) RecordHit() {}

func (NoOp) RecordMiss() {}

func (NoOp) RecordAPICall(string, time.Duration, error) {}

func (NoOp) RecordSample(string, time.Duration) {}

func (NoOp) Summary() Summary { return Summary{Samples: map[string]DurationStats{}} }

func (NoOp) Insights() Insights { return Insights{} }

func (NoOp) Reset() {}
