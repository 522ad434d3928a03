package monitor

import (
	"sort"
	"sync"
	"time"
)

// ring keeps the last cap duration samples.
type ring struct {
	mu      sync.Mutex
	samples []time.Duration
	next    int
	full    bool
}

func newRing(capacity int) *ring {
	return &ring{samples: make([]time.Duration, capacity)}
}

func (r *ring) add(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples[r.next] = d
	r.next = (r.next + 1) % len(r.samples)
	if r.next == 0 {
		r.full = true
	}
}

func (r *ring) snapshot() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := r.next
	if r.full {
		n = len(r.samples)
	}
	out := make([]time.Duration, n)
	copy(out, r.samples[:n])
	return out
}

func (r *ring) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next = 0
	r.full = false
}

// DurationStats summarizes a sample set. Percentiles use the nearest-rank
// method over the retained window.
type DurationStats struct {
	Count int
	Avg   time.Duration
	Max   time.Duration
	P95   time.Duration
	P99   time.Duration
}

func summarize(samples []time.Duration) DurationStats {
	if len(samples) == 0 {
		return DurationStats{}
	}

	sorted := make([]time.Duration, len(samples))
	copy(sorted, samples)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var total time.Duration
	for _, d := range sorted {
		total += d
	}

	return DurationStats{
		Count: len(sorted),
		Avg:   total / time.Duration(len(sorted)),
		Max:   sorted[len(sorted)-1],
		P95:   percentile(sorted, 0.95),
		P99:   percentile(sorted, 0.99),
	}
}

func percentile(sorted []time.Duration, q float64) time.Duration {
	idx := int(float64(len(sorted))*q+0.5) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
