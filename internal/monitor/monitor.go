// Package monitor is the passive performance observer: counters and capped
// duration sample windows with derived percentile summaries and advisory
// insights. Nothing depends on it for correctness and it can be disabled
// entirely via config (a no-op takes its place).
package monitor

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/issyzac/reqcache/config"
	"github.com/prometheus/client_golang/prometheus"
)

type Monitor interface {
	RecordHit()
	RecordMiss()
	RecordAPICall(endpoint string, elapsed time.Duration, err error)
	RecordSample(label string, elapsed time.Duration)
	Summary() Summary
	Insights() Insights
	Reset()
}

// Summary is a point-in-time aggregation of everything recorded so far.
type Summary struct {
	Hits        int64
	Misses      int64
	HitRate     float64
	APICalls    int64
	APIFailures int64
	APIDuration DurationStats
	Samples     map[string]DurationStats
}

// Insights carries advisory findings derived from simple thresholds.
type Insights struct {
	Warnings        []string
	Recommendations []string
}

type Perf struct {
	cfg *config.MonitorCfg

	hits        atomic.Int64
	misses      atomic.Int64
	apiCalls    atomic.Int64
	apiFailures atomic.Int64

	apiDurations *ring

	mu      sync.Mutex
	samples map[string]*ring

	prom *promMetrics
}

// New builds a monitor; reg may be nil to skip prometheus registration.
func New(cfg *config.MonitorCfg, reg prometheus.Registerer) Monitor {
	if !cfg.Enabled() {
		return NoOp{}
	}
	p := &Perf{
		cfg:          cfg,
		apiDurations: newRing(cfg.SampleCap),
		samples:      make(map[string]*ring),
	}
	if cfg.PrometheusEnabled && reg != nil {
		p.prom = registerProm(reg)
	}
	return p
}

func (p *Perf) RecordHit() {
	p.hits.Add(1)
	if p.prom != nil {
		p.prom.lookups.WithLabelValues("hit").Inc()
	}
}

func (p *Perf) RecordMiss() {
	p.misses.Add(1)
	if p.prom != nil {
		p.prom.lookups.WithLabelValues("miss").Inc()
	}
}

func (p *Perf) RecordAPICall(endpoint string, elapsed time.Duration, err error) {
	p.apiCalls.Add(1)
	if err != nil {
		p.apiFailures.Add(1)
	}
	p.apiDurations.add(elapsed)

	if p.prom != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		p.prom.apiCalls.WithLabelValues(status).Inc()
		p.prom.apiDuration.Observe(elapsed.Seconds())
	}
}

// RecordSample feeds an arbitrary labeled duration window, e.g. page render
// or asset load timings supplied by the embedding application.
func (p *Perf) RecordSample(label string, elapsed time.Duration) {
	p.mu.Lock()
	r, ok := p.samples[label]
	if !ok {
		r = newRing(p.cfg.SampleCap)
		p.samples[label] = r
	}
	p.mu.Unlock()
	r.add(elapsed)
}

func (p *Perf) Summary() Summary {
	hits, misses := p.hits.Load(), p.misses.Load()
	s := Summary{
		Hits:        hits,
		Misses:      misses,
		APICalls:    p.apiCalls.Load(),
		APIFailures: p.apiFailures.Load(),
		APIDuration: summarize(p.apiDurations.snapshot()),
		Samples:     make(map[string]DurationStats),
	}
	if reads := hits + misses; reads > 0 {
		s.HitRate = float64(hits) / float64(reads)
	}

	p.mu.Lock()
	for label, r := range p.samples {
		s.Samples[label] = summarize(r.snapshot())
	}
	p.mu.Unlock()

	return s
}

func (p *Perf) Insights() Insights {
	s := p.Summary()
	var in Insights

	if reads := s.Hits + s.Misses; reads == 0 {
		in.Recommendations = append(in.Recommendations, "no cache reads recorded yet, insights need traffic")
	} else if s.HitRate < p.cfg.MinHitRate {
		in.Warnings = append(in.Warnings, fmt.Sprintf(
			"cache hit rate %.2f is below %.2f, consider longer TTLs or warming hot keys", s.HitRate, p.cfg.MinHitRate))
	}

	if p.cfg.SlowCallThreshold > 0 && s.APIDuration.Count > 0 && s.APIDuration.Avg > p.cfg.SlowCallThreshold {
		in.Warnings = append(in.Warnings, fmt.Sprintf(
			"average api call takes %s, above the %s threshold", s.APIDuration.Avg, p.cfg.SlowCallThreshold))
	}

	if s.APICalls > 0 {
		if failureRate := float64(s.APIFailures) / float64(s.APICalls); failureRate > 0.1 {
			in.Warnings = append(in.Warnings, fmt.Sprintf(
				"%.0f%% of api calls fail, caching cannot mask an unhealthy upstream", failureRate*100))
		}
	}

	if len(in.Warnings) == 0 && s.Hits+s.Misses > 0 {
		in.Recommendations = append(in.Recommendations, "cache behavior looks healthy")
	}

	return in
}

func (p *Perf) Reset() {
	p.hits.Store(0)
	p.misses.Store(0)
	p.apiCalls.Store(0)
	p.apiFailures.Store(0)
	p.apiDurations.reset()

	p.mu.Lock()
	p.samples = make(map[string]*ring)
	p.mu.Unlock()
}
