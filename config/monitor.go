package config

import "time"

type MonitorCfg struct {
	// SampleCap bounds each duration sample ring buffer (last N samples).
	SampleCap int `yaml:"sample_cap"`

	// MinHitRate is the hit-rate floor below which the monitor emits a
	// low-hit-rate warning in its insights. Typical value: 0.3.
	MinHitRate float64 `yaml:"min_hit_rate"`

	// SlowCallThreshold marks an API call as slow for insight purposes.
	// Example: "1s".
	SlowCallThreshold time.Duration `yaml:"slow_call_threshold"`

	// PrometheusEnabled additionally registers the monitor counters and
	// duration histogram with a prometheus registerer when one is supplied.
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
}

func (cfg *MonitorCfg) Enabled() bool {
	return cfg != nil
}
