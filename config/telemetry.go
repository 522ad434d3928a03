package config

import "time"

type TelemetryCfg struct {
	// LogsInterval defines how often cumulative counters are sampled and
	// logged as per-interval deltas. Example: "5s".
	LogsInterval time.Duration `yaml:"logs_interval"`
}

func (cfg *TelemetryCfg) Enabled() bool {
	return cfg != nil
}
