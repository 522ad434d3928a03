package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

func (cfg *Cache) AdjustConfig() {
	if cfg.Store.DefaultTTL <= 0 {
		cfg.Store.DefaultTTL = DefaultTTL
	}
	if cfg.Store.MaxEntries <= 0 {
		cfg.Store.MaxEntries = DefaultMaxEntries
	}
	if cfg.Store.EvictionFraction <= 0 || cfg.Store.EvictionFraction > 1 {
		cfg.Store.EvictionFraction = DefaultEvictionFraction
	}
	cfg.Store.EvictionBatch = int(float64(cfg.Store.MaxEntries) * cfg.Store.EvictionFraction)
	if cfg.Store.EvictionBatch < 1 {
		cfg.Store.EvictionBatch = 1
	}

	if cfg.Dedup.DefaultTimeout <= 0 {
		cfg.Dedup.DefaultTimeout = DefaultRequestTimeout
	}

	if cfg.Monitor.Enabled() && cfg.Monitor.SampleCap <= 0 {
		cfg.Monitor.SampleCap = DefaultSampleCap
	}
	if cfg.Monitor.Enabled() && cfg.Monitor.MinHitRate <= 0 {
		cfg.Monitor.MinHitRate = DefaultMinHitRate
	}

	if cfg.Telemetry.Enabled() && cfg.Telemetry.LogsInterval <= 0 {
		cfg.Telemetry.LogsInterval = DefaultLogsInterval
	}
}

func LoadConfig(path string) (*Cache, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("stat config path: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config yaml file %s: %w", path, err)
	}

	var cfg *Cache
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml from %s: %w", path, err)
	}
	cfg.AdjustConfig()

	return cfg, nil
}
