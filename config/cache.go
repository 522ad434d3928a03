package config

import "time"

// Defaults applied by AdjustConfig when a knob is left at its zero value.
const (
	DefaultTTL              = 5 * time.Minute
	DefaultMaxEntries       = 100
	DefaultRequestTimeout   = 30 * time.Second
	DefaultEvictionFraction = 0.2
	DefaultSampleCap        = 100
	DefaultMinHitRate       = 0.3
	DefaultLogsInterval     = 5 * time.Second
)

// Cache groups configuration of all subsystems.
// Optional components can be disabled by setting their config to nil.
type Cache struct {
	// Store configures the TTL store: namespace, entry lifetime,
	// size bound and the persisted mirror.
	Store StoreCfg `yaml:"store"`

	// Dedup configures the request deduplicator.
	Dedup DedupCfg `yaml:"dedup"`

	// Sweeper configures the background expired-entry sweeper.
	// If nil, expired entries are only removed lazily on access
	// or via explicit ClearExpired calls.
	Sweeper *SweeperCfg `yaml:"sweeper"`

	// Monitor configures the passive performance monitor.
	// If nil, monitoring is disabled and a no-op monitor is installed;
	// no component depends on it for correctness.
	Monitor *MonitorCfg `yaml:"monitor"`

	// Telemetry configures periodic structured stats logging.
	// If nil, no stats are logged.
	Telemetry *TelemetryCfg `yaml:"telemetry"`
}
