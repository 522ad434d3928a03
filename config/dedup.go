package config

import "time"

type DedupCfg struct {
	// DefaultTimeout bounds the shared in-flight execution when a caller
	// does not supply its own timeout. The timeout is scoped to the shared
	// execution, not to each subscriber. Example: "30s".
	DefaultTimeout time.Duration `yaml:"default_timeout"`
}
