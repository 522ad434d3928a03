package config

import "time"

type StoreCfg struct {
	// Namespace prefixes every cache key produced by the store.
	// Clear() removes only namespaced keys from the persisted backend,
	// so several stores can share one backend without trampling each other.
	Namespace string `yaml:"namespace"`

	// DefaultTTL is the entry lifetime applied when Set is called
	// without an explicit TTL. Example: "5m".
	DefaultTTL time.Duration `yaml:"default_ttl"`

	// MaxEntries bounds the in-memory entry count. When a Set pushes the
	// count above this limit, the oldest EvictionBatch entries (by write
	// timestamp) are evicted.
	MaxEntries int `yaml:"max_entries"`

	// EvictionFraction defines the eviction batch as a fraction of
	// MaxEntries. Example: 0.2 -> evict the oldest 20% on overflow.
	EvictionFraction float64 `yaml:"eviction_fraction"`

	// EvictionBatch is derived from MaxEntries and EvictionFraction during
	// initialization and is not read from YAML.
	EvictionBatch int // virtual: computed during init

	// Persistence configures the persisted mirror of the in-memory index.
	// If nil, the store is memory-only.
	Persistence *PersistenceCfg `yaml:"persistence"`
}

func (cfg *StoreCfg) PersistenceEnabled() bool {
	return cfg.Persistence.Enabled()
}
