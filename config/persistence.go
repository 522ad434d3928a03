package config

type BackendKind string

const (
	// BackendMemory mirrors entries into a process-local map.
	// Mostly useful in tests and as a quota-exceeded fixture.
	BackendMemory BackendKind = "memory"

	// BackendFile mirrors entries into a single JSON file, written
	// atomically. Entries survive a process restart.
	BackendFile BackendKind = "file"

	// BackendNull discards every write. Reads always miss.
	BackendNull BackendKind = "null"
)

type PersistenceCfg struct {
	// Backend selects the persisted backend implementation.
	Backend BackendKind `yaml:"backend"`

	// Path is the backing file location for the "file" backend.
	Path string `yaml:"path"`

	// MaxBytes caps the total serialized payload held by the "memory"
	// backend. A write that would exceed the cap fails with a
	// quota-exceeded error; the store then cleans expired mirror entries
	// and retries once. Zero means unbounded.
	MaxBytes int64 `yaml:"max_bytes"`
}

func (cfg *PersistenceCfg) Enabled() bool {
	return cfg != nil
}
