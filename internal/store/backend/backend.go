// Package backend defines the pluggable persisted key/value layer that
// mirrors the in-memory store. The mirror is strictly best-effort: writes
// may fail (quota, I/O) without affecting the authoritative memory layer.
package backend

import (
	"errors"
	"fmt"

	"github.com/issyzac/reqcache/config"
)

// ErrQuotaExceeded reports that a write would push the backend past its
// configured capacity. The store reacts by purging expired mirror entries
// and retrying the write once.
var ErrQuotaExceeded = errors.New("backend quota exceeded")

type Backend interface {
	// GetItem returns the serialized entry for key, if present.
	GetItem(key string) (value string, ok bool)

	// SetItem stores the serialized entry. May fail with ErrQuotaExceeded.
	SetItem(key, value string) error

	// RemoveItem deletes the entry. Idempotent.
	RemoveItem(key string)

	// Len returns the number of stored entries.
	Len() int

	// KeyAt returns the key at position i in an arbitrary but stable-for-
	// the-duration-of-a-scan order. ok is false when i is out of range.
	KeyAt(i int) (key string, ok bool)
}

// New builds a backend from config.
func New(cfg *config.PersistenceCfg) (Backend, error) {
	if !cfg.Enabled() {
		return NewNull(), nil
	}
	switch cfg.Backend {
	case config.BackendMemory:
		return NewMemory(cfg.MaxBytes), nil
	case config.BackendFile:
		return OpenFile(cfg.Path)
	case config.BackendNull, "":
		return NewNull(), nil
	default:
		return nil, fmt.Errorf("unknown persistence backend %q", cfg.Backend)
	}
}

// Keys snapshots every key currently visible in b.
func Keys(b Backend) []string {
	out := make([]string, 0, b.Len())
	for i := 0; ; i++ {
		key, ok := b.KeyAt(i)
		if !ok {
			return out
		}
		out = append(out, key)
	}
}
