package store

import "time"

// Entry is a single cached value. An entry is valid while
// now - Timestamp < TTL; an invalid entry behaves as absent on read.
type Entry struct {
	Key       string
	Data      any
	Timestamp time.Time
	TTL       time.Duration
	Metadata  map[string]string

	// seq breaks write-timestamp ties so eviction ordering stays
	// deterministic even when two writes land on the same clock reading.
	seq int64

	// size is the serialized footprint (key + envelope), used for the
	// approximate memory accounting reported by telemetry.
	size int64
}

func (e *Entry) Expired(now time.Time) bool {
	return now.Sub(e.Timestamp) >= e.TTL
}

type setOptions struct {
	ttl      time.Duration
	metadata map[string]string
}

type SetOption func(*setOptions)

// WithTTL overrides the store's default TTL for this write.
func WithTTL(ttl time.Duration) SetOption {
	return func(o *setOptions) { o.ttl = ttl }
}

// WithMetadata attaches free-form metadata (size estimates, tags) to the entry.
func WithMetadata(metadata map[string]string) SetOption {
	return func(o *setOptions) { o.metadata = metadata }
}
