package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/issyzac/reqcache/internal/store/backend"
)

// envelope is the serialized form an entry takes in the persisted mirror.
type envelope struct {
	Data      any               `json:"data"`
	Timestamp int64             `json:"timestamp"` // unix nanoseconds of the write
	TTL       int64             `json:"ttl"`       // nanoseconds
	Metadata  map[string]string `json:"metadata,omitempty"`
}

func encodeEntry(e *Entry) (string, error) {
	data, err := json.Marshal(envelope{
		Data:      e.Data,
		Timestamp: e.Timestamp.UnixNano(),
		TTL:       int64(e.TTL),
		Metadata:  e.Metadata,
	})
	if err != nil {
		return "", fmt.Errorf("encode entry %s: %w", e.Key, err)
	}
	return string(data), nil
}

func decodeEntry(key, value string) (*Entry, error) {
	var env envelope
	if err := json.Unmarshal([]byte(value), &env); err != nil {
		return nil, fmt.Errorf("decode entry %s: %w", key, err)
	}
	if env.TTL <= 0 {
		return nil, fmt.Errorf("decode entry %s: non-positive ttl", key)
	}
	return &Entry{
		Key:       key,
		Data:      env.Data,
		Timestamp: time.Unix(0, env.Timestamp),
		TTL:       time.Duration(env.TTL),
		Metadata:  env.Metadata,
	}, nil
}

// persistResult makes the mirror write outcome an explicit, testable value
// instead of an ambient swallowed error.
type persistResult struct {
	ok     bool
	quota  bool
	reason error
}

func (s *Store) tryPersist(key, value string) persistResult {
	if err := s.backend.SetItem(key, value); err != nil {
		return persistResult{quota: errors.Is(err, backend.ErrQuotaExceeded), reason: err}
	}
	return persistResult{ok: true}
}

// persist writes the serialized entry to the mirror. On quota pressure it
// purges expired mirror entries (falling back to the oldest-written ones
// when nothing has expired), retries once and then gives up: the memory
// write already succeeded, so the caller never sees a failure.
func (s *Store) persist(e *Entry, value string) {
	res := s.tryPersist(e.Key, value)
	if res.ok {
		return
	}
	if !res.quota {
		s.logger.Debug("mirror write skipped", "key", e.Key, "reason", res.reason)
		return
	}

	if removed := s.purgeExpiredPersisted(); removed == 0 {
		s.dropOldestPersisted(s.cfg.EvictionBatch)
	}

	if res = s.tryPersist(e.Key, value); !res.ok {
		s.logger.Debug("mirror write abandoned after retry", "key", e.Key, "reason", res.reason)
	}
}

// purgeExpiredPersisted removes every expired or undecodable namespaced
// entry from the mirror and reports how many were dropped.
func (s *Store) purgeExpiredPersisted() int {
	now := s.clock.Now()
	removed := 0
	for _, key := range s.namespacedPersistedKeys() {
		value, ok := s.backend.GetItem(key)
		if !ok {
			continue
		}
		e, err := decodeEntry(key, value)
		if err != nil || e.Expired(now) {
			s.backend.RemoveItem(key)
			removed++
		}
	}
	return removed
}

// dropOldestPersisted removes up to n namespaced mirror entries, oldest
// write first.
func (s *Store) dropOldestPersisted(n int) {
	type aged struct {
		key       string
		timestamp int64
	}
	candidates := make([]aged, 0, s.backend.Len())
	for _, key := range s.namespacedPersistedKeys() {
		value, ok := s.backend.GetItem(key)
		if !ok {
			continue
		}
		e, err := decodeEntry(key, value)
		if err != nil {
			s.backend.RemoveItem(key)
			continue
		}
		candidates = append(candidates, aged{key: key, timestamp: e.Timestamp.UnixNano()})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].timestamp < candidates[j].timestamp
	})
	if n > len(candidates) {
		n = len(candidates)
	}
	for _, c := range candidates[:n] {
		s.backend.RemoveItem(c.key)
	}
}

func (s *Store) namespacedPersistedKeys() []string {
	all := backend.Keys(s.backend)
	out := all[:0]
	for _, key := range all {
		if strings.HasPrefix(key, s.cfg.Namespace) {
			out = append(out, key)
		}
	}
	return out
}

// seed loads still-valid namespaced mirror entries into memory and drops
// anything expired or corrupted. Runs once at construction.
func (s *Store) seed() {
	now := s.clock.Now()
	for _, key := range s.namespacedPersistedKeys() {
		value, ok := s.backend.GetItem(key)
		if !ok {
			continue
		}
		e, err := decodeEntry(key, value)
		if err != nil || e.Expired(now) {
			s.backend.RemoveItem(key)
			continue
		}
		e.seq = s.nextSeq()
		e.size = int64(len(key) + len(value))
		s.shardFor(key).set(e)
		s.mem.Add(e.size)
	}
}
