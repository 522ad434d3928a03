package store

import (
	"sync"

	"github.com/issyzac/reqcache/internal/keys"
)

const numShards = 16

type shard struct {
	mu    sync.RWMutex
	items map[string]*Entry
}

func newShard() *shard {
	return &shard{items: make(map[string]*Entry)}
}

func (s *Store) shardFor(key string) *shard {
	return s.shards[keys.ShardIndex(key, numShards)]
}

func (sh *shard) get(key string) (*Entry, bool) {
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	e, ok := sh.items[key]
	return e, ok
}

func (sh *shard) set(e *Entry) (prev *Entry) {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	prev = sh.items[e.Key]
	sh.items[e.Key] = e
	return prev
}

func (sh *shard) remove(key string) (*Entry, bool) {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	e, ok := sh.items[key]
	if !ok {
		return nil, false
	}
	delete(sh.items, key)
	return e, true
}

// removeIf deletes key only while pred still holds under the write lock,
// so a concurrent overwrite is never a casualty of a stale decision.
func (sh *shard) removeIf(key string, pred func(*Entry) bool) bool {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	e, ok := sh.items[key]
	if !ok || !pred(e) {
		return false
	}
	delete(sh.items, key)
	return true
}

func (sh *shard) len() int {
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	return len(sh.items)
}

func (sh *shard) snapshot() []*Entry {
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	out := make([]*Entry, 0, len(sh.items))
	for _, e := range sh.items {
		out = append(out, e)
	}
	return out
}
