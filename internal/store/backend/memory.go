package backend

import "sync"

// Memory is a process-local backend. With a byte cap it doubles as the
// quota-exceeded fixture for the store's cleanup-and-retry path.
type Memory struct {
	mu       sync.RWMutex
	items    map[string]string
	order    []string // insertion order, for KeyAt
	bytes    int64
	maxBytes int64 // 0 means unbounded
}

func NewMemory(maxBytes int64) *Memory {
	return &Memory{
		items:    make(map[string]string),
		maxBytes: maxBytes,
	}
}

func (m *Memory) GetItem(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.items[key]
	return value, ok
}

func (m *Memory) SetItem(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev, existed := m.items[key]
	next := m.bytes + int64(len(key)+len(value))
	if existed {
		next -= int64(len(key) + len(prev))
	}
	if m.maxBytes > 0 && next > m.maxBytes {
		return ErrQuotaExceeded
	}

	m.items[key] = value
	m.bytes = next
	if !existed {
		m.order = append(m.order, key)
	}
	return nil
}

func (m *Memory) RemoveItem(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	value, ok := m.items[key]
	if !ok {
		return
	}
	delete(m.items, key)
	m.bytes -= int64(len(key) + len(value))
	for i, k := range m.order {
		if k == key {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

func (m *Memory) KeyAt(i int) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if i < 0 || i >= len(m.order) {
		return "", false
	}
	return m.order[i], true
}
