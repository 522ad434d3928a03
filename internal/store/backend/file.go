package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
)

// File mirrors entries into a single JSON file so they survive a process
// restart. Every mutation rewrites the file through a tmp+rename pair, so a
// crash mid-write never leaves a torn payload behind. Flush failures are
// logged and reported to the caller; the in-process view stays intact.
type File struct {
	mu    sync.RWMutex
	path  string
	items map[string]string
	order []string
}

func OpenFile(path string) (*File, error) {
	if path == "" {
		return nil, errors.New("file backend requires a path")
	}

	f := &File{path: path, items: make(map[string]string)}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return f, nil
		}
		return nil, fmt.Errorf("read backend file %s: %w", path, err)
	}

	if err = json.Unmarshal(data, &f.items); err != nil {
		// A corrupted snapshot is not fatal, the mirror is best-effort.
		// Start empty and let the next flush overwrite it.
		log.Warn().Err(err).Str("path", path).Msg("discarding corrupted backend file")
		f.items = make(map[string]string)
		return f, nil
	}

	f.order = make([]string, 0, len(f.items))
	for key := range f.items {
		f.order = append(f.order, key)
	}
	sort.Strings(f.order)

	return f, nil
}

func (f *File) GetItem(key string) (string, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	value, ok := f.items[key]
	return value, ok
}

func (f *File) SetItem(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, existed := f.items[key]; !existed {
		f.order = append(f.order, key)
	}
	f.items[key] = value

	return f.flushLocked()
}

func (f *File) RemoveItem(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.items[key]; !ok {
		return
	}
	delete(f.items, key)
	for i, k := range f.order {
		if k == key {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}

	if err := f.flushLocked(); err != nil {
		log.Warn().Err(err).Str("path", f.path).Msg("backend flush after remove failed")
	}
}

func (f *File) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.items)
}

func (f *File) KeyAt(i int) (string, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if i < 0 || i >= len(f.order) {
		return "", false
	}
	return f.order[i], true
}

func (f *File) flushLocked() error {
	data, err := json.Marshal(f.items)
	if err != nil {
		return fmt.Errorf("marshal backend file: %w", err)
	}

	tmp := f.path + ".tmp"
	if err = os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("create backend dir: %w", err)
	}
	if err = os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write backend tmp file: %w", err)
	}
	if err = os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("rename backend tmp file: %w", err)
	}
	return nil
}
