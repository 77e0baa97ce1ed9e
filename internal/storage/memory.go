package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// Memory keeps values in process memory. It is safe for concurrent use.
type Memory struct {
	mu       sync.RWMutex
	data     map[string]string
	watchers map[chan Change]struct{}
}

// NewMemory constructs an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string]string), watchers: make(map[chan Change]struct{})}
}

func (m *Memory) Get(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *Memory) Set(ctx context.Context, key, value string) error {
	m.mu.Lock()
	m.data[key] = value
	m.mu.Unlock()
	m.notify(Change{Key: key})
	return nil
}

func (m *Memory) Delete(ctx context.Context, keys ...string) error {
	var removed []string
	m.mu.Lock()
	for _, k := range keys {
		if _, ok := m.data[k]; ok {
			delete(m.data, k)
			removed = append(removed, k)
		}
	}
	m.mu.Unlock()
	for _, k := range removed {
		m.notify(Change{Key: k, Deleted: true})
	}
	return nil
}

func (m *Memory) Keys(ctx context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var keys []string
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Watch subscribes to every write until ctx is done.
func (m *Memory) Watch(ctx context.Context) (<-chan Change, error) {
	ch := make(chan Change, 32)
	m.mu.Lock()
	m.watchers[ch] = struct{}{}
	m.mu.Unlock()
	go func() {
		<-ctx.Done()
		m.mu.Lock()
		delete(m.watchers, ch)
		m.mu.Unlock()
		close(ch)
	}()
	return ch, nil
}

func (m *Memory) notify(change Change) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for ch := range m.watchers {
		select {
		case ch <- change:
		default:
			// slow watcher; it re-reads on the next event anyway
		}
	}
}
