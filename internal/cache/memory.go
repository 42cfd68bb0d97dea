package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

var ErrNotFound = errors.New("key not found")

const defaultMemoryEntries = 10_000

// MemoryProvider is a single-process Provider. Shop snapshots and placement
// claims only survive as long as the process, so it suits development and
// single-replica deployments.
type MemoryProvider struct {
	mu      sync.Mutex
	entries *lru.Cache[string, entry]
	now     func() time.Time
}

type entry struct {
	value   string
	expires time.Time
}

func (e entry) liveAt(t time.Time) bool {
	return t.Before(e.expires)
}

func NewMemoryProvider() (*MemoryProvider, error) {
	return newMemoryProvider(defaultMemoryEntries, time.Now)
}

func newMemoryProvider(size int, now func() time.Time) (*MemoryProvider, error) {
	if size <= 0 {
		size = defaultMemoryEntries
	}
	entries, err := lru.New[string, entry](size)
	if err != nil {
		return nil, err
	}
	return &MemoryProvider{entries: entries, now: now}, nil
}

func (m *MemoryProvider) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries.Get(key)
	if !ok {
		return "", ErrNotFound
	}
	if !e.liveAt(m.now()) {
		m.entries.Remove(key)
		return "", ErrNotFound
	}
	return e.value, nil
}

func (m *MemoryProvider) Set(_ context.Context, key string, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries.Add(key, entry{value: value, expires: m.now().Add(ttl)})
	return nil
}

// SetNX treats an expired entry as absent, matching redis key expiry.
func (m *MemoryProvider) SetNX(_ context.Context, key string, value string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if e, ok := m.entries.Peek(key); ok && e.liveAt(now) {
		return false, nil
	}
	m.entries.Add(key, entry{value: value, expires: now.Add(ttl)})
	return true, nil
}

func (m *MemoryProvider) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries.Remove(key)
	return nil
}

func (m *MemoryProvider) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries.Purge()
	return nil
}
