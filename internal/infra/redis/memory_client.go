package redis

import (
	"context"
	"fmt"
	"sync"
	"time"
)

var _ RedisClient = (*MemoryClient)(nil)

// MemoryClient is an in-process RedisClient for tests and single-node dev runs.
// Expired keys are dropped lazily on read.
type MemoryClient struct {
	mu   sync.Mutex
	data map[string]memEntry
	now  func() time.Time

	// Err, when set, is returned by every call.
	Err error
}

type memEntry struct {
	val     string
	expires time.Time
}

func NewMemoryClient() *MemoryClient {
	return &MemoryClient{data: map[string]memEntry{}, now: time.Now}
}

func (m *MemoryClient) live(key string) (memEntry, bool) {
	e, ok := m.data[key]
	if ok && !e.expires.IsZero() && !m.now().Before(e.expires) {
		delete(m.data, key)
		return memEntry{}, false
	}
	return e, ok
}

func (m *MemoryClient) entry(value interface{}, ttl time.Duration) memEntry {
	var s string
	switch v := value.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		s = fmt.Sprint(v)
	}
	e := memEntry{val: s}
	if ttl > 0 {
		e.expires = m.now().Add(ttl)
	}
	return e
}

func (m *MemoryClient) Ping(ctx context.Context) error { return m.Err }

func (m *MemoryClient) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = m.entry(value, ttl)
	return nil
}

func (m *MemoryClient) SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error) {
	if m.Err != nil {
		return false, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.live(key); ok {
		return false, nil
	}
	m.data[key] = m.entry(value, ttl)
	return true, nil
}

func (m *MemoryClient) Get(ctx context.Context, key string) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.live(key)
	if !ok {
		return "", Nil
	}
	return e.val, nil
}

func (m *MemoryClient) Exists(ctx context.Context, key string) (bool, error) {
	if m.Err != nil {
		return false, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.live(key)
	return ok, nil
}

func (m *MemoryClient) Del(ctx context.Context, keys ...string) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *MemoryClient) Close() error { return nil }
