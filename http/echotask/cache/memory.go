package cache

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Memory caches response bodies in an expirable LRU. Entries are evicted
// once maxSize is exceeded or the TTL elapses, whichever comes first.
type Memory struct {
	cache *expirable.LRU[string, []byte]
}

func NewMemory(maxSize int, ttl time.Duration) *Memory {
	return &Memory{
		cache: expirable.NewLRU[string, []byte](maxSize, nil, ttl),
	}
}

// Get returns the cached content for key, or false if absent or expired.
func (m *Memory) Get(key string) ([]byte, bool) {
	return m.cache.Get(key)
}

// Set stores content under key until the TTL elapses or it is evicted.
func (m *Memory) Set(key string, content []byte) {
	m.cache.Add(key, content)
}
