package store

import (
	gocache "github.com/patrickmn/go-cache"
)

// memoryLayer mirrors recently read or written values so repeated reads skip SQLite.
// Entries never expire; the backend is the source of truth.
type memoryLayer struct {
	cache *gocache.Cache
}

func newMemoryLayer() *memoryLayer {
	return &memoryLayer{cache: gocache.New(gocache.NoExpiration, 0)}
}

func (m *memoryLayer) get(key string) ([]byte, bool) {
	if val, found := m.cache.Get(key); found {
		return val.([]byte), true
	}
	return nil, false
}

func (m *memoryLayer) set(key string, value []byte) {
	m.cache.Set(key, value, gocache.NoExpiration)
}

func (m *memoryLayer) delete(keys ...string) {
	for _, key := range keys {
		m.cache.Delete(key)
	}
}
