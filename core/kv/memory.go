package kv

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

type memoryStore struct {
	prefix string
	c      *gocache.Cache
}

func NewMemory(prefix string) Store {
	return &memoryStore{prefix: prefix, c: gocache.New(gocache.NoExpiration, time.Minute)}
}

func (m *memoryStore) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := m.c.Get(prefixed(m.prefix, key))
	if !ok {
		return nil, ErrNotFound
	}
	b, _ := v.([]byte)
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

func (m *memoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	b := make([]byte, len(value))
	copy(b, value)
	exp := gocache.NoExpiration
	if ttl > 0 {
		exp = ttl
	}
	m.c.Set(prefixed(m.prefix, key), b, exp)
	return nil
}

func (m *memoryStore) Delete(_ context.Context, key string) error {
	m.c.Delete(prefixed(m.prefix, key))
	return nil
}

func (m *memoryStore) Close() error {
	m.c.Flush()
	return nil
}
