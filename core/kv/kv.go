// Package kv is the key-value persistence the permission store snapshots into.
//
// Drivers:
//   - memory: in-process, backed by go-cache (single node, tests)
//   - redis: shared across nodes
//   - db: the application SQL database (kv_entries table)
package kv

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrNotFound = errors.New("kv: key not found")

// Store is acquired once at startup and closed on shutdown. A ttl of 0 means no expiry.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

type Config struct {
	Driver        string
	Prefix        string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
	DriverDB     = "db"
)

// Open builds the configured store. dbStore backs the "db" driver and may be nil otherwise.
func Open(ctx context.Context, cfg Config, dbStore Store) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case DriverRedis:
		return NewRedis(ctx, cfg)
	case DriverDB:
		if dbStore == nil {
			return nil, fmt.Errorf("kv: db driver requires a database")
		}
		return WithPrefix(dbStore, cfg.Prefix), nil
	case DriverMemory, "":
		return NewMemory(cfg.Prefix), nil
	default:
		return nil, fmt.Errorf("kv: unsupported driver %q", cfg.Driver)
	}
}

func prefixed(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + ":" + key
}

type prefixStore struct {
	base   Store
	prefix string
}

// WithPrefix namespaces every key of base.
func WithPrefix(base Store, prefix string) Store {
	if prefix == "" {
		return base
	}
	return &prefixStore{base: base, prefix: prefix}
}

func (p *prefixStore) Get(ctx context.Context, key string) ([]byte, error) {
	return p.base.Get(ctx, prefixed(p.prefix, key))
}

func (p *prefixStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return p.base.Set(ctx, prefixed(p.prefix, key), value, ttl)
}

func (p *prefixStore) Delete(ctx context.Context, key string) error {
	return p.base.Delete(ctx, prefixed(p.prefix, key))
}

func (p *prefixStore) Close() error { return p.base.Close() }
