// Package cache holds upstream responses between renders. The rendering core
// never touches it; data sources receive a Cache from the host process.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Cache stores opaque values with a per-entry time-to-live. A ttl of 0 means
// the entry does not expire. Implementations are safe for concurrent use.
type Cache interface {
	// Get returns the value for key. A missing or expired entry is reported
	// as ok == false with a nil error.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Close() error
}

// Config selects and configures a backend.
type Config struct {
	// Backend is one of "memory", "file", "redis" or "none".
	Backend   string `toml:"backend"`
	Dir       string `toml:"dir"`
	RedisAddr string `toml:"redis_addr"`
	RedisDB   int    `toml:"redis_db"`
	// Prefix namespaces keys in shared backends.
	Prefix string `toml:"prefix"`
}

// Open builds the backend named by cfg.Backend. An empty backend means memory.
func Open(ctx context.Context, cfg Config) (Cache, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "memory":
		return NewMemory(), nil
	case "file":
		return NewFile(cfg.Dir)
	case "redis":
		return NewRedis(ctx, cfg.RedisAddr, cfg.RedisDB, cfg.Prefix)
	case "none", "off":
		return Null{}, nil
	}
	return nil, fmt.Errorf("cache: unknown backend %q", cfg.Backend)
}

// Key builds a stable cache key from a namespace and arbitrary parts.
func Key(namespace string, parts ...any) string {
	h := sha256.New()
	for _, p := range parts {
		fmt.Fprintf(h, "%v\x00", p)
	}
	return namespace + ":" + hex.EncodeToString(h.Sum(nil)[:12])
}

// GetJSON decodes a cached JSON value into v.
func GetJSON(ctx context.Context, c Cache, key string, v any) (bool, error) {
	data, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("cache: decode %s: %w", key, err)
	}
	return true, nil
}

// PutJSON stores v as JSON.
func PutJSON(ctx context.Context, c Cache, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("cache: encode %s: %w", key, err)
	}
	return c.Put(ctx, key, data, ttl)
}

// Null never stores anything.
type Null struct{}

func (Null) Get(context.Context, string) ([]byte, bool, error)        { return nil, false, nil }
func (Null) Put(context.Context, string, []byte, time.Duration) error { return nil }
func (Null) Close() error                                             { return nil }
