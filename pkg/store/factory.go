package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-training/cvgen-relay/pkg/core"
)

// DefaultTTL is the session lifetime used when none is configured.
const DefaultTTL = 24 * time.Hour

// StoreType represents the type of store backend.
type StoreType string

const (
	// StoreTypeMemory represents in-memory storage.
	StoreTypeMemory StoreType = "memory"
	// StoreTypeRedis represents Redis storage.
	StoreTypeRedis StoreType = "redis"
)

// Config contains configuration for creating a store.
type Config struct {
	// Type specifies the store type (memory or redis).
	Type StoreType
	// TTL is the session lifetime.
	TTL time.Duration
	// Redis contains Redis-specific configuration.
	Redis RedisOptions
}

// Factory creates store instances based on configuration.
type Factory struct {
	config Config
}

// NewFactory creates a new store factory with the provided configuration.
func NewFactory(config Config) *Factory {
	return &Factory{
		config: config,
	}
}

// Create creates and returns a new store instance based on the factory configuration.
// Returns an error if the store type is invalid or if store creation fails.
func (f *Factory) Create() (core.SessionStore, error) {
	switch f.config.Type {
	case StoreTypeMemory:
		return NewMemoryStore(f.config.TTL), nil
	case StoreTypeRedis:
		return NewRedisStoreFromOptions(f.config.Redis, f.config.TTL)
	default:
		return nil, fmt.Errorf("unsupported store type: %s", f.config.Type)
	}
}

// NewStore is a convenience function that creates a store directly from configuration.
// It's equivalent to NewFactory(config).Create().
func NewStore(config Config) (core.SessionStore, error) {
	return NewFactory(config).Create()
}

// ParseStoreType parses a string into a StoreType.
// An empty string selects StoreTypeMemory. Unknown names are returned as-is
// and report false from IsValid.
func ParseStoreType(s string) StoreType {
	switch name := strings.ToLower(strings.TrimSpace(s)); name {
	case "", "memory":
		return StoreTypeMemory
	case "redis":
		return StoreTypeRedis
	default:
		return StoreType(name)
	}
}

// String returns the string representation of a StoreType.
func (t StoreType) String() string {
	return string(t)
}

// IsValid returns true if the StoreType is valid.
func (t StoreType) IsValid() bool {
	switch t {
	case StoreTypeMemory, StoreTypeRedis:
		return true
	default:
		return false
	}
}

// MemoryConfig creates a memory store configuration.
func MemoryConfig(ttl time.Duration) Config {
	return Config{
		Type: StoreTypeMemory,
		TTL:  ttl,
	}
}

// RedisConfig creates a Redis store configuration with the provided options.
func RedisConfig(redisOpts RedisOptions, ttl time.Duration) Config {
	return Config{
		Type:  StoreTypeRedis,
		TTL:   ttl,
		Redis: redisOpts,
	}
}
