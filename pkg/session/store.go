package session

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store persists session records keyed by username.
type Store interface {
	// Get retrieves the record for username. A missing record returns
	// (nil, nil): callers treat it as a cache miss, not a failure.
	Get(ctx context.Context, username string) (*Record, error)

	// Put persists the record under its username, replacing any prior one.
	Put(ctx context.Context, record *Record) error

	// Delete removes the record for username. Deleting a missing record
	// is not an error.
	Delete(ctx context.Context, username string) error

	// List returns the usernames with a stored record.
	List(ctx context.Context) ([]string, error)

	// Close releases store resources.
	Close() error
}

// ErrInvalidConfig is returned by NewStore when a driver's required options
// are missing.
var ErrInvalidConfig = errors.New("session: invalid store configuration")

// ErrInvalidStoreType is returned by NewStore for unknown driver names.
var ErrInvalidStoreType = errors.New("session: invalid store type")

// StoreType selects the durable session driver.
type StoreType string

const (
	StoreTypeFile  StoreType = "file"
	StoreTypeRedis StoreType = "redis"
)

// StoreOption configures a session store.
type StoreOption func(*storeConfig)

type storeConfig struct {
	dir         string
	redisClient *redis.Client
	redisTTL    time.Duration
}

// WithDir sets the directory for the file store.
func WithDir(dir string) StoreOption {
	return func(c *storeConfig) { c.dir = dir }
}

// WithRedisClient sets the Redis client for the redis store.
func WithRedisClient(client *redis.Client) StoreOption {
	return func(c *storeConfig) { c.redisClient = client }
}

// WithRedisTTL sets the key TTL for the redis store.
func WithRedisTTL(ttl time.Duration) StoreOption {
	return func(c *storeConfig) { c.redisTTL = ttl }
}

// NewStore creates a session store for the given driver type. The file
// driver requires WithDir; the redis driver requires WithRedisClient.
func NewStore(storeType StoreType, opts ...StoreOption) (Store, error) {
	config := &storeConfig{}
	for _, opt := range opts {
		opt(config)
	}

	switch storeType {
	case StoreTypeFile:
		if config.dir == "" {
			return nil, ErrInvalidConfig
		}
		return newFileStore(config.dir)

	case StoreTypeRedis:
		if config.redisClient == nil {
			return nil, ErrInvalidConfig
		}
		ttl := config.redisTTL
		if ttl <= 0 {
			ttl = MaxRecordAge
		}
		return &redisStore{client: config.redisClient, ttl: ttl}, nil

	default:
		return nil, ErrInvalidStoreType
	}
}
