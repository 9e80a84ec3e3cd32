package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisLogPrefix = "session:redisstore"

const redisKeyPrefix = "linkedin-agent:session:"

// redisStore keeps session records in Redis with a TTL matching the record
// validity window, for deployments that share sessions across hosts.
type redisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func (s *redisStore) Get(ctx context.Context, username string) (*Record, error) {
	val, err := s.client.Get(ctx, redisKeyPrefix+username).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s - get record for %s: %w", redisLogPrefix, username, err)
	}

	var record Record
	if err := json.Unmarshal([]byte(val), &record); err != nil {
		return nil, nil
	}
	return &record, nil
}

func (s *redisStore) Put(ctx context.Context, record *Record) error {
	if record == nil || record.Username == "" {
		return fmt.Errorf("%s - record requires a username", redisLogPrefix)
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("%s - marshal record: %w", redisLogPrefix, err)
	}
	if err := s.client.Set(ctx, redisKeyPrefix+record.Username, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("%s - set record for %s: %w", redisLogPrefix, record.Username, err)
	}
	return nil
}

func (s *redisStore) Delete(ctx context.Context, username string) error {
	if err := s.client.Del(ctx, redisKeyPrefix+username).Err(); err != nil {
		return fmt.Errorf("%s - delete record for %s: %w", redisLogPrefix, username, err)
	}
	return nil
}

func (s *redisStore) List(ctx context.Context) ([]string, error) {
	keys, err := s.client.Keys(ctx, redisKeyPrefix+"*").Result()
	if err != nil {
		return nil, fmt.Errorf("%s - list records: %w", redisLogPrefix, err)
	}
	usernames := make([]string, 0, len(keys))
	for _, key := range keys {
		usernames = append(usernames, key[len(redisKeyPrefix):])
	}
	return usernames, nil
}

func (s *redisStore) Close() error { return s.client.Close() }

// NewRedisClient parses redisURL and verifies connectivity.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("%s - redis.ParseURL(%q): %w", redisLogPrefix, redisURL, err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%s - redis ping failed: %w", redisLogPrefix, err)
	}
	return client, nil
}
