package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig configures the Redis connection used by RedisStore.
type RedisConfig struct {
	Addr     string // e.g. localhost:6379
	Password string
	DB       int
	// Prefix namespaces the hash keys, one hash per Kind.
	Prefix string
}

// RedisStore keeps each namespace in a Redis hash of JSON-encoded records.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to Redis and verifies connectivity.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "newsdesk:cache"
	}
	return &RedisStore{client: client, prefix: prefix}, nil
}

func (r *RedisStore) hashKey(kind Kind) string {
	return r.prefix + ":" + string(kind)
}

// LoadAll reads every hash. Fields that are not valid JSON records are
// returned with a zero version so the cache discards them.
func (r *RedisStore) LoadAll(ctx context.Context) ([]Record, error) {
	var out []Record
	for _, kind := range []Kind{KindScraped, KindSummary, KindChat} {
		fields, err := r.client.HGetAll(ctx, r.hashKey(kind)).Result()
		if err != nil {
			return nil, fmt.Errorf("reading %s hash: %w", kind, err)
		}
		for key, raw := range fields {
			var rec Record
			if err := json.Unmarshal([]byte(raw), &rec); err != nil {
				rec = Record{Kind: kind, Key: key}
			}
			rec.Kind = kind
			rec.Key = key
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *RedisStore) Put(ctx context.Context, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return r.client.HSet(ctx, r.hashKey(rec.Kind), rec.Key, data).Err()
}

func (r *RedisStore) Delete(ctx context.Context, kind Kind, key string) error {
	return r.client.HDel(ctx, r.hashKey(kind), key).Err()
}

// Close closes the underlying Redis client
func (r *RedisStore) Close() error {
	return r.client.Close()
}
