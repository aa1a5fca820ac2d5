package cache

import (
    "context"
    "errors"
    "fmt"
    "time"

    json "github.com/goccy/go-json"
    "github.com/redis/go-redis/v9"
)

const DefaultRedisKey = "ratecalc:snapshot"

type RedisConfig struct {
    Addr     string
    Password string
    DB       int
    Key      string
}

// RedisClient is the part of *redis.Client the store uses.
type RedisClient interface {
    Get(ctx context.Context, key string) *redis.StringCmd
    Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
    Ping(ctx context.Context) *redis.StatusCmd
}

// RedisStore shares the latest snapshot between server instances.
type RedisStore struct {
    client RedisClient
    key    string
}

func NewRedisClient(cfg RedisConfig) *redis.Client {
    return redis.NewClient(&redis.Options{
        Addr:     cfg.Addr,
        Password: cfg.Password,
        DB:       cfg.DB,
    })
}

func NewRedisStore(client RedisClient, key string) *RedisStore {
    if key == "" { key = DefaultRedisKey }
    return &RedisStore{client: client, key: key}
}

func (r *RedisStore) Get(ctx context.Context) (Entry, bool, error) {
    b, err := r.client.Get(ctx, r.key).Bytes()
    if errors.Is(err, redis.Nil) { return Entry{}, false, nil }
    if err != nil { return Entry{}, false, fmt.Errorf("redis get %s: %w", r.key, err) }
    var e Entry
    if err := json.Unmarshal(b, &e); err != nil {
        return Entry{}, false, fmt.Errorf("redis decode %s: %w", r.key, err)
    }
    return e, true, nil
}

func (r *RedisStore) Set(ctx context.Context, e Entry, ttl time.Duration) error {
    b, err := json.Marshal(e)
    if err != nil { return fmt.Errorf("redis encode %s: %w", r.key, err) }
    if ttl < 0 { ttl = 0 }
    if err := r.client.Set(ctx, r.key, b, ttl).Err(); err != nil {
        return fmt.Errorf("redis set %s: %w", r.key, err)
    }
    return nil
}

// Ping checks connectivity.
func (r *RedisStore) Ping(ctx context.Context) error { return r.client.Ping(ctx).Err() }
