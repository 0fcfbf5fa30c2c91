package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/use-agent/gleaner/models"
)

// record is the JSON value stored in Redis.
type record struct {
	Response  *models.ScrapeResponse `json:"response"`
	CreatedAt time.Time              `json:"created_at"`
}

// Redis is a Store shared between service instances. Keys expire after ttl.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedis wraps an existing client.
func NewRedis(client *redis.Client, prefix string, ttl time.Duration) *Redis {
	return &Redis{client: client, prefix: prefix, ttl: ttl}
}

// DialRedis connects to addr and verifies the connection with PING.
func DialRedis(ctx context.Context, addr, password string, db int, prefix string, ttl time.Duration) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return NewRedis(client, prefix, ttl), nil
}

func (r *Redis) key(key string) string {
	return r.prefix + "scrape:" + key
}

func (r *Redis) Get(ctx context.Context, key string, maxAge time.Duration) (*models.ScrapeResponse, bool) {
	if maxAge <= 0 {
		return nil, false
	}

	raw, err := r.client.Get(ctx, r.key(key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Warn("cache lookup failed", "error", err)
		}
		return nil, false
	}

	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		slog.Warn("cache entry unreadable", "error", err)
		return nil, false
	}
	if rec.Response == nil || time.Since(rec.CreatedAt) > maxAge {
		return nil, false
	}
	return rec.Response, true
}

func (r *Redis) Set(ctx context.Context, key string, resp *models.ScrapeResponse) {
	raw, err := json.Marshal(record{Response: resp, CreatedAt: time.Now()})
	if err != nil {
		slog.Warn("cache entry not encodable", "error", err)
		return
	}
	if err := r.client.Set(ctx, r.key(key), raw, r.ttl).Err(); err != nil {
		slog.Warn("cache store failed", "error", err)
	}
}

func (r *Redis) Contains(ctx context.Context, key string) bool {
	n, err := r.client.Exists(ctx, r.key(key)).Result()
	if err != nil {
		slog.Warn("cache lookup failed", "error", err)
		return false
	}
	return n == 1
}

func (r *Redis) Close() error {
	return r.client.Close()
}
