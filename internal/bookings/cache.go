package bookings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	versionKey = "bookings:version"
	// BumpChannel carries cache version bumps between instances.
	BumpChannel = "bookings.bump"
)

// Cache stores fetched record sets in Redis under versioned keys. Bumping the
// version orphans every cached set at once; orphaned keys expire with the TTL.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache constructs a Cache. A nil client disables caching.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// Enabled reports whether a Redis client is attached.
func (c *Cache) Enabled() bool {
	return c != nil && c.client != nil
}

// Version returns the current cache generation, initialising it when missing.
func (c *Cache) Version(ctx context.Context) (int64, error) {
	if !c.Enabled() {
		return 0, nil
	}
	ver, err := c.client.Get(ctx, versionKey).Int64()
	if errors.Is(err, redis.Nil) || (err == nil && ver <= 0) {
		// SetNX keeps a concurrent Bump from being overwritten.
		if err := c.client.SetNX(ctx, versionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return c.client.Get(ctx, versionKey).Int64()
	}
	if err != nil {
		return 0, err
	}
	return ver, nil
}

// Key joins parts and appends the current version.
func (c *Cache) Key(ctx context.Context, parts ...string) (string, error) {
	joined := strings.Join(parts, ":")
	if !c.Enabled() {
		return joined, nil
	}
	ver, err := c.Version(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:%d", joined, ver), nil
}

// Load decodes a cached value into dest. It reports false on a miss.
func (c *Cache) Load(ctx context.Context, key string, dest any) (bool, error) {
	if !c.Enabled() {
		return false, nil
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(payload, dest); err != nil {
		return false, fmt.Errorf("bookings: decode cached %s: %w", key, err)
	}
	return true, nil
}

// Store encodes value under key with the cache TTL.
func (c *Cache) Store(ctx context.Context, key string, value any) error {
	if !c.Enabled() {
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, raw, c.ttl).Err()
}

// Bump invalidates every cached set by incrementing the version and
// publishing the new value on BumpChannel.
func (c *Cache) Bump(ctx context.Context) (int64, error) {
	if !c.Enabled() {
		return 0, nil
	}
	ver, err := c.client.Incr(ctx, versionKey).Result()
	if err != nil {
		return 0, err
	}
	if err := c.client.Publish(ctx, BumpChannel, strconv.FormatInt(ver, 10)).Err(); err != nil {
		return ver, err
	}
	return ver, nil
}

// ListenForInvalidation follows version bumps published by other instances
// until ctx is cancelled. A payload that is not a version increments locally.
func (c *Cache) ListenForInvalidation(ctx context.Context, logger *slog.Logger) error {
	if !c.Enabled() {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	pubsub := c.client.Subscribe(ctx, BumpChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("bookings: subscribe %s: %w", BumpChannel, err)
	}
	go func() {
		defer func() { _ = pubsub.Close() }()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				if err := c.applyBump(ctx, msg.Payload); err != nil {
					logger.Warn("apply cache bump", slog.String("payload", msg.Payload), slog.Any("error", err))
				}
			}
		}
	}()
	return nil
}

func (c *Cache) applyBump(ctx context.Context, payload string) error {
	ver, err := strconv.ParseInt(strings.TrimSpace(payload), 10, 64)
	if err != nil || ver <= 0 {
		return c.client.Incr(ctx, versionKey).Err()
	}
	current, err := c.client.Get(ctx, versionKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	if current >= ver {
		return nil
	}
	return c.client.Set(ctx, versionKey, ver, 0).Err()
}
