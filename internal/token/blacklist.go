package token

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	goredis "github.com/redis/go-redis/v9"

	"github.com/example/festival-programs/internal/persistence"
)

// Blacklist records revoked token digests until expiresAt. Implementations
// are safe for concurrent use.
type Blacklist interface {
	Add(ctx context.Context, key string, expiresAt time.Time) error
	Contains(ctx context.Context, key string) (bool, error)
}

// MemoryBlacklist keeps revocations in a size-bounded expirable LRU. It is
// process-local: a restart forgets every entry.
type MemoryBlacklist struct {
	entries *expirable.LRU[string, time.Time]
	now     func() time.Time
}

// NewMemoryBlacklist holds up to size entries for at most maxTTL each, which
// should be the token lifetime.
func NewMemoryBlacklist(size int, maxTTL time.Duration, now func() time.Time) *MemoryBlacklist {
	if size <= 0 {
		size = 10_000
	}
	if now == nil {
		now = time.Now
	}
	return &MemoryBlacklist{
		entries: expirable.NewLRU[string, time.Time](size, nil, maxTTL),
		now:     now,
	}
}

func (b *MemoryBlacklist) Add(_ context.Context, key string, expiresAt time.Time) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("token: empty blacklist key")
	}
	if !expiresAt.After(b.now()) {
		return nil
	}
	b.entries.Add(key, expiresAt)
	return nil
}

func (b *MemoryBlacklist) Contains(_ context.Context, key string) (bool, error) {
	expiresAt, ok := b.entries.Get(key)
	if !ok {
		return false, nil
	}
	if !expiresAt.After(b.now()) {
		b.entries.Remove(key)
		return false, nil
	}
	return true, nil
}

// Len reports the number of live entries.
func (b *MemoryBlacklist) Len() int { return b.entries.Len() }

const redisKeyPrefix = "festival:token:blacklist:"

// RedisBlacklist shares revocations between processes through Redis keys
// that expire together with the token.
type RedisBlacklist struct {
	client goredis.Cmdable
	now    func() time.Time
}

// NewRedisBlacklist wraps an existing client.
func NewRedisBlacklist(client goredis.Cmdable, now func() time.Time) *RedisBlacklist {
	if now == nil {
		now = time.Now
	}
	return &RedisBlacklist{client: client, now: now}
}

// DialRedis connects and pings a Redis server.
func DialRedis(ctx context.Context, addr, password string, db int) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("token: redis %s: %w", addr, err)
	}
	return client, nil
}

func (b *RedisBlacklist) Add(ctx context.Context, key string, expiresAt time.Time) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("token: empty blacklist key")
	}
	ttl := expiresAt.Sub(b.now())
	if ttl <= 0 {
		return nil
	}
	return b.client.Set(ctx, redisKeyPrefix+key, "1", ttl).Err()
}

func (b *RedisBlacklist) Contains(ctx context.Context, key string) (bool, error) {
	n, err := b.client.Exists(ctx, redisKeyPrefix+key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// StoreBlacklist persists revocations through a RevokedTokenRepository so
// they survive restarts.
type StoreBlacklist struct {
	repo persistence.RevokedTokenRepository
	now  func() time.Time
}

// NewStoreBlacklist wraps repo.
func NewStoreBlacklist(repo persistence.RevokedTokenRepository, now func() time.Time) *StoreBlacklist {
	if now == nil {
		now = time.Now
	}
	return &StoreBlacklist{repo: repo, now: now}
}

func (b *StoreBlacklist) Add(ctx context.Context, key string, expiresAt time.Time) error {
	now := b.now()
	if !expiresAt.After(now) {
		return nil
	}
	return b.repo.RevokeToken(ctx, persistence.RevokedToken{
		TokenHash: key,
		ExpiresAt: expiresAt,
		RevokedAt: now,
	})
}

func (b *StoreBlacklist) Contains(ctx context.Context, key string) (bool, error) {
	return b.repo.IsTokenRevoked(ctx, key, b.now())
}

// Purge drops entries for tokens that have expired and returns how many
// were removed.
func (b *StoreBlacklist) Purge(ctx context.Context) (int64, error) {
	return b.repo.DeleteExpiredTokens(ctx, b.now())
}

// Layered checks blacklists in order, typically a memory cache in front of a
// shared or durable store. Add writes to every layer.
type Layered []Blacklist

func (l Layered) Add(ctx context.Context, key string, expiresAt time.Time) error {
	var errs []error
	for _, layer := range l {
		if err := layer.Add(ctx, key, expiresAt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Contains stops at the first layer that knows the key. A failing layer
// is reported only when no later layer has the key.
func (l Layered) Contains(ctx context.Context, key string) (bool, error) {
	var errs []error
	for _, layer := range l {
		ok, err := layer.Contains(ctx, key)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ok {
			return true, nil
		}
	}
	return false, errors.Join(errs...)
}
