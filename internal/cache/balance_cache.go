// Package cache keeps recently read account snapshots in Redis so balance
// queries can skip the database. Mutations never read from it.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Aidin1998/accountmanager/internal/config"
	"github.com/Aidin1998/accountmanager/internal/ledger"
	"github.com/Aidin1998/accountmanager/pkg/metrics"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var (
	// ErrCacheMiss indicates a cache miss
	ErrCacheMiss = errors.New("cache miss")
)

const (
	keyPrefix     = "accountmanager:account:"
	versionSuffix = ":version"

	// versionTTL keeps the newest written version around long enough to
	// reject any read that started before the write.
	versionTTL = time.Hour
)

// setIfNewerScript writes the snapshot unless a newer version has already
// been written. The version marker outlives Invalidate so a slow reader
// cannot restore a snapshot that a mutation has replaced.
var setIfNewerScript = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[2]) or '0')
local version = tonumber(ARGV[2])
if version < current then
	return 0
end
local ttl = tonumber(ARGV[3])
if ttl > 0 then
	redis.call('SET', KEYS[1], ARGV[1], 'PX', ttl)
else
	redis.call('SET', KEYS[1], ARGV[1])
end
redis.call('SET', KEYS[2], ARGV[2], 'PX', tonumber(ARGV[4]))
return 1
`)

// BalanceCache is the read-through cache used for balance queries. Set
// ignores a snapshot older than the newest one it has been given.
type BalanceCache interface {
	Get(ctx context.Context, id int64) (ledger.Account, error)
	Set(ctx context.Context, acc ledger.Account) error
	Invalidate(ctx context.Context, ids ...int64) error
}

// RedisBalanceCache implements BalanceCache using Redis
type RedisBalanceCache struct {
	client redis.Cmdable
	log    *zap.Logger
	ttl    time.Duration
}

func NewRedisBalanceCache(client redis.Cmdable, log *zap.Logger, ttl time.Duration) *RedisBalanceCache {
	return &RedisBalanceCache{
		client: client,
		log:    log.Named("balance-cache"),
		ttl:    ttl,
	}
}

var _ BalanceCache = (*RedisBalanceCache)(nil)

// cachedAccount carries the version, which the public JSON form hides.
type cachedAccount struct {
	ledger.Account
	Version int64 `json:"version"`
}

// Get retrieves a cached snapshot
func (c *RedisBalanceCache) Get(ctx context.Context, id int64) (ledger.Account, error) {
	key := accountKey(id)

	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			metrics.BalanceCacheRequests.WithLabelValues("miss").Inc()
			return ledger.Account{}, ErrCacheMiss
		}
		metrics.BalanceCacheRequests.WithLabelValues("error").Inc()
		c.log.Error("failed to get account from cache", zap.Error(err), zap.String("key", key))
		return ledger.Account{}, err
	}

	var cached cachedAccount
	if err := json.Unmarshal(data, &cached); err != nil {
		metrics.BalanceCacheRequests.WithLabelValues("error").Inc()
		c.log.Error("failed to unmarshal cached account", zap.Error(err), zap.String("key", key))
		return ledger.Account{}, err
	}

	metrics.BalanceCacheRequests.WithLabelValues("hit").Inc()
	acc := cached.Account
	acc.Version = cached.Version
	return acc, nil
}

// Set stores a snapshot in cache unless a newer version is already known.
func (c *RedisBalanceCache) Set(ctx context.Context, acc ledger.Account) error {
	key := accountKey(acc.ID)

	data, err := json.Marshal(cachedAccount{Account: acc, Version: acc.Version})
	if err != nil {
		c.log.Error("failed to marshal account for cache", zap.Error(err))
		return err
	}

	markerTTL := versionTTL
	if c.ttl > markerTTL {
		markerTTL = c.ttl
	}
	stored, err := setIfNewerScript.Run(ctx, c.client, []string{key, versionKey(acc.ID)},
		data, acc.Version, c.ttl.Milliseconds(), markerTTL.Milliseconds()).Int()
	if err != nil {
		c.log.Error("failed to set account in cache", zap.Error(err), zap.String("key", key))
		return err
	}
	if stored == 0 {
		metrics.BalanceCacheRequests.WithLabelValues("stale").Inc()
		c.log.Debug("skipped stale account snapshot", zap.String("key", key), zap.Int64("version", acc.Version))
	}
	return nil
}

// Invalidate removes snapshots from cache. Version markers are kept.
func (c *RedisBalanceCache) Invalidate(ctx context.Context, ids ...int64) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, accountKey(id))
	}

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.log.Error("failed to invalidate account cache", zap.Error(err), zap.Strings("keys", keys))
		return err
	}
	return nil
}

func accountKey(id int64) string {
	return fmt.Sprintf("%s%d", keyPrefix, id)
}

func versionKey(id int64) string {
	return accountKey(id) + versionSuffix
}

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Address, err)
	}
	return client, nil
}
