package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/uma-arai/sbcntr-pickup/internal/model"
)

// ConfigCache はプリセット統合設定のキャッシュです
// キャッシュの障害はリクエストを失敗させず、ミスとして扱います
type ConfigCache interface {
	Get(ctx context.Context, presetID int64) (*model.PresetConfig, bool)
	Set(ctx context.Context, presetID int64, cfg *model.PresetConfig)
	Invalidate(ctx context.Context, presetID int64)
	Stats(ctx context.Context) (Stats, error)
}

type Stats struct {
	Enabled bool  `json:"enabled"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Keys    int64 `json:"keys"`
}

type RedisConfigCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger zerolog.Logger

	hits   atomic.Int64
	misses atomic.Int64
}

var _ ConfigCache = (*RedisConfigCache)(nil)

func NewRedisConfigCache(client *redis.Client, prefix string, ttl time.Duration, logger zerolog.Logger) *RedisConfigCache {
	return &RedisConfigCache{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		logger: logger,
	}
}

func (c *RedisConfigCache) key(presetID int64) string {
	var builder strings.Builder
	builder.Grow(len(c.prefix) + 24)
	builder.WriteString(c.prefix)
	builder.WriteString(":preset_config:")
	builder.WriteString(strconv.FormatInt(presetID, 10))
	return builder.String()
}

func (c *RedisConfigCache) Get(ctx context.Context, presetID int64) (*model.PresetConfig, bool) {
	data, err := c.client.Get(ctx, c.key(presetID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn().Err(err).Int64("preset_id", presetID).Msg("failed to read preset config cache")
		}
		c.misses.Add(1)
		return nil, false
	}

	var cfg model.PresetConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		c.logger.Warn().Err(err).Int64("preset_id", presetID).Msg("broken preset config cache entry")
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return &cfg, true
}

func (c *RedisConfigCache) Set(ctx context.Context, presetID int64, cfg *model.PresetConfig) {
	data, err := json.Marshal(cfg)
	if err != nil {
		c.logger.Warn().Err(err).Int64("preset_id", presetID).Msg("failed to encode preset config")
		return
	}
	if err := c.client.Set(ctx, c.key(presetID), data, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Int64("preset_id", presetID).Msg("failed to write preset config cache")
	}
}

func (c *RedisConfigCache) Invalidate(ctx context.Context, presetID int64) {
	if err := c.client.Del(ctx, c.key(presetID)).Err(); err != nil {
		c.logger.Warn().Err(err).Int64("preset_id", presetID).Msg("failed to invalidate preset config cache")
	}
}

// Stats はヒット数とキャッシュ済みのキー数を返します
func (c *RedisConfigCache) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{
		Enabled: true,
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
	}

	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, c.prefix+":preset_config:*", 100).Result()
		if err != nil {
			return stats, err
		}
		stats.Keys += int64(len(keys))
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return stats, nil
}

// NoopConfigCache はRedisを利用しない環境向けの実装です
type NoopConfigCache struct{}

var _ ConfigCache = NoopConfigCache{}

func (NoopConfigCache) Get(context.Context, int64) (*model.PresetConfig, bool) { return nil, false }
func (NoopConfigCache) Set(context.Context, int64, *model.PresetConfig) {}
func (NoopConfigCache) Invalidate(context.Context, int64) {}
func (NoopConfigCache) Stats(context.Context) (Stats, error) { return Stats{}, nil }

// NewRedisClient はRedisクライアントを作成し疎通確認を行います
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}
