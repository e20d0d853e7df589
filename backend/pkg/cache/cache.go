package cache

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/zefirkoooo/food-calendar/backend/pkg/redis"
)

// ErrMiss 缓存未命中
var ErrMiss = errors.New("缓存未命中")

// Cache 读多写少数据的缓存抽象
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Invalidate(ctx context.Context, keys ...string) error
	InvalidatePrefix(ctx context.Context, prefix string) error
}

// ────────────────────── Redis 实现 ──────────────────────

type redisCache struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisCache 基于 Redis 的缓存；client 为 nil 时返回 Noop
func NewRedisCache(client *redis.Client, logger *zap.Logger) Cache {
	if client == nil {
		return Noop{}
	}
	return &redisCache{client: client, logger: logger}
}

func (c *redisCache) Get(ctx context.Context, key string, dest interface{}) error {
	err := c.client.GetJSON(ctx, key, dest)
	if errors.Is(err, redis.ErrCacheMiss) {
		return ErrMiss
	}
	if err != nil {
		// 缓存故障按未命中处理
		c.logger.Warn("读取缓存失败", zap.String("key", key), zap.Error(err))
		return ErrMiss
	}
	return nil
}

func (c *redisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if err := c.client.SetJSON(ctx, key, value, ttl); err != nil {
		c.logger.Warn("写入缓存失败", zap.String("key", key), zap.Error(err))
		return err
	}
	return nil
}

func (c *redisCache) Invalidate(ctx context.Context, keys ...string) error {
	if err := c.client.Delete(ctx, keys...); err != nil {
		c.logger.Warn("删除缓存失败", zap.Strings("keys", keys), zap.Error(err))
		return err
	}
	return nil
}

func (c *redisCache) InvalidatePrefix(ctx context.Context, prefix string) error {
	if err := c.client.DeleteByPrefix(ctx, prefix); err != nil {
		c.logger.Warn("按前缀删除缓存失败", zap.String("prefix", prefix), zap.Error(err))
		return err
	}
	return nil
}

// ────────────────────── 空实现 ──────────────────────

// Noop 不缓存任何内容，Redis 不可用时使用
type Noop struct{}

func (Noop) Get(context.Context, string, interface{}) error { return ErrMiss }
func (Noop) Set(context.Context, string, interface{}, time.Duration) error { return nil }
func (Noop) Invalidate(context.Context, ...string) error { return nil }
func (Noop) InvalidatePrefix(context.Context, string) error { return nil }
