package service

import (
	"context"
	"cyberlearn_backend/pkg/logger"
	"cyberlearn_backend/pkg/monitoring"
	"encoding/json"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// leaderboardCacheKey hash，field 为 limit
const leaderboardCacheKey = "leaderboard:top"

// LeaderboardCache 缓存失败只记录日志，不影响查询
type LeaderboardCache interface {
	GetTop(ctx context.Context, limit int) ([]LeaderboardEntry, bool)
	SetTop(ctx context.Context, limit int, entries []LeaderboardEntry, ttl time.Duration)
	Invalidate(ctx context.Context)
}

func NewLeaderboardCache(rdb *redis.Client) LeaderboardCache {
	if rdb == nil {
		return NoopLeaderboardCache{}
	}
	return &RedisLeaderboardCache{Redis: rdb}
}

type RedisLeaderboardCache struct {
	Redis *redis.Client
}

func (c *RedisLeaderboardCache) GetTop(ctx context.Context, limit int) ([]LeaderboardEntry, bool) {
	val, err := c.Redis.HGet(ctx, leaderboardCacheKey, strconv.Itoa(limit)).Result()
	if err == redis.Nil {
		monitoring.LeaderboardCache.WithLabelValues("miss").Inc()
		return nil, false
	} else if err != nil {
		logger.Log.Warn("Leaderboard cache read failed", zap.Error(err))
		monitoring.LeaderboardCache.WithLabelValues("error").Inc()
		return nil, false
	}

	var entries []LeaderboardEntry
	if err := json.Unmarshal([]byte(val), &entries); err != nil {
		logger.Log.Warn("Leaderboard cache entry corrupt", zap.Error(err))
		monitoring.LeaderboardCache.WithLabelValues("error").Inc()
		return nil, false
	}
	monitoring.LeaderboardCache.WithLabelValues("hit").Inc()
	return entries, true
}

func (c *RedisLeaderboardCache) SetTop(ctx context.Context, limit int, entries []LeaderboardEntry, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return
	}

	pipe := c.Redis.TxPipeline()
	pipe.HSet(ctx, leaderboardCacheKey, strconv.Itoa(limit), data)
	pipe.Expire(ctx, leaderboardCacheKey, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		logger.Log.Warn("Leaderboard cache write failed", zap.Error(err))
	}
}

func (c *RedisLeaderboardCache) Invalidate(ctx context.Context) {
	if err := c.Redis.Del(ctx, leaderboardCacheKey).Err(); err != nil {
		logger.Log.Warn("Leaderboard cache invalidation failed", zap.Error(err))
	}
}

// NoopLeaderboardCache 未配置 Redis 时使用
type NoopLeaderboardCache struct{}

func (NoopLeaderboardCache) GetTop(ctx context.Context, limit int) ([]LeaderboardEntry, bool) {
	return nil, false
}

func (NoopLeaderboardCache) SetTop(ctx context.Context, limit int, entries []LeaderboardEntry, ttl time.Duration) {
}

func (NoopLeaderboardCache) Invalidate(ctx context.Context) {}
