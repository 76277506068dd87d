package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"researchhub/backend/config"
	"researchhub/backend/pkg/redis"
)

// 查询缓存命名空间，写操作按命名空间整体失效
const (
	nsTopics         = "topics"
	nsApprovedTopics = "approved_topics"
	nsDashboard      = "dashboard"
	nsAnnouncements  = "announcements"
)

// cacheStore 按命名空间版本化的 JSON 缓存，由 redis.Client 实现
type cacheStore interface {
	GetJSON(ctx context.Context, namespace, key string, dest any) error
	SetJSON(ctx context.Context, namespace, key string, value any, ttl time.Duration) error
	Invalidate(ctx context.Context, namespaces ...string)
}

// queryCache 列表/看板查询缓存，未启用时为 nil，所有方法对 nil 安全
type queryCache struct {
	rdb    cacheStore
	ttl    time.Duration
	logger *zap.Logger
}

func newQueryCache(cfg *config.CacheConfig, rdb *redis.Client, logger *zap.Logger) *queryCache {
	if rdb == nil || cfg == nil || !cfg.Enabled {
		return nil
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &queryCache{rdb: rdb, ttl: ttl, logger: logger}
}

// cacheKey 将查询条件折叠为稳定的短键
func cacheKey(params any) string {
	raw, err := json.Marshal(params)
	if err != nil {
		return ""
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, raw).String()
}

func (c *queryCache) get(ctx context.Context, ns string, params, dest any) bool {
	if c == nil {
		return false
	}
	key := cacheKey(params)
	if key == "" {
		return false
	}
	err := c.rdb.GetJSON(ctx, ns, key, dest)
	if err != nil && !errors.Is(err, redis.ErrCacheMiss) {
		c.logger.Warn("读取查询缓存失败", zap.String("namespace", ns), zap.Error(err))
	}
	return err == nil
}

func (c *queryCache) set(ctx context.Context, ns string, params, value any) {
	if c == nil {
		return
	}
	key := cacheKey(params)
	if key == "" {
		return
	}
	if err := c.rdb.SetJSON(ctx, ns, key, value, c.ttl); err != nil {
		c.logger.Warn("写入查询缓存失败", zap.String("namespace", ns), zap.Error(err))
	}
}

func (c *queryCache) invalidate(ctx context.Context, namespaces ...string) {
	if c == nil {
		return
	}
	c.rdb.Invalidate(ctx, namespaces...)
}

// cachedPage 分页结果的缓存形态
type cachedPage[T any] struct {
	List  []T   `json:"list"`
	Total int64 `json:"total"`
}
