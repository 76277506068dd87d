package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ── 查询缓存 ──
//
// 缓存键为 cache:<namespace>:v<version>:<key>。
// 写操作只需 INCR 命名空间版本号，旧版本键随 TTL 自然过期。

const (
	cachePrefix        = "cache:"
	cacheVersionPrefix = "cache:version:"
)

// ErrCacheMiss 缓存未命中
var ErrCacheMiss = errors.New("cache miss")

func (c *Client) namespaceVersion(ctx context.Context, namespace string) (int64, error) {
	v, err := c.rdb.Get(ctx, cacheVersionPrefix+namespace).Int64()
	if errors.Is(err, goredis.Nil) {
		return 0, nil
	}
	return v, err
}

func (c *Client) cacheKey(ctx context.Context, namespace, key string) (string, error) {
	v, err := c.namespaceVersion(ctx, namespace)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%s:v%d:%s", cachePrefix, namespace, v, key), nil
}

// GetJSON 读取缓存并反序列化到 dest，未命中返回 ErrCacheMiss
func (c *Client) GetJSON(ctx context.Context, namespace, key string, dest any) error {
	k, err := c.cacheKey(ctx, namespace, key)
	if err != nil {
		return err
	}
	data, err := c.rdb.Get(ctx, k).Bytes()
	if errors.Is(err, goredis.Nil) {
		return ErrCacheMiss
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

// SetJSON 序列化 value 写入缓存
func (c *Client) SetJSON(ctx context.Context, namespace, key string, value any, ttl time.Duration) error {
	k, err := c.cacheKey(ctx, namespace, key)
	if err != nil {
		return err
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, k, data, ttl).Err()
}

// Invalidate 使命名空间下全部缓存失效
func (c *Client) Invalidate(ctx context.Context, namespaces ...string) {
	for _, ns := range namespaces {
		if err := c.rdb.Incr(ctx, cacheVersionPrefix+ns).Err(); err != nil {
			c.logger.Warn("缓存失效失败", zap.String("namespace", ns), zap.Error(err))
		}
	}
}
