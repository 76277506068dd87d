package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"researchhub/backend/config"
)

// Provider 对象存储通用接口
type Provider interface {
	// Upload 写入对象并返回对外访问 URL
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
	URL(key string) string
}

// New 按 storage.type 创建存储实现
func New(ctx context.Context, cfg *config.StorageConfig, logger *zap.Logger) (Provider, error) {
	switch cfg.Type {
	case "minio":
		p, err := NewMinioProvider(cfg)
		if err != nil {
			return nil, fmt.Errorf("初始化 MinIO 存储失败: %w", err)
		}
		logger.Info("对象存储: MinIO", zap.String("endpoint", cfg.Endpoint), zap.String("bucket", cfg.Bucket))
		return p, nil
	case "s3":
		p, err := NewS3Provider(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("初始化 S3 存储失败: %w", err)
		}
		logger.Info("对象存储: S3", zap.String("region", cfg.Region), zap.String("bucket", cfg.Bucket))
		return p, nil
	default:
		logger.Info("对象存储: 本地磁盘", zap.String("path", cfg.LocalPath))
		return NewLocalProvider(cfg), nil
	}
}

// ObjectKey 生成对象 key：<prefix>/<yyyymm>/<uuid><ext>
func ObjectKey(prefix, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	return path.Join(strings.Trim(prefix, "/"), time.Now().Format("200601"), uuid.New().String()+ext)
}

func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(key, "/")
}
