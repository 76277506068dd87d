package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"

	"researchhub/backend/config"
)

// LocalProvider 本地磁盘存储，文件由 /uploads 静态路由对外提供
type LocalProvider struct {
	root      string
	publicURL string
}

// NewLocalProvider 创建本地存储
func NewLocalProvider(cfg *config.StorageConfig) *LocalProvider {
	public := cfg.PublicURL
	if public == "" {
		public = "/uploads"
	}
	return &LocalProvider{root: cfg.LocalPath, publicURL: public}
}

// Root 本地存储根目录
func (p *LocalProvider) Root() string { return p.root }

func (p *LocalProvider) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (string, error) {
	dst := filepath.Join(p.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", err
	}

	out, err := os.Create(dst)
	if err != nil {
		return "", err
	}

	_, err = io.Copy(out, reader)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		// 写入失败时不保留残缺文件
		_ = os.Remove(dst)
		return "", err
	}
	return p.URL(key), nil
}

func (p *LocalProvider) Delete(ctx context.Context, key string) error {
	err := os.Remove(filepath.Join(p.root, filepath.FromSlash(key)))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func (p *LocalProvider) URL(key string) string {
	return joinURL(p.publicURL, key)
}
