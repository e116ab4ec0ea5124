package service

import (
	"context"
	"cyberlearn_backend/internal/config"
	"cyberlearn_backend/internal/util"
	"cyberlearn_backend/pkg/logger"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// StorageProvider 把对象 key 解析为可访问的 URL
type StorageProvider interface {
	URL(ctx context.Context, key string) (string, error)
}

// LocalStorageProvider 本地存储实现，文件由 /uploads 静态路由提供
type LocalStorageProvider struct {
	Config *config.StorageConfig
}

func (p *LocalStorageProvider) URL(ctx context.Context, key string) (string, error) {
	base := strings.TrimRight(p.Config.PublicBaseURL, "/")
	return base + "/uploads/" + strings.TrimLeft(key, "/"), nil
}

// MinioStorageProvider MinIO存储实现，返回预签名地址
type MinioStorageProvider struct {
	Config *config.StorageConfig
	Client *minio.Client
}

func NewMinioStorageProvider(cfg *config.StorageConfig) (*MinioStorageProvider, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessID, cfg.MinioSecret, ""),
		Secure: cfg.MinioUseSSL,
		// 显式 region 避免预签名时查询 bucket 位置
		Region: cfg.MinioRegion,
	})
	if err != nil {
		return nil, err
	}
	return &MinioStorageProvider{Config: cfg, Client: client}, nil
}

func (p *MinioStorageProvider) URL(ctx context.Context, key string) (string, error) {
	expiry := p.Config.PresignExpiry
	if expiry <= 0 {
		expiry = time.Hour
	}
	u, err := p.Client.PresignedGetObject(ctx, p.Config.MinioBucket, strings.TrimLeft(key, "/"), expiry, url.Values{})
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

// StorageService 存储服务
type StorageService struct {
	Provider StorageProvider
}

func NewStorageService(cfg *config.Config) *StorageService {
	var provider StorageProvider
	switch cfg.Storage.Type {
	case util.StorageMinio:
		p, err := NewMinioStorageProvider(&cfg.Storage)
		if err == nil {
			provider = p
		} else {
			logger.Log.Warn("MinIO unavailable, falling back to local storage", zap.Error(err))
		}
	}

	if provider == nil {
		provider = &LocalStorageProvider{Config: &cfg.Storage}
	}

	return &StorageService{Provider: provider}
}

// AvatarURL 已经是完整地址的 key 原样返回
func (s *StorageService) AvatarURL(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", nil
	}
	if strings.HasPrefix(key, "http://") || strings.HasPrefix(key, "https://") {
		return key, nil
	}
	return s.Provider.URL(ctx, key)
}
