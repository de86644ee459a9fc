package storage

import (
	"context"
	"fmt"

	"mcs-go/internal/config"
	"mcs-go/internal/mcs"
)

// Backend is an mcs.ObjectStore that knows which URLs it produces.
type Backend interface {
	mcs.ObjectStore

	// BaseURLs returns the URL prefixes of stored objects, each ending in "/".
	BaseURLs() []string
}

// NewBackendFromConfig creates a Backend for cfg.Provider. secret is the
// provider's secret key and is ignored by the local providers.
// The caller should Close the result when it implements io.Closer.
func NewBackendFromConfig(ctx context.Context, cfg config.StorageConfig, secret string) (Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Provider {
	case "memory":
		return NewMemoryBackend(), nil
	case "filesystem":
		return NewFileSystemBackend(cfg.FSRoot, cfg.PublicBaseURL)
	case "s3":
		return NewS3Backend(ctx, cfg, secret)
	case "minio":
		return NewMinioBackend(cfg, secret)
	case "gcs":
		return NewGCSBackend(ctx, cfg)
	case "aliyun":
		return NewAliyunBackend(cfg, secret)
	default:
		return nil, fmt.Errorf("unknown storage provider: %s", cfg.Provider)
	}
}

// NeedsSecret reports whether provider authenticates with a secret key.
func NeedsSecret(cfg config.StorageConfig) bool {
	switch cfg.Provider {
	case "minio", "aliyun":
		return true
	case "s3":
		return cfg.AccessKeyID != ""
	default:
		return false
	}
}
