package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"mcs-go/internal/config"
	"mcs-go/internal/mcs"
)

// MinioBackend stores objects on a MinIO server.
type MinioBackend struct {
	client  *minio.Client
	buckets buckets
	baseURL func(bucket string) string
}

// NewMinioBackend creates a MinIO client. cfg.Endpoint is host[:port], with
// or without a scheme; UseSSL selects https when no scheme is given.
func NewMinioBackend(cfg config.StorageConfig, secret string) (*MinioBackend, error) {
	host, secure := splitEndpoint(cfg.Endpoint, cfg.UseSSL)

	client, err := minio.New(host, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, secret, ""),
		Secure: secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}

	scheme := "http://"
	if secure {
		scheme = "https://"
	}
	return &MinioBackend{
		client:  client,
		buckets: buckets{private: cfg.PrivateBucket, public: cfg.PublicBucket},
		baseURL: func(bucket string) string {
			if bucket == cfg.PublicBucket && cfg.PublicBaseURL != "" {
				return cfg.PublicBaseURL
			}
			return objectURL(scheme+host, bucket)
		},
	}, nil
}

func splitEndpoint(endpoint string, useSSL bool) (string, bool) {
	switch {
	case strings.HasPrefix(endpoint, "https://"):
		return strings.TrimRight(strings.TrimPrefix(endpoint, "https://"), "/"), true
	case strings.HasPrefix(endpoint, "http://"):
		return strings.TrimRight(strings.TrimPrefix(endpoint, "http://"), "/"), false
	default:
		return strings.TrimRight(endpoint, "/"), useSSL
	}
}

func (b *MinioBackend) Put(ctx context.Context, obj *mcs.Object, r io.Reader) (string, error) {
	bucket := b.buckets.name(obj.Visibility)
	opts := minio.PutObjectOptions{
		ContentType:  obj.ContentType,
		UserMetadata: map[string]string{metaFileName: obj.FileName},
	}
	if _, err := b.client.PutObject(ctx, bucket, obj.Key, r, obj.Size, opts); err != nil {
		return "", fmt.Errorf("uploading %s to %s: %w", obj.Key, bucket, classifyMinio(err))
	}
	return objectURL(b.baseURL(bucket), obj.Key), nil
}

func (b *MinioBackend) Exists(ctx context.Context, key string, vis mcs.Visibility) (bool, error) {
	_, err := b.client.StatObject(ctx, b.buckets.name(vis), key, minio.StatObjectOptions{})
	return existsResult(classifyMinio(err))
}

func (b *MinioBackend) HealthCheck(ctx context.Context) error {
	for _, bucket := range b.buckets.distinct() {
		ok, err := b.client.BucketExists(ctx, bucket)
		if err != nil {
			return fmt.Errorf("check bucket %s: %w", bucket, classifyMinio(err))
		}
		if !ok {
			return fmt.Errorf("bucket %s: %w", bucket, mcs.ErrNotFound)
		}
	}
	return nil
}

func (b *MinioBackend) SignedURL(ctx context.Context, key, fileName string, vis mcs.Visibility, expiry time.Duration) (string, error) {
	params := url.Values{}
	params.Set("response-content-disposition", contentDisposition(fileName))

	u, err := b.client.PresignedGetObject(ctx, b.buckets.name(vis), key, expiry, params)
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, classifyMinio(err))
	}
	return u.String(), nil
}

func (b *MinioBackend) Delete(ctx context.Context, key string, vis mcs.Visibility) error {
	if err := b.client.RemoveObject(ctx, b.buckets.name(vis), key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("deleting %s: %w", key, classifyMinio(err))
	}
	return nil
}

// classifyMinio translates minio-go errors.
func classifyMinio(err error) error {
	if err == nil {
		return nil
	}
	resp := minio.ToErrorResponse(err)
	if c := classify(err, resp.Code, resp.StatusCode); c != nil {
		return c
	}
	return classifyNetwork(err)
}

// BaseURLs returns the URL prefixes of objects this backend stores.
func (b *MinioBackend) BaseURLs() []string {
	var out []string
	for _, bucket := range b.buckets.distinct() {
		out = append(out, strings.TrimRight(b.baseURL(bucket), "/")+"/")
	}
	return out
}

// Compile-time check
var _ mcs.ObjectStore = (*MinioBackend)(nil)
