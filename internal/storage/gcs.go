package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"mcs-go/internal/config"
	"mcs-go/internal/mcs"
)

const gcsBaseURL = "https://storage.googleapis.com"

// GCSBackend stores objects in Google Cloud Storage using a service account
// credentials file.
type GCSBackend struct {
	client  *storage.Client
	buckets buckets
	baseURL func(bucket string) string
}

// NewGCSBackend creates a GCS client authenticated with cfg.GCSCredentialsFile.
func NewGCSBackend(ctx context.Context, cfg config.StorageConfig) (*GCSBackend, error) {
	client, err := storage.NewClient(ctx, option.WithCredentialsFile(cfg.GCSCredentialsFile))
	if err != nil {
		return nil, fmt.Errorf("init gcs client: %w", err)
	}
	return &GCSBackend{
		client:  client,
		buckets: buckets{private: cfg.PrivateBucket, public: cfg.PublicBucket},
		baseURL: func(bucket string) string {
			if bucket == cfg.PublicBucket && cfg.PublicBaseURL != "" {
				return cfg.PublicBaseURL
			}
			return objectURL(gcsBaseURL, bucket)
		},
	}, nil
}

func (b *GCSBackend) Put(ctx context.Context, obj *mcs.Object, r io.Reader) (string, error) {
	bucket := b.buckets.name(obj.Visibility)

	// Cancelling ctx aborts the upload; Close commits it.
	w := b.client.Bucket(bucket).Object(obj.Key).NewWriter(ctx)
	w.ContentType = obj.ContentType
	w.Metadata = map[string]string{metaFileName: obj.FileName}
	if obj.Visibility == mcs.Public {
		w.PredefinedACL = "publicRead"
	}

	written, err := io.Copy(w, r)
	if err != nil {
		w.Close()
		return "", fmt.Errorf("uploading %s to %s: %w", obj.Key, bucket, classifyGCS(err))
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("uploading %s to %s: %w", obj.Key, bucket, classifyGCS(err))
	}
	if written != obj.Size {
		return "", fmt.Errorf("size mismatch: expected %d bytes, got %d", obj.Size, written)
	}
	return objectURL(b.baseURL(bucket), obj.Key), nil
}

func (b *GCSBackend) Exists(ctx context.Context, key string, vis mcs.Visibility) (bool, error) {
	_, err := b.client.Bucket(b.buckets.name(vis)).Object(key).Attrs(ctx)
	return existsResult(classifyGCS(err))
}

// HealthCheck reads the attributes of each configured bucket.
func (b *GCSBackend) HealthCheck(ctx context.Context) error {
	for _, bucket := range b.buckets.distinct() {
		if _, err := b.client.Bucket(bucket).Attrs(ctx); err != nil {
			return fmt.Errorf("bucket %s: %w", bucket, classifyGCS(err))
		}
	}
	return nil
}

func (b *GCSBackend) SignedURL(_ context.Context, key, fileName string, vis mcs.Visibility, expiry time.Duration) (string, error) {
	u, err := b.client.Bucket(b.buckets.name(vis)).SignedURL(key, &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  "GET",
		Expires: time.Now().Add(expiry),
		QueryParameters: url.Values{
			"response-content-disposition": {contentDisposition(fileName)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("signing %s: %w", key, classifyGCS(err))
	}
	return u, nil
}

func (b *GCSBackend) Delete(ctx context.Context, key string, vis mcs.Visibility) error {
	err := b.client.Bucket(b.buckets.name(vis)).Object(key).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("deleting %s: %w", key, classifyGCS(err))
	}
	return nil
}

func (b *GCSBackend) Close() error {
	return b.client.Close()
}

// classifyGCS translates cloud.google.com/go/storage errors.
func classifyGCS(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
		return fmt.Errorf("%w: %w", mcs.ErrNotFound, err)
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		if c := classify(err, "", apiErr.Code); c != nil {
			return c
		}
	}
	return classifyNetwork(err)
}

// BaseURLs returns the URL prefixes of objects this backend stores.
func (b *GCSBackend) BaseURLs() []string {
	var out []string
	for _, bucket := range b.buckets.distinct() {
		out = append(out, strings.TrimRight(b.baseURL(bucket), "/")+"/")
	}
	return out
}

// Compile-time check
var _ mcs.ObjectStore = (*GCSBackend)(nil)
