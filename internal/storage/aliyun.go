package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"

	"mcs-go/internal/config"
	"mcs-go/internal/mcs"
)

// AliyunBackend stores objects in Aliyun OSS.
type AliyunBackend struct {
	client  *oss.Client
	private *oss.Bucket
	public  *oss.Bucket
	buckets buckets
	baseURL func(bucket string) string
}

// NewAliyunBackend creates an OSS client for cfg.Endpoint
// (e.g. "oss-cn-hangzhou.aliyuncs.com").
func NewAliyunBackend(cfg config.StorageConfig, secret string) (*AliyunBackend, error) {
	client, err := oss.New(cfg.Endpoint, cfg.AccessKeyID, secret)
	if err != nil {
		return nil, fmt.Errorf("init aliyun oss client: %w", err)
	}

	private, err := client.Bucket(cfg.PrivateBucket)
	if err != nil {
		return nil, fmt.Errorf("get aliyun bucket %s: %w", cfg.PrivateBucket, err)
	}
	public, err := client.Bucket(cfg.PublicBucket)
	if err != nil {
		return nil, fmt.Errorf("get aliyun bucket %s: %w", cfg.PublicBucket, err)
	}

	host := cfg.Endpoint
	if i := strings.Index(host, "://"); i >= 0 {
		host = host[i+3:]
	}
	host = strings.TrimRight(host, "/")

	return &AliyunBackend{
		client:  client,
		private: private,
		public:  public,
		buckets: buckets{private: cfg.PrivateBucket, public: cfg.PublicBucket},
		baseURL: func(bucket string) string {
			if bucket == cfg.PublicBucket && cfg.PublicBaseURL != "" {
				return cfg.PublicBaseURL
			}
			return "https://" + bucket + "." + host
		},
	}, nil
}

func (b *AliyunBackend) bucket(vis mcs.Visibility) *oss.Bucket {
	if vis == mcs.Public {
		return b.public
	}
	return b.private
}

func (b *AliyunBackend) Put(ctx context.Context, obj *mcs.Object, r io.Reader) (string, error) {
	opts := []oss.Option{
		oss.WithContext(ctx),
		oss.ContentType(obj.ContentType),
		oss.ContentLength(obj.Size),
		oss.Meta(metaFileName, obj.FileName),
	}
	if obj.Visibility == mcs.Public {
		opts = append(opts, oss.ObjectACL(oss.ACLPublicRead))
	}

	name := b.buckets.name(obj.Visibility)
	if err := b.bucket(obj.Visibility).PutObject(obj.Key, r, opts...); err != nil {
		return "", fmt.Errorf("uploading %s to %s: %w", obj.Key, name, classifyAliyun(err))
	}
	return objectURL(b.baseURL(name), obj.Key), nil
}

func (b *AliyunBackend) Exists(ctx context.Context, key string, vis mcs.Visibility) (bool, error) {
	ok, err := b.bucket(vis).IsObjectExist(key, oss.WithContext(ctx))
	if err != nil {
		return false, fmt.Errorf("checking %s: %w", key, classifyAliyun(err))
	}
	return ok, nil
}

// HealthCheck fetches bucket info for each configured bucket, which needs
// both valid credentials and read permission.
func (b *AliyunBackend) HealthCheck(ctx context.Context) error {
	for _, name := range b.buckets.distinct() {
		if _, err := b.client.GetBucketInfo(name, oss.WithContext(ctx)); err != nil {
			return fmt.Errorf("bucket %s: %w", name, classifyAliyun(err))
		}
	}
	return nil
}

func (b *AliyunBackend) SignedURL(_ context.Context, key, fileName string, vis mcs.Visibility, expiry time.Duration) (string, error) {
	u, err := b.bucket(vis).SignURL(key, oss.HTTPGet, int64(expiry.Seconds()),
		oss.ResponseContentDisposition(contentDisposition(fileName)))
	if err != nil {
		return "", fmt.Errorf("signing %s: %w", key, classifyAliyun(err))
	}
	return u, nil
}

func (b *AliyunBackend) Delete(ctx context.Context, key string, vis mcs.Visibility) error {
	if err := b.bucket(vis).DeleteObject(key, oss.WithContext(ctx)); err != nil {
		return fmt.Errorf("deleting %s: %w", key, classifyAliyun(err))
	}
	return nil
}

// classifyAliyun translates aliyun-oss-go-sdk errors.
func classifyAliyun(err error) error {
	if err == nil {
		return nil
	}
	var svcErr oss.ServiceError
	if errors.As(err, &svcErr) {
		if c := classify(err, svcErr.Code, svcErr.StatusCode); c != nil {
			return c
		}
	}
	return classifyNetwork(err)
}

// BaseURLs returns the URL prefixes of objects this backend stores.
func (b *AliyunBackend) BaseURLs() []string {
	var out []string
	for _, bucket := range b.buckets.distinct() {
		out = append(out, strings.TrimRight(b.baseURL(bucket), "/")+"/")
	}
	return out
}

// Compile-time check
var _ mcs.ObjectStore = (*AliyunBackend)(nil)
