package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"mcs-go/internal/config"
	"mcs-go/internal/mcs"
)

const defaultS3Region = "us-east-1"

// S3Backend stores objects in Amazon S3 or any S3-compatible service
// reachable through a custom endpoint.
type S3Backend struct {
	client    *s3.Client
	uploader  *manager.Uploader
	presigner *s3.PresignClient
	buckets   buckets
	baseURL   func(bucket string) string
	publicACL bool
}

// NewS3Backend creates an S3 client from cfg. secret is the secret access
// key; when cfg.AccessKeyID is empty the default AWS credential chain is used.
func NewS3Backend(ctx context.Context, cfg config.StorageConfig, secret string) (*S3Backend, error) {
	region := cfg.Region
	if region == "" {
		region = defaultS3Region
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, secret, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return newS3Backend(client, cfg), nil
}

func newS3Backend(client *s3.Client, cfg config.StorageConfig) *S3Backend {
	b := &S3Backend{
		client:    client,
		uploader:  manager.NewUploader(client),
		presigner: s3.NewPresignClient(client),
		buckets:   buckets{private: cfg.PrivateBucket, public: cfg.PublicBucket},
		// Custom endpoints usually front a service without object ACLs.
		publicACL: cfg.Endpoint == "",
	}

	b.baseURL = func(bucket string) string {
		switch {
		case bucket == cfg.PublicBucket && cfg.PublicBaseURL != "":
			return cfg.PublicBaseURL
		case cfg.Endpoint != "":
			return objectURL(cfg.Endpoint, bucket)
		default:
			return "https://" + bucket + ".s3.amazonaws.com"
		}
	}
	return b
}

func (b *S3Backend) Put(ctx context.Context, obj *mcs.Object, r io.Reader) (string, error) {
	bucket := b.buckets.name(obj.Visibility)
	input := &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(obj.Key),
		Body:          r,
		ContentType:   aws.String(obj.ContentType),
		ContentLength: aws.Int64(obj.Size),
		Metadata:      map[string]string{metaFileName: obj.FileName},
	}
	if obj.Visibility == mcs.Public && b.publicACL {
		input.ACL = types.ObjectCannedACLPublicRead
	}

	if _, err := b.uploader.Upload(ctx, input); err != nil {
		return "", fmt.Errorf("uploading %s to %s: %w", obj.Key, bucket, classifyS3(err))
	}
	return objectURL(b.baseURL(bucket), obj.Key), nil
}

func (b *S3Backend) Exists(ctx context.Context, key string, vis mcs.Visibility) (bool, error) {
	_, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.buckets.name(vis)),
		Key:    aws.String(key),
	})
	return existsResult(classifyS3(err))
}

// HealthCheck issues HeadBucket against each configured bucket.
func (b *S3Backend) HealthCheck(ctx context.Context) error {
	for _, bucket := range b.buckets.distinct() {
		if _, err := b.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)}); err != nil {
			return fmt.Errorf("bucket %s: %w", bucket, classifyS3(err))
		}
	}
	return nil
}

func (b *S3Backend) SignedURL(ctx context.Context, key, fileName string, vis mcs.Visibility, expiry time.Duration) (string, error) {
	req, err := b.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket:                     aws.String(b.buckets.name(vis)),
		Key:                        aws.String(key),
		ResponseContentDisposition: aws.String(contentDisposition(fileName)),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", fmt.Errorf("presigning %s: %w", key, classifyS3(err))
	}
	return req.URL, nil
}

func (b *S3Backend) Delete(ctx context.Context, key string, vis mcs.Visibility) error {
	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.buckets.name(vis)),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("deleting %s: %w", key, classifyS3(err))
	}
	return nil
}

// BaseURLs returns the URL prefixes of objects this backend stores.
func (b *S3Backend) BaseURLs() []string {
	var out []string
	for _, bucket := range b.buckets.distinct() {
		out = append(out, strings.TrimRight(b.baseURL(bucket), "/")+"/")
	}
	return out
}

// Compile-time check
var _ mcs.ObjectStore = (*S3Backend)(nil)
