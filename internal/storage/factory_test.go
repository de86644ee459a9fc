package storage

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"mcs-go/internal/config"
)

func TestNewBackendFromConfig(t *testing.T) {
	tests := []struct {
		name         string
		cfg          config.StorageConfig
		wantErr      string
		wantBaseURLs []string
	}{
		{
			name:         "memory",
			cfg:          config.StorageConfig{Provider: "memory"},
			wantBaseURLs: []string{"memory://"},
		},
		{
			name: "s3 default urls",
			cfg: config.StorageConfig{
				Provider:      "s3",
				Region:        "eu-west-1",
				AccessKeyID:   "AKIAEXAMPLE",
				PrivateBucket: "acme-private",
				PublicBucket:  "acme-public",
			},
			wantBaseURLs: []string{
				"https://acme-private.s3.amazonaws.com/",
				"https://acme-public.s3.amazonaws.com/",
			},
		},
		{
			name: "s3 custom endpoint and public base url",
			cfg: config.StorageConfig{
				Provider:      "s3",
				Region:        "auto",
				Endpoint:      "https://r2.example.com",
				PrivateBucket: "files",
				PublicBucket:  "assets",
				PublicBaseURL: "https://assets.example.com",
			},
			wantBaseURLs: []string{
				"https://r2.example.com/files/",
				"https://assets.example.com/",
			},
		},
		{
			name: "minio shared bucket",
			cfg: config.StorageConfig{
				Provider:      "minio",
				Endpoint:      "localhost:9000",
				AccessKeyID:   "minioadmin",
				PrivateBucket: "mcs",
				PublicBucket:  "mcs",
			},
			wantBaseURLs: []string{"http://localhost:9000/mcs/"},
		},
		{
			name: "aliyun",
			cfg: config.StorageConfig{
				Provider:      "aliyun",
				Endpoint:      "oss-cn-hangzhou.aliyuncs.com",
				AccessKeyID:   "LTAIEXAMPLE",
				PrivateBucket: "acme-private",
				PublicBucket:  "acme-public",
			},
			wantBaseURLs: []string{
				"https://acme-private.oss-cn-hangzhou.aliyuncs.com/",
				"https://acme-public.oss-cn-hangzhou.aliyuncs.com/",
			},
		},
		{
			name:    "s3 without buckets",
			cfg:     config.StorageConfig{Provider: "s3", Region: "us-east-1"},
			wantErr: "private_bucket is required",
		},
		{
			name: "minio without endpoint",
			cfg: config.StorageConfig{
				Provider:      "minio",
				AccessKeyID:   "minioadmin",
				PrivateBucket: "a",
				PublicBucket:  "b",
			},
			wantErr: "endpoint is required",
		},
		{
			name: "gcs with missing credentials file",
			cfg: config.StorageConfig{
				Provider:           "gcs",
				GCSCredentialsFile: "/nonexistent/sa.json",
				PrivateBucket:      "a",
				PublicBucket:       "b",
			},
			wantErr: "gcs_credentials_file",
		},
		{
			name:    "unknown provider",
			cfg:     config.StorageConfig{Provider: "dropbox"},
			wantErr: "provider must be one of",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewBackendFromConfig(context.Background(), tt.cfg, "secret")

			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("NewBackendFromConfig() error = %v, want containing %q", err, tt.wantErr)
				}
				if got != nil {
					t.Error("NewBackendFromConfig() returned a backend with an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewBackendFromConfig() error = %v", err)
			}
			if c, ok := got.(io.Closer); ok {
				defer c.Close()
			}

			urls := got.BaseURLs()
			if strings.Join(urls, ",") != strings.Join(tt.wantBaseURLs, ",") {
				t.Errorf("BaseURLs() = %v, want %v", urls, tt.wantBaseURLs)
			}
		})
	}
}

func TestNewBackendFromConfig_Filesystem(t *testing.T) {
	root := filepath.Join(t.TempDir(), "cloud")
	cfg := config.StorageConfig{Provider: "filesystem", FSRoot: root}

	b, err := NewBackendFromConfig(context.Background(), cfg, "")
	if err != nil {
		t.Fatalf("NewBackendFromConfig() error = %v", err)
	}
	if _, ok := b.(*FileSystemBackend); !ok {
		t.Errorf("NewBackendFromConfig() = %T, want *FileSystemBackend", b)
	}
	if err := b.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestNeedsSecret(t *testing.T) {
	tests := []struct {
		cfg  config.StorageConfig
		want bool
	}{
		{config.StorageConfig{Provider: "minio"}, true},
		{config.StorageConfig{Provider: "aliyun"}, true},
		{config.StorageConfig{Provider: "s3", AccessKeyID: "AKIA"}, true},
		{config.StorageConfig{Provider: "s3"}, false},
		{config.StorageConfig{Provider: "gcs"}, false},
		{config.StorageConfig{Provider: "filesystem"}, false},
	}
	for _, tt := range tests {
		if got := NeedsSecret(tt.cfg); got != tt.want {
			t.Errorf("NeedsSecret(%+v) = %v, want %v", tt.cfg, got, tt.want)
		}
	}
}
