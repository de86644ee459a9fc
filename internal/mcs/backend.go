package mcs

import (
	"context"
	"io"
	"time"
)

// Visibility selects the bucket (and local root) a file belongs to.
type Visibility int

const (
	Private Visibility = iota
	Public
)

// VisibilityOf maps a record's private flag to a Visibility.
func VisibilityOf(isPrivate bool) Visibility {
	if isPrivate {
		return Private
	}
	return Public
}

func (v Visibility) String() string {
	if v == Public {
		return "public"
	}
	return "private"
}

// Object describes a single upload.
type Object struct {
	Key         string
	FileName    string
	ContentType string
	Size        int64
	Visibility  Visibility
}

// StorageBackend is the upload capability the migration engine depends on.
// Implementations translate provider errors into ErrUnauthorized, ErrNotFound
// or a TransientError so callers can decide whether to retry.
type StorageBackend interface {
	// Put uploads obj.Size bytes read from r under obj.Key in the bucket chosen
	// by obj.Visibility and returns the object's URL.
	Put(ctx context.Context, obj *Object, r io.Reader) (string, error)

	// Exists reports whether key is present in the bucket for vis.
	Exists(ctx context.Context, key string, vis Visibility) (bool, error)

	// HealthCheck verifies that every configured bucket is reachable with the
	// configured credentials.
	HealthCheck(ctx context.Context) error
}

// ObjectStore is a StorageBackend that can also serve and remove stored objects.
// Every provider in this module implements it.
type ObjectStore interface {
	StorageBackend

	// SignedURL returns a time-limited download URL. fileName, when set, is
	// used as the download's content-disposition filename.
	SignedURL(ctx context.Context, key, fileName string, vis Visibility, expiry time.Duration) (string, error)

	// Delete removes key from the bucket for vis. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string, vis Visibility) error
}
