package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"mcs-go/internal/mcs"
)

// FileSystemBackend stores objects as files under a root directory:
//
//	<root>/
//	  private/<key>
//	  public/<key>
//
// It stands in for a cloud provider on a single machine or a mounted share.
type FileSystemBackend struct {
	root    string
	baseURL string
}

// NewFileSystemBackend creates a backend rooted at root. Public URLs are
// baseURL/<key> when baseURL is set, file URLs otherwise.
func NewFileSystemBackend(root, baseURL string) (*FileSystemBackend, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage root: %w", err)
	}
	for _, vis := range []mcs.Visibility{mcs.Private, mcs.Public} {
		if err := os.MkdirAll(filepath.Join(root, vis.String()), 0755); err != nil {
			return nil, fmt.Errorf("failed to create %s directory: %w", vis, err)
		}
	}
	return &FileSystemBackend{root: root, baseURL: baseURL}, nil
}

func (b *FileSystemBackend) Put(ctx context.Context, obj *mcs.Object, r io.Reader) (string, error) {
	dest, err := b.path(obj.Key, obj.Visibility)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return "", fmt.Errorf("failed to create object directory: %w", err)
	}
	if err := writeFile(dest, r, obj.Size); err != nil {
		return "", err
	}
	return b.url(obj.Key, obj.Visibility, dest), nil
}

func (b *FileSystemBackend) Exists(_ context.Context, key string, vis mcs.Visibility) (bool, error) {
	p, err := b.path(key, vis)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("stat object: %w", err)
	}
	return info.Mode().IsRegular(), nil
}

// HealthCheck verifies that both bucket directories exist and are writable.
func (b *FileSystemBackend) HealthCheck(ctx context.Context) error {
	for _, vis := range []mcs.Visibility{mcs.Private, mcs.Public} {
		if err := ctx.Err(); err != nil {
			return err
		}
		dir := filepath.Join(b.root, vis.String())
		info, err := os.Stat(dir)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("%s directory %s: %w", vis, dir, mcs.ErrNotFound)
			}
			return fmt.Errorf("%s directory not accessible: %w", vis, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("%s path is not a directory: %s", vis, dir)
		}

		probe, err := os.CreateTemp(dir, ".health-*")
		if err != nil {
			if errors.Is(err, fs.ErrPermission) {
				return fmt.Errorf("%s directory %s: %w", vis, dir, mcs.ErrUnauthorized)
			}
			return fmt.Errorf("%s directory not writable: %w", vis, err)
		}
		probe.Close()
		os.Remove(probe.Name())
	}
	return nil
}

// SignedURL returns a file URL; a local directory has nothing to sign.
func (b *FileSystemBackend) SignedURL(ctx context.Context, key, _ string, vis mcs.Visibility, _ time.Duration) (string, error) {
	ok, err := b.Exists(ctx, key, vis)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("object %s: %w", key, mcs.ErrNotFound)
	}
	p, _ := b.path(key, vis)
	return b.url(key, vis, p), nil
}

func (b *FileSystemBackend) Delete(_ context.Context, key string, vis mcs.Visibility) error {
	p, err := b.path(key, vis)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

// path maps key to a file under the bucket directory for vis, rejecting keys
// that would leave it.
func (b *FileSystemBackend) path(key string, vis mcs.Visibility) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(key))
	if key == "" || cleaned == "." || cleaned == ".." || filepath.IsAbs(cleaned) ||
		strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return filepath.Join(b.root, vis.String(), cleaned), nil
}

func (b *FileSystemBackend) url(key string, vis mcs.Visibility, p string) string {
	if vis == mcs.Public && b.baseURL != "" {
		return objectURL(b.baseURL, key)
	}
	return "file://" + filepath.ToSlash(p)
}

// writeFile writes r to destPath atomically (temp file + rename) and checks the size.
func writeFile(destPath string, r io.Reader, expectedSize int64) error {
	tmp, err := os.CreateTemp(filepath.Dir(destPath), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if written != expectedSize {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", expectedSize, written)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	success = true
	return nil
}

// BaseURLs returns the file URL prefix of the bucket directories, plus
// baseURL when set.
func (b *FileSystemBackend) BaseURLs() []string {
	out := []string{"file://" + filepath.ToSlash(b.root) + "/"}
	if b.baseURL != "" {
		out = append(out, strings.TrimRight(b.baseURL, "/")+"/")
	}
	return out
}

// Compile-time check
var _ mcs.ObjectStore = (*FileSystemBackend)(nil)
