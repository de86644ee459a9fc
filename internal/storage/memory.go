package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"sync"
	"time"

	"mcs-go/internal/mcs"
)

// MemoryBaseURL prefixes every URL the memory backend returns.
const MemoryBaseURL = "memory://"

// MemoryBackend is an in-memory implementation of mcs.ObjectStore.
// It is useful for dry runs and tests. Safe for concurrent use.
type MemoryBackend struct {
	mu      sync.RWMutex
	objects map[mcs.Visibility]map[string]memoryObject
}

type memoryObject struct {
	data        []byte
	contentType string
	fileName    string
}

// NewMemoryBackend creates an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		objects: map[mcs.Visibility]map[string]memoryObject{
			mcs.Private: {},
			mcs.Public:  {},
		},
	}
}

func (m *MemoryBackend) Put(ctx context.Context, obj *mcs.Object, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read content: %w", err)
	}
	if int64(len(data)) != obj.Size {
		return "", fmt.Errorf("size mismatch: expected %d bytes, got %d", obj.Size, len(data))
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[obj.Visibility][obj.Key] = memoryObject{
		data:        data,
		contentType: obj.ContentType,
		fileName:    obj.FileName,
	}
	return m.url(obj.Key, obj.Visibility), nil
}

func (m *MemoryBackend) Exists(_ context.Context, key string, vis mcs.Visibility) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[vis][key]
	return ok, nil
}

func (m *MemoryBackend) HealthCheck(ctx context.Context) error {
	return ctx.Err()
}

func (m *MemoryBackend) SignedURL(_ context.Context, key, fileName string, vis mcs.Visibility, expiry time.Duration) (string, error) {
	m.mu.RLock()
	_, ok := m.objects[vis][key]
	m.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("object %s: %w", key, mcs.ErrNotFound)
	}

	q := url.Values{}
	q.Set("expires", expiry.String())
	if fileName != "" {
		q.Set("file_name", fileName)
	}
	return m.url(key, vis) + "?" + q.Encode(), nil
}

func (m *MemoryBackend) Delete(_ context.Context, key string, vis mcs.Visibility) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects[vis], key)
	return nil
}

// Get returns the stored bytes and content type for key.
func (m *MemoryBackend) Get(key string, vis mcs.Visibility) ([]byte, string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.objects[vis][key]
	return o.data, o.contentType, ok
}

func (m *MemoryBackend) url(key string, vis mcs.Visibility) string {
	return objectURL(MemoryBaseURL+vis.String(), key)
}

func (m *MemoryBackend) BaseURLs() []string {
	return []string{MemoryBaseURL}
}

// Compile-time check
var _ mcs.ObjectStore = (*MemoryBackend)(nil)
