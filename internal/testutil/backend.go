package testutil

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"sync"
	"time"

	"mcs-go/internal/mcs"
)

// FakeBaseURL is the URL prefix FakeBackend returns for stored objects.
const FakeBaseURL = "https://cloud.test"

// FakeBackend is an in-memory mcs.ObjectStore with failure injection.
// Failures are keyed by the object's file name. Safe for concurrent use.
type FakeBackend struct {
	mu         sync.Mutex
	objects    map[string][]byte
	meta       map[string]mcs.Object
	putErrs    map[string]error
	transients map[string]int
	putCalls   map[string]int
	panics     map[string]bool
	healthErr  error
	healthHits int
	deleted    []string
}

// NewFakeBackend creates an empty FakeBackend.
func NewFakeBackend() *FakeBackend {
	return &FakeBackend{
		objects:    make(map[string][]byte),
		meta:       make(map[string]mcs.Object),
		putErrs:    make(map[string]error),
		transients: make(map[string]int),
		putCalls:   make(map[string]int),
		panics:     make(map[string]bool),
	}
}

// FailPut makes every Put of fileName return err.
func (b *FakeBackend) FailPut(fileName string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.putErrs[fileName] = err
}

// PanicPut makes every Put of fileName panic.
func (b *FakeBackend) PanicPut(fileName string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.panics[fileName] = true
}

// FailPutTransient makes the next n Puts of fileName fail with a transient error.
func (b *FakeBackend) FailPutTransient(fileName string, n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.transients[fileName] = n
}

// SetHealthError makes HealthCheck return err.
func (b *FakeBackend) SetHealthError(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.healthErr = err
}

// PutCalls returns how many times Put was called for fileName.
func (b *FakeBackend) PutCalls(fileName string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.putCalls[fileName]
}

// TotalPutCalls returns the number of Put calls across all files.
func (b *FakeBackend) TotalPutCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	total := 0
	for _, n := range b.putCalls {
		total += n
	}
	return total
}

// HealthChecks returns how many times HealthCheck was called.
func (b *FakeBackend) HealthChecks() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.healthHits
}

// Len returns the number of stored objects.
func (b *FakeBackend) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.objects)
}

// Content returns the stored bytes and metadata for key.
func (b *FakeBackend) Content(key string, vis mcs.Visibility) ([]byte, mcs.Object, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := objectID(key, vis)
	data, ok := b.objects[id]
	return data, b.meta[id], ok
}

// Deleted returns the keys removed through Delete, in order.
func (b *FakeBackend) Deleted() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.deleted...)
}

func (b *FakeBackend) Put(ctx context.Context, obj *mcs.Object, r io.Reader) (string, error) {
	b.mu.Lock()
	b.putCalls[obj.FileName]++
	if b.panics[obj.FileName] {
		b.mu.Unlock()
		panic("simulated backend panic for " + obj.FileName)
	}
	if err := b.putErrs[obj.FileName]; err != nil {
		b.mu.Unlock()
		return "", err
	}
	if n := b.transients[obj.FileName]; n > 0 {
		b.transients[obj.FileName] = n - 1
		b.mu.Unlock()
		return "", mcs.Transient(fmt.Errorf("simulated throttling for %s", obj.FileName))
	}
	b.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read content: %w", err)
	}
	if int64(len(data)) != obj.Size {
		return "", fmt.Errorf("size mismatch: expected %d bytes, got %d", obj.Size, len(data))
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	id := objectID(obj.Key, obj.Visibility)
	b.objects[id] = data
	b.meta[id] = *obj
	return FakeBaseURL + "/" + id, nil
}

func (b *FakeBackend) Exists(_ context.Context, key string, vis mcs.Visibility) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.objects[objectID(key, vis)]
	return ok, nil
}

func (b *FakeBackend) HealthCheck(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.healthHits++
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.healthErr
}

func (b *FakeBackend) SignedURL(_ context.Context, key, fileName string, vis mcs.Visibility, expiry time.Duration) (string, error) {
	q := url.Values{}
	q.Set("expires", fmt.Sprintf("%d", int(expiry.Seconds())))
	if fileName != "" {
		q.Set("filename", fileName)
	}
	return FakeBaseURL + "/" + objectID(key, vis) + "?" + q.Encode(), nil
}

func (b *FakeBackend) Delete(_ context.Context, key string, vis mcs.Visibility) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, objectID(key, vis))
	delete(b.meta, objectID(key, vis))
	b.deleted = append(b.deleted, key)
	return nil
}

func objectID(key string, vis mcs.Visibility) string {
	return vis.String() + "/" + key
}

// Compile-time check
var _ mcs.ObjectStore = (*FakeBackend)(nil)
