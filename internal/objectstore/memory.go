package objectstore

import (
	"context"
	"fmt"
	"iter"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"
)

// Memory is an in-process Gateway for local development and tests.
type Memory struct {
	mu      sync.RWMutex
	bucket  string
	objects map[string]memoryObject
	now     func() time.Time
}

type memoryObject struct {
	data        []byte
	contentType string
}

// NewMemory returns an empty in-memory bucket.
func NewMemory(bucket string) *Memory {
	return &Memory{
		bucket:  bucket,
		objects: make(map[string]memoryObject),
		now:     time.Now,
	}
}

func (m *Memory) Put(_ context.Context, key string, data []byte, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = memoryObject{data: slices.Clone(data), contentType: contentType}
	return nil
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, ErrNotFound
	}
	return slices.Clone(obj.data), nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

// List yields a snapshot taken when iteration starts, in key order.
func (m *Memory) List(ctx context.Context, prefix string) iter.Seq2[Object, error] {
	return func(yield func(Object, error) bool) {
		m.mu.RLock()
		snapshot := make([]Object, 0, len(m.objects))
		for key, obj := range m.objects {
			if strings.HasPrefix(key, prefix) {
				snapshot = append(snapshot, Object{Key: key, SizeBytes: int64(len(obj.data))})
			}
		}
		m.mu.RUnlock()

		slices.SortFunc(snapshot, func(a, b Object) int { return strings.Compare(a.Key, b.Key) })
		for _, obj := range snapshot {
			if err := ctx.Err(); err != nil {
				yield(Object{}, unavailable("list objects", prefix, err))
				return
			}
			if !yield(obj, nil) {
				return
			}
		}
	}
}

// Presign returns a memory:// URL carrying the operation and expiry. It does
// not check that key exists, matching real stores.
func (m *Memory) Presign(_ context.Context, key string, op Operation, ttl time.Duration) (string, error) {
	q := url.Values{}
	q.Set("op", op.String())
	q.Set("expires", m.now().Add(ttl).UTC().Format(time.RFC3339))
	return fmt.Sprintf("memory://%s/%s?%s", m.bucket, url.PathEscape(key), q.Encode()), nil
}

// ContentType returns the content type recorded for key.
func (m *Memory) ContentType(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	return obj.contentType, ok
}

// Ready always succeeds.
func (m *Memory) Ready(context.Context) error {
	return nil
}
