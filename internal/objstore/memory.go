package objstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// DefaultPageSize is the listing page size of the in-memory store.
const DefaultPageSize = 1000

// Memory is an in-memory Store used by tests and by local development when
// no bucket is configured. It implements the same delimiter and cursor
// semantics as the platform store: keys are listed in lexicographic order
// and a "/" delimiter collapses deeper descendants into DelimitedPrefixes.
type Memory struct {
	mu       sync.RWMutex
	objects  map[string]memoryObject
	pageSize int
}

type memoryObject struct {
	data     []byte
	uploaded time.Time
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		objects:  make(map[string]memoryObject),
		pageSize: DefaultPageSize,
	}
}

// SetPageSize overrides the listing page size. Tests use small pages to
// exercise cursor pagination.
func (m *Memory) SetPageSize(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n > 0 {
		m.pageSize = n
	}
}

// Get returns the object bytes or ErrNotFound.
func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	obj, ok := m.objects[key]
	if !ok {
		return nil, ErrNotFound
	}
	data := make([]byte, len(obj.data))
	copy(data, obj.data)
	return data, nil
}

// Put stores the object, overwriting any previous version.
func (m *Memory) Put(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := make([]byte, len(data))
	copy(stored, data)
	m.objects[key] = memoryObject{data: stored, uploaded: time.Now()}
	return nil
}

// Delete removes the named keys. Absent keys are ignored.
func (m *Memory) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, key := range keys {
		delete(m.objects, key)
	}
	return nil
}

// List returns one lexicographically ordered page of keys under the prefix.
func (m *Memory) List(_ context.Context, opts ListOptions) (*ListResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.objects))
	for key := range m.objects {
		if strings.HasPrefix(key, opts.Prefix) && key > opts.Cursor {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	result := &ListResult{}
	seenPrefixes := make(map[string]bool)
	count := 0

	for _, key := range keys {
		if count >= m.pageSize {
			result.Truncated = true
			result.Cursor = result.lastKey()
			break
		}

		if opts.Delimiter != "" {
			rest := strings.TrimPrefix(key, opts.Prefix)
			if idx := strings.Index(rest, opts.Delimiter); idx >= 0 {
				dirPrefix := opts.Prefix + rest[:idx+len(opts.Delimiter)]
				if !seenPrefixes[dirPrefix] {
					seenPrefixes[dirPrefix] = true
					result.DelimitedPrefixes = append(result.DelimitedPrefixes, dirPrefix)
				}
				continue
			}
		}

		obj := m.objects[key]
		result.Objects = append(result.Objects, Object{
			Key:      key,
			Size:     int64(len(obj.data)),
			Uploaded: obj.uploaded,
		})
		count++
	}

	return result, nil
}

func (r *ListResult) lastKey() string {
	if len(r.Objects) == 0 {
		return ""
	}
	return r.Objects[len(r.Objects)-1].Key
}

// Len reports the number of stored objects.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
