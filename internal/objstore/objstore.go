// Package objstore abstracts the flat, prefix-listable object store that
// backs the virtual filesystem and the auth session records. The store is
// the sole source of truth; nothing here caches reads or writes.
package objstore

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when no object exists at the key.
var ErrNotFound = errors.New("object not found")

// Object describes a stored object as reported by List.
type Object struct {
	Key      string    `json:"key"`
	Size     int64     `json:"size"`
	Uploaded time.Time `json:"uploaded"`
}

// ListOptions parametrizes a single List call. An empty Delimiter lists
// recursively; "/" groups descendants into DelimitedPrefixes. Cursor resumes
// a truncated listing.
type ListOptions struct {
	Prefix    string `json:"prefix"`
	Delimiter string `json:"delimiter,omitempty"`
	Cursor    string `json:"cursor,omitempty"`
}

// ListResult is one page of a listing.
type ListResult struct {
	Objects           []Object `json:"objects"`
	DelimitedPrefixes []string `json:"delimitedPrefixes"`
	Truncated         bool     `json:"truncated"`
	Cursor            string   `json:"cursor,omitempty"`
}

// Store is the narrow contract the control plane needs from the hosting
// platform's bucket. Batch Delete either removes every named key or fails
// as a whole; there are no partial-failure semantics.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, keys ...string) error
	List(ctx context.Context, opts ListOptions) (*ListResult, error)
}
