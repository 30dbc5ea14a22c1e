package objstore

import "context"

// Gateway layers the listing and deletion patterns the file handlers need
// on top of a raw Store.
type Gateway struct {
	store Store
}

// NewGateway creates a Gateway over the given store.
func NewGateway(store Store) *Gateway {
	return &Gateway{store: store}
}

// Store returns the underlying store.
func (g *Gateway) Store() Store {
	return g.store
}

// ListChildren performs a single delimited list call for a directory prefix.
// It deliberately does not recurse; recursive traversal is the caller's job
// and only deletion needs it.
func (g *Gateway) ListChildren(ctx context.Context, prefix string) (*ListResult, error) {
	return g.store.List(ctx, ListOptions{Prefix: prefix, Delimiter: "/"})
}

// ListAllKeys follows cursor pagination to exhaustion and returns every key
// under the prefix. Recursive delete depends on seeing all descendants
// regardless of the store's page size.
func (g *Gateway) ListAllKeys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	cursor := ""

	for {
		page, err := g.store.List(ctx, ListOptions{Prefix: prefix, Cursor: cursor})
		if err != nil {
			return nil, err
		}
		for _, obj := range page.Objects {
			keys = append(keys, obj.Key)
		}
		if !page.Truncated {
			return keys, nil
		}
		cursor = page.Cursor
	}
}

// DeleteMany batch-deletes the given keys. Deleting nothing is a successful
// no-op.
func (g *Gateway) DeleteMany(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	return g.store.Delete(ctx, keys...)
}
