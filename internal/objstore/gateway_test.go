package objstore

import (
	"context"
	"errors"
	"testing"
)

func seedMemory(t *testing.T, m *Memory, keys ...string) {
	t.Helper()
	for _, key := range keys {
		if err := m.Put(context.Background(), key, []byte("x")); err != nil {
			t.Fatalf("seed %s: %v", key, err)
		}
	}
}

func TestListChildrenDoesNotRecurse(t *testing.T) {
	m := NewMemory()
	seedMemory(t, m,
		"sessions/s/dir/top.txt",
		"sessions/s/dir/sub/file.txt",
		"sessions/s/dir/sub/deeper/leaf.txt",
	)

	g := NewGateway(m)
	result, err := g.ListChildren(context.Background(), "sessions/s/dir/")
	if err != nil {
		t.Fatalf("ListChildren: %v", err)
	}

	if len(result.Objects) != 1 || result.Objects[0].Key != "sessions/s/dir/top.txt" {
		t.Errorf("objects = %+v, want only top.txt", result.Objects)
	}
	if len(result.DelimitedPrefixes) != 1 || result.DelimitedPrefixes[0] != "sessions/s/dir/sub/" {
		t.Errorf("prefixes = %v, want [sessions/s/dir/sub/]", result.DelimitedPrefixes)
	}
}

func TestListAllKeysFollowsCursor(t *testing.T) {
	m := NewMemory()
	m.SetPageSize(2)
	seedMemory(t, m,
		"sessions/s/a/1",
		"sessions/s/a/2",
		"sessions/s/a/3",
		"sessions/s/a/4",
		"sessions/s/a/5",
		"sessions/other/skip",
	)

	g := NewGateway(m)
	keys, err := g.ListAllKeys(context.Background(), "sessions/s/a/")
	if err != nil {
		t.Fatalf("ListAllKeys: %v", err)
	}
	if len(keys) != 5 {
		t.Errorf("got %d keys, want 5: %v", len(keys), keys)
	}
}

func TestDeleteManyEmptyIsNoop(t *testing.T) {
	g := NewGateway(NewMemory())
	if err := g.DeleteMany(context.Background(), nil); err != nil {
		t.Errorf("empty delete: %v", err)
	}
}

func TestMemoryGetNotFound(t *testing.T) {
	m := NewMemory()
	if _, err := m.Get(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get missing = %v, want ErrNotFound", err)
	}
}

func TestMemoryDeleteAbsentKeys(t *testing.T) {
	m := NewMemory()
	seedMemory(t, m, "a")
	if err := m.Delete(context.Background(), "a", "missing"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if m.Len() != 0 {
		t.Errorf("store not empty after delete: %d objects", m.Len())
	}
}
