package store

import (
	"context"
	"path/filepath"
	"testing"

	"prospector/internal/datamodel"
)

func openTestCache(t *testing.T) *LocalCache {
	t.Helper()
	cache, err := OpenLocalCache(filepath.Join(t.TempDir(), "features.db"), testLogger())
	if err != nil {
		t.Fatalf("OpenLocalCache failed: %v", err)
	}
	t.Cleanup(func() { _ = cache.Close() })
	return cache
}

func TestLocalCachePutGet(t *testing.T) {
	cache := openTestCache(t)
	ctx := context.Background()
	repo := "https://example.com/org/project"

	records := []*datamodel.Commit{
		{CommitID: "aaa", Message: "one", HunkCount: 2},
		{CommitID: "bbb", Message: "two"},
	}
	if err := cache.Put(ctx, repo, records); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := cache.Get(ctx, repo, []string{"aaa", "bbb", "missing"})
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d records, want 2", len(got))
	}
	if got[0].CommitID != "aaa" || got[0].HunkCount != 2 {
		t.Errorf("record = %+v", got[0])
	}
}

func TestLocalCacheUpsert(t *testing.T) {
	cache := openTestCache(t)
	ctx := context.Background()
	repo := "https://example.com/org/project"

	if err := cache.Put(ctx, repo, []*datamodel.Commit{{CommitID: "aaa", Message: "old"}}); err != nil {
		t.Fatal(err)
	}
	if err := cache.Put(ctx, repo, []*datamodel.Commit{{CommitID: "aaa", Message: "new"}}); err != nil {
		t.Fatal(err)
	}

	got, err := cache.Get(ctx, repo, []string{"aaa"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Message != "new" {
		t.Errorf("got = %v, want the rewritten record", got)
	}
}

func TestLocalCacheScopedByRepository(t *testing.T) {
	cache := openTestCache(t)
	ctx := context.Background()

	if err := cache.Put(ctx, "https://example.com/org/a", []*datamodel.Commit{{CommitID: "aaa"}}); err != nil {
		t.Fatal(err)
	}

	got, err := cache.Get(ctx, "https://example.com/org/b", []string{"aaa"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("records leaked across repositories: %v", got)
	}
}
