package lilac

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/eringen/lilac/content"
	"github.com/eringen/lilac/storage"
	"github.com/eringen/lilac/storage/memory"
	"github.com/eringen/lilac/storage/storagetest"
)

func TestPostCacheInvalidate(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewRepository(storagetest.Post("one", 1, "Go"))
	cache := NewPostCache(repo, time.Hour)

	posts, err := cache.ListPosts(ctx, "")
	if err != nil || len(posts) != 1 {
		t.Fatalf("ListPosts = %d, %v", len(posts), err)
	}

	if _, err := repo.Create(ctx, storagetest.Post("two", 2, "Go")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if posts, _ := cache.ListPosts(ctx, ""); len(posts) != 1 {
		t.Errorf("cache should still hold 1 post before invalidation, got %d", len(posts))
	}
	cache.Invalidate()
	if posts, _ := cache.ListPosts(ctx, ""); len(posts) != 2 {
		t.Errorf("after Invalidate got %d posts, want 2", len(posts))
	}
}

func TestPostCacheResolve(t *testing.T) {
	ctx := context.Background()
	byURL := storagetest.Post("long-id", 2, "Go")
	byURL.URL = "short"
	draft := storagetest.Post("draft", 3, "Go")
	draft.Published = false
	cache := NewPostCache(memory.NewRepository(storagetest.Post("short", 1, "Go"), byURL, draft), time.Minute)

	tests := []struct {
		key    string
		wantID string
		err    error
	}{
		{"short", "short", nil},
		{"long-id", "long-id", nil},
		{"draft", "", storage.ErrNotFound},
		{"", "", storage.ErrNotFound},
	}
	for _, tt := range tests {
		p, err := cache.Resolve(ctx, tt.key)
		if !errors.Is(err, tt.err) {
			t.Errorf("Resolve(%q) err = %v, want %v", tt.key, err, tt.err)
			continue
		}
		if p.ID != tt.wantID {
			t.Errorf("Resolve(%q) = %q, want %q", tt.key, p.ID, tt.wantID)
		}
	}
}

func TestPostCacheTagFilters(t *testing.T) {
	ctx := context.Background()
	cache := NewPostCache(memory.NewRepository(
		storagetest.Post("a", 1, "Machine Learning"),
		storagetest.Post("b", 2, "machine learning", "Go"),
		storagetest.Post("c", 3, "Go"),
	), time.Minute)

	posts, err := cache.ListPosts(ctx, "MACHINE LEARNING")
	if err != nil || len(posts) != 2 {
		t.Fatalf("ListPosts(tag) = %d, %v", len(posts), err)
	}
	posts, err = cache.PostsByTagSlug(ctx, "machine-learning")
	if err != nil || len(posts) != 2 {
		t.Fatalf("PostsByTagSlug = %d, %v", len(posts), err)
	}

	tags, err := cache.ListTags(ctx)
	if err != nil {
		t.Fatalf("ListTags: %v", err)
	}
	if len(tags) != 2 || tags[0].Slug != "go" || tags[0].Count != 2 || tags[1].Count != 2 {
		t.Errorf("tags = %+v", tags)
	}
}

func TestBuildTagsCountsOncePerPost(t *testing.T) {
	tags := buildTags([]content.Post{{ID: "x", Tags: []string{"Go", "go", " GO "}}})
	if len(tags) != 1 || tags[0].Count != 1 {
		t.Errorf("tags = %+v", tags)
	}
}
