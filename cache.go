package lilac

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/eringen/lilac/content"
	"github.com/eringen/lilac/storage"
)

// Tag is one entry of the tag index.
type Tag struct {
	Name  string `json:"name"`
	Slug  string `json:"slug"`
	Count int    `json:"count"`
}

// PostCache is an in-memory cache of published posts and tags with TTL.
type PostCache struct {
	mu      sync.RWMutex
	posts   []content.Post
	tags    []Tag
	fetched time.Time
	ttl     time.Duration
	repo    storage.Repository
}

// NewPostCache creates a PostCache backed by repo.
func NewPostCache(repo storage.Repository, ttl time.Duration) *PostCache {
	return &PostCache{repo: repo, ttl: ttl}
}

func (c *PostCache) valid() bool {
	return c.posts != nil && time.Since(c.fetched) < c.ttl
}

// Invalidate clears the cache so the next read triggers a fresh load.
func (c *PostCache) Invalidate() {
	c.mu.Lock()
	c.posts = nil
	c.tags = nil
	c.mu.Unlock()
}

func (c *PostCache) load(ctx context.Context) error {
	if c.valid() {
		return nil
	}
	page, err := c.repo.List(ctx, storage.Query{Published: storage.Published(true)})
	if err != nil {
		return err
	}
	c.posts = page.Posts
	c.tags = buildTags(page.Posts)
	c.fetched = time.Now()
	return nil
}

// ensureLoaded returns cached posts and tags after ensuring the cache is fresh.
// It tries a read lock first; only takes a write lock if a reload is needed.
func (c *PostCache) ensureLoaded(ctx context.Context) ([]content.Post, []Tag, error) {
	c.mu.RLock()
	if c.valid() {
		posts, tags := c.posts, c.tags
		c.mu.RUnlock()
		return posts, tags, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.load(ctx); err != nil {
		return nil, nil, err
	}
	return c.posts, c.tags, nil
}

// ListPosts returns published posts, newest first, optionally filtered by tag.
func (c *PostCache) ListPosts(ctx context.Context, tag string) ([]content.Post, error) {
	posts, _, err := c.ensureLoaded(ctx)
	if err != nil {
		return nil, err
	}
	if tag == "" {
		return posts, nil
	}
	var filtered []content.Post
	for _, p := range posts {
		if p.HasTag(tag) {
			filtered = append(filtered, p)
		}
	}
	return filtered, nil
}

// ListTags returns every tag of a published post with its usage count,
// sorted by name.
func (c *PostCache) ListTags(ctx context.Context) ([]Tag, error) {
	_, tags, err := c.ensureLoaded(ctx)
	return tags, err
}

// PostsByTagSlug returns published posts carrying a tag whose slug is slug.
func (c *PostCache) PostsByTagSlug(ctx context.Context, slug string) ([]content.Post, error) {
	posts, _, err := c.ensureLoaded(ctx)
	if err != nil {
		return nil, err
	}
	var filtered []content.Post
	for _, p := range posts {
		for _, t := range p.Tags {
			if content.Slugify(t) == slug {
				filtered = append(filtered, p)
				break
			}
		}
	}
	return filtered, nil
}

// Resolve finds a published post by id, falling back to its frontmatter url.
func (c *PostCache) Resolve(ctx context.Context, key string) (content.Post, error) {
	posts, _, err := c.ensureLoaded(ctx)
	if err != nil {
		return content.Post{}, err
	}
	for _, p := range posts {
		if p.ID == key {
			return p, nil
		}
	}
	for _, p := range posts {
		if p.URL != "" && p.URL == key {
			return p, nil
		}
	}
	return content.Post{}, storage.ErrNotFound
}

// FindByURL returns the published post whose category slug is tagSlug and
// whose url (or id when it has none) is url.
func (c *PostCache) FindByURL(ctx context.Context, tagSlug, url string) (content.Post, error) {
	posts, _, err := c.ensureLoaded(ctx)
	if err != nil {
		return content.Post{}, err
	}
	for _, p := range posts {
		if content.Slugify(p.Category()) != tagSlug {
			continue
		}
		if p.URL == url || (p.URL == "" && p.ID == url) {
			return p, nil
		}
	}
	return content.Post{}, storage.ErrNotFound
}

func buildTags(posts []content.Post) []Tag {
	index := make(map[string]*Tag)
	for _, p := range posts {
		seen := make(map[string]bool)
		for _, t := range p.Tags {
			key := content.NormalizeTag(t)
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			if tag, ok := index[key]; ok {
				tag.Count++
				continue
			}
			index[key] = &Tag{Name: t, Slug: content.Slugify(t), Count: 1}
		}
	}
	tags := make([]Tag, 0, len(index))
	for _, t := range index {
		tags = append(tags, *t)
	}
	sort.Slice(tags, func(i, j int) bool {
		return content.NormalizeTag(tags[i].Name) < content.NormalizeTag(tags[j].Name)
	})
	return tags
}
