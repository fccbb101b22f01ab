// Package memory keeps posts and images in process memory. It backs the
// development server and tests; nothing survives a restart.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/eringen/lilac/content"
	"github.com/eringen/lilac/storage"
)

// Repository is a map-backed storage.Repository.
type Repository struct {
	mu    sync.RWMutex
	posts map[string]content.Post
	now   func() time.Time
}

// NewRepository returns an empty repository, optionally seeded with posts.
func NewRepository(seed ...content.Post) *Repository {
	r := &Repository{posts: make(map[string]content.Post), now: time.Now}
	for _, p := range seed {
		r.posts[p.ID] = clonePost(p)
	}
	return r
}

func (r *Repository) Create(_ context.Context, p content.Post) (content.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.posts[p.ID]; ok {
		return content.Post{}, storage.ErrConflict
	}
	r.posts[p.ID] = clonePost(p)
	return clonePost(p), nil
}

func (r *Repository) Get(_ context.Context, id string) (content.Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.posts[id]
	if !ok {
		return content.Post{}, storage.ErrNotFound
	}
	return clonePost(p), nil
}

func (r *Repository) Update(_ context.Context, id string, u content.PostUpdate) (content.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[id]
	if !ok {
		return content.Post{}, storage.ErrNotFound
	}
	p = u.Apply(clonePost(p), r.now())
	r.posts[id] = p
	return clonePost(p), nil
}

func (r *Repository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.posts[id]; !ok {
		return storage.ErrNotFound
	}
	delete(r.posts, id)
	return nil
}

func (r *Repository) List(_ context.Context, q storage.Query) (storage.Page, error) {
	r.mu.RLock()
	posts := make([]content.Post, 0, len(r.posts))
	for _, p := range r.posts {
		posts = append(posts, clonePost(p))
	}
	r.mu.RUnlock()
	return storage.Apply(posts, q), nil
}

func (r *Repository) Close() error { return nil }

// clonePost copies the tag slice so callers cannot mutate stored posts.
func clonePost(p content.Post) content.Post {
	p.Tags = append([]string(nil), p.Tags...)
	return p
}

type storedImage struct {
	meta    content.Image
	dataURI string
}

// ImageStore holds images as base64 data URIs.
type ImageStore struct {
	mu     sync.RWMutex
	images map[string]storedImage
}

// NewImageStore returns an empty image store.
func NewImageStore() *ImageStore {
	return &ImageStore{images: make(map[string]storedImage)}
}

func (s *ImageStore) Save(_ context.Context, img content.Image, data []byte) error {
	if err := storage.CheckName(img.Filename); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.images[img.Filename] = storedImage{meta: img, dataURI: content.DataURI(img.MimeType, data)}
	return nil
}

func (s *ImageStore) Get(_ context.Context, filename string) (content.Image, []byte, error) {
	s.mu.RLock()
	stored, ok := s.images[filename]
	s.mu.RUnlock()
	if !ok {
		return content.Image{}, nil, storage.ErrNotFound
	}
	_, data, err := content.ParseDataURI(stored.dataURI)
	if err != nil {
		return content.Image{}, nil, err
	}
	return stored.meta, data, nil
}

func (s *ImageStore) Delete(_ context.Context, filename string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.images[filename]; !ok {
		return storage.ErrNotFound
	}
	delete(s.images, filename)
	return nil
}

func (s *ImageStore) List(_ context.Context) ([]content.Image, error) {
	s.mu.RLock()
	out := make([]content.Image, 0, len(s.images))
	for _, img := range s.images {
		out = append(out, img.meta)
	}
	s.mu.RUnlock()
	sortImages(out)
	return out, nil
}

func sortImages(images []content.Image) {
	sort.Slice(images, func(i, j int) bool {
		return images[i].UploadedAt.After(images[j].UploadedAt)
	})
}
