// Package storage defines the repository contracts every backend implements
// and the query semantics they share.
package storage

import (
	"context"
	"errors"

	"github.com/eringen/lilac/content"
)

var (
	// ErrNotFound is returned when a post or image does not exist.
	ErrNotFound = errors.New("storage: not found")
	// ErrConflict is returned when creating a post whose id is taken.
	ErrConflict = errors.New("storage: already exists")
	// ErrUnavailable wraps failures to reach the backing store.
	ErrUnavailable = errors.New("storage: backend unavailable")
)

// Repository persists posts. Implementations must be safe for concurrent use.
type Repository interface {
	// Create stores p and returns it. It fails with ErrConflict when a post
	// with the same id exists.
	Create(ctx context.Context, p content.Post) (content.Post, error)
	Get(ctx context.Context, id string) (content.Post, error)
	// Update applies u to the post with the given id and returns the result.
	Update(ctx context.Context, id string, u content.PostUpdate) (content.Post, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, q Query) (Page, error)
	Close() error
}

// ImageStore persists uploaded images.
type ImageStore interface {
	Save(ctx context.Context, img content.Image, data []byte) error
	Get(ctx context.Context, filename string) (content.Image, []byte, error)
	Delete(ctx context.Context, filename string) error
	// List returns image metadata, newest first.
	List(ctx context.Context) ([]content.Image, error)
}

// Pinger is implemented by backends that can report their health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Ping checks v when it implements Pinger and returns nil otherwise.
func Ping(ctx context.Context, v any) error {
	if p, ok := v.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}
