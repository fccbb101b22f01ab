// Package filesystem stores posts as MDX files with YAML frontmatter and
// images as plain files. Deleted posts are copied to a backup directory
// first.
package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/eringen/lilac/content"
	"github.com/eringen/lilac/storage"
)

const postExt = ".mdx"

// Repository is a storage.Repository over a directory of MDX files.
type Repository struct {
	dir       string
	backupDir string
	mu        sync.RWMutex
	now       func() time.Time
}

// NewRepository creates dir and backupDir if needed. An empty backupDir
// disables backups.
func NewRepository(dir, backupDir string) (*Repository, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	if backupDir != "" {
		if err := os.MkdirAll(backupDir, 0o755); err != nil {
			return nil, err
		}
	}
	return &Repository{dir: dir, backupDir: backupDir, now: time.Now}, nil
}

func (r *Repository) path(id string) string {
	return filepath.Join(r.dir, id+postExt)
}

func (r *Repository) Create(_ context.Context, p content.Post) (content.Post, error) {
	if err := storage.CheckName(p.ID); err != nil {
		return content.Post{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := os.Stat(r.path(p.ID)); err == nil {
		return content.Post{}, storage.ErrConflict
	} else if !errors.Is(err, fs.ErrNotExist) {
		return content.Post{}, err
	}
	if err := r.write(p); err != nil {
		return content.Post{}, err
	}
	return p, nil
}

func (r *Repository) Get(_ context.Context, id string) (content.Post, error) {
	if storage.CheckName(id) != nil {
		return content.Post{}, storage.ErrNotFound
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.read(id)
}

func (r *Repository) Update(_ context.Context, id string, u content.PostUpdate) (content.Post, error) {
	if storage.CheckName(id) != nil {
		return content.Post{}, storage.ErrNotFound
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, err := r.read(id)
	if err != nil {
		return content.Post{}, err
	}
	p = u.Apply(p, r.now())
	if err := r.write(p); err != nil {
		return content.Post{}, err
	}
	return p, nil
}

func (r *Repository) Delete(_ context.Context, id string) error {
	if storage.CheckName(id) != nil {
		return storage.ErrNotFound
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	data, err := os.ReadFile(r.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return storage.ErrNotFound
	}
	if err != nil {
		return err
	}
	if r.backupDir != "" {
		name := fmt.Sprintf("%s-%d%s", id, r.now().UnixMilli(), postExt)
		if err := os.WriteFile(filepath.Join(r.backupDir, name), data, 0o644); err != nil {
			return fmt.Errorf("backup %s: %w", id, err)
		}
	}
	return os.Remove(r.path(id))
}

func (r *Repository) List(_ context.Context, q storage.Query) (storage.Page, error) {
	r.mu.RLock()
	posts, err := r.readAll()
	r.mu.RUnlock()
	if err != nil {
		return storage.Page{}, err
	}
	return storage.Apply(posts, q), nil
}

func (r *Repository) Close() error { return nil }

func (r *Repository) read(id string) (content.Post, error) {
	data, err := os.ReadFile(r.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return content.Post{}, storage.ErrNotFound
	}
	if err != nil {
		return content.Post{}, err
	}
	p, err := content.ParseMDX(data, id)
	if err != nil {
		return content.Post{}, fmt.Errorf("%s: %w", r.path(id), err)
	}
	// The file name is authoritative for the id.
	p.ID = id
	return p, nil
}

// readAll loads every post in the directory. Files without frontmatter are
// skipped.
func (r *Repository) readAll() ([]content.Post, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, err
	}
	var posts []content.Post
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), postExt) {
			continue
		}
		p, err := r.read(strings.TrimSuffix(e.Name(), postExt))
		if errors.Is(err, content.ErrNoFrontmatter) {
			continue
		}
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, nil
}

func (r *Repository) write(p content.Post) error {
	data, err := content.FormatMDX(p)
	if err != nil {
		return err
	}
	return writeFileAtomic(r.path(p.ID), data)
}

// writeFileAtomic writes to a temporary file in the same directory and
// renames it over path.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
