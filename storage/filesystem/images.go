package filesystem

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/eringen/lilac/content"
	"github.com/eringen/lilac/storage"
)

// metaDir holds a JSON sidecar per image with the metadata a bare file
// cannot carry.
const metaDir = ".meta"

// ImageStore keeps image files in a directory.
type ImageStore struct {
	dir string
	mu  sync.RWMutex
}

// NewImageStore creates dir if needed.
func NewImageStore(dir string) (*ImageStore, error) {
	if err := os.MkdirAll(filepath.Join(dir, metaDir), 0o755); err != nil {
		return nil, err
	}
	return &ImageStore{dir: dir}, nil
}

func (s *ImageStore) metaPath(filename string) string {
	return filepath.Join(s.dir, metaDir, filename+".json")
}

func (s *ImageStore) Save(_ context.Context, img content.Image, data []byte) error {
	if err := storage.CheckName(img.Filename); err != nil {
		return err
	}
	meta, err := json.Marshal(img)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := writeFileAtomic(filepath.Join(s.dir, img.Filename), data); err != nil {
		return err
	}
	return writeFileAtomic(s.metaPath(img.Filename), meta)
}

func (s *ImageStore) Get(_ context.Context, filename string) (content.Image, []byte, error) {
	if storage.CheckName(filename) != nil {
		return content.Image{}, nil, storage.ErrNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, err := os.ReadFile(filepath.Join(s.dir, filename))
	if errors.Is(err, fs.ErrNotExist) {
		return content.Image{}, nil, storage.ErrNotFound
	}
	if err != nil {
		return content.Image{}, nil, err
	}
	img, err := s.meta(filename)
	if err != nil {
		return content.Image{}, nil, err
	}
	return img, data, nil
}

func (s *ImageStore) Delete(_ context.Context, filename string) error {
	if storage.CheckName(filename) != nil {
		return storage.ErrNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	err := os.Remove(filepath.Join(s.dir, filename))
	if errors.Is(err, fs.ErrNotExist) {
		return storage.ErrNotFound
	}
	if err != nil {
		return err
	}
	if err := os.Remove(s.metaPath(filename)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (s *ImageStore) List(_ context.Context) ([]content.Image, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	images := make([]content.Image, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		img, err := s.meta(e.Name())
		if err != nil {
			return nil, err
		}
		images = append(images, img)
	}
	sort.Slice(images, func(i, j int) bool {
		return images[i].UploadedAt.After(images[j].UploadedAt)
	})
	return images, nil
}

// meta reads the sidecar for filename, synthesizing one from the file
// itself for images copied into the directory by hand.
func (s *ImageStore) meta(filename string) (content.Image, error) {
	raw, err := os.ReadFile(s.metaPath(filename))
	if err == nil {
		var img content.Image
		if err := json.Unmarshal(raw, &img); err != nil {
			return content.Image{}, err
		}
		return img, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return content.Image{}, err
	}
	info, err := os.Stat(filepath.Join(s.dir, filename))
	if err != nil {
		return content.Image{}, err
	}
	return content.Image{
		Filename:     filename,
		OriginalName: filename,
		MimeType:     content.MimeTypeFor(filename),
		Size:         info.Size(),
		UploadedAt:   info.ModTime().UTC(),
	}, nil
}
