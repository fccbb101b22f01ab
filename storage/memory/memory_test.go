package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/eringen/lilac/storage"
	"github.com/eringen/lilac/storage/storagetest"
)

func TestRepository(t *testing.T) {
	storagetest.RunRepositoryTests(t, func(t *testing.T) storage.Repository {
		return NewRepository()
	})
}

func TestImageStore(t *testing.T) {
	storagetest.RunImageStoreTests(t, func(t *testing.T) storage.ImageStore {
		return NewImageStore()
	})
}

func TestReturnedPostsAreCopies(t *testing.T) {
	ctx := context.Background()
	r := NewRepository(storagetest.Post("a", 1, "Go"))
	p, err := r.Get(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	p.Tags[0] = "mutated"
	again, _ := r.Get(ctx, "a")
	if again.Tags[0] != "Go" {
		t.Errorf("stored tags mutated through returned post: %v", again.Tags)
	}
}

func TestConcurrentCreate(t *testing.T) {
	ctx := context.Background()
	r := NewRepository()
	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Create(ctx, storagetest.Post("same", 1))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	ok := 0
	for err := range errs {
		if err == nil {
			ok++
		}
	}
	if ok != 1 {
		t.Errorf("%d concurrent creates succeeded, want 1", ok)
	}
}
