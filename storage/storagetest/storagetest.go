// Package storagetest holds the behaviour every storage backend must share,
// expressed as test suites the backend packages run against themselves.
package storagetest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/eringen/lilac/content"
	"github.com/eringen/lilac/storage"
)

// Post builds a valid post with the given id and tags.
func Post(id string, day int, tags ...string) content.Post {
	if len(tags) == 0 {
		tags = []string{"general"}
	}
	created := time.Date(2024, 1, day, 12, 0, 0, 0, time.UTC)
	return content.Post{
		ID:          id,
		Title:       "Title " + id,
		Description: "Description of " + id,
		Content:     "# " + id + "\n\nBody of the post.\n",
		Date:        created.Format("2006-01-02"),
		Tags:        tags,
		Slug:        content.Slugify(tags[0]),
		Published:   true,
		CreatedAt:   created,
		UpdatedAt:   created,
	}
}

// RunRepositoryTests exercises a Repository. newRepo must return an empty
// repository; it is called once per subtest.
func RunRepositoryTests(t *testing.T, newRepo func(t *testing.T) storage.Repository) {
	ctx := context.Background()

	t.Run("CreateGet", func(t *testing.T) {
		r := newRepo(t)
		want := Post("round-trip", 2, "Go", "Testing")
		want.URL = "custom"
		want.Image = "/api/images/cover.png"
		if _, err := r.Create(ctx, want); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		got, err := r.Get(ctx, "round-trip")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if err := samePost(got, want); err != nil {
			t.Error(err)
		}
	})

	t.Run("CreateConflict", func(t *testing.T) {
		r := newRepo(t)
		if _, err := r.Create(ctx, Post("dup", 1)); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if _, err := r.Create(ctx, Post("dup", 2)); !errors.Is(err, storage.ErrConflict) {
			t.Errorf("second Create err = %v, want ErrConflict", err)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		r := newRepo(t)
		if _, err := r.Get(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("Get err = %v, want ErrNotFound", err)
		}
		title := "x"
		if _, err := r.Update(ctx, "missing", content.PostUpdate{Title: &title}); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("Update err = %v, want ErrNotFound", err)
		}
		if err := r.Delete(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("Delete err = %v, want ErrNotFound", err)
		}
	})

	t.Run("Update", func(t *testing.T) {
		r := newRepo(t)
		orig := Post("editable", 3, "Go")
		if _, err := r.Create(ctx, orig); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		title := "New Title"
		tags := []string{"Web Dev"}
		draft := false
		got, err := r.Update(ctx, "editable", content.PostUpdate{Title: &title, Tags: &tags, Published: &draft})
		if err != nil {
			t.Fatalf("Update failed: %v", err)
		}
		if got.ID != "editable" || got.Title != title || got.Slug != "web-dev" || got.Published {
			t.Errorf("Update result = %+v", got)
		}
		if got.Description != orig.Description || got.Content != orig.Content {
			t.Error("Update changed untouched fields")
		}
		if !got.UpdatedAt.After(orig.UpdatedAt) {
			t.Errorf("UpdatedAt = %v, want after %v", got.UpdatedAt, orig.UpdatedAt)
		}
		stored, err := r.Get(ctx, "editable")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if stored.Title != title || stored.Published {
			t.Errorf("stored post not updated: %+v", stored)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		r := newRepo(t)
		if _, err := r.Create(ctx, Post("doomed", 4)); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if err := r.Delete(ctx, "doomed"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if _, err := r.Get(ctx, "doomed"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("Get after Delete err = %v, want ErrNotFound", err)
		}
	})

	t.Run("ListPagination", func(t *testing.T) {
		r := newRepo(t)
		for i := 1; i <= 5; i++ {
			if _, err := r.Create(ctx, Post(fmt.Sprintf("p%d", i), i)); err != nil {
				t.Fatalf("Create failed: %v", err)
			}
		}
		page, err := r.List(ctx, storage.Query{Page: 1, Limit: 2})
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if page.Total != 5 || len(page.Posts) != 2 || !page.HasMore {
			t.Errorf("page 1 = total %d, %d posts, hasMore %v", page.Total, len(page.Posts), page.HasMore)
		}
		if len(page.Posts) == 2 && (page.Posts[0].ID != "p5" || page.Posts[1].ID != "p4") {
			t.Errorf("page 1 order = %s, %s", page.Posts[0].ID, page.Posts[1].ID)
		}
		last, err := r.List(ctx, storage.Query{Page: 3, Limit: 2})
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(last.Posts) != 1 || last.HasMore || last.Posts[0].ID != "p1" {
			t.Errorf("page 3 = %d posts, hasMore %v", len(last.Posts), last.HasMore)
		}
		for _, q := range []storage.Query{
			{Page: math.MaxInt, Limit: 2},
			{Page: math.MaxInt / 2, Limit: 4},
			{Page: 1 << 62, Limit: 50},
		} {
			far, err := r.List(ctx, q)
			if err != nil {
				t.Fatalf("List(page %d) failed: %v", q.Page, err)
			}
			if len(far.Posts) != 0 || far.HasMore || far.Total != 5 {
				t.Errorf("page %d limit %d = %d posts, total %d, hasMore %v", q.Page, q.Limit, len(far.Posts), far.Total, far.HasMore)
			}
		}
		asc, err := r.List(ctx, storage.Query{SortBy: storage.SortDate, SortOrder: "asc"})
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(asc.Posts) != 5 || asc.Posts[0].ID != "p1" {
			t.Errorf("ascending list starts with %v", asc.Posts)
		}
	})

	t.Run("ListFilters", func(t *testing.T) {
		r := newRepo(t)
		draft := Post("draft", 1, "Go")
		draft.Published = false
		umlaut := Post("umlaut-post", 5, "go,rust")
		umlaut.Title = "Über Go"
		for _, p := range []content.Post{
			draft,
			Post("go-post", 2, "Go", "Backend"),
			Post("rust-post", 3, "Rust"),
			Post("golang-post", 4, "Golang"),
			umlaut,
		} {
			if _, err := r.Create(ctx, p); err != nil {
				t.Fatalf("Create(%s) failed: %v", p.ID, err)
			}
		}
		tests := []struct {
			name string
			q    storage.Query
			want []string
		}{
			{"published", storage.Query{Published: storage.Published(true)}, []string{"umlaut-post", "golang-post", "rust-post", "go-post"}},
			{"drafts", storage.Query{Published: storage.Published(false)}, []string{"draft"}},
			{"tag", storage.Query{Tag: "GO"}, []string{"go-post", "draft"}},
			{"tag published", storage.Query{Tag: "go", Published: storage.Published(true)}, []string{"go-post"}},
			{"tag containing comma", storage.Query{Tag: "GO,RUST"}, []string{"umlaut-post"}},
			{"tag is not split on commas", storage.Query{Tag: "rust"}, []string{"rust-post"}},
			{"search", storage.Query{Search: "RUST"}, []string{"umlaut-post", "rust-post"}},
			{"search tag", storage.Query{Search: "backend"}, []string{"go-post"}},
			{"search folds non-ascii", storage.Query{Search: "über"}, []string{"umlaut-post"}},
			{"search folds non-ascii upper", storage.Query{Search: "ÜBER G"}, []string{"umlaut-post"}},
			{"search matches within one tag", storage.Query{Search: "go,r"}, []string{"umlaut-post"}},
		}
		for _, tt := range tests {
			page, err := r.List(ctx, tt.q)
			if err != nil {
				t.Fatalf("%s: List failed: %v", tt.name, err)
			}
			var got []string
			for _, p := range page.Posts {
				got = append(got, p.ID)
			}
			if fmt.Sprint(got) != fmt.Sprint(tt.want) {
				t.Errorf("%s: got %v, want %v", tt.name, got, tt.want)
			}
			if page.Total != len(tt.want) {
				t.Errorf("%s: total = %d, want %d", tt.name, page.Total, len(tt.want))
			}
		}
	})
}

func samePost(got, want content.Post) error {
	switch {
	case got.ID != want.ID, got.Title != want.Title, got.Description != want.Description:
		return fmt.Errorf("identity fields differ: got %+v", got)
	case got.Content != want.Content:
		return fmt.Errorf("content = %q, want %q", got.Content, want.Content)
	case got.Date != want.Date, got.Slug != want.Slug, got.URL != want.URL, got.Image != want.Image:
		return fmt.Errorf("metadata differs: got %+v", got)
	case fmt.Sprint(got.Tags) != fmt.Sprint(want.Tags):
		return fmt.Errorf("tags = %v, want %v", got.Tags, want.Tags)
	case got.Published != want.Published:
		return fmt.Errorf("published = %v", got.Published)
	case !got.CreatedAt.Equal(want.CreatedAt):
		return fmt.Errorf("createdAt = %v, want %v", got.CreatedAt, want.CreatedAt)
	}
	return nil
}

// RunImageStoreTests exercises an ImageStore. newStore must return an empty
// store; it is called once per subtest.
func RunImageStoreTests(t *testing.T, newStore func(t *testing.T) storage.ImageStore) {
	ctx := context.Background()
	data := []byte("\x89PNG\r\n\x1a\nnot really a png")
	img := func(name string, at time.Time) content.Image {
		return content.Image{
			Filename:     name,
			OriginalName: "Original " + name,
			MimeType:     "image/png",
			Size:         int64(len(data)),
			Width:        10,
			Height:       20,
			UploadedAt:   at,
		}
	}
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	t.Run("SaveGet", func(t *testing.T) {
		s := newStore(t)
		if err := s.Save(ctx, img("a.png", base), data); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		meta, got, err := s.Get(ctx, "a.png")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if !bytes.Equal(got, data) {
			t.Errorf("data = %q, want %q", got, data)
		}
		if meta.Filename != "a.png" || meta.MimeType != "image/png" || meta.Size != int64(len(data)) {
			t.Errorf("meta = %+v", meta)
		}
	})

	t.Run("GetMissing", func(t *testing.T) {
		s := newStore(t)
		if _, _, err := s.Get(ctx, "nope.png"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("Get err = %v, want ErrNotFound", err)
		}
		if err := s.Delete(ctx, "nope.png"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("Delete err = %v, want ErrNotFound", err)
		}
	})

	t.Run("ListDelete", func(t *testing.T) {
		s := newStore(t)
		for i, name := range []string{"old.png", "new.png", "mid.png"} {
			at := base.Add(time.Duration([]int{0, 2, 1}[i]) * time.Hour)
			if err := s.Save(ctx, img(name, at), data); err != nil {
				t.Fatalf("Save failed: %v", err)
			}
		}
		list, err := s.List(ctx)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		var names []string
		for _, m := range list {
			names = append(names, m.Filename)
		}
		if fmt.Sprint(names) != "[new.png mid.png old.png]" {
			t.Errorf("List = %v, want newest first", names)
		}
		if err := s.Delete(ctx, "mid.png"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if _, _, err := s.Get(ctx, "mid.png"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("Get after Delete err = %v, want ErrNotFound", err)
		}
		list, _ = s.List(ctx)
		if len(list) != 2 {
			t.Errorf("List after Delete has %d images, want 2", len(list))
		}
	})

	t.Run("RejectsTraversal", func(t *testing.T) {
		s := newStore(t)
		for _, name := range []string{"../escape.png", "a/b.png", ""} {
			if err := s.Save(ctx, img(name, base), data); err == nil {
				t.Errorf("Save(%q) succeeded, want error", name)
			}
		}
	})
}
