package content

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestFormatParseMDXRoundTrip(t *testing.T) {
	created := time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC)
	post := Post{
		ID:          "test-post",
		Title:       "Test Post: a \"quoted\" title",
		Description: "A test post summary",
		Content:     "# Test Content\n\nThis is test content.\n",
		Date:        "2024-01-15",
		Tags:        []string{"Go", "testing"},
		Image:       "/api/images/cover.png",
		Slug:        "go",
		URL:         "custom-url",
		Published:   false,
		CreatedAt:   created,
		UpdatedAt:   created.Add(time.Hour),
	}

	data, err := FormatMDX(post)
	if err != nil {
		t.Fatalf("FormatMDX failed: %v", err)
	}
	if !strings.HasPrefix(string(data), "---\n") {
		t.Fatalf("document does not start with frontmatter: %q", data)
	}

	got, err := ParseMDX(data, "ignored")
	if err != nil {
		t.Fatalf("ParseMDX failed: %v", err)
	}
	if got.ID != post.ID {
		t.Errorf("ID = %q, want %q", got.ID, post.ID)
	}
	if got.Title != post.Title {
		t.Errorf("Title = %q, want %q", got.Title, post.Title)
	}
	if got.Description != post.Description {
		t.Errorf("Description = %q, want %q", got.Description, post.Description)
	}
	if got.Date != post.Date {
		t.Errorf("Date = %q, want %q", got.Date, post.Date)
	}
	if got.Content != post.Content {
		t.Errorf("Content = %q, want %q", got.Content, post.Content)
	}
	if strings.Join(got.Tags, ",") != "Go,testing" {
		t.Errorf("Tags = %v", got.Tags)
	}
	if got.Slug != "go" || got.URL != "custom-url" || got.Image != post.Image {
		t.Errorf("Slug/URL/Image = %q/%q/%q", got.Slug, got.URL, got.Image)
	}
	if got.Published {
		t.Error("Published should be false")
	}
	if !got.CreatedAt.Equal(post.CreatedAt) || !got.UpdatedAt.Equal(post.UpdatedAt) {
		t.Errorf("timestamps = %v/%v", got.CreatedAt, got.UpdatedAt)
	}
}

func TestParseMDXLegacyFrontmatter(t *testing.T) {
	doc := "---\n" +
		"title: 'Legacy Post'\n" +
		"subtitle: 'Older field name'\n" +
		"date: '2023-06-01'\n" +
		"tags:\n  - Web Dev\n  - css\n" +
		"url: legacy\n" +
		"---\n\nBody text\n"

	p, err := ParseMDX([]byte(doc), "legacy-post")
	if err != nil {
		t.Fatalf("ParseMDX failed: %v", err)
	}
	if p.ID != "legacy-post" {
		t.Errorf("ID = %q, want fallback", p.ID)
	}
	if p.Description != "Older field name" {
		t.Errorf("Description = %q, want subtitle", p.Description)
	}
	if !p.Published {
		t.Error("missing published flag should default to true")
	}
	if p.Slug != "web-dev" {
		t.Errorf("Slug = %q", p.Slug)
	}
	if p.CreatedAt.IsZero() {
		t.Error("CreatedAt should fall back to the post date")
	}
	if p.Content != "\nBody text\n" {
		t.Errorf("Content = %q", p.Content)
	}
}

func TestParseMDXWithoutFrontmatter(t *testing.T) {
	_, err := ParseMDX([]byte("# just markdown"), "x")
	if !errors.Is(err, ErrNoFrontmatter) {
		t.Errorf("err = %v, want ErrNoFrontmatter", err)
	}
	_, err = ParseMDX([]byte("---\ntitle: x\nno closing"), "x")
	if !errors.Is(err, ErrNoFrontmatter) {
		t.Errorf("unterminated: err = %v, want ErrNoFrontmatter", err)
	}
}

func TestParseMDXCRLF(t *testing.T) {
	doc := "---\r\ntitle: Windows\r\ndate: '2024-02-02'\r\ntags: [a]\r\n---\r\nline\r\n"
	p, err := ParseMDX([]byte(doc), "windows")
	if err != nil {
		t.Fatalf("ParseMDX failed: %v", err)
	}
	if p.Title != "Windows" || p.Content != "line\n" {
		t.Errorf("Title/Content = %q/%q", p.Title, p.Content)
	}
}
