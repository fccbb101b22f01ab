// Package content defines the blog's post and image model together with the
// pure transforms applied to them: slug generation, validation, sanitization,
// previews and the MDX frontmatter format.
package content

import (
	"strings"
	"time"
)

// Post is the core content type persisted by every storage backend.
type Post struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Content     string    `json:"content"`
	Date        string    `json:"date"`
	Tags        []string  `json:"tags"`
	Image       string    `json:"image"`
	Slug        string    `json:"slug"`
	URL         string    `json:"url,omitempty"`
	Published   bool      `json:"published"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Category returns the first tag, which determines the post's URL category.
func (p Post) Category() string {
	if len(p.Tags) == 0 {
		return ""
	}
	return p.Tags[0]
}

// Path returns the public path of the post: /<tag-slug>/<id>/.
func (p Post) Path() string {
	slug := p.Slug
	if slug == "" {
		slug = Slugify(p.Category())
	}
	return "/" + slug + "/" + p.ID + "/"
}

// HasTag reports whether the post carries tag, ignoring case and surrounding
// whitespace.
func (p Post) HasTag(tag string) bool {
	tag = NormalizeTag(tag)
	if tag == "" {
		return false
	}
	for _, t := range p.Tags {
		if NormalizeTag(t) == tag {
			return true
		}
	}
	return false
}

// NormalizeTag lowercases and trims a tag for comparison.
func NormalizeTag(t string) string {
	return strings.ToLower(strings.TrimSpace(t))
}

// PostInput carries the fields accepted when creating a post.
type PostInput struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Content     string   `json:"content"`
	Date        string   `json:"date"`
	Tags        []string `json:"tags"`
	Image       string   `json:"image"`
	URL         string   `json:"url"`
	Published   *bool    `json:"published"`
}

// PostUpdate carries a partial update. Nil fields are left untouched.
type PostUpdate struct {
	Title       *string   `json:"title"`
	Description *string   `json:"description"`
	Content     *string   `json:"content"`
	Date        *string   `json:"date"`
	Tags        *[]string `json:"tags"`
	Image       *string   `json:"image"`
	URL         *string   `json:"url"`
	Published   *bool     `json:"published"`
}

// Empty reports whether the update changes nothing.
func (u PostUpdate) Empty() bool {
	return u.Title == nil && u.Description == nil && u.Content == nil &&
		u.Date == nil && u.Tags == nil && u.Image == nil && u.URL == nil &&
		u.Published == nil
}

// NewPost validates in and builds the post it describes. The id is derived
// from the title and the slug from the first tag. Content is sanitized.
func NewPost(in PostInput, now time.Time) (Post, error) {
	in.Tags = CleanTags(in.Tags)
	if problems := ValidatePostData(in); len(problems) > 0 {
		return Post{}, &ValidationError{Problems: problems}
	}
	id := Slugify(in.Title)
	if id == "" {
		return Post{}, &ValidationError{Problems: []string{"Title must contain at least one letter or digit"}}
	}
	published := true
	if in.Published != nil {
		published = *in.Published
	}
	now = now.UTC()
	return Post{
		ID:          id,
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		Content:     SanitizeContent(in.Content),
		Date:        strings.TrimSpace(in.Date),
		Tags:        in.Tags,
		Image:       strings.TrimSpace(in.Image),
		Slug:        Slugify(in.Tags[0]),
		URL:         strings.TrimSpace(in.URL),
		Published:   published,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Apply merges u into p. The id never changes; the slug follows the first
// tag and UpdatedAt is set to now.
func (u PostUpdate) Apply(p Post, now time.Time) Post {
	if u.Title != nil {
		p.Title = strings.TrimSpace(*u.Title)
	}
	if u.Description != nil {
		p.Description = strings.TrimSpace(*u.Description)
	}
	if u.Content != nil {
		p.Content = SanitizeContent(*u.Content)
	}
	if u.Date != nil {
		p.Date = strings.TrimSpace(*u.Date)
	}
	if u.Tags != nil {
		p.Tags = CleanTags(*u.Tags)
		p.Slug = Slugify(p.Category())
	}
	if u.Image != nil {
		p.Image = strings.TrimSpace(*u.Image)
	}
	if u.URL != nil {
		p.URL = strings.TrimSpace(*u.URL)
	}
	if u.Published != nil {
		p.Published = *u.Published
	}
	p.UpdatedAt = now.UTC()
	return p
}

// CleanTags trims every tag and drops empty ones, keeping order.
func CleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if s := strings.TrimSpace(t); s != "" {
			out = append(out, s)
		}
	}
	return out
}
