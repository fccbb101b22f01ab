package content

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrNoFrontmatter is returned when a document does not start with a
// "---" delimited YAML block.
var ErrNoFrontmatter = errors.New("content: missing frontmatter")

// frontmatter is the YAML header of a post file. Subtitle is accepted as an
// older spelling of Description.
type frontmatter struct {
	ID          string     `yaml:"id,omitempty"`
	Title       string     `yaml:"title"`
	Description string     `yaml:"description,omitempty"`
	Subtitle    string     `yaml:"subtitle,omitempty"`
	Date        string     `yaml:"date"`
	Tags        []string   `yaml:"tags"`
	Image       string     `yaml:"image,omitempty"`
	URL         string     `yaml:"url,omitempty"`
	Published   *bool      `yaml:"published,omitempty"`
	CreatedAt   *time.Time `yaml:"createdAt,omitempty"`
	UpdatedAt   *time.Time `yaml:"updatedAt,omitempty"`
}

// ParseMDX splits an MDX document into its frontmatter and body and returns
// the post they describe. fallbackID is used when the frontmatter carries no
// id, typically the file name without extension.
func ParseMDX(data []byte, fallbackID string) (Post, error) {
	head, body, err := splitFrontmatter(data)
	if err != nil {
		return Post{}, err
	}
	var fm frontmatter
	if err := yaml.Unmarshal(head, &fm); err != nil {
		return Post{}, fmt.Errorf("content: decode frontmatter: %w", err)
	}

	p := Post{
		ID:          fm.ID,
		Title:       fm.Title,
		Description: fm.Description,
		Content:     body,
		Date:        fm.Date,
		Tags:        CleanTags(fm.Tags),
		Image:       fm.Image,
		URL:         fm.URL,
		Published:   true,
	}
	if p.ID == "" {
		p.ID = fallbackID
	}
	if p.Description == "" {
		p.Description = fm.Subtitle
	}
	if fm.Published != nil {
		p.Published = *fm.Published
	}
	p.Slug = Slugify(p.Category())
	if fm.CreatedAt != nil {
		p.CreatedAt = fm.CreatedAt.UTC()
	} else if t, err := ParseDate(p.Date); err == nil {
		p.CreatedAt = t.UTC()
	}
	if fm.UpdatedAt != nil {
		p.UpdatedAt = fm.UpdatedAt.UTC()
	} else {
		p.UpdatedAt = p.CreatedAt
	}
	return p, nil
}

// FormatMDX renders p as an MDX document with a YAML frontmatter header.
func FormatMDX(p Post) ([]byte, error) {
	published := p.Published
	fm := frontmatter{
		ID:          p.ID,
		Title:       p.Title,
		Description: p.Description,
		Date:        p.Date,
		Tags:        p.Tags,
		Image:       p.Image,
		URL:         p.URL,
		Published:   &published,
	}
	if !p.CreatedAt.IsZero() {
		t := p.CreatedAt.UTC()
		fm.CreatedAt = &t
	}
	if !p.UpdatedAt.IsZero() {
		t := p.UpdatedAt.UTC()
		fm.UpdatedAt = &t
	}
	head, err := yaml.Marshal(fm)
	if err != nil {
		return nil, fmt.Errorf("content: encode frontmatter: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(head)
	buf.WriteString("---\n")
	buf.WriteString(p.Content)
	return buf.Bytes(), nil
}

func splitFrontmatter(data []byte) ([]byte, string, error) {
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	text = strings.TrimPrefix(text, "\ufeff")
	if !strings.HasPrefix(text, "---\n") {
		return nil, "", ErrNoFrontmatter
	}
	rest := text[len("---\n"):]
	var head, body string
	switch {
	case strings.HasPrefix(rest, "---\n"):
		body = rest[len("---\n"):]
	case strings.HasPrefix(rest, "---") && len(rest) == 3:
	default:
		end := strings.Index(rest, "\n---\n")
		if end < 0 {
			if !strings.HasSuffix(rest, "\n---") {
				return nil, "", ErrNoFrontmatter
			}
			end = len(rest) - len("\n---")
			head = rest[:end]
			break
		}
		head = rest[:end]
		body = rest[end+len("\n---\n"):]
	}
	return []byte(head), body, nil
}
