package lilac

import (
	"encoding/json"
	"net/url"
	"path"
	"strings"

	"github.com/eringen/lilac/content"
)

// BuildURL joins a base URL with path segments, ensuring a trailing slash.
func BuildURL(base string, pathSegments ...string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	u.Path = path.Join(u.Path, path.Join(pathSegments...))
	if len(pathSegments) > 0 && !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u.String()
}

// PostURL is the canonical public URL of p: <base>/<tag-slug>/<id>/.
func PostURL(base string, p content.Post) string {
	return BuildURL(base, strings.Trim(p.Path(), "/"))
}

// RelatedPosts returns up to max posts sharing at least one tag with
// current, in the order given.
func RelatedPosts(current content.Post, posts []content.Post, max int) []content.Post {
	related := []content.Post{}
	for _, p := range posts {
		if len(related) == max {
			break
		}
		if p.ID == current.ID {
			continue
		}
		for _, t := range p.Tags {
			if current.HasTag(t) {
				related = append(related, p)
				break
			}
		}
	}
	return related
}

// PostJSONLD returns a schema.org BlogPosting for p as JSON.
func PostJSONLD(p content.Post, cfg Config) string {
	postURL := PostURL(cfg.URL, p)
	data := map[string]any{
		"@context":      "https://schema.org",
		"@type":         "BlogPosting",
		"headline":      p.Title,
		"description":   p.Description,
		"datePublished": p.Date,
		"dateModified":  p.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
		"url":           postURL,
		"mainEntityOfPage": map[string]string{
			"@type": "WebPage",
			"@id":   postURL,
		},
	}
	if p.Image != "" {
		if strings.HasPrefix(p.Image, "/") {
			data["image"] = strings.TrimSuffix(cfg.URL, "/") + p.Image
		} else if !strings.HasPrefix(p.Image, "data:") {
			data["image"] = p.Image
		}
	}
	if cfg.Name != "" {
		data["publisher"] = map[string]string{
			"@type": "Organization",
			"name":  cfg.Name,
		}
	}
	if len(p.Tags) > 0 {
		data["keywords"] = strings.Join(p.Tags, ", ")
	}
	b, err := json.Marshal(data)
	if err != nil {
		return "{}"
	}
	return string(b)
}
