package storage

import (
	"math"
	"sort"
	"strings"

	"github.com/eringen/lilac/content"
)

// Sort fields accepted by Query.SortBy.
const (
	SortDate      = "date"
	SortTitle     = "title"
	SortCreatedAt = "createdAt"
	SortUpdatedAt = "updatedAt"
)

// Query selects and orders a page of posts.
type Query struct {
	Page      int
	Limit     int // 0 means no limit
	Tag       string
	Search    string
	Published *bool
	SortBy    string
	SortOrder string // "asc" or "desc"
}

// Page is one slice of a listing.
type Page struct {
	Posts   []content.Post `json:"posts"`
	Total   int            `json:"total"`
	Page    int            `json:"page"`
	Limit   int            `json:"limit"`
	HasMore bool           `json:"hasMore"`
}

// Published returns a pointer to v, for Query.Published.
func Published(v bool) *bool { return &v }

// Normalize fills defaults: page 1, sort by date, descending.
func (q Query) Normalize() Query {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 0 {
		q.Limit = 0
	}
	switch q.SortBy {
	case SortDate, SortTitle, SortCreatedAt, SortUpdatedAt:
	default:
		q.SortBy = SortDate
	}
	if q.SortOrder != "asc" {
		q.SortOrder = "desc"
	}
	q.Tag = strings.TrimSpace(q.Tag)
	q.Search = strings.TrimSpace(q.Search)
	return q
}

// Skip is the number of matching posts before the requested page. It
// saturates at math.MaxInt for pages too far out to count.
func (q Query) Skip() int {
	if q.Limit <= 0 || q.Page <= 1 {
		return 0
	}
	if q.Page-1 > math.MaxInt/q.Limit {
		return math.MaxInt
	}
	return (q.Page - 1) * q.Limit
}

// hasMore reports whether page*limit < total without overflowing.
func hasMore(page, limit, total int) bool {
	if limit <= 0 || total <= 0 {
		return false
	}
	return page <= (total-1)/limit
}

// NewPage assembles a Page for q given the posts on it and the total match
// count.
func NewPage(q Query, posts []content.Post, total int) Page {
	if posts == nil {
		posts = []content.Post{}
	}
	return Page{
		Posts:   posts,
		Total:   total,
		Page:    q.Page,
		Limit:   q.Limit,
		HasMore: hasMore(q.Page, q.Limit, total),
	}
}

// Match reports whether p satisfies the filters of q.
func (q Query) Match(p content.Post) bool {
	if q.Published != nil && p.Published != *q.Published {
		return false
	}
	if q.Tag != "" && !p.HasTag(q.Tag) {
		return false
	}
	if q.Search != "" {
		needle := strings.ToLower(q.Search)
		found := strings.Contains(strings.ToLower(p.Title), needle) ||
			strings.Contains(strings.ToLower(p.Description), needle)
		for _, t := range p.Tags {
			if found {
				break
			}
			found = strings.Contains(strings.ToLower(t), needle)
		}
		if !found {
			return false
		}
	}
	return true
}

// Apply filters, sorts and paginates posts in process. Backends without a
// query engine of their own use it.
func Apply(posts []content.Post, q Query) Page {
	q = q.Normalize()
	matched := make([]content.Post, 0, len(posts))
	for _, p := range posts {
		if q.Match(p) {
			matched = append(matched, p)
		}
	}
	SortPosts(matched, q.SortBy, q.SortOrder)

	total := len(matched)
	start := q.Skip()
	if start > total {
		start = total
	}
	end := total
	if q.Limit > 0 && start+q.Limit < total {
		end = start + q.Limit
	}
	return NewPage(q, matched[start:end], total)
}

// SortPosts orders posts in place. Ties are broken by id so pages are stable.
func SortPosts(posts []content.Post, by, order string) {
	desc := order != "asc"
	sort.SliceStable(posts, func(i, j int) bool {
		c := comparePosts(posts[i], posts[j], by)
		if c == 0 {
			c = strings.Compare(posts[i].ID, posts[j].ID)
		}
		if desc {
			return c > 0
		}
		return c < 0
	})
}

func comparePosts(a, b content.Post, by string) int {
	switch by {
	case SortTitle:
		return strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
	case SortCreatedAt:
		return a.CreatedAt.Compare(b.CreatedAt)
	case SortUpdatedAt:
		return a.UpdatedAt.Compare(b.UpdatedAt)
	}
	ta, errA := content.ParseDate(a.Date)
	tb, errB := content.ParseDate(b.Date)
	if errA != nil || errB != nil {
		return strings.Compare(a.Date, b.Date)
	}
	return ta.Compare(tb)
}
