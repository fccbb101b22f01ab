package lilac

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/eringen/lilac/content"
	"github.com/eringen/lilac/storage"
)

// postDetail is a single post as returned by the public API.
type postDetail struct {
	content.Post
	HTML    string         `json:"html"`
	Preview string         `json:"preview"`
	JSONLD  string         `json:"jsonLd"`
	Related []content.Post `json:"related"`
}

// postSummary is a post in a listing: everything but the body.
type postSummary struct {
	content.Post
	Content string `json:"content,omitempty"`
	Preview string `json:"preview"`
	Link    string `json:"link"`
}

type summaryPage struct {
	Posts   []postSummary `json:"posts"`
	Total   int           `json:"total"`
	Page    int           `json:"page"`
	Limit   int           `json:"limit"`
	HasMore bool          `json:"hasMore"`
}

func summarize(posts []content.Post) []postSummary {
	out := make([]postSummary, len(posts))
	for i, p := range posts {
		out[i] = postSummary{
			Post:    p,
			Preview: content.Preview(p.Content, content.DefaultPreviewLength),
			Link:    p.Path(),
		}
	}
	return out
}

func summarizePage(p storage.Page) summaryPage {
	return summaryPage{
		Posts:   summarize(p.Posts),
		Total:   p.Total,
		Page:    p.Page,
		Limit:   p.Limit,
		HasMore: p.HasMore,
	}
}

// parsePaging reads page and limit. An absent limit yields defaultLimit;
// present values must lie in 1..MaxPageLimit.
func (a *App) parsePaging(c echo.Context, defaultLimit int) (int, int, error) {
	page, limit := 1, defaultLimit
	if s := c.QueryParam("page"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return 0, 0, statusError(http.StatusBadRequest, "Invalid page parameter")
		}
		page = n
	}
	if s := c.QueryParam("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > a.Config.MaxPageLimit {
			return 0, 0, statusError(http.StatusBadRequest, "Invalid limit parameter")
		}
		limit = n
	}
	return page, limit, nil
}

func (a *App) handleListPosts(c echo.Context) error {
	page, limit, err := a.parsePaging(c, a.Config.DefaultPageLimit)
	if err != nil {
		return err
	}
	result, err := a.Posts.List(c.Request().Context(), storage.Query{
		Page:      page,
		Limit:     limit,
		Tag:       c.QueryParam("tag"),
		Published: storage.Published(true),
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, summarizePage(result))
}

func (a *App) handleSearchPosts(c echo.Context) error {
	q := strings.TrimSpace(c.QueryParam("q"))
	if q == "" {
		return statusError(http.StatusBadRequest, "Search query is required")
	}
	page, limit, err := a.parsePaging(c, a.Config.DefaultPageLimit)
	if err != nil {
		return err
	}
	result, err := a.Posts.List(c.Request().Context(), storage.Query{
		Page:      page,
		Limit:     limit,
		Search:    q,
		Published: storage.Published(true),
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, summarizePage(result))
}

func (a *App) handleGetPost(c echo.Context) error {
	ctx := c.Request().Context()
	post, err := a.Cache.Resolve(ctx, c.Param("slug"))
	if err != nil {
		return err
	}
	return a.writePostDetail(c, post)
}

func (a *App) handlePostByURL(c echo.Context) error {
	post, err := a.Cache.FindByURL(c.Request().Context(), c.Param("tag"), c.Param("url"))
	if err != nil {
		return err
	}
	return a.writePostDetail(c, post)
}

func (a *App) writePostDetail(c echo.Context, post content.Post) error {
	ctx := c.Request().Context()
	html, err := RenderPostHTML(ctx, post.Content)
	if err != nil {
		return err
	}
	all, err := a.Cache.ListPosts(ctx, "")
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, postDetail{
		Post:    post,
		HTML:    html,
		Preview: content.Preview(post.Content, content.DefaultPreviewLength),
		JSONLD:  PostJSONLD(post, a.Config),
		Related: RelatedPosts(post, all, 3),
	})
}

func (a *App) handleListTags(c echo.Context) error {
	tags, err := a.Cache.ListTags(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"tags": tags})
}

func (a *App) handleTagPosts(c echo.Context) error {
	slug := content.Slugify(c.Param("tag"))
	posts, err := a.Cache.PostsByTagSlug(c.Request().Context(), slug)
	if err != nil {
		return err
	}
	if len(posts) == 0 {
		return statusError(http.StatusNotFound, "Tag not found")
	}
	name := slug
	for _, t := range posts[0].Tags {
		if content.Slugify(t) == slug {
			name = t
			break
		}
	}
	return c.JSON(http.StatusOK, map[string]any{
		"tag":   Tag{Name: name, Slug: slug, Count: len(posts)},
		"posts": summarize(posts),
	})
}

func (a *App) handleSitemap(c echo.Context) error {
	posts, err := a.Cache.ListPosts(c.Request().Context(), "")
	if err != nil {
		return err
	}
	return a.renderSitemap(c, posts)
}

func (a *App) handleFeed(c echo.Context) error {
	posts, err := a.Cache.ListPosts(c.Request().Context(), "")
	if err != nil {
		return err
	}
	return a.renderRSS(c, posts)
}
