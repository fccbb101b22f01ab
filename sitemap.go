package lilac

import (
	"encoding/xml"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/eringen/lilac/content"
)

type sitemapURLSet struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

// buildSitemap lists the home page, one page per tag and every post. A
// post's lastmod is its update time, falling back to its date.
func buildSitemap(base string, posts []content.Post, tags []Tag) sitemapURLSet {
	urls := []sitemapURL{{Loc: BuildURL(base)}}
	for _, t := range tags {
		urls = append(urls, sitemapURL{Loc: BuildURL(base, t.Slug)})
	}
	for _, p := range posts {
		lastMod := p.Date
		if !p.UpdatedAt.IsZero() {
			lastMod = p.UpdatedAt.UTC().Format(time.DateOnly)
		}
		urls = append(urls, sitemapURL{
			Loc:     PostURL(base, p),
			LastMod: lastMod,
		})
	}
	return sitemapURLSet{
		XMLNS: "http://www.sitemaps.org/schemas/sitemap/0.9",
		URLs:  urls,
	}
}

func (a *App) renderSitemap(c echo.Context, posts []content.Post) error {
	tags, err := a.Cache.ListTags(c.Request().Context())
	if err != nil {
		return err
	}
	sitemap := buildSitemap(a.Config.URL, posts, tags)
	c.Response().Header().Set(echo.HeaderContentType, "application/xml; charset=utf-8")
	c.Response().WriteHeader(http.StatusOK)
	c.Response().Write([]byte(xml.Header))
	return xml.NewEncoder(c.Response()).Encode(sitemap)
}
