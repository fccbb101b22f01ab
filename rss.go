package lilac

import (
	"encoding/xml"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/eringen/lilac/content"
)

type rssXML struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title         string    `xml:"title"`
	Link          string    `xml:"link"`
	Description   string    `xml:"description"`
	LastBuildDate string    `xml:"lastBuildDate,omitempty"`
	Items         []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string   `xml:"title"`
	Link        string   `xml:"link"`
	Description string   `xml:"description"`
	PubDate     string   `xml:"pubDate,omitempty"`
	GUID        string   `xml:"guid"`
	Categories  []string `xml:"category"`
}

func buildFeed(cfg Config, posts []content.Post, now time.Time) rssXML {
	items := make([]rssItem, 0, len(posts))
	for _, p := range posts {
		pubDate := ""
		if t, err := content.ParseDate(p.Date); err == nil {
			pubDate = t.Format(time.RFC1123Z)
		}
		link := PostURL(cfg.URL, p)
		items = append(items, rssItem{
			Title:       p.Title,
			Link:        link,
			Description: p.Description,
			PubDate:     pubDate,
			GUID:        link,
			Categories:  p.Tags,
		})
	}
	return rssXML{
		Version: "2.0",
		Channel: rssChannel{
			Title:         cfg.Name,
			Link:          BuildURL(cfg.URL),
			Description:   cfg.Description,
			LastBuildDate: now.UTC().Format(time.RFC1123Z),
			Items:         items,
		},
	}
}

func (a *App) renderRSS(c echo.Context, posts []content.Post) error {
	feed := buildFeed(a.Config, posts, a.now())
	c.Response().Header().Set(echo.HeaderContentType, "application/rss+xml; charset=utf-8")
	c.Response().WriteHeader(http.StatusOK)
	c.Response().Write([]byte(xml.Header))
	return xml.NewEncoder(c.Response()).Encode(feed)
}
