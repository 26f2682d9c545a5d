package blogsync

import (
	"encoding/xml"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

type rssXML struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title string    `xml:"title"`
	Link  string    `xml:"link"`
	Items []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string   `xml:"title"`
	Link        string   `xml:"link"`
	Description string   `xml:"description,omitempty"`
	Categories  []string `xml:"category"`
	PubDate     string   `xml:"pubDate,omitempty"`
	GUID        string   `xml:"guid"`
}

func (a *App) renderRSS(c echo.Context, entries []BlogEntry) error {
	base := a.Config.SiteURL
	items := make([]rssItem, 0, len(entries))
	for _, e := range entries {
		pubDate := ""
		if t, ok := entryDate(e); ok {
			pubDate = t.Format(time.RFC1123Z)
		}
		link := BuildURL(base, e.Link())
		title := deref(e.Title)
		if title == "" {
			title = e.Slug
		}
		items = append(items, rssItem{
			Title:       title,
			Link:        link,
			Description: deref(e.Description),
			Categories:  e.Tags,
			PubDate:     pubDate,
			GUID:        link,
		})
	}
	feed := rssXML{
		Version: "2.0",
		Channel: rssChannel{
			Title: a.Config.SiteName,
			Link:  base,
			Items: items,
		},
	}
	c.Response().Header().Set(echo.HeaderContentType, "application/rss+xml; charset=utf-8")
	c.Response().WriteHeader(http.StatusOK)
	c.Response().Write([]byte(xml.Header))
	return xml.NewEncoder(c.Response()).Encode(feed)
}

// entryDate parses the frontmatter date in the two shapes the extractor
// produces.
func entryDate(e BlogEntry) (time.Time, bool) {
	if e.Date == nil {
		return time.Time{}, false
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, *e.Date); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
