package server

import (
	"encoding/xml"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-pkgz/lgr"

	"github.com/umputun/compscout/pkg/domain"
)

const defaultRSSLimit = 50

// rss is the root RSS 2.0 element
type rss struct {
	XMLName xml.Name    `xml:"rss"`
	Version string      `xml:"version,attr"`
	Atom    string      `xml:"xmlns:atom,attr"`
	Channel *rssChannel `xml:"channel"`
}

// rssChannel represents an RSS channel
type rssChannel struct {
	XMLName       xml.Name   `xml:"channel"`
	Title         string     `xml:"title"`
	Link          string     `xml:"link"`
	Description   string     `xml:"description"`
	AtomLink      *atomLink  `xml:"http://www.w3.org/2005/Atom link"`
	LastBuildDate string     `xml:"lastBuildDate"`
	Items         []*rssItem `xml:"item"`
}

// atomLink represents an Atom link element within RSS
type atomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
	Type string `xml:"type,attr"`
}

// rssItem represents an item in an RSS feed
type rssItem struct {
	Title       string   `xml:"title"`
	Link        string   `xml:"link"`
	GUID        string   `xml:"guid"`
	Description string   `xml:"description"`
	PubDate     string   `xml:"pubDate"`
	Categories  []string `xml:"category"`
}

// FeedGenerator renders strategic events as an RSS 2.0 feed so the results
// can be consumed from any feed reader alongside the JSON API
type FeedGenerator struct {
	baseURL string
}

// NewFeedGenerator creates a feed generator for the given externally visible base URL
func NewFeedGenerator(baseURL string) *FeedGenerator {
	return &FeedGenerator{baseURL: strings.TrimRight(baseURL, "/")}
}

// GenerateRSS creates an RSS 2.0 feed from events, optionally scoped to one competitor
func (g *FeedGenerator) GenerateRSS(events []domain.Event, competitor string) (string, error) {
	title := "Compscout - All Competitors"
	selfLink := g.baseURL + "/rss"
	if competitor != "" {
		title = "Compscout - " + competitor
		selfLink = fmt.Sprintf("%s/rss/%s", g.baseURL, competitor)
	}

	items := make([]*rssItem, 0, len(events))
	for _, event := range events {
		items = append(items, g.convertToRSSItem(event))
	}

	feed := &rss{
		Version: "2.0",
		Atom:    "http://www.w3.org/2005/Atom",
		Channel: &rssChannel{
			Title:         title,
			Link:          g.baseURL + "/",
			Description:   "Strategic competitor events extracted from public sources",
			AtomLink:      &atomLink{Href: selfLink, Rel: "self", Type: "application/rss+xml"},
			LastBuildDate: time.Now().Format(time.RFC1123Z),
			Items:         items,
		},
	}

	output, err := xml.MarshalIndent(feed, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal RSS: %w", err)
	}
	return xml.Header + string(output), nil
}

// convertToRSSItem converts a persisted event to an RSS item
func (g *FeedGenerator) convertToRSSItem(event domain.Event) *rssItem {
	desc := fmt.Sprintf("[%s impact, confidence %.2f] %s", event.Impact, event.Confidence, event.Summary)
	if len(event.Entities) > 0 {
		desc += "\nEntities: " + strings.Join(event.Entities, ", ")
	}

	title := event.ArticleTitle
	if event.CompetitorName != "" {
		title = fmt.Sprintf("%s: %s", event.CompetitorName, event.ArticleTitle)
	}

	return &rssItem{
		Title:       title,
		Link:        event.ArticleURL,
		GUID:        fmt.Sprintf("%s/api/v1/events#%d", g.baseURL, event.ID),
		Description: desc,
		PubDate:     event.CreatedAt.Format(time.RFC1123Z),
		Categories:  []string{string(event.Category)},
	}
}

// rssHandler serves recent events as an RSS feed.
// Supports both /rss/{competitor} and /rss?competitor=... patterns.
func (s *Server) rssHandler(w http.ResponseWriter, r *http.Request) {
	competitor := r.PathValue("competitor")
	if competitor == "" {
		competitor = r.URL.Query().Get("competitor")
	}

	filter := domain.EventFilter{Competitor: competitor, Limit: defaultRSSLimit}
	events, err := s.store.ListEvents(r.Context(), filter)
	if err != nil {
		lgr.Printf("[WARN] list events for RSS: %v", err)
		http.Error(w, "failed to generate RSS feed", http.StatusInternalServerError)
		return
	}

	generator := NewFeedGenerator(s.config.GetBaseURL())
	feed, err := generator.GenerateRSS(events, competitor)
	if err != nil {
		lgr.Printf("[WARN] generate RSS feed: %v", err)
		http.Error(w, "failed to generate RSS feed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
	if _, err := w.Write([]byte(feed)); err != nil {
		lgr.Printf("[WARN] write RSS response: %v", err)
	}
}
