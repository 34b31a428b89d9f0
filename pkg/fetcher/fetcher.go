// Package fetcher retrieves candidate articles from competitor sources.
// Two variants are provided: an RSS/Atom fetcher and an HTML fetcher driven
// by per-source CSS selectors. Both respect a shared per-host rate limiter
// with a per-run request budget.
package fetcher

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/umputun/compscout/pkg/config"
	"github.com/umputun/compscout/pkg/domain"
)

// Fetcher produces candidate articles from a single source. A fresh fetch
// always re-reads the full feed or page.
type Fetcher interface {
	Fetch(ctx context.Context, src domain.Source) ([]domain.CandidateArticle, error)
}

// Multi routes a source to the matching fetcher variant
type Multi struct {
	rss  *RSSFetcher
	html *HTMLFetcher
}

// NewMulti creates fetchers for all supported source types sharing one
// HTTP client and rate limiter
func NewMulti(cfg config.FetchConfig, limiter *Limiter) *Multi {
	client := &http.Client{
		Timeout: cfg.Timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
	return &Multi{
		rss:  NewRSSFetcher(client, cfg, limiter),
		html: NewHTMLFetcher(client, cfg, limiter),
	}
}

// Fetch dispatches on the source type
func (m *Multi) Fetch(ctx context.Context, src domain.Source) ([]domain.CandidateArticle, error) {
	switch src.Type {
	case domain.SourceRSS:
		return m.rss.Fetch(ctx, src)
	case domain.SourceHTML:
		return m.html.Fetch(ctx, src)
	}
	return nil, fmt.Errorf("unknown source type %q", src.Type)
}

var stripPolicy = bluemonday.StrictPolicy()

// cleanText strips HTML markup, decodes entities and collapses whitespace
func cleanText(s string) string {
	stripped := stripPolicy.Sanitize(s)
	decoded := html.UnescapeString(stripped)
	return strings.Join(strings.Fields(decoded), " ")
}
