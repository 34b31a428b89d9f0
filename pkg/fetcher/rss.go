package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/mmcdole/gofeed"

	"github.com/umputun/compscout/pkg/config"
	"github.com/umputun/compscout/pkg/domain"
)

// RSSFetcher parses RSS/Atom feeds into candidate articles
type RSSFetcher struct {
	client  *http.Client
	limiter *Limiter
	cfg     config.FetchConfig
}

// NewRSSFetcher creates a new RSS fetcher
func NewRSSFetcher(client *http.Client, cfg config.FetchConfig, limiter *Limiter) *RSSFetcher {
	return &RSSFetcher{client: client, limiter: limiter, cfg: cfg}
}

// Fetch retrieves the feed document and converts its entries. Entries with a
// body shorter than the configured minimum are dropped, the rest are capped
// at max_items_per_feed.
func (f *RSSFetcher) Fetch(ctx context.Context, src domain.Source) ([]domain.CandidateArticle, error) {
	if err := f.limiter.Acquire(ctx, src.Endpoint); err != nil {
		return nil, err
	}

	body, err := f.fetch(ctx, src.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	defer body.Close()

	feed, err := gofeed.NewParser().Parse(body)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", src.Endpoint, err)
	}

	articles := make([]domain.CandidateArticle, 0, len(feed.Items))
	for _, item := range feed.Items {
		if len(articles) >= f.cfg.MaxItemsPerFeed {
			break
		}

		// prefer full content over the summary
		content := item.Content
		if content == "" {
			content = item.Description
		}
		content = cleanText(content)
		if len(content) < f.cfg.MinContentLength {
			continue
		}

		candidate := domain.CandidateArticle{
			Title: cleanText(item.Title),
			Body:  content,
			URL:   item.Link,
		}
		if candidate.Title == "" {
			candidate.Title = "Untitled"
		}
		if candidate.URL == "" {
			candidate.URL = src.Endpoint
		}

		if item.PublishedParsed != nil {
			candidate.PublishedAt = item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			candidate.PublishedAt = item.UpdatedParsed
		}

		articles = append(articles, candidate)
	}

	return articles, nil
}

// fetch retrieves content from a URL
func (f *RSSFetcher) fetch(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch URL: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return resp.Body, nil
}
