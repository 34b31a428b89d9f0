package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/markusmobius/go-trafilatura"

	"github.com/umputun/compscout/pkg/config"
	"github.com/umputun/compscout/pkg/domain"
)

// HTMLFetcher extracts candidate articles from HTML listing pages using
// per-source CSS selectors. Blocks that carry only a teaser are followed to
// the linked article page and extracted with trafilatura.
type HTMLFetcher struct {
	client  *http.Client
	limiter *Limiter
	cfg     config.FetchConfig
}

// NewHTMLFetcher creates a new HTML fetcher
func NewHTMLFetcher(client *http.Client, cfg config.FetchConfig, limiter *Limiter) *HTMLFetcher {
	return &HTMLFetcher{client: client, limiter: limiter, cfg: cfg}
}

// Fetch retrieves the listing page and applies the source selector to locate
// article blocks
func (f *HTMLFetcher) Fetch(ctx context.Context, src domain.Source) ([]domain.CandidateArticle, error) {
	if err := f.limiter.Acquire(ctx, src.Endpoint); err != nil {
		return nil, err
	}

	doc, err := f.fetchDocument(ctx, src.Endpoint)
	if err != nil {
		return nil, err
	}

	base, err := url.Parse(src.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint %s: %w", src.Endpoint, err)
	}

	var articles []domain.CandidateArticle
	seen := map[string]struct{}{}

	doc.Find(src.Selector).EachWithBreak(func(_ int, block *goquery.Selection) bool {
		if len(articles) >= f.cfg.MaxItemsPerFeed {
			return false
		}

		candidate := f.extractBlock(block, base)
		if candidate.URL == "" && candidate.Title == "" {
			return true
		}
		if _, ok := seen[candidate.URL]; ok {
			return true
		}
		seen[candidate.URL] = struct{}{}

		// teaser-only blocks get the full article page
		if len(candidate.Body) < f.cfg.MinContentLength && candidate.URL != "" {
			if text, err := f.extractPage(ctx, candidate.URL); err == nil {
				candidate.Body = text
			} else if errors.Is(err, domain.ErrBudgetExceeded) {
				return false // budget gone, stop walking blocks
			}
		}

		if len(candidate.Body) < f.cfg.MinContentLength {
			return true
		}

		articles = append(articles, candidate)
		return true
	})

	return articles, nil
}

// extractBlock pulls title, link, body and publish date out of one selected block
func (f *HTMLFetcher) extractBlock(block *goquery.Selection, base *url.URL) domain.CandidateArticle {
	candidate := domain.CandidateArticle{}

	// title: first heading, falling back to the link text
	heading := block.Find("h1, h2, h3").First()
	if heading.Length() > 0 {
		candidate.Title = cleanText(heading.Text())
	}

	link := block.Find("a[href]").First()
	if href, ok := link.Attr("href"); ok {
		if resolved, err := base.Parse(strings.TrimSpace(href)); err == nil {
			candidate.URL = resolved.String()
		}
	}
	if candidate.Title == "" {
		candidate.Title = cleanText(link.Text())
	}

	candidate.Body = cleanText(block.Text())

	// <time datetime="..."> is the only date format worth trusting on listings
	if dt, ok := block.Find("time[datetime]").First().Attr("datetime"); ok {
		for _, layout := range []string{time.RFC3339, "2006-01-02"} {
			if ts, err := time.Parse(layout, strings.TrimSpace(dt)); err == nil {
				candidate.PublishedAt = &ts
				break
			}
		}
	}

	return candidate
}

// extractPage retrieves the article page and extracts its text content
func (f *HTMLFetcher) extractPage(ctx context.Context, urlStr string) (string, error) {
	if err := f.limiter.Acquire(ctx, urlStr); err != nil {
		return "", err
	}

	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return "", fmt.Errorf("parse URL: %w", err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return "", fmt.Errorf("invalid URL: %s", urlStr)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	addBrowserHeaders(req, f.cfg.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch URL %s: %w", urlStr, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code %d for URL %s", resp.StatusCode, urlStr)
	}

	opts := trafilatura.Options{
		EnableFallback:  true,
		ExcludeComments: true,
		Deduplicate:     true,
		OriginalURL:     parsedURL,
	}

	result, err := trafilatura.Extract(resp.Body, opts)
	if err != nil {
		return "", fmt.Errorf("extract content from %s: %w", urlStr, err)
	}
	if result == nil || result.ContentText == "" {
		return "", fmt.Errorf("no text content extracted from %s", urlStr)
	}

	return strings.TrimSpace(result.ContentText), nil
}

// fetchDocument retrieves a URL and parses it into a goquery document
func (f *HTMLFetcher) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	addBrowserHeaders(req, f.cfg.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	return doc, nil
}
