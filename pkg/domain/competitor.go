package domain

import "time"

// Competitor represents a tracked company, immutable once created
type Competitor struct {
	ID        int64
	Name      string
	Slug      string
	Vertical  string
	CreatedAt time.Time
}

// SourceType identifies how a source endpoint is fetched
type SourceType string

// supported source types
const (
	SourceRSS  SourceType = "rss"
	SourceHTML SourceType = "html"
)

// Source represents a single fetch endpoint owned by a competitor
type Source struct {
	ID           int64
	CompetitorID int64
	Type         SourceType
	Endpoint     string
	Selector     string // CSS selector for article blocks, html sources only
	LastFetched  *time.Time
	Enabled      bool

	// joined data, populated by queries
	CompetitorName string
}
