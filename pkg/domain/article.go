package domain

import "time"

// ArticleStatus tracks classification progress of a stored article
type ArticleStatus string

// article classification states
const (
	StatusPending    ArticleStatus = "pending"
	StatusClassified ArticleStatus = "classified"
	StatusFailed     ArticleStatus = "failed"
)

// Article is a stored ingested unit, never mutated after insert except for status
type Article struct {
	ID           int64
	SourceID     int64
	Title        string
	Body         string
	URL          string
	PublishedAt  *time.Time
	Fingerprint  string
	Status       ArticleStatus
	StatusReason string
	FetchedAt    time.Time

	// joined data, populated by queries
	SourceEndpoint string
	CompetitorName string
}

// CandidateArticle is a fetched article before dedup and persistence
type CandidateArticle struct {
	Title       string
	Body        string
	URL         string
	PublishedAt *time.Time
}
