package domain

import "time"

// EventCategory is the strategic event type extracted by the classifier
type EventCategory string

// event categories, "other" is never persisted
const (
	CategoryFeatureLaunch EventCategory = "feature_launch"
	CategoryPricingChange EventCategory = "pricing_change"
	CategoryPartnership   EventCategory = "partnership"
	CategoryOther         EventCategory = "other"
)

// ImpactLevel is the coarse business-priority label attached to an event
type ImpactLevel string

// impact levels
const (
	ImpactHigh   ImpactLevel = "high"
	ImpactMedium ImpactLevel = "medium"
	ImpactLow    ImpactLevel = "low"
)

// ConfidenceThreshold is the gate below which classification results are discarded
const ConfidenceThreshold = 0.5

// Event is a persisted strategic event derived from exactly one article
type Event struct {
	ID         int64
	ArticleID  int64
	Category   EventCategory
	Confidence float64
	Impact     ImpactLevel
	Entities   []string
	Summary    string
	CreatedAt  time.Time

	// joined data, populated by queries
	ArticleTitle   string
	ArticleURL     string
	CompetitorName string
}

// Classification is the validated payload returned by the LLM classifier
type Classification struct {
	Category   EventCategory `json:"category"`
	Confidence float64       `json:"confidence"`
	Impact     ImpactLevel   `json:"impact_level"`
	Entities   []string      `json:"entities"`
	Summary    string        `json:"summary"`
}

// Actionable reports whether the classification clears the confidence gate
// and carries a persistable category
func (c *Classification) Actionable() bool {
	return c.Confidence >= ConfidenceThreshold && c.Category != CategoryOther
}

// ValidCategory reports whether the category is one of the fixed enum values
func ValidCategory(c EventCategory) bool {
	switch c {
	case CategoryFeatureLaunch, CategoryPricingChange, CategoryPartnership, CategoryOther:
		return true
	}
	return false
}

// ValidImpact reports whether the impact level is one of the fixed enum values
func ValidImpact(i ImpactLevel) bool {
	switch i {
	case ImpactHigh, ImpactMedium, ImpactLow:
		return true
	}
	return false
}

// CacheEntry is a stored classification result keyed by article fingerprint
type CacheEntry struct {
	Fingerprint string
	Result      Classification
	CachedAt    time.Time
}

// EventFilter represents filtering criteria for event queries
type EventFilter struct {
	Competitor string
	Category   EventCategory
	Since      *time.Time
	Until      *time.Time
	Limit      int
}

// EventStats aggregates persisted events for the reporting boundary
type EventStats struct {
	Total      int                   `json:"total"`
	ByCategory map[EventCategory]int `json:"by_category"`
}
