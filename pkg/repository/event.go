package repository

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/umputun/compscout/pkg/domain"
)

// EventRepository handles event database operations
type EventRepository struct {
	db *sqlx.DB
}

// eventSQL represents an event row
type eventSQL struct {
	ID         int64       `db:"id"`
	ArticleID  int64       `db:"article_id"`
	Category   string      `db:"category"`
	Confidence float64     `db:"confidence"`
	Impact     string      `db:"impact"`
	Entities   entitiesSQL `db:"entities"`
	Summary    string      `db:"summary"`
	CreatedAt  time.Time   `db:"created_at"`

	// joined data
	ArticleTitle   string `db:"article_title"`
	ArticleURL     string `db:"article_url"`
	CompetitorName string `db:"competitor_name"`
}

// entitiesSQL handles JSON serialization of entity lists in SQLite
type entitiesSQL []string

// Value implements driver.Valuer
func (e entitiesSQL) Value() (driver.Value, error) {
	if e == nil {
		return "[]", nil
	}
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal entities: %w", err)
	}
	return string(data), nil
}

// Scan implements sql.Scanner
func (e *entitiesSQL) Scan(value any) error {
	if value == nil {
		*e = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return fmt.Errorf("unsupported type for entities: %T", value)
	}
	if err := json.Unmarshal(data, e); err != nil {
		return fmt.Errorf("unmarshal entities: %w", err)
	}
	return nil
}

// NewEventRepository creates a new event repository
func NewEventRepository(database *sqlx.DB) *EventRepository {
	return &EventRepository{db: database}
}

// Insert stores an actionable event and marks its article classified in one
// transaction, so an event row never exists without the matching status flip.
// Rejects payloads that fail the confidence gate or carry out-of-enum values.
func (r *EventRepository) Insert(ctx context.Context, event *domain.Event) error {
	if err := r.validate(event); err != nil {
		return err
	}

	err := withLockRetry(ctx, func() error {
		tx, txErr := r.db.BeginTxx(ctx, nil)
		if txErr != nil {
			return txErr
		}
		defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

		res, txErr := tx.ExecContext(ctx,
			`INSERT INTO events (article_id, category, confidence, impact, entities, summary)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			event.ArticleID, event.Category, event.Confidence, event.Impact,
			entitiesSQL(event.Entities), event.Summary)
		if txErr != nil {
			return txErr
		}
		id, txErr := res.LastInsertId()
		if txErr != nil {
			return txErr
		}

		if _, txErr = tx.ExecContext(ctx,
			"UPDATE articles SET status = ?, status_reason = '' WHERE id = ?",
			domain.StatusClassified, event.ArticleID); txErr != nil {
			return txErr
		}

		if txErr = tx.Commit(); txErr != nil {
			return txErr
		}
		event.ID = id
		return nil
	})
	if err != nil {
		return fmt.Errorf("insert event for article %d: %w", event.ArticleID, err)
	}
	return nil
}

// validate enforces the persistence contract for events
func (r *EventRepository) validate(event *domain.Event) error {
	switch {
	case event.ArticleID == 0:
		return fmt.Errorf("event without article: %w", domain.ErrValidation)
	case event.Category == domain.CategoryOther:
		return fmt.Errorf("category %q is not persistable: %w", event.Category, domain.ErrValidation)
	case !domain.ValidCategory(event.Category):
		return fmt.Errorf("unknown category %q: %w", event.Category, domain.ErrValidation)
	case !domain.ValidImpact(event.Impact):
		return fmt.Errorf("unknown impact %q: %w", event.Impact, domain.ErrValidation)
	case event.Confidence < domain.ConfidenceThreshold || event.Confidence > 1:
		return fmt.Errorf("confidence %.3f out of range: %w", event.Confidence, domain.ErrValidation)
	}
	return nil
}

// List retrieves events matching the filter, newest first
func (r *EventRepository) List(ctx context.Context, filter domain.EventFilter) ([]domain.Event, error) {
	var conds []string
	var args []any

	if filter.Competitor != "" {
		conds = append(conds, "c.slug = ?")
		args = append(args, filter.Competitor)
	}
	if filter.Category != "" {
		conds = append(conds, "e.category = ?")
		args = append(args, filter.Category)
	}
	if filter.Since != nil {
		conds = append(conds, "e.created_at >= ?")
		args = append(args, filter.Since)
	}
	if filter.Until != nil {
		conds = append(conds, "e.created_at <= ?")
		args = append(args, filter.Until)
	}

	query := `
		SELECT e.*, a.title AS article_title, a.url AS article_url, c.name AS competitor_name
		FROM events e
		JOIN articles a ON e.article_id = a.id
		JOIN sources s ON a.source_id = s.id
		JOIN competitors c ON s.competitor_id = c.id
	`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY e.created_at DESC, e.id DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += " LIMIT ?"
	args = append(args, limit)

	var rows []eventSQL
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	events := make([]domain.Event, len(rows))
	for i, row := range rows {
		events[i] = r.toDomainEvent(&row)
	}
	return events, nil
}

// Stats aggregates event counts overall and per category
func (r *EventRepository) Stats(ctx context.Context) (*domain.EventStats, error) {
	var rows []struct {
		Category string `db:"category"`
		Count    int    `db:"count"`
	}
	if err := r.db.SelectContext(ctx, &rows,
		"SELECT category, COUNT(*) AS count FROM events GROUP BY category"); err != nil {
		return nil, fmt.Errorf("event stats: %w", err)
	}

	stats := &domain.EventStats{ByCategory: make(map[domain.EventCategory]int, len(rows))}
	for _, row := range rows {
		stats.ByCategory[domain.EventCategory(row.Category)] = row.Count
		stats.Total += row.Count
	}
	return stats, nil
}

// toDomainEvent converts eventSQL to domain.Event
func (r *EventRepository) toDomainEvent(row *eventSQL) domain.Event {
	return domain.Event{
		ID:             row.ID,
		ArticleID:      row.ArticleID,
		Category:       domain.EventCategory(row.Category),
		Confidence:     row.Confidence,
		Impact:         domain.ImpactLevel(row.Impact),
		Entities:       row.Entities,
		Summary:        row.Summary,
		CreatedAt:      row.CreatedAt,
		ArticleTitle:   row.ArticleTitle,
		ArticleURL:     row.ArticleURL,
		CompetitorName: row.CompetitorName,
	}
}
