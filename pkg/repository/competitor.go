package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/umputun/compscout/pkg/domain"
)

// CompetitorRepository handles competitor and source database operations
type CompetitorRepository struct {
	db *sqlx.DB
}

// competitorSQL represents a competitor row
type competitorSQL struct {
	ID        int64     `db:"id"`
	Name      string    `db:"name"`
	Slug      string    `db:"slug"`
	Vertical  string    `db:"vertical"`
	CreatedAt time.Time `db:"created_at"`
}

// sourceSQL represents a source row
type sourceSQL struct {
	ID           int64      `db:"id"`
	CompetitorID int64      `db:"competitor_id"`
	Type         string     `db:"type"`
	Endpoint     string     `db:"endpoint"`
	Selector     string     `db:"selector"`
	LastFetched  *time.Time `db:"last_fetched"`
	Enabled      bool       `db:"enabled"`

	// joined data
	CompetitorName string `db:"competitor_name"`
}

// NewCompetitorRepository creates a new competitor repository
func NewCompetitorRepository(database *sqlx.DB) *CompetitorRepository {
	return &CompetitorRepository{db: database}
}

// EnsureCompetitor inserts a competitor if it does not exist and returns its
// ID. Existing competitors are left untouched, they are immutable once created.
func (r *CompetitorRepository) EnsureCompetitor(ctx context.Context, comp *domain.Competitor) error {
	err := withLockRetry(ctx, func() error {
		_, err := r.db.ExecContext(ctx,
			`INSERT INTO competitors (name, slug, vertical) VALUES (?, ?, ?)
			 ON CONFLICT(name) DO NOTHING`,
			comp.Name, comp.Slug, comp.Vertical)
		return err
	})
	if err != nil {
		return fmt.Errorf("ensure competitor %s: %w", comp.Name, err)
	}

	var row competitorSQL
	if err := r.db.GetContext(ctx, &row, "SELECT * FROM competitors WHERE name = ?", comp.Name); err != nil {
		return fmt.Errorf("get competitor %s: %w", comp.Name, err)
	}
	comp.ID = row.ID
	comp.CreatedAt = row.CreatedAt
	return nil
}

// EnsureSource inserts a source if it does not exist, keyed by endpoint, and
// returns its ID. Selector and activation flag are refreshed on every sync so
// config edits take effect without manual migration.
func (r *CompetitorRepository) EnsureSource(ctx context.Context, src *domain.Source) error {
	err := withLockRetry(ctx, func() error {
		_, err := r.db.ExecContext(ctx,
			`INSERT INTO sources (competitor_id, type, endpoint, selector, enabled) VALUES (?, ?, ?, ?, 1)
			 ON CONFLICT(endpoint) DO UPDATE SET selector = excluded.selector, type = excluded.type`,
			src.CompetitorID, src.Type, src.Endpoint, src.Selector)
		return err
	})
	if err != nil {
		return fmt.Errorf("ensure source %s: %w", src.Endpoint, err)
	}

	var row sourceSQL
	if err := r.db.GetContext(ctx, &row, "SELECT * FROM sources WHERE endpoint = ?", src.Endpoint); err != nil {
		return fmt.Errorf("get source %s: %w", src.Endpoint, err)
	}
	src.ID = row.ID
	src.Enabled = row.Enabled
	src.LastFetched = row.LastFetched
	return nil
}

// GetCompetitors retrieves all competitors ordered by name
func (r *CompetitorRepository) GetCompetitors(ctx context.Context) ([]domain.Competitor, error) {
	var rows []competitorSQL
	if err := r.db.SelectContext(ctx, &rows, "SELECT * FROM competitors ORDER BY name"); err != nil {
		return nil, fmt.Errorf("get competitors: %w", err)
	}

	competitors := make([]domain.Competitor, len(rows))
	for i, row := range rows {
		competitors[i] = domain.Competitor{
			ID:        row.ID,
			Name:      row.Name,
			Slug:      row.Slug,
			Vertical:  row.Vertical,
			CreatedAt: row.CreatedAt,
		}
	}
	return competitors, nil
}

// GetActiveSources retrieves enabled sources with competitor names attached,
// in stable insert order
func (r *CompetitorRepository) GetActiveSources(ctx context.Context) ([]domain.Source, error) {
	query := `
		SELECT s.*, c.name AS competitor_name
		FROM sources s
		JOIN competitors c ON s.competitor_id = c.id
		WHERE s.enabled = 1
		ORDER BY s.id
	`
	var rows []sourceSQL
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("get active sources: %w", err)
	}

	sources := make([]domain.Source, len(rows))
	for i, row := range rows {
		sources[i] = r.toDomainSource(&row)
	}
	return sources, nil
}

// GetSource retrieves a single source by ID
func (r *CompetitorRepository) GetSource(ctx context.Context, id int64) (*domain.Source, error) {
	var row sourceSQL
	query := `
		SELECT s.*, c.name AS competitor_name
		FROM sources s
		JOIN competitors c ON s.competitor_id = c.id
		WHERE s.id = ?
	`
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("source %d not found", id)
		}
		return nil, fmt.Errorf("get source %d: %w", id, err)
	}
	src := r.toDomainSource(&row)
	return &src, nil
}

// UpdateSourceFetched records a successful fetch timestamp
func (r *CompetitorRepository) UpdateSourceFetched(ctx context.Context, sourceID int64) error {
	err := withLockRetry(ctx, func() error {
		_, err := r.db.ExecContext(ctx,
			"UPDATE sources SET last_fetched = datetime('now') WHERE id = ?", sourceID)
		return err
	})
	if err != nil {
		return fmt.Errorf("update source fetched: %w", err)
	}
	return nil
}

// SetSourceEnabled flips the activation flag for a source
func (r *CompetitorRepository) SetSourceEnabled(ctx context.Context, sourceID int64, enabled bool) error {
	err := withLockRetry(ctx, func() error {
		_, err := r.db.ExecContext(ctx, "UPDATE sources SET enabled = ? WHERE id = ?", enabled, sourceID)
		return err
	})
	if err != nil {
		return fmt.Errorf("set source enabled: %w", err)
	}
	return nil
}

// toDomainSource converts sourceSQL to domain.Source
func (r *CompetitorRepository) toDomainSource(row *sourceSQL) domain.Source {
	return domain.Source{
		ID:             row.ID,
		CompetitorID:   row.CompetitorID,
		Type:           domain.SourceType(row.Type),
		Endpoint:       row.Endpoint,
		Selector:       row.Selector,
		LastFetched:    row.LastFetched,
		Enabled:        row.Enabled,
		CompetitorName: row.CompetitorName,
	}
}
