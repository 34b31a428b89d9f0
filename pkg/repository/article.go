package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/umputun/compscout/pkg/domain"
)

// ArticleRepository handles article database operations
type ArticleRepository struct {
	db *sqlx.DB
}

// articleSQL represents an article row
type articleSQL struct {
	ID           int64      `db:"id"`
	SourceID     int64      `db:"source_id"`
	Fingerprint  string     `db:"fingerprint"`
	Title        string     `db:"title"`
	Body         string     `db:"body"`
	URL          string     `db:"url"`
	PublishedAt  *time.Time `db:"published_at"`
	FetchedAt    time.Time  `db:"fetched_at"`
	Status       string     `db:"status"`
	StatusReason string     `db:"status_reason"`

	// joined data
	SourceEndpoint string `db:"source_endpoint"`
	CompetitorName string `db:"competitor_name"`
}

// NewArticleRepository creates a new article repository
func NewArticleRepository(database *sqlx.DB) *ArticleRepository {
	return &ArticleRepository{db: database}
}

// InsertIfNew stores an article unless one with the same fingerprint already
// exists. The insert-or-ignore is a single statement, so concurrent writers
// racing on the same fingerprint end up with exactly one stored copy.
// Returns the article ID and whether this call inserted it.
func (r *ArticleRepository) InsertIfNew(ctx context.Context, article *domain.Article) (inserted bool, err error) {
	err = withLockRetry(ctx, func() error {
		res, execErr := r.db.ExecContext(ctx,
			`INSERT INTO articles (source_id, fingerprint, title, body, url, published_at, status)
			 VALUES (?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(fingerprint) DO NOTHING`,
			article.SourceID, article.Fingerprint, article.Title, article.Body,
			article.URL, article.PublishedAt, domain.StatusPending)
		if execErr != nil {
			return execErr
		}
		affected, execErr := res.RowsAffected()
		if execErr != nil {
			return execErr
		}
		inserted = affected > 0
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("insert article: %w", err)
	}

	var row articleSQL
	if err := r.db.GetContext(ctx, &row,
		"SELECT * FROM articles WHERE fingerprint = ?", article.Fingerprint); err != nil {
		return false, fmt.Errorf("get article by fingerprint: %w", err)
	}
	article.ID = row.ID
	article.FetchedAt = row.FetchedAt
	article.Status = domain.ArticleStatus(row.Status)
	return inserted, nil
}

// GetByID retrieves a single article
func (r *ArticleRepository) GetByID(ctx context.Context, id int64) (*domain.Article, error) {
	var row articleSQL
	query := `
		SELECT a.*, s.endpoint AS source_endpoint, c.name AS competitor_name
		FROM articles a
		JOIN sources s ON a.source_id = s.id
		JOIN competitors c ON s.competitor_id = c.id
		WHERE a.id = ?
	`
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		return nil, fmt.Errorf("get article %d: %w", id, err)
	}
	article := r.toDomainArticle(&row)
	return &article, nil
}

// ListUnclassified returns pending articles, oldest first, capped at limit.
// With includeFailed set, previously failed articles are picked up again.
func (r *ArticleRepository) ListUnclassified(ctx context.Context, limit int, includeFailed bool) ([]domain.Article, error) {
	statuses := []string{string(domain.StatusPending)}
	if includeFailed {
		statuses = append(statuses, string(domain.StatusFailed))
	}

	query, args, err := sqlx.In(`
		SELECT a.*, s.endpoint AS source_endpoint, c.name AS competitor_name
		FROM articles a
		JOIN sources s ON a.source_id = s.id
		JOIN competitors c ON s.competitor_id = c.id
		WHERE a.status IN (?)
		ORDER BY a.fetched_at, a.id
		LIMIT ?
	`, statuses, limit)
	if err != nil {
		return nil, fmt.Errorf("build unclassified query: %w", err)
	}

	var rows []articleSQL
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list unclassified: %w", err)
	}

	articles := make([]domain.Article, len(rows))
	for i, row := range rows {
		articles[i] = r.toDomainArticle(&row)
	}
	return articles, nil
}

// MarkClassified transitions an article to the classified state. Called for
// below-threshold and "other" outcomes where no event is stored; the
// event-producing path sets the status inside the event insert transaction.
func (r *ArticleRepository) MarkClassified(ctx context.Context, articleID int64) error {
	err := withLockRetry(ctx, func() error {
		_, err := r.db.ExecContext(ctx,
			"UPDATE articles SET status = ?, status_reason = '' WHERE id = ?",
			domain.StatusClassified, articleID)
		return err
	})
	if err != nil {
		return fmt.Errorf("mark article classified: %w", err)
	}
	return nil
}

// MarkFailed records a classification failure with its reason
func (r *ArticleRepository) MarkFailed(ctx context.Context, articleID int64, reason string) error {
	err := withLockRetry(ctx, func() error {
		_, err := r.db.ExecContext(ctx,
			"UPDATE articles SET status = ?, status_reason = ? WHERE id = ?",
			domain.StatusFailed, reason, articleID)
		return err
	})
	if err != nil {
		return fmt.Errorf("mark article failed: %w", err)
	}
	return nil
}

// ListByCompetitor returns articles for a competitor slug, newest first
func (r *ArticleRepository) ListByCompetitor(ctx context.Context, slug string, limit int) ([]domain.Article, error) {
	query := `
		SELECT a.*, s.endpoint AS source_endpoint, c.name AS competitor_name
		FROM articles a
		JOIN sources s ON a.source_id = s.id
		JOIN competitors c ON s.competitor_id = c.id
		WHERE c.slug = ?
		ORDER BY a.fetched_at DESC, a.id DESC
		LIMIT ?
	`
	var rows []articleSQL
	if err := r.db.SelectContext(ctx, &rows, query, slug, limit); err != nil {
		return nil, fmt.Errorf("list articles for %s: %w", slug, err)
	}

	articles := make([]domain.Article, len(rows))
	for i, row := range rows {
		articles[i] = r.toDomainArticle(&row)
	}
	return articles, nil
}

// CountByStatus returns article counts keyed by status
func (r *ArticleRepository) CountByStatus(ctx context.Context) (map[domain.ArticleStatus]int, error) {
	var rows []struct {
		Status string `db:"status"`
		Count  int    `db:"count"`
	}
	if err := r.db.SelectContext(ctx, &rows,
		"SELECT status, COUNT(*) AS count FROM articles GROUP BY status"); err != nil {
		return nil, fmt.Errorf("count articles by status: %w", err)
	}

	counts := make(map[domain.ArticleStatus]int, len(rows))
	for _, row := range rows {
		counts[domain.ArticleStatus(row.Status)] = row.Count
	}
	return counts, nil
}

// toDomainArticle converts articleSQL to domain.Article
func (r *ArticleRepository) toDomainArticle(row *articleSQL) domain.Article {
	return domain.Article{
		ID:             row.ID,
		SourceID:       row.SourceID,
		Fingerprint:    row.Fingerprint,
		Title:          row.Title,
		Body:           row.Body,
		URL:            row.URL,
		PublishedAt:    row.PublishedAt,
		FetchedAt:      row.FetchedAt,
		Status:         domain.ArticleStatus(row.Status),
		StatusReason:   row.StatusReason,
		SourceEndpoint: row.SourceEndpoint,
		CompetitorName: row.CompetitorName,
	}
}
