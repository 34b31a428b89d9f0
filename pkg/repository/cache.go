package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/umputun/compscout/pkg/domain"
)

// CacheRepository handles classification cache database operations
type CacheRepository struct {
	db *sqlx.DB
}

// cacheSQL represents a classification cache row
type cacheSQL struct {
	Fingerprint string    `db:"fingerprint"`
	Payload     string    `db:"payload"`
	CachedAt    time.Time `db:"cached_at"`
}

// NewCacheRepository creates a new cache repository
func NewCacheRepository(database *sqlx.DB) *CacheRepository {
	return &CacheRepository{db: database}
}

// Get retrieves a cached classification by fingerprint, nil when absent
func (r *CacheRepository) Get(ctx context.Context, fingerprint string) (*domain.CacheEntry, error) {
	var row cacheSQL
	err := r.db.GetContext(ctx, &row,
		"SELECT * FROM classification_cache WHERE fingerprint = ?", fingerprint)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cache entry: %w", err)
	}

	entry := &domain.CacheEntry{Fingerprint: row.Fingerprint, CachedAt: row.CachedAt}
	if err := json.Unmarshal([]byte(row.Payload), &entry.Result); err != nil {
		return nil, fmt.Errorf("decode cache entry %s: %w", fingerprint, err)
	}
	return entry, nil
}

// Put stores a validated classification. Entries are write-once, a concurrent
// writer landing first wins and later writes are silently ignored.
func (r *CacheRepository) Put(ctx context.Context, fingerprint string, result *domain.Classification) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}

	err = withLockRetry(ctx, func() error {
		_, execErr := r.db.ExecContext(ctx,
			`INSERT INTO classification_cache (fingerprint, payload) VALUES (?, ?)
			 ON CONFLICT(fingerprint) DO NOTHING`,
			fingerprint, string(payload))
		return execErr
	})
	if err != nil {
		return fmt.Errorf("put cache entry: %w", err)
	}
	return nil
}

// Size returns the number of cached classifications
func (r *CacheRepository) Size(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM classification_cache"); err != nil {
		return 0, fmt.Errorf("cache size: %w", err)
	}
	return count, nil
}
