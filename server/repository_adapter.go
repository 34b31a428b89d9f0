package server

import (
	"context"

	"github.com/umputun/compscout/pkg/domain"
	"github.com/umputun/compscout/pkg/repository"
)

// RepositoryAdapter bridges the repository layer to the server Store interface
type RepositoryAdapter struct {
	repos *repository.Repositories
}

// NewRepositoryAdapter creates an adapter over the shared repositories
func NewRepositoryAdapter(repos *repository.Repositories) *RepositoryAdapter {
	return &RepositoryAdapter{repos: repos}
}

// GetCompetitors retrieves all tracked competitors
func (a *RepositoryAdapter) GetCompetitors(ctx context.Context) ([]domain.Competitor, error) {
	return a.repos.Competitor.GetCompetitors(ctx)
}

// ListArticles retrieves articles for one competitor, newest first
func (a *RepositoryAdapter) ListArticles(ctx context.Context, competitorSlug string, limit int) ([]domain.Article, error) {
	return a.repos.Article.ListByCompetitor(ctx, competitorSlug, limit)
}

// CountArticles returns article counts grouped by status
func (a *RepositoryAdapter) CountArticles(ctx context.Context) (map[domain.ArticleStatus]int, error) {
	return a.repos.Article.CountByStatus(ctx)
}

// ListEvents retrieves events matching the filter
func (a *RepositoryAdapter) ListEvents(ctx context.Context, filter domain.EventFilter) ([]domain.Event, error) {
	return a.repos.Event.List(ctx, filter)
}

// EventStats returns aggregate event counts
func (a *RepositoryAdapter) EventStats(ctx context.Context) (*domain.EventStats, error) {
	return a.repos.Event.Stats(ctx)
}
