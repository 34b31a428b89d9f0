package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/compscout/pkg/domain"
)

func setupTestRepos(t *testing.T) *Repositories {
	t.Helper()
	cfg := Config{
		DSN:             ":memory:",
		MaxOpenConns:    1,
		MaxIdleConns:    1,
		ConnMaxLifetime: 30 * time.Second,
	}
	repos, err := NewRepositories(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, repos.Close())
	})
	return repos
}

// seedSource creates a competitor with one source and returns the source ID
func seedSource(t *testing.T, repos *Repositories, name string) int64 {
	t.Helper()
	comp := &domain.Competitor{Name: name, Slug: name, Vertical: "analytics"}
	require.NoError(t, repos.Competitor.EnsureCompetitor(context.Background(), comp))

	src := &domain.Source{
		CompetitorID: comp.ID,
		Type:         domain.SourceRSS,
		Endpoint:     fmt.Sprintf("https://%s.example.com/feed.xml", name),
	}
	require.NoError(t, repos.Competitor.EnsureSource(context.Background(), src))
	return src.ID
}

func TestRepositories_Integration(t *testing.T) {
	repos := setupTestRepos(t)
	require.NoError(t, repos.Ping(context.Background()))

	t.Run("competitor and source operations", func(t *testing.T) {
		comp := &domain.Competitor{Name: "Acme Analytics", Slug: "acme-analytics", Vertical: "analytics"}
		err := repos.Competitor.EnsureCompetitor(context.Background(), comp)
		require.NoError(t, err)
		assert.NotZero(t, comp.ID)
		assert.False(t, comp.CreatedAt.IsZero())

		// ensure is idempotent and keeps the same ID
		again := &domain.Competitor{Name: "Acme Analytics", Slug: "acme-analytics"}
		require.NoError(t, repos.Competitor.EnsureCompetitor(context.Background(), again))
		assert.Equal(t, comp.ID, again.ID)

		src := &domain.Source{
			CompetitorID: comp.ID,
			Type:         domain.SourceRSS,
			Endpoint:     "https://acme.example.com/blog/feed.xml",
		}
		require.NoError(t, repos.Competitor.EnsureSource(context.Background(), src))
		assert.NotZero(t, src.ID)
		assert.True(t, src.Enabled)

		// re-sync with a changed selector updates in place
		changed := &domain.Source{
			CompetitorID: comp.ID,
			Type:         domain.SourceHTML,
			Endpoint:     "https://acme.example.com/blog/feed.xml",
			Selector:     "article.post",
		}
		require.NoError(t, repos.Competitor.EnsureSource(context.Background(), changed))
		assert.Equal(t, src.ID, changed.ID)

		got, err := repos.Competitor.GetSource(context.Background(), src.ID)
		require.NoError(t, err)
		assert.Equal(t, "article.post", got.Selector)
		assert.Equal(t, domain.SourceHTML, got.Type)
		assert.Equal(t, "Acme Analytics", got.CompetitorName)

		sources, err := repos.Competitor.GetActiveSources(context.Background())
		require.NoError(t, err)
		require.Len(t, sources, 1)
		assert.Nil(t, sources[0].LastFetched)

		require.NoError(t, repos.Competitor.UpdateSourceFetched(context.Background(), src.ID))
		got, err = repos.Competitor.GetSource(context.Background(), src.ID)
		require.NoError(t, err)
		assert.NotNil(t, got.LastFetched)

		// disabled sources drop out of the active list
		require.NoError(t, repos.Competitor.SetSourceEnabled(context.Background(), src.ID, false))
		sources, err = repos.Competitor.GetActiveSources(context.Background())
		require.NoError(t, err)
		assert.Empty(t, sources)

		competitors, err := repos.Competitor.GetCompetitors(context.Background())
		require.NoError(t, err)
		assert.Len(t, competitors, 1)
	})

	t.Run("article dedup by fingerprint", func(t *testing.T) {
		sourceID := seedSource(t, repos, "dedup-co")

		article := &domain.Article{
			SourceID:    sourceID,
			Fingerprint: "fp-dedup-1",
			Title:       "Acme launches widgets",
			Body:        "Full announcement text",
			URL:         "https://dedup-co.example.com/post/1",
		}
		inserted, err := repos.Article.InsertIfNew(context.Background(), article)
		require.NoError(t, err)
		assert.True(t, inserted)
		assert.NotZero(t, article.ID)
		assert.Equal(t, domain.StatusPending, article.Status)

		// same fingerprint from a different URL is a duplicate
		dup := &domain.Article{
			SourceID:    sourceID,
			Fingerprint: "fp-dedup-1",
			Title:       "Acme launches widgets",
			Body:        "Full announcement text",
			URL:         "https://mirror.example.com/post/1",
		}
		inserted, err = repos.Article.InsertIfNew(context.Background(), dup)
		require.NoError(t, err)
		assert.False(t, inserted)
		assert.Equal(t, article.ID, dup.ID, "duplicate resolves to the stored article")

		// stored copy keeps the first URL
		stored, err := repos.Article.GetByID(context.Background(), article.ID)
		require.NoError(t, err)
		assert.Equal(t, "https://dedup-co.example.com/post/1", stored.URL)
		assert.Equal(t, "dedup-co", stored.CompetitorName)
	})

	t.Run("unclassified listing order and failed retry", func(t *testing.T) {
		sourceID := seedSource(t, repos, "queue-co")

		var ids []int64
		for i := 0; i < 3; i++ {
			a := &domain.Article{
				SourceID:    sourceID,
				Fingerprint: fmt.Sprintf("fp-queue-%d", i),
				Title:       fmt.Sprintf("post %d", i),
				URL:         fmt.Sprintf("https://queue-co.example.com/%d", i),
			}
			_, err := repos.Article.InsertIfNew(context.Background(), a)
			require.NoError(t, err)
			ids = append(ids, a.ID)
		}

		pending, err := repos.Article.ListUnclassified(context.Background(), 10, false)
		require.NoError(t, err)
		require.Len(t, pending, 3)
		assert.Equal(t, ids[0], pending[0].ID, "oldest first")

		// limit respected
		pending, err = repos.Article.ListUnclassified(context.Background(), 2, false)
		require.NoError(t, err)
		assert.Len(t, pending, 2)

		require.NoError(t, repos.Article.MarkFailed(context.Background(), ids[0], "llm timeout"))
		require.NoError(t, repos.Article.MarkClassified(context.Background(), ids[1]))

		pending, err = repos.Article.ListUnclassified(context.Background(), 10, false)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, ids[2], pending[0].ID)

		withFailed, err := repos.Article.ListUnclassified(context.Background(), 10, true)
		require.NoError(t, err)
		assert.Len(t, withFailed, 2)

		failed, err := repos.Article.GetByID(context.Background(), ids[0])
		require.NoError(t, err)
		assert.Equal(t, domain.StatusFailed, failed.Status)
		assert.Equal(t, "llm timeout", failed.StatusReason)

		counts, err := repos.Article.CountByStatus(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, counts[domain.StatusFailed])
	})

	t.Run("event insert and listing", func(t *testing.T) {
		sourceID := seedSource(t, repos, "event-co")
		article := &domain.Article{
			SourceID:    sourceID,
			Fingerprint: "fp-event-1",
			Title:       "Acme ships SSO",
			URL:         "https://event-co.example.com/sso",
		}
		_, err := repos.Article.InsertIfNew(context.Background(), article)
		require.NoError(t, err)

		event := &domain.Event{
			ArticleID:  article.ID,
			Category:   domain.CategoryFeatureLaunch,
			Confidence: 0.92,
			Impact:     domain.ImpactHigh,
			Entities:   []string{"Acme", "SSO"},
			Summary:    "Acme shipped single sign-on for enterprise plans",
		}
		require.NoError(t, repos.Event.Insert(context.Background(), event))
		assert.NotZero(t, event.ID)

		// article flipped to classified in the same transaction
		stored, err := repos.Article.GetByID(context.Background(), article.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusClassified, stored.Status)

		events, err := repos.Event.List(context.Background(), domain.EventFilter{Competitor: "event-co"})
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, []string{"Acme", "SSO"}, events[0].Entities)
		assert.Equal(t, "Acme ships SSO", events[0].ArticleTitle)
		assert.Equal(t, "event-co", events[0].CompetitorName)

		// category filter
		events, err = repos.Event.List(context.Background(), domain.EventFilter{Category: domain.CategoryPricingChange})
		require.NoError(t, err)
		assert.Empty(t, events)

		stats, err := repos.Event.Stats(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, stats.Total)
		assert.Equal(t, 1, stats.ByCategory[domain.CategoryFeatureLaunch])
	})
}

func TestEventRepository_InsertValidation(t *testing.T) {
	repos := setupTestRepos(t)
	sourceID := seedSource(t, repos, "gate-co")

	newArticle := func(t *testing.T, fp string) int64 {
		t.Helper()
		a := &domain.Article{
			SourceID:    sourceID,
			Fingerprint: fp,
			Title:       "t",
			URL:         "https://gate-co.example.com/" + fp,
		}
		_, err := repos.Article.InsertIfNew(context.Background(), a)
		require.NoError(t, err)
		return a.ID
	}

	t.Run("confidence exactly at threshold persists", func(t *testing.T) {
		event := &domain.Event{
			ArticleID:  newArticle(t, "fp-gate-at"),
			Category:   domain.CategoryPartnership,
			Confidence: 0.5,
			Impact:     domain.ImpactLow,
		}
		require.NoError(t, repos.Event.Insert(context.Background(), event))
	})

	t.Run("confidence just below threshold rejected", func(t *testing.T) {
		event := &domain.Event{
			ArticleID:  newArticle(t, "fp-gate-below"),
			Category:   domain.CategoryPartnership,
			Confidence: 0.49999,
			Impact:     domain.ImpactLow,
		}
		err := repos.Event.Insert(context.Background(), event)
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("category other rejected", func(t *testing.T) {
		event := &domain.Event{
			ArticleID:  newArticle(t, "fp-gate-other"),
			Category:   domain.CategoryOther,
			Confidence: 0.9,
			Impact:     domain.ImpactLow,
		}
		err := repos.Event.Insert(context.Background(), event)
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("unknown impact rejected", func(t *testing.T) {
		event := &domain.Event{
			ArticleID:  newArticle(t, "fp-gate-impact"),
			Category:   domain.CategoryFeatureLaunch,
			Confidence: 0.9,
			Impact:     "critical",
		}
		err := repos.Event.Insert(context.Background(), event)
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("second event for same article rejected", func(t *testing.T) {
		articleID := newArticle(t, "fp-gate-uniq")
		event := &domain.Event{
			ArticleID:  articleID,
			Category:   domain.CategoryFeatureLaunch,
			Confidence: 0.8,
			Impact:     domain.ImpactMedium,
		}
		require.NoError(t, repos.Event.Insert(context.Background(), event))

		dup := &domain.Event{
			ArticleID:  articleID,
			Category:   domain.CategoryPricingChange,
			Confidence: 0.8,
			Impact:     domain.ImpactMedium,
		}
		assert.Error(t, repos.Event.Insert(context.Background(), dup))
	})
}

func TestCacheRepository_WriteOnce(t *testing.T) {
	repos := setupTestRepos(t)

	t.Run("miss returns nil without error", func(t *testing.T) {
		entry, err := repos.Cache.Get(context.Background(), "fp-missing")
		require.NoError(t, err)
		assert.Nil(t, entry)
	})

	t.Run("put then get round-trips", func(t *testing.T) {
		result := &domain.Classification{
			Category:   domain.CategoryPricingChange,
			Confidence: 0.77,
			Impact:     domain.ImpactMedium,
			Entities:   []string{"Acme"},
			Summary:    "Acme raised enterprise prices",
		}
		require.NoError(t, repos.Cache.Put(context.Background(), "fp-cache-1", result))

		entry, err := repos.Cache.Get(context.Background(), "fp-cache-1")
		require.NoError(t, err)
		require.NotNil(t, entry)
		assert.Equal(t, *result, entry.Result)
		assert.False(t, entry.CachedAt.IsZero())
	})

	t.Run("first write wins", func(t *testing.T) {
		first := &domain.Classification{Category: domain.CategoryPartnership, Confidence: 0.6, Impact: domain.ImpactLow}
		require.NoError(t, repos.Cache.Put(context.Background(), "fp-cache-race", first))

		second := &domain.Classification{Category: domain.CategoryFeatureLaunch, Confidence: 0.9, Impact: domain.ImpactHigh}
		require.NoError(t, repos.Cache.Put(context.Background(), "fp-cache-race", second))

		entry, err := repos.Cache.Get(context.Background(), "fp-cache-race")
		require.NoError(t, err)
		require.NotNil(t, entry)
		assert.Equal(t, domain.CategoryPartnership, entry.Result.Category)
	})

	t.Run("size counts entries", func(t *testing.T) {
		size, err := repos.Cache.Size(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 2, size)
	})
}

func TestEntitiesSQL(t *testing.T) {
	t.Run("value marshals to JSON", func(t *testing.T) {
		v, err := entitiesSQL{"Acme", "SSO"}.Value()
		require.NoError(t, err)
		assert.Equal(t, `["Acme","SSO"]`, v)
	})

	t.Run("nil values as empty array", func(t *testing.T) {
		v, err := entitiesSQL(nil).Value()
		require.NoError(t, err)
		assert.Equal(t, "[]", v)
	})

	t.Run("scan from string and bytes", func(t *testing.T) {
		var e entitiesSQL
		require.NoError(t, e.Scan(`["a","b"]`))
		assert.Equal(t, entitiesSQL{"a", "b"}, e)

		require.NoError(t, e.Scan([]byte(`["c"]`)))
		assert.Equal(t, entitiesSQL{"c"}, e)
	})

	t.Run("scan rejects unsupported type", func(t *testing.T) {
		var e entitiesSQL
		assert.Error(t, e.Scan(42))
	})
}

func TestLockErrorHelpers(t *testing.T) {
	t.Run("isLockError", func(t *testing.T) {
		assert.True(t, isLockError(errors.New("SQLITE_BUSY: database is locked")))
		assert.True(t, isLockError(errors.New("database table is locked")))
		assert.False(t, isLockError(errors.New("constraint failed")))
		assert.False(t, isLockError(nil))
	})

	t.Run("criticalError unwraps", func(t *testing.T) {
		inner := domain.ErrValidation
		wrapped := &criticalError{err: inner}
		assert.Equal(t, inner.Error(), wrapped.Error())
		assert.ErrorIs(t, wrapped, domain.ErrValidation)
	})
}
