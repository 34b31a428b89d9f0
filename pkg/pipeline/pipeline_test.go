package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/compscout/pkg/config"
	"github.com/umputun/compscout/pkg/domain"
	"github.com/umputun/compscout/pkg/fingerprint"
	"github.com/umputun/compscout/pkg/pipeline/mocks"
	"github.com/umputun/compscout/pkg/repository"
)

func testAppConfig() *config.Config {
	cfg := &config.Config{}
	cfg.LLM.Model = "gpt-4o-mini"
	cfg.LLM.Classification.BatchLimit = 100
	cfg.Pipeline.MaxWorkers = 2
	cfg.Competitors = []config.CompetitorConfig{
		{
			Name: "Acme", Slug: "acme", Vertical: "analytics",
			Sources: []config.SourceConfig{
				{Type: "rss", URL: "https://acme.example.com/feed.xml"},
			},
		},
		{
			Name: "Globex", Slug: "globex", Vertical: "analytics",
			Sources: []config.SourceConfig{
				{Type: "rss", URL: "https://globex.example.com/feed.xml"},
			},
		},
	}
	return cfg
}

func setupPipeline(t *testing.T, cfg *config.Config, fetcher *mocks.FetcherMock, classifier *mocks.ClassifierMock) (*Pipeline, *repository.Repositories) {
	t.Helper()
	repos, err := repository.NewRepositories(context.Background(), repository.Config{
		DSN:          ":memory:",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	})
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, repos.Close()) })

	p := New(Config{
		CompetitorStore: repos.Competitor,
		ArticleStore:    repos.Article,
		EventStore:      repos.Event,
		CacheStore:      repos.Cache,
		Fetcher:         fetcher,
		Classifier:      classifier,
		AppConfig:       cfg,
	})
	return p, repos
}

func TestPipeline_Run_FullCycle(t *testing.T) {
	// five candidates across two sources, one cross-source duplicate
	acmeItems := []domain.CandidateArticle{
		{Title: "Acme launches AI dashboard", Body: "New AI-powered analytics dashboard for all plans", URL: "https://acme.example.com/ai"},
		{Title: "Acme raises prices", Body: "Enterprise tier goes from $50 to $60 per seat", URL: "https://acme.example.com/pricing"},
		{Title: "Acme summer party", Body: "Our team had a great time at the lake", URL: "https://acme.example.com/party"},
	}
	globexItems := []domain.CandidateArticle{
		{Title: "Globex partners with BigCorp", Body: "Strategic alliance for enterprise data", URL: "https://globex.example.com/bigcorp"},
		// same content as the Acme dashboard post, syndicated
		{Title: "Acme launches AI dashboard", Body: "New  AI-powered   analytics dashboard for all plans", URL: "https://globex.example.com/repost"},
	}

	fetcher := &mocks.FetcherMock{
		FetchFunc: func(ctx context.Context, src domain.Source) ([]domain.CandidateArticle, error) {
			if src.CompetitorName == "Acme" {
				return acmeItems, nil
			}
			return globexItems, nil
		},
	}

	classifier := &mocks.ClassifierMock{
		ClassifyArticleFunc: func(ctx context.Context, article domain.Article) (*domain.Classification, error) {
			switch article.URL {
			case "https://acme.example.com/ai":
				return &domain.Classification{Category: domain.CategoryFeatureLaunch, Confidence: 0.92, Impact: domain.ImpactHigh, Entities: []string{"Acme"}, Summary: "AI dashboard launched"}, nil
			case "https://acme.example.com/pricing":
				return &domain.Classification{Category: domain.CategoryPricingChange, Confidence: 0.85, Impact: domain.ImpactMedium, Summary: "Price increase"}, nil
			case "https://globex.example.com/bigcorp":
				return &domain.Classification{Category: domain.CategoryPartnership, Confidence: 0.75, Impact: domain.ImpactMedium, Summary: "BigCorp alliance"}, nil
			default:
				return &domain.Classification{Category: domain.CategoryOther, Confidence: 0.3, Impact: domain.ImpactLow, Summary: "Not actionable"}, nil
			}
		},
	}

	p, repos := setupPipeline(t, testAppConfig(), fetcher, classifier)

	summary, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StateCompleted, summary.State)
	assert.Equal(t, int64(2), summary.SourcesAttempted)
	assert.Equal(t, int64(0), summary.SourcesFailed)
	assert.Equal(t, int64(5), summary.Fetched)
	assert.Equal(t, int64(4), summary.New)
	assert.Equal(t, int64(1), summary.Duplicate, "syndicated post collapses by fingerprint")
	assert.Equal(t, int64(4), summary.Classified)
	assert.Equal(t, int64(3), summary.EventsCreated, "party post classified as other, no event")
	assert.Equal(t, int64(0), summary.CacheHits)
	assert.Equal(t, int64(0), summary.Errors)

	// each unique article hit the classifier exactly once
	assert.Len(t, classifier.ClassifyArticleCalls(), 4)

	// events landed with the right categories
	events, err := repos.Event.List(context.Background(), domain.EventFilter{})
	require.NoError(t, err)
	require.Len(t, events, 3)

	stats, err := repos.Event.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.ByCategory[domain.CategoryFeatureLaunch])
	assert.Equal(t, 1, stats.ByCategory[domain.CategoryPricingChange])
	assert.Equal(t, 1, stats.ByCategory[domain.CategoryPartnership])

	// every validated result was cached
	size, err := repos.Cache.Size(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, size)

	// sources got their last_fetched timestamps
	sources, err := repos.Competitor.GetActiveSources(context.Background())
	require.NoError(t, err)
	require.Len(t, sources, 2)
	for _, src := range sources {
		assert.NotNil(t, src.LastFetched)
	}

	state, last := p.Status()
	assert.Equal(t, StateCompleted, state)
	assert.Equal(t, summary, last)

	// second run over the same content creates nothing new and skips the LLM
	summary2, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(5), summary2.Duplicate, "every fetched candidate is a duplicate now")
	assert.Equal(t, int64(0), summary2.New)
	assert.Equal(t, int64(0), summary2.EventsCreated)
	assert.Len(t, classifier.ClassifyArticleCalls(), 4, "no new LLM calls on rerun")
}

func TestPipeline_Run_CacheHit(t *testing.T) {
	cand := domain.CandidateArticle{
		Title: "Globex ships SSO",
		Body:  "Single sign-on now available on enterprise plans",
		URL:   "https://globex.example.com/sso",
	}
	fetcher := &mocks.FetcherMock{
		FetchFunc: func(ctx context.Context, src domain.Source) ([]domain.CandidateArticle, error) {
			if src.CompetitorName == "Globex" {
				return []domain.CandidateArticle{cand}, nil
			}
			return nil, nil
		},
	}
	classifier := &mocks.ClassifierMock{
		ClassifyArticleFunc: func(ctx context.Context, article domain.Article) (*domain.Classification, error) {
			return nil, errors.New("llm must not be called on cache hit")
		},
	}

	p, repos := setupPipeline(t, testAppConfig(), fetcher, classifier)

	// classification for this content is already cached
	fp := fingerprint.Hash(cand.Title, cand.Body)
	cached := &domain.Classification{Category: domain.CategoryFeatureLaunch, Confidence: 0.88, Impact: domain.ImpactHigh, Summary: "SSO shipped"}
	require.NoError(t, repos.Cache.Put(context.Background(), fp, cached))

	summary, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StateCompleted, summary.State)
	assert.Equal(t, int64(1), summary.New)
	assert.Equal(t, int64(1), summary.CacheHits)
	assert.Equal(t, int64(1), summary.EventsCreated)
	assert.Empty(t, classifier.ClassifyArticleCalls())
}

func TestPipeline_Run_ClassificationFailure(t *testing.T) {
	fetcher := &mocks.FetcherMock{
		FetchFunc: func(ctx context.Context, src domain.Source) ([]domain.CandidateArticle, error) {
			if src.CompetitorName != "Acme" {
				return nil, nil
			}
			return []domain.CandidateArticle{
				{Title: "Acme news", Body: "Some announcement text", URL: "https://acme.example.com/news"},
			}, nil
		},
	}

	failing := true
	classifier := &mocks.ClassifierMock{
		ClassifyArticleFunc: func(ctx context.Context, article domain.Article) (*domain.Classification, error) {
			if failing {
				return nil, fmt.Errorf("bad payload: %w", domain.ErrInvalidResponse)
			}
			return &domain.Classification{Category: domain.CategoryPartnership, Confidence: 0.7, Impact: domain.ImpactLow, Summary: "s"}, nil
		},
	}

	cfg := testAppConfig()
	p, repos := setupPipeline(t, cfg, fetcher, classifier)

	summary, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateCompletedWithErrors, summary.State)
	assert.Equal(t, int64(1), summary.ClassificationFail)
	assert.Equal(t, int64(0), summary.EventsCreated)

	// article marked failed with the reason recorded
	failed, err := repos.Article.ListUnclassified(context.Background(), 10, true)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, domain.StatusFailed, failed[0].Status)
	assert.Contains(t, failed[0].StatusReason, "bad payload")

	// invalid result must not poison the cache
	size, err := repos.Cache.Size(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, size)

	// without retry_failed, rerun leaves the article alone
	summary, err = p.ClassifyOnly(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), summary.ClassificationFail)
	assert.Equal(t, int64(0), summary.Classified)

	// with retry_failed, a recovered classifier picks it up
	failing = false
	cfg.LLM.Classification.RetryFailed = true
	summary, err = p.ClassifyOnly(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, summary.State)
	assert.Equal(t, int64(1), summary.Classified)
	assert.Equal(t, int64(1), summary.EventsCreated)
}

func TestPipeline_Run_SourceFailure(t *testing.T) {
	fetcher := &mocks.FetcherMock{
		FetchFunc: func(ctx context.Context, src domain.Source) ([]domain.CandidateArticle, error) {
			if src.CompetitorName == "Acme" {
				return nil, errors.New("connection refused")
			}
			return []domain.CandidateArticle{
				{Title: "Globex update", Body: "Some text long enough", URL: "https://globex.example.com/u"},
			}, nil
		},
	}
	classifier := &mocks.ClassifierMock{
		ClassifyArticleFunc: func(ctx context.Context, article domain.Article) (*domain.Classification, error) {
			return &domain.Classification{Category: domain.CategoryOther, Confidence: 0.2, Impact: domain.ImpactLow, Summary: "s"}, nil
		},
	}

	p, _ := setupPipeline(t, testAppConfig(), fetcher, classifier)

	summary, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateCompletedWithErrors, summary.State)
	assert.Equal(t, int64(1), summary.SourcesFailed)
	assert.Equal(t, int64(1), summary.New, "healthy source still processed")
}

func TestPipeline_Run_BudgetExhausted(t *testing.T) {
	fetcher := &mocks.FetcherMock{
		FetchFunc: func(ctx context.Context, src domain.Source) ([]domain.CandidateArticle, error) {
			return nil, domain.ErrBudgetExceeded
		},
	}
	classifier := &mocks.ClassifierMock{}

	p, _ := setupPipeline(t, testAppConfig(), fetcher, classifier)

	summary, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, summary.State, "budget exhaustion is a graceful stop")
	assert.Equal(t, int64(2), summary.SourcesOverBudget)
	assert.Equal(t, int64(0), summary.Fetched)
}

func TestPipeline_FetchOnly(t *testing.T) {
	fetcher := &mocks.FetcherMock{
		FetchFunc: func(ctx context.Context, src domain.Source) ([]domain.CandidateArticle, error) {
			return []domain.CandidateArticle{
				{Title: "post from " + src.CompetitorName, Body: "body text", URL: src.Endpoint + "/post"},
			}, nil
		},
	}
	classifier := &mocks.ClassifierMock{}

	p, repos := setupPipeline(t, testAppConfig(), fetcher, classifier)

	summary, err := p.FetchOnly(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), summary.New)
	assert.Empty(t, classifier.ClassifyArticleCalls())

	// articles stay pending for a later ClassifyOnly
	pending, err := repos.Article.ListUnclassified(context.Background(), 10, false)
	require.NoError(t, err)
	assert.Len(t, pending, 2)
}

func TestPipeline_ClassifyOnly_NoFetch(t *testing.T) {
	fetcher := &mocks.FetcherMock{}
	classifier := &mocks.ClassifierMock{
		ClassifyArticleFunc: func(ctx context.Context, article domain.Article) (*domain.Classification, error) {
			return &domain.Classification{Category: domain.CategoryOther, Confidence: 0.1, Impact: domain.ImpactLow, Summary: "s"}, nil
		},
	}

	p, _ := setupPipeline(t, testAppConfig(), fetcher, classifier)

	summary, err := p.ClassifyOnly(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, summary.State)
	assert.Empty(t, fetcher.FetchCalls())
	assert.Equal(t, int64(0), summary.Fetched)
}

func TestPipeline_Run_BatchLimit(t *testing.T) {
	fetcher := &mocks.FetcherMock{
		FetchFunc: func(ctx context.Context, src domain.Source) ([]domain.CandidateArticle, error) {
			if src.CompetitorName != "Acme" {
				return nil, nil
			}
			var items []domain.CandidateArticle
			for i := 0; i < 5; i++ {
				items = append(items, domain.CandidateArticle{
					Title: fmt.Sprintf("post %d", i),
					Body:  fmt.Sprintf("body %d", i),
					URL:   fmt.Sprintf("https://acme.example.com/%d", i),
				})
			}
			return items, nil
		},
	}
	classifier := &mocks.ClassifierMock{
		ClassifyArticleFunc: func(ctx context.Context, article domain.Article) (*domain.Classification, error) {
			return &domain.Classification{Category: domain.CategoryOther, Confidence: 0.2, Impact: domain.ImpactLow, Summary: "s"}, nil
		},
	}

	cfg := testAppConfig()
	cfg.LLM.Classification.BatchLimit = 3
	p, repos := setupPipeline(t, cfg, fetcher, classifier)

	summary, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(5), summary.New)
	assert.Equal(t, int64(3), summary.Classified, "batch limit caps one run")

	pending, err := repos.Article.ListUnclassified(context.Background(), 10, false)
	require.NoError(t, err)
	assert.Len(t, pending, 2)
}
