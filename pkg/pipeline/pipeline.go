// Package pipeline orchestrates one intelligence run: sync configured
// competitors into the database, fetch candidate articles from all active
// sources, deduplicate by content fingerprint, classify new articles with the
// LLM and persist actionable events. Each unit of work commits on its own, a
// canceled run keeps everything finished before the cancellation.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-pkgz/lgr"
	"golang.org/x/sync/errgroup"

	"github.com/umputun/compscout/pkg/config"
	"github.com/umputun/compscout/pkg/domain"
	"github.com/umputun/compscout/pkg/fingerprint"
)

// RunState tracks pipeline progress through a run
type RunState string

// run states in execution order
const (
	StateIdle                RunState = "idle"
	StateStarted             RunState = "started"
	StateFetching            RunState = "fetching"
	StateDeduping            RunState = "deduping"
	StateClassifying         RunState = "classifying"
	StateCompleted           RunState = "completed"
	StateCompletedWithErrors RunState = "completed_with_errors"
)

//go:generate moq -out mocks/fetcher.go -pkg mocks -skip-ensure -fmt goimports . Fetcher
//go:generate moq -out mocks/classifier.go -pkg mocks -skip-ensure -fmt goimports . Classifier

// Fetcher retrieves candidate articles from a source
type Fetcher interface {
	Fetch(ctx context.Context, src domain.Source) ([]domain.CandidateArticle, error)
}

// Classifier extracts a classification from an article
type Classifier interface {
	ClassifyArticle(ctx context.Context, article domain.Article) (*domain.Classification, error)
}

// CompetitorStore syncs configured competitors and lists sources
type CompetitorStore interface {
	EnsureCompetitor(ctx context.Context, comp *domain.Competitor) error
	EnsureSource(ctx context.Context, src *domain.Source) error
	GetActiveSources(ctx context.Context) ([]domain.Source, error)
	UpdateSourceFetched(ctx context.Context, sourceID int64) error
}

// ArticleStore persists fetched articles and their classification status
type ArticleStore interface {
	InsertIfNew(ctx context.Context, article *domain.Article) (bool, error)
	ListUnclassified(ctx context.Context, limit int, includeFailed bool) ([]domain.Article, error)
	MarkClassified(ctx context.Context, articleID int64) error
	MarkFailed(ctx context.Context, articleID int64, reason string) error
}

// EventStore persists actionable events
type EventStore interface {
	Insert(ctx context.Context, event *domain.Event) error
}

// CacheStore is the write-once classification cache
type CacheStore interface {
	Get(ctx context.Context, fingerprint string) (*domain.CacheEntry, error)
	Put(ctx context.Context, fingerprint string, result *domain.Classification) error
}

// BudgetResetter restores the per-run request budget, the rate limiter
// implements it
type BudgetResetter interface {
	Reset()
}

// Summary aggregates counters for one pipeline run
type Summary struct {
	State              RunState      `json:"state"`
	SourcesAttempted   int64         `json:"sources_attempted"`
	SourcesFailed      int64         `json:"sources_failed"`
	SourcesOverBudget  int64         `json:"sources_over_budget"`
	Fetched            int64         `json:"fetched"`
	New                int64         `json:"new"`
	Duplicate          int64         `json:"duplicate"`
	Classified         int64         `json:"classified"`
	ClassificationFail int64         `json:"classification_failed"`
	EventsCreated      int64         `json:"events_created"`
	CacheHits          int64         `json:"cache_hits"`
	Errors             int64         `json:"errors"`
	Elapsed            time.Duration `json:"elapsed"`
	StartedAt          time.Time     `json:"started_at"`
}

// Pipeline runs the fetch-dedup-classify cycle over configured competitors
type Pipeline struct {
	competitors CompetitorStore
	articles    ArticleStore
	events      EventStore
	cache       CacheStore
	fetcher     Fetcher
	classifier  Classifier
	budget      BudgetResetter
	cfg         *config.Config

	mu          sync.RWMutex
	state       RunState
	lastSummary *Summary
}

// Config holds pipeline dependencies
type Config struct {
	CompetitorStore CompetitorStore
	ArticleStore    ArticleStore
	EventStore      EventStore
	CacheStore      CacheStore
	Fetcher         Fetcher
	Classifier      Classifier
	BudgetResetter  BudgetResetter // optional, gives each run a fresh request budget
	AppConfig       *config.Config
}

// New creates a pipeline with the provided dependencies
func New(cfg Config) *Pipeline {
	return &Pipeline{
		competitors: cfg.CompetitorStore,
		articles:    cfg.ArticleStore,
		events:      cfg.EventStore,
		cache:       cfg.CacheStore,
		fetcher:     cfg.Fetcher,
		classifier:  cfg.Classifier,
		budget:      cfg.BudgetResetter,
		cfg:         cfg.AppConfig,
		state:       StateIdle,
	}
}

// counters collects run statistics from concurrent workers
type counters struct {
	sourcesAttempted  atomic.Int64
	sourcesFailed     atomic.Int64
	sourcesOverBudget atomic.Int64
	fetched           atomic.Int64
	inserted          atomic.Int64
	duplicate         atomic.Int64
	classified        atomic.Int64
	classifyFailed    atomic.Int64
	events            atomic.Int64
	cacheHits         atomic.Int64
	errors            atomic.Int64
}

// Run executes a full pipeline cycle: config sync, fetch, dedup, classify
func (p *Pipeline) Run(ctx context.Context) (*Summary, error) {
	return p.run(ctx, true, true)
}

// FetchOnly ingests and dedups articles without classifying them
func (p *Pipeline) FetchOnly(ctx context.Context) (*Summary, error) {
	return p.run(ctx, true, false)
}

// ClassifyOnly classifies pending articles without fetching new ones
func (p *Pipeline) ClassifyOnly(ctx context.Context) (*Summary, error) {
	return p.run(ctx, false, true)
}

func (p *Pipeline) run(ctx context.Context, fetch, classify bool) (*Summary, error) {
	start := time.Now()
	p.setState(StateStarted)
	lgr.Printf("[INFO] pipeline run started")

	if p.budget != nil {
		p.budget.Reset()
	}
	cnt := &counters{}

	if err := p.SyncConfig(ctx); err != nil {
		p.setState(StateCompletedWithErrors)
		return nil, fmt.Errorf("sync config: %w", err)
	}

	if fetch {
		if err := p.fetchPhase(ctx, cnt); err != nil {
			summary := p.finish(cnt, start)
			return summary, fmt.Errorf("fetch phase: %w", err)
		}
	}

	if classify {
		p.setState(StateClassifying)
		if err := p.classifyPhase(ctx, cnt); err != nil {
			summary := p.finish(cnt, start)
			return summary, fmt.Errorf("classify phase: %w", err)
		}
	}

	summary := p.finish(cnt, start)
	lgr.Printf("[INFO] pipeline run %s: fetched %d, new %d, duplicate %d, classified %d, events %d, cache hits %d, failed %d, elapsed %v",
		summary.State, summary.Fetched, summary.New, summary.Duplicate, summary.Classified,
		summary.EventsCreated, summary.CacheHits, summary.ClassificationFail, summary.Elapsed)
	return summary, nil
}

// SyncConfig upserts configured competitors and sources into the database.
// Sources present in the database but absent from the config are left alone,
// disabling is an explicit operation.
func (p *Pipeline) SyncConfig(ctx context.Context) error {
	for _, cc := range p.cfg.Competitors {
		comp := &domain.Competitor{Name: cc.Name, Slug: cc.Slug, Vertical: cc.Vertical}
		if err := p.competitors.EnsureCompetitor(ctx, comp); err != nil {
			return fmt.Errorf("sync competitor %s: %w", cc.Name, err)
		}
		for _, sc := range cc.Sources {
			src := &domain.Source{
				CompetitorID: comp.ID,
				Type:         domain.SourceType(sc.Type),
				Endpoint:     sc.URL,
				Selector:     sc.Selector,
			}
			if err := p.competitors.EnsureSource(ctx, src); err != nil {
				return fmt.Errorf("sync source %s: %w", sc.URL, err)
			}
		}
	}
	return nil
}

// fetchPhase pulls all active sources concurrently and stores deduplicated
// articles. Per-source failures are counted, not fatal.
func (p *Pipeline) fetchPhase(ctx context.Context, cnt *counters) error {
	p.setState(StateFetching)

	sources, err := p.competitors.GetActiveSources(ctx)
	if err != nil {
		return fmt.Errorf("get active sources: %w", err)
	}
	lgr.Printf("[INFO] fetching %d active sources", len(sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.maxWorkers())

	for _, src := range sources {
		g.Go(func() error {
			cnt.sourcesAttempted.Add(1)
			candidates, err := p.fetcher.Fetch(gctx, src)
			switch {
			case errors.Is(err, domain.ErrBudgetExceeded):
				lgr.Printf("[WARN] request budget exhausted, skipping %s", src.Endpoint)
				cnt.sourcesOverBudget.Add(1)
				return nil
			case err != nil:
				lgr.Printf("[WARN] fetch %s failed: %v", src.Endpoint, err)
				cnt.sourcesFailed.Add(1)
				return nil
			}

			cnt.fetched.Add(int64(len(candidates)))
			p.storeCandidates(gctx, src, candidates, cnt)

			if err := p.competitors.UpdateSourceFetched(gctx, src.ID); err != nil {
				lgr.Printf("[WARN] update last_fetched for %s: %v", src.Endpoint, err)
				cnt.errors.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// storeCandidates fingerprints and inserts fetched candidates, counting
// duplicates. Insert failures are logged and counted but don't stop the batch.
func (p *Pipeline) storeCandidates(ctx context.Context, src domain.Source, candidates []domain.CandidateArticle, cnt *counters) {
	p.setState(StateDeduping)
	for _, cand := range candidates {
		article := &domain.Article{
			SourceID:    src.ID,
			Fingerprint: fingerprint.Hash(cand.Title, cand.Body),
			Title:       cand.Title,
			Body:        cand.Body,
			URL:         cand.URL,
			PublishedAt: cand.PublishedAt,
		}
		inserted, err := p.articles.InsertIfNew(ctx, article)
		if err != nil {
			lgr.Printf("[WARN] store article %q from %s: %v", cand.Title, src.Endpoint, err)
			cnt.errors.Add(1)
			continue
		}
		if inserted {
			cnt.inserted.Add(1)
			continue
		}
		cnt.duplicate.Add(1)
		lgr.Printf("[DEBUG] duplicate article %q from %s", cand.Title, src.Endpoint)
	}
}

// classifyPhase classifies pending articles concurrently. Cache hits skip the
// LLM call entirely; validated results are cached before the confidence gate
// is applied, so a below-gate result never triggers a second LLM call.
func (p *Pipeline) classifyPhase(ctx context.Context, cnt *counters) error {
	limit := p.cfg.LLM.Classification.BatchLimit
	if limit <= 0 {
		limit = 100
	}

	articles, err := p.articles.ListUnclassified(ctx, limit, p.cfg.LLM.Classification.RetryFailed)
	if err != nil {
		return fmt.Errorf("list unclassified: %w", err)
	}
	if len(articles) == 0 {
		lgr.Printf("[INFO] no articles to classify")
		return nil
	}
	lgr.Printf("[INFO] classifying %d articles", len(articles))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.maxWorkers())

	for _, article := range articles {
		g.Go(func() error {
			p.classifyArticle(gctx, article, cnt)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// classifyArticle runs one article through cache, LLM and the confidence gate
func (p *Pipeline) classifyArticle(ctx context.Context, article domain.Article, cnt *counters) {
	result, fromCache, err := p.resolveClassification(ctx, article)
	if err != nil {
		if ctx.Err() != nil {
			return // canceled mid-flight, leave the article pending
		}
		lgr.Printf("[WARN] classification failed for article %d %q: %v", article.ID, article.Title, err)
		cnt.classifyFailed.Add(1)
		if markErr := p.articles.MarkFailed(ctx, article.ID, err.Error()); markErr != nil {
			lgr.Printf("[WARN] mark article %d failed: %v", article.ID, markErr)
			cnt.errors.Add(1)
		}
		return
	}
	if fromCache {
		cnt.cacheHits.Add(1)
	}

	if !result.Actionable() {
		lgr.Printf("[DEBUG] article %d not actionable: category %s, confidence %.2f", article.ID, result.Category, result.Confidence)
		cnt.classified.Add(1)
		if err := p.articles.MarkClassified(ctx, article.ID); err != nil {
			lgr.Printf("[WARN] mark article %d classified: %v", article.ID, err)
			cnt.errors.Add(1)
		}
		return
	}

	event := &domain.Event{
		ArticleID:  article.ID,
		Category:   result.Category,
		Confidence: result.Confidence,
		Impact:     result.Impact,
		Entities:   result.Entities,
		Summary:    result.Summary,
	}
	if err := p.events.Insert(ctx, event); err != nil {
		lgr.Printf("[WARN] insert event for article %d: %v", article.ID, err)
		cnt.errors.Add(1)
		return
	}
	cnt.classified.Add(1)
	cnt.events.Add(1)
	lgr.Printf("[INFO] event %d created: %s / %s (%.2f) for %s", event.ID, event.Category, event.Impact, event.Confidence, article.CompetitorName)
}

// resolveClassification returns a cached result or calls the LLM. A fresh
// valid result is cached; invalid responses are not, so a later retry gets a
// clean attempt.
func (p *Pipeline) resolveClassification(ctx context.Context, article domain.Article) (result *domain.Classification, fromCache bool, err error) {
	entry, err := p.cache.Get(ctx, article.Fingerprint)
	if err != nil {
		lgr.Printf("[WARN] cache lookup for article %d: %v", article.ID, err)
	}
	if entry != nil {
		return &entry.Result, true, nil
	}

	result, err = p.classifier.ClassifyArticle(ctx, article)
	if err != nil {
		return nil, false, err
	}
	if err := p.cache.Put(ctx, article.Fingerprint, result); err != nil {
		lgr.Printf("[WARN] cache store for article %d: %v", article.ID, err)
	}
	return result, false, nil
}

// Status returns the current run state and last finished summary
func (p *Pipeline) Status() (RunState, *Summary) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state, p.lastSummary
}

func (p *Pipeline) setState(state RunState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = state
}

// finish snapshots counters into a summary and records the final state
func (p *Pipeline) finish(cnt *counters, start time.Time) *Summary {
	summary := &Summary{
		SourcesAttempted:   cnt.sourcesAttempted.Load(),
		SourcesFailed:      cnt.sourcesFailed.Load(),
		SourcesOverBudget:  cnt.sourcesOverBudget.Load(),
		Fetched:            cnt.fetched.Load(),
		New:                cnt.inserted.Load(),
		Duplicate:          cnt.duplicate.Load(),
		Classified:         cnt.classified.Load(),
		ClassificationFail: cnt.classifyFailed.Load(),
		EventsCreated:      cnt.events.Load(),
		CacheHits:          cnt.cacheHits.Load(),
		Errors:             cnt.errors.Load(),
		Elapsed:            time.Since(start).Round(time.Millisecond),
		StartedAt:          start,
	}

	state := StateCompleted
	if summary.SourcesFailed > 0 || summary.ClassificationFail > 0 || summary.Errors > 0 {
		state = StateCompletedWithErrors
	}
	summary.State = state

	p.mu.Lock()
	p.state = state
	p.lastSummary = summary
	p.mu.Unlock()
	return summary
}

func (p *Pipeline) maxWorkers() int {
	if p.cfg.Pipeline.MaxWorkers > 0 {
		return p.cfg.Pipeline.MaxWorkers
	}
	return 5
}
