package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-pkgz/lgr"

	"github.com/umputun/compscout/pkg/domain"
	"github.com/umputun/compscout/pkg/pipeline"
)

// competitorResponse is the API representation of a competitor
type competitorResponse struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Slug     string `json:"slug"`
	Vertical string `json:"vertical,omitempty"`
}

// articleResponse is the API representation of a stored article
type articleResponse struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	URL         string     `json:"url"`
	Competitor  string     `json:"competitor"`
	Source      string     `json:"source"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	FetchedAt   time.Time  `json:"fetched_at"`
	Status      string     `json:"status"`
	Reason      string     `json:"status_reason,omitempty"`
}

// eventResponse is the API representation of a strategic event
type eventResponse struct {
	ID         int64     `json:"id"`
	Category   string    `json:"category"`
	Confidence float64   `json:"confidence"`
	Impact     string    `json:"impact_level"`
	Entities   []string  `json:"entities"`
	Summary    string    `json:"summary"`
	Competitor string    `json:"competitor"`
	Title      string    `json:"article_title"`
	URL        string    `json:"article_url"`
	CreatedAt  time.Time `json:"created_at"`
}

// competitorsHandler lists tracked competitors
func (s *Server) competitorsHandler(w http.ResponseWriter, r *http.Request) {
	competitors, err := s.store.GetCompetitors(r.Context())
	if err != nil {
		RenderError(w, r, fmt.Errorf("get competitors: %w", err), http.StatusInternalServerError)
		return
	}

	resp := make([]competitorResponse, len(competitors))
	for i, c := range competitors {
		resp[i] = competitorResponse{ID: c.ID, Name: c.Name, Slug: c.Slug, Vertical: c.Vertical}
	}
	RenderJSON(w, r, http.StatusOK, resp)
}

// articlesHandler lists stored articles for one competitor
func (s *Server) articlesHandler(w http.ResponseWriter, r *http.Request) {
	slug := r.URL.Query().Get("competitor")
	if slug == "" {
		RenderError(w, r, fmt.Errorf("competitor query parameter is required"), http.StatusBadRequest)
		return
	}
	limit := queryInt(r, "limit", 50)

	articles, err := s.store.ListArticles(r.Context(), slug, limit)
	if err != nil {
		RenderError(w, r, fmt.Errorf("list articles: %w", err), http.StatusInternalServerError)
		return
	}

	resp := make([]articleResponse, len(articles))
	for i, a := range articles {
		resp[i] = articleResponse{
			ID:          a.ID,
			Title:       a.Title,
			URL:         a.URL,
			Competitor:  a.CompetitorName,
			Source:      a.SourceEndpoint,
			PublishedAt: a.PublishedAt,
			FetchedAt:   a.FetchedAt,
			Status:      string(a.Status),
			Reason:      a.StatusReason,
		}
	}
	RenderJSON(w, r, http.StatusOK, resp)
}

// eventsHandler lists events filtered by competitor, category and date range
func (s *Server) eventsHandler(w http.ResponseWriter, r *http.Request) {
	filter := domain.EventFilter{
		Competitor: r.URL.Query().Get("competitor"),
		Limit:      queryInt(r, "limit", 50),
	}

	if category := r.URL.Query().Get("category"); category != "" {
		if !domain.ValidCategory(domain.EventCategory(category)) {
			RenderError(w, r, fmt.Errorf("unknown category %q", category), http.StatusBadRequest)
			return
		}
		filter.Category = domain.EventCategory(category)
	}

	since, err := queryTime(r, "since")
	if err != nil {
		RenderError(w, r, err, http.StatusBadRequest)
		return
	}
	filter.Since = since

	until, err := queryTime(r, "until")
	if err != nil {
		RenderError(w, r, err, http.StatusBadRequest)
		return
	}
	filter.Until = until

	events, err := s.store.ListEvents(r.Context(), filter)
	if err != nil {
		RenderError(w, r, fmt.Errorf("list events: %w", err), http.StatusInternalServerError)
		return
	}

	resp := make([]eventResponse, len(events))
	for i, e := range events {
		entities := e.Entities
		if entities == nil {
			entities = []string{}
		}
		resp[i] = eventResponse{
			ID:         e.ID,
			Category:   string(e.Category),
			Confidence: e.Confidence,
			Impact:     string(e.Impact),
			Entities:   entities,
			Summary:    e.Summary,
			Competitor: e.CompetitorName,
			Title:      e.ArticleTitle,
			URL:        e.ArticleURL,
			CreatedAt:  e.CreatedAt,
		}
	}
	RenderJSON(w, r, http.StatusOK, resp)
}

// eventStatsHandler returns aggregate event counts
func (s *Server) eventStatsHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.EventStats(r.Context())
	if err != nil {
		RenderError(w, r, fmt.Errorf("event stats: %w", err), http.StatusInternalServerError)
		return
	}
	RenderJSON(w, r, http.StatusOK, stats)
}

// triggerRunHandler starts a pipeline run in the background. Only one run can
// be active at a time, a second trigger gets 409.
func (s *Server) triggerRunHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode string `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		RenderError(w, r, fmt.Errorf("decode request: %w", err), http.StatusBadRequest)
		return
	}
	if req.Mode == "" {
		req.Mode = "full"
	}

	var runFn func(ctx context.Context) (*pipeline.Summary, error)
	switch req.Mode {
	case "full":
		runFn = s.runner.Run
	case "fetch":
		runFn = s.runner.FetchOnly
	case "classify":
		runFn = s.runner.ClassifyOnly
	default:
		RenderError(w, r, fmt.Errorf("unknown mode %q", req.Mode), http.StatusBadRequest)
		return
	}

	if !s.runActive.CompareAndSwap(false, true) {
		RenderError(w, r, fmt.Errorf("pipeline run already in progress"), http.StatusConflict)
		return
	}

	// the run outlives the request, detach it from the request context
	go func() {
		defer s.runActive.Store(false)
		if _, err := runFn(context.Background()); err != nil {
			lgr.Printf("[WARN] triggered %s run failed: %v", req.Mode, err)
		}
	}()

	RenderJSON(w, r, http.StatusAccepted, map[string]string{"result": "started", "mode": req.Mode})
}

// queryInt parses an integer query parameter with a default
func queryInt(r *http.Request, name string, def int) int {
	if v := r.URL.Query().Get(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

// queryTime parses an RFC3339 or YYYY-MM-DD query parameter
func queryTime(r *http.Request, name string) (*time.Time, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return &t, nil
	}
	if t, err := time.Parse("2006-01-02", v); err == nil {
		return &t, nil
	}
	return nil, fmt.Errorf("invalid %s value %q, want RFC3339 or YYYY-MM-DD", name, v)
}
