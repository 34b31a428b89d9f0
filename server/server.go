// Package server exposes the reporting boundary as a small JSON API:
// competitors, articles, events and event stats, plus on-demand pipeline runs.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/go-pkgz/rest"
	"github.com/go-pkgz/rest/logger"
	"github.com/go-pkgz/routegroup"

	"github.com/umputun/compscout/pkg/domain"
	"github.com/umputun/compscout/pkg/pipeline"
)

//go:generate moq -out mocks/config.go -pkg mocks -skip-ensure -fmt goimports . ConfigProvider
//go:generate moq -out mocks/store.go -pkg mocks -skip-ensure -fmt goimports . Store
//go:generate moq -out mocks/runner.go -pkg mocks -skip-ensure -fmt goimports . Runner

// Server represents HTTP server instance
type Server struct {
	config  ConfigProvider
	store   Store
	runner  Runner
	version string
	debug   bool

	lock       sync.Mutex
	httpServer *http.Server
	router     *routegroup.Bundle
	runActive  atomic.Bool
}

// Store provides read access to persisted intelligence data
type Store interface {
	GetCompetitors(ctx context.Context) ([]domain.Competitor, error)
	ListArticles(ctx context.Context, competitorSlug string, limit int) ([]domain.Article, error)
	CountArticles(ctx context.Context) (map[domain.ArticleStatus]int, error)
	ListEvents(ctx context.Context, filter domain.EventFilter) ([]domain.Event, error)
	EventStats(ctx context.Context) (*domain.EventStats, error)
}

// Runner triggers pipeline runs and reports their state
type Runner interface {
	Run(ctx context.Context) (*pipeline.Summary, error)
	FetchOnly(ctx context.Context) (*pipeline.Summary, error)
	ClassifyOnly(ctx context.Context) (*pipeline.Summary, error)
	Status() (pipeline.RunState, *pipeline.Summary)
}

// ConfigProvider provides server configuration
type ConfigProvider interface {
	GetServerConfig() (listen string, timeout time.Duration)
	GetBaseURL() string
}

// New initializes a new server instance
func New(cfg ConfigProvider, store Store, runner Runner, version string, debug bool) *Server {
	s := &Server{
		config:  cfg,
		store:   store,
		runner:  runner,
		version: version,
		debug:   debug,
		router:  routegroup.New(http.NewServeMux()),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// Run starts the HTTP server and handles graceful shutdown
func (s *Server) Run(ctx context.Context) error {
	listen, timeout := s.config.GetServerConfig()
	lgr.Printf("[INFO] starting server on %s", listen)

	s.lock.Lock()
	s.httpServer = &http.Server{
		Addr:         listen,
		Handler:      s.router,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	}
	s.lock.Unlock()

	go func() {
		<-ctx.Done()
		lgr.Printf("[INFO] shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			lgr.Printf("[WARN] server shutdown error: %v", err)
		}
	}()

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server error: %w", err)
	}

	return nil
}

// setupMiddleware configures standard middleware for the server
func (s *Server) setupMiddleware() {
	s.router.Use(rest.AppInfo("compscout", "umputun", s.version))
	s.router.Use(rest.Ping)

	if s.debug {
		s.router.Use(logger.New(logger.Log(lgr.Default()), logger.Prefix("[DEBUG]")).Handler)
	}

	s.router.Use(rest.Recoverer(lgr.Default()))
	s.router.Use(rest.Throttle(100))
	s.router.Use(rest.SizeLimit(1024 * 1024)) // 1MB
}

// setupRoutes configures application routes
func (s *Server) setupRoutes() {
	s.router.Mount("/api/v1").Route(func(r *routegroup.Bundle) {
		r.HandleFunc("GET /status", s.statusHandler)
		r.HandleFunc("GET /competitors", s.competitorsHandler)
		r.HandleFunc("GET /articles", s.articlesHandler)
		r.HandleFunc("GET /events", s.eventsHandler)
		r.HandleFunc("GET /events/stats", s.eventStatsHandler)
		r.HandleFunc("POST /runs", s.triggerRunHandler)
	})

	s.router.HandleFunc("GET /rss", s.rssHandler)
	s.router.HandleFunc("GET /rss/{competitor}", s.rssHandler)
}

// statusHandler returns server status with pipeline state and article counts
func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	state, lastRun := s.runner.Status()

	counts, err := s.store.CountArticles(r.Context())
	if err != nil {
		RenderError(w, r, fmt.Errorf("count articles: %w", err), http.StatusInternalServerError)
		return
	}

	status := map[string]any{
		"status":   "ok",
		"version":  s.version,
		"time":     time.Now().UTC(),
		"pipeline": map[string]any{"state": state, "last_run": lastRun},
		"articles": counts,
	}
	RenderJSON(w, r, http.StatusOK, status)
}

// RenderJSON sends JSON response
func RenderJSON(w http.ResponseWriter, _ *http.Request, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			lgr.Printf("[ERROR] can't encode response to JSON: %v", err)
		}
	}
}

// RenderError sends error response as JSON
func RenderError(w http.ResponseWriter, r *http.Request, err error, code int) {
	errMsg := "unknown error"
	if err != nil {
		errMsg = err.Error()
	}
	RenderJSON(w, r, code, map[string]string{"error": errMsg})
}
