package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/fatih/color"
	"github.com/go-pkgz/lgr"
	"github.com/jessevdk/go-flags"

	"github.com/umputun/compscout/pkg/config"
	"github.com/umputun/compscout/pkg/fetcher"
	"github.com/umputun/compscout/pkg/llm"
	"github.com/umputun/compscout/pkg/pipeline"
	"github.com/umputun/compscout/pkg/repository"
	"github.com/umputun/compscout/pkg/scheduler"
	"github.com/umputun/compscout/server"
)

// Opts with all CLI options
type Opts struct {
	Config string `short:"c" long:"config" env:"CONFIG" default:"compscout.yml" description:"config file path"`

	Run struct {
	} `command:"run" description:"fetch, dedup and classify in one pass"`
	Fetch struct {
	} `command:"fetch" description:"fetch and dedup without classification"`
	Classify struct {
	} `command:"classify" description:"classify pending articles without fetching"`
	Serve struct {
	} `command:"serve" description:"start the JSON API server"`

	// Common options
	Debug   bool `long:"dbg" env:"DEBUG" description:"debug mode"`
	Version bool `short:"V" long:"version" description:"show version info"`
	NoColor bool `long:"no-color" env:"NO_COLOR" description:"disable color output"`
}

var revision = "unknown"

func main() {
	var opts Opts
	parser := flags.NewParser(&opts, flags.Default)
	parser.SubcommandsOptional = true // bare invocation defaults to a full run
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if opts.Version {
		fmt.Printf("Version: %s\nGolang: %s\n", revision, runtime.Version())
		os.Exit(0)
	}

	mode := "run"
	if active := parser.Active; active != nil {
		mode = active.Name
	}

	ctx, cancel := context.WithCancel(context.Background())

	// handle termination signals
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		lgr.Printf("[INFO] termination signal received")
		cancel()
	}()

	err := run(ctx, opts, mode)
	cancel()

	if err != nil {
		lgr.Printf("[ERROR] %v", err)
		os.Exit(1)
	}
}

// run loads the config, wires dependencies and executes the selected mode
func run(ctx context.Context, opts Opts, mode string) error {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	SetupLog(opts.Debug, cfg.LLM.APIKey)
	lgr.Printf("[INFO] starting compscout version %s, mode %s", revision, mode)

	repos, err := repository.NewRepositories(ctx, repository.Config{
		DSN:          cfg.Database.DSN,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	})
	if err != nil {
		return fmt.Errorf("failed to init database: %w", err)
	}
	defer func() {
		if closeErr := repos.Close(); closeErr != nil {
			lgr.Printf("[WARN] database close: %v", closeErr)
		}
	}()

	limiter := fetcher.NewLimiter(cfg.Fetch.HostDelay, cfg.Fetch.RequestBudget)
	p := pipeline.New(pipeline.Config{
		CompetitorStore: repos.Competitor,
		ArticleStore:    repos.Article,
		EventStore:      repos.Event,
		CacheStore:      repos.Cache,
		Fetcher:         fetcher.NewMulti(cfg.Fetch, limiter),
		Classifier:      llm.NewClassifier(cfg.LLM),
		BudgetResetter:  limiter,
		AppConfig:       cfg,
	})

	switch mode {
	case "run":
		return printSummary(p.Run(ctx))
	case "fetch":
		return printSummary(p.FetchOnly(ctx))
	case "classify":
		return printSummary(p.ClassifyOnly(ctx))
	case "serve":
		if cfg.Pipeline.UpdateInterval > 0 {
			sched := scheduler.NewScheduler(p, cfg.Pipeline.UpdateInterval)
			sched.Start(ctx)
			defer sched.Stop()
		}
		srv := server.New(cfg, server.NewRepositoryAdapter(repos), p, revision, opts.Debug)
		return srv.Run(ctx)
	}
	return fmt.Errorf("unknown mode %q", mode)
}

// printSummary renders the run summary to stdout as JSON
func printSummary(summary *pipeline.Summary, err error) error {
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

// SetupLog configures the logger, optionally hiding secrets from output
func SetupLog(dbg bool, secs ...string) {
	logOpts := []lgr.Option{lgr.Msec, lgr.LevelBraces, lgr.StackTraceOnError}
	if dbg {
		logOpts = append(logOpts, lgr.Debug)
	}

	colorizer := lgr.Mapper{
		ErrorFunc:  func(s string) string { return color.New(color.FgHiRed).Sprint(s) },
		WarnFunc:   func(s string) string { return color.New(color.FgRed).Sprint(s) },
		InfoFunc:   func(s string) string { return color.New(color.FgYellow).Sprint(s) },
		DebugFunc:  func(s string) string { return color.New(color.FgWhite).Sprint(s) },
		CallerFunc: func(s string) string { return color.New(color.FgBlue).Sprint(s) },
		TimeFunc:   func(s string) string { return color.New(color.FgCyan).Sprint(s) },
	}
	logOpts = append(logOpts, lgr.Map(colorizer))

	for _, s := range secs {
		if s != "" {
			logOpts = append(logOpts, lgr.Secret(s))
		}
	}
	lgr.SetupStdLogger(logOpts...)
	lgr.Setup(logOpts...)
}
