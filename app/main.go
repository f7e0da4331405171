package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lysyi3m/newsdesk/app/ai"
	"github.com/lysyi3m/newsdesk/app/api"
	"github.com/lysyi3m/newsdesk/app/cfg"
	"github.com/lysyi3m/newsdesk/app/database"
	"github.com/lysyi3m/newsdesk/app/entity"
	"github.com/lysyi3m/newsdesk/app/feed"
	"github.com/lysyi3m/newsdesk/app/grouping"
	"github.com/lysyi3m/newsdesk/app/runs"
	"github.com/lysyi3m/newsdesk/app/tasks"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if appCfg == nil {
		// help was shown
		return
	}

	setupLogger(appCfg.Debug)

	if err := run(appCfg); err != nil {
		slog.Error("Newsdesk stopped with error", "error", err)
		os.Exit(1)
	}
}

func setupLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

type app struct {
	cfg       *cfg.Cfg
	db        *database.DB
	newsRepo  *database.NewsRepo
	runRepo   *database.RunRepo
	jobs      *tasks.Jobs
	scheduler *tasks.Scheduler
}

func run(appCfg *cfg.Cfg) error {
	command, operands := "serve", []string(nil)
	if len(appCfg.Args) > 0 {
		command, operands = appCfg.Args[0], appCfg.Args[1:]
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, appCfg)
	if err != nil {
		return err
	}
	defer a.db.Close()

	switch command {
	case "serve":
		return a.serve(ctx)
	case "run":
		if len(operands) != 1 {
			return fmt.Errorf("usage: run fetch-news|classify-news")
		}
		return a.runOnce(ctx, operands[0])
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

func newApp(ctx context.Context, appCfg *cfg.Cfg) (*app, error) {
	slog.Info("Starting Newsdesk", "version", appCfg.Version, "db", appCfg.DBPath)

	db, err := database.NewConnection(appCfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Info("Database ready", "schema_version", version, "dirty", dirty)

	newsRepo := database.NewNewsRepository(db)
	refRepo := database.NewReferenceRepository(db)
	runRepo := database.NewRunRepository(db)
	priceRepo := database.NewPriceRepository(db)

	if appCfg.AliasesFile != "" {
		seeds, err := entity.LoadAliasSeed(appCfg.AliasesFile)
		if err != nil {
			db.Close()
			return nil, err
		}
		if err := refRepo.SeedAliases(ctx, seeds); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to seed aliases: %w", err)
		}
		slog.Info("Ticker aliases seeded", "file", appCfg.AliasesFile, "tickers", len(seeds))
	}

	sources, err := feed.LoadSources(appCfg.SourcesFile)
	if err != nil {
		db.Close()
		return nil, err
	}
	slog.Info("Sources loaded", "file", appCfg.SourcesFile, "count", len(sources))

	chain, err := newChain(ctx, appCfg)
	if err != nil {
		db.Close()
		return nil, err
	}

	fetcher := feed.NewFetcher(&http.Client{}, feed.FetcherOptions{
		Concurrency: appCfg.FetchConcurrency,
		Timeout:     appCfg.FetchTimeout,
		UserAgent:   appCfg.UserAgent,
		Limiter:     feed.NewHostLimiter(appCfg.HostDelay),
	})

	jobs := tasks.NewJobs(
		tasks.JobsConfig{
			Sources:          sources,
			BatchSize:        appCfg.ClassifyBatchSize,
			TriggerBatchSize: appCfg.TriggerBatchSize,
			ClaimTTL:         appCfg.ClaimTTL,
		},
		fetcher,
		newsRepo,
		refRepo,
		priceRepo,
		chain,
		grouping.NewEngine(newsRepo, appCfg.GroupWindow),
		tasks.NewPool(appCfg.ClassifyConcurrency, appCfg.ChunkPause),
		runs.NewTracker(runRepo),
	)

	scheduler := tasks.NewScheduler(jobs, tasks.SchedulerOptions{
		FetchSchedule:    appCfg.FetchSchedule,
		ClassifySchedule: appCfg.ClassifySchedule,
		WorkerCount:      2,
	})

	return &app{
		cfg:       appCfg,
		db:        db,
		newsRepo:  newsRepo,
		runRepo:   runRepo,
		jobs:      jobs,
		scheduler: scheduler,
	}, nil
}

// newChain builds the provider chain from the configured keys. Gemini goes first.
func newChain(ctx context.Context, appCfg *cfg.Cfg) (*ai.Chain, error) {
	var providers []ai.Provider

	if appCfg.GeminiAPIKey != "" {
		gemini, err := ai.NewGeminiProvider(ctx, appCfg.GeminiAPIKey, appCfg.GeminiModel, "")
		if err != nil {
			return nil, fmt.Errorf("failed to create Gemini provider: %w", err)
		}
		providers = append(providers, gemini)
	}
	if appCfg.ClaudeAPIKey != "" {
		providers = append(providers, ai.NewClaudeProvider(appCfg.ClaudeAPIKey, appCfg.ClaudeModel))
	}

	chain := ai.NewChain(appCfg.AITimeout, providers...)
	if chain.Len() == 0 {
		slog.Warn("No AI provider configured, classification will use name matching only")
	} else {
		slog.Info("AI providers configured", "providers", chain.Providers())
	}
	return chain, nil
}

func (a *app) runOnce(ctx context.Context, name string) error {
	taskType, ok := tasks.ParseTaskType(name)
	if !ok {
		return fmt.Errorf("unknown job %q", name)
	}

	task, err := a.jobs.New(taskType, tasks.ModeFull)
	if err != nil {
		return err
	}

	report, err := a.scheduler.RunTask(ctx, task)
	if report != nil {
		out, _ := json.MarshalIndent(report, "", "  ")
		fmt.Println(string(out))
	}
	if err != nil {
		return err
	}
	if report.Status == runs.StatusFailed {
		return fmt.Errorf("job %s failed", taskType)
	}
	return nil
}

func (a *app) serve(ctx context.Context) error {
	if err := a.scheduler.Start(); err != nil {
		return err
	}
	defer a.scheduler.Stop()

	handler := api.NewHandler(a.newsRepo, a.runRepo, a.jobs, a.scheduler, a.cfg.BaseURL, a.cfg.Version)
	server := api.NewServer(handler, a.cfg.APIAccessKey)

	// Jobs answer synchronously, so the write timeout has to cover a full classify batch.
	httpServer := &http.Server{
		Addr:         ":" + a.cfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 15 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "port", a.cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		slog.Info("Shutdown signal received")
	case serveErr = <-serverErrChan:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped")
	}

	return serveErr
}
