package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"llm-event-tracker/internal/engine"
	"llm-event-tracker/internal/logger"
	"llm-event-tracker/internal/portfolio"
	"llm-event-tracker/internal/repo"
	"llm-event-tracker/internal/server"
	"llm-event-tracker/internal/trace"
)

func main() {
	cfg, err := initializeSystem("config.yaml")
	if err != nil {
		log.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info(ctx, "Starting event tracker")
	compressOldLogs(ctx)

	app := repo.NewAppRepository(cfg.MaxEvents, cfg.MaxNews, cfg.Portfolio.InitialValue)

	_, statErr := os.Stat(cfg.StateFile)
	snapshotExists := statErr == nil
	if err := app.Load(ctx, cfg.StateFile); err != nil {
		logger.ErrorWithErr(ctx, "Failed to load snapshot", err)
	}

	// the manager resumes from the persisted value, not the configured seed
	pm := portfolio.NewManager(app.Portfolio.Get().CurrentValue, cfg.Portfolio.PointsPerCorrect, cfg.Portfolio.PointsPerIncorrect)

	eng := engine.New(cfg,
		app,
		pm,
		initializeFeed(cfg),
		initializeAnalyzer(ctx, cfg),
		initializeDiscoverer(ctx, cfg),
	)

	// seed events from config only on a truly fresh start
	if !snapshotExists {
		eng.SeedFromConfig(ctx)
	}

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: server.NewRouter(server.NewHandler(app, pm, cfg)),
	}
	go func() {
		logger.Info(ctx, "Read API listening", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.ErrorWithErr(ctx, "Read API server failed", err)
		}
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigc
		logger.Info(context.Background(), "Signal received, shutting down")
		cancel()
	}()

	// blocks until cancelled; performs the final mandatory save itself
	eng.Run(ctx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.ErrorWithErr(shutdownCtx, "Read API shutdown failed", err)
	}
	if err := trace.Shutdown(shutdownCtx); err != nil {
		logger.ErrorWithErr(shutdownCtx, "Tracer shutdown failed", err)
	}
}
