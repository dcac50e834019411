package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"llm-event-tracker/internal/feed"
	"llm-event-tracker/internal/interfaces"
	"llm-event-tracker/internal/llm/claude"
	"llm-event-tracker/internal/llm/noop"
	"llm-event-tracker/internal/llm/openai"
	"llm-event-tracker/internal/logger"
	"llm-event-tracker/internal/settlelog"
	"llm-event-tracker/internal/store"
	"llm-event-tracker/internal/trace"
)

// initializeSystem loads the environment, config, logger, and tracer.
func initializeSystem(configPath string) (*store.Config, error) {
	_ = godotenv.Load()

	cfg, err := store.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logCfg := logger.LoadConfigFromEnv()
	if logCfg.File == "" {
		logCfg.File = cfg.Server.LogFile
	}
	if err := logger.InitWithConfig(logCfg); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	if err := trace.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize tracer: %v\n", err)
	}

	return cfg, nil
}

// compressOldLogs compresses old audit files if retention is configured.
func compressOldLogs(ctx context.Context) {
	if v := os.Getenv("TRACKER_LOG_RETENTION_DAYS"); v != "" {
		var n int
		fmt.Sscanf(v, "%d", &n)
		if err := settlelog.CompressOlder(n); err != nil {
			logger.Warn(ctx, "Failed to compress old audit logs", "error", err)
		}
	}
}

// initializeFeed builds the Reddit feed client with its HTML fallback.
func initializeFeed(cfg *store.Config) interfaces.FeedClient {
	primary := feed.NewRedditClient(feed.RedditParams{
		UserAgent:       os.Getenv("REDDIT_USER_AGENT"),
		RateLimitCalls:  cfg.Reddit.RateLimitCalls,
		RateLimitPeriod: time.Duration(cfg.Reddit.RateLimitPeriod) * time.Second,
	})
	return &feed.FallbackClient{
		Primary:  primary,
		Fallback: feed.NewScraper(30 * time.Second),
	}
}

// initializeAnalyzer picks the sentiment analyzer per the configured
// provider, falling back to the no-op analyzer.
func initializeAnalyzer(ctx context.Context, cfg *store.Config) interfaces.Analyzer {
	switch cfg.LLM.Provider {
	case "CLAUDE":
		analyzer, err := claude.NewAnalyzer(cfg)
		if err != nil {
			logger.ErrorWithErr(ctx, "Claude analyzer unavailable, using noop", err)
			return noop.NewAnalyzer()
		}
		return analyzer
	default:
		logger.Warn(ctx, "No LLM provider configured - news will not be analyzed")
		return noop.NewAnalyzer()
	}
}

// initializeDiscoverer picks the event-discovery collaborator.
func initializeDiscoverer(ctx context.Context, cfg *store.Config) interfaces.Discoverer {
	switch cfg.LLM.Provider {
	case "CLAUDE", "OPENAI":
		discoverer, err := openai.NewDiscoverer(cfg)
		if err != nil {
			logger.ErrorWithErr(ctx, "OpenAI discoverer unavailable, using noop", err)
			return noop.NewDiscoverer()
		}
		return discoverer
	default:
		return noop.NewDiscoverer()
	}
}
