package main

import (
	"context"
	stderrors "errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hbtasdem/ECE30861-Team4-P2-sub001/internal/adapters"
	"github.com/hbtasdem/ECE30861-Team4-P2-sub001/internal/analysis"
	"github.com/hbtasdem/ECE30861-Team4-P2-sub001/internal/cache"
	"github.com/hbtasdem/ECE30861-Team4-P2-sub001/internal/config"
	"github.com/hbtasdem/ECE30861-Team4-P2-sub001/internal/database"
	"github.com/hbtasdem/ECE30861-Team4-P2-sub001/internal/middleware"
	"github.com/hbtasdem/ECE30861-Team4-P2-sub001/internal/monitoring"
	"github.com/hbtasdem/ECE30861-Team4-P2-sub001/internal/ratelimit"
	"github.com/hbtasdem/ECE30861-Team4-P2-sub001/internal/resilience"
	"github.com/hbtasdem/ECE30861-Team4-P2-sub001/internal/security"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Server exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load("")
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := monitoring.NewLoggerWithWriter(os.Stdout, monitoring.ParseLevel(cfg.LogLevel))
	slog.SetDefault(logger.Logger)
	if logger.Enabled(context.Background(), slog.LevelDebug) {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := monitoring.NewMetrics()

	db, err := database.NewDB(cfg.DataDir)
	if err != nil {
		return err
	}
	defer db.Close()

	registry := adapters.NewHuggingFaceAdapter(cfg.HFBaseURL, cfg.HFToken, nil)
	source, err := adapters.NewGitHubAdapter(adapters.GitHubConfig{
		Token:        cfg.GitHubToken,
		BaseURL:      cfg.GitHubAPIURL,
		PRSampleSize: cfg.ReviewSampleSize,
	}, nil)
	if err != nil {
		return err
	}
	if cfg.GitHubToken == "" {
		logger.Warn("GITHUB_TOKEN not set, GitHub requests are unauthenticated and heavily rate limited")
	}

	hub := adapters.NewHub(registry, source,
		adapters.WithDegradationManager(resilience.NewDegradationManager(cfg.Degradation)),
		adapters.WithMetrics(metrics),
		adapters.WithLogger(logger),
	)
	defer hub.Close()
	hub.StartHealthChecks(ctx)

	aggregator := analysis.NewAggregator(hub, cfg.AnalysisWeights(),
		analysis.WithEvaluatorTimeout(cfg.EvaluatorTimeout),
		analysis.WithRecorder(metrics),
		analysis.WithLogger(logger.Logger),
	)

	redisClient, err := ratelimit.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Warn("Redis unavailable, rate limiting in memory", "error", err)
	}
	defer redisClient.Close()

	limiter := ratelimit.NewRateLimiter(redisClient, ratelimit.Config{
		IPLimitPerMin:   cfg.RateLimitPerMin,
		RateLimitPerMin: max(cfg.RateLimitPerMin/6, 1),
	}, metrics)
	defer limiter.Close()

	ratingCache := cache.NewCache(cfg.CacheTTL)
	defer ratingCache.Close()

	srv := &server{
		scorer:    aggregator,
		store:     database.NewRepository(db),
		providers: hub,
		metrics:   metrics,
		logger:    logger,
		limiter:   limiter,
		cache:     ratingCache,
		security: security.NewSecurityMiddleware(security.SecurityConfig{
			AllowedOrigins: cfg.AllowedOrigins,
			RequestTimeout: cfg.RequestTimeout,
		}),
		gzip:      middleware.NewCompressionMiddleware(middleware.DefaultCompressionConfig()),
		poolStats: db.GetPoolStats,
		startedAt: time.Now(),
	}

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting server", "port", cfg.Port, "version", version)
		if err := httpServer.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("Server exited")
	return nil
}
