package main

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/hbtasdem/ECE30861-Team4-P2-sub001/docs"
	"github.com/hbtasdem/ECE30861-Team4-P2-sub001/internal/analysis"
	"github.com/hbtasdem/ECE30861-Team4-P2-sub001/internal/cache"
	"github.com/hbtasdem/ECE30861-Team4-P2-sub001/internal/errors"
	"github.com/hbtasdem/ECE30861-Team4-P2-sub001/internal/middleware"
	"github.com/hbtasdem/ECE30861-Team4-P2-sub001/internal/monitoring"
	"github.com/hbtasdem/ECE30861-Team4-P2-sub001/internal/ratelimit"
	"github.com/hbtasdem/ECE30861-Team4-P2-sub001/internal/report"
	"github.com/hbtasdem/ECE30861-Team4-P2-sub001/internal/resilience"
	"github.com/hbtasdem/ECE30861-Team4-P2-sub001/internal/security"
	"github.com/hbtasdem/ECE30861-Team4-P2-sub001/internal/types"
)

const version = "1.0.0"

type scorer interface {
	ScoreURL(ctx context.Context, modelURL, codeURL, datasetURL string) (*analysis.ScoreReport, error)
}

type ratingStore interface {
	SaveRating(ctx context.Context, modelID string, rating report.ModelRating) (report.ModelRating, error)
	GetRating(ctx context.Context, id string) (report.ModelRating, error)
	ListRatings(ctx context.Context, modelID string, limit int) ([]report.ModelRating, error)
	TopRatings(ctx context.Context, limit int) ([]report.ModelRating, error)
	CountRatings(ctx context.Context) (int64, error)
}

type providerHealth interface {
	Health() map[string]*resilience.ServiceHealth
	PoolStats() map[string]interface{}
}

// server holds the handler dependencies. gzip and poolStats are optional.
type server struct {
	scorer    scorer
	store     ratingStore
	providers providerHealth
	metrics   *monitoring.Metrics
	logger    *monitoring.Logger
	limiter   *ratelimit.RateLimiter
	cache     *cache.Cache
	security  *security.SecurityMiddleware
	gzip      *middleware.CompressionMiddleware
	poolStats func() map[string]interface{}
	startedAt time.Time
}

func (s *server) router() *gin.Engine {
	r := gin.New()

	r.Use(errors.RecoveryHandler())
	r.Use(monitoring.RequestIDMiddleware())
	if s.gzip != nil {
		r.Use(s.gzip.Handler())
	}
	r.Use(monitoring.MonitoringMiddleware(s.metrics, s.logger))
	r.Use(monitoring.SecurityMonitoringMiddleware(s.logger))
	r.Use(errors.ErrorHandler())
	r.Use(s.security.CORS())
	r.Use(s.security.SecurityHeaders)
	r.Use(s.security.RequestTimeout)
	r.Use(s.limiter.IPRateLimitMiddleware())

	r.GET("/health", s.handleHealth)
	r.GET("/health/services", s.handleServiceHealth)
	r.GET("/metrics", s.handleMetrics)
	r.GET("/ratelimit/status", s.limiter.HandleRateLimitStatus())
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	rate := r.Group("/rate", s.limiter.EndpointRateLimitMiddleware("rate", 0))
	rate.POST("", s.security.ValidateContentType, s.security.LimitBody, s.security.ValidateRateRequest, s.handleRate)
	rate.GET("", s.security.ValidateRateQuery, s.handleRate)

	ratings := r.Group("/ratings")
	ratings.GET("", s.handleListRatings)
	ratings.GET("/top", s.handleTopRatings)
	ratings.GET("/:id", s.cache.Middleware(s.metrics, "/ratings/"), s.handleGetRating)

	return r
}

// handleRate scores one model. Reports with unavailable metrics are still a 200.
//
//	@Summary	Score a model
//	@Tags		ratings
//	@Accept		json
//	@Produce	json
//	@Param		request	body		types.RateRequest	true	"model and optional links"
//	@Success	200		{object}	report.ModelRating
//	@Failure	400		{object}	map[string]interface{}
//	@Router		/rate [post]
func (s *server) handleRate(c *gin.Context) {
	req := c.MustGet(security.RateRequestKey).(*types.RateRequest)
	ctx := c.Request.Context()

	rep, err := s.scorer.ScoreURL(ctx, req.URL, req.CodeURL, req.DatasetURL)
	if err != nil {
		s.metrics.RecordRating(false)
		_ = c.Error(err)
		return
	}
	s.metrics.RecordRating(true)
	s.logger.ScoreLogger(rep.Ref.ModelID, rep.NetScore, rep.Unavailable, rep.NetLatency)

	rating := report.FromScoreReport(rep)
	saved, err := s.store.SaveRating(ctx, rep.Ref.ModelID, rating)
	if err != nil {
		// the score is still served when history is unavailable
		s.logger.Warn("Failed to persist rating", "model_id", rep.Ref.ModelID, "error", err)
	} else {
		rating = saved
		s.metrics.IncrementRatingSaved()
	}

	c.JSON(http.StatusOK, rating)
}

// handleGetRating returns a stored rating
//
//	@Summary	Stored rating
//	@Tags		ratings
//	@Produce	json
//	@Param		id	path		string	true	"rating id"
//	@Success	200	{object}	report.ModelRating
//	@Failure	404	{object}	map[string]interface{}
//	@Router		/ratings/{id} [get]
func (s *server) handleGetRating(c *gin.Context) {
	rating, err := s.store.GetRating(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, rating)
}

func (s *server) handleListRatings(c *gin.Context) {
	model := c.Query("model")
	if model == "" {
		_ = c.Error(errors.NewValidationError("model query parameter is required"))
		return
	}
	modelID, err := types.ParseModelID(model)
	if err != nil {
		_ = c.Error(errors.NewValidationError("invalid model", err.Error()))
		return
	}
	limit, ok := s.limit(c)
	if !ok {
		return
	}

	ratings, err := s.store.ListRatings(c.Request.Context(), modelID, limit)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, ratings)
}

func (s *server) handleTopRatings(c *gin.Context) {
	limit, ok := s.limit(c)
	if !ok {
		return
	}
	ratings, err := s.store.TopRatings(c.Request.Context(), limit)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, ratings)
}

// limit parses the optional limit query parameter; zero means the store default
func (s *server) limit(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		_ = c.Error(errors.NewValidationError("limit must be a non-negative integer", raw))
		return 0, false
	}
	return n, true
}

// handleHealth reports 503 while any provider is in emergency
func (s *server) handleHealth(c *gin.Context) {
	services := s.providers.Health()

	status, code := "ok", http.StatusOK
	for _, svc := range services {
		if svc.Level == resilience.LevelEmergency {
			status, code = "degraded", http.StatusServiceUnavailable
			break
		}
	}

	c.JSON(code, gin.H{
		"status":         status,
		"version":        version,
		"uptime_seconds": int64(time.Since(s.startedAt).Seconds()),
		"services":       services,
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *server) handleServiceHealth(c *gin.Context) {
	resp := gin.H{
		"services":  s.providers.Health(),
		"pools":     s.providers.PoolStats(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if s.poolStats != nil {
		resp["database"] = s.poolStats()
	}
	c.JSON(http.StatusOK, resp)
}

func (s *server) handleMetrics(c *gin.Context) {
	stats := s.metrics.GetStats()
	stats["cache"] = s.cache.Stats()
	if s.gzip != nil {
		stats["compression"] = s.gzip.GetStats()
	}
	if n, err := s.store.CountRatings(c.Request.Context()); err == nil {
		stats["stored_ratings"] = n
	}
	c.JSON(http.StatusOK, stats)
}
