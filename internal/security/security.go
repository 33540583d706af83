package security

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/hbtasdem/ECE30861-Team4-P2-sub001/internal/errors"
	"github.com/hbtasdem/ECE30861-Team4-P2-sub001/internal/types"
)

// RateRequestKey is the context key holding the validated *types.RateRequest
const RateRequestKey = "rate_request"

// SecurityConfig holds security configuration
type SecurityConfig struct {
	MaxInputLength int           `json:"max_input_length"`
	MaxBodyBytes   int64         `json:"max_body_bytes"`
	AllowedOrigins []string      `json:"allowed_origins"`
	TrustedProxies []string      `json:"trusted_proxies"`
	RequestTimeout time.Duration `json:"request_timeout"`
}

// DefaultSecurityConfig returns secure defaults
func DefaultSecurityConfig() SecurityConfig {
	return SecurityConfig{
		MaxInputLength: 512,
		MaxBodyBytes:   16 << 10,
		AllowedOrigins: []string{"http://localhost:3000"},
		TrustedProxies: []string{"127.0.0.1", "::1"},
		RequestTimeout: 30 * time.Second,
	}
}

// SecurityMiddleware bundles request hardening handlers
type SecurityMiddleware struct {
	config SecurityConfig
}

// NewSecurityMiddleware fills zero fields from DefaultSecurityConfig
func NewSecurityMiddleware(config SecurityConfig) *SecurityMiddleware {
	def := DefaultSecurityConfig()
	if config.MaxInputLength <= 0 {
		config.MaxInputLength = def.MaxInputLength
	}
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = def.MaxBodyBytes
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = def.RequestTimeout
	}
	return &SecurityMiddleware{config: config}
}

func (sm *SecurityMiddleware) Config() SecurityConfig { return sm.config }

// ValidateInput rejects oversized, non-UTF-8 or markup-bearing input
func (sm *SecurityMiddleware) ValidateInput(input string) error {
	if len(input) > sm.config.MaxInputLength {
		return fmt.Errorf("input exceeds maximum length of %d characters", sm.config.MaxInputLength)
	}
	if strings.ContainsRune(input, 0) {
		return fmt.Errorf("input contains invalid characters")
	}
	if !utf8.ValidString(input) {
		return fmt.Errorf("input contains invalid UTF-8 encoding")
	}

	lower := strings.ToLower(input)
	for _, pattern := range []string{"<script", "javascript:", "\r", "\n"} {
		if strings.Contains(lower, pattern) {
			return fmt.Errorf("input contains suspicious patterns")
		}
	}
	return nil
}

// ValidateURL checks an optional code or dataset link. Only http(s) URLs with
// a host are accepted.
func (sm *SecurityMiddleware) ValidateURL(field, raw string) error {
	if raw == "" {
		return nil
	}
	if err := sm.ValidateInput(raw); err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: malformed url", field)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s: scheme must be http or https", field)
	}
	if u.Host == "" {
		return fmt.Errorf("%s: missing host", field)
	}
	return nil
}

// SanitizeInput trims the input and collapses internal whitespace runs
func (sm *SecurityMiddleware) SanitizeInput(input string) string {
	return strings.Join(strings.Fields(input), " ")
}

// SecurityHeaders adds security headers to every response
func (sm *SecurityMiddleware) SecurityHeaders(c *gin.Context) {
	c.Header("X-Content-Type-Options", "nosniff")
	c.Header("X-Frame-Options", "DENY")
	c.Header("Referrer-Policy", "no-referrer")
	c.Header("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
	c.Header("Permissions-Policy", "geolocation=(), microphone=(), camera=()")
	if c.Request.TLS != nil {
		c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
	}
	c.Next()
}

// ValidateContentType requires a JSON body on requests that carry one
func (sm *SecurityMiddleware) ValidateContentType(c *gin.Context) {
	if c.Request.ContentLength == 0 || c.Request.Method == http.MethodGet {
		c.Next()
		return
	}

	contentType := strings.ToLower(c.GetHeader("Content-Type"))
	if !strings.HasPrefix(contentType, "application/json") {
		c.AbortWithStatusJSON(http.StatusUnsupportedMediaType, gin.H{
			"error": "unsupported content type, expected application/json",
		})
		return
	}
	c.Next()
}

// LimitBody caps the request body size
func (sm *SecurityMiddleware) LimitBody(c *gin.Context) {
	if c.Request.ContentLength > sm.config.MaxBodyBytes {
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{
			"error": fmt.Sprintf("request body exceeds %d bytes", sm.config.MaxBodyBytes),
		})
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, sm.config.MaxBodyBytes)
	c.Next()
}

// RequestTimeout bounds the request context
func (sm *SecurityMiddleware) RequestTimeout(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), sm.config.RequestTimeout)
	defer cancel()

	c.Request = c.Request.WithContext(ctx)
	c.Header("X-Timeout", strconv.Itoa(int(sm.config.RequestTimeout.Seconds())))
	c.Next()
}

// ValidateRateRequest binds and checks a JSON scoring request. On success
// the sanitized request is stored under RateRequestKey.
func (sm *SecurityMiddleware) ValidateRateRequest(c *gin.Context) {
	var req types.RateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWith(c, errors.NewValidationError("invalid request body", err.Error()), nil)
		return
	}
	sm.accept(c, &req)
}

// ValidateRateQuery is ValidateRateRequest for query string requests
func (sm *SecurityMiddleware) ValidateRateQuery(c *gin.Context) {
	var req types.RateRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		abortWith(c, errors.NewValidationError("invalid query", err.Error()), nil)
		return
	}
	sm.accept(c, &req)
}

func (sm *SecurityMiddleware) accept(c *gin.Context, req *types.RateRequest) {
	if problems := sm.CheckRateRequest(req); len(problems) > 0 {
		abortWith(c, errors.NewValidationErrorWithMap(problems), problems)
		return
	}
	c.Set(RateRequestKey, req)
	c.Next()
}

// CheckRateRequest sanitizes req in place and returns problems keyed by field
func (sm *SecurityMiddleware) CheckRateRequest(req *types.RateRequest) map[string]string {
	req.URL = sm.SanitizeInput(req.URL)
	req.CodeURL = strings.TrimSpace(req.CodeURL)
	req.DatasetURL = strings.TrimSpace(req.DatasetURL)

	problems := make(map[string]string)
	if req.URL == "" {
		problems["url"] = "is required"
	} else if err := sm.ValidateInput(req.URL); err != nil {
		problems["url"] = err.Error()
	} else if _, err := types.ParseModelID(req.URL); err != nil {
		problems["url"] = err.Error()
	}
	if err := sm.ValidateURL("code_url", req.CodeURL); err != nil {
		problems["code_url"] = err.Error()
	}
	if err := sm.ValidateURL("dataset_url", req.DatasetURL); err != nil {
		problems["dataset_url"] = err.Error()
	}
	return problems
}

// CORS returns the cross-origin handler for the configured origins
func (sm *SecurityMiddleware) CORS() gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "X-Request-ID"},
		ExposeHeaders:    []string{"X-Request-ID", "X-Cache", "X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if len(sm.config.AllowedOrigins) == 0 || (len(sm.config.AllowedOrigins) == 1 && sm.config.AllowedOrigins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = sm.config.AllowedOrigins
	}
	return cors.New(cfg)
}

func abortWith(c *gin.Context, appErr *errors.AppError, fields map[string]string) {
	body := gin.H{"error": appErr.Error(), "category": appErr.Category}
	if len(fields) > 0 {
		body["fields"] = fields
	}
	c.AbortWithStatusJSON(appErr.HTTPStatus, body)
}
