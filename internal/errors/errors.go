package errors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/gin-gonic/gin"
)

// ErrorCategory classifies an error for status mapping, logging and retry decisions
type ErrorCategory string

const (
	CategoryValidation    ErrorCategory = "validation"
	CategoryNetwork       ErrorCategory = "network"
	CategoryTimeout       ErrorCategory = "timeout"
	CategoryRateLimit     ErrorCategory = "rate_limit"
	CategoryInternal      ErrorCategory = "internal"
	CategoryExternalAPI   ErrorCategory = "external_api"
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryNotFound      ErrorCategory = "not_found"
)

// Label is the stable code rendered in front of error messages.
func (c ErrorCategory) Label() string {
	switch c {
	case CategoryValidation:
		return "VALIDATION_ERROR"
	case CategoryNetwork:
		return "NETWORK_ERROR"
	case CategoryTimeout:
		return "TIMEOUT_ERROR"
	case CategoryRateLimit:
		return "RATE_LIMIT_EXCEEDED"
	case CategoryExternalAPI:
		return "UPSTREAM_ERROR"
	case CategoryConfiguration:
		return "CONFIGURATION_ERROR"
	case CategoryNotFound:
		return "NOT_FOUND"
	default:
		return "INTERNAL_ERROR"
	}
}

// Retryable reports whether a provider call failing this way may succeed later.
func (c ErrorCategory) Retryable() bool {
	switch c {
	case CategoryNetwork, CategoryTimeout, CategoryExternalAPI, CategoryRateLimit:
		return true
	}
	return false
}

func (c ErrorCategory) status() int {
	switch c {
	case CategoryValidation:
		return http.StatusBadRequest
	case CategoryNetwork, CategoryExternalAPI:
		return http.StatusBadGateway
	case CategoryTimeout:
		return http.StatusGatewayTimeout
	case CategoryRateLimit:
		return http.StatusTooManyRequests
	case CategoryNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (c ErrorCategory) builder() *errbuilder.ErrBuilder {
	b := errbuilder.New()
	switch c {
	case CategoryValidation:
		return b.WithCode(errbuilder.CodeInvalidArgument)
	case CategoryNetwork, CategoryExternalAPI:
		return b.WithCode(errbuilder.CodeUnavailable)
	case CategoryTimeout:
		return b.WithCode(errbuilder.CodeDeadlineExceeded)
	case CategoryRateLimit:
		return b.WithCode(errbuilder.CodeResourceExhausted)
	case CategoryConfiguration:
		return b.WithCode(errbuilder.CodeFailedPrecondition)
	case CategoryNotFound:
		return b.WithCode(errbuilder.CodeNotFound)
	default:
		return b.WithCode(errbuilder.CodeInternal)
	}
}

// AppError wraps an errbuilder error with the HTTP and logging context the service needs
type AppError struct {
	*errbuilder.ErrBuilder
	Category   ErrorCategory `json:"category"`
	HTTPStatus int           `json:"http_status"`
	Timestamp  time.Time     `json:"timestamp"`
	RequestID  string        `json:"request_id,omitempty"`
	StackTrace string        `json:"stack_trace,omitempty"`
}

func (e *AppError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Category.Label(), e.ErrBuilder.Msg)
}

func (e *AppError) Unwrap() error {
	return e.ErrBuilder.Unwrap()
}

// NewAppError creates an AppError from errbuilder with additional context
func NewAppError(builder *errbuilder.ErrBuilder, category ErrorCategory, httpStatus int) *AppError {
	return &AppError{
		ErrBuilder: builder,
		Category:   category,
		HTTPStatus: httpStatus,
		Timestamp:  time.Now(),
	}
}

// build assembles an AppError of the given category. Empty detail values are dropped.
func build(category ErrorCategory, msg string, cause error, details ...string) *AppError {
	b := category.builder().WithMsg(msg)

	errorMap := errbuilder.ErrorMap{}
	set := false
	for i := 0; i+1 < len(details); i += 2 {
		if details[i+1] != "" {
			errorMap.Set(details[i], errors.New(details[i+1]))
			set = true
		}
	}
	if set {
		b = b.WithDetails(errbuilder.NewErrDetails(errorMap))
	}
	if cause != nil {
		b = b.WithCause(cause)
	}
	return NewAppError(b, category, category.status())
}

// NewValidationError reports bad caller input. The first detail, if any, is attached.
func NewValidationError(message string, details ...interface{}) *AppError {
	detail := ""
	if len(details) > 0 {
		detail = fmt.Sprintf("%v", details[0])
	}
	return build(CategoryValidation, message, nil, "validation_details", detail)
}

func NewNetworkError(message string, cause error) *AppError {
	return build(CategoryNetwork, message, cause)
}

func NewTimeoutError(message string, cause error) *AppError {
	return build(CategoryTimeout, message, cause)
}

// NewRateLimitError reports local or upstream throttling; retryAfter may be empty
func NewRateLimitError(retryAfter string) *AppError {
	return build(CategoryRateLimit, "Rate limit exceeded", nil, "retry_after", retryAfter)
}

// NewExternalAPIError reports an unexpected answer from a metadata provider
func NewExternalAPIError(apiName string, cause error) *AppError {
	return build(CategoryExternalAPI, apiName+" API error", cause, "api_name", apiName)
}

// NewInternalError hides message from the client; it is kept as a detail for the logs.
// Test and debug builds also capture the stack.
func NewInternalError(message string, cause error) *AppError {
	appErr := build(CategoryInternal, "Internal server error", cause, "internal_details", message)
	if gin.Mode() != gin.ReleaseMode {
		appErr.StackTrace = captureStackTrace()
	}
	return appErr
}

func NewConfigurationError(message string, cause error) *AppError {
	return build(CategoryConfiguration, "Configuration error", cause, "config_details", message)
}

// NewNotFoundError reports a missing upstream artifact or stored rating
func NewNotFoundError(resource, id string) *AppError {
	return build(CategoryNotFound, fmt.Sprintf("%s %q not found", resource, id), nil, "resource", resource)
}

// NewUnscorableError is returned when an artifact reference cannot be resolved to a model
func NewUnscorableError(input string, cause error) *AppError {
	return build(CategoryValidation, "cannot score artifact", cause, "input", input)
}

// NewValidationErrorWithMap collects several field problems into one error
func NewValidationErrorWithMap(validationErrors map[string]string) *AppError {
	errMap := errbuilder.ErrorMap{}
	for field, message := range validationErrors {
		errMap.Set(field, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(message))
	}

	b := CategoryValidation.builder().
		WithMsg("Multiple validation errors").
		WithDetails(errbuilder.NewErrDetails(errMap))
	return NewAppError(b, CategoryValidation, CategoryValidation.status())
}

// FromHTTPStatus maps a provider response status onto an AppError. It returns
// nil for 2xx. Gated repositories answer 401/403 to anonymous callers and are
// treated as absent unless the provider uses 403 for throttling.
func FromHTTPStatus(api string, status int, resource, id, retryAfter string, throttles403 bool) *AppError {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusTooManyRequests, status == http.StatusForbidden && throttles403:
		return NewRateLimitError(retryAfter)
	case status == http.StatusNotFound, status == http.StatusUnauthorized, status == http.StatusForbidden:
		return NewNotFoundError(resource, id)
	default:
		return NewExternalAPIError(api, fmt.Errorf("status %d for %s %s", status, resource, id))
	}
}

func captureStackTrace() string {
	buf := make([]byte, 4096)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}

// ErrorHandler renders the last error attached to the context after the handler chain ran
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		appErr := ToAppError(c.Errors.Last().Err)
		LogError(c, appErr)
		c.JSON(appErr.HTTPStatus, appErr)
	}
}

// RecoveryHandler turns panics into internal errors with a captured stack
func RecoveryHandler() gin.HandlerFunc {
	return gin.RecoveryWithWriter(nil, func(c *gin.Context, recovered interface{}) {
		appErr := NewInternalError(fmt.Sprintf("Panic recovered: %v", recovered), fmt.Errorf("%v", recovered))
		appErr.StackTrace = captureStackTrace()

		LogError(c, appErr)
		c.AbortWithStatusJSON(appErr.HTTPStatus, appErr)
	})
}

// ToAppError converts any error to an AppError
func ToAppError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	var ebErr *errbuilder.ErrBuilder
	if errors.As(err, &ebErr) {
		return NewAppError(ebErr, CategoryInternal, http.StatusInternalServerError)
	}

	// context errors first: their messages also contain "deadline exceeded"
	switch {
	case errors.Is(err, context.Canceled):
		return NewTimeoutError("Request cancelled", err)
	case errors.Is(err, context.DeadlineExceeded):
		return NewTimeoutError("Request deadline exceeded", err)
	}

	msg := err.Error()
	for _, s := range []string{"connection refused", "no such host", "network is unreachable", "connection reset"} {
		if strings.Contains(msg, s) {
			return NewNetworkError("Network connection failed", err)
		}
	}
	if strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded") {
		return NewTimeoutError("Request timeout", err)
	}

	return NewInternalError("An unexpected error occurred", err)
}

// LogError logs an error at a level chosen by its category
func LogError(c *gin.Context, err *AppError) {
	requestID := c.GetString("request_id")
	if requestID == "" {
		requestID = c.GetHeader("X-Request-ID")
	}
	err.RequestID = requestID

	entry := slog.With(
		"error_category", err.Category,
		"error_code", err.ErrBuilder.ErrCode(),
		"http_status", err.HTTPStatus,
		"ip", c.ClientIP(),
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"request_id", requestID,
	)

	var attrs []any
	if details := err.ErrBuilder.Details.Errors; len(details) > 0 {
		attrs = append(attrs, "details", details)
	}
	if cause := err.ErrBuilder.Unwrap(); cause != nil {
		attrs = append(attrs, "cause", cause)
	}

	msg := err.ErrBuilder.Msg
	switch err.Category {
	case CategoryValidation, CategoryRateLimit, CategoryNotFound:
		entry.Warn(msg, attrs...)
	case CategoryNetwork, CategoryTimeout, CategoryExternalAPI:
		entry.Info(msg, attrs...)
	default:
		entry.Error(msg, attrs...)
	}

	if err.StackTrace != "" && gin.Mode() != gin.ReleaseMode {
		entry.Debug("stack_trace", "trace", err.StackTrace)
	}
}

// IsRetryableError checks if an error should trigger a retry
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	return ToAppError(err).Category.Retryable()
}

// WrapError wraps an error with additional context
func WrapError(err error, message string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(message, args...), err)
}

// SafeClose closes a resource and logs any error
func SafeClose(closer interface{ Close() error }, resourceName string) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		slog.Warn("Failed to close resource", "resource", resourceName, "error", err)
	}
}

// SafeExecute runs fn and hands a recovered panic to panicHandler
func SafeExecute(fn func(), panicHandler func(interface{})) {
	defer func() {
		if r := recover(); r != nil {
			if panicHandler != nil {
				panicHandler(r)
			} else {
				slog.Error("Panic in safe execution", "panic", r)
			}
		}
	}()

	fn()
}
