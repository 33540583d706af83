package monitoring

import (
	"context"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// Logger provides structured logging with helpers for the scoring pipeline
type Logger struct {
	*slog.Logger
	level *slog.LevelVar
}

// NewLogger writes JSON logs to stdout at info level
func NewLogger() *Logger {
	return NewLoggerWithWriter(os.Stdout, slog.LevelInfo)
}

// NewLoggerWithWriter writes JSON logs to w. The CLI passes stderr so stdout stays
// reserved for results.
func NewLoggerWithWriter(w io.Writer, level slog.Level) *Logger {
	lv := new(slog.LevelVar)
	lv.Set(level)
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       lv,
		AddSource:   true,
		ReplaceAttr: rfc3339Timestamp,
	})
	return &Logger{Logger: slog.New(handler), level: lv}
}

func rfc3339Timestamp(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.TimeKey && len(groups) == 0 {
		return slog.Attr{
			Key:   "timestamp",
			Value: slog.StringValue(a.Value.Time().Format(time.RFC3339)),
		}
	}
	return a
}

// ParseLevel maps debug/info/warn/error to a slog level, defaulting to info
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// RequestLogger logs HTTP request details
func (l *Logger) RequestLogger(method, path, ip, userAgent, requestID string, statusCode int, duration time.Duration) {
	l.Info("HTTP Request",
		"method", method,
		"path", path,
		"ip", ip,
		"user_agent", userAgent,
		"request_id", requestID,
		"status_code", statusCode,
		"duration_ms", duration.Milliseconds(),
	)
}

// ScoreLogger logs a completed scoring request
func (l *Logger) ScoreLogger(modelID string, netScore float64, unavailable []string, duration time.Duration) {
	l.Info("Rating Computed",
		"model_id", modelID,
		"net_score", netScore,
		"unavailable", unavailable,
		"unavailable_count", len(unavailable),
		"duration_ms", duration.Milliseconds(),
	)
}

// EvaluatorLogger logs one metric evaluation at debug level
func (l *Logger) EvaluatorLogger(metric string, score float64, available bool, duration time.Duration) {
	l.Debug("Metric Evaluated",
		"metric", metric,
		"score", score,
		"available", available,
		"duration_ms", duration.Milliseconds(),
	)
}

// APIErrorLogger logs API errors with the caller's location
func (l *Logger) APIErrorLogger(err error, method, path, ip string, statusCode int) {
	caller := "unknown"
	if _, file, line, ok := runtime.Caller(1); ok {
		caller = file + ":" + strconv.Itoa(line)
	}

	l.Error("API Error",
		"error", err.Error(),
		"method", method,
		"path", path,
		"ip", ip,
		"status_code", statusCode,
		"caller", caller,
	)
}

// ExternalAPILogger logs provider calls; failures are logged at warn level
func (l *Logger) ExternalAPILogger(apiName, operation, target string, duration time.Duration, err error) {
	level := slog.LevelInfo
	attrs := []any{
		"api_name", apiName,
		"operation", operation,
		"target", target,
		"duration_ms", duration.Milliseconds(),
		"success", err == nil,
	}
	if err != nil {
		level = slog.LevelWarn
		attrs = append(attrs, "error", err.Error())
	}
	l.Log(context.Background(), level, "External API Call", attrs...)
}

// PerformanceLogger logs performance metrics
func (l *Logger) PerformanceLogger(metric string, value float64, unit string) {
	l.Info("Performance Metric",
		"metric", metric,
		"value", value,
		"unit", unit,
	)
}

// SetLevel changes the level without losing the output or timestamp format
func (l *Logger) SetLevel(level slog.Level) {
	l.level.Set(level)
}
