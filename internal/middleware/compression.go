package middleware

import (
	"compress/gzip"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

// CompressionConfig holds configuration for response compression
type CompressionConfig struct {
	Level        int      // gzip level, 1-9
	ContentTypes []string // content type prefixes worth compressing
}

// DefaultCompressionConfig compresses JSON and NDJSON at a balanced level
func DefaultCompressionConfig() CompressionConfig {
	return CompressionConfig{
		Level:        gzip.DefaultCompression,
		ContentTypes: []string{"application/json", "application/x-ndjson", "text/plain"},
	}
}

// CompressionMiddleware gzips responses for clients that accept it
type CompressionMiddleware struct {
	config CompressionConfig
	pool   sync.Pool

	totalRequests      int64
	compressedRequests int64
	uncompressedBytes  int64
}

func NewCompressionMiddleware(config CompressionConfig) *CompressionMiddleware {
	if config.Level < gzip.HuffmanOnly || config.Level > gzip.BestCompression {
		config.Level = gzip.DefaultCompression
	}
	cm := &CompressionMiddleware{config: config}
	cm.pool.New = func() interface{} {
		gz, _ := gzip.NewWriterLevel(nil, config.Level)
		return gz
	}
	return cm
}

// Handler returns the gin middleware. The compression decision is made on the
// first body write, once the handler has set the content type.
func (cm *CompressionMiddleware) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		atomic.AddInt64(&cm.totalRequests, 1)
		if c.Request.Method == http.MethodHead || !strings.Contains(c.GetHeader("Accept-Encoding"), "gzip") {
			c.Next()
			return
		}

		original := c.Writer
		gz := cm.pool.Get().(*gzip.Writer)
		gz.Reset(original)
		w := &gzipResponseWriter{ResponseWriter: original, gz: gz, cm: cm}

		c.Writer = w
		c.Header("Vary", "Accept-Encoding")
		defer func() {
			if w.compressing {
				_ = gz.Close()
				atomic.AddInt64(&cm.compressedRequests, 1)
			}
			cm.pool.Put(gz)
			c.Writer = original
		}()

		c.Next()
	}
}

func (cm *CompressionMiddleware) shouldCompress(status int, contentType string) bool {
	if status == http.StatusNoContent || status == http.StatusNotModified || status < http.StatusOK {
		return false
	}
	for _, ct := range cm.config.ContentTypes {
		if strings.HasPrefix(contentType, ct) {
			return true
		}
	}
	return false
}

// GetStats returns compression statistics
func (cm *CompressionMiddleware) GetStats() map[string]interface{} {
	return map[string]interface{}{
		"total_requests":      atomic.LoadInt64(&cm.totalRequests),
		"compressed_requests": atomic.LoadInt64(&cm.compressedRequests),
		"uncompressed_bytes":  atomic.LoadInt64(&cm.uncompressedBytes),
		"level":               cm.config.Level,
	}
}

type gzipResponseWriter struct {
	gin.ResponseWriter
	gz          *gzip.Writer
	cm          *CompressionMiddleware
	decided     bool
	compressing bool
}

func (w *gzipResponseWriter) decide() {
	if w.decided {
		return
	}
	w.decided = true
	if w.cm.shouldCompress(w.Status(), w.Header().Get("Content-Type")) {
		w.compressing = true
		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Del("Content-Length")
	}
}

func (w *gzipResponseWriter) Write(data []byte) (int, error) {
	w.decide()
	if !w.compressing {
		return w.ResponseWriter.Write(data)
	}
	atomic.AddInt64(&w.cm.uncompressedBytes, int64(len(data)))
	return w.gz.Write(data)
}

func (w *gzipResponseWriter) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}

func (w *gzipResponseWriter) Flush() {
	if w.compressing {
		_ = w.gz.Flush()
	}
	w.ResponseWriter.Flush()
}
