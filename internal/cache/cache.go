package cache

import (
	"bytes"
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hbtasdem/ECE30861-Team4-P2-sub001/internal/monitoring"
)

const DefaultMaxEntries = 1024

type entry struct {
	key       string
	data      []byte
	expiresAt time.Time
}

func (e *entry) expired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// Cache is a bounded TTL cache for stored-rating responses. Scores are never
// cached; persisted ratings do not change, so a hit is always correct until
// it expires. The least recently used entry is evicted once full.
type Cache struct {
	mu         sync.Mutex
	items      map[string]*list.Element
	order      *list.List // front is most recently used
	ttl        time.Duration
	maxEntries int

	hits, misses, evictions int64

	stop chan struct{}
	once sync.Once
}

type Option func(*Cache)

// WithMaxEntries bounds the cache size; n <= 0 keeps the default
func WithMaxEntries(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.maxEntries = n
		}
	}
}

// NewCache creates a cache and starts its janitor, which runs until Close
func NewCache(ttl time.Duration, opts ...Option) *Cache {
	c := newCache(ttl, opts...)
	go c.janitor(cleanupInterval(ttl))
	return c
}

func newCache(ttl time.Duration, opts ...Option) *Cache {
	c := &Cache{
		items:      make(map[string]*list.Element),
		order:      list.New(),
		ttl:        ttl,
		maxEntries: DefaultMaxEntries,
		stop:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func cleanupInterval(ttl time.Duration) time.Duration {
	if ttl <= 0 || ttl > 5*time.Minute {
		return 5 * time.Minute
	}
	return ttl
}

func (c *Cache) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case now := <-ticker.C:
			if n := c.purgeExpired(now); n > 0 {
				slog.Debug("Purged expired cache entries", "count", n)
			}
		}
	}
}

func (c *Cache) purgeExpired(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for el := c.order.Back(); el != nil; {
		prev := el.Prev()
		if el.Value.(*entry).expired(now) {
			c.removeElement(el)
			removed++
		}
		el = prev
	}
	return removed
}

func (c *Cache) removeElement(el *list.Element) {
	c.order.Remove(el)
	delete(c.items, el.Value.(*entry).key)
}

// Close stops the janitor
func (c *Cache) Close() {
	c.once.Do(func() { close(c.stop) })
}

// Key hashes an arbitrary request identity into a cache key
func Key(input string) string {
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:16])
}

// Get returns a live entry and marks it recently used
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		c.misses++
		return nil, false
	}
	e := el.Value.(*entry)
	if e.expired(time.Now()) {
		c.removeElement(el)
		c.misses++
		return nil, false
	}
	c.order.MoveToFront(el)
	c.hits++
	return e.data, true
}

// Set stores data, evicting the least recently used entry when full
func (c *Cache) Set(key string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := time.Now().Add(c.ttl)
	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry)
		e.data, e.expiresAt = data, expiresAt
		c.order.MoveToFront(el)
		return
	}

	c.items[key] = c.order.PushFront(&entry{key: key, data: data, expiresAt: expiresAt})
	for c.order.Len() > c.maxEntries {
		c.removeElement(c.order.Back())
		c.evictions++
	}
}

func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		c.removeElement(el)
	}
}

func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element)
	c.order.Init()
}

// Size counts stored entries, including expired ones not yet purged
func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *Cache) Stats() map[string]interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	expired := 0
	for _, el := range c.items {
		if el.Value.(*entry).expired(now) {
			expired++
		}
	}

	total := c.order.Len()
	return map[string]interface{}{
		"total_items":   total,
		"expired_items": expired,
		"active_items":  total - expired,
		"max_items":     c.maxEntries,
		"hits":          c.hits,
		"misses":        c.misses,
		"evictions":     c.evictions,
		"ttl_seconds":   c.ttl.Seconds(),
	}
}

// Middleware serves cached 200 responses for GET requests under pathPrefix
func (c *Cache) Middleware(metrics *monitoring.Metrics, pathPrefix string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if ctx.Request.Method != http.MethodGet || !strings.HasPrefix(ctx.Request.URL.Path, pathPrefix) {
			ctx.Next()
			return
		}

		key := Key(ctx.Request.URL.RequestURI())
		if data, ok := c.Get(key); ok {
			metrics.IncrementCacheHit()
			ctx.Header("X-Cache", "HIT")
			ctx.Data(http.StatusOK, "application/json; charset=utf-8", data)
			ctx.Abort()
			return
		}
		metrics.IncrementCacheMiss()

		recorder := &bodyRecorder{ResponseWriter: ctx.Writer}
		ctx.Writer = recorder
		ctx.Header("X-Cache", "MISS")
		ctx.Next()

		// handler errors are rendered later by errors.ErrorHandler; the status still reads 200 here
		if recorder.Status() == http.StatusOK && len(ctx.Errors) == 0 && recorder.body.Len() > 0 {
			c.Set(key, bytes.Clone(recorder.body.Bytes()))
		}
	}
}

// bodyRecorder tees the response body so it can be stored after the handler ran
type bodyRecorder struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *bodyRecorder) Write(data []byte) (int, error) {
	w.body.Write(data)
	return w.ResponseWriter.Write(data)
}

func (w *bodyRecorder) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}
