package mw

import (
	"bytes"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"

	"court-watch-backend/internal/metrics"
)

const cacheHeader = "X-Cache"

type cachedResponse struct {
	status  int
	headers http.Header
	body    []byte
}

type bodyCacheWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w bodyCacheWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w bodyCacheWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Cache serves repeated GET requests from memory. Responses are keyed by the
// request URI, so callers must not vary them by identity. Only 2xx responses
// are stored, and a handler can opt out by setting Cache-Control: no-store.
// X-Cache tells clients whether the body came from memory.
func Cache(store *cache.Cache, duration time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		key := c.Request.URL.RequestURI()
		if resp, found := store.Get(key); found {
			metrics.ResponseCacheTotal.WithLabelValues("hit").Inc()
			cached := resp.(cachedResponse)
			for k, v := range cached.headers {
				c.Writer.Header()[k] = v
			}
			c.Writer.Header().Set(cacheHeader, "HIT")
			c.Writer.WriteHeader(cached.status)
			c.Writer.Write(cached.body)
			c.Abort()
			return
		}

		c.Writer.Header().Set(cacheHeader, "MISS")
		blw := &bodyCacheWriter{body: bytes.NewBuffer(nil), ResponseWriter: c.Writer}
		c.Writer = blw

		c.Next()

		status := blw.Status()
		if status < 200 || status >= 300 || strings.Contains(blw.Header().Get("Cache-Control"), "no-store") {
			metrics.ResponseCacheTotal.WithLabelValues("bypass").Inc()
			return
		}
		metrics.ResponseCacheTotal.WithLabelValues("miss").Inc()
		headers := blw.Header().Clone()
		headers.Del(cacheHeader)
		store.Set(key, cachedResponse{status: status, headers: headers, body: blw.body.Bytes()}, duration)
	}
}

// Invalidate drops cached responses for the given request URIs, or every
// entry when none are given.
func Invalidate(store *cache.Cache, uris ...string) {
	if len(uris) == 0 {
		store.Flush()
		return
	}
	for _, uri := range uris {
		store.Delete(uri)
	}
}
