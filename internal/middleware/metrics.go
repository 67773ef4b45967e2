package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xxiimcha/spcc-backend-sub000/internal/service"
)

const responseMetaKey = "response_meta"

// Metrics records method, route and status for every request. Unmatched routes are
// labelled by their raw path.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Set(responseMetaKey, map[string]interface{}{"started_at": start.UTC()})
		c.Next()

		duration := time.Since(start)
		if meta := ExtractMeta(c); meta != nil {
			meta["processing_time_ms"] = duration.Milliseconds()
		}
		if metricsSvc == nil {
			return
		}
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, path, c.Writer.Status(), duration)
	}
}

// ExtractMeta returns response metadata gathered for the request so far, or nil outside
// the Metrics middleware. Long-running handlers attach it to their envelope.
func ExtractMeta(c *gin.Context) map[string]interface{} {
	if c == nil {
		return nil
	}
	raw, ok := c.Get(responseMetaKey)
	if !ok {
		return nil
	}
	meta, ok := raw.(map[string]interface{})
	if !ok {
		return nil
	}
	if started, ok := meta["started_at"].(time.Time); ok {
		meta["elapsed_ms"] = time.Since(started).Milliseconds()
	}
	return meta
}
