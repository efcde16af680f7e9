package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dkv-labs/pps-api/internal/service"
)

// Metrics records per-request counters and latency. The route template is
// preferred over the raw path so parameterized routes share one label.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metricsSvc == nil {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
