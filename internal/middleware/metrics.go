package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/parthsharma2/linksight/internal/pkg/metrics"
)

// MetricsMiddleware instruments every HTTP endpoint with request count,
// latency histogram and an in-flight gauge.
func MetricsMiddleware(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		m.HTTPRequestsActive.Inc()
		defer m.HTTPRequestsActive.Dec()

		// FullPath groups all requests to the same route; raw path only
		// for unmatched routes (404s)
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		c.Next()

		duration := time.Since(start).Seconds()
		method := c.Request.Method
		status := strconv.Itoa(c.Writer.Status())

		m.HTTPRequestsTotal.WithLabelValues(path, method, status).Inc()
		m.HTTPRequestDuration.WithLabelValues(path, method).Observe(duration)
	}
}
