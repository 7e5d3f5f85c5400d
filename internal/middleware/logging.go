package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/creativeops/thumbselect/internal/logging"
	"github.com/creativeops/thumbselect/internal/metrics"
)

// Logger middleware logs request details and records HTTP metrics
func Logger(log *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		metrics.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(latency.Seconds())

		log.Infof("%s %s | status: %d | duration: %v | ip: %s",
			c.Request.Method, path, status, latency, c.ClientIP())
	}
}
