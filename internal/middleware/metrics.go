package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/progdesk/comms/pkg/metrics"
)

// Metrics records per-route request latency. Health and metrics endpoints are
// excluded so scrapes do not drown out the API series, and unmatched paths
// collapse into one label to keep cardinality bounded.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		switch route {
		case "/health", "/metrics":
			c.Next()
			return
		case "":
			route = "unmatched"
		}

		start := time.Now()
		c.Next()

		metrics.APILatency.WithLabelValues(
			c.Request.Method,
			route,
			strconv.Itoa(c.Writer.Status()),
		).Observe(time.Since(start).Seconds())
	}
}
