package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/erp-timetable-proxy/internal/service"
)

const unmatchedRoute = "unmatched"

// Metrics returns middleware that records request metrics on the provided service.
// Requests that match no route share one label so scanners cannot inflate cardinality.
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
			path = unmatchedRoute
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
