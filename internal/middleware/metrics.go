package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-archive-api/internal/service"
)

// unmatchedRoute labels requests no route matched so arbitrary URLs cannot grow the path label set.
const unmatchedRoute = "unmatched"

// Metrics records request duration and count labelled by route template. Requests to the
// excluded paths, such as the scrape endpoint itself, are not recorded.
func Metrics(metricsSvc *service.MetricsService, excluded ...string) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(excluded))
	for _, path := range excluded {
		skip[path] = struct{}{}
	}
	return func(c *gin.Context) {
		if metricsSvc == nil {
			c.Next()
			return
		}
		route := c.FullPath()
		if _, ok := skip[route]; ok && route != "" {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		if route == "" {
			route = unmatchedRoute
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
