package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"agentic-rag-api/pkg/logger"
)

// DefaultAccessLogSkipPaths 探活与指标路径不记录访问日志
var DefaultAccessLogSkipPaths = []string{
	"/health",
	"/ready",
	"/live",
	"/metrics",
}

// AccessLog 记录每个请求的状态与耗时；问答请求附带 run_id
func AccessLog(skipPaths ...string) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		if _, ok := skip[c.Request.URL.Path]; ok {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		fields := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"ip", c.ClientIP(),
			"request_id", c.GetString("request_id"),
		}
		if runID := c.Writer.Header().Get("X-Run-ID"); runID != "" {
			fields = append(fields, "run_id", runID)
		}
		if traceID := c.Writer.Header().Get(TraceIDHeader); traceID != "" {
			fields = append(fields, "trace_id", traceID)
		}

		if c.Writer.Status() >= 500 {
			logger.Warn(c.Request.Context(), "api request failed", fields...)
			return
		}
		logger.Info(c.Request.Context(), "api request", fields...)
	}
}
