package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"hr-agent/internal/apperr"
	"hr-agent/internal/logger"
	"hr-agent/internal/metrics"
)

const requestIDHeader = "X-Request-ID"

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// accessLog logs one line per request and records HTTP metrics.
func accessLog(log *logger.Logger, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		elapsed := time.Since(start)
		status := c.Writer.Status()
		route := c.FullPath()
		m.HTTPRequest(route, c.Request.Method, status, elapsed)

		fields := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"route", route,
			"status", status,
			"duration", elapsed,
			"request_id", c.GetString("request_id"),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, "errors", c.Errors.String())
		}
		switch {
		case status >= http.StatusInternalServerError:
			log.Errorw("http request", fields...)
		case status >= http.StatusBadRequest:
			log.Warnw("http request", fields...)
		default:
			log.Debugw("http request", fields...)
		}
	}
}

func recovery(log *logger.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		log.Errorw("http handler panicked", "panic", fmt.Sprint(recovered), "path", c.Request.URL.Path)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{"code": apperr.CodeUnknown, "message": "internal error"},
		})
	})
}
