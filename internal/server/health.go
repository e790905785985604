package server

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthStatus represents health check status
type HealthStatus string

const (
	StatusHealthy   HealthStatus = "healthy"
	StatusUnhealthy HealthStatus = "unhealthy"
)

// HealthResponse is the health check response
type HealthResponse struct {
	Status     HealthStatus `json:"status"`
	Timestamp  string       `json:"timestamp"`
	Version    string       `json:"version"`
	Uptime     string       `json:"uptime"`
	GoVersion  string       `json:"go_version"`
	Goroutines int          `json:"goroutines"`
}

var startTime = time.Now()

// Version is overridden at build time with -ldflags.
var Version = "0.1.0"

func healthHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, HealthResponse{
			Status:     StatusHealthy,
			Timestamp:  time.Now().UTC().Format(time.RFC3339),
			Version:    Version,
			Uptime:     time.Since(startTime).Round(time.Second).String(),
			GoVersion:  runtime.Version(),
			Goroutines: runtime.NumGoroutine(),
		})
	}
}

// Check is a named readiness probe.
type Check struct {
	Name string
	Fn   func() error
}

func readyHandler(checks ...Check) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, check := range checks {
			if err := check.Fn(); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status": StatusUnhealthy,
					"check":  check.Name,
					"error":  err.Error(),
				})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": StatusHealthy})
	}
}
