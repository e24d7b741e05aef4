package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const readinessTimeout = 2 * time.Second

// HealthHandler serves liveness and readiness probes
type HealthHandler struct {
	logger   *slog.Logger
	database HealthChecker
	broker   HealthChecker
	service  string
}

// NewHealthHandler creates a new HealthHandler instance
func NewHealthHandler(deps *Dependencies) *HealthHandler {
	service := deps.ServiceName
	if service == "" {
		service = "job-dispatcher"
	}

	return &HealthHandler{
		logger:   deps.Logger,
		database: deps.Database,
		broker:   deps.Broker,
		service:  service,
	}
}

// Liveness handles GET /health
func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": h.service,
	})
}

// Readiness handles GET /health/ready by pinging the job store and, when
// AMQP notifications are enabled, the message broker
func (h *HealthHandler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
	defer cancel()

	checks := []struct {
		checker HealthChecker
		failure string
	}{
		{h.database, "database unreachable"},
		{h.broker, "message broker unreachable"},
	}
	for _, check := range checks {
		if check.checker == nil {
			continue
		}
		if err := check.checker.HealthCheck(ctx); err != nil {
			h.logger.Warn("Readiness check failed",
				slog.String("check", check.failure),
				slog.Any("error", err),
			)
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "unavailable",
				"service": h.service,
				"error":   check.failure,
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "ready",
		"service": h.service,
	})
}
