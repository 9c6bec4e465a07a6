// Package api exposes the weather readings service over HTTP/JSON.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/septivank/weather-readings-api/internal/service"
	"github.com/septivank/weather-readings-api/internal/validator"
	"go.uber.org/zap"
)

const healthCheckTimeout = 2 * time.Second

// HealthCheck pings one backing dependency
type HealthCheck struct {
	Name string
	Ping func(ctx context.Context) error
}

// Handler serves every API route
type Handler struct {
	auth      *service.AuthService
	users     *service.UserService
	readings  *service.ReadingService
	validator *validator.Validator
	checks    []HealthCheck
	logger    *zap.Logger
}

// NewHandler creates the route handlers
func NewHandler(
	auth *service.AuthService,
	users *service.UserService,
	readings *service.ReadingService,
	validator *validator.Validator,
	checks []HealthCheck,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		auth:      auth,
		users:     users,
		readings:  readings,
		validator: validator,
		checks:    checks,
		logger:    logger,
	}
}

// bind decodes the JSON body into dst, answering 400 on failure
func (h *Handler) bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		requestLogger(c, h.logger).Debug("invalid request body", zap.Error(err))
		abort(c, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// validID answers 400 unless id is a well-formed object id
func (h *Handler) validID(c *gin.Context, id string) bool {
	if err := h.validator.ObjectID(id); err != nil {
		abort(c, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

// Health reports whether every dependency answers a ping
func (h *Handler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	var failed []string
	for _, check := range h.checks {
		if err := check.Ping(ctx); err != nil {
			requestLogger(c, h.logger).Warn("health check failed",
				zap.String("check", check.Name),
				zap.Error(err),
			)
			failed = append(failed, check.Name)
		}
	}

	if len(failed) > 0 {
		respond(c, http.StatusServiceUnavailable, "Service unavailable", gin.H{"failed": failed})
		return
	}
	respond(c, http.StatusOK, "Service healthy", nil)
}
