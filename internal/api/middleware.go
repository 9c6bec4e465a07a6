package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/septivank/weather-readings-api/internal/authz"
	"github.com/septivank/weather-readings-api/internal/logging"
	"go.uber.org/zap"
)

const (
	// AuthKeyHeader carries the key issued by /auth/login
	AuthKeyHeader = "X-AUTH-KEY"
	// RequestIDHeader is echoed on every response
	RequestIDHeader = "X-Request-ID"

	loggerContextKey = "logger"
)

// RequestLogger tags each request with an id and logs it once finished
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		reqLogger := logging.WithRequestID(logger, requestID)
		c.Set(loggerContextKey, reqLogger)
		c.Header(RequestIDHeader, requestID)

		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			reqLogger.Error("request completed", fields...)
			return
		}
		reqLogger.Info("request completed", fields...)
	}
}

// requestLogger returns the logger set by RequestLogger, or fallback
func requestLogger(c *gin.Context, fallback *zap.Logger) *zap.Logger {
	if v, ok := c.Get(loggerContextKey); ok {
		if l, ok := v.(*zap.Logger); ok {
			return l
		}
	}
	return fallback
}

// Authorize admits only callers whose key resolves to a role allowed for op
func Authorize(gate *authz.Gate, op authz.Operation, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := gate.Authorize(c.Request.Context(), c.GetHeader(AuthKeyHeader), op)
		if err != nil {
			if errors.Is(err, authz.ErrForbidden) {
				abort(c, http.StatusForbidden, op.DeniedMessage())
				return
			}
			requestLogger(c, logger).Error("failed to authorize request", zap.Error(err))
			abort(c, http.StatusInternalServerError, "Failed to authorize request")
			return
		}

		c.Set(loggerContextKey, logging.WithUser(requestLogger(c, logger), user.ID, user.Role.String()))
		c.Request = c.Request.WithContext(authz.WithUser(c.Request.Context(), user))
		c.Next()
	}
}
