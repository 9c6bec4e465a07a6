package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/septivank/weather-readings-api/internal/authz"
	"github.com/septivank/weather-readings-api/internal/service"
	"go.uber.org/zap"
)

// respond writes the {status, message, ...payload} envelope
func respond(c *gin.Context, status int, message string, payload gin.H) {
	body := gin.H{
		"status":  status,
		"message": message,
	}
	for k, v := range payload {
		body[k] = v
	}
	c.JSON(status, body)
}

// abort writes the envelope and stops the handler chain
func abort(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"status":  status,
		"message": message,
	})
}

// failure holds the endpoint specific texts used by respondError
type failure struct {
	notFound string
	internal string
}

// respondError maps a service error to its status. Internal errors are
// logged and answered with f.internal only.
func (h *Handler) respondError(c *gin.Context, err error, f failure) {
	var status int
	var message string

	switch {
	case errors.Is(err, service.ErrValidation):
		status, message = http.StatusBadRequest, validationMessage(err)
	case errors.Is(err, service.ErrInvalidCredentials):
		status, message = http.StatusUnauthorized, "Invalid credentials"
	case errors.Is(err, authz.ErrForbidden):
		status, message = http.StatusForbidden, "The user does not have permission to perform this action."
	case errors.Is(err, service.ErrNotFound):
		status, message = http.StatusNotFound, f.notFound
	case errors.Is(err, service.ErrEmailInUse):
		status, message = http.StatusConflict, "The provided email address is already in use"
	default:
		requestLogger(c, h.logger).Error("request failed",
			zap.Error(err),
			zap.String("path", c.FullPath()),
		)
		status, message = http.StatusInternalServerError, f.internal
	}

	if message == "" {
		message = http.StatusText(status)
	}
	abort(c, status, message)
}

// validationMessage strips the sentinel prefix added by fmt.Errorf wrapping
func validationMessage(err error) string {
	return strings.TrimPrefix(err.Error(), service.ErrValidation.Error()+": ")
}
