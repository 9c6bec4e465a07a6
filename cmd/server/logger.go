package main

import (
	"github.com/gin-gonic/gin"
	"github.com/septivank/weather-readings-api/internal/config"
	"github.com/septivank/weather-readings-api/internal/logging"
	"go.uber.org/zap"
)

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	return logging.NewLogger(cfg.ServiceName, cfg.HTTP.GinMode == gin.DebugMode)
}
