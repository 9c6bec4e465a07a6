package service

import (
	"errors"

	"github.com/septivank/weather-readings-api/internal/validator"
)

// Errors returned by the services. Handlers map them to HTTP statuses; any
// other error is an internal failure.
var (
	ErrValidation         = validator.ErrInvalid
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotFound           = errors.New("not found")
	ErrEmailInUse         = errors.New("email address is already in use")
)
