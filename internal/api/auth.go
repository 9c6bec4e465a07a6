package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/septivank/weather-readings-api/internal/service"
)

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type logoutRequest struct {
	AuthenticationKey string `json:"authenticationKey" binding:"required"`
}

type registerRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email" binding:"required"`
	Password  string `json:"password" binding:"required"`
}

// Login handles POST /auth/login
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if !h.bind(c, &req) {
		return
	}

	key, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.respondError(c, err, failure{internal: "Login failed"})
		return
	}

	respond(c, http.StatusOK, "user logged in successful", gin.H{"authenticationKey": key})
}

// Logout handles POST /auth/logout
func (h *Handler) Logout(c *gin.Context) {
	var req logoutRequest
	if !h.bind(c, &req) {
		return
	}

	if err := h.auth.Logout(c.Request.Context(), req.AuthenticationKey); err != nil {
		h.respondError(c, err, failure{notFound: "failed to find user", internal: "Logout failed"})
		return
	}

	respond(c, http.StatusOK, "user logged out", nil)
}

// Register handles POST /auth/register
func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if !h.bind(c, &req) {
		return
	}

	user, err := h.auth.Register(c.Request.Context(), service.RegisterInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
	})
	if err != nil {
		if errors.Is(err, service.ErrEmailInUse) {
			abort(c, http.StatusConflict, "Email address is already used with other account.")
			return
		}
		h.respondError(c, err, failure{internal: "Registration failed"})
		return
	}

	respond(c, http.StatusOK, "Registration successful", gin.H{"user": user})
}
