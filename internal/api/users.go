package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/septivank/weather-readings-api/internal/db"
	"github.com/septivank/weather-readings-api/internal/service"
	"go.uber.org/zap"
)

type userRequest struct {
	ID                string     `json:"_id"`
	FirstName         string     `json:"firstName"`
	LastName          string     `json:"lastName"`
	Email             string     `json:"email" binding:"required"`
	Password          string     `json:"password"`
	Role              db.Role    `json:"role"`
	CreatedDate       *time.Time `json:"createdDate"`
	LastLoggedIn      *time.Time `json:"lastLoggedIn"`
	AuthenticationKey *string    `json:"authenticationKey"`
}

func (r userRequest) input() service.UserInput {
	return service.UserInput{
		ID:                r.ID,
		FirstName:         r.FirstName,
		LastName:          r.LastName,
		Email:             r.Email,
		Password:          r.Password,
		Role:              r.Role,
		CreatedDate:       r.CreatedDate,
		LastLoggedIn:      r.LastLoggedIn,
		AuthenticationKey: r.AuthenticationKey,
	}
}

type rolesByDateRequest struct {
	StartDate string `json:"startDate" binding:"required"`
	EndDate   string `json:"endDate" binding:"required"`
	Role      string `json:"role" binding:"required"`
}

type deleteByRoleRequest struct {
	StartDate string `json:"startDate" binding:"required"`
	EndDate   string `json:"endDate" binding:"required"`
	UserRole  string `json:"userRole" binding:"required"`
}

// ListUsers handles GET /users
func (h *Handler) ListUsers(c *gin.Context) {
	users, err := h.users.List(c.Request.Context())
	if err != nil {
		h.respondError(c, err, failure{internal: "Failed to get all users"})
		return
	}

	respond(c, http.StatusOK, "Get all users successfully", gin.H{"user": users})
}

// GetUser handles GET /users/:id
func (h *Handler) GetUser(c *gin.Context) {
	id := c.Param("id")
	if !h.validID(c, id) {
		return
	}

	user, err := h.users.Get(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err, failure{
			notFound: "User not found with ID: " + id,
			internal: "Failed to get user by ID",
		})
		return
	}

	respond(c, http.StatusOK, "Get user by ID successfully", gin.H{"user": user})
}

// GetUserByAuthenticationKey handles GET /users/key/:authenticationKey
func (h *Handler) GetUserByAuthenticationKey(c *gin.Context) {
	user, err := h.users.GetByAuthenticationKey(c.Request.Context(), c.Param("authenticationKey"))
	if err != nil {
		h.respondError(c, err, failure{
			notFound: "User not found with given authentication key",
			internal: "Failed to get user by authentication key",
		})
		return
	}

	respond(c, http.StatusOK, "Get user by authentication key", gin.H{"user": user})
}

// CreateUser handles POST /users
func (h *Handler) CreateUser(c *gin.Context) {
	var req userRequest
	if !h.bind(c, &req) {
		return
	}

	user, err := h.users.Create(c.Request.Context(), req.input())
	if err != nil {
		h.respondError(c, err, failure{internal: "Failed to create user"})
		return
	}

	h.logWrite(c, "user created", zap.String("created_user_id", user.ID))
	respond(c, http.StatusOK, "User created successfully", gin.H{"user": user})
}

// CreateUserWithID handles PUT /users/:id
func (h *Handler) CreateUserWithID(c *gin.Context) {
	id := c.Param("id")
	if !h.validID(c, id) {
		return
	}
	var req userRequest
	if !h.bind(c, &req) {
		return
	}

	user, err := h.users.CreateWithID(c.Request.Context(), id, req.input())
	if err != nil {
		h.respondError(c, err, failure{internal: "Failed to create user with id"})
		return
	}

	h.logWrite(c, "user created", zap.String("created_user_id", user.ID))
	respond(c, http.StatusOK, "User created with id successfully", gin.H{"user": user})
}

// CreateUsers handles POST /users/many
func (h *Handler) CreateUsers(c *gin.Context) {
	var req []userRequest
	if !h.bind(c, &req) {
		return
	}
	if err := h.validator.Batch(len(req)); err != nil {
		h.respondError(c, err, failure{})
		return
	}

	inputs := make([]service.UserInput, 0, len(req))
	for _, r := range req {
		inputs = append(inputs, r.input())
	}

	users, err := h.users.CreateMany(c.Request.Context(), inputs)
	if err != nil {
		h.respondError(c, err, failure{internal: "Failed to create users"})
		return
	}

	h.logWrite(c, "users created", zap.Int("count", len(users)))
	respond(c, http.StatusOK, fmt.Sprintf("Created %d users successfully", len(users)), gin.H{"user": users})
}

// UpdateUser handles PATCH /users/update/user
func (h *Handler) UpdateUser(c *gin.Context) {
	var req userRequest
	if !h.bind(c, &req) {
		return
	}
	if !h.validID(c, req.ID) {
		return
	}

	user, err := h.users.Update(c.Request.Context(), req.input())
	if err != nil {
		h.respondError(c, err, failure{
			notFound: "User not found with ID: " + req.ID,
			internal: "Failed to update user",
		})
		return
	}

	h.logWrite(c, "user updated", zap.String("updated_user_id", user.ID))
	respond(c, http.StatusOK, "User updated successfully", gin.H{"user": user})
}

// UpdateUsers handles PATCH /users/update/many
func (h *Handler) UpdateUsers(c *gin.Context) {
	var req []userRequest
	if !h.bind(c, &req) {
		return
	}
	ids := make([]string, 0, len(req))
	inputs := make([]service.UserInput, 0, len(req))
	for _, r := range req {
		ids = append(ids, r.ID)
		inputs = append(inputs, r.input())
	}
	if err := h.validator.ObjectIDs(ids); err != nil {
		h.respondError(c, err, failure{})
		return
	}

	res, err := h.users.UpdateMany(c.Request.Context(), inputs)
	if err != nil {
		h.respondError(c, err, failure{
			notFound: "No users were updated",
			internal: "Failed to update multiple users",
		})
		return
	}

	h.logWrite(c, "users updated", zap.Int64("modified", res.Modified))
	respond(c, http.StatusOK, fmt.Sprintf("%d users updated successfully", res.Modified), nil)
}

// DeleteUser handles DELETE /users/:id
func (h *Handler) DeleteUser(c *gin.Context) {
	id := c.Param("id")
	if !h.validID(c, id) {
		return
	}

	if err := h.users.Delete(c.Request.Context(), id); err != nil {
		h.respondError(c, err, failure{
			notFound: "User ID not found",
			internal: "Failed to delete user",
		})
		return
	}

	h.logWrite(c, "user deleted", zap.String("deleted_user_id", id))
	respond(c, http.StatusOK, "User deleted successfully", nil)
}

// DeleteUsers handles DELETE /users/delete/many
func (h *Handler) DeleteUsers(c *gin.Context) {
	var req idsRequest
	if !h.bind(c, &req) {
		return
	}
	if err := h.validator.ObjectIDs(req.IDs); err != nil {
		h.respondError(c, err, failure{})
		return
	}

	n, err := h.users.DeleteMany(c.Request.Context(), req.IDs)
	if err != nil {
		h.respondError(c, err, failure{
			notFound: "Users not found to delete",
			internal: "Failed to delete users",
		})
		return
	}

	h.logWrite(c, "users deleted", zap.Int64("count", n))
	respond(c, http.StatusOK, fmt.Sprintf("%d users deleted successfully", n), nil)
}

// UpdateUserRoles handles PATCH /users/update/usersrole
func (h *Handler) UpdateUserRoles(c *gin.Context) {
	var req rolesByDateRequest
	if !h.bind(c, &req) {
		return
	}
	start, end, err := h.validator.DateRange(req.StartDate, req.EndDate)
	if err != nil {
		h.respondError(c, err, failure{})
		return
	}
	role, err := h.validator.Role("role", req.Role)
	if err != nil {
		h.respondError(c, err, failure{})
		return
	}

	res, err := h.users.UpdateRolesByCreatedDateRange(c.Request.Context(), start, end, role)
	if err != nil {
		h.respondError(c, err, failure{
			notFound: "Users not found to update roles",
			internal: "Failed to update the roles of users",
		})
		return
	}

	h.logWrite(c, "user roles updated", zap.String("new_role", role.String()), zap.Int64("matched", res.Matched))
	respond(c, http.StatusOK, "Updated the roles of users by date range successfully", gin.H{"result": res})
}

// DeleteUsersByRoleAndDateRange handles DELETE /users/delete/deleterolesbydaterange
func (h *Handler) DeleteUsersByRoleAndDateRange(c *gin.Context) {
	var req deleteByRoleRequest
	if !h.bind(c, &req) {
		return
	}
	start, end, err := h.validator.DateRange(req.StartDate, req.EndDate)
	if err != nil {
		h.respondError(c, err, failure{})
		return
	}
	role, err := h.validator.Role("userRole", req.UserRole)
	if err != nil {
		h.respondError(c, err, failure{})
		return
	}

	n, err := h.users.DeleteByLastLoggedInDateRange(c.Request.Context(), start, end, role)
	if err != nil {
		h.respondError(c, err, failure{
			notFound: fmt.Sprintf("No users found with %s role and last logged in between %s and %s", role, req.StartDate, req.EndDate),
			internal: "Failed to delete users",
		})
		return
	}

	h.logWrite(c, "users deleted by role", zap.String("target_role", role.String()), zap.Int64("count", n))
	respond(c, http.StatusOK, fmt.Sprintf("Deleted %d users with %s role and last logged in between %s and %s successfully", n, role, req.StartDate, req.EndDate), nil)
}
