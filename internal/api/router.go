package api

import (
	"github.com/gin-gonic/gin"
	"github.com/septivank/weather-readings-api/internal/authz"
	"go.uber.org/zap"
)

// NewRouter registers every route. Gated routes check the caller before
// any path or body validation runs.
func NewRouter(h *Handler, gate *authz.Gate, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(logger))

	allow := func(op authz.Operation) gin.HandlerFunc {
		return Authorize(gate, op, logger)
	}

	r.GET("/health", h.Health)

	auth := r.Group("/auth")
	auth.POST("/login", h.Login)
	auth.POST("/logout", h.Logout)
	auth.POST("/register", h.Register)

	readings := r.Group("/readings")
	readings.GET("/:id", allow(authz.OpReadReadings), h.GetReading)
	readings.GET("/page/:page", allow(authz.OpReadReadings), h.GetReadingsPage)
	readings.GET("/date/:startDate/:endDate", allow(authz.OpReadReadings), h.GetReadingsByDateRange)
	readings.GET("/maxprecipitation/:deviceName", allow(authz.OpReadReadings), h.GetMaxPrecipitation)
	readings.GET("/devicedate/:deviceName/:datetime", allow(authz.OpReadReadings), h.GetDeviceByDate)
	readings.GET("/maxtemperature/:startDate/:endDate", allow(authz.OpReadReadings), h.GetMaxTemperature)
	readings.POST("", allow(authz.OpCreateReadings), h.CreateReading)
	readings.POST("/many", allow(authz.OpCreateReadings), h.CreateReadings)
	readings.PATCH("", allow(authz.OpModifyReadings), h.UpdateReading)
	readings.PATCH("/update/many", allow(authz.OpModifyReadings), h.UpdateReadings)
	readings.PATCH("/update/precipitation", allow(authz.OpUpdatePrecipitation), h.UpdatePrecipitation)
	readings.DELETE("/:id", allow(authz.OpModifyReadings), h.DeleteReading)
	readings.DELETE("/delete/many", allow(authz.OpModifyReadings), h.DeleteReadings)

	users := r.Group("/users")
	users.GET("", allow(authz.OpReadUsers), h.ListUsers)
	users.GET("/:id", allow(authz.OpReadUsers), h.GetUser)
	users.GET("/key/:authenticationKey", h.GetUserByAuthenticationKey)
	users.POST("", allow(authz.OpModifyUsers), h.CreateUser)
	users.PUT("/:id", allow(authz.OpModifyUsers), h.CreateUserWithID)
	users.POST("/many", allow(authz.OpModifyUsers), h.CreateUsers)
	users.PATCH("/update/user", allow(authz.OpModifyUsers), h.UpdateUser)
	users.PATCH("/update/many", allow(authz.OpModifyUsers), h.UpdateUsers)
	users.PATCH("/update/usersrole", allow(authz.OpManageUserRoles), h.UpdateUserRoles)
	users.DELETE("/:id", allow(authz.OpModifyUsers), h.DeleteUser)
	users.DELETE("/delete/many", allow(authz.OpModifyUsers), h.DeleteUsers)
	users.DELETE("/delete/deleterolesbydaterange", allow(authz.OpManageUserRoles), h.DeleteUsersByRoleAndDateRange)

	return r
}
