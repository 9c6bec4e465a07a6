package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/septivank/weather-readings-api/internal/db"
	"go.uber.org/zap"
)

type idsRequest struct {
	IDs []string `json:"ids"`
}

type precipitationRequest struct {
	ID            string   `json:"_id" binding:"required"`
	Precipitation *float64 `json:"precipitation" binding:"required"`
}

// GetReading handles GET /readings/:id
func (h *Handler) GetReading(c *gin.Context) {
	id := c.Param("id")
	if !h.validID(c, id) {
		return
	}

	reading, err := h.readings.Get(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err, failure{
			notFound: "Weather data reading not found with ID: " + id,
			internal: "Failed to get reading by ID",
		})
		return
	}

	respond(c, http.StatusOK, "Get weather data reading by ID successfully", gin.H{"reading": reading})
}

// GetReadingsPage handles GET /readings/page/:page
func (h *Handler) GetReadingsPage(c *gin.Context) {
	page, err := h.validator.Page(c.Param("page"))
	if err != nil {
		h.respondError(c, err, failure{})
		return
	}

	readings, err := h.readings.Page(c.Request.Context(), page)
	if err != nil {
		h.respondError(c, err, failure{
			notFound: "No weather data readings found for the page number provided",
			internal: "Failed to get paginated weather data readings",
		})
		return
	}

	respond(c, http.StatusOK, fmt.Sprintf("Get paginated weather data readings on page %d", page), gin.H{"readings": readings})
}

// GetReadingsByDateRange handles GET /readings/date/:startDate/:endDate
func (h *Handler) GetReadingsByDateRange(c *gin.Context) {
	start, end, err := h.validator.DateRange(c.Param("startDate"), c.Param("endDate"))
	if err != nil {
		h.respondError(c, err, failure{})
		return
	}

	readings, err := h.readings.ByDateRange(c.Request.Context(), start, end)
	if err != nil {
		h.respondError(c, err, failure{
			notFound: "No weather data readings found for the provided date range",
			internal: "Failed to get weather data readings by date range",
		})
		return
	}

	respond(c, http.StatusOK, "Get weather data readings by date range successfully", gin.H{"reading": readings})
}

// GetMaxPrecipitation handles GET /readings/maxprecipitation/:deviceName
func (h *Handler) GetMaxPrecipitation(c *gin.Context) {
	peak, err := h.readings.MaxPrecipLastFiveMonths(c.Request.Context(), c.Param("deviceName"))
	if err != nil {
		h.respondError(c, err, failure{
			notFound: "Maximum precipitation data was not found within the last 5 months with the given device name.",
			internal: "Failed to get maximum precipitation in last 5 months",
		})
		return
	}

	respond(c, http.StatusOK, "Get maximum precipitation in last 5 months for given device name", gin.H{"reading": peak})
}

// GetDeviceByDate handles GET /readings/devicedate/:deviceName/:datetime
func (h *Handler) GetDeviceByDate(c *gin.Context) {
	at, err := h.validator.Date("datetime", c.Param("datetime"))
	if err != nil {
		h.respondError(c, err, failure{})
		return
	}

	cond, err := h.readings.DeviceByDate(c.Request.Context(), c.Param("deviceName"), at)
	if err != nil {
		h.respondError(c, err, failure{
			notFound: "Data not found within given device and date time",
			internal: "Failed to get weather data reading by device name and date",
		})
		return
	}

	respond(c, http.StatusOK, "Get weather data reading by device name and date successfully", gin.H{"reading": cond})
}

// GetMaxTemperature handles GET /readings/maxtemperature/:startDate/:endDate
func (h *Handler) GetMaxTemperature(c *gin.Context) {
	start, end, err := h.validator.DateRange(c.Param("startDate"), c.Param("endDate"))
	if err != nil {
		h.respondError(c, err, failure{})
		return
	}

	rows, err := h.readings.MaxTempByDateRange(c.Request.Context(), start, end)
	if err != nil {
		h.respondError(c, err, failure{
			notFound: "Maximum temperature data was not found within the given date range",
			internal: "Failed to get maximum temperature",
		})
		return
	}

	respond(c, http.StatusOK, "Get maximum temperature for all stations by date range", gin.H{"readings": rows})
}

// CreateReading handles POST /readings
func (h *Handler) CreateReading(c *gin.Context) {
	var req db.Reading
	if !h.bind(c, &req) {
		return
	}

	reading, err := h.readings.Create(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err, failure{internal: "Failed to create weather data reading"})
		return
	}

	h.logWrite(c, "reading created", zap.String("reading_id", reading.ID))
	respond(c, http.StatusOK, "Created weather data reading successfully", gin.H{"reading": reading})
}

// CreateReadings handles POST /readings/many
func (h *Handler) CreateReadings(c *gin.Context) {
	var req []db.Reading
	if !h.bind(c, &req) {
		return
	}

	readings, err := h.readings.CreateMany(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err, failure{internal: "Failed to create weather data readings"})
		return
	}

	h.logWrite(c, "readings created", zap.Int("count", len(readings)))
	respond(c, http.StatusOK, fmt.Sprintf("Created %d weather data readings successfully", len(readings)), gin.H{"reading": readings})
}

// UpdateReading handles PATCH /readings
func (h *Handler) UpdateReading(c *gin.Context) {
	var req db.Reading
	if !h.bind(c, &req) {
		return
	}
	if !h.validID(c, req.ID) {
		return
	}

	reading, err := h.readings.Update(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err, failure{
			notFound: "Weather data reading not found with ID: " + req.ID,
			internal: "Failed to update weather data reading",
		})
		return
	}

	h.logWrite(c, "reading updated", zap.String("reading_id", reading.ID))
	respond(c, http.StatusOK, "Updated weather data reading successfully", gin.H{"reading": reading})
}

// UpdateReadings handles PATCH /readings/update/many
func (h *Handler) UpdateReadings(c *gin.Context) {
	var req []db.Reading
	if !h.bind(c, &req) {
		return
	}
	ids := make([]string, 0, len(req))
	for _, r := range req {
		ids = append(ids, r.ID)
	}
	if err := h.validator.ObjectIDs(ids); err != nil {
		h.respondError(c, err, failure{})
		return
	}

	res, err := h.readings.UpdateMany(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err, failure{
			notFound: "No weather data readings were updated",
			internal: "Failed to update multiple weather data readings",
		})
		return
	}

	h.logWrite(c, "readings updated", zap.Int64("modified", res.Modified))
	respond(c, http.StatusOK, fmt.Sprintf("%d weather data readings updated successfully", res.Modified), nil)
}

// UpdatePrecipitation handles PATCH /readings/update/precipitation
func (h *Handler) UpdatePrecipitation(c *gin.Context) {
	var req precipitationRequest
	if !h.bind(c, &req) {
		return
	}
	if !h.validID(c, req.ID) {
		return
	}

	res, err := h.readings.UpdatePrecip(c.Request.Context(), req.ID, *req.Precipitation)
	if err != nil {
		h.respondError(c, err, failure{
			notFound: "No reading was updated",
			internal: "Failed to update readings precipitation by ID",
		})
		return
	}

	h.logWrite(c, "precipitation updated", zap.String("reading_id", req.ID))
	respond(c, http.StatusOK, "Updated readings precipitation by ID", gin.H{"result": res})
}

// DeleteReading handles DELETE /readings/:id
func (h *Handler) DeleteReading(c *gin.Context) {
	id := c.Param("id")
	if !h.validID(c, id) {
		return
	}

	if err := h.readings.Delete(c.Request.Context(), id); err != nil {
		h.respondError(c, err, failure{
			notFound: "Weather data reading not found",
			internal: "Failed to delete weather data reading",
		})
		return
	}

	h.logWrite(c, "reading deleted", zap.String("reading_id", id))
	respond(c, http.StatusOK, "Weather data reading deleted successfully", nil)
}

// DeleteReadings handles DELETE /readings/delete/many
func (h *Handler) DeleteReadings(c *gin.Context) {
	var req idsRequest
	if !h.bind(c, &req) {
		return
	}
	if err := h.validator.ObjectIDs(req.IDs); err != nil {
		h.respondError(c, err, failure{})
		return
	}

	n, err := h.readings.DeleteMany(c.Request.Context(), req.IDs)
	if err != nil {
		h.respondError(c, err, failure{
			notFound: "Weather data readings not found to delete",
			internal: "Failed to delete weather data readings",
		})
		return
	}

	h.logWrite(c, "readings deleted", zap.Int64("count", n))
	respond(c, http.StatusOK, fmt.Sprintf("%d weather data readings deleted successfully", n), nil)
}

// logWrite records a successful write with the acting user
func (h *Handler) logWrite(c *gin.Context, msg string, fields ...zap.Field) {
	requestLogger(c, h.logger).Info(msg, fields...)
}
