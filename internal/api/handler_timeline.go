package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aimanhafez-cec/drivewise-fleetflow-sub006/internal/schedule"
	"github.com/aimanhafez-cec/drivewise-fleetflow-sub006/internal/timeline"
)

type vehicleResponse struct {
	ID       string `json:"id"`
	Plate    string `json:"plate"`
	Label    string `json:"label"`
	Position int    `json:"position"`
}

// ListVehicles handles GET /api/vehicles.
func (h *Handler) ListVehicles(c *gin.Context) {
	vehicles, err := h.store.ListVehicles(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list vehicles")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve vehicles"})
		return
	}

	responses := make([]vehicleResponse, 0, len(vehicles))
	for _, v := range vehicles {
		responses = append(responses, vehicleResponse{ID: v.ID, Plate: v.Plate, Label: v.Label, Position: v.Position})
	}
	c.JSON(http.StatusOK, responses)
}

// GetTimeline handles GET /api/timeline?view=&date=&vehicle=.
// date is a local calendar date (YYYY-MM-DD) and defaults to today.
func (h *Handler) GetTimeline(c *gin.Context) {
	kind, err := timeline.ParseViewKind(c.Query("view"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	anchor := time.Now().In(h.loc)
	if raw := c.Query("date"); raw != "" {
		anchor, err = time.ParseInLocation(time.DateOnly, raw, h.loc)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid 'date' format. Use YYYY-MM-DD."})
			return
		}
	}
	vehicleID := c.Query("vehicle")

	ctx := c.Request.Context()
	axis := timeline.Window(kind, anchor)
	events, err := h.store.Events(ctx, schedule.Query{From: axis.Origin, To: axis.End(), VehicleID: vehicleID})
	if err != nil {
		h.log.Error().Err(err).Msg("failed to query events")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve events"})
		return
	}

	var lanes []string
	if vehicleID != "" {
		lanes = []string{vehicleID}
	} else {
		vehicles, err := h.store.ListVehicles(ctx)
		if err != nil {
			h.log.Error().Err(err).Msg("failed to list vehicles")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve vehicles"})
			return
		}
		for _, v := range vehicles {
			lanes = append(lanes, v.ID)
		}
	}

	c.JSON(http.StatusOK, timeline.BuildView(kind, anchor, events, lanes))
}
