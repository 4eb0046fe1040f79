package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aimanhafez-cec/drivewise-fleetflow-sub006/internal/backoffice"
	"github.com/aimanhafez-cec/drivewise-fleetflow-sub006/internal/model"
	"github.com/aimanhafez-cec/drivewise-fleetflow-sub006/internal/schedule"
)

type eventResponse struct {
	schedule.Event
	Actions [][]schedule.Action `json:"actions"`
}

func newEventResponse(e schedule.Event) eventResponse {
	return eventResponse{Event: e, Actions: e.Actions().Groups()}
}

// GetActions handles GET /api/events/:id/actions.
func (h *Handler) GetActions(c *gin.Context) {
	e, err := h.store.Event(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, newEventResponse(e))
}

// PerformAction handles POST /api/events/:id/actions/:action.
func (h *Handler) PerformAction(c *gin.Context) {
	action, err := schedule.ParseAction(c.Param("action"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := backoffice.WithOperator(c.Request.Context(), c.GetHeader(h.operator))
	err = h.dispatcher.Perform(ctx, action, c.Param("id"))
	h.recordAction(action, err)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"action": action, "event_id": c.Param("id")})
}

type moveRequest struct {
	Start     time.Time `json:"start" binding:"required"`
	End       time.Time `json:"end" binding:"required"`
	VehicleID *string   `json:"vehicle_id"`
	DryRun    bool      `json:"dry_run"`
}

// MoveEvent handles POST /api/events/:id/move. A dry run only reports the
// conflicts the move would hit.
func (h *Handler) MoveEvent(c *gin.Context) {
	var req moveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	move := schedule.MoveRequest{
		EventID:   c.Param("id"),
		Start:     req.Start,
		End:       req.End,
		VehicleID: req.VehicleID,
	}
	ctx := c.Request.Context()

	if req.DryRun {
		conflicts, err := h.coordinator.Preview(ctx, move)
		if err != nil {
			h.abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"allowed": len(conflicts) == 0, "conflicts": conflicts})
		return
	}

	res, err := h.coordinator.MoveEvent(ctx, move)
	if err != nil {
		h.abortWithError(c, err)
		return
	}

	switch res.Outcome {
	case schedule.OutcomeCommitted:
		c.JSON(http.StatusOK, gin.H{"outcome": res.Outcome, "event": newEventResponse(res.Event)})
	case schedule.OutcomeRejected:
		c.JSON(http.StatusConflict, gin.H{"outcome": res.Outcome, "event": newEventResponse(res.Event), "conflicts": res.Conflicts})
	default:
		c.JSON(http.StatusServiceUnavailable, gin.H{"outcome": res.Outcome, "event": newEventResponse(res.Event), "error": res.Err().Error()})
	}
}

type moveAttemptResponse struct {
	ID          string    `json:"id"`
	AttemptedAt time.Time `json:"attempted_at"`
	Outcome     string    `json:"outcome"`
	From        placement `json:"from"`
	To          placement `json:"to"`
	Conflicts   []string  `json:"conflicts"`
	Reason      string    `json:"reason,omitempty"`
	DurationMS  int64     `json:"duration_ms"`
}

type placement struct {
	VehicleID string    `json:"vehicle_id,omitempty"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
}

func newMoveAttemptResponse(a model.MoveAttempt) moveAttemptResponse {
	conflicts := []string{}
	if a.ConflictIDs != "" {
		conflicts = strings.Split(a.ConflictIDs, ",")
	}
	return moveAttemptResponse{
		ID:          a.ID,
		AttemptedAt: a.AttemptedAt,
		Outcome:     a.Outcome,
		From:        placement{VehicleID: a.FromVehicleID, Start: a.FromStart, End: a.FromEnd},
		To:          placement{VehicleID: a.ToVehicleID, Start: a.ToStart, End: a.ToEnd},
		Conflicts:   conflicts,
		Reason:      a.Reason,
		DurationMS:  a.DurationMS,
	}
}

// ListMoves handles GET /api/events/:id/moves.
func (h *Handler) ListMoves(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	if _, err := h.store.Event(ctx, id); err != nil {
		h.abortWithError(c, err)
		return
	}
	attempts, err := h.store.MoveAttempts(ctx, id)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	responses := make([]moveAttemptResponse, 0, len(attempts))
	for _, a := range attempts {
		responses = append(responses, newMoveAttemptResponse(a))
	}
	c.JSON(http.StatusOK, responses)
}

func (h *Handler) recordAction(action schedule.Action, err error) {
	if h.metrics == nil {
		return
	}
	result := "ok"
	switch {
	case errors.Is(err, schedule.ErrActionNotAllowed):
		result = "not_allowed"
	case err != nil:
		result = "failed"
	}
	h.metrics.RecordAction(action, result)
}

// abortWithError maps domain errors onto HTTP statuses.
func (h *Handler) abortWithError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, schedule.ErrInvalidInterval):
		status = http.StatusBadRequest
	case errors.Is(err, schedule.ErrEventNotFound):
		status = http.StatusNotFound
	case errors.Is(err, schedule.ErrActionNotAllowed):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, backoffice.ErrRejected):
		status = http.StatusConflict
	case errors.Is(err, schedule.ErrNoHandler):
		status = http.StatusNotImplemented
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}
