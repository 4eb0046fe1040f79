package api

import (
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/rs/zerolog"

	"github.com/aimanhafez-cec/drivewise-fleetflow-sub006/internal/logger"
	"github.com/aimanhafez-cec/drivewise-fleetflow-sub006/internal/metrics"
	"github.com/aimanhafez-cec/drivewise-fleetflow-sub006/internal/schedule"
	"github.com/aimanhafez-cec/drivewise-fleetflow-sub006/internal/store"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store       store.Store
	coordinator *schedule.Coordinator
	dispatcher  *schedule.Dispatcher
	metrics     *metrics.Recorder
	webpush     *webpush.Options
	loc         *time.Location
	operator    string
	log         zerolog.Logger
}

// NewHandler creates a new API handler.
func NewHandler(d Deps) *Handler {
	loc := d.Location
	if loc == nil {
		loc = time.UTC
	}
	operator := d.Server.OperatorHeader
	if operator == "" {
		operator = "X-Operator-ID"
	}
	return &Handler{
		store:       d.Store,
		coordinator: d.Coordinator,
		dispatcher:  d.Dispatcher,
		metrics:     d.Metrics,
		webpush:     d.WebPush,
		loc:         loc,
		operator:    operator,
		log:         logger.Component(d.Log, "api"),
	}
}
