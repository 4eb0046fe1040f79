package api

import (
	"net/http"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/aimanhafez-cec/drivewise-fleetflow-sub006/config"
	"github.com/aimanhafez-cec/drivewise-fleetflow-sub006/internal/logger"
	"github.com/aimanhafez-cec/drivewise-fleetflow-sub006/internal/metrics"
	"github.com/aimanhafez-cec/drivewise-fleetflow-sub006/internal/mw"
	"github.com/aimanhafez-cec/drivewise-fleetflow-sub006/internal/schedule"
	"github.com/aimanhafez-cec/drivewise-fleetflow-sub006/internal/store"
)

// Deps are the collaborators the router wires into its handlers.
type Deps struct {
	Store       store.Store
	Coordinator *schedule.Coordinator
	Dispatcher  *schedule.Dispatcher
	Metrics     *metrics.Recorder   // optional
	Gatherer    prometheus.Gatherer // optional, serves /metrics
	Cache       *mw.ResponseCache   // optional
	WebPush     *webpush.Options
	Server      config.ServerConfig
	Location    *time.Location
	Log         zerolog.Logger
}

// NewRouter creates and configures a new Gin router.
func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(d.Log))

	handler := NewHandler(d)

	limit := rate.Limit(d.Server.RateLimitPerSec)
	if limit <= 0 {
		limit = rate.Inf
	}
	rateLimiter := mw.RateLimiter(limit, d.Server.RateLimitBurst, mw.ClientIPKey, mw.OperatorKey(handler.operator))

	caching := func(c *gin.Context) { c.Next() }
	if d.Cache != nil {
		caching = d.Cache.Middleware()
	}

	r.GET("/healthz", handler.Healthz)
	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	// API group
	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.GET("/vehicles", caching, handler.ListVehicles)
		api.GET("/timeline", caching, handler.GetTimeline)

		api.GET("/events/:id/actions", handler.GetActions)
		api.POST("/events/:id/actions/:action", handler.PerformAction)
		api.POST("/events/:id/move", handler.MoveEvent)
		api.GET("/events/:id/moves", handler.ListMoves)

		api.GET("/subscriptions", handler.GetSubscription)
		api.PUT("/subscriptions", handler.PutSubscription)
		api.DELETE("/subscriptions", handler.DeleteSubscription)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
	}

	return r
}

// Healthz reports whether the database answers.
func (h *Handler) Healthz(c *gin.Context) {
	sqlDB, err := h.store.DB().DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func requestLogger(log zerolog.Logger) gin.HandlerFunc {
	log = logger.Component(log, "http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := c.Writer.Status()
		ev := log.Info()
		if status >= http.StatusInternalServerError {
			ev = log.Warn()
		}
		ev.Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}
