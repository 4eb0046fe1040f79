package mw

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/aimanhafez-cec/drivewise-fleetflow-sub006/internal/schedule"
)

func newCachedRouter(rc *ResponseCache, hits *int) *gin.Engine {
	r := gin.New()
	r.Use(rc.Middleware())
	r.GET("/timeline", func(c *gin.Context) {
		*hits++
		c.JSON(http.StatusOK, gin.H{"render": *hits})
	})
	r.GET("/broken", func(c *gin.Context) {
		*hits++
		c.JSON(http.StatusInternalServerError, gin.H{"error": "boom"})
	})
	r.POST("/timeline", func(c *gin.Context) {
		*hits++
		c.Status(http.StatusNoContent)
	})
	return r
}

func get(r *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestResponseCache_Middleware(t *testing.T) {
	rc := NewResponseCache(time.Minute)
	var hits int
	r := newCachedRouter(rc, &hits)

	first := get(r, http.MethodGet, "/timeline?view=day")
	second := get(r, http.MethodGet, "/timeline?view=day")
	assert.Equal(t, 1, hits)
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.Equal(t, "application/json; charset=utf-8", second.Header().Get("Content-Type"))

	get(r, http.MethodGet, "/timeline?view=week")
	assert.Equal(t, 2, hits, "query string is part of the key")

	get(r, http.MethodGet, "/broken")
	get(r, http.MethodGet, "/broken")
	assert.Equal(t, 4, hits, "errors are not cached")

	get(r, http.MethodPost, "/timeline")
	get(r, http.MethodPost, "/timeline")
	assert.Equal(t, 6, hits)
	assert.Equal(t, 2, rc.Len())
}

func TestResponseCache_ObserveMove(t *testing.T) {
	rc := NewResponseCache(time.Minute)
	var hits int
	r := newCachedRouter(rc, &hits)
	get(r, http.MethodGet, "/timeline")

	rc.ObserveMove(context.Background(), schedule.MoveRecord{Result: schedule.MoveResult{Outcome: schedule.OutcomeRejected}})
	assert.Equal(t, 1, rc.Len(), "rejected moves leave the cache alone")

	rc.ObserveMove(context.Background(), schedule.MoveRecord{Result: schedule.MoveResult{Outcome: schedule.OutcomeCommitted}})
	assert.Zero(t, rc.Len())

	w := get(r, http.MethodGet, "/timeline")
	assert.JSONEq(t, fmt.Sprintf(`{"render":%d}`, 2), w.Body.String())
}

func TestResponseCache_SkipsResponsesRacingAFlush(t *testing.T) {
	rc := NewResponseCache(time.Minute)
	r := gin.New()
	r.Use(rc.Middleware())
	r.GET("/timeline", func(c *gin.Context) {
		rc.Invalidate() // a move commits while this view renders
		c.JSON(http.StatusOK, gin.H{"stale": true})
	})

	get(r, http.MethodGet, "/timeline")
	assert.Zero(t, rc.Len())
}
