package mw

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newLimitedRouter() *gin.Engine {
	r := gin.New()
	r.Use(RateLimiter(rate.Limit(0.001), 2, ClientIPKey, OperatorKey("X-Operator-ID")))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func call(r *gin.Engine, remoteAddr, operator string) int {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = remoteAddr
	if operator != "" {
		req.Header.Set("X-Operator-ID", operator)
	}
	r.ServeHTTP(w, req)
	return w.Code
}

func TestRateLimiter_PerOperator(t *testing.T) {
	r := newLimitedRouter()

	assert.Equal(t, http.StatusOK, call(r, "10.0.0.1:1000", "alice"))
	assert.Equal(t, http.StatusOK, call(r, "10.0.0.1:1000", "alice"))
	assert.Equal(t, http.StatusTooManyRequests, call(r, "10.0.0.1:1000", "alice"))

	assert.Equal(t, http.StatusOK, call(r, "10.0.0.2:1000", "bob"), "operators have separate buckets")
	assert.Equal(t, http.StatusTooManyRequests, call(r, "10.0.0.3:1000", "alice"), "alice is limited from any address")
	assert.Equal(t, http.StatusOK, call(r, "10.0.0.4:1000", ""))
}

func TestRateLimiter_RotatingOperatorHeaderIsStillLimited(t *testing.T) {
	r := newLimitedRouter()

	codes := make([]int, 0, 5)
	for i := 0; i < 5; i++ {
		codes = append(codes, call(r, "10.0.0.9:1000", fmt.Sprintf("op-%d", i)))
	}
	assert.Equal(t, []int{
		http.StatusOK,
		http.StatusOK,
		http.StatusTooManyRequests,
		http.StatusTooManyRequests,
		http.StatusTooManyRequests,
	}, codes)
}

func TestKeyedRateLimiter_GetLimiter(t *testing.T) {
	l := NewKeyedRateLimiter(rate.Limit(1), 1, time.Minute)
	a := l.GetLimiter("a")
	assert.Same(t, a, l.GetLimiter("a"))
	assert.NotSame(t, a, l.GetLimiter("b"))
	assert.Equal(t, 2, l.Len())
}

func TestKeyedRateLimiter_EvictsIdleKeys(t *testing.T) {
	l := NewKeyedRateLimiter(rate.Limit(1), 1, 20*time.Millisecond)
	a := l.GetLimiter("a")
	for i := 0; i < 50; i++ {
		l.GetLimiter(fmt.Sprintf("caller-%d", i))
	}

	assert.Eventually(t, func() bool { return l.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.NotSame(t, a, l.GetLimiter("a"), "an evicted caller starts with a fresh bucket")
}

func TestKeyedRateLimiter_UseKeepsKeyAlive(t *testing.T) {
	l := NewKeyedRateLimiter(rate.Limit(1), 1, 300*time.Millisecond)
	a := l.GetLimiter("a")
	for i := 0; i < 5; i++ {
		time.Sleep(100 * time.Millisecond)
		assert.Same(t, a, l.GetLimiter("a"))
	}
}
