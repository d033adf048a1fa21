package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newEngine(mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(mw...)
	r.POST("/upload", func(ctx *gin.Context) {
		ctx.String(http.StatusOK, RequestIDFrom(ctx))
	})
	return r
}

func post(r http.Handler, remoteAddr string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/upload", nil)
	req.RemoteAddr = remoteAddr
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestRateLimitMiddleware_BlocksAfterBurst(t *testing.T) {
	r := newEngine(RateLimitMiddleware(2)) // burst of 1

	assert.Equal(t, http.StatusOK, post(r, "10.0.0.1:1234", nil).Code)

	rec := post(r, "10.0.0.1:1234", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.JSONEq(t, `{"error":"rate limit exceeded"}`, rec.Body.String())

	assert.Equal(t, http.StatusOK, post(r, "10.0.0.2:1234", nil).Code, "other clients keep their own bucket")
}

func TestRateLimitMiddleware_Disabled(t *testing.T) {
	r := newEngine(RateLimitMiddleware(0))
	for i := 0; i < 20; i++ {
		require.Equal(t, http.StatusOK, post(r, "10.0.0.1:1234", nil).Code)
	}
}

func TestIPLimiters_DropsIdleEntries(t *testing.T) {
	l := &ipLimiters{limiters: map[string]*rateLimiter{}, limit: 1, burst: 1}
	now := time.Now()

	assert.True(t, l.allow("a", now))
	assert.Len(t, l.limiters, 1)

	assert.True(t, l.allow("b", now.Add(limiterIdleTTL+time.Second)))
	assert.Len(t, l.limiters, 1, "idle limiter for a must be dropped")
}

func TestRequestID(t *testing.T) {
	r := newEngine(RequestID())

	rec := post(r, "10.0.0.1:1234", nil)
	generated := rec.Header().Get(RequestIDHeader)
	assert.Len(t, generated, 36)
	assert.Equal(t, generated, rec.Body.String())

	rec = post(r, "10.0.0.1:1234", http.Header{RequestIDHeader: {"client-rid"}})
	assert.Equal(t, "client-rid", rec.Header().Get(RequestIDHeader))
	assert.Equal(t, "client-rid", rec.Body.String())
}
