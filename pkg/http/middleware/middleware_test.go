package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

type countingLimiter struct {
	budget int
	seen   map[string]int
}

func (l *countingLimiter) Allow(key string) bool {
	l.seen[key]++
	return l.seen[key] <= l.budget
}

type sampleSink struct {
	mu      sync.Mutex
	samples map[string][]bool
}

func (s *sampleSink) Record(route string, _ time.Duration, failed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples[route] = append(s.samples[route], failed)
}

func do(e *echo.Echo, target, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.Header.Set(echo.HeaderXRealIP, ip)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestRateLimitPerClient(t *testing.T) {
	e := echo.New()
	lim := &countingLimiter{budget: 2, seen: map[string]int{}}
	e.Use(RateLimit(lim, "/health"))
	ok := func(c echo.Context) error { return c.String(http.StatusOK, "ok") }
	e.GET("/api/x", ok)
	e.GET("/health", ok)

	assert.Equal(t, http.StatusOK, do(e, "/api/x", "1.1.1.1").Code)
	assert.Equal(t, http.StatusOK, do(e, "/api/x", "1.1.1.1").Code)
	rec := do(e, "/api/x", "1.1.1.1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, do(e, "/api/x", "2.2.2.2").Code)
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, do(e, "/health", "1.1.1.1").Code)
	}
}

func TestLatencyRecordsApiRoutesOnly(t *testing.T) {
	e := echo.New()
	sink := &sampleSink{samples: map[string][]bool{}}
	e.Use(Latency(sink, "/api/"))
	e.GET("/api/market-data", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/api/fail", func(c echo.Context) error { return errors.New("x") })
	e.GET("/health", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	do(e, "/api/market-data", "")
	do(e, "/api/fail", "")
	do(e, "/health", "")

	assert.Equal(t, []bool{false}, sink.samples["/api/market-data"])
	assert.Equal(t, []bool{true}, sink.samples["/api/fail"])
	assert.NotContains(t, sink.samples, "/health")
}

func TestStatusClass(t *testing.T) {
	assert.Equal(t, "2xx", StatusClass(204))
	assert.Equal(t, "4xx", StatusClass(429))
	assert.Equal(t, "5xx", StatusClass(502))
}
