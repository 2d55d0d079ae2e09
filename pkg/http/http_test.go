package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"MarketMonitor/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pairsQuery struct {
	Pairs string `query:"pairs" validate:"required,pairlist"`
	Hours int    `query:"hours" default:"24" validate:"gt=0"`
}

type stubHandler struct{}

func (stubHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/pairs", func(c echo.Context) error {
		var q pairsQuery
		if errs := ReadAndValidateRequest(c, &q); errs != nil {
			return BadRequestResponse(c, errs)
		}
		return SuccessResponse(c, q)
	})
	e.GET("/upstream", func(c echo.Context) error {
		return AppErrorResponse(c, BadGatewayError("upstream unavailable").WithError(errors.New("dial tcp")))
	})
	e.GET("/panic", func(c echo.Context) error {
		panic("boom")
	})
}

func serve(t *testing.T, method, target string, opts ...ServerOption) (*httptest.ResponseRecorder, APIResponse) {
	t.Helper()
	srv := NewServer(stubHandler{}, logger.Nop(), opts...)
	req := httptest.NewRequest(method, target, nil)
	req.Header.Set(echo.HeaderOrigin, "http://localhost:3000")
	rec := httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, req)

	var body APIResponse
	if rec.Body.Len() > 0 && rec.Header().Get(echo.HeaderContentType) != "" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestPairListValidation(t *testing.T) {
	cases := []struct {
		target string
		status int
	}{
		{"/pairs?pairs=gate.io:KYO-USDT-SPOT,binance:BTC-USDT", http.StatusOK},
		{"/pairs", http.StatusBadRequest},
		{"/pairs?pairs=gate.io", http.StatusBadRequest},
		{"/pairs?pairs=gate.io:,binance:BTC", http.StatusBadRequest},
		{"/pairs?pairs=a:b&hours=-1", http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.target, func(t *testing.T) {
			rec, body := serve(t, http.MethodGet, tc.target)
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.status, body.Status)
		})
	}
}

func TestDefaultsApplied(t *testing.T) {
	_, body := serve(t, http.MethodGet, "/pairs?pairs=a:b")
	data := body.Data.(map[string]interface{})
	assert.Equal(t, float64(24), data["Hours"])
}

func TestAppErrorStatus(t *testing.T) {
	rec, body := serve(t, http.MethodGet, "/upstream")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "Bad Gateway", body.Message)
	assert.NotContains(t, rec.Body.String(), "dial tcp")
}

func TestRecoverAndNotFound(t *testing.T) {
	rec, _ := serve(t, http.MethodGet, "/panic")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec, body := serve(t, http.MethodGet, "/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, http.StatusNotFound, body.Status)
}

func TestCORSPreflight(t *testing.T) {
	rec, _ := serve(t, http.MethodOptions, "/pairs", WithCORSOrigins("*"))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
	assert.Contains(t, rec.Header().Get(echo.HeaderAccessControlAllowMethods), "POST")
}

func TestClientSendAndParse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			var in map[string]string
			_ = json.NewDecoder(r.Body).Decode(&in)
			_ = json.NewEncoder(w).Encode(map[string]string{"echo": in["name"]})
		default:
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("down"))
		}
	}))
	defer ts.Close()

	c := NewClient(WithTimeout(time.Second))
	var out map[string]string
	err := c.SendAndParse(context.Background(), &RequestOptions{Method: http.MethodPost, URL: ts.URL + "/ok", Body: map[string]string{"name": "x"}}, &out)
	require.NoError(t, err)
	assert.Equal(t, "x", out["echo"])

	err = c.SendAndParse(context.Background(), &RequestOptions{Method: http.MethodGet, URL: ts.URL + "/bad"}, nil)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusServiceUnavailable, se.Code)
	assert.True(t, se.Temporary())
	assert.Equal(t, "down", se.Body)
}
