package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
)

// LatencyRecorder receives one sample per completed request.
type LatencyRecorder interface {
	Record(route string, d time.Duration, failed bool)
}

// Latency feeds rec with the handler duration of API routes.
func Latency(rec LatencyRecorder, prefix string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			route := c.Path()
			if len(route) < len(prefix) || route[:len(prefix)] != prefix {
				return err
			}
			failed := err != nil || c.Response().Status >= 500
			rec.Record(route, time.Since(start), failed)
			return err
		}
	}
}
