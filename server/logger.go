package server

import (
	"fmt"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/gaborage/httpretry/logger"
	"github.com/gaborage/httpretry/retry"
	"github.com/gaborage/httpretry/trace"
)

// LoggerConfig configures the request logging middleware.
type LoggerConfig struct {
	// SkipPaths are not logged, e.g. the health check.
	SkipPaths []string

	// SlowRequestThreshold marks slower requests with result_code="WARN"
	SlowRequestThreshold time.Duration
}

// LoggerWithConfig returns a middleware that logs one summary per request.
// 5xx replies are logged at error level and 4xx at warn level.
func LoggerWithConfig(log logger.Logger, cfg LoggerConfig) echo.MiddlewareFunc {
	skip := make(map[string]struct{}, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = struct{}{}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			path := c.Path()
			if path == "" {
				path = c.Request().URL.Path
			}
			if _, ok := skip[path]; ok {
				return next(c)
			}

			start := time.Now()
			err := next(c)
			if err != nil {
				// Let the error handler write the reply so the status is final.
				c.Error(err)
			}
			latency := time.Since(start)
			status := c.Response().Status

			level, resultCode := determineSeverity(status, latency, cfg.SlowRequestThreshold)
			req := c.Request()
			event := createLogEvent(log.WithContext(req.Context()), level)
			if err != nil {
				event = event.Err(err)
			}
			event.
				Str("request_id", req.Header.Get(trace.HeaderXRequestID)).
				Str(retry.AttemptKey, req.Header.Get(retry.DefaultAttemptHeader)).
				Str("http.request.method", req.Method).
				Int("http.response.status_code", status).
				Int64("http.server.request.duration", latency.Nanoseconds()).
				Str("url.path", req.URL.Path).
				Str("http.route", c.Path()).
				Str("result_code", resultCode).
				Msg(fmt.Sprintf("%s %s %d", req.Method, req.URL.Path, status))

			// Already handled above.
			return nil
		}
	}
}

// determineSeverity maps status and latency to a log level and result code.
func determineSeverity(status int, latency, threshold time.Duration) (level, resultCode string) {
	switch {
	case status >= 500:
		return "error", "ERROR"
	case status >= 400:
		return "warn", "WARN"
	case threshold > 0 && latency > threshold:
		return "warn", "WARN"
	default:
		return "info", "INFO"
	}
}

func createLogEvent(log logger.Logger, level string) logger.LogEvent {
	switch level {
	case "error":
		return log.Error()
	case "warn":
		return log.Warn()
	default:
		return log.Info()
	}
}
