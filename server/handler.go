package server

import (
	"maps"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/gaborage/httpretry/retry"
	"github.com/gaborage/httpretry/trace"
)

// Stats reports how often the scripted endpoint was hit.
type Stats struct {
	Total int `json:"total"`
	// Requests counts hits per X-Request-ID. Requests without one share the "" key.
	Requests map[string]int `json:"requests"`
}

// scriptHandler replays a Script per request ID, so every attempt of one
// logical request advances the same script.
type scriptHandler struct {
	script Script

	mu    sync.Mutex
	total int
	hits  map[string]int
}

func newScriptHandler(script Script) *scriptHandler {
	return &scriptHandler{script: script, hits: make(map[string]int)}
}

// next records a hit for key and returns its step with the 1-based hit number.
func (h *scriptHandler) next(key string) (Step, int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := h.hits[key]
	h.hits[key] = n + 1
	h.total++
	return h.script.At(n), n + 1
}

func (h *scriptHandler) stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return Stats{Total: h.total, Requests: maps.Clone(h.hits)}
}

func (h *scriptHandler) reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.total = 0
	clear(h.hits)
}

func (h *scriptHandler) handle(c echo.Context) error {
	requestID := c.Request().Header.Get(trace.HeaderXRequestID)
	step, hit := h.next(requestID)

	if step.Delay > 0 {
		timer := time.NewTimer(step.Delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-c.Request().Context().Done():
			// The client gave up; nobody reads the reply.
			return nil
		}
	}

	if step.RetryAfter != "" {
		c.Response().Header().Set(retry.HeaderRetryAfter, step.RetryAfter)
	}
	switch {
	case step.Status >= http.StatusBadRequest:
		return echo.NewHTTPError(step.Status, http.StatusText(step.Status))
	case step.Status == http.StatusNoContent || step.Status == http.StatusNotModified:
		return c.NoContent(step.Status)
	}

	return c.JSON(step.Status, map[string]any{
		"hit":        hit,
		"request_id": requestID,
		"attempt":    c.Request().Header.Get(retry.DefaultAttemptHeader),
	})
}

func (h *scriptHandler) handleStats(c echo.Context) error {
	return c.JSON(http.StatusOK, h.stats())
}

func (h *scriptHandler) handleReset(c echo.Context) error {
	h.reset()
	return c.NoContent(http.StatusNoContent)
}
