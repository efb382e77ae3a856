// Package server runs a scripted upstream for exercising the retrying client.
// Each logical request, identified by its X-Request-ID, walks the script one
// step per attempt, so a script such as "503,429@1,200" shows the client's
// retry and Retry-After behaviour end to end.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/gaborage/httpretry/config"
	"github.com/gaborage/httpretry/logger"
)

const (
	// ScriptRoute replies according to the script.
	ScriptRoute = "/script"
	// StatsRoute reports hit counts; DELETE resets them.
	StatsRoute = "/stats"
	// HealthRoute always replies 200.
	HealthRoute = "/health"
)

// Server is the scripted upstream.
type Server struct {
	echo     *echo.Echo
	cfg      config.ServerConfig
	logger   logger.Logger
	basePath string
	script   *scriptHandler
}

// normalizeBasePath ensures the base path starts with "/" and doesn't end with "/"
// unless it's the root path. Empty string is returned as-is (no prefix).
func normalizeBasePath(basePath string) string {
	if basePath == "" {
		return ""
	}

	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}

	if len(basePath) > 1 {
		basePath = strings.TrimRight(basePath, "/")
	}

	return basePath
}

// buildFullPath combines base path with route path
func (s *Server) buildFullPath(route string) string {
	if s.basePath == "" || s.basePath == "/" {
		return route
	}
	return s.basePath + route
}

// New creates the upstream and registers its routes. The script is parsed
// here so a bad script fails before the listener opens.
func New(cfg config.ServerConfig, log logger.Logger) (*Server, error) {
	if log == nil {
		log = logger.Nop()
	}
	script, err := ParseScript(cfg.Script)
	if err != nil {
		return nil, fmt.Errorf("invalid script: %w", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = customErrorHandler

	s := &Server{
		echo:     e,
		cfg:      cfg,
		logger:   log,
		basePath: normalizeBasePath(cfg.BasePath),
		script:   newScriptHandler(script),
	}

	healthPath := s.buildFullPath(HealthRoute)
	e.Use(middleware.Recover())
	e.Use(LoggerWithConfig(log, LoggerConfig{
		SkipPaths:            []string{healthPath},
		SlowRequestThreshold: time.Second,
	}))

	e.GET(healthPath, s.healthCheck)
	e.Any(s.buildFullPath(ScriptRoute), s.script.handle)
	e.GET(s.buildFullPath(StatsRoute), s.script.handleStats)
	e.DELETE(s.buildFullPath(StatsRoute), s.script.handleReset)

	log.Debug().
		Str("base_path", s.basePath).
		Str("script", script.String()).
		Msg("Upstream routes configured")

	return s, nil
}

// Handler exposes the router, e.g. for httptest.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Stats returns the current hit counts.
func (s *Server) Stats() Stats {
	return s.script.stats()
}

// Start listens on the configured address and blocks until Shutdown.
// It returns nil after a graceful shutdown.
func (s *Server) Start() error {
	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprint(s.cfg.Port))

	s.logger.Info().
		Str("address", addr).
		Str("script", s.script.script.String()).
		Msg("Starting upstream...")

	server := &http.Server{
		Addr:         addr,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	if err := s.echo.StartServer(server); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server with the given context.
// It waits for existing connections to finish within the context timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}
