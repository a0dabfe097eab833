package handlers

import (
	"context"
	"net/http"
	"runtime"
	"sort"
	"time"

	"github.com/labstack/echo/v4"
)

// HealthCheckFunc probes one dependency.
type HealthCheckFunc func(ctx context.Context) error

// HealthHandlers handles health check and monitoring endpoints.
type HealthHandlers struct {
	version  string
	started  time.Time
	checks   map[string]HealthCheckFunc
	critical map[string]bool
}

func NewHealthHandlers(version string) *HealthHandlers {
	return &HealthHandlers{
		version:  version,
		started:  time.Now(),
		checks:   map[string]HealthCheckFunc{},
		critical: map[string]bool{},
	}
}

// AddCheck registers a dependency probe. Critical checks gate readiness.
func (h *HealthHandlers) AddCheck(name string, critical bool, check HealthCheckFunc) {
	h.checks[name] = check
	h.critical[name] = critical
}

// HealthStatus represents the overall health status
type HealthStatus struct {
	Status     string            `json:"status"`
	Timestamp  string            `json:"timestamp"`
	Services   map[string]string `json:"services"`
	Uptime     string            `json:"uptime"`
	Version    string            `json:"version"`
	Goroutines int               `json:"goroutines"`
}

func (h *HealthHandlers) run(ctx context.Context) (map[string]error, []string) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make(map[string]error, len(names))
	for _, name := range names {
		results[name] = h.checks[name](ctx)
	}
	return results, names
}

// HealthCheck reports every dependency; a failing one degrades the status.
func (h *HealthHandlers) HealthCheck(c echo.Context) error {
	results, names := h.run(c.Request().Context())
	health := &HealthStatus{
		Status:     "healthy",
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Services:   make(map[string]string, len(names)),
		Uptime:     time.Since(h.started).Round(time.Second).String(),
		Version:    h.version,
		Goroutines: runtime.NumGoroutine(),
	}
	for _, name := range names {
		if results[name] != nil {
			health.Services[name] = "unhealthy"
			health.Status = "degraded"
		} else {
			health.Services[name] = "healthy"
		}
	}
	return c.JSON(http.StatusOK, health)
}

// ReadinessCheck determines if the application is ready to serve traffic
func (h *HealthHandlers) ReadinessCheck(c echo.Context) error {
	results, names := h.run(c.Request().Context())
	for _, name := range names {
		if h.critical[name] && results[name] != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{
				"status":  "not_ready",
				"message": name + " unavailable",
			})
		}
	}
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ready",
		"message": "All systems operational",
	})
}
