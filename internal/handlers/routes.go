package handlers

import (
	"github.com/labstack/echo/v4"

	"catalogfacets/internal/middleware"
)

// Routes groups every handler the server mounts. Jobs may be nil.
type Routes struct {
	Health     *HealthHandlers
	Filters    *FilterHandlers
	Sessions   *SessionHandlers
	Categories *CategoryHandlers
	Jobs       *JobHandlers
}

// Register mounts the health probes and the /v1 API on e.
func (r Routes) Register(e *echo.Echo, versions *middleware.VersionMiddleware, v1Middleware ...echo.MiddlewareFunc) {
	e.GET("/health", r.Health.HealthCheck)
	e.GET("/health/ready", r.Health.ReadinessCheck)

	v1 := e.Group("/v1", append([]echo.MiddlewareFunc{versions.VersionHeader("v1")}, v1Middleware...)...)

	v1.GET("/filters", r.Filters.GetFilters)
	v1.GET("/products", r.Filters.ListProducts)

	v1.GET("/categories/tree", r.Categories.GetCategoryTree)
	v1.GET("/attributes", r.Categories.ListAttributes)
	v1.GET("/catalog/snapshot", r.Categories.GetSnapshotURL)

	sessions := v1.Group("/sessions")
	sessions.POST("", r.Sessions.CreateSession)
	sessions.GET("/:id", r.Sessions.GetSession)
	sessions.POST("/:id/toggle", r.Sessions.Toggle)
	sessions.PUT("/:id/range", r.Sessions.SetRange)
	sessions.PUT("/:id/attributes", r.Sessions.SetAttribute)
	sessions.PUT("/:id/search", r.Sessions.SetSearch)
	sessions.PUT("/:id/sort", r.Sessions.SetSort)
	sessions.POST("/:id/clear", r.Sessions.ClearAll)
	sessions.POST("/:id/navigate", r.Sessions.Navigate)
	sessions.DELETE("/:id", r.Sessions.DeleteSession)

	if r.Jobs != nil {
		v1.GET("/jobs", r.Jobs.ListJobs)
		v1.POST("/jobs/:name/run", r.Jobs.RunJob)
	}
}
