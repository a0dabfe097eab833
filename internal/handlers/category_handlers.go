package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"catalogfacets/internal/facets"
	"catalogfacets/internal/services"
)

// CategoryHandlers expose the loaded catalogue taxonomy.
type CategoryHandlers struct {
	catalog        facets.Catalog
	snapshots      services.SnapshotStore
	snapshotObject string
}

// NewCategoryHandlers creates the handlers; snapshots may be nil when object
// storage is not configured.
func NewCategoryHandlers(catalog facets.Catalog, snapshots services.SnapshotStore, snapshotObject string) *CategoryHandlers {
	return &CategoryHandlers{catalog: catalog, snapshots: snapshots, snapshotObject: snapshotObject}
}

// GetCategoryTree returns the category hierarchy with the repairs made while
// building it.
func (h *CategoryHandlers) GetCategoryTree(c echo.Context) error {
	tree := h.catalog.Tree()
	problems := make([]string, 0, len(tree.Problems()))
	for _, p := range tree.Problems() {
		problems = append(problems, p.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"categories": tree.Nested(),
		"count":      tree.Len(),
		"problems":   problems,
	})
}

func (h *CategoryHandlers) ListAttributes(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"attributes": h.catalog.Attributes(),
	})
}

// GetSnapshotURL returns a short-lived download link for the taxonomy snapshot.
func (h *CategoryHandlers) GetSnapshotURL(c echo.Context) error {
	if h.snapshots == nil {
		return echo.NewHTTPError(http.StatusNotFound, "Snapshots are not enabled")
	}
	url, err := h.snapshots.GetPresignedURL(c.Request().Context(), h.snapshotObject, 15*time.Minute)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"url": url})
}
