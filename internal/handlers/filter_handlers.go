package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"catalogfacets/internal/services"
)

// FilterHandlers answers stateless filter requests whose whole state is the
// request's query string.
type FilterHandlers struct {
	filters services.FilterService
	perPage int
}

func NewFilterHandlers(filters services.FilterService, perPage int) *FilterHandlers {
	return &FilterHandlers{filters: filters, perPage: perPage}
}

type ProductPageRequest struct {
	Page    int `query:"page" validate:"gte=0"`
	PerPage int `query:"per_page" validate:"gte=0,lte=200"`
}

// GetFilters decodes the query string and returns the facet view with counts.
func (h *FilterHandlers) GetFilters(c echo.Context) error {
	response, err := h.filters.Filters(c.Request().Context(), c.QueryString())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, response)
}

// ListProducts returns the ids of the products matching the query string.
// page and per_page are pagination and never part of the filter state.
func (h *FilterHandlers) ListProducts(c echo.Context) error {
	var req ProductPageRequest
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, &req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid query parameters")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid pagination")
	}
	if req.PerPage == 0 {
		req.PerPage = h.perPage
	}

	page, err := h.filters.Products(c.Request().Context(), c.QueryString(), req.Page, req.PerPage)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, page)
}
