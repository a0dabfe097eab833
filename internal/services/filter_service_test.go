package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"catalogfacets/internal/facets"
	"catalogfacets/internal/matching"
	"catalogfacets/internal/models"
)

func testFilterService(t *testing.T) FilterService {
	t.Helper()
	snapshot := testSnapshot()
	snapshot.Products = append(snapshot.Products,
		models.Product{ID: "p2", Name: "Oxford shirt", Price: 55, StockStatus: "outofstock", AverageRating: 4.2, Categories: []string{"2"}},
		models.Product{ID: "p3", Name: "Rain coat", Price: 120, StockStatus: "instock", AverageRating: 4.8, Categories: []string{"1"}},
	)
	catalog := NewCatalogService(nil, nil, 0, nil)
	catalog.Load(snapshot.Categories, snapshot.Attributes)
	counter := facets.NewCounter(matching.NewMemory(snapshot.Products), catalog, nil)
	return NewFilterService(counter, catalog, facets.ViewConfig{}, nil)
}

func facetView(t *testing.T, view facets.View, key string) facets.FacetView {
	t.Helper()
	for _, f := range view.Facets {
		if f.Key == key {
			return f
		}
	}
	t.Fatalf("facet %q not in view", key)
	return facets.FacetView{}
}

func TestFilters_CountsAndCanonicalQuery(t *testing.T) {
	service := testFilterService(t)

	response, err := service.Filters(context.Background(), "rating=9&stock_status=instock&utm_source=mail")

	require.NoError(t, err)
	assert.Equal(t, "stock_status=instock", response.Query)
	require.Len(t, response.Errors, 1)
	assert.Contains(t, response.Errors[0], "rating")

	stock := facetView(t, response.View, "stock_status")
	assert.True(t, stock.Available)
	for _, option := range stock.Options {
		if option.Value == "outofstock" {
			require.NotNil(t, option.Count)
			assert.Equal(t, 1, *option.Count)
		}
	}

	categories := facetView(t, response.View, "category")
	require.NotEmpty(t, categories.Options)
	assert.Equal(t, "1", categories.Options[0].Value)
	assert.Equal(t, 2, *categories.Options[0].Count)
}

func TestFilters_CancelledContext(t *testing.T) {
	service := testFilterService(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := service.Filters(ctx, "")

	assert.ErrorIs(t, err, context.Canceled)
}

func TestProducts_Paginates(t *testing.T) {
	service := testFilterService(t)

	page, err := service.Products(context.Background(), "orderby=price", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2"}, page.IDs)
	assert.Equal(t, 3, page.Total)

	page, err = service.Products(context.Background(), "orderby=price", 2, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"p3"}, page.IDs)

	page, err = service.Products(context.Background(), "orderby=price", 9, 2)
	require.NoError(t, err)
	assert.Empty(t, page.IDs)
	assert.Equal(t, 9, page.Page)
}
