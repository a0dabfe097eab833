package matching

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"catalogfacets/internal/models"
	"catalogfacets/internal/query"
)

type MemoryTestSuite struct {
	suite.Suite
	matcher *Memory
	ctx     context.Context
}

func (suite *MemoryTestSuite) SetupTest() {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	suite.ctx = context.Background()
	suite.matcher = NewMemory([]models.Product{
		{
			ID: "p1", Name: "Red Shirt", Price: 20, StockStatus: query.StockInStock, AverageRating: 4.4,
			TotalSales: 10, MenuOrder: 2, Categories: []string{"shirts"}, CreatedAt: base,
			Attributes: map[string][]string{"pa_color": {"red"}, "pa_size": {"m", "l"}},
		},
		{
			ID: "p2", Name: "Blue Shirt", Price: 35, StockStatus: query.StockOutOfStock, AverageRating: 3.6,
			TotalSales: 50, MenuOrder: 1, Categories: []string{"shirts"}, CreatedAt: base.Add(time.Hour),
			Attributes: map[string][]string{"pa_color": {"blue"}, "pa_size": {"m"}},
		},
		{
			ID: "p3", Name: "Rain Boots", Description: "Waterproof", Price: 60, StockStatus: query.StockInStock,
			TotalSales: 5, MenuOrder: 3, Categories: []string{"boots"}, CreatedAt: base.Add(2 * time.Hour),
			Attributes: map[string][]string{"pa_color": {"red", "blue"}},
		},
	})
}

func (suite *MemoryTestSuite) TestQuery_Filters() {
	cases := []struct {
		name     string
		criteria query.Criteria
		want     []string
	}{
		{"no filters", query.Criteria{}, []string{"p2", "p1", "p3"}},
		{"category", query.Criteria{Categories: []string{"shirts"}}, []string{"p2", "p1"}},
		{"stock", query.Criteria{StockStatus: []string{query.StockInStock}}, []string{"p1", "p3"}},
		{"rating rounds", query.Criteria{Ratings: []string{"4"}}, []string{"p2", "p1"}},
		{"price range", query.Criteria{MinPrice: query.Float(20), MaxPrice: query.Float(35)}, []string{"p2", "p1"}},
		{"search description", query.Criteria{Search: "waterPROOF"}, []string{"p3"}},
		{"attribute or", query.Criteria{Attributes: []query.AttributeFilter{
			{Attribute: "pa_color", Operator: query.OperatorOr, Slugs: []string{"red", "blue"}},
		}}, []string{"p2", "p1", "p3"}},
		{"attribute and", query.Criteria{Attributes: []query.AttributeFilter{
			{Attribute: "pa_color", Operator: query.OperatorAnd, Slugs: []string{"red", "blue"}},
		}}, []string{"p3"}},
	}

	for _, tc := range cases {
		suite.Run(tc.name, func() {
			ids, err := suite.matcher.Query(suite.ctx, tc.criteria)
			require.NoError(suite.T(), err)
			assert.Equal(suite.T(), tc.want, ids)
		})
	}
}

func (suite *MemoryTestSuite) TestQuery_SortOrders() {
	cases := map[string][]string{
		"popularity": {"p2", "p1", "p3"},
		"rating":     {"p1", "p2", "p3"},
		"date":       {"p3", "p2", "p1"},
		"price":      {"p1", "p2", "p3"},
		"price-desc": {"p3", "p2", "p1"},
		"menu_order": {"p2", "p1", "p3"},
	}
	for order, want := range cases {
		ids, err := suite.matcher.Query(suite.ctx, query.Criteria{OrderBy: order})
		require.NoError(suite.T(), err)
		assert.Equal(suite.T(), want, ids, order)
	}
}

func (suite *MemoryTestSuite) TestCountBy() {
	byColor, err := suite.matcher.CountBy(suite.ctx,
		query.FacetKey{Facet: query.FacetAttributes, Attribute: "pa_color"}, query.Criteria{})
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), map[string]int{"red": 2, "blue": 2}, byColor)

	byStock, err := suite.matcher.CountBy(suite.ctx,
		query.FacetKey{Facet: query.FacetStockStatus}, query.Criteria{Categories: []string{"shirts"}})
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), map[string]int{query.StockInStock: 1, query.StockOutOfStock: 1}, byStock)

	byRating, err := suite.matcher.CountBy(suite.ctx, query.FacetKey{Facet: query.FacetRating}, query.Criteria{})
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), map[string]int{"4": 2}, byRating)

	none, err := suite.matcher.CountBy(suite.ctx,
		query.FacetKey{Facet: query.FacetCategory}, query.Criteria{Search: "nothing"})
	require.NoError(suite.T(), err)
	assert.NotNil(suite.T(), none)
	assert.Empty(suite.T(), none)
}

func (suite *MemoryTestSuite) TestPriceBounds() {
	bounds, err := suite.matcher.PriceBounds(suite.ctx, query.Criteria{StockStatus: []string{query.StockInStock}})
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.PriceBounds{Min: 20, Max: 60}, bounds)

	empty, err := suite.matcher.PriceBounds(suite.ctx, query.Criteria{Search: "nothing"})
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.PriceBounds{}, empty)
}

func (suite *MemoryTestSuite) TestCancelledContext() {
	ctx, cancel := context.WithCancel(suite.ctx)
	cancel()

	_, err := suite.matcher.Query(ctx, query.Criteria{})

	assert.ErrorIs(suite.T(), err, context.Canceled)
}

func TestMemoryTestSuite(t *testing.T) {
	suite.Run(t, new(MemoryTestSuite))
}
