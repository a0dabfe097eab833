package controller

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"catalogfacets/internal/facets"
	"catalogfacets/internal/matching"
	"catalogfacets/internal/models"
	"catalogfacets/internal/query"
	"catalogfacets/internal/taxonomy"
	"catalogfacets/internal/urlcodec"
)

type MockCounter struct {
	mock.Mock
}

func (m *MockCounter) Count(ctx context.Context, state query.State) *facets.Result {
	args := m.Called(ctx, state)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(*facets.Result)
}

type fixedCatalog struct {
	tree       *taxonomy.Tree
	attributes []models.AttributeTaxonomy
}

func (c fixedCatalog) Tree() *taxonomy.Tree                   { return c.tree }
func (c fixedCatalog) Attributes() []models.AttributeTaxonomy { return c.attributes }

func testCatalog() fixedCatalog {
	return fixedCatalog{
		tree: taxonomy.Build([]models.Category{
			{ID: "clothing", Name: "Clothing"},
			{ID: "shirts", Name: "Shirts", ParentID: "clothing"},
			{ID: "boots", Name: "Boots"},
		}),
		attributes: []models.AttributeTaxonomy{{
			Name:  "pa_color",
			Label: "Color",
			Terms: []models.AttributeTerm{{Slug: "red", Name: "Red"}, {Slug: "blue", Name: "Blue"}},
		}},
	}
}

func waitSettled(t *testing.T, c *Controller) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.Wait(ctx))
}

type ControllerTestSuite struct {
	suite.Suite
	counter  *MockCounter
	location *urlcodec.MemoryLocation
}

func (suite *ControllerTestSuite) SetupTest() {
	suite.counter = new(MockCounter)
	suite.location = urlcodec.NewMemoryLocation("/shop")
}

func (suite *ControllerTestSuite) newController(logger *zap.Logger) *Controller {
	return New(suite.location, suite.counter, testCatalog(), logger)
}

func (suite *ControllerTestSuite) TestURLFollowsMutations() {
	suite.counter.On("Count", mock.Anything, mock.Anything).Return(&facets.Result{})
	c := suite.newController(nil)

	require.NoError(suite.T(), c.Toggle(query.FacetStockStatus, query.StockInStock))
	assert.Equal(suite.T(), "/shop?stock_status=instock", suite.location.Current())

	require.NoError(suite.T(), c.SetRange(query.Float(10), query.Float(50)))
	assert.Equal(suite.T(), "/shop?stock_status=instock&min_price=10&max_price=50", suite.location.Current())

	require.NoError(suite.T(), c.SetRange(nil, nil))
	assert.Equal(suite.T(), "/shop?stock_status=instock", suite.location.Current())
	assert.Equal(suite.T(), "/shop?stock_status=instock", c.URL())
	assert.Equal(suite.T(), 3, suite.location.Replacements())

	// a no-op mutation leaves the history entry alone
	require.NoError(suite.T(), c.Toggle(query.FacetPrice, "10"))
	assert.Equal(suite.T(), 3, suite.location.Replacements())
}

func (suite *ControllerTestSuite) TestClearAllKeepsOnlyOrderBy() {
	suite.location = urlcodec.NewMemoryLocation(
		"/shop?product_cat=shirts&filter_color=red&filter_color_qt=and&s=boots&orderby=price&min_price=1&page_id=7")
	suite.counter.On("Count", mock.Anything, mock.Anything).Return(&facets.Result{})
	c := suite.newController(nil)

	require.Equal(suite.T(), []string{"shirts"}, c.State().Categories)
	require.NoError(suite.T(), c.ClearAll())

	assert.Equal(suite.T(), "/shop?orderby=price&page_id=7", suite.location.Current())
	state := c.State()
	assert.True(suite.T(), state.IsEmpty())
	assert.Equal(suite.T(), "price", c.State().OrderBy)
}

func (suite *ControllerTestSuite) TestSubscribersNotifiedOncePerMutation() {
	suite.counter.On("Count", mock.Anything, mock.Anything).Return(&facets.Result{})
	c := suite.newController(nil)

	var seen []query.State
	unsubscribe := c.Subscribe(func(s query.State) { seen = append(seen, s) })

	require.NoError(suite.T(), c.Toggle(query.FacetCategory, "shirts"))
	require.NoError(suite.T(), c.SetSearch("red"))
	require.Len(suite.T(), seen, 2)
	assert.Equal(suite.T(), []string{"shirts"}, seen[0].Categories)
	assert.Equal(suite.T(), "red", seen[1].Search)

	unsubscribe()
	require.NoError(suite.T(), c.SetSearch(""))
	assert.Len(suite.T(), seen, 2)
}

func (suite *ControllerTestSuite) TestValidationErrorLeavesStateUntouched() {
	suite.counter.On("Count", mock.Anything, mock.Anything).Return(&facets.Result{})
	c := suite.newController(nil)
	require.NoError(suite.T(), c.SetRange(query.Float(5), nil))

	notified := 0
	c.Subscribe(func(query.State) { notified++ })
	before, gen := c.State(), c.Generation()

	err := c.SetRange(query.Float(60), query.Float(50))
	assert.True(suite.T(), query.IsValidationError(err))
	err = c.ToggleKey("colour", "red")
	assert.True(suite.T(), query.IsValidationError(err))
	err = c.SetSort("cheapest")
	assert.True(suite.T(), query.IsValidationError(err))

	assert.True(suite.T(), before.Equal(c.State()))
	assert.Equal(suite.T(), gen, c.Generation())
	assert.Zero(suite.T(), notified)
	assert.Equal(suite.T(), "/shop?min_price=5", suite.location.Current())
}

func (suite *ControllerTestSuite) TestStaleCountsAreNeverApplied() {
	core, logs := observer.New(zapcore.DebugLevel)
	release := make(chan struct{})
	stale := &facets.Result{StockStatus: facets.Counts{"stale": 1}}
	fresh := &facets.Result{StockStatus: facets.Counts{query.StockInStock: 4}}

	inStock := mock.MatchedBy(func(s query.State) bool {
		return s.Active(query.FacetStockStatus, query.StockInStock) && len(s.Categories) == 0
	})
	withCategory := mock.MatchedBy(func(s query.State) bool { return len(s.Categories) > 0 })

	suite.counter.On("Count", mock.Anything, inStock).
		Run(func(mock.Arguments) { <-release }).
		Return(stale)
	suite.counter.On("Count", mock.Anything, withCategory).Return(fresh)
	suite.counter.On("Count", mock.Anything, mock.Anything).Return(&facets.Result{})

	c := suite.newController(zap.New(core))
	waitSettled(suite.T(), c)

	applied := make(chan uint64, 4)
	c.OnCounts(func(gen uint64, _ *facets.Result) { applied <- gen })

	require.NoError(suite.T(), c.Toggle(query.FacetStockStatus, query.StockInStock)) // generation 2, blocked
	require.NoError(suite.T(), c.Toggle(query.FacetCategory, "shirts"))              // generation 3
	waitSettled(suite.T(), c)
	select {
	case gen := <-applied:
		assert.Equal(suite.T(), uint64(3), gen)
	case <-time.After(2 * time.Second):
		suite.T().Fatal("fresh counts were never applied")
	}

	close(release)
	require.Eventually(suite.T(), func() bool {
		return logs.FilterMessage("discarding stale facet counts").Len() == 1
	}, 2*time.Second, 10*time.Millisecond)

	snap := c.View()
	assert.Equal(suite.T(), uint64(3), snap.CountsGeneration)
	assert.Empty(suite.T(), applied)
	stock := snap.View.Facets[2]
	require.Equal(suite.T(), "stock_status", stock.Key)
	for _, o := range stock.Options {
		assert.NotEqual(suite.T(), "stale", o.Value)
	}
	assert.Equal(suite.T(), 4, *stock.Options[0].Count)
}

func (suite *ControllerTestSuite) TestNavigateRehydratesWithoutRewriting() {
	suite.counter.On("Count", mock.Anything, mock.Anything).Return(&facets.Result{})
	c := suite.newController(nil)
	require.NoError(suite.T(), c.Toggle(query.FacetStockStatus, query.StockInStock))

	notified := 0
	c.Subscribe(func(query.State) { notified++ })

	suite.location.Navigate("/shop?product_cat=boots")
	c.Navigate()

	assert.Equal(suite.T(), []string{"boots"}, c.State().Categories)
	assert.Empty(suite.T(), c.State().StockStatus)
	assert.Equal(suite.T(), 1, suite.location.Replacements())
	assert.Equal(suite.T(), 1, notified)
}

func TestControllerTestSuite(t *testing.T) {
	suite.Run(t, new(ControllerTestSuite))
}

func TestView_CountsExcludeOwnFacet(t *testing.T) {
	matcher := matching.NewMemory([]models.Product{
		{ID: "1", Price: 10, StockStatus: query.StockInStock, Categories: []string{"shirts"},
			Attributes: map[string][]string{"pa_color": {"red"}}},
		{ID: "2", Price: 20, StockStatus: query.StockOutOfStock, Categories: []string{"shirts"},
			Attributes: map[string][]string{"pa_color": {"blue"}}},
		{ID: "3", Price: 30, StockStatus: query.StockInStock, Categories: []string{"boots"},
			Attributes: map[string][]string{"pa_color": {"red"}}},
	})
	catalog := testCatalog()
	c := New(urlcodec.NewMemoryLocation("/shop"), facets.NewCounter(matcher, catalog, nil), catalog, nil)

	require.NoError(t, c.Toggle(query.FacetStockStatus, query.StockInStock))
	require.NoError(t, c.Toggle(query.FacetCategory, "shirts"))
	waitSettled(t, c)

	byKey := map[string]facets.FacetView{}
	for _, f := range c.View().View.Facets {
		byKey[f.Key+f.Attribute] = f
	}
	counts := func(f facets.FacetView) map[string]int {
		out := map[string]int{}
		for _, o := range f.Options {
			out[o.Value] = *o.Count
		}
		return out
	}

	// category lifted, stock kept
	assert.Equal(t, map[string]int{"clothing": 1, "shirts": 1, "boots": 1}, counts(byKey["category"]))
	// stock lifted, category kept
	assert.Equal(t, map[string]int{query.StockInStock: 1, query.StockOutOfStock: 1}, counts(byKey["stock_status"]))
	// both kept
	assert.Equal(t, map[string]int{"red": 1}, counts(byKey["attributespa_color"]))
	assert.Equal(t, &models.PriceBounds{Min: 10, Max: 10}, byKey["price"].Price.Bounds)
}
