// Package facets computes counterfactual facet counts and the display view.
package facets

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"catalogfacets/internal/models"
	"catalogfacets/internal/query"
	"catalogfacets/internal/taxonomy"
)

// ErrServiceUnavailable marks a count that could not be obtained from the
// product-matching service. Such counts are reported as nil, never as zero.
var ErrServiceUnavailable = errors.New("product matching service unavailable")

// Matcher is the product-matching service.
type Matcher interface {
	// Query returns the ids of products matching c, in c.OrderBy order.
	Query(ctx context.Context, c query.Criteria) ([]string, error)
	// CountBy breaks the products matching c down by the values of one facet.
	CountBy(ctx context.Context, key query.FacetKey, c query.Criteria) (map[string]int, error)
	// PriceBounds returns the price range of the products matching c.
	PriceBounds(ctx context.Context, c query.Criteria) (models.PriceBounds, error)
}

// Catalog supplies the taxonomy the counts are laid over.
type Catalog interface {
	Tree() *taxonomy.Tree
	Attributes() []models.AttributeTaxonomy
}

// Counts maps a facet option to its number of matching products.
// A nil Counts means the count is unavailable.
type Counts map[string]int

// Result holds one recomputation of every facet's counts.
type Result struct {
	Categories  Counts              `json:"category"`
	StockStatus Counts              `json:"stock_status"`
	Ratings     Counts              `json:"rating"`
	Attributes  map[string]Counts   `json:"attributes"`
	Price       *models.PriceBounds `json:"price"`
	Errors      []error             `json:"-"`
}

// Available reports whether the counts for key were obtained.
func (r *Result) Available(key query.FacetKey) bool {
	switch key.Facet {
	case query.FacetCategory:
		return r.Categories != nil
	case query.FacetStockStatus:
		return r.StockStatus != nil
	case query.FacetRating:
		return r.Ratings != nil
	case query.FacetPrice:
		return r.Price != nil
	case query.FacetAttributes:
		return r.Attributes[key.Attribute] != nil
	case query.FacetSearch, query.FacetOrderBy:
		return false
	}
	return false
}

// Counter issues one counterfactual request per facet: the facet's own
// constraint is lifted, every other active constraint is kept.
type Counter struct {
	matcher         Matcher
	catalog         Catalog
	logger          *zap.Logger
	concurrency     int
	includeChildren bool
}

// CounterOption configures a Counter.
type CounterOption func(*Counter)

// WithConcurrency caps the number of in-flight matcher requests.
func WithConcurrency(n int) CounterOption {
	return func(c *Counter) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// WithChildCategories makes a selected category also match its descendants.
func WithChildCategories(enabled bool) CounterOption {
	return func(c *Counter) { c.includeChildren = enabled }
}

// NewCounter creates a counter over matcher and catalog.
func NewCounter(matcher Matcher, catalog Catalog, logger *zap.Logger, opts ...CounterOption) *Counter {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Counter{
		matcher:         matcher,
		catalog:         catalog,
		logger:          logger,
		concurrency:     4,
		includeChildren: true,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Criteria converts state into the criteria sent to the matcher.
func (c *Counter) Criteria(state query.State) query.Criteria {
	criteria := state.Criteria()
	if c.includeChildren && len(criteria.Categories) > 0 {
		tree := c.catalog.Tree()
		expanded := slices.Clone(criteria.Categories)
		for _, id := range criteria.Categories {
			for _, d := range tree.DescendantsOf(id) {
				if !slices.Contains(expanded, d) {
					expanded = append(expanded, d)
				}
			}
		}
		slices.Sort(expanded)
		criteria.Categories = expanded
	}
	return criteria
}

// Requests lists the count requests for state together with the criteria
// each one is computed against.
func (c *Counter) Requests(state query.State) map[query.FacetKey]query.Criteria {
	base := c.Criteria(state)
	requests := map[query.FacetKey]query.Criteria{}

	for _, f := range query.AllFacets() {
		if !f.Countable() {
			continue
		}
		if f != query.FacetAttributes {
			key := query.FacetKey{Facet: f}
			requests[key] = base.Lift(key)
			continue
		}
		for _, attribute := range c.attributeNames(state) {
			key := query.FacetKey{Facet: f, Attribute: attribute}
			criteria := base
			// an "and" filter narrows by every slug, so its counts show
			// which further terms still combine with the current selection
			if active, ok := state.Attribute(attribute); !ok || active.Operator != query.OperatorAnd {
				criteria = base.Lift(key)
			}
			requests[key] = criteria
		}
	}
	return requests
}

func (c *Counter) attributeNames(state query.State) []string {
	var names []string
	for _, a := range c.catalog.Attributes() {
		if !slices.Contains(names, a.Name) {
			names = append(names, a.Name)
		}
	}
	for _, a := range state.Attributes {
		if !slices.Contains(names, a.Attribute) {
			names = append(names, a.Attribute)
		}
	}
	return names
}

// Count computes every facet's counts for state. Requests run in parallel;
// a failed request leaves its facet unavailable without failing the others.
func (c *Counter) Count(ctx context.Context, state query.State) *Result {
	result := &Result{Attributes: map[string]Counts{}}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)

	for key, criteria := range c.Requests(state) {
		g.Go(func() error {
			if key.Facet == query.FacetPrice {
				bounds, err := c.matcher.PriceBounds(gctx, criteria)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					result.Errors = append(result.Errors, c.unavailable(key, err))
					return nil
				}
				result.Price = &bounds
				return nil
			}

			counts, err := c.matcher.CountBy(gctx, key, criteria)
			if err == nil && counts == nil {
				counts = map[string]int{}
			}
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Errors = append(result.Errors, c.unavailable(key, err))
				return nil
			}
			c.store(result, key, counts)
			return nil
		})
	}
	_ = g.Wait()

	return result
}

func (c *Counter) store(result *Result, key query.FacetKey, counts map[string]int) {
	switch key.Facet {
	case query.FacetCategory:
		result.Categories = Rollup(c.catalog.Tree(), counts)
	case query.FacetStockStatus:
		result.StockStatus = counts
	case query.FacetRating:
		result.Ratings = counts
	case query.FacetAttributes:
		result.Attributes[key.Attribute] = counts
	case query.FacetPrice, query.FacetSearch, query.FacetOrderBy:
	}
}

func (c *Counter) unavailable(key query.FacetKey, err error) error {
	wrapped := fmt.Errorf("%w: counting %s: %w", ErrServiceUnavailable, key, err)
	c.logger.Warn("facet counts unavailable", zap.Stringer("facet", key), zap.Error(err))
	return wrapped
}

// Match returns the ids of the products matching state.
func (c *Counter) Match(ctx context.Context, state query.State) ([]string, error) {
	ids, err := c.matcher.Query(ctx, c.Criteria(state))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrServiceUnavailable, err)
	}
	return ids, nil
}
