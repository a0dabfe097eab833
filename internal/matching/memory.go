// Package matching evaluates filter criteria against an in-memory product set.
package matching

import (
	"cmp"
	"context"
	"math"
	"slices"
	"strconv"
	"strings"
	"sync"

	"catalogfacets/internal/models"
	"catalogfacets/internal/query"
)

// Memory is a product matcher over a snapshot of the catalogue held in memory.
// It backs tests, demos and the snapshot-driven deployment mode.
type Memory struct {
	mu       sync.RWMutex
	products []models.Product
}

// NewMemory creates a matcher over products.
func NewMemory(products []models.Product) *Memory {
	m := &Memory{}
	m.Replace(products)
	return m
}

// Replace swaps the product set.
func (m *Memory) Replace(products []models.Product) {
	cp := slices.Clone(products)
	m.mu.Lock()
	m.products = cp
	m.mu.Unlock()
}

// Products returns a copy of the product set.
func (m *Memory) Products() []models.Product {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.products)
}

func (m *Memory) matching(ctx context.Context, c query.Criteria) ([]models.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Product
	for _, p := range m.products {
		if Matches(p, c) {
			out = append(out, p)
		}
	}
	return out, nil
}

// Query returns the ids of matching products in c.OrderBy order.
func (m *Memory) Query(ctx context.Context, c query.Criteria) ([]string, error) {
	products, err := m.matching(ctx, c)
	if err != nil {
		return nil, err
	}
	Sort(products, c.OrderBy)
	ids := make([]string, 0, len(products))
	for _, p := range products {
		ids = append(ids, p.ID)
	}
	return ids, nil
}

// CountBy counts matching products per value of the facet addressed by key.
func (m *Memory) CountBy(ctx context.Context, key query.FacetKey, c query.Criteria) (map[string]int, error) {
	products, err := m.matching(ctx, c)
	if err != nil {
		return nil, err
	}
	counts := map[string]int{}
	for _, p := range products {
		for _, v := range FacetValues(p, key) {
			counts[v]++
		}
	}
	return counts, nil
}

// PriceBounds returns the cheapest and dearest matching price. Zero when
// nothing matches.
func (m *Memory) PriceBounds(ctx context.Context, c query.Criteria) (models.PriceBounds, error) {
	products, err := m.matching(ctx, c)
	if err != nil {
		return models.PriceBounds{}, err
	}
	if len(products) == 0 {
		return models.PriceBounds{}, nil
	}
	bounds := models.PriceBounds{Min: math.Inf(1), Max: math.Inf(-1)}
	for _, p := range products {
		bounds.Min = math.Min(bounds.Min, p.Price)
		bounds.Max = math.Max(bounds.Max, p.Price)
	}
	return bounds, nil
}

// FacetValues lists the values p contributes to the facet addressed by key.
func FacetValues(p models.Product, key query.FacetKey) []string {
	switch key.Facet {
	case query.FacetCategory:
		return p.Categories
	case query.FacetStockStatus:
		if p.StockStatus == "" {
			return nil
		}
		return []string{p.StockStatus}
	case query.FacetRating:
		if r := RoundedRating(p.AverageRating); r > 0 {
			return []string{strconv.Itoa(r)}
		}
		return nil
	case query.FacetAttributes:
		return p.Attributes[key.Attribute]
	case query.FacetPrice, query.FacetSearch, query.FacetOrderBy:
	}
	return nil
}

// RoundedRating is the star bucket a product's average rating falls into.
func RoundedRating(avg float64) int {
	return int(math.Round(avg))
}

// Matches reports whether p satisfies every constraint of c. Values within a
// facet are alternatives; "and" attribute filters require every slug.
func Matches(p models.Product, c query.Criteria) bool {
	if len(c.Categories) > 0 && !overlaps(p.Categories, c.Categories) {
		return false
	}
	for _, a := range c.Attributes {
		have := p.Attributes[a.Attribute]
		if a.Operator == query.OperatorAnd {
			for _, slug := range a.Slugs {
				if !slices.Contains(have, slug) {
					return false
				}
			}
			continue
		}
		if !overlaps(have, a.Slugs) {
			return false
		}
	}
	if len(c.StockStatus) > 0 && !slices.Contains(c.StockStatus, p.StockStatus) {
		return false
	}
	if len(c.Ratings) > 0 && !slices.Contains(c.Ratings, strconv.Itoa(RoundedRating(p.AverageRating))) {
		return false
	}
	if c.MinPrice != nil && p.Price < *c.MinPrice {
		return false
	}
	if c.MaxPrice != nil && p.Price > *c.MaxPrice {
		return false
	}
	if c.Search != "" {
		needle := strings.ToLower(c.Search)
		if !strings.Contains(strings.ToLower(p.Name), needle) &&
			!strings.Contains(strings.ToLower(p.Description), needle) {
			return false
		}
	}
	return true
}

func overlaps(have, want []string) bool {
	for _, w := range want {
		if slices.Contains(have, w) {
			return true
		}
	}
	return false
}

// Sort orders products by one of the catalogue sort keys. Unknown or empty
// keys fall back to menu order. Ties break on id.
func Sort(products []models.Product, orderBy string) {
	slices.SortStableFunc(products, func(a, b models.Product) int {
		var c int
		switch orderBy {
		case "popularity":
			c = cmp.Compare(b.TotalSales, a.TotalSales)
		case "rating":
			c = cmp.Compare(b.AverageRating, a.AverageRating)
		case "date":
			c = b.CreatedAt.Compare(a.CreatedAt)
		case "price":
			c = cmp.Compare(a.Price, b.Price)
		case "price-desc":
			c = cmp.Compare(b.Price, a.Price)
		default:
			c = cmp.Or(cmp.Compare(a.MenuOrder, b.MenuOrder), strings.Compare(a.Name, b.Name))
		}
		return cmp.Or(c, strings.Compare(a.ID, b.ID))
	})
}
