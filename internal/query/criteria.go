package query

import "slices"

// Criteria is the filter set sent to the product-matching service. It mirrors
// State; Categories may additionally be expanded to cover descendants.
type Criteria struct {
	Categories  []string          `json:"category,omitempty"`
	Attributes  []AttributeFilter `json:"attributes,omitempty"`
	StockStatus []string          `json:"stock_status,omitempty"`
	Ratings     []string          `json:"rating,omitempty"`
	MinPrice    *float64          `json:"min_price,omitempty"`
	MaxPrice    *float64          `json:"max_price,omitempty"`
	Search      string            `json:"search,omitempty"`
	OrderBy     string            `json:"orderby,omitempty"`
}

// Criteria converts the state into matching criteria.
func (s State) Criteria() Criteria {
	c := s.Clone()
	return Criteria{
		Categories:  c.Categories,
		Attributes:  c.Attributes,
		StockStatus: c.StockStatus,
		Ratings:     c.Ratings,
		MinPrice:    c.MinPrice,
		MaxPrice:    c.MaxPrice,
		Search:      c.Search,
		OrderBy:     c.OrderBy,
	}
}

// Lift returns a copy of c with the constraint addressed by key removed and
// every other constraint retained. For attributes an empty key.Attribute lifts
// all attribute filters.
func (c Criteria) Lift(key FacetKey) Criteria {
	out := c
	switch key.Facet {
	case FacetCategory:
		out.Categories = nil
	case FacetStockStatus:
		out.StockStatus = nil
	case FacetRating:
		out.Ratings = nil
	case FacetPrice:
		out.MinPrice, out.MaxPrice = nil, nil
	case FacetSearch:
		out.Search = ""
	case FacetOrderBy:
		out.OrderBy = ""
	case FacetAttributes:
		if key.Attribute == "" {
			out.Attributes = nil
			break
		}
		out.Attributes = slices.DeleteFunc(slices.Clone(c.Attributes), func(a AttributeFilter) bool {
			return a.Attribute == key.Attribute
		})
		if len(out.Attributes) == 0 {
			out.Attributes = nil
		}
	}
	return out
}
