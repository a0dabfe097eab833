package query

import "fmt"

// Facet identifies one filterable dimension of the catalogue.
type Facet int

const (
	FacetCategory Facet = iota
	FacetAttributes
	FacetStockStatus
	FacetRating
	FacetPrice
	FacetSearch
	FacetOrderBy
)

// AllFacets lists every facet in canonical URL order.
func AllFacets() []Facet {
	return []Facet{
		FacetCategory,
		FacetAttributes,
		FacetStockStatus,
		FacetRating,
		FacetPrice,
		FacetSearch,
		FacetOrderBy,
	}
}

// Key returns the facet's query-state key.
func (f Facet) Key() string {
	switch f {
	case FacetCategory:
		return "category"
	case FacetAttributes:
		return "attributes"
	case FacetStockStatus:
		return "stock_status"
	case FacetRating:
		return "rating"
	case FacetPrice:
		return "price"
	case FacetSearch:
		return "search"
	case FacetOrderBy:
		return "orderby"
	}
	return fmt.Sprintf("facet(%d)", int(f))
}

func (f Facet) String() string { return f.Key() }

// SetValued reports whether the facet holds a set of identifiers that can be toggled.
func (f Facet) SetValued() bool {
	switch f {
	case FacetCategory, FacetStockStatus, FacetRating:
		return true
	case FacetAttributes, FacetPrice, FacetSearch, FacetOrderBy:
		return false
	}
	return false
}

// Countable reports whether the facet gets counterfactual option counts.
func (f Facet) Countable() bool {
	switch f {
	case FacetCategory, FacetAttributes, FacetStockStatus, FacetRating, FacetPrice:
		return true
	case FacetSearch, FacetOrderBy:
		return false
	}
	return false
}

// ParseFacet resolves a facet key as used by UI callbacks. The URL spellings
// product_cat, min_price, max_price and s are accepted as aliases.
func ParseFacet(key string) (Facet, error) {
	switch key {
	case "category", "product_cat":
		return FacetCategory, nil
	case "attributes":
		return FacetAttributes, nil
	case "stock_status":
		return FacetStockStatus, nil
	case "rating":
		return FacetRating, nil
	case "price", "min_price", "max_price":
		return FacetPrice, nil
	case "search", "s":
		return FacetSearch, nil
	case "orderby":
		return FacetOrderBy, nil
	}
	return 0, &ValidationError{Field: "facet", Reason: fmt.Sprintf("unknown facet %q", key)}
}

// FacetKey addresses one count request. Attribute is only meaningful for
// FacetAttributes and names the attribute taxonomy (e.g. "pa_color").
type FacetKey struct {
	Facet     Facet
	Attribute string
}

func (k FacetKey) String() string {
	if k.Facet == FacetAttributes && k.Attribute != "" {
		return k.Facet.Key() + ":" + k.Attribute
	}
	return k.Facet.Key()
}
