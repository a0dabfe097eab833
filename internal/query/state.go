package query

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
)

// Operator combines the slugs of one attribute filter.
type Operator string

const (
	OperatorAnd Operator = "and"
	OperatorOr  Operator = "or"
)

// ParseOperator accepts "and" or "or"; an empty string means "or".
func ParseOperator(s string) (Operator, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(OperatorOr):
		return OperatorOr, nil
	case string(OperatorAnd):
		return OperatorAnd, nil
	}
	return "", &ValidationError{Field: "operator", Reason: fmt.Sprintf("%q is not and/or", s)}
}

// Stock statuses known to the catalogue.
const (
	StockInStock     = "instock"
	StockOutOfStock  = "outofstock"
	StockOnBackorder = "onbackorder"
)

// StockStatuses lists the stock-status enum in display order.
func StockStatuses() []string {
	return []string{StockInStock, StockOutOfStock, StockOnBackorder}
}

// SortOrders lists the accepted orderby values.
func SortOrders() []string {
	return []string{"menu_order", "popularity", "rating", "date", "price", "price-desc"}
}

// AttributeFilter is the active filter for one attribute taxonomy.
type AttributeFilter struct {
	Attribute string   `json:"attribute"`
	Operator  Operator `json:"operator"`
	Slugs     []string `json:"slugs"`
}

// State is the canonical filter query shared by every facet.
// Set-valued fields are kept sorted so equal states compare equal.
type State struct {
	Categories  []string          `json:"category,omitempty"`
	Attributes  []AttributeFilter `json:"attributes,omitempty"`
	StockStatus []string          `json:"stock_status,omitempty"`
	Ratings     []string          `json:"rating,omitempty"`
	MinPrice    *float64          `json:"min_price,omitempty"`
	MaxPrice    *float64          `json:"max_price,omitempty"`
	Search      string            `json:"search,omitempty"`
	OrderBy     string            `json:"orderby,omitempty"`
}

// Values returns the active values of a set-valued facet.
func (s *State) Values(f Facet) []string {
	switch f {
	case FacetCategory:
		return s.Categories
	case FacetStockStatus:
		return s.StockStatus
	case FacetRating:
		return s.Ratings
	case FacetAttributes, FacetPrice, FacetSearch, FacetOrderBy:
		return nil
	}
	return nil
}

func (s *State) setValues(f Facet, values []string) {
	if len(values) == 0 {
		values = nil
	}
	switch f {
	case FacetCategory:
		s.Categories = values
	case FacetStockStatus:
		s.StockStatus = values
	case FacetRating:
		s.Ratings = values
	case FacetAttributes, FacetPrice, FacetSearch, FacetOrderBy:
	}
}

// Toggle adds value to a set-valued facet if absent and removes it otherwise.
// Facets that are not set-valued are left untouched.
func (s *State) Toggle(f Facet, value string) error {
	if !f.SetValued() {
		return nil
	}
	value, err := canonicalValue(f, strings.TrimSpace(value))
	if err != nil {
		return err
	}

	current := s.Values(f)
	next := make([]string, 0, len(current)+1)
	found := false
	for _, v := range current {
		if v == value {
			found = true
			continue
		}
		next = append(next, v)
	}
	if !found {
		next = append(next, value)
	}
	slices.Sort(next)
	s.setValues(f, next)
	return nil
}

// ToggleKey is Toggle addressed by facet key; unknown keys are a validation error.
func (s *State) ToggleKey(key, value string) error {
	f, err := ParseFacet(key)
	if err != nil {
		return err
	}
	return s.Toggle(f, value)
}

// SetValues replaces a set-valued facet wholesale. Used when rehydrating from a URL.
func (s *State) SetValues(f Facet, values []string) error {
	if !f.SetValued() {
		return &ValidationError{Field: f.Key(), Reason: "facet is not set-valued"}
	}
	next := make([]string, 0, len(values))
	for _, v := range values {
		v, err := canonicalValue(f, strings.TrimSpace(v))
		if err != nil {
			return err
		}
		if !slices.Contains(next, v) {
			next = append(next, v)
		}
	}
	slices.Sort(next)
	s.setValues(f, next)
	return nil
}

// canonicalValue validates value and returns the form stored in the state.
// Ratings are stored as plain integers so "05" and "5" are the same option.
func canonicalValue(f Facet, value string) (string, error) {
	if value == "" {
		return "", &ValidationError{Field: f.Key(), Reason: "empty value"}
	}
	switch f {
	case FacetStockStatus:
		if !slices.Contains(StockStatuses(), value) {
			return "", &ValidationError{Field: f.Key(), Reason: fmt.Sprintf("unknown stock status %q", value)}
		}
	case FacetRating:
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 || n > 5 {
			return "", &ValidationError{Field: f.Key(), Reason: fmt.Sprintf("rating %q not in 1..5", value)}
		}
		return strconv.Itoa(n), nil
	case FacetCategory, FacetAttributes, FacetPrice, FacetSearch, FacetOrderBy:
	}
	return value, nil
}

// SetRange sets the price bounds; a nil bound is cleared.
func (s *State) SetRange(minPrice, maxPrice *float64) error {
	for name, v := range map[string]*float64{"min_price": minPrice, "max_price": maxPrice} {
		if v == nil {
			continue
		}
		if math.IsNaN(*v) || math.IsInf(*v, 0) || *v < 0 {
			return &ValidationError{Field: name, Reason: "must be a non-negative number"}
		}
	}
	if minPrice != nil && maxPrice != nil && *minPrice > *maxPrice {
		return &ValidationError{
			Field:  "price",
			Reason: fmt.Sprintf("min_price %v is greater than max_price %v", *minPrice, *maxPrice),
		}
	}
	s.MinPrice = copyFloat(minPrice)
	s.MaxPrice = copyFloat(maxPrice)
	return nil
}

// SetAttribute replaces or appends the filter for attribute. Empty slugs remove it.
func (s *State) SetAttribute(attribute string, slugs []string, op Operator) error {
	attribute, err := NormalizeAttribute(attribute)
	if err != nil {
		return err
	}
	op, err = ParseOperator(string(op))
	if err != nil {
		return err
	}

	cleaned := make([]string, 0, len(slugs))
	for _, slug := range slugs {
		slug = strings.TrimSpace(slug)
		if slug != "" && !slices.Contains(cleaned, slug) {
			cleaned = append(cleaned, slug)
		}
	}
	slices.Sort(cleaned)

	idx := s.attributeIndex(attribute)
	if len(cleaned) == 0 {
		if idx >= 0 {
			s.Attributes = slices.Delete(slices.Clone(s.Attributes), idx, idx+1)
			if len(s.Attributes) == 0 {
				s.Attributes = nil
			}
		}
		return nil
	}

	entry := AttributeFilter{Attribute: attribute, Operator: op, Slugs: cleaned}
	attrs := slices.Clone(s.Attributes)
	if idx >= 0 {
		attrs[idx] = entry
	} else {
		attrs = append(attrs, entry)
	}
	s.Attributes = attrs
	return nil
}

// AttributePrefix marks product attribute taxonomies.
const AttributePrefix = "pa_"

// NormalizeAttribute returns the taxonomy name for attribute, adding the pa_
// prefix when missing. Names ending in _qt would collide with the URL
// operator parameter and are rejected.
func NormalizeAttribute(attribute string) (string, error) {
	attribute = strings.TrimSpace(attribute)
	if strings.TrimPrefix(attribute, AttributePrefix) == "" {
		return "", &ValidationError{Field: "attribute", Reason: "empty attribute"}
	}
	if !strings.HasPrefix(attribute, AttributePrefix) {
		attribute = AttributePrefix + attribute
	}
	name := strings.TrimPrefix(attribute, AttributePrefix)
	if name == "qt" || strings.HasSuffix(name, "_qt") {
		return "", &ValidationError{Field: "attribute", Reason: fmt.Sprintf("%q ends in _qt", attribute)}
	}
	return attribute, nil
}

// Attribute returns the active filter for attribute, if any.
func (s *State) Attribute(attribute string) (AttributeFilter, bool) {
	if idx := s.attributeIndex(attribute); idx >= 0 {
		return s.Attributes[idx], true
	}
	return AttributeFilter{}, false
}

func (s *State) attributeIndex(attribute string) int {
	return slices.IndexFunc(s.Attributes, func(a AttributeFilter) bool {
		return a.Attribute == attribute
	})
}

// SetSearch replaces the free-text search.
func (s *State) SetSearch(text string) {
	s.Search = strings.TrimSpace(text)
}

// SetSort replaces the sort order. Empty resets to the catalogue default.
func (s *State) SetSort(order string) error {
	order = strings.TrimSpace(order)
	if order != "" && !slices.Contains(SortOrders(), order) {
		return &ValidationError{Field: "orderby", Reason: fmt.Sprintf("unknown sort order %q", order)}
	}
	s.OrderBy = order
	return nil
}

// ClearAll drops every filter. The sort order is a display preference and survives.
func (s *State) ClearAll() {
	*s = State{OrderBy: s.OrderBy}
}

// Active reports whether value is currently selected for a set-valued facet.
func (s *State) Active(f Facet, value string) bool {
	return slices.Contains(s.Values(f), value)
}

// IsEmpty reports whether no filter is active. The sort order is ignored.
func (s *State) IsEmpty() bool {
	return len(s.Categories) == 0 && len(s.Attributes) == 0 && len(s.StockStatus) == 0 &&
		len(s.Ratings) == 0 && s.MinPrice == nil && s.MaxPrice == nil && s.Search == ""
}

// Clone returns a deep copy.
func (s State) Clone() State {
	out := State{
		Categories:  slices.Clone(s.Categories),
		StockStatus: slices.Clone(s.StockStatus),
		Ratings:     slices.Clone(s.Ratings),
		MinPrice:    copyFloat(s.MinPrice),
		MaxPrice:    copyFloat(s.MaxPrice),
		Search:      s.Search,
		OrderBy:     s.OrderBy,
	}
	if s.Attributes != nil {
		out.Attributes = make([]AttributeFilter, len(s.Attributes))
		for i, a := range s.Attributes {
			out.Attributes[i] = AttributeFilter{Attribute: a.Attribute, Operator: a.Operator, Slugs: slices.Clone(a.Slugs)}
		}
	}
	return out
}

// Equal compares two states. Set-valued fields and attribute entries are
// compared without regard to order.
func (s State) Equal(o State) bool {
	if !sameSet(s.Categories, o.Categories) || !sameSet(s.StockStatus, o.StockStatus) ||
		!sameSet(s.Ratings, o.Ratings) {
		return false
	}
	if !sameFloat(s.MinPrice, o.MinPrice) || !sameFloat(s.MaxPrice, o.MaxPrice) {
		return false
	}
	if s.Search != o.Search || s.OrderBy != o.OrderBy {
		return false
	}
	if len(s.Attributes) != len(o.Attributes) {
		return false
	}
	for _, a := range s.Attributes {
		b, ok := o.Attribute(a.Attribute)
		if !ok || a.Operator != b.Operator || !sameSet(a.Slugs, b.Slugs) {
			return false
		}
	}
	return true
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	x, y := slices.Clone(a), slices.Clone(b)
	slices.Sort(x)
	slices.Sort(y)
	return slices.Equal(x, y)
}

func sameFloat(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// Float is a convenience for building price bounds.
func Float(v float64) *float64 { return &v }
