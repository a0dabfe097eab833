// Package urlcodec translates filter state to and from the address-bar query string.
package urlcodec

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"catalogfacets/internal/query"
)

// URL parameter names.
const (
	ParamCategory    = "product_cat"
	ParamStockStatus = "stock_status"
	ParamRating      = "rating"
	ParamMinPrice    = "min_price"
	ParamMaxPrice    = "max_price"
	ParamSearch      = "s"
	ParamOrderBy     = "orderby"

	attributeParamPrefix = "filter_"
	operatorParamSuffix  = "_qt"
)

// AttributeParam maps an attribute taxonomy (pa_color) to its URL key (filter_color).
func AttributeParam(attribute string) string {
	return attributeParamPrefix + strings.TrimPrefix(attribute, query.AttributePrefix)
}

// OperatorParam is the key carrying the attribute's and/or operator.
func OperatorParam(attribute string) string {
	return AttributeParam(attribute) + operatorParamSuffix
}

// attributeFromParam is the inverse of AttributeParam.
func attributeFromParam(key string) (string, bool) {
	if !strings.HasPrefix(key, attributeParamPrefix) || strings.HasSuffix(key, operatorParamSuffix) {
		return "", false
	}
	name := strings.TrimPrefix(key, attributeParamPrefix)
	if name == "" {
		return "", false
	}
	return query.AttributePrefix + name, true
}

// IsFilterParam reports whether key is owned by the codec.
func IsFilterParam(key string) bool {
	switch key {
	case ParamCategory, ParamStockStatus, ParamRating, ParamMinPrice, ParamMaxPrice, ParamSearch, ParamOrderBy:
		return true
	}
	return strings.HasPrefix(key, attributeParamPrefix)
}

// Encode writes state onto current. Parameters the codec does not own are kept
// in place; owned keys that are already present keep their position, new ones
// are appended in facet order, and empty values are deleted.
func Encode(state query.State, current Params) Params {
	out := current.Clone()

	keep := make(map[string]bool, len(state.Attributes)*2)
	for _, a := range state.Attributes {
		keep[AttributeParam(a.Attribute)] = true
		keep[OperatorParam(a.Attribute)] = true
	}
	out.DelFunc(func(key string) bool {
		return strings.HasPrefix(key, attributeParamPrefix) && !keep[key]
	})

	for _, f := range query.AllFacets() {
		encodeFacet(f, state, &out)
	}
	return out
}

func encodeFacet(f query.Facet, state query.State, out *Params) {
	switch f {
	case query.FacetCategory:
		setOrDelete(out, ParamCategory, joinValues(state.Categories))
	case query.FacetStockStatus:
		setOrDelete(out, ParamStockStatus, joinValues(state.StockStatus))
	case query.FacetRating:
		setOrDelete(out, ParamRating, joinValues(state.Ratings))
	case query.FacetAttributes:
		for _, a := range state.Attributes {
			slugs := joinValues(a.Slugs)
			if slugs == "" {
				out.Del(AttributeParam(a.Attribute))
				out.Del(OperatorParam(a.Attribute))
				continue
			}
			op := a.Operator
			if op == "" {
				op = query.OperatorOr
			}
			out.Set(AttributeParam(a.Attribute), slugs)
			out.Set(OperatorParam(a.Attribute), string(op))
		}
	case query.FacetPrice:
		setOrDelete(out, ParamMinPrice, formatPrice(state.MinPrice))
		setOrDelete(out, ParamMaxPrice, formatPrice(state.MaxPrice))
	case query.FacetSearch:
		setOrDelete(out, ParamSearch, url.QueryEscape(state.Search))
	case query.FacetOrderBy:
		setOrDelete(out, ParamOrderBy, url.QueryEscape(state.OrderBy))
	}
}

func setOrDelete(p *Params, key, rawValue string) {
	if rawValue == "" {
		p.Del(key)
		return
	}
	p.Set(key, rawValue)
}

// joinValues percent-encodes each value and joins them with literal commas.
func joinValues(values []string) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			parts = append(parts, url.QueryEscape(v))
		}
	}
	return strings.Join(parts, ",")
}

func splitValues(raw string) ([]string, error) {
	var values []string
	for _, part := range strings.Split(raw, ",") {
		if part == "" {
			continue
		}
		v, err := url.QueryUnescape(part)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}

func formatPrice(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func parsePrice(raw string) (*float64, error) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return nil, fmt.Errorf("%q is not a non-negative number", raw)
	}
	return &v, nil
}

// ParamError describes one query parameter skipped during Decode.
type ParamError struct {
	Key string
	Err error
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("url param %s: %v", e.Key, e.Err)
}

func (e *ParamError) Unwrap() error { return e.Err }

// Decode builds a State from p. Each malformed parameter is skipped and
// reported; the rest of the query still applies.
func Decode(p Params) (query.State, []error) {
	var (
		state          query.State
		errs           []error
		minRaw, maxRaw string
		hasMin, hasMax bool
	)
	skip := func(key string, err error) {
		errs = append(errs, &ParamError{Key: key, Err: err})
	}

	for _, pr := range p.pairs {
		if pr.rawValue == "" {
			continue
		}
		switch key := pr.key; key {
		case ParamCategory, ParamStockStatus, ParamRating:
			values, err := splitValues(pr.rawValue)
			if err != nil {
				skip(key, err)
				continue
			}
			if err := state.SetValues(setFacet(key), values); err != nil {
				skip(key, err)
			}
		case ParamMinPrice:
			minRaw, hasMin = pr.rawValue, true
		case ParamMaxPrice:
			maxRaw, hasMax = pr.rawValue, true
		case ParamSearch:
			text, err := url.QueryUnescape(pr.rawValue)
			if err != nil {
				skip(key, err)
				continue
			}
			state.SetSearch(text)
		case ParamOrderBy:
			order, err := url.QueryUnescape(pr.rawValue)
			if err == nil {
				err = state.SetSort(order)
			}
			if err != nil {
				skip(key, err)
			}
		default:
			attribute, ok := attributeFromParam(key)
			if !ok {
				continue
			}
			slugs, err := splitValues(pr.rawValue)
			if err != nil {
				skip(key, err)
				continue
			}
			op := query.OperatorOr
			if rawOp, found := p.Get(key + operatorParamSuffix); found {
				decoded, _ := url.QueryUnescape(rawOp)
				parsed, err := query.ParseOperator(decoded)
				if err != nil {
					skip(key+operatorParamSuffix, err)
				} else {
					op = parsed
				}
			}
			if err := state.SetAttribute(attribute, slugs, op); err != nil {
				skip(key, err)
			}
		}
	}

	var minPrice, maxPrice *float64
	if hasMin {
		v, err := parsePrice(minRaw)
		if err != nil {
			skip(ParamMinPrice, err)
		}
		minPrice = v
	}
	if hasMax {
		v, err := parsePrice(maxRaw)
		if err != nil {
			skip(ParamMaxPrice, err)
		}
		maxPrice = v
	}
	if err := state.SetRange(minPrice, maxPrice); err != nil {
		// Inverted bounds: keep the lower bound, drop max_price.
		skip(ParamMaxPrice, err)
		_ = state.SetRange(minPrice, nil)
	}

	return state, errs
}

func setFacet(key string) query.Facet {
	switch key {
	case ParamStockStatus:
		return query.FacetStockStatus
	case ParamRating:
		return query.FacetRating
	}
	return query.FacetCategory
}

// EncodeQuery renders state as a fresh query string.
func EncodeQuery(state query.State) string {
	return Encode(state, Params{}).String()
}

// DecodeQuery parses a raw query string into a State.
func DecodeQuery(rawQuery string) (query.State, []error) {
	return Decode(ParseParams(rawQuery))
}
