package facets

import (
	"slices"
	"strconv"

	"catalogfacets/internal/models"
	"catalogfacets/internal/query"
	"catalogfacets/internal/taxonomy"
)

// DisplayOption is one selectable value of a facet as rendered to the shopper.
type DisplayOption struct {
	Value   string `json:"value"`
	Label   string `json:"label"`
	Checked bool   `json:"checked"`
	Count   *int   `json:"count"` // nil while counts are unavailable
	Parent  string `json:"parent,omitempty"`
	Depth   int    `json:"depth,omitempty"`
}

// Option is a candidate facet value before counts are applied.
type Option struct {
	Value  string
	Label  string
	Parent string
	Depth  int
}

// PriceView describes the price slider.
type PriceView struct {
	Min    *float64            `json:"min"`
	Max    *float64            `json:"max"`
	Bounds *models.PriceBounds `json:"bounds"`
}

// FacetView is one filter block.
type FacetView struct {
	Key       string          `json:"key"`
	Attribute string          `json:"attribute,omitempty"`
	Label     string          `json:"label"`
	Operator  query.Operator  `json:"operator,omitempty"`
	Available bool            `json:"available"`
	Options   []DisplayOption `json:"options,omitempty"`
	Price     *PriceView      `json:"price,omitempty"`
}

// ActiveFilter is a removable chip in the active-filters list.
type ActiveFilter struct {
	Key   string `json:"key"`
	Value string `json:"value"`
	Label string `json:"label"`
}

// View is the derived, read-only projection of the query state and counts.
type View struct {
	Facets []FacetView    `json:"facets"`
	Active []ActiveFilter `json:"active"`
	Search string         `json:"search,omitempty"`
	Order  string         `json:"orderby,omitempty"`
}

// ViewConfig holds display preferences.
type ViewConfig struct {
	HideOutOfStock bool
}

// Visible decides whether an option is shown: a nonzero count, or checked.
// Without counts every option is shown.
func Visible(count *int, checked bool) bool {
	if count == nil {
		return true
	}
	return *count > 0 || checked
}

// Apply attaches counts to options and drops the ones that should be hidden.
// A nil counts map marks the facet unavailable.
func Apply(options []Option, counts Counts, checked func(string) bool) []DisplayOption {
	out := make([]DisplayOption, 0, len(options))
	for _, o := range options {
		d := DisplayOption{Value: o.Value, Label: o.Label, Checked: checked(o.Value), Parent: o.Parent, Depth: o.Depth}
		if counts != nil {
			n := counts[o.Value]
			d.Count = &n
		}
		if Visible(d.Count, d.Checked) {
			out = append(out, d)
		}
	}
	return out
}

// CategoryOptions renders the tree depth first. Ancestors of a visible
// category stay visible so the hierarchy never has gaps.
func CategoryOptions(tree *taxonomy.Tree, counts Counts, checked func(string) bool) []DisplayOption {
	var all []Option
	tree.Walk(func(n taxonomy.Node, depth int) bool {
		all = append(all, Option{Value: n.ID, Label: n.Name, Parent: n.ParentID, Depth: depth})
		return true
	})

	shown := map[string]bool{}
	for _, o := range Apply(all, counts, checked) {
		shown[o.Value] = true
		for _, a := range tree.AncestorsOf(o.Value) {
			shown[a] = true
		}
	}

	out := make([]DisplayOption, 0, len(shown))
	for _, o := range all {
		if !shown[o.Value] {
			continue
		}
		d := DisplayOption{Value: o.Value, Label: o.Label, Checked: checked(o.Value), Parent: o.Parent, Depth: o.Depth}
		if counts != nil {
			n := counts[o.Value]
			d.Count = &n
		}
		out = append(out, d)
	}
	return out
}

// StockLabel is the shopper-facing name of a stock status.
func StockLabel(status string) string {
	switch status {
	case query.StockInStock:
		return "In stock"
	case query.StockOutOfStock:
		return "Out of stock"
	case query.StockOnBackorder:
		return "On backorder"
	}
	return status
}

func ratingLabel(rating string) string {
	return "Rated " + rating + " out of 5"
}

// BuildView projects state and result into the view. result may be nil
// while the first recount is in flight.
func BuildView(catalog Catalog, state query.State, result *Result, cfg ViewConfig) View {
	if result == nil {
		result = &Result{}
	}
	view := View{Search: state.Search, Order: state.OrderBy}
	tree := catalog.Tree()

	for _, f := range query.AllFacets() {
		switch f {
		case query.FacetCategory:
			view.Facets = append(view.Facets, FacetView{
				Key:       f.Key(),
				Label:     "Categories",
				Available: result.Categories != nil,
				Options: CategoryOptions(tree, result.Categories, func(v string) bool {
					return state.Active(f, v)
				}),
			})
		case query.FacetAttributes:
			view.Facets = append(view.Facets, attributeViews(catalog.Attributes(), state, result)...)
		case query.FacetStockStatus:
			var options []Option
			for _, s := range query.StockStatuses() {
				if cfg.HideOutOfStock && s == query.StockOutOfStock && !state.Active(f, s) {
					continue
				}
				options = append(options, Option{Value: s, Label: StockLabel(s)})
			}
			view.Facets = append(view.Facets, FacetView{
				Key:       f.Key(),
				Label:     "Stock status",
				Available: result.StockStatus != nil,
				Options:   Apply(options, result.StockStatus, func(v string) bool { return state.Active(f, v) }),
			})
		case query.FacetRating:
			var options []Option
			for r := 5; r >= 1; r-- {
				v := strconv.Itoa(r)
				options = append(options, Option{Value: v, Label: ratingLabel(v)})
			}
			view.Facets = append(view.Facets, FacetView{
				Key:       f.Key(),
				Label:     "Rating",
				Available: result.Ratings != nil,
				Options:   Apply(options, result.Ratings, func(v string) bool { return state.Active(f, v) }),
			})
		case query.FacetPrice:
			view.Facets = append(view.Facets, FacetView{
				Key:       f.Key(),
				Label:     "Price",
				Available: result.Price != nil,
				Price:     &PriceView{Min: state.MinPrice, Max: state.MaxPrice, Bounds: result.Price},
			})
		case query.FacetSearch, query.FacetOrderBy:
		}
	}

	view.Active = activeFilters(tree, catalog.Attributes(), state)
	return view
}

func attributeViews(taxonomies []models.AttributeTaxonomy, state query.State, result *Result) []FacetView {
	var views []FacetView
	seen := map[string]bool{}

	build := func(name, label string, terms []models.AttributeTerm) {
		seen[name] = true
		active, _ := state.Attribute(name)
		checked := func(v string) bool { return slices.Contains(active.Slugs, v) }

		options := make([]Option, 0, len(terms)+len(active.Slugs))
		known := map[string]bool{}
		for _, t := range terms {
			known[t.Slug] = true
			options = append(options, Option{Value: t.Slug, Label: t.Name})
		}
		// selected slugs the catalogue no longer lists stay removable
		for _, s := range active.Slugs {
			if !known[s] {
				options = append(options, Option{Value: s, Label: s})
			}
		}

		counts := result.Attributes[name]
		op := active.Operator
		if op == "" {
			op = query.OperatorOr
		}
		views = append(views, FacetView{
			Key:       query.FacetAttributes.Key(),
			Attribute: name,
			Label:     label,
			Operator:  op,
			Available: counts != nil,
			Options:   Apply(options, counts, checked),
		})
	}

	for _, t := range taxonomies {
		if seen[t.Name] {
			continue
		}
		label := t.Label
		if label == "" {
			label = t.Name
		}
		build(t.Name, label, t.Terms)
	}
	for _, a := range state.Attributes {
		if !seen[a.Attribute] {
			build(a.Attribute, a.Attribute, nil)
		}
	}
	return views
}

func activeFilters(tree *taxonomy.Tree, taxonomies []models.AttributeTaxonomy, state query.State) []ActiveFilter {
	var active []ActiveFilter
	for _, id := range state.Categories {
		label := id
		if n, ok := tree.Node(id); ok {
			label = n.Name
		}
		active = append(active, ActiveFilter{Key: query.FacetCategory.Key(), Value: id, Label: label})
	}
	for _, a := range state.Attributes {
		for _, slug := range a.Slugs {
			active = append(active, ActiveFilter{Key: a.Attribute, Value: slug, Label: termName(taxonomies, a.Attribute, slug)})
		}
	}
	for _, s := range state.StockStatus {
		active = append(active, ActiveFilter{Key: query.FacetStockStatus.Key(), Value: s, Label: StockLabel(s)})
	}
	for _, r := range state.Ratings {
		active = append(active, ActiveFilter{Key: query.FacetRating.Key(), Value: r, Label: ratingLabel(r)})
	}
	if state.MinPrice != nil {
		v := strconv.FormatFloat(*state.MinPrice, 'f', -1, 64)
		active = append(active, ActiveFilter{Key: "min_price", Value: v, Label: "Min " + v})
	}
	if state.MaxPrice != nil {
		v := strconv.FormatFloat(*state.MaxPrice, 'f', -1, 64)
		active = append(active, ActiveFilter{Key: "max_price", Value: v, Label: "Max " + v})
	}
	if state.Search != "" {
		active = append(active, ActiveFilter{Key: query.FacetSearch.Key(), Value: state.Search, Label: state.Search})
	}
	return active
}

func termName(taxonomies []models.AttributeTaxonomy, attribute, slug string) string {
	for _, t := range taxonomies {
		if t.Name != attribute {
			continue
		}
		for _, term := range t.Terms {
			if term.Slug == slug {
				return term.Name
			}
		}
	}
	return slug
}
