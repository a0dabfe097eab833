package facets

import "catalogfacets/internal/taxonomy"

// Rollup turns per-category direct match counts into displayed counts: each
// category's count is its own matches plus those of all its descendants.
// leaf must come from a request with the category facet lifted.
func Rollup(tree *taxonomy.Tree, leaf map[string]int) map[string]int {
	rolled := make(map[string]int, len(leaf))
	for id, n := range leaf {
		rolled[id] = n
	}

	for id, n := range leaf {
		if n == 0 {
			continue
		}
		for _, ancestor := range tree.AncestorsOf(id) {
			rolled[ancestor] += n
		}
	}

	// A zero-count node whose parent never made it into the map would leave a
	// gap in the tree view; derive such parents from their present children.
	pending := make([]string, 0, len(rolled))
	for id := range rolled {
		pending = append(pending, id)
	}
	for len(pending) > 0 {
		id := pending[len(pending)-1]
		pending = pending[:len(pending)-1]
		parent := tree.Parent(id)
		if parent == "" {
			continue
		}
		if _, present := rolled[parent]; present {
			continue
		}
		sum := 0
		for _, child := range tree.Children(parent) {
			sum += rolled[child]
		}
		rolled[parent] = sum
		pending = append(pending, parent)
	}

	return rolled
}
