// Package taxonomy models the product category hierarchy.
package taxonomy

import (
	"fmt"

	"catalogfacets/internal/models"
)

// Node is one category in the tree.
type Node struct {
	ID       string
	Name     string
	ParentID string // "" for a root
	Children []string
	Count    int
}

// Tree is an immutable category hierarchy. Walks are guarded by visited sets,
// so malformed input (cycles, dangling parents) never loops.
type Tree struct {
	nodes    map[string]*Node
	order    []string
	roots    []string
	problems []error
}

// Build assembles a tree from the catalogue's flat list. A node whose parent is
// missing becomes a root; self-parenting is treated the same way. Duplicate ids
// keep the first record. Every such repair is reported by Problems.
func Build(categories []models.Category) *Tree {
	t := &Tree{nodes: make(map[string]*Node, len(categories))}

	for _, c := range categories {
		if c.ID == "" {
			t.problems = append(t.problems, fmt.Errorf("category %q has no id", c.Name))
			continue
		}
		if _, dup := t.nodes[c.ID]; dup {
			t.problems = append(t.problems, fmt.Errorf("duplicate category id %s", c.ID))
			continue
		}
		t.nodes[c.ID] = &Node{ID: c.ID, Name: c.Name, ParentID: c.ParentID, Count: c.ProductCount}
		t.order = append(t.order, c.ID)
	}

	for _, id := range t.order {
		n := t.nodes[id]
		if n.ParentID == n.ID {
			t.problems = append(t.problems, fmt.Errorf("category %s is its own parent", id))
			n.ParentID = ""
		}
		if n.ParentID == "" {
			t.roots = append(t.roots, id)
			continue
		}
		parent, ok := t.nodes[n.ParentID]
		if !ok {
			t.problems = append(t.problems, fmt.Errorf("category %s has unknown parent %s", id, n.ParentID))
			n.ParentID = ""
			t.roots = append(t.roots, id)
			continue
		}
		parent.Children = append(parent.Children, id)
	}

	for _, id := range t.order {
		if t.inCycle(id) {
			t.problems = append(t.problems, fmt.Errorf("category %s is part of a parent cycle", id))
		}
	}
	return t
}

func (t *Tree) inCycle(id string) bool {
	seen := map[string]bool{id: true}
	for cur := t.nodes[id].ParentID; cur != ""; {
		if cur == id {
			return true
		}
		if seen[cur] {
			return false
		}
		seen[cur] = true
		n, ok := t.nodes[cur]
		if !ok {
			return false
		}
		cur = n.ParentID
	}
	return false
}

// Problems lists the repairs and inconsistencies found while building.
func (t *Tree) Problems() []error { return t.problems }

// Len is the number of nodes.
func (t *Tree) Len() int { return len(t.nodes) }

// Has reports whether id is a node of the tree.
func (t *Tree) Has(id string) bool {
	_, ok := t.nodes[id]
	return ok
}

// Node returns a copy of the node for id.
func (t *Tree) Node(id string) (Node, bool) {
	n, ok := t.nodes[id]
	if !ok {
		return Node{}, false
	}
	cp := *n
	cp.Children = append([]string(nil), n.Children...)
	return cp, true
}

// Parent returns the parent id, "" for roots and unknown ids.
func (t *Tree) Parent(id string) string {
	if n, ok := t.nodes[id]; ok {
		return n.ParentID
	}
	return ""
}

// Children returns the ordered child ids.
func (t *Tree) Children(id string) []string {
	if n, ok := t.nodes[id]; ok {
		return append([]string(nil), n.Children...)
	}
	return nil
}

// Roots returns the root ids in input order.
func (t *Tree) Roots() []string { return append([]string(nil), t.roots...) }

// IDs returns every id in input order.
func (t *Tree) IDs() []string { return append([]string(nil), t.order...) }

// AncestorsOf returns the ancestors of id from its immediate parent up to the
// root. Empty for roots and unknown ids.
func (t *Tree) AncestorsOf(id string) []string {
	n, ok := t.nodes[id]
	if !ok {
		return nil
	}
	var ancestors []string
	visited := map[string]bool{id: true}
	for cur := n.ParentID; cur != "" && !visited[cur]; {
		visited[cur] = true
		ancestors = append(ancestors, cur)
		p, ok := t.nodes[cur]
		if !ok {
			break
		}
		cur = p.ParentID
	}
	return ancestors
}

// DescendantsOf returns every transitive child of id, breadth first. Empty for leaves.
func (t *Tree) DescendantsOf(id string) []string {
	n, ok := t.nodes[id]
	if !ok {
		return nil
	}
	var out []string
	visited := map[string]bool{id: true}
	queue := append([]string(nil), n.Children...)
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if visited[cur] {
			continue
		}
		visited[cur] = true
		out = append(out, cur)
		if c, ok := t.nodes[cur]; ok {
			queue = append(queue, c.Children...)
		}
	}
	return out
}

// Depth is the number of ancestors of id.
func (t *Tree) Depth(id string) int {
	return len(t.AncestorsOf(id))
}

// Walk visits nodes depth first, roots and children in their stored order.
// Returning false from fn skips the node's subtree.
func (t *Tree) Walk(fn func(n Node, depth int) bool) {
	visited := make(map[string]bool, len(t.nodes))
	var visit func(id string, depth int)
	visit = func(id string, depth int) {
		if visited[id] {
			return
		}
		visited[id] = true
		n := t.nodes[id]
		if !fn(*n, depth) {
			return
		}
		for _, child := range n.Children {
			visit(child, depth+1)
		}
	}
	for _, root := range t.roots {
		visit(root, 0)
	}
	// nodes caught in a parent cycle are unreachable from any root
	for _, id := range t.order {
		visit(id, 0)
	}
}

// Nested renders the tree as nested category nodes for API responses.
func (t *Tree) Nested() []*models.CategoryNode {
	visited := make(map[string]bool, len(t.nodes))
	var build func(id string, path []string) *models.CategoryNode
	build = func(id string, path []string) *models.CategoryNode {
		visited[id] = true
		n := t.nodes[id]
		path = append(append([]string(nil), path...), n.Name)
		out := &models.CategoryNode{
			Category: models.Category{ID: n.ID, Name: n.Name, ParentID: n.ParentID, ProductCount: n.Count},
			Depth:    len(path) - 1,
			Path:     path,
		}
		for _, child := range n.Children {
			if !visited[child] {
				out.Children = append(out.Children, build(child, path))
			}
		}
		return out
	}
	var roots []*models.CategoryNode
	for _, id := range t.roots {
		roots = append(roots, build(id, nil))
	}
	return roots
}
