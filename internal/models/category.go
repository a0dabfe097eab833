package models

// Category is one term of the product category taxonomy as supplied by the
// catalogue: a flat record with a parent pointer.
type Category struct {
	ID           string `json:"id" db:"id"`
	Name         string `json:"name" db:"name"`
	Slug         string `json:"slug" db:"slug"`
	ParentID     string `json:"parent" db:"parent_id"` // "" for a root
	ProductCount int    `json:"count" db:"product_count"`
}

// CategoryNode is a category placed in the tree, used for nested responses.
type CategoryNode struct {
	Category
	Depth    int             `json:"depth"`
	Path     []string        `json:"full_path"`
	Children []*CategoryNode `json:"children,omitempty"`
}
