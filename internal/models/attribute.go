package models

// AttributeTerm is one selectable value of an attribute taxonomy.
type AttributeTerm struct {
	ID    string `json:"id" db:"id"`
	Slug  string `json:"slug" db:"slug"`
	Name  string `json:"name" db:"name"`
	Count int    `json:"count" db:"product_count"`
}

// AttributeTaxonomy describes a filterable product attribute such as pa_color.
type AttributeTaxonomy struct {
	Name  string          `json:"name" db:"name"` // pa_color
	Label string          `json:"label" db:"label"`
	Terms []AttributeTerm `json:"terms"`
}
