package models

import "time"

// Product is the subset of a catalogue product the filters match against.
type Product struct {
	ID            string              `json:"id" db:"id"`
	Name          string              `json:"name" db:"name"`
	Description   string              `json:"description" db:"description"`
	Price         float64             `json:"price" db:"price"`
	StockStatus   string              `json:"stock_status" db:"stock_status"`
	AverageRating float64             `json:"average_rating" db:"average_rating"`
	TotalSales    int                 `json:"total_sales" db:"total_sales"`
	MenuOrder     int                 `json:"menu_order" db:"menu_order"`
	Categories    []string            `json:"categories" db:"-"`           // directly tagged category ids
	Attributes    map[string][]string `json:"attributes,omitempty" db:"-"` // taxonomy => term slugs
	CreatedAt     time.Time           `json:"created_at" db:"created_at"`
}

// PriceBounds is the cheapest and dearest price of a product set.
type PriceBounds struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}
