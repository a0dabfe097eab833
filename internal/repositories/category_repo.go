package repositories

import (
	"context"
	"fmt"

	"catalogfacets/internal/models"
)

type CategoryRepository interface {
	ListCategories(ctx context.Context) ([]models.Category, error)
}

type categoryRepo struct {
	db Database
}

func NewCategoryRepo(db Database) CategoryRepository {
	return &categoryRepo{db: db}
}

// ListCategories returns the flat category list with parent pointers. The
// product count is the number of directly tagged products.
func (r *categoryRepo) ListCategories(ctx context.Context) ([]models.Category, error) {
	query := `
		SELECT c.id, c.name, c.slug, COALESCE(c.parent_id, ''),
			(SELECT COUNT(*) FROM product_categories pc WHERE pc.category_id = c.id)
		FROM categories c
		ORDER BY c.sort_order, c.name, c.id
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	defer rows.Close()

	var categories []models.Category
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug, &c.ParentID, &c.ProductCount); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}
