package repositories

import (
	"context"
	"fmt"

	"catalogfacets/internal/models"
)

type AttributeRepository interface {
	ListAttributes(ctx context.Context) ([]models.AttributeTaxonomy, error)
}

type attributeRepo struct {
	db Database
}

func NewAttributeRepo(db Database) AttributeRepository {
	return &attributeRepo{db: db}
}

// ListAttributes returns every filterable attribute taxonomy with its terms.
func (r *attributeRepo) ListAttributes(ctx context.Context) ([]models.AttributeTaxonomy, error) {
	query := `
		SELECT t.name, t.label, COALESCE(a.id, ''), COALESCE(a.slug, ''), COALESCE(a.name, ''),
			COALESCE(a.product_count, 0)
		FROM attribute_taxonomies t
		LEFT JOIN attribute_terms a ON a.taxonomy = t.name
		ORDER BY t.name, a.sort_order, a.name
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing attributes: %w", err)
	}
	defer rows.Close()

	var taxonomies []models.AttributeTaxonomy
	for rows.Next() {
		var name, label string
		var term models.AttributeTerm
		if err := rows.Scan(&name, &label, &term.ID, &term.Slug, &term.Name, &term.Count); err != nil {
			return nil, err
		}
		if len(taxonomies) == 0 || taxonomies[len(taxonomies)-1].Name != name {
			taxonomies = append(taxonomies, models.AttributeTaxonomy{Name: name, Label: label})
		}
		if term.Slug != "" {
			last := &taxonomies[len(taxonomies)-1]
			last.Terms = append(last.Terms, term)
		}
	}
	return taxonomies, rows.Err()
}
