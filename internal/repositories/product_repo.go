package repositories

import (
	"context"
	"fmt"
	"strconv"

	"catalogfacets/internal/models"
	"catalogfacets/internal/query"
)

// ProductRepository matches filter criteria against the products table.
type ProductRepository interface {
	Query(ctx context.Context, c query.Criteria) ([]string, error)
	CountBy(ctx context.Context, key query.FacetKey, c query.Criteria) (map[string]int, error)
	PriceBounds(ctx context.Context, c query.Criteria) (models.PriceBounds, error)
}

type productRepo struct {
	db Database
}

func NewProductRepo(db Database) ProductRepository {
	return &productRepo{db: db}
}

func (r *productRepo) Query(ctx context.Context, c query.Criteria) ([]string, error) {
	conditions, args := criteriaFilter(c, nil)
	queryBase := `
		SELECT p.id
		FROM products p
		WHERE TRUE` + conditions + orderClause(c.OrderBy)

	rows, err := r.db.Query(ctx, queryBase, args...)
	if err != nil {
		return nil, fmt.Errorf("querying products: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *productRepo) CountBy(ctx context.Context, key query.FacetKey, c query.Criteria) (map[string]int, error) {
	var (
		queryBase string
		args      []interface{}
	)

	switch key.Facet {
	case query.FacetCategory:
		conditions, a := criteriaFilter(c, nil)
		queryBase = `
		SELECT pc.category_id, COUNT(DISTINCT p.id)
		FROM products p
		JOIN product_categories pc ON pc.product_id = p.id
		WHERE TRUE` + conditions + `
		GROUP BY pc.category_id`
		args = a
	case query.FacetStockStatus:
		conditions, a := criteriaFilter(c, nil)
		queryBase = `
		SELECT p.stock_status, COUNT(*)
		FROM products p
		WHERE TRUE` + conditions + `
		GROUP BY p.stock_status`
		args = a
	case query.FacetRating:
		return r.countRatings(ctx, c)
	case query.FacetAttributes:
		conditions, a := criteriaFilter(c, []interface{}{key.Attribute})
		queryBase = `
		SELECT pt.slug, COUNT(DISTINCT p.id)
		FROM products p
		JOIN product_attributes pt ON pt.product_id = p.id AND pt.taxonomy = $1
		WHERE TRUE` + conditions + `
		GROUP BY pt.slug`
		args = a
	case query.FacetPrice, query.FacetSearch, query.FacetOrderBy:
		return nil, fmt.Errorf("facet %s has no value breakdown", key)
	}

	rows, err := r.db.Query(ctx, queryBase, args...)
	if err != nil {
		return nil, fmt.Errorf("counting products by %s: %w", key, err)
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var value string
		var n int
		if err := rows.Scan(&value, &n); err != nil {
			return nil, err
		}
		counts[value] = n
	}
	return counts, rows.Err()
}

func (r *productRepo) countRatings(ctx context.Context, c query.Criteria) (map[string]int, error) {
	conditions, args := criteriaFilter(c, nil)
	queryBase := `
		SELECT ROUND(p.average_rating)::int AS rating, COUNT(*)
		FROM products p
		WHERE ROUND(p.average_rating) > 0` + conditions + `
		GROUP BY rating`

	rows, err := r.db.Query(ctx, queryBase, args...)
	if err != nil {
		return nil, fmt.Errorf("counting products by rating: %w", err)
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var rating, n int
		if err := rows.Scan(&rating, &n); err != nil {
			return nil, err
		}
		counts[strconv.Itoa(rating)] = n
	}
	return counts, rows.Err()
}

func (r *productRepo) PriceBounds(ctx context.Context, c query.Criteria) (models.PriceBounds, error) {
	conditions, args := criteriaFilter(c, nil)
	queryBase := `
		SELECT COALESCE(MIN(p.price), 0)::float8, COALESCE(MAX(p.price), 0)::float8
		FROM products p
		WHERE TRUE` + conditions

	var bounds models.PriceBounds
	if err := r.db.QueryRow(ctx, queryBase, args...).Scan(&bounds.Min, &bounds.Max); err != nil {
		return models.PriceBounds{}, fmt.Errorf("reading price bounds: %w", err)
	}
	return bounds, nil
}
