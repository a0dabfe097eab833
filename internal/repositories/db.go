package repositories

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"catalogfacets/internal/query"
)

// Database is the slice of pgxpool.Pool the repositories use; pgxmock's pool
// satisfies it as well.
type Database interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// criteriaFilter renders criteria as SQL conditions over products p. Arguments
// are numbered after those already in args.
func criteriaFilter(c query.Criteria, args []interface{}) (string, []interface{}) {
	var sb strings.Builder
	conditionCount := len(args)
	next := func(v interface{}) int {
		conditionCount++
		args = append(args, v)
		return conditionCount
	}

	if len(c.Categories) > 0 {
		fmt.Fprintf(&sb, ` AND EXISTS (
			SELECT 1 FROM product_categories pc
			WHERE pc.product_id = p.id AND pc.category_id = ANY($%d)
		)`, next(c.Categories))
	}

	for _, a := range c.Attributes {
		taxonomy, slugs := next(a.Attribute), next(a.Slugs)
		if a.Operator == query.OperatorAnd {
			fmt.Fprintf(&sb, ` AND (
			SELECT COUNT(DISTINCT pa.slug) FROM product_attributes pa
			WHERE pa.product_id = p.id AND pa.taxonomy = $%d AND pa.slug = ANY($%d)
		) = $%d`, taxonomy, slugs, next(len(a.Slugs)))
			continue
		}
		fmt.Fprintf(&sb, ` AND EXISTS (
			SELECT 1 FROM product_attributes pa
			WHERE pa.product_id = p.id AND pa.taxonomy = $%d AND pa.slug = ANY($%d)
		)`, taxonomy, slugs)
	}

	if len(c.StockStatus) > 0 {
		fmt.Fprintf(&sb, ` AND p.stock_status = ANY($%d)`, next(c.StockStatus))
	}

	if len(c.Ratings) > 0 {
		ratings := make([]int, 0, len(c.Ratings))
		for _, r := range c.Ratings {
			if n, err := strconv.Atoi(r); err == nil {
				ratings = append(ratings, n)
			}
		}
		fmt.Fprintf(&sb, ` AND ROUND(p.average_rating)::int = ANY($%d)`, next(ratings))
	}

	if c.MinPrice != nil {
		fmt.Fprintf(&sb, ` AND p.price >= $%d`, next(*c.MinPrice))
	}
	if c.MaxPrice != nil {
		fmt.Fprintf(&sb, ` AND p.price <= $%d`, next(*c.MaxPrice))
	}

	// Full-text search across name and description
	if c.Search != "" {
		n := next("%" + c.Search + "%")
		fmt.Fprintf(&sb, ` AND (p.name ILIKE $%d OR COALESCE(p.description, '') ILIKE $%d)`, n, n)
	}

	return sb.String(), args
}

func orderClause(orderBy string) string {
	var order string
	switch orderBy {
	case "popularity":
		order = "p.total_sales DESC"
	case "rating":
		order = "p.average_rating DESC"
	case "date":
		order = "p.created_at DESC"
	case "price":
		order = "p.price ASC"
	case "price-desc":
		order = "p.price DESC"
	default:
		order = "p.menu_order ASC, p.name ASC"
	}
	return " ORDER BY " + order + ", p.id ASC"
}
