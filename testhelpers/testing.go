package testhelpers

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"catalogfacets/internal/models"
)

// TestDB holds a pool bound to a throwaway schema.
type TestDB struct {
	Pool    *pgxpool.Pool
	Schema  string
	Cleanup func() error
}

const schemaDDL = `
CREATE TABLE categories (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	slug       TEXT NOT NULL,
	parent_id  TEXT,
	sort_order INT NOT NULL DEFAULT 0
);
CREATE TABLE products (
	id             TEXT PRIMARY KEY,
	name           TEXT NOT NULL,
	description    TEXT,
	price          NUMERIC(12, 2) NOT NULL,
	stock_status   TEXT NOT NULL,
	average_rating NUMERIC(3, 2) NOT NULL DEFAULT 0,
	total_sales    INT NOT NULL DEFAULT 0,
	menu_order     INT NOT NULL DEFAULT 0,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE product_categories (
	product_id  TEXT NOT NULL REFERENCES products(id),
	category_id TEXT NOT NULL REFERENCES categories(id),
	PRIMARY KEY (product_id, category_id)
);
CREATE TABLE attribute_taxonomies (
	name  TEXT PRIMARY KEY,
	label TEXT NOT NULL
);
CREATE TABLE attribute_terms (
	id            TEXT PRIMARY KEY,
	taxonomy      TEXT NOT NULL REFERENCES attribute_taxonomies(name),
	slug          TEXT NOT NULL,
	name          TEXT NOT NULL,
	product_count INT NOT NULL DEFAULT 0,
	sort_order    INT NOT NULL DEFAULT 0
);
CREATE TABLE product_attributes (
	product_id TEXT NOT NULL REFERENCES products(id),
	taxonomy   TEXT NOT NULL,
	slug       TEXT NOT NULL,
	PRIMARY KEY (product_id, taxonomy, slug)
);
`

// SetupTestDB connects to TEST_DATABASE_URL and creates the catalogue tables
// in a fresh schema. The test is skipped when no database is configured.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	connString := os.Getenv("TEST_DATABASE_URL")
	if connString == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	schema := "catalogfacets_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		t.Fatalf("Failed to parse test database url: %v", err)
	}
	config.ConnConfig.RuntimeParams["search_path"] = schema

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	if _, err := pool.Exec(ctx, "CREATE SCHEMA "+schema); err != nil {
		pool.Close()
		t.Fatalf("Failed to create schema %s: %v", schema, err)
	}
	if _, err := pool.Exec(ctx, schemaDDL); err != nil {
		pool.Close()
		t.Fatalf("Failed to create tables: %v", err)
	}

	return &TestDB{
		Pool:   pool,
		Schema: schema,
		Cleanup: func() error {
			defer pool.Close()
			_, err := pool.Exec(context.Background(), "DROP SCHEMA "+schema+" CASCADE")
			return err
		},
	}
}

// SeedCatalog inserts categories, attribute taxonomies and products with
// their category and attribute assignments.
func SeedCatalog(t *testing.T, db *TestDB, categories []models.Category,
	attributes []models.AttributeTaxonomy, products []models.Product) {
	t.Helper()
	ctx := context.Background()

	for i, c := range categories {
		var parent interface{}
		if c.ParentID != "" {
			parent = c.ParentID
		}
		_, err := db.Pool.Exec(ctx,
			`INSERT INTO categories (id, name, slug, parent_id, sort_order) VALUES ($1, $2, $3, $4, $5)`,
			c.ID, c.Name, c.Slug, parent, i)
		if err != nil {
			t.Fatalf("Failed to insert category %s: %v", c.ID, err)
		}
	}

	for _, a := range attributes {
		if _, err := db.Pool.Exec(ctx,
			`INSERT INTO attribute_taxonomies (name, label) VALUES ($1, $2)`, a.Name, a.Label); err != nil {
			t.Fatalf("Failed to insert attribute %s: %v", a.Name, err)
		}
		for i, term := range a.Terms {
			id := term.ID
			if id == "" {
				id = fmt.Sprintf("%s:%s", a.Name, term.Slug)
			}
			_, err := db.Pool.Exec(ctx,
				`INSERT INTO attribute_terms (id, taxonomy, slug, name, product_count, sort_order)
				VALUES ($1, $2, $3, $4, $5, $6)`,
				id, a.Name, term.Slug, term.Name, term.Count, i)
			if err != nil {
				t.Fatalf("Failed to insert term %s: %v", term.Slug, err)
			}
		}
	}

	for _, p := range products {
		createdAt := p.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now()
		}
		_, err := db.Pool.Exec(ctx,
			`INSERT INTO products (id, name, description, price, stock_status, average_rating, total_sales, menu_order, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			p.ID, p.Name, p.Description, p.Price, p.StockStatus, p.AverageRating, p.TotalSales, p.MenuOrder, createdAt)
		if err != nil {
			t.Fatalf("Failed to insert product %s: %v", p.ID, err)
		}
		for _, category := range p.Categories {
			if _, err := db.Pool.Exec(ctx,
				`INSERT INTO product_categories (product_id, category_id) VALUES ($1, $2)`, p.ID, category); err != nil {
				t.Fatalf("Failed to tag product %s: %v", p.ID, err)
			}
		}
		for taxonomy, slugs := range p.Attributes {
			for _, slug := range slugs {
				if _, err := db.Pool.Exec(ctx,
					`INSERT INTO product_attributes (product_id, taxonomy, slug) VALUES ($1, $2, $3)`,
					p.ID, taxonomy, slug); err != nil {
					t.Fatalf("Failed to set attribute on %s: %v", p.ID, err)
				}
			}
		}
	}
}
