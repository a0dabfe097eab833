package services

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"catalogfacets/internal/models"
	"catalogfacets/internal/taxonomy"
)

// CategorySource supplies the flat category list.
type CategorySource interface {
	ListCategories(ctx context.Context) ([]models.Category, error)
}

// AttributeSource supplies the attribute taxonomies and their terms.
type AttributeSource interface {
	ListAttributes(ctx context.Context) ([]models.AttributeTaxonomy, error)
}

// ProductLister exposes an in-memory product set, e.g. matching.Memory.
type ProductLister interface {
	Products() []models.Product
}

// CatalogService holds the current taxonomy. Readers always see a complete,
// immutable tree; Refresh swaps in a new one.
type CatalogService struct {
	categorySource  CategorySource
	attributeSource AttributeSource
	products        ProductLister
	logger          *zap.Logger
	ttl             time.Duration

	mu         sync.RWMutex
	tree       *taxonomy.Tree
	categories []models.Category
	attributes []models.AttributeTaxonomy
	loadedAt   time.Time
}

func NewCatalogService(categories CategorySource, attributes AttributeSource, ttl time.Duration, logger *zap.Logger) *CatalogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogService{
		categorySource:  categories,
		attributeSource: attributes,
		logger:          logger,
		ttl:             ttl,
		tree:            taxonomy.Build(nil),
	}
}

// Refresh reloads categories and attributes from their sources. On failure the
// previous taxonomy stays in place.
func (s *CatalogService) Refresh(ctx context.Context) error {
	var (
		categories []models.Category
		attributes []models.AttributeTaxonomy
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		categories, err = s.categorySource.ListCategories(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		attributes, err = s.attributeSource.ListAttributes(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("refreshing catalog: %w", err)
	}

	s.Load(categories, attributes)
	return nil
}

// Load installs a taxonomy directly.
func (s *CatalogService) Load(categories []models.Category, attributes []models.AttributeTaxonomy) {
	tree := taxonomy.Build(categories)
	for _, problem := range tree.Problems() {
		s.logger.Warn("category taxonomy repaired", zap.Error(problem))
	}

	s.mu.Lock()
	s.tree = tree
	s.categories = slices.Clone(categories)
	s.attributes = slices.Clone(attributes)
	s.loadedAt = time.Now()
	s.mu.Unlock()

	s.logger.Info("catalog loaded",
		zap.Int("categories", tree.Len()),
		zap.Int("attributes", len(attributes)))
}

// RefreshIfStale refreshes once the taxonomy is older than the TTL.
func (s *CatalogService) RefreshIfStale(ctx context.Context) error {
	if !s.Stale() {
		return nil
	}
	return s.Refresh(ctx)
}

// Stale reports whether the taxonomy was never loaded or has outlived its TTL.
func (s *CatalogService) Stale() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadedAt.IsZero() || (s.ttl > 0 && time.Since(s.loadedAt) > s.ttl)
}

func (s *CatalogService) Tree() *taxonomy.Tree {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tree
}

func (s *CatalogService) Attributes() []models.AttributeTaxonomy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.attributes
}

// Snapshot exports the current taxonomy, plus the products when a product
// source is set.
func (s *CatalogService) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snapshot := &Snapshot{
		Version:     SnapshotVersion,
		GeneratedAt: time.Now().UTC(),
		Categories:  slices.Clone(s.categories),
		Attributes:  slices.Clone(s.attributes),
	}
	if s.products != nil {
		snapshot.Products = s.products.Products()
	}
	return snapshot
}

// SetProductSource makes Snapshot carry the products of p. Set it when the
// service is booted from a snapshot, so exports do not drop the products.
func (s *CatalogService) SetProductSource(p ProductLister) {
	s.mu.Lock()
	s.products = p
	s.mu.Unlock()
}

// LoadedAt is when the current taxonomy was installed.
func (s *CatalogService) LoadedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadedAt
}

// SnapshotSource serves a snapshot as category and attribute source.
type SnapshotSource struct {
	Snapshot *Snapshot
}

func (s SnapshotSource) ListCategories(context.Context) ([]models.Category, error) {
	return s.Snapshot.Categories, nil
}

func (s SnapshotSource) ListAttributes(context.Context) ([]models.AttributeTaxonomy, error) {
	return s.Snapshot.Attributes, nil
}
