package caching

import (
	"context"
	"time"

	"go.uber.org/zap"

	"catalogfacets/internal/facets"
	"catalogfacets/internal/models"
	"catalogfacets/internal/query"
)

// CachedMatcher serves facet counts and price bounds from redis, falling back
// to the wrapped matcher on a miss. Cache failures are logged and bypassed.
// Product queries are never cached.
type CachedMatcher struct {
	inner  facets.Matcher
	cache  CacheService
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedMatcher wraps inner with a count cache.
func NewCachedMatcher(inner facets.Matcher, cache CacheService, ttl time.Duration, logger *zap.Logger) *CachedMatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedMatcher{inner: inner, cache: cache, ttl: ttl, logger: logger}
}

func (m *CachedMatcher) Query(ctx context.Context, c query.Criteria) ([]string, error) {
	return m.inner.Query(ctx, c)
}

func (m *CachedMatcher) CountBy(ctx context.Context, key query.FacetKey, c query.Criteria) (map[string]int, error) {
	cached, err := m.cache.GetCounts(ctx, key, c)
	if err != nil {
		m.logger.Warn("count cache read failed", zap.Stringer("facet", key), zap.Error(err))
	} else if cached != nil {
		return cached, nil
	}

	counts, err := m.inner.CountBy(ctx, key, c)
	if err != nil {
		return nil, err
	}
	if err := m.cache.SetCounts(ctx, key, c, counts, m.ttl); err != nil {
		m.logger.Warn("count cache write failed", zap.Stringer("facet", key), zap.Error(err))
	}
	return counts, nil
}

func (m *CachedMatcher) PriceBounds(ctx context.Context, c query.Criteria) (models.PriceBounds, error) {
	cached, err := m.cache.GetPriceBounds(ctx, c)
	if err != nil {
		m.logger.Warn("price bounds cache read failed", zap.Error(err))
	} else if cached != nil {
		return *cached, nil
	}

	bounds, err := m.inner.PriceBounds(ctx, c)
	if err != nil {
		return models.PriceBounds{}, err
	}
	if err := m.cache.SetPriceBounds(ctx, c, bounds, m.ttl); err != nil {
		m.logger.Warn("price bounds cache write failed", zap.Error(err))
	}
	return bounds, nil
}
