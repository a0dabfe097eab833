package caching

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"catalogfacets/internal/models"
	"catalogfacets/internal/query"
)

const keyPrefix = "catalogfacets"

// SessionRecord is what survives of a filter session between restarts: the
// URL is enough to rebuild its state.
type SessionRecord struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	UpdatedAt time.Time `json:"updated_at"`
}

type CacheService interface {
	// Facet count caching
	GetCounts(ctx context.Context, key query.FacetKey, criteria query.Criteria) (map[string]int, error)
	SetCounts(ctx context.Context, key query.FacetKey, criteria query.Criteria, counts map[string]int, ttl time.Duration) error
	GetPriceBounds(ctx context.Context, criteria query.Criteria) (*models.PriceBounds, error)
	SetPriceBounds(ctx context.Context, criteria query.Criteria, bounds models.PriceBounds, ttl time.Duration) error
	InvalidateCounts(ctx context.Context) error

	// Session persistence
	SetSession(ctx context.Context, record SessionRecord, ttl time.Duration) error
	GetSession(ctx context.Context, sessionID string) (*SessionRecord, error)
	// DeleteSession reports whether a persisted session was removed.
	DeleteSession(ctx context.Context, sessionID string) (bool, error)

	// Rate limiting
	IsRateLimited(ctx context.Context, key string, limit int, window time.Duration) (bool, error)

	Ping(ctx context.Context) error
}

type redisCacheService struct {
	client *redis.Client
	logger *zap.Logger
}

func NewRedisCacheService(addr, password string, db int, logger *zap.Logger) CacheService {
	if logger == nil {
		logger = zap.NewNop()
	}
	// Parse Redis URL to extract host:port if protocol is included
	parsedAddr := addr
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		if hostPort := strings.TrimPrefix(strings.TrimPrefix(addr, "redis://"), "rediss://"); hostPort != addr {
			parsedAddr = hostPort
		}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     parsedAddr,
		Password: password,
		DB:       db,
	})

	if pingErr := client.Ping(context.Background()).Err(); pingErr != nil {
		logger.Warn("redis ping failed on initialization", zap.String("addr", parsedAddr), zap.Error(pingErr))
	} else {
		logger.Debug("redis connection established", zap.String("addr", parsedAddr))
	}

	return &redisCacheService{client: client, logger: logger}
}

// CriteriaHash identifies a criteria set in cache keys.
func CriteriaHash(criteria query.Criteria) string {
	data, _ := json.Marshal(criteria)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:12])
}

func countsKey(key query.FacetKey, criteria query.Criteria) string {
	return fmt.Sprintf("%s:counts:%s:%s", keyPrefix, key.String(), CriteriaHash(criteria))
}

func boundsKey(criteria query.Criteria) string {
	return fmt.Sprintf("%s:counts:bounds:%s", keyPrefix, CriteriaHash(criteria))
}

func sessionKey(sessionID string) string {
	return fmt.Sprintf("%s:session:%s", keyPrefix, sessionID)
}

func (r *redisCacheService) getJSON(ctx context.Context, key string, out any) (bool, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil // cache miss
		}
		return false, err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, err
	}
	return true, nil
}

func (r *redisCacheService) setJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, key, data, ttl).Err()
}

func (r *redisCacheService) GetCounts(ctx context.Context, key query.FacetKey, criteria query.Criteria) (map[string]int, error) {
	var counts map[string]int
	found, err := r.getJSON(ctx, countsKey(key, criteria), &counts)
	if err != nil || !found {
		return nil, err
	}
	if counts == nil {
		counts = map[string]int{}
	}
	return counts, nil
}

func (r *redisCacheService) SetCounts(ctx context.Context, key query.FacetKey, criteria query.Criteria, counts map[string]int, ttl time.Duration) error {
	return r.setJSON(ctx, countsKey(key, criteria), counts, ttl)
}

func (r *redisCacheService) GetPriceBounds(ctx context.Context, criteria query.Criteria) (*models.PriceBounds, error) {
	var bounds models.PriceBounds
	found, err := r.getJSON(ctx, boundsKey(criteria), &bounds)
	if err != nil || !found {
		return nil, err
	}
	return &bounds, nil
}

func (r *redisCacheService) SetPriceBounds(ctx context.Context, criteria query.Criteria, bounds models.PriceBounds, ttl time.Duration) error {
	return r.setJSON(ctx, boundsKey(criteria), bounds, ttl)
}

func (r *redisCacheService) InvalidateCounts(ctx context.Context) error {
	keys, err := r.client.Keys(ctx, keyPrefix+":counts:*").Result()
	if err != nil {
		return err
	}

	if len(keys) > 0 {
		return r.client.Del(ctx, keys...).Err()
	}
	return nil
}

func (r *redisCacheService) SetSession(ctx context.Context, record SessionRecord, ttl time.Duration) error {
	return r.setJSON(ctx, sessionKey(record.ID), record, ttl)
}

func (r *redisCacheService) GetSession(ctx context.Context, sessionID string) (*SessionRecord, error) {
	var record SessionRecord
	found, err := r.getJSON(ctx, sessionKey(sessionID), &record)
	if err != nil || !found {
		return nil, err
	}
	return &record, nil
}

func (r *redisCacheService) DeleteSession(ctx context.Context, sessionID string) (bool, error) {
	n, err := r.client.Del(ctx, sessionKey(sessionID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *redisCacheService) IsRateLimited(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	cacheKey := fmt.Sprintf("%s:ratelimit:%s", keyPrefix, key)
	// The window starts with the first request; SETNX and INCR run in one
	// transaction so the counter never exists without a TTL.
	var incr *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SetNX(ctx, cacheKey, 0, window)
		incr = pipe.Incr(ctx, cacheKey)
		return nil
	})
	if err != nil {
		return true, err
	}
	return incr.Val() > int64(limit), nil
}

func (r *redisCacheService) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
