package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hashforward/trading-engine/internal/model"
)

const contractSeriesKey = "hfwd:contracts"

// CachedSource wraps a primary Source with a Redis read-through cache for
// the contract series. The series only grows by one instance per day, so
// a short TTL is safe. Mint records are always read from the primary:
// per-address freshness is what the refresh pass is for.
type CachedSource struct {
	primary Source
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedSource creates a cached wrapper around a primary source.
func NewCachedSource(primary Source, rdb *redis.Client, ttl time.Duration) *CachedSource {
	return &CachedSource{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

var _ Source = (*CachedSource)(nil)

func (s *CachedSource) MintRecords(ctx context.Context, address string) ([]model.MintRecord, []model.MintRecord, error) {
	return s.primary.MintRecords(ctx, address)
}

func (s *CachedSource) Contracts(ctx context.Context) ([]model.MarketContract, error) {
	// Try cache.
	data, err := s.rdb.Get(ctx, contractSeriesKey).Bytes()
	if err == nil {
		var contracts []model.MarketContract
		if json.Unmarshal(data, &contracts) == nil {
			return contracts, nil
		}
	}

	// Cache miss: read from primary.
	contracts, err := s.primary.Contracts(ctx)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(contracts); err == nil {
		s.rdb.Set(ctx, contractSeriesKey, data, s.ttl)
	}
	return contracts, nil
}
