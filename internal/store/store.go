// Package store defines the read interface over the event indexer's data.
// The indexer itself is an external pipeline; this package only reads what
// it has written. Implementations include PostgreSQL (the indexer's
// tables), Redis (read-through cache for the contract series), and
// in-memory (for testing).
package store

import (
	"context"

	"github.com/hashforward/trading-engine/internal/model"
)

// Source is the read model the refresh pass consumes. MintRecords and
// Contracts are fetched within the same pass so settlement math is never
// applied to stale fill data.
type Source interface {
	// MintRecords returns the raw long- and short-side position mints for
	// an address, in indexer feed order.
	MintRecords(ctx context.Context, address string) (long, short []model.MintRecord, err error)

	// Contracts returns the full deployed contract series, ascending by
	// index.
	Contracts(ctx context.Context) ([]model.MarketContract, error)
}
