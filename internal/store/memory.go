package store

import (
	"context"
	"sort"
	"sync"

	"github.com/hashforward/trading-engine/internal/model"
)

// MemorySource implements Source with in-memory slices. Used for testing
// and development. Not suitable for production (no persistence).
type MemorySource struct {
	mu        sync.RWMutex
	long      map[string][]model.MintRecord
	short     map[string][]model.MintRecord
	contracts []model.MarketContract
}

// NewMemorySource creates a new in-memory source.
func NewMemorySource() *MemorySource {
	return &MemorySource{
		long:  make(map[string][]model.MintRecord),
		short: make(map[string][]model.MintRecord),
	}
}

var _ Source = (*MemorySource)(nil)

// AddMint appends a mint record for an address and side.
func (s *MemorySource) AddMint(address string, side model.Side, rec model.MintRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if side == model.SideShort {
		s.short[address] = append(s.short[address], rec)
	} else {
		s.long[address] = append(s.long[address], rec)
	}
}

// SetContracts replaces the contract series.
func (s *MemorySource) SetContracts(contracts []model.MarketContract) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contracts = append([]model.MarketContract(nil), contracts...)
	sort.Slice(s.contracts, func(i, j int) bool {
		return s.contracts[i].Index < s.contracts[j].Index
	})
}

func (s *MemorySource) MintRecords(_ context.Context, address string) ([]model.MintRecord, []model.MintRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	long := append([]model.MintRecord(nil), s.long[address]...)
	short := append([]model.MintRecord(nil), s.short[address]...)
	return long, short, nil
}

func (s *MemorySource) Contracts(_ context.Context) ([]model.MarketContract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.MarketContract(nil), s.contracts...), nil
}
