package chain

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/hashforward/trading-engine/internal/model"
)

// FakeGateway implements Gateway with in-memory state. Used for testing
// and development. Not suitable for production.
type FakeGateway struct {
	mu sync.RWMutex

	// CollateralPerUnit backs CalculateRequiredCollateral.
	CollateralPerUnit decimal.Decimal

	latest    *model.MarketContract
	delayDone map[int64]bool
	balances  map[string]decimal.Decimal // token|holder -> balance
	redeemed  []model.BatchRedeemCall
}

// NewFakeGateway creates an empty fake gateway.
func NewFakeGateway() *FakeGateway {
	return &FakeGateway{
		CollateralPerUnit: decimal.Zero,
		delayDone:         make(map[int64]bool),
		balances:          make(map[string]decimal.Decimal),
	}
}

var _ Gateway = (*FakeGateway)(nil)

// SetLatest sets the latest deployed instance.
func (g *FakeGateway) SetLatest(c *model.MarketContract) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.latest = c
}

// SetDelayElapsed marks an instance's settlement delay as elapsed.
func (g *FakeGateway) SetDelayElapsed(marketID int64, elapsed bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.delayDone[marketID] = elapsed
}

// SetBalance sets a holder's position-token balance.
func (g *FakeGateway) SetBalance(token, holder string, balance decimal.Decimal) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.balances[token+"|"+holder] = balance
}

// Redeemed returns the batch-redeem calls submitted so far.
func (g *FakeGateway) Redeemed() []model.BatchRedeemCall {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]model.BatchRedeemCall, len(g.redeemed))
	copy(out, g.redeemed)
	return out
}

func (g *FakeGateway) CalculateRequiredCollateral(_ context.Context, qty decimal.Decimal) (decimal.Decimal, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return qty.Mul(g.CollateralPerUnit), nil
}

func (g *FakeGateway) LatestMarketContract(_ context.Context) (*model.MarketContract, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.latest == nil {
		return nil, fmt.Errorf("%w: no deployed instance", ErrUnavailable)
	}
	c := *g.latest
	return &c, nil
}

func (g *FakeGateway) IsPostSettlementDelay(_ context.Context, marketID int64) (bool, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.delayDone[marketID], nil
}

func (g *FakeGateway) BalanceOf(_ context.Context, token, holder string) (decimal.Decimal, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.balances[token+"|"+holder], nil
}

func (g *FakeGateway) SubmitBatchRedeem(_ context.Context, call *model.BatchRedeemCall) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.redeemed = append(g.redeemed, *call)
	return fmt.Sprintf("0xfake%04d", len(g.redeemed)), nil
}
