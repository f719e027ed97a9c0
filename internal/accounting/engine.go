// Package accounting reconstructs the current financial state of a user's
// forward positions purely from indexed mint/fill records and the deployed
// contract series. There is no server-side ledger: every refresh pass
// recomputes positions from scratch over a consistent snapshot, so the
// engine is stateless and idempotent.
package accounting

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/hashforward/trading-engine/internal/chain"
	"github.com/hashforward/trading-engine/internal/fixedpoint"
	"github.com/hashforward/trading-engine/internal/model"
)

// ErrStatusRegression is returned when a position's status moves backward
// between two snapshots. The lifecycle is strictly forward-only; observing
// a regression means the upstream data is inconsistent, which must be
// surfaced rather than silently re-classified.
var ErrStatusRegression = errors.New("accounting: position status regressed")

// OrphanedFillError records a mint whose market instance is missing from
// the contract series — a data-consistency gap between the indexer feeds.
// The record is excluded from totals; the rest of the pass continues.
type OrphanedFillError struct {
	Owner         string
	Side          model.Side
	MarketID      int64
	TransactionID string
}

func (e *OrphanedFillError) Error() string {
	return fmt.Sprintf("accounting: orphaned fill: no contract with index %d (owner %s, side %s, tx %s)",
		e.MarketID, e.Owner, e.Side, e.TransactionID)
}

// Result is one accounting pass over a snapshot.
type Result struct {
	Long  []model.Position
	Short []model.Position

	// Orphans lists records excluded for missing contract references.
	Orphans []*OrphanedFillError
}

// Statuses returns the status of every position in the result keyed by
// position identity, for cross-snapshot monotonicity checks.
func (r *Result) Statuses() map[model.PositionKey]model.PositionStatus {
	out := make(map[model.PositionKey]model.PositionStatus, len(r.Long)+len(r.Short))
	for i := range r.Long {
		out[r.Long[i].Key()] = r.Long[i].Status
	}
	for i := range r.Short {
		out[r.Short[i].Key()] = r.Short[i].Status
	}
	return out
}

// Engine computes positions from snapshot feeds. The gateway handle is
// passed at construction; redeemability checks go through it live on every
// pass, never cached.
type Engine struct {
	gateway chain.Gateway
}

// NewEngine creates an accounting engine bound to a contract gateway.
func NewEngine(gw chain.Gateway) *Engine {
	return &Engine{gateway: gw}
}

// ComputePositions merges raw mint records into logical positions and
// derives rewards, redeemability, and lifecycle status for each. The
// record and contract feeds must come from the same refresh pass so
// settlement math is never applied to stale fill data.
func (e *Engine) ComputePositions(
	ctx context.Context,
	owner string,
	longRecords, shortRecords []model.MintRecord,
	contracts []model.MarketContract,
) (*Result, error) {
	byIndex := make(map[int64]*model.MarketContract, len(contracts))
	for i := range contracts {
		byIndex[contracts[i].Index] = &contracts[i]
	}

	result := &Result{}

	long, err := e.computeSide(ctx, owner, model.SideLong, longRecords, contracts, byIndex, result)
	if err != nil {
		return nil, err
	}
	short, err := e.computeSide(ctx, owner, model.SideShort, shortRecords, contracts, byIndex, result)
	if err != nil {
		return nil, err
	}

	result.Long = long
	result.Short = short
	return result, nil
}

// mergedTrade is one logical trade after the merge-by-transaction step.
type mergedTrade struct {
	transactionID string
	marketID      int64
	qty           decimal.Decimal
	makerFilled   decimal.Decimal
	takerFilled   decimal.Decimal
}

// price is Σ takerFilled / Σ makerFilled over the trade's fills,
// expressed in human payment units per contract unit.
func (t *mergedTrade) price() decimal.Decimal {
	if t.makerFilled.IsZero() {
		return decimal.Zero
	}
	p, _ := fixedpoint.Ratio(
		t.takerFilled, fixedpoint.PaymentDecimals,
		t.makerFilled, fixedpoint.ContractSizeDecimals,
	)
	return p
}

func (e *Engine) computeSide(
	ctx context.Context,
	owner string,
	side model.Side,
	records []model.MintRecord,
	contracts []model.MarketContract,
	byIndex map[int64]*model.MarketContract,
	result *Result,
) ([]model.Position, error) {
	// Step 1: merge fills by transaction id. A taker sweep across several
	// maker orders lands as multiple fills in one transaction; they are
	// one logical trade.
	trades := mergeByTransaction(records)

	// Step 2: merge trades by market instance id. The entry price of the
	// earliest trade is retained, not re-blended across instances.
	positionsByMarket := make(map[int64]*model.Position)
	var order []int64

	for _, t := range trades {
		c, ok := byIndex[t.marketID]
		if !ok {
			result.Orphans = append(result.Orphans, &OrphanedFillError{
				Owner:         owner,
				Side:          side,
				MarketID:      t.marketID,
				TransactionID: t.transactionID,
			})
			continue
		}

		p, ok := positionsByMarket[t.marketID]
		if !ok {
			p = &model.Position{
				Owner:             owner,
				Side:              side,
				MarketID:          t.marketID,
				Symbol:            c.Symbol,
				Qty:               decimal.Zero,
				Price:             t.price(),
				CollateralPerUnit: c.CollateralPerUnit,
				TokenAddress:      c.TokenAddress(side),
			}
			positionsByMarket[t.marketID] = p
			order = append(order, t.marketID)
		}
		p.Qty = p.Qty.Add(t.qty)
	}

	// Step 3 + 4 + 5: rewards, redeemability, status.
	positions := make([]model.Position, 0, len(order))
	for _, marketID := range order {
		p := positionsByMarket[marketID]
		c := byIndex[marketID]

		deriveRewards(p, c, contracts)

		if err := e.classify(ctx, p, c); err != nil {
			return nil, err
		}
		positions = append(positions, *p)
	}

	sort.Slice(positions, func(i, j int) bool {
		return positions[i].MarketID < positions[j].MarketID
	})
	return positions, nil
}

// mergeByTransaction sums records sharing a transaction id into one
// logical trade, preserving feed order.
func mergeByTransaction(records []model.MintRecord) []*mergedTrade {
	byTx := make(map[string]*mergedTrade, len(records))
	var order []string

	for i := range records {
		r := &records[i]
		t, ok := byTx[r.TransactionID]
		if !ok {
			t = &mergedTrade{
				transactionID: r.TransactionID,
				marketID:      r.MarketID,
				qty:           decimal.Zero,
				makerFilled:   decimal.Zero,
				takerFilled:   decimal.Zero,
			}
			byTx[r.TransactionID] = t
			order = append(order, r.TransactionID)
		}
		t.qty = t.qty.Add(r.QtyToMint)
		for _, f := range r.Fills {
			t.makerFilled = t.makerFilled.Add(f.MakerAssetFilled)
			t.takerFilled = t.takerFilled.Add(f.TakerAssetFilled)
		}
	}

	trades := make([]*mergedTrade, 0, len(order))
	for _, tx := range order {
		trades = append(trades, byTx[tx])
	}
	return trades
}

// deriveRewards fills PendingReward/FinalReward. Settled instances pay
// revenuePerUnit to longs and collateralPerUnit - revenuePerUnit to
// shorts, both capped by the collateral ceiling. Open positions accrue
// the MRI prints of later-indexed open instances, inverted for shorts.
func deriveRewards(p *model.Position, c *model.MarketContract, contracts []model.MarketContract) {
	ceiling := c.CollateralPerUnit

	if c.Settled() {
		var perUnit decimal.Decimal
		if p.Side == model.SideShort {
			perUnit = ceiling.Sub(c.Settlement.RevenuePerUnit)
		} else {
			perUnit = c.Settlement.RevenuePerUnit
		}
		perUnit = clamp(perUnit, ceiling)
		p.FinalReward = perUnit.Mul(p.Qty)
		p.PendingReward = p.FinalReward
		return
	}

	accrued := accruedPerUnit(p.MarketID, contracts)
	var perUnit decimal.Decimal
	if p.Side == model.SideShort {
		perUnit = ceiling.Sub(accrued)
	} else {
		perUnit = accrued
	}
	perUnit = clamp(perUnit, ceiling)
	p.PendingReward = perUnit.Mul(p.Qty)
	p.FinalReward = decimal.Zero
}

// accruedPerUnit sums CurrentMRI over open instances with index strictly
// greater than marketID. The entry-day instance is excluded: its index is
// assigned at deployment, before any MRI print for that day exists.
func accruedPerUnit(marketID int64, contracts []model.MarketContract) decimal.Decimal {
	sum := decimal.Zero
	for i := range contracts {
		c := &contracts[i]
		if c.Index > marketID && !c.Settled() {
			sum = sum.Add(c.CurrentMRI)
		}
	}
	return sum
}

// clamp bounds a per-unit reward to [0, ceiling].
func clamp(v, ceiling decimal.Decimal) decimal.Decimal {
	if v.IsNegative() {
		return decimal.Zero
	}
	if v.GreaterThan(ceiling) {
		return ceiling
	}
	return v
}

// classify derives redeemability and lifecycle status from live chain
// reads. A position believed non-redeemable is re-checked every pass;
// settlement completes asynchronously.
func (e *Engine) classify(ctx context.Context, p *model.Position, c *model.MarketContract) error {
	if !c.Settled() {
		p.Status = model.StatusActive
		p.Redeemable = false
		return nil
	}

	balance, err := e.gateway.BalanceOf(ctx, p.TokenAddress, p.Owner)
	if err != nil {
		return err
	}
	if balance.IsZero() {
		p.Status = model.StatusWithdrawn
		p.Redeemable = false
		return nil
	}

	delayElapsed, err := e.gateway.IsPostSettlementDelay(ctx, p.MarketID)
	if err != nil {
		return err
	}
	if delayElapsed {
		p.Status = model.StatusWithdrawalPending
		p.Redeemable = true
		return nil
	}

	p.Status = model.StatusExpiredAwaitingSettlement
	p.Redeemable = false
	return nil
}

// CheckMonotonic compares a previous snapshot's statuses against the
// current result. Statuses may only move forward through the lifecycle; a
// backward move returns ErrStatusRegression naming the first offender.
func CheckMonotonic(prev map[model.PositionKey]model.PositionStatus, curr *Result) error {
	if len(prev) == 0 {
		return nil
	}
	check := func(positions []model.Position) error {
		for i := range positions {
			p := &positions[i]
			was, ok := prev[p.Key()]
			if ok && p.Status.Precedes(was) {
				return fmt.Errorf("%w: market %d side %s: %s -> %s",
					ErrStatusRegression, p.MarketID, p.Side, was, p.Status)
			}
		}
		return nil
	}
	if err := check(curr.Long); err != nil {
		return err
	}
	return check(curr.Short)
}
