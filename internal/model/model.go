// Package model defines the core domain types shared across the trading
// engine. All monetary values use shopspring/decimal — never float64 for
// money. Amounts are on-chain base units unless a field says otherwise.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the position side of a forward contract holder.
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// SignedOrder is an immutable signed maker offer as reported by the
// relayer. Asset amounts are base units; asset data blobs are the
// protocol's opaque asset identifiers (hex strings on the wire).
type SignedOrder struct {
	Maker            string          `json:"makerAddress"`
	Taker            string          `json:"takerAddress"`
	MakerAssetAmount decimal.Decimal `json:"makerAssetAmount"`
	TakerAssetAmount decimal.Decimal `json:"takerAssetAmount"`
	MakerAssetData   string          `json:"makerAssetData"`
	TakerAssetData   string          `json:"takerAssetData"`
	ExpirationTime   int64           `json:"expirationTimeSeconds,string"`
	Salt             string          `json:"salt"`
	Signature        string          `json:"signature"`
}

// AnnotatedOrder wraps a SignedOrder with fields derived from live book
// state. The order itself is never mutated; annotations are recomputed
// from the relayer's metadata on every fetch, never cached across a
// matching decision.
type AnnotatedOrder struct {
	Order SignedOrder

	// Price is the derived unit price in human payment units per whole
	// contract unit.
	Price decimal.Decimal

	// RemainingFillableMakerAssetAmount is derived from the reported
	// remaining taker amount via the protocol conversion rule.
	RemainingFillableMakerAssetAmount decimal.Decimal

	// RemainingFillableTakerAssetAmount is as reported by the relayer.
	RemainingFillableTakerAssetAmount decimal.Decimal
}

// OrderFill is one order's slice of a quote plan.
type OrderFill struct {
	Order           SignedOrder     `json:"order"`
	MakerFillAmount decimal.Decimal `json:"maker_fill_amount"`
	TakerFillAmount decimal.Decimal `json:"taker_fill_amount"`
}

// QuoteResult is a request-scoped matching plan. Never persisted.
type QuoteResult struct {
	ID    string      `json:"id"`
	Fills []OrderFill `json:"fills"`

	TotalMakerFillAmount decimal.Decimal `json:"total_maker_fill_amount"`
	TotalTakerFillAmount decimal.Decimal `json:"total_taker_fill_amount"`

	// Price is the blended unit price, human payment units per contract
	// unit.
	Price decimal.Decimal `json:"price"`

	// RemainingFillAmount is the unfilled portion of the target (size
	// mode) or the unspendable budget (budget mode). Nonzero means the
	// book lacked liquidity — a result state, not an error.
	RemainingFillAmount decimal.Decimal `json:"remaining_fill_amount"`
}

// Fill is an immutable on-chain fill event. Several fills can share one
// transaction when a taker sweep crosses multiple maker orders.
type Fill struct {
	OrderHash        string          `json:"order_hash"`
	Maker            string          `json:"maker"`
	Taker            string          `json:"taker"`
	MakerAssetFilled decimal.Decimal `json:"maker_asset_filled_amount"`
	TakerAssetFilled decimal.Decimal `json:"taker_asset_filled_amount"`
	TransactionID    string          `json:"transaction_id"`
}

// Settlement is the finalized revenue record of a market instance.
// Immutable once present.
type Settlement struct {
	RevenuePerUnit decimal.Decimal `json:"revenue_per_unit"`
	SettledAt      time.Time       `json:"settled_at"`
}

// MarketContract is one daily-deployed forward instance.
type MarketContract struct {
	Index             int64           `json:"index"`
	Symbol            string          `json:"symbol"`
	CollateralPerUnit decimal.Decimal `json:"collateral_per_unit"`

	// CurrentMRI is the instance's latest daily mining revenue index
	// print, used to accrue pending rewards on open positions.
	CurrentMRI decimal.Decimal `json:"current_mri"`

	LongTokenAddress  string `json:"long_token_address"`
	ShortTokenAddress string `json:"short_token_address"`

	// Settlement is nil while the instance is still open.
	Settlement *Settlement `json:"settlement,omitempty"`
}

// Settled reports whether the instance has a finalized settlement record.
func (c *MarketContract) Settled() bool {
	return c != nil && c.Settlement != nil
}

// TokenAddress returns the position token address for the given side.
func (c *MarketContract) TokenAddress(side Side) string {
	if side == SideShort {
		return c.ShortTokenAddress
	}
	return c.LongTokenAddress
}

// MintRecord is a raw position-mint record from the event indexer: one
// taker transaction minting qty units against one market instance.
type MintRecord struct {
	MarketID      int64           `json:"market_id"`
	QtyToMint     decimal.Decimal `json:"qty_to_mint"`
	TransactionID string          `json:"transaction_id"`
	Fills         []Fill          `json:"fills"`
}

// PositionStatus is the derived lifecycle state of a position. The
// progression is strictly forward-only.
type PositionStatus string

const (
	StatusActive                    PositionStatus = "active"
	StatusExpiredAwaitingSettlement PositionStatus = "expiredAwaitingSettlement"
	StatusWithdrawalPending         PositionStatus = "withdrawalPending"
	StatusWithdrawn                 PositionStatus = "withdrawn"
)

// statusRank orders statuses along the lifecycle for regression checks.
var statusRank = map[PositionStatus]int{
	StatusActive:                    0,
	StatusExpiredAwaitingSettlement: 1,
	StatusWithdrawalPending:         2,
	StatusWithdrawn:                 3,
}

// Precedes reports whether s comes strictly before other in the lifecycle.
func (s PositionStatus) Precedes(other PositionStatus) bool {
	return statusRank[s] < statusRank[other]
}

// Position is the accounting engine's central derived entity. It exists
// only inside a single accounting pass — recomputed on every refresh from
// the fill/contract feed, never stored.
type Position struct {
	Owner    string          `json:"owner"`
	Side     Side            `json:"side"`
	MarketID int64           `json:"market_id"`
	Symbol   string          `json:"symbol"`
	Qty      decimal.Decimal `json:"qty"`

	// Price is the blended entry price retained from the merged trade,
	// human payment units per contract unit.
	Price decimal.Decimal `json:"price"`

	CollateralPerUnit decimal.Decimal `json:"collateral_per_unit"`
	TokenAddress      string          `json:"token_address"`

	PendingReward decimal.Decimal `json:"pending_reward"`
	FinalReward   decimal.Decimal `json:"final_reward"`

	Status     PositionStatus `json:"status"`
	Redeemable bool           `json:"redeemable"`
}

// BatchRedeemCall is one side's grouped on-chain redemption: parallel
// token/quantity slices, one entry per settlement token.
type BatchRedeemCall struct {
	Side           Side              `json:"side"`
	TokenAddresses []string          `json:"token_addresses"`
	Quantities     []decimal.Decimal `json:"quantities"`
}

// RedemptionPlan is the gas-efficient withdrawal plan for an address:
// at most one batch call per side. Nil calls mean nothing to redeem.
type RedemptionPlan struct {
	LongCall  *BatchRedeemCall `json:"long_call,omitempty"`
	ShortCall *BatchRedeemCall `json:"short_call,omitempty"`
}

// PositionKey identifies a position across refresh passes.
type PositionKey struct {
	Owner    string
	Side     Side
	MarketID int64
}

// Key returns the position's identity for cross-snapshot comparison.
func (p *Position) Key() PositionKey {
	return PositionKey{Owner: p.Owner, Side: p.Side, MarketID: p.MarketID}
}
