// Package quote implements the greedy order-matching engine: given the
// annotated ask list for a pair, it builds a fill plan for a fixed
// contract quantity or a fixed payment budget.
//
// Both entry points are pure functions over already-fetched snapshots.
// Orders are consumed in the order supplied by the book, which the relayer
// sorts best-price-first. Fill-amount conversions use the protocol's
// multiply-then-floor rule so the plan settles bit-for-bit on-chain.
package quote

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hashforward/trading-engine/internal/fixedpoint"
	"github.com/hashforward/trading-engine/internal/model"
)

var (
	// ErrInvalidOrderData is returned when an order in the book carries
	// malformed amounts. Aborts the quote; the rest of the book is not
	// trusted either.
	ErrInvalidOrderData = errors.New("quote: invalid order data")

	// ErrRoundingInvariant is returned when re-deriving the taker amount
	// from the rounded maker amount produces more than the originally
	// computed taker amount. Upstream rounding helpers are supposed to
	// make this impossible; treat a violation as a hard error rather than
	// ship a plan that settles in the book's favor.
	ErrRoundingInvariant = errors.New("quote: budget rounding invariant violated")

	// ErrNegativeTarget is returned for a negative size or budget.
	ErrNegativeTarget = errors.New("quote: target must not be negative")
)

// QuoteForSize builds a plan filling targetSize contract units (base
// units) against the annotated asks. A nonzero RemainingFillAmount in the
// result means the book lacked liquidity; that is surfaced, never dropped.
func QuoteForSize(orders []model.AnnotatedOrder, targetSize decimal.Decimal) (*model.QuoteResult, error) {
	if targetSize.IsNegative() {
		return nil, ErrNegativeTarget
	}

	result := newResult()
	remaining := targetSize

	for i := range orders {
		if remaining.IsZero() {
			break
		}
		o := &orders[i]
		if err := validateOrder(o); err != nil {
			return nil, err
		}
		if o.RemainingFillableMakerAssetAmount.IsZero() {
			continue
		}

		fill := decimal.Min(o.RemainingFillableMakerAssetAmount, remaining)
		takerFill, err := fixedpoint.MulDivFloor(fill, o.Order.TakerAssetAmount, o.Order.MakerAssetAmount)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidOrderData, err)
		}

		result.Fills = append(result.Fills, model.OrderFill{
			Order:           o.Order,
			MakerFillAmount: fill,
			TakerFillAmount: takerFill,
		})
		result.TotalMakerFillAmount = result.TotalMakerFillAmount.Add(fill)
		result.TotalTakerFillAmount = result.TotalTakerFillAmount.Add(takerFill)
		remaining = remaining.Sub(fill)
	}

	result.RemainingFillAmount = remaining
	result.Price = blendedPrice(result.TotalTakerFillAmount, result.TotalMakerFillAmount)
	return result, nil
}

// QuoteForBudget builds a plan spending at most budget payment base units.
// The loop consumes the taker (payment) side first, derives the maker
// amount by flooring the inverse ratio, then re-derives the taker amount
// from the rounded maker amount so the submitted plan is internally
// consistent. RemainingFillAmount reports unspendable budget only when the
// book ran out; sub-unit dust left by flooring is not missing liquidity.
func QuoteForBudget(orders []model.AnnotatedOrder, budget decimal.Decimal) (*model.QuoteResult, error) {
	if budget.IsNegative() {
		return nil, ErrNegativeTarget
	}

	result := newResult()
	remaining := budget
	budgetExhausted := budget.IsZero()

	for i := range orders {
		if remaining.IsZero() {
			break
		}
		o := &orders[i]
		if err := validateOrder(o); err != nil {
			return nil, err
		}
		if o.RemainingFillableTakerAssetAmount.IsZero() {
			continue
		}

		takerFill := decimal.Min(o.RemainingFillableTakerAssetAmount, remaining)
		if takerFill.Equal(remaining) {
			budgetExhausted = true
		}

		makerFill, err := fixedpoint.MulDivFloor(takerFill, o.Order.MakerAssetAmount, o.Order.TakerAssetAmount)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidOrderData, err)
		}
		if makerFill.IsZero() {
			// Budget left is worth less than one whole contract unit at
			// this order's price. Later orders are priced worse, so stop.
			break
		}

		rederived, err := fixedpoint.MulDivFloor(makerFill, o.Order.TakerAssetAmount, o.Order.MakerAssetAmount)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidOrderData, err)
		}
		if rederived.GreaterThan(takerFill) {
			return nil, fmt.Errorf("%w: order %s: %s > %s",
				ErrRoundingInvariant, o.Order.Salt, rederived, takerFill)
		}

		result.Fills = append(result.Fills, model.OrderFill{
			Order:           o.Order,
			MakerFillAmount: makerFill,
			TakerFillAmount: rederived,
		})
		result.TotalMakerFillAmount = result.TotalMakerFillAmount.Add(makerFill)
		result.TotalTakerFillAmount = result.TotalTakerFillAmount.Add(rederived)
		remaining = remaining.Sub(takerFill)
	}

	if budgetExhausted {
		result.RemainingFillAmount = decimal.Zero
	} else {
		result.RemainingFillAmount = remaining
	}
	result.Price = blendedPrice(result.TotalTakerFillAmount, result.TotalMakerFillAmount)
	return result, nil
}

func newResult() *model.QuoteResult {
	return &model.QuoteResult{
		ID:                   uuid.New().String(),
		TotalMakerFillAmount: decimal.Zero,
		TotalTakerFillAmount: decimal.Zero,
		Price:                decimal.Zero,
		RemainingFillAmount:  decimal.Zero,
	}
}

// blendedPrice is totalTaker/totalMaker expressed in human payment units
// per whole contract unit. Zero fills price as zero, not a division error.
func blendedPrice(totalTaker, totalMaker decimal.Decimal) decimal.Decimal {
	if totalMaker.IsZero() {
		return decimal.Zero
	}
	price, _ := fixedpoint.Ratio(
		totalTaker, fixedpoint.PaymentDecimals,
		totalMaker, fixedpoint.ContractSizeDecimals,
	)
	return price
}

// validateOrder rejects orders whose amounts cannot participate in fill
// conversion without dividing by zero or producing negative fills.
func validateOrder(o *model.AnnotatedOrder) error {
	switch {
	case o.Order.MakerAssetAmount.LessThanOrEqual(decimal.Zero):
		return fmt.Errorf("%w: non-positive makerAssetAmount %s", ErrInvalidOrderData, o.Order.MakerAssetAmount)
	case o.Order.TakerAssetAmount.LessThanOrEqual(decimal.Zero):
		return fmt.Errorf("%w: non-positive takerAssetAmount %s", ErrInvalidOrderData, o.Order.TakerAssetAmount)
	case o.RemainingFillableMakerAssetAmount.IsNegative():
		return fmt.Errorf("%w: negative remaining maker amount", ErrInvalidOrderData)
	case o.RemainingFillableTakerAssetAmount.IsNegative():
		return fmt.Errorf("%w: negative remaining taker amount", ErrInvalidOrderData)
	}
	return nil
}
