// Package exposure enforces position limits that account for correlation
// between daily-issued forward instances.
//
// Consecutive daily instances of the same duration share almost all of
// their delivery days, so a book of offers across a week of instances is
// one bet on the same revenue stream. This package detects overlap via
// the instruments' delivery windows and caps aggregate exposure across
// each overlapping group, alongside a plain per-instance cap.
package exposure

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/hashforward/trading-engine/internal/contract"
)

var (
	// ErrPerInstanceLimitExceeded is returned when a trade would push a
	// single instance's exposure beyond the per-instance maximum.
	ErrPerInstanceLimitExceeded = errors.New("exposure: per-instance limit exceeded")

	// ErrOverlappingLimitExceeded is returned when a trade would push the
	// aggregate exposure across overlapping delivery windows beyond the
	// correlated maximum.
	ErrOverlappingLimitExceeded = errors.New("exposure: overlapping-window limit exceeded")
)

// Limiter enforces exposure limits with delivery-window correlation.
type Limiter struct {
	// MaxPerInstance is the maximum absolute net exposure (contract
	// units) in any single market instance.
	MaxPerInstance decimal.Decimal

	// MaxOverlapping is the maximum aggregate absolute exposure across
	// all instances whose delivery windows intersect the target's.
	MaxOverlapping decimal.Decimal
}

// NewLimiter creates a limiter with the given per-instance and
// overlapping-window limits.
func NewLimiter(maxPerInstance, maxOverlapping decimal.Decimal) *Limiter {
	return &Limiter{
		MaxPerInstance: maxPerInstance,
		MaxOverlapping: maxOverlapping,
	}
}

// Check validates whether a trade respects exposure limits.
//
// existing maps instrument symbol to the address's current net exposure.
// delta is the signed exposure change on the target instrument. Returns
// nil if the trade is within limits.
func (l *Limiter) Check(
	target *contract.Instrument,
	delta decimal.Decimal,
	existing map[string]decimal.Decimal,
) error {
	newPosition := existing[target.Symbol].Add(delta)
	if newPosition.Abs().GreaterThan(l.MaxPerInstance) {
		return ErrPerInstanceLimitExceeded
	}

	totalOverlapping := newPosition.Abs()
	for symbol, exp := range existing {
		if symbol == target.Symbol {
			continue // already counted via newPosition above
		}
		inst, err := contract.ParseSymbol(symbol)
		if err != nil {
			return fmt.Errorf("exposure: bad symbol in exposure map: %w", err)
		}
		if target.Overlaps(inst) {
			totalOverlapping = totalOverlapping.Add(exp.Abs())
		}
	}

	if totalOverlapping.GreaterThan(l.MaxOverlapping) {
		return ErrOverlappingLimitExceeded
	}
	return nil
}
