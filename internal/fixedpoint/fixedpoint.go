// Package fixedpoint defines the amount model shared by every other
// component: arbitrary-precision decimal integers in on-chain base units,
// paired with a per-asset-class decimal shift.
//
// All monetary values use shopspring/decimal — never float64 for money.
// Arithmetic between two amounts of the same asset class must occur at the
// same shift; conversion to a human-readable value is a pure, lossless
// scale operation.
package fixedpoint

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Decimal shifts per asset class. Payment amounts (USDC) carry six
// decimals on-chain; collateral (imBTC) carries eight; contract size is
// denominated in whole TH of hashpower.
const (
	PaymentDecimals      int32 = 6
	CollateralDecimals   int32 = 8
	ContractSizeDecimals int32 = 0
)

var (
	// ErrDivisionByZero is returned when a conversion ratio has a zero
	// denominator (an order with makerAssetAmount == 0, for example).
	ErrDivisionByZero = errors.New("fixedpoint: division by zero")

	// ErrShiftMismatch is returned when combining two amounts whose
	// decimal shifts differ.
	ErrShiftMismatch = errors.New("fixedpoint: decimal shift mismatch")
)

// Amount is a base-unit quantity plus its decimal shift. The zero value is
// a zero amount with shift 0.
type Amount struct {
	Value    decimal.Decimal
	Decimals int32
}

// New creates an Amount from base units.
func New(value decimal.Decimal, decimals int32) Amount {
	return Amount{Value: value, Decimals: decimals}
}

// NewFromInt creates an Amount from an int64 count of base units.
func NewFromInt(value int64, decimals int32) Amount {
	return Amount{Value: decimal.NewFromInt(value), Decimals: decimals}
}

// Add returns a + b. Both operands must share the same shift.
func (a Amount) Add(b Amount) (Amount, error) {
	if a.Decimals != b.Decimals {
		return Amount{}, fmt.Errorf("%w: %d vs %d", ErrShiftMismatch, a.Decimals, b.Decimals)
	}
	return Amount{Value: a.Value.Add(b.Value), Decimals: a.Decimals}, nil
}

// Sub returns a - b. Both operands must share the same shift.
func (a Amount) Sub(b Amount) (Amount, error) {
	if a.Decimals != b.Decimals {
		return Amount{}, fmt.Errorf("%w: %d vs %d", ErrShiftMismatch, a.Decimals, b.Decimals)
	}
	return Amount{Value: a.Value.Sub(b.Value), Decimals: a.Decimals}, nil
}

// Human returns the human-readable value (base units shifted down).
func (a Amount) Human() decimal.Decimal {
	return FromBaseUnits(a.Value, a.Decimals)
}

// IsZero reports whether the amount is zero.
func (a Amount) IsZero() bool {
	return a.Value.IsZero()
}

// ToBaseUnits converts a human-readable value to base units at the given
// shift: human * 10^decimals.
func ToBaseUnits(human decimal.Decimal, decimals int32) decimal.Decimal {
	return human.Shift(decimals)
}

// FromBaseUnits converts base units to a human-readable value: lossless,
// base / 10^decimals.
func FromBaseUnits(base decimal.Decimal, decimals int32) decimal.Decimal {
	return base.Shift(-decimals)
}

// MulDivFloor computes floor(a * num / den) exactly. This is the
// protocol's fill-amount conversion rule and must match the on-chain
// rounding bit-for-bit: multiply first, divide once, round toward zero.
// All inputs are expected non-negative.
func MulDivFloor(a, num, den decimal.Decimal) (decimal.Decimal, error) {
	if den.IsZero() {
		return decimal.Decimal{}, ErrDivisionByZero
	}
	q, _ := a.Mul(num).QuoRem(den, 0)
	return q, nil
}

// MulDivCeil computes ceil(a * num / den) exactly. Used where the protocol
// rounds in the maker's favor. All inputs are expected non-negative.
func MulDivCeil(a, num, den decimal.Decimal) (decimal.Decimal, error) {
	if den.IsZero() {
		return decimal.Decimal{}, ErrDivisionByZero
	}
	q, r := a.Mul(num).QuoRem(den, 0)
	if !r.IsZero() {
		q = q.Add(decimal.NewFromInt(1))
	}
	return q, nil
}

// Rescale moves a base-unit value between decimal shifts. Pure and
// lossless: the decimal representation keeps fractional base units rather
// than rounding.
func Rescale(v decimal.Decimal, fromDecimals, toDecimals int32) decimal.Decimal {
	return v.Shift(toDecimals - fromDecimals)
}

// Ratio computes a/b shifted so the result reads in human units when a and
// b carry different asset decimals: (a/b) * 10^(aDecimals-bDecimals)
// inverted, i.e. the unit price of one whole b-asset in whole a-assets.
func Ratio(a decimal.Decimal, aDecimals int32, b decimal.Decimal, bDecimals int32) (decimal.Decimal, error) {
	if b.IsZero() {
		return decimal.Decimal{}, ErrDivisionByZero
	}
	return FromBaseUnits(a, aDecimals).Div(FromBaseUnits(b, bDecimals)), nil
}
