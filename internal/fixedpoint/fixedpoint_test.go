package fixedpoint

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func di(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

// --- MulDivFloor / MulDivCeil ---

func TestMulDivFloor_Exact(t *testing.T) {
	got, err := MulDivFloor(di(1000), di(3600), di(1000))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(di(3600)) {
		t.Errorf("expected 3600, got %s", got)
	}
}

func TestMulDivFloor_RoundsDown(t *testing.T) {
	// 1960 * 3600 / 14040 = 502.56... -> 502
	got, err := MulDivFloor(di(1960), di(3600), di(14040))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(di(502)) {
		t.Errorf("expected 502, got %s", got)
	}
}

func TestMulDivFloor_LargeOperands(t *testing.T) {
	// Operands beyond int64 must stay exact: the amounts are
	// arbitrary-precision integers, same as on-chain.
	a, _ := decimal.NewFromString("123456789012345678901234567890")
	got, err := MulDivFloor(a, di(7), di(3))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want, _ := decimal.NewFromString("288065841028806584102880658410")
	if !got.Equal(want) {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestMulDivCeil_RoundsUp(t *testing.T) {
	got, err := MulDivCeil(di(1960), di(3600), di(14040))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(di(503)) {
		t.Errorf("expected 503, got %s", got)
	}
}

func TestMulDivCeil_ExactStaysExact(t *testing.T) {
	got, err := MulDivCeil(di(10), di(4), di(2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(di(20)) {
		t.Errorf("expected 20, got %s", got)
	}
}

func TestMulDiv_ZeroDenominator(t *testing.T) {
	if _, err := MulDivFloor(di(1), di(1), di(0)); !errors.Is(err, ErrDivisionByZero) {
		t.Errorf("expected ErrDivisionByZero, got %v", err)
	}
	if _, err := MulDivCeil(di(1), di(1), di(0)); !errors.Is(err, ErrDivisionByZero) {
		t.Errorf("expected ErrDivisionByZero, got %v", err)
	}
}

// --- Scale conversions ---

func TestBaseUnitsRoundTrip(t *testing.T) {
	human := decimal.RequireFromString("3.6375")
	base := ToBaseUnits(human, PaymentDecimals)
	if !base.Equal(di(3637500)) {
		t.Errorf("expected 3637500 base units, got %s", base)
	}
	back := FromBaseUnits(base, PaymentDecimals)
	if !back.Equal(human) {
		t.Errorf("round trip lost precision: %s != %s", back, human)
	}
}

func TestRescale(t *testing.T) {
	// 6-decimal payment units to 8-decimal collateral shift.
	got := Rescale(di(1_000_000), 6, 8)
	if !got.Equal(di(100_000_000)) {
		t.Errorf("expected 100000000, got %s", got)
	}
	// And back, losslessly.
	back := Rescale(got, 8, 6)
	if !back.Equal(di(1_000_000)) {
		t.Errorf("expected 1000000, got %s", back)
	}
}

func TestRatio_ShiftAdjusted(t *testing.T) {
	// 5820 payment units (6 decimals) over 1600 contract units.
	got, err := Ratio(di(5_820_000_000), PaymentDecimals, di(1600), ContractSizeDecimals)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(decimal.RequireFromString("3.6375")) {
		t.Errorf("expected 3.6375, got %s", got)
	}
}

func TestRatio_ZeroDenominator(t *testing.T) {
	if _, err := Ratio(di(1), 6, di(0), 0); !errors.Is(err, ErrDivisionByZero) {
		t.Errorf("expected ErrDivisionByZero, got %v", err)
	}
}

// --- Amount arithmetic ---

func TestAmount_AddSameShift(t *testing.T) {
	a := NewFromInt(100, PaymentDecimals)
	b := NewFromInt(250, PaymentDecimals)
	sum, err := a.Add(b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !sum.Value.Equal(di(350)) || sum.Decimals != PaymentDecimals {
		t.Errorf("expected 350 @ %d decimals, got %s @ %d", PaymentDecimals, sum.Value, sum.Decimals)
	}
}

func TestAmount_ShiftMismatch(t *testing.T) {
	a := NewFromInt(100, PaymentDecimals)
	b := NewFromInt(100, CollateralDecimals)
	if _, err := a.Add(b); !errors.Is(err, ErrShiftMismatch) {
		t.Errorf("expected ErrShiftMismatch, got %v", err)
	}
	if _, err := a.Sub(b); !errors.Is(err, ErrShiftMismatch) {
		t.Errorf("expected ErrShiftMismatch, got %v", err)
	}
}

func TestAmount_Human(t *testing.T) {
	a := NewFromInt(3_637_500, PaymentDecimals)
	if !a.Human().Equal(decimal.RequireFromString("3.6375")) {
		t.Errorf("expected 3.6375, got %s", a.Human())
	}
}
