package quote

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/hashforward/trading-engine/internal/model"
)

func di(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

// bookOrder builds an annotated ask: size contract units at price human
// payment units per unit, with remaining maker units still fillable.
// Taker amounts are payment base units (6 decimals).
func bookOrder(size, remaining int64, price string) model.AnnotatedOrder {
	p := decimal.RequireFromString(price)
	takerAmount := p.Mul(di(size)).Shift(6)
	remainingTaker := p.Mul(di(remaining)).Shift(6)
	return model.AnnotatedOrder{
		Order: model.SignedOrder{
			Maker:            "0xmaker",
			MakerAssetAmount: di(size),
			TakerAssetAmount: takerAmount,
			Salt:             price,
		},
		Price:                             p,
		RemainingFillableMakerAssetAmount: di(remaining),
		RemainingFillableTakerAssetAmount: remainingTaker,
	}
}

// testBook is the reference book: 1000 @ 3.6, 1200 @ 3.7, 3600 @ 3.9
// (USDC per TH), all fully fillable.
func testBook() []model.AnnotatedOrder {
	return []model.AnnotatedOrder{
		bookOrder(1000, 1000, "3.6"),
		bookOrder(1200, 1200, "3.7"),
		bookOrder(3600, 3600, "3.9"),
	}
}

// --- Size mode ---

func TestQuoteForSize_SpansTwoOrders(t *testing.T) {
	result, err := QuoteForSize(testBook(), di(1600))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(result.Fills) != 2 {
		t.Fatalf("expected 2 fills, got %d", len(result.Fills))
	}
	if !result.Fills[0].MakerFillAmount.Equal(di(1000)) {
		t.Errorf("fill 0: expected 1000, got %s", result.Fills[0].MakerFillAmount)
	}
	if !result.Fills[1].MakerFillAmount.Equal(di(600)) {
		t.Errorf("fill 1: expected 600, got %s", result.Fills[1].MakerFillAmount)
	}
	if !result.TotalMakerFillAmount.Equal(di(1600)) {
		t.Errorf("expected totalMaker 1600, got %s", result.TotalMakerFillAmount)
	}
	// 1000*3.6 + 600*3.7 = 5820 USDC, in 6-decimal base units.
	if !result.TotalTakerFillAmount.Equal(di(5_820_000_000)) {
		t.Errorf("expected totalTaker 5820000000, got %s", result.TotalTakerFillAmount)
	}
	if !result.Price.Equal(decimal.RequireFromString("3.6375")) {
		t.Errorf("expected blended price 3.6375, got %s", result.Price)
	}
	if !result.RemainingFillAmount.IsZero() {
		t.Errorf("expected zero remainder, got %s", result.RemainingFillAmount)
	}
}

func TestQuoteForSize_Conservation(t *testing.T) {
	targets := []int64{0, 1, 999, 1000, 1600, 5800, 5801, 10000}
	for _, target := range targets {
		result, err := QuoteForSize(testBook(), di(target))
		if err != nil {
			t.Fatalf("target %d: unexpected error: %v", target, err)
		}
		sum := result.TotalMakerFillAmount.Add(result.RemainingFillAmount)
		if !sum.Equal(di(target)) {
			t.Errorf("target %d: filled %s + remainder %s != target",
				target, result.TotalMakerFillAmount, result.RemainingFillAmount)
		}
	}
}

func TestQuoteForSize_PartialLiquiditySurfaced(t *testing.T) {
	// Book holds 5800 units total.
	result, err := QuoteForSize(testBook(), di(10000))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.TotalMakerFillAmount.Equal(di(5800)) {
		t.Errorf("expected totalMaker 5800, got %s", result.TotalMakerFillAmount)
	}
	if !result.RemainingFillAmount.Equal(di(4200)) {
		t.Errorf("expected remainder 4200, got %s", result.RemainingFillAmount)
	}
}

func TestQuoteForSize_FillsNeverExceedRemaining(t *testing.T) {
	book := []model.AnnotatedOrder{
		bookOrder(1000, 400, "3.6"), // partially filled already
		bookOrder(1200, 1200, "3.7"),
	}
	result, err := QuoteForSize(book, di(1000))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, f := range result.Fills {
		if f.MakerFillAmount.GreaterThan(book[i].RemainingFillableMakerAssetAmount) {
			t.Errorf("fill %d exceeds remaining fillable: %s > %s",
				i, f.MakerFillAmount, book[i].RemainingFillableMakerAssetAmount)
		}
	}
	if !result.Fills[0].MakerFillAmount.Equal(di(400)) {
		t.Errorf("expected 400 from the partially filled order, got %s", result.Fills[0].MakerFillAmount)
	}
}

func TestQuoteForSize_EmptyBook(t *testing.T) {
	result, err := QuoteForSize(nil, di(500))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Fills) != 0 {
		t.Errorf("expected no fills, got %d", len(result.Fills))
	}
	if !result.RemainingFillAmount.Equal(di(500)) {
		t.Errorf("expected full remainder 500, got %s", result.RemainingFillAmount)
	}
	if !result.Price.IsZero() {
		t.Errorf("expected zero price, got %s", result.Price)
	}
}

func TestQuoteForSize_ZeroTarget(t *testing.T) {
	result, err := QuoteForSize(testBook(), decimal.Zero)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Fills) != 0 || !result.RemainingFillAmount.IsZero() {
		t.Errorf("zero target should be a no-op, got %d fills remainder %s",
			len(result.Fills), result.RemainingFillAmount)
	}
}

func TestQuoteForSize_SkipsExhaustedOrders(t *testing.T) {
	book := []model.AnnotatedOrder{
		bookOrder(1000, 0, "3.6"), // fully filled, must be skipped
		bookOrder(1200, 1200, "3.7"),
	}
	result, err := QuoteForSize(book, di(100))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Fills) != 1 {
		t.Fatalf("expected 1 fill, got %d", len(result.Fills))
	}
	if !result.Fills[0].Order.TakerAssetAmount.Equal(book[1].Order.TakerAssetAmount) {
		t.Error("fill should come from the second order")
	}
}

func TestQuoteForSize_InvalidOrderData(t *testing.T) {
	book := []model.AnnotatedOrder{
		{
			Order: model.SignedOrder{
				MakerAssetAmount: decimal.Zero,
				TakerAssetAmount: di(3600),
			},
			RemainingFillableMakerAssetAmount: di(1000),
		},
	}
	if _, err := QuoteForSize(book, di(100)); !errors.Is(err, ErrInvalidOrderData) {
		t.Errorf("expected ErrInvalidOrderData, got %v", err)
	}
}

func TestQuoteForSize_NegativeTarget(t *testing.T) {
	if _, err := QuoteForSize(testBook(), di(-1)); !errors.Is(err, ErrNegativeTarget) {
		t.Errorf("expected ErrNegativeTarget, got %v", err)
	}
}

// --- Budget mode ---

func TestQuoteForBudget_ReferenceScenario(t *testing.T) {
	// 10000 USDC budget against the reference book.
	result, err := QuoteForBudget(testBook(), di(10_000_000_000))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(result.Fills) != 3 {
		t.Fatalf("expected 3 fills, got %d", len(result.Fills))
	}
	wantMaker := []int64{1000, 1200, 502}
	for i, want := range wantMaker {
		if !result.Fills[i].MakerFillAmount.Equal(di(want)) {
			t.Errorf("fill %d: expected maker %d, got %s", i, want, result.Fills[i].MakerFillAmount)
		}
	}
	if !result.TotalMakerFillAmount.Equal(di(2702)) {
		t.Errorf("expected totalMaker 2702, got %s", result.TotalMakerFillAmount)
	}
	// 3600 + 4440 + 1957.8 = 9997.8 USDC.
	if !result.TotalTakerFillAmount.Equal(di(9_997_800_000)) {
		t.Errorf("expected totalTaker 9997800000, got %s", result.TotalTakerFillAmount)
	}
	if !result.RemainingFillAmount.IsZero() {
		t.Errorf("expected zero remainder, got %s", result.RemainingFillAmount)
	}
	// Blended price 9997.8/2702 ≈ 3.7001.
	want := decimal.RequireFromString("3.7001")
	if result.Price.Sub(want).Abs().GreaterThan(decimal.RequireFromString("0.0001")) {
		t.Errorf("expected blended price ≈ 3.7001, got %s", result.Price)
	}
}

func TestQuoteForBudget_RoundTripNeverExceedsOriginal(t *testing.T) {
	// Awkward ratios that force rounding on every order.
	book := []model.AnnotatedOrder{
		bookOrder(7, 7, "3.333333"),
		bookOrder(13, 13, "3.777777"),
		bookOrder(29, 29, "3.999999"),
	}
	budgets := []int64{1_000_000, 10_000_000, 55_555_555, 100_000_000}
	for _, b := range budgets {
		result, err := QuoteForBudget(book, di(b))
		if err != nil {
			t.Fatalf("budget %d: unexpected error: %v", b, err)
		}
		for i, f := range result.Fills {
			// Re-deriving taker-from-maker must reproduce the plan's
			// own taker amount: the plan is internally consistent.
			rederived, _ := f.MakerFillAmount.Mul(f.Order.TakerAssetAmount).QuoRem(f.Order.MakerAssetAmount, 0)
			if !rederived.Equal(f.TakerFillAmount) {
				t.Errorf("budget %d fill %d: plan not self-consistent: %s != %s",
					b, i, rederived, f.TakerFillAmount)
			}
		}
		// And the total never exceeds the budget.
		if result.TotalTakerFillAmount.GreaterThan(di(b)) {
			t.Errorf("budget %d: plan spends %s", b, result.TotalTakerFillAmount)
		}
	}
}

func TestQuoteForBudget_BookExhausted(t *testing.T) {
	// Book worth 3600+4440+14040 = 22080 USDC; budget is larger.
	result, err := QuoteForBudget(testBook(), di(30_000_000_000))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.TotalMakerFillAmount.Equal(di(5800)) {
		t.Errorf("expected totalMaker 5800, got %s", result.TotalMakerFillAmount)
	}
	// 30000 - 22080 = 7920 USDC unspendable.
	if !result.RemainingFillAmount.Equal(di(7_920_000_000)) {
		t.Errorf("expected remainder 7920000000, got %s", result.RemainingFillAmount)
	}
}

func TestQuoteForBudget_ZeroBudget(t *testing.T) {
	result, err := QuoteForBudget(testBook(), decimal.Zero)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Fills) != 0 || !result.RemainingFillAmount.IsZero() {
		t.Errorf("zero budget should be a no-op, got %d fills remainder %s",
			len(result.Fills), result.RemainingFillAmount)
	}
}

func TestQuoteForBudget_DustBelowOneUnit(t *testing.T) {
	// 2 USDC cannot buy a whole unit at 3.6; that is not missing
	// liquidity, so the remainder reports zero.
	result, err := QuoteForBudget(testBook(), di(2_000_000))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Fills) != 0 {
		t.Fatalf("expected no fills, got %d", len(result.Fills))
	}
	if !result.RemainingFillAmount.IsZero() {
		t.Errorf("expected zero remainder for sub-unit dust, got %s", result.RemainingFillAmount)
	}
}
