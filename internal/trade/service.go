// Package trade provides the HTTP handlers and orchestration for quoting,
// maker offers, position refreshes, and batch redemption.
//
// All monetary values use shopspring/decimal — never float64 for money.
package trade

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hashforward/trading-engine/internal/accounting"
	"github.com/hashforward/trading-engine/internal/chain"
	"github.com/hashforward/trading-engine/internal/contract"
	"github.com/hashforward/trading-engine/internal/exposure"
	"github.com/hashforward/trading-engine/internal/fixedpoint"
	"github.com/hashforward/trading-engine/internal/metrics"
	"github.com/hashforward/trading-engine/internal/model"
	"github.com/hashforward/trading-engine/internal/orderbook"
	"github.com/hashforward/trading-engine/internal/quote"
	"github.com/hashforward/trading-engine/internal/redeem"
	"github.com/hashforward/trading-engine/internal/store"
)

// Book is the slice of the relayer client the service consumes.
type Book interface {
	GetOrderbook(ctx context.Context, pair orderbook.PairFingerprint) ([]model.AnnotatedOrder, error)
	SubmitOrder(ctx context.Context, order *model.SignedOrder) error
}

// Service wires the matching and accounting engines to their
// collaborators. All handles are injected at construction — no ambient
// singletons; each request computes over a fresh snapshot.
type Service struct {
	book    Book
	pair    orderbook.PairFingerprint
	gateway chain.Gateway
	source  store.Source
	engine  *accounting.Engine
	limiter *exposure.Limiter
	wsHub   *WSHub // optional, nil disables broadcasts

	// lastStatuses remembers the previous refresh's status per position
	// so backward transitions can be surfaced as data-integrity errors.
	mu           sync.Mutex
	lastStatuses map[string]map[model.PositionKey]model.PositionStatus
}

// NewService creates the trade service. Pass nil for hub if WebSocket
// broadcasting is not needed.
func NewService(
	book Book,
	pair orderbook.PairFingerprint,
	gateway chain.Gateway,
	source store.Source,
	limiter *exposure.Limiter,
	hub *WSHub,
) *Service {
	return &Service{
		book:         book,
		pair:         pair,
		gateway:      gateway,
		source:       source,
		engine:       accounting.NewEngine(gateway),
		limiter:      limiter,
		wsHub:        hub,
		lastStatuses: make(map[string]map[model.PositionKey]model.PositionStatus),
	}
}

// --- Request/Response types ---

// QuoteRequest is the JSON body for POST /quotes.
type QuoteRequest struct {
	// Mode is "size" (fixed contract quantity) or "budget" (fixed
	// payment spend).
	Mode string `json:"mode"`

	// Amount is contract units for size mode, payment base units for
	// budget mode.
	Amount decimal.Decimal `json:"amount"`
}

// OfferRequest is the JSON body for POST /offers: a miner preparing a
// short offer on the latest instance.
type OfferRequest struct {
	Maker string `json:"maker"`

	// Qty is the offered size in contract units.
	Qty decimal.Decimal `json:"qty"`

	// Price is the asking unit price in human payment units.
	Price decimal.Decimal `json:"price"`

	// DurationSec bounds the order's validity; 0 means 24h.
	DurationSec int64 `json:"duration_sec"`
}

// OfferResponse returns the prepared (unsigned) order and the collateral
// the maker must escrow before signing. Signing happens in the wallet,
// outside this service.
type OfferResponse struct {
	Order              model.SignedOrder `json:"order"`
	RequiredCollateral decimal.Decimal   `json:"required_collateral"`
	Symbol             string            `json:"symbol"`
}

// PositionsResponse is the JSON body for GET /positions/{address}.
type PositionsResponse struct {
	Address string           `json:"address"`
	Long    []model.Position `json:"long"`
	Short   []model.Position `json:"short"`

	// Orphans reports data-consistency gaps: mints excluded because no
	// deployed contract matched their market id.
	Orphans []string `json:"orphans,omitempty"`

	// Warning carries a status-regression report when the snapshot
	// disagrees with the previous one.
	Warning string `json:"warning,omitempty"`
}

// RedeemResponse is the JSON body for POST /redeem/{address}.
type RedeemResponse struct {
	LongTransactionID  string `json:"long_transaction_id,omitempty"`
	ShortTransactionID string `json:"short_transaction_id,omitempty"`
}

// --- HTTP Handlers ---

// GetOrderbook handles GET /api/v1/orderbook
func (s *Service) GetOrderbook(w http.ResponseWriter, r *http.Request) {
	orders, err := s.book.GetOrderbook(r.Context(), s.pair)
	if err != nil {
		metrics.OrderbookErrors.Inc()
		status := http.StatusBadGateway
		if errors.Is(err, quote.ErrInvalidOrderData) {
			status = http.StatusUnprocessableEntity
		}
		writeError(w, err.Error(), status)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

// CreateQuote handles POST /api/v1/quotes
// Computes a fill plan over a fresh book snapshot. Partial liquidity is a
// result state (nonzero remaining_fill_amount), not an error.
func (s *Service) CreateQuote(w http.ResponseWriter, r *http.Request) {
	var req QuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Mode != "size" && req.Mode != "budget" {
		writeError(w, "mode must be size or budget", http.StatusBadRequest)
		return
	}
	if req.Amount.IsNegative() {
		writeError(w, "amount must not be negative", http.StatusBadRequest)
		return
	}

	orders, err := s.book.GetOrderbook(r.Context(), s.pair)
	if err != nil {
		metrics.OrderbookErrors.Inc()
		writeError(w, err.Error(), http.StatusBadGateway)
		return
	}

	start := time.Now()
	var result *model.QuoteResult
	if req.Mode == "size" {
		result, err = quote.QuoteForSize(orders, req.Amount)
	} else {
		result, err = quote.QuoteForBudget(orders, req.Amount)
	}
	metrics.QuoteLatency.WithLabelValues(req.Mode).Observe(time.Since(start).Seconds())

	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, quote.ErrInvalidOrderData) || errors.Is(err, quote.ErrNegativeTarget) {
			status = http.StatusUnprocessableEntity
		}
		writeError(w, err.Error(), status)
		return
	}

	metrics.QuotesTotal.WithLabelValues(req.Mode).Inc()
	if result.RemainingFillAmount.GreaterThan(decimal.Zero) {
		metrics.PartialLiquidityQuotes.Inc()
	}

	slog.Info("quote computed",
		"id", result.ID,
		"mode", req.Mode,
		"amount", req.Amount.String(),
		"filled_maker", result.TotalMakerFillAmount.String(),
		"price", result.Price.String(),
		"remaining", result.RemainingFillAmount.String(),
	)
	writeJSON(w, http.StatusOK, result)
}

// CreateOffer handles POST /api/v1/offers
// Prepares an unsigned maker order on the latest instance and reports the
// collateral requirement. The exposure limiter runs before anything else.
func (s *Service) CreateOffer(w http.ResponseWriter, r *http.Request) {
	var req OfferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Maker == "" {
		writeError(w, "maker is required", http.StatusBadRequest)
		return
	}
	if req.Qty.LessThanOrEqual(decimal.Zero) || req.Price.LessThanOrEqual(decimal.Zero) {
		writeError(w, "qty and price must be positive", http.StatusBadRequest)
		return
	}

	ctx := r.Context()

	latest, err := s.gateway.LatestMarketContract(ctx)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadGateway)
		return
	}
	inst, err := contract.ParseSymbol(latest.Symbol)
	if err != nil {
		writeError(w, "latest instance has invalid symbol: "+err.Error(), http.StatusInternalServerError)
		return
	}

	// A short offer reduces net exposure by qty.
	exposures, err := s.netExposures(ctx, req.Maker)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadGateway)
		return
	}
	if err := s.limiter.Check(inst, req.Qty.Neg(), exposures); err != nil {
		metrics.ExposureRejections.Inc()
		writeError(w, err.Error(), http.StatusConflict)
		return
	}

	collateral, err := s.gateway.CalculateRequiredCollateral(ctx, req.Qty)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadGateway)
		return
	}

	duration := time.Duration(req.DurationSec) * time.Second
	if duration <= 0 {
		duration = 24 * time.Hour
	}

	order := model.SignedOrder{
		Maker:            req.Maker,
		MakerAssetAmount: req.Qty,
		TakerAssetAmount: fixedpoint.ToBaseUnits(req.Qty.Mul(req.Price), fixedpoint.PaymentDecimals),
		MakerAssetData:   s.pair.MakerAssetData,
		TakerAssetData:   s.pair.TakerAssetData,
		ExpirationTime:   time.Now().Add(duration).Unix(),
		Salt:             uuid.New().String(),
	}

	slog.Info("offer prepared",
		"maker", req.Maker,
		"symbol", latest.Symbol,
		"qty", req.Qty.String(),
		"price", req.Price.String(),
		"collateral", collateral.String(),
	)
	writeJSON(w, http.StatusOK, OfferResponse{
		Order:              order,
		RequiredCollateral: collateral,
		Symbol:             latest.Symbol,
	})
}

// SubmitOrder handles POST /api/v1/orders
// Forwards a wallet-signed order to the relayer.
func (s *Service) SubmitOrder(w http.ResponseWriter, r *http.Request) {
	var order model.SignedOrder
	if err := json.NewDecoder(r.Body).Decode(&order); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if order.Signature == "" {
		writeError(w, "order must be signed", http.StatusBadRequest)
		return
	}
	if err := s.book.SubmitOrder(r.Context(), &order); err != nil {
		writeError(w, err.Error(), http.StatusBadGateway)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// GetPositions handles GET /api/v1/positions/{address}
// Runs a full accounting pass over a fresh snapshot.
func (s *Service) GetPositions(w http.ResponseWriter, r *http.Request) {
	address := chi.URLParam(r, "address")

	resp, err := s.Refresh(r.Context(), address)
	if err != nil {
		metrics.RefreshesTotal.WithLabelValues("error").Inc()
		writeError(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetRedemptionPlan handles GET /api/v1/positions/{address}/redemption-plan
func (s *Service) GetRedemptionPlan(w http.ResponseWriter, r *http.Request) {
	address := chi.URLParam(r, "address")

	resp, err := s.Refresh(r.Context(), address)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadGateway)
		return
	}
	plan := redeemPlan(resp)
	writeJSON(w, http.StatusOK, plan)
}

// Redeem handles POST /api/v1/redeem/{address}
// Plans and submits the address's batch redemptions.
func (s *Service) Redeem(w http.ResponseWriter, r *http.Request) {
	address := chi.URLParam(r, "address")
	ctx := r.Context()

	resp, err := s.Refresh(ctx, address)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadGateway)
		return
	}
	plan := redeemPlan(resp)

	var out RedeemResponse
	if plan.LongCall != nil {
		txID, err := s.gateway.SubmitBatchRedeem(ctx, plan.LongCall)
		if err != nil {
			writeError(w, err.Error(), http.StatusBadGateway)
			return
		}
		out.LongTransactionID = txID
	}
	if plan.ShortCall != nil {
		txID, err := s.gateway.SubmitBatchRedeem(ctx, plan.ShortCall)
		if err != nil {
			writeError(w, err.Error(), http.StatusBadGateway)
			return
		}
		out.ShortTransactionID = txID
	}

	if plan.LongCall == nil && plan.ShortCall == nil {
		writeError(w, "nothing redeemable", http.StatusConflict)
		return
	}

	slog.Info("batch redemption submitted",
		"address", address,
		"long_tx", out.LongTransactionID,
		"short_tx", out.ShortTransactionID,
	)
	writeJSON(w, http.StatusOK, out)
}

// --- Core refresh pass ---

// Refresh fetches mint records and the contract series within one pass
// and recomputes the address's positions. The previous pass's statuses
// are compared for regressions, which are surfaced as a warning, counted,
// and logged — never silently reordered.
func (s *Service) Refresh(ctx context.Context, address string) (*PositionsResponse, error) {
	long, short, err := s.source.MintRecords(ctx, address)
	if err != nil {
		return nil, err
	}
	contracts, err := s.source.Contracts(ctx)
	if err != nil {
		return nil, err
	}

	result, err := s.engine.ComputePositions(ctx, address, long, short, contracts)
	if err != nil {
		return nil, err
	}

	resp := &PositionsResponse{
		Address: address,
		Long:    result.Long,
		Short:   result.Short,
	}
	if resp.Long == nil {
		resp.Long = []model.Position{}
	}
	if resp.Short == nil {
		resp.Short = []model.Position{}
	}

	for _, orphan := range result.Orphans {
		metrics.OrphanedFills.Inc()
		slog.Error("orphaned fill excluded", "err", orphan.Error())
		resp.Orphans = append(resp.Orphans, orphan.Error())
	}

	s.mu.Lock()
	prev := s.lastStatuses[address]
	if err := accounting.CheckMonotonic(prev, result); err != nil {
		metrics.StatusRegressions.Inc()
		slog.Error("status regression detected", "address", address, "err", err)
		resp.Warning = err.Error()
	}
	s.lastStatuses[address] = result.Statuses()
	s.mu.Unlock()

	metrics.RefreshesTotal.WithLabelValues("ok").Inc()
	return resp, nil
}

// netExposures aggregates the address's current net position per
// instrument symbol (long positive, short negative) for limit checks.
func (s *Service) netExposures(ctx context.Context, address string) (map[string]decimal.Decimal, error) {
	resp, err := s.Refresh(ctx, address)
	if err != nil {
		return nil, err
	}
	out := make(map[string]decimal.Decimal)
	for _, p := range resp.Long {
		out[p.Symbol] = out[p.Symbol].Add(p.Qty)
	}
	for _, p := range resp.Short {
		out[p.Symbol] = out[p.Symbol].Sub(p.Qty)
	}
	return out, nil
}

func redeemPlan(resp *PositionsResponse) *model.RedemptionPlan {
	all := make([]model.Position, 0, len(resp.Long)+len(resp.Short))
	all = append(all, resp.Long...)
	all = append(all, resp.Short...)
	return redeem.Plan(all)
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, msg string, status int) {
	writeJSON(w, status, map[string]string{"error": msg})
}
