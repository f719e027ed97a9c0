// Package orderbook fetches maker orders from the relayer and annotates
// them with fields derived from live book state. Read-only; failures are
// surfaced for the caller to retry, never retried here.
package orderbook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hashforward/trading-engine/internal/fixedpoint"
	"github.com/hashforward/trading-engine/internal/model"
	"github.com/hashforward/trading-engine/internal/quote"
)

// ErrUnavailable is returned for network or relayer-side failures. The
// caller treats it as retryable at its own cadence.
var ErrUnavailable = errors.New("orderbook: service unavailable")

// PairFingerprint identifies a trading pair by the protocol's opaque
// asset-data blobs, derived from the fixed contract addresses.
type PairFingerprint struct {
	MakerAssetData string
	TakerAssetData string
}

// Client is a REST client for the relayer's standard API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a relayer client. timeout bounds each request.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// wire types for the relayer's orderbook response.
type orderbookResponse struct {
	Asks recordPage `json:"asks"`
}

type recordPage struct {
	Records []OrderRecord `json:"records"`
}

// OrderRecord is one relayer book entry: the signed order plus live
// metadata about how much of it is still fillable.
type OrderRecord struct {
	Order    model.SignedOrder `json:"order"`
	MetaData OrderMetaData     `json:"metaData"`
}

// OrderMetaData is the relayer's live annotation on a resting order.
type OrderMetaData struct {
	OrderHash                         string          `json:"orderHash"`
	RemainingFillableTakerAssetAmount decimal.Decimal `json:"remainingFillableTakerAssetAmount"`
}

// GetOrderbook fetches the ask side for a pair and returns annotated
// orders in the relayer's (best-price-first) ordering.
func (c *Client) GetOrderbook(ctx context.Context, pair PairFingerprint) ([]model.AnnotatedOrder, error) {
	q := url.Values{}
	q.Set("baseAssetData", pair.MakerAssetData)
	q.Set("quoteAssetData", pair.TakerAssetData)

	var resp orderbookResponse
	if err := c.getJSON(ctx, "/orderbook?"+q.Encode(), &resp); err != nil {
		return nil, err
	}
	return Annotate(resp.Asks.Records)
}

// GetOrders fetches raw orders matching the filter, annotated the same
// way as the book fetch. Used for a maker's own open offers.
func (c *Client) GetOrders(ctx context.Context, filter url.Values) ([]model.AnnotatedOrder, error) {
	var resp recordPage
	if err := c.getJSON(ctx, "/orders?"+filter.Encode(), &resp); err != nil {
		return nil, err
	}
	return Annotate(resp.Records)
}

// SubmitOrder posts a signed maker order to the relayer.
func (c *Client) SubmitOrder(ctx context.Context, order *model.SignedOrder) error {
	body, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("orderbook: encode order: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/order", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("%w: submit order status %d", ErrUnavailable, resp.StatusCode)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", quote.ErrInvalidOrderData, err)
	}
	return nil
}

// Annotate decorates raw relayer records with the derived unit price and
// the remaining fillable maker amount. The remaining maker amount is
// derived from the reported remaining taker amount with the same
// conversion rule the matching engine uses, so the two never disagree.
func Annotate(records []OrderRecord) ([]model.AnnotatedOrder, error) {
	annotated := make([]model.AnnotatedOrder, 0, len(records))
	for _, rec := range records {
		o := rec.Order
		if o.MakerAssetAmount.LessThanOrEqual(decimal.Zero) || o.TakerAssetAmount.LessThanOrEqual(decimal.Zero) {
			return nil, fmt.Errorf("%w: order %s has non-positive asset amounts",
				quote.ErrInvalidOrderData, rec.MetaData.OrderHash)
		}
		remainingTaker := rec.MetaData.RemainingFillableTakerAssetAmount
		if remainingTaker.IsNegative() {
			return nil, fmt.Errorf("%w: order %s has negative remaining taker amount",
				quote.ErrInvalidOrderData, rec.MetaData.OrderHash)
		}

		remainingMaker, err := fixedpoint.MulDivFloor(remainingTaker, o.MakerAssetAmount, o.TakerAssetAmount)
		if err != nil {
			return nil, fmt.Errorf("%w: order %s: %v", quote.ErrInvalidOrderData, rec.MetaData.OrderHash, err)
		}
		price, err := fixedpoint.Ratio(
			o.TakerAssetAmount, fixedpoint.PaymentDecimals,
			o.MakerAssetAmount, fixedpoint.ContractSizeDecimals,
		)
		if err != nil {
			return nil, fmt.Errorf("%w: order %s: %v", quote.ErrInvalidOrderData, rec.MetaData.OrderHash, err)
		}

		annotated = append(annotated, model.AnnotatedOrder{
			Order:                             o,
			Price:                             price,
			RemainingFillableMakerAssetAmount: remainingMaker,
			RemainingFillableTakerAssetAmount: remainingTaker,
		})
	}
	return annotated, nil
}
