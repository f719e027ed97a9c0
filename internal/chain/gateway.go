// Package chain exposes the collateral/settlement contract surface the
// engine depends on. The contracts themselves are an opaque external
// collaborator reached through the dApp's contract-proxy service; this
// package only carries the read/write shapes the core needs.
package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hashforward/trading-engine/internal/model"
)

// ErrUnavailable is returned for transient chain-read failures. Surfaced
// to the caller for retry/backoff, never retried internally.
var ErrUnavailable = errors.New("chain: read unavailable")

// Gateway is the contract surface consumed by the accounting engine and
// the offer/redemption flows. Implementations must not cache redeemability
// inputs: balance and settlement-delay checks are live reads.
type Gateway interface {
	// CalculateRequiredCollateral returns the collateral (base units) a
	// maker must escrow to offer qty contract units on the latest
	// instance.
	CalculateRequiredCollateral(ctx context.Context, qty decimal.Decimal) (decimal.Decimal, error)

	// LatestMarketContract returns the most recently deployed instance.
	LatestMarketContract(ctx context.Context) (*model.MarketContract, error)

	// IsPostSettlementDelay reports whether the instance's settlement
	// dispute window has elapsed.
	IsPostSettlementDelay(ctx context.Context, marketID int64) (bool, error)

	// BalanceOf returns holder's balance of a position token.
	BalanceOf(ctx context.Context, token, holder string) (decimal.Decimal, error)

	// SubmitBatchRedeem submits one side's grouped redemption and returns
	// the transaction id.
	SubmitBatchRedeem(ctx context.Context, call *model.BatchRedeemCall) (string, error)
}

// Client is the REST implementation of Gateway against the contract-proxy
// service.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a contract-proxy client. timeout bounds each request.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

var _ Gateway = (*Client)(nil)

func (c *Client) CalculateRequiredCollateral(ctx context.Context, qty decimal.Decimal) (decimal.Decimal, error) {
	var out struct {
		Collateral decimal.Decimal `json:"collateral"`
	}
	path := fmt.Sprintf("/collateral/required?qty=%s", qty)
	if err := c.getJSON(ctx, path, &out); err != nil {
		return decimal.Decimal{}, err
	}
	return out.Collateral, nil
}

func (c *Client) LatestMarketContract(ctx context.Context) (*model.MarketContract, error) {
	var out model.MarketContract
	if err := c.getJSON(ctx, "/contracts/latest", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) IsPostSettlementDelay(ctx context.Context, marketID int64) (bool, error) {
	var out struct {
		Elapsed bool `json:"elapsed"`
	}
	path := fmt.Sprintf("/contracts/%d/settlement-delay", marketID)
	if err := c.getJSON(ctx, path, &out); err != nil {
		return false, err
	}
	return out.Elapsed, nil
}

func (c *Client) BalanceOf(ctx context.Context, token, holder string) (decimal.Decimal, error) {
	var out struct {
		Balance decimal.Decimal `json:"balance"`
	}
	path := fmt.Sprintf("/tokens/%s/balance/%s", token, holder)
	if err := c.getJSON(ctx, path, &out); err != nil {
		return decimal.Decimal{}, err
	}
	return out.Balance, nil
}

func (c *Client) SubmitBatchRedeem(ctx context.Context, call *model.BatchRedeemCall) (string, error) {
	body, err := json.Marshal(call)
	if err != nil {
		return "", fmt.Errorf("chain: encode batch redeem: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/redeem/batch", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: batch redeem status %d", ErrUnavailable, resp.StatusCode)
	}

	var out struct {
		TransactionID string `json:"transaction_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	return out.TransactionID, nil
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
		return fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	return nil
}
