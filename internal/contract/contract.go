// Package contract handles mining-revenue forward instrument symbol
// parsing, validation, and delivery-window math.
package contract

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/shopspring/decimal"
)

// Supported underlying assets.
const (
	AssetBTC = "BTC"
	AssetBCH = "BCH"
)

var validAssets = map[string]bool{
	AssetBTC: true,
	AssetBCH: true,
}

// symbolRegex matches: MRI-{asset}-{days}D-{YYYYMMDD}
// Example: MRI-BTC-28D-20200501
var symbolRegex = regexp.MustCompile(
	`^MRI-([A-Z]+)-(\d+)D-(\d{8})$`,
)

var (
	ErrInvalidSymbol = errors.New("contract: invalid instrument symbol")
	ErrInvalidAsset  = errors.New("contract: unsupported underlying asset")
)

// Instrument represents a parsed forward instrument.
type Instrument struct {
	Symbol       string    `json:"symbol"`
	Asset        string    `json:"asset"`
	DurationDays int       `json:"duration_days"`
	IssueDate    time.Time `json:"issue_date"`
}

// ParseSymbol parses and validates an instrument symbol.
// Format: MRI-{asset}-{days}D-{YYYYMMDD}
func ParseSymbol(symbol string) (*Instrument, error) {
	matches := symbolRegex.FindStringSubmatch(symbol)
	if matches == nil {
		return nil, fmt.Errorf("%w: %s (expected MRI-{asset}-{days}D-{YYYYMMDD})",
			ErrInvalidSymbol, symbol)
	}

	asset := matches[1]
	if !validAssets[asset] {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAsset, asset)
	}

	var days int
	if _, err := fmt.Sscanf(matches[2], "%d", &days); err != nil || days <= 0 {
		return nil, fmt.Errorf("%w: bad duration %s", ErrInvalidSymbol, matches[2])
	}

	issue, err := time.Parse("20060102", matches[3])
	if err != nil {
		return nil, fmt.Errorf("%w: invalid date %s", ErrInvalidSymbol, matches[3])
	}

	return &Instrument{
		Symbol:       symbol,
		Asset:        asset,
		DurationDays: days,
		IssueDate:    issue,
	}, nil
}

// Expiry returns the end of the instrument's delivery window.
func (i *Instrument) Expiry() time.Time {
	return i.IssueDate.AddDate(0, 0, i.DurationDays)
}

// Overlaps reports whether two instruments' delivery windows intersect.
// Daily-issued instances of the same duration overlap on almost every
// delivery day, which is why exposure across them is treated as
// correlated.
func (i *Instrument) Overlaps(other *Instrument) bool {
	if other == nil {
		return false
	}
	return i.IssueDate.Before(other.Expiry()) && other.IssueDate.Before(i.Expiry())
}

// RequiredCollateral returns the collateral a maker must escrow for qty
// contract units at the instance's per-unit cap. The cap is the payout
// ceiling fixed at issuance.
func RequiredCollateral(qty, collateralPerUnit decimal.Decimal) decimal.Decimal {
	return qty.Mul(collateralPerUnit)
}
