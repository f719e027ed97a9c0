// Package redeem plans gas-efficient batch withdrawals. Positions that
// are withdrawal-pending are grouped by (side, settlement token) — the
// same long or short token can be minted across multiple calendar days
// yet be fungible once settled — and each side collapses to one on-chain
// batch-redeem call. Planning has no side effects; submission is the
// gateway's job.
package redeem

import (
	"github.com/shopspring/decimal"

	"github.com/hashforward/trading-engine/internal/model"
)

// Plan groups the redeemable subset of positions into at most one batch
// call per side. Positions that are not withdrawal-pending are ignored.
func Plan(positions []model.Position) *model.RedemptionPlan {
	return &model.RedemptionPlan{
		LongCall:  planSide(positions, model.SideLong),
		ShortCall: planSide(positions, model.SideShort),
	}
}

func planSide(positions []model.Position, side model.Side) *model.BatchRedeemCall {
	totals := make(map[string]decimal.Decimal)
	var order []string

	for i := range positions {
		p := &positions[i]
		if p.Side != side || p.Status != model.StatusWithdrawalPending {
			continue
		}
		if _, ok := totals[p.TokenAddress]; !ok {
			order = append(order, p.TokenAddress)
		}
		totals[p.TokenAddress] = totals[p.TokenAddress].Add(p.Qty)
	}

	if len(order) == 0 {
		return nil
	}

	call := &model.BatchRedeemCall{
		Side:           side,
		TokenAddresses: make([]string, 0, len(order)),
		Quantities:     make([]decimal.Decimal, 0, len(order)),
	}
	for _, token := range order {
		call.TokenAddresses = append(call.TokenAddresses, token)
		call.Quantities = append(call.Quantities, totals[token])
	}
	return call
}
