package lending

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"credchain/core/types"
)

const (
	EventTypeCollateralDeposited = "lending.collateral_deposited"
	EventTypeCollateralWithdrawn = "lending.collateral_withdrawn"
	EventTypeLiquiditySupplied   = "lending.liquidity_supplied"
	EventTypeLiquidityWithdrawn  = "lending.liquidity_withdrawn"
	EventTypeBorrowed            = "lending.borrowed"
	EventTypeRepaid              = "lending.repaid"
	EventTypeLoanRequestCreated  = "lending.loan_request_created"
	EventTypeLoanFulfilled       = "lending.loan_fulfilled"
	EventTypeLiquidated          = "lending.liquidated"
)

type lendingEvent struct {
	evt *types.Event
}

func (e lendingEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e lendingEvent) Event() *types.Event { return e.evt }

func newPositionEvent(eventType string, p *Position, amount *big.Int, now int64) *types.Event {
	if p == nil {
		return nil
	}
	return &types.Event{Type: eventType, Attributes: map[string]string{
		"address":    hex.EncodeToString(p.Address[:]),
		"asset":      p.Asset,
		"amount":     bigString(amount),
		"collateral": bigString(p.Collateral),
		"principal":  bigString(p.Principal),
		"timestamp":  strconv.FormatInt(now, 10),
	}}
}

func newRequestEvent(eventType string, r *LoanRequest, now int64) *types.Event {
	if r == nil {
		return nil
	}
	attrs := map[string]string{
		"id":        strconv.FormatUint(r.ID, 10),
		"borrower":  hex.EncodeToString(r.Borrower[:]),
		"asset":     r.Asset,
		"amount":    bigString(r.Amount),
		"rateBps":   strconv.FormatUint(r.RateBps, 10),
		"timestamp": strconv.FormatInt(now, 10),
	}
	if r.Fulfilled {
		attrs["fulfiller"] = hex.EncodeToString(r.Fulfiller[:])
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}

func newLiquidationEvent(liquidator, user [20]byte, asset string, repaid, seized *big.Int, now int64) *types.Event {
	return &types.Event{Type: EventTypeLiquidated, Attributes: map[string]string{
		"liquidator":      hex.EncodeToString(liquidator[:]),
		"user":            hex.EncodeToString(user[:]),
		"asset":           asset,
		"repaid":          bigString(repaid),
		"seized":          bigString(seized),
		"timestamp":       strconv.FormatInt(now, 10),
		"disputeDeadline": strconv.FormatInt(now+LiquidationDisputeWindowSeconds, 10),
	}}
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
