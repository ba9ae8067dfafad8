package payments

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"credchain/core/types"
)

const (
	EventTypeAccountOpened = "payments.account_opened"
	EventTypeCreated       = "payments.created"
	EventTypeCompleted     = "payments.completed"
	EventTypeCancelled     = "payments.cancelled"
)

type paymentEvent struct {
	evt *types.Event
}

func (e paymentEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e paymentEvent) Event() *types.Event { return e.evt }

func newAccountEvent(addr [20]byte, now int64) *types.Event {
	return &types.Event{Type: EventTypeAccountOpened, Attributes: map[string]string{
		"address":   hex.EncodeToString(addr[:]),
		"timestamp": strconv.FormatInt(now, 10),
	}}
}

func newPaymentEvent(eventType string, p *Payment, now int64) *types.Event {
	if p == nil {
		return nil
	}
	return &types.Event{Type: eventType, Attributes: map[string]string{
		"id":        strconv.FormatUint(p.ID, 10),
		"payer":     hex.EncodeToString(p.Payer[:]),
		"payee":     hex.EncodeToString(p.Payee[:]),
		"amount":    bigString(p.Amount),
		"status":    p.Status.String(),
		"timestamp": strconv.FormatInt(now, 10),
	}}
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
