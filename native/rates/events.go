package rates

import (
	"encoding/hex"
	"strconv"

	"credchain/core/types"
)

const (
	EventTypeBaseRateUpdated   = "rates.base_rate_updated"
	EventTypeOptimalUpdated    = "rates.optimal_utilization_updated"
	EventTypeSlopesUpdated     = "rates.slopes_updated"
	EventTypeProposalSubmitted = "rates.proposal_submitted"
)

type rateEvent struct {
	evt *types.Event
}

func (e rateEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e rateEvent) Event() *types.Event { return e.evt }

func newModelEvent(eventType string, m *Model, caller [20]byte, now int64) *types.Event {
	if m == nil {
		return nil
	}
	return &types.Event{Type: eventType, Attributes: map[string]string{
		"caller":     hex.EncodeToString(caller[:]),
		"baseBps":    strconv.FormatUint(m.BaseRateBps, 10),
		"optimalBps": strconv.FormatUint(m.OptimalUtilizationBps, 10),
		"slope1Bps":  strconv.FormatUint(m.Slope1Bps, 10),
		"slope2Bps":  strconv.FormatUint(m.Slope2Bps, 10),
		"timestamp":  strconv.FormatInt(now, 10),
	}}
}

func newProposalEvent(p *Proposal) *types.Event {
	if p == nil {
		return nil
	}
	return &types.Event{Type: EventTypeProposalSubmitted, Attributes: map[string]string{
		"id":        strconv.FormatUint(p.ID, 10),
		"proposer":  hex.EncodeToString(p.Proposer[:]),
		"kind":      string(p.Kind),
		"timestamp": strconv.FormatUint(p.SubmittedAt, 10),
	}}
}
