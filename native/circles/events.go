package circles

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"credchain/core/types"
)

const (
	EventTypeCreated          = "circle.created"
	EventTypeMemberJoined     = "circle.member_joined"
	EventTypeStaked           = "circle.staked"
	EventTypeBiddingStarted   = "circle.bidding_started"
	EventTypeBidSubmitted     = "circle.bid_submitted"
	EventTypeFundsDistributed = "circle.funds_distributed"
)

type circleEvent struct {
	evt *types.Event
}

func (e circleEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e circleEvent) Event() *types.Event { return e.evt }

func newCircleEvent(eventType string, c *Circle, now int64) *types.Event {
	if c == nil {
		return nil
	}
	return &types.Event{Type: eventType, Attributes: map[string]string{
		"id":         strconv.FormatUint(c.ID, 10),
		"owner":      hex.EncodeToString(c.Owner[:]),
		"name":       c.Name,
		"maxMembers": strconv.FormatUint(c.MaxMembers, 10),
		"timestamp":  strconv.FormatInt(now, 10),
	}}
}

func newMemberEvent(eventType string, c *Circle, member [20]byte, amount *big.Int, now int64) *types.Event {
	if c == nil {
		return nil
	}
	attrs := map[string]string{
		"id":        strconv.FormatUint(c.ID, 10),
		"member":    hex.EncodeToString(member[:]),
		"totalPool": bigString(c.TotalPool),
		"timestamp": strconv.FormatInt(now, 10),
	}
	if amount != nil {
		attrs["amount"] = amount.String()
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}

func newRoundEvent(eventType string, r *BiddingRound, now int64) *types.Event {
	if r == nil {
		return nil
	}
	return &types.Event{Type: eventType, Attributes: map[string]string{
		"id":        strconv.FormatUint(r.CircleID, 10),
		"round":     strconv.FormatUint(r.Round, 10),
		"startTime": strconv.FormatUint(r.StartTime, 10),
		"endTime":   strconv.FormatUint(r.EndTime, 10),
		"timestamp": strconv.FormatInt(now, 10),
	}}
}

func newBidEvent(r *BiddingRound, bidder [20]byte, amount *big.Int, rateBps uint64, now int64) *types.Event {
	if r == nil {
		return nil
	}
	return &types.Event{Type: EventTypeBidSubmitted, Attributes: map[string]string{
		"id":        strconv.FormatUint(r.CircleID, 10),
		"round":     strconv.FormatUint(r.Round, 10),
		"bidder":    hex.EncodeToString(bidder[:]),
		"amount":    bigString(amount),
		"rateBps":   strconv.FormatUint(rateBps, 10),
		"timestamp": strconv.FormatInt(now, 10),
	}}
}

func newDistributionEvent(c *Circle, winner [20]byte, bid *Bid, now int64) *types.Event {
	if c == nil || bid == nil {
		return nil
	}
	return &types.Event{Type: EventTypeFundsDistributed, Attributes: map[string]string{
		"id":        strconv.FormatUint(c.ID, 10),
		"winner":    hex.EncodeToString(winner[:]),
		"amount":    bigString(bid.Amount),
		"rateBps":   strconv.FormatUint(bid.RateBps, 10),
		"totalPool": bigString(c.TotalPool),
		"timestamp": strconv.FormatInt(now, 10),
	}}
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
