package trust

import (
	"encoding/hex"
	"strconv"

	"credchain/core/types"
)

const (
	EventTypeRegistered      = "trust.registered"
	EventTypeEndorsed        = "trust.endorsed"
	EventTypeSuccessRecorded = "trust.success_recorded"
	EventTypeFailureRecorded = "trust.failure_recorded"
	EventTypeBorrowRecorded  = "trust.borrow_recorded"
)

type trustEvent struct {
	evt *types.Event
}

func (e trustEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e trustEvent) Event() *types.Event { return e.evt }

func newRegisteredEvent(s *Score, now int64) *types.Event {
	return newScoreEventWith(EventTypeRegistered, s, now, nil)
}

func newEndorsedEvent(endorser [20]byte, s *Score, now int64) *types.Event {
	return newScoreEventWith(EventTypeEndorsed, s, now, map[string]string{
		"endorser": hex.EncodeToString(endorser[:]),
	})
}

func newScoreEvent(eventType string, s *Score, now int64) *types.Event {
	return newScoreEventWith(eventType, s, now, nil)
}

func newScoreEventWith(eventType string, s *Score, now int64, extra map[string]string) *types.Event {
	if s == nil {
		return nil
	}
	attrs := map[string]string{
		"address":   hex.EncodeToString(s.Address[:]),
		"score":     strconv.FormatUint(s.Value, 10),
		"level":     strconv.FormatUint(uint64(ReputationLevel(s.Value)), 10),
		"timestamp": strconv.FormatInt(now, 10),
	}
	for k, v := range extra {
		attrs[k] = v
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}
