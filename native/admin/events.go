package admin

import (
	"encoding/hex"
	"strconv"
	"strings"

	"credchain/core/types"
)

const (
	EventTypeInitialized      = "admin.initialized"
	EventTypePauseUpdated     = "admin.pause_updated"
	EventTypeAdminTransferred = "admin.transferred"
)

type adminEvent struct {
	evt *types.Event
}

func (e adminEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e adminEvent) Event() *types.Event { return e.evt }

func newConfigEvent(eventType string, c *Config, now int64) *types.Event {
	if c == nil {
		return nil
	}
	return &types.Event{Type: eventType, Attributes: map[string]string{
		"admin":     hex.EncodeToString(c.Admin[:]),
		"version":   strconv.FormatUint(c.Version, 10),
		"nonce":     strconv.FormatUint(c.CapabilityNonce, 10),
		"paused":    strings.Join(c.PausedModules, ","),
		"timestamp": strconv.FormatInt(now, 10),
	}}
}

func newPauseEvent(module string, paused bool, now int64) *types.Event {
	return &types.Event{Type: EventTypePauseUpdated, Attributes: map[string]string{
		"module":    module,
		"paused":    strconv.FormatBool(paused),
		"timestamp": strconv.FormatInt(now, 10),
	}}
}
