package types

// Event represents a typed event emitted during state transitions. Every
// state-changing operation appends exactly one event (two for combined
// actions) carrying the mutated identifiers, amounts and commit timestamp.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

// Attribute returns the named attribute or the empty string.
func (e *Event) Attribute(key string) string {
	if e == nil || e.Attributes == nil {
		return ""
	}
	return e.Attributes[key]
}
