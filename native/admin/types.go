package admin

// ProtocolVersion is the config version stamped at initialization. Every
// admin transfer increments the committed version, so it is monotonic
// non-decreasing over the protocol's lifetime.
const ProtocolVersion uint64 = 1

// Known module names accepted by the pause switches.
var knownModules = map[string]bool{
	"lending":  true,
	"circles":  true,
	"payments": true,
	"trust":    true,
	"rates":    true,
}

// Config is the protocol-wide admin record: who holds admin rights, which
// modules are paused, and the capability nonce that invalidates stale
// capability tokens after an admin transfer.
type Config struct {
	Admin           [20]byte
	Version         uint64
	CapabilityNonce uint64
	PausedModules   []string
	UpdatedAt       uint64
}

// Clone returns a deep copy of the config record.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	clone.PausedModules = append([]string(nil), c.PausedModules...)
	return &clone
}

func (c *Config) isPaused(module string) bool {
	if c == nil {
		return false
	}
	for _, name := range c.PausedModules {
		if name == module {
			return true
		}
	}
	return false
}

func (c *Config) setPaused(module string, paused bool) {
	if paused {
		if !c.isPaused(module) {
			c.PausedModules = append(c.PausedModules, module)
		}
		return
	}
	filtered := c.PausedModules[:0]
	for _, name := range c.PausedModules {
		if name != module {
			filtered = append(filtered, name)
		}
	}
	c.PausedModules = filtered
}

// Capability is an unforgeable admin token. Fields are unexported so only
// this package can mint one; a transfer bumps the config nonce and strands
// every previously issued token.
type Capability struct {
	holder [20]byte
	nonce  uint64
}

// Holder returns the address the capability was issued to.
func (c *Capability) Holder() [20]byte {
	if c == nil {
		return [20]byte{}
	}
	return c.holder
}
