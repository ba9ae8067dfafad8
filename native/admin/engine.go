package admin

import (
	"errors"
	"math/big"
	"time"

	"credchain/core/events"
	"credchain/core/types"
	"credchain/crypto"
)

var (
	// ErrNilState marks an engine invoked before its state backend is wired.
	ErrNilState = errors.New("admin engine: state not configured")
	// ErrAlreadyInitialized rejects a second initialization.
	ErrAlreadyInitialized = errors.New("admin engine: already initialized")
	// ErrNotInitialized marks admin operations before initialization.
	ErrNotInitialized = errors.New("admin engine: not initialized")
	// ErrInvalidCapability marks stale or forged capability tokens.
	ErrInvalidCapability = errors.New("admin engine: invalid capability")
	// ErrUnknownModule rejects pause switches for unrecognized modules.
	ErrUnknownModule = errors.New("admin engine: unknown module")
	// ErrZeroAddress rejects the zero address as an admin.
	ErrZeroAddress = errors.New("admin engine: zero admin address")
)

type engineState interface {
	AdminGetConfig() (*Config, bool, error)
	AdminPutConfig(*Config) error
	GetAccount(addr [20]byte) (*types.Account, error)
}

// Engine holds protocol-wide administration: the admin capability, the
// per-module pause switches, and the read-only value-locked aggregate.
// It implements nativecommon.PauseView for the other engines.
type Engine struct {
	state   engineState
	emitter events.Emitter
	vaults  [][20]byte
	nowFn   func() int64
}

// NewEngine constructs an admin engine with no-op dependencies. The vault
// list covers every module account counted toward total value locked.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		vaults: [][20]byte{
			crypto.ModuleAddress("lending"),
			crypto.ModuleAddress("lending/collateral"),
			crypto.ModuleAddress("circles"),
			crypto.ModuleAddress("payments"),
		},
		nowFn: func() int64 { return time.Now().Unix() },
	}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetEmitter configures the event emitter. Nil restores the no-op emitter.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source. Primarily intended for tests.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(adminEvent{evt: event})
}

func (e *Engine) loadConfig() (*Config, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	config, ok, err := e.state.AdminGetConfig()
	if err != nil {
		return nil, err
	}
	if !ok || config == nil {
		return nil, ErrNotInitialized
	}
	return config, nil
}

func (e *Engine) authorize(capability *Capability) (*Config, error) {
	config, err := e.loadConfig()
	if err != nil {
		return nil, err
	}
	if capability == nil || capability.holder != config.Admin || capability.nonce != config.CapabilityNonce {
		return nil, ErrInvalidCapability
	}
	return config, nil
}

// Initialize records the first admin and mints their capability. A second
// call fails regardless of caller.
func (e *Engine) Initialize(adminAddr [20]byte) (*Capability, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	if adminAddr == ([20]byte{}) {
		return nil, ErrZeroAddress
	}
	_, ok, err := e.state.AdminGetConfig()
	if err != nil {
		return nil, err
	}
	if ok {
		return nil, ErrAlreadyInitialized
	}
	now := e.now()
	config := &Config{
		Admin:     adminAddr,
		Version:   ProtocolVersion,
		UpdatedAt: uint64(now),
	}
	if err := e.state.AdminPutConfig(config); err != nil {
		return nil, err
	}
	e.emit(newConfigEvent(EventTypeInitialized, config, now))
	return &Capability{holder: adminAddr, nonce: config.CapabilityNonce}, nil
}

// SetPaused flips one module's pause switch. Requires a live capability.
func (e *Engine) SetPaused(capability *Capability, module string, paused bool) error {
	config, err := e.authorize(capability)
	if err != nil {
		return err
	}
	if !knownModules[module] {
		return ErrUnknownModule
	}
	config.setPaused(module, paused)
	now := e.now()
	config.UpdatedAt = uint64(now)
	if err := e.state.AdminPutConfig(config); err != nil {
		return err
	}
	e.emit(newPauseEvent(module, paused, now))
	return nil
}

// TransferAdmin hands admin rights to a new address and mints a fresh
// capability. The nonce bump strands every token issued before the call,
// and the config version advances.
func (e *Engine) TransferAdmin(capability *Capability, newAdmin [20]byte) (*Capability, error) {
	config, err := e.authorize(capability)
	if err != nil {
		return nil, err
	}
	if newAdmin == ([20]byte{}) {
		return nil, ErrZeroAddress
	}
	now := e.now()
	config.Admin = newAdmin
	config.Version++
	config.CapabilityNonce++
	config.UpdatedAt = uint64(now)
	if err := e.state.AdminPutConfig(config); err != nil {
		return nil, err
	}
	e.emit(newConfigEvent(EventTypeAdminTransferred, config, now))
	return &Capability{holder: newAdmin, nonce: config.CapabilityNonce}, nil
}

// IsAdmin reports whether the address holds current admin rights.
func (e *Engine) IsAdmin(addr [20]byte) bool {
	config, err := e.loadConfig()
	if err != nil {
		return false
	}
	return config.Admin == addr
}

// IsPaused implements nativecommon.PauseView. An uninitialized or
// unreadable config reads as unpaused so the protocol can bootstrap.
func (e *Engine) IsPaused(module string) bool {
	config, err := e.loadConfig()
	if err != nil {
		return false
	}
	return config.isPaused(module)
}

// Config returns the committed protocol config.
func (e *Engine) Config() (*Config, error) {
	config, err := e.loadConfig()
	if err != nil {
		return nil, err
	}
	return config.Clone(), nil
}

// TotalValueLocked sums the base-asset balances of every module vault. It
// is computed on demand, never stored, so it cannot drift from the
// underlying accounts.
func (e *Engine) TotalValueLocked() (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	total := big.NewInt(0)
	for _, vault := range e.vaults {
		account, err := e.state.GetAccount(vault)
		if err != nil {
			return nil, err
		}
		if account == nil {
			continue
		}
		total.Add(total, account.Balance(types.BaseAsset))
	}
	return total, nil
}
