package rates

import (
	"errors"
	"time"

	"credchain/core/events"
	"credchain/core/types"
	nativecommon "credchain/native/common"
)

var (
	// ErrNilState marks an engine invoked before its state backend is wired.
	ErrNilState = errors.New("rates engine: state not configured")
	// ErrNotAuthorized is returned when a non-admin caller invokes a setter.
	ErrNotAuthorized = errors.New("rates engine: caller is not the protocol admin")
	// ErrRateOutOfRange marks parameters above the 10000 bps ceiling.
	ErrRateOutOfRange = errors.New("rates engine: rate parameter exceeds 10000 bps")
	// ErrProposalNotFound marks lookups for unknown proposal identifiers.
	ErrProposalNotFound = errors.New("rates engine: proposal not found")
)

const moduleName = "rates"

type engineState interface {
	RatesGetModel() (*Model, error)
	RatesPutModel(*Model) error
	RatesNextProposalID() (uint64, error)
	RatesPutProposal(*Proposal) error
	RatesGetProposal(id uint64) (*Proposal, bool, error)
	RatesListProposals() ([]*Proposal, error)
}

// AdminView exposes the admin check the setters gate on.
type AdminView interface {
	IsAdmin(addr [20]byte) bool
}

// Engine owns the interest rate curve parameters and the inert proposal
// registry. Setters are admin-gated unconditional writes; proposals are
// recorded but never executed by this engine.
type Engine struct {
	state   engineState
	emitter events.Emitter
	pauses  nativecommon.PauseView
	admin   AdminView
	nowFn   func() int64
}

// NewEngine constructs a rates engine with no-op dependencies.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetPauses wires the admin pause switches.
func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetAdminView wires the authority check used by the setters.
func (e *Engine) SetAdminView(view AdminView) {
	if e == nil {
		return
	}
	e.admin = view
}

// SetEmitter configures the event emitter. Passing nil restores the no-op
// implementation.
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
	e.emitter.Emit(rateEvent{evt: event})
}

func (e *Engine) requireAdmin(caller [20]byte) error {
	if e.admin == nil || !e.admin.IsAdmin(caller) {
		return ErrNotAuthorized
	}
	return nil
}

// Model returns the committed curve parameters, falling back to the genesis
// defaults when none have been stored yet.
func (e *Engine) Model() (*Model, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	model, err := e.state.RatesGetModel()
	if err != nil {
		return nil, err
	}
	if model == nil {
		return DefaultModel(), nil
	}
	return model.Clone(), nil
}

// UpdateBaseRate replaces the base rate. Admin-only; bounds-checked.
func (e *Engine) UpdateBaseRate(caller [20]byte, baseRateBps uint64) error {
	return e.update(caller, func(m *Model) error {
		if baseRateBps > MaxBps {
			return ErrRateOutOfRange
		}
		m.BaseRateBps = baseRateBps
		return nil
	}, EventTypeBaseRateUpdated)
}

// UpdateOptimalUtilization replaces the kink point. Admin-only.
func (e *Engine) UpdateOptimalUtilization(caller [20]byte, optimalBps uint64) error {
	return e.update(caller, func(m *Model) error {
		if optimalBps > MaxBps {
			return ErrRateOutOfRange
		}
		m.OptimalUtilizationBps = optimalBps
		return nil
	}, EventTypeOptimalUpdated)
}

// UpdateSlopes replaces both curve slopes. Admin-only.
func (e *Engine) UpdateSlopes(caller [20]byte, slope1Bps, slope2Bps uint64) error {
	return e.update(caller, func(m *Model) error {
		if slope1Bps > MaxBps || slope2Bps > MaxBps {
			return ErrRateOutOfRange
		}
		m.Slope1Bps = slope1Bps
		m.Slope2Bps = slope2Bps
		return nil
	}, EventTypeSlopesUpdated)
}

func (e *Engine) update(caller [20]byte, apply func(*Model) error, eventType string) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	model, err := e.state.RatesGetModel()
	if err != nil {
		return err
	}
	if model == nil {
		model = DefaultModel()
	}
	if err := apply(model); err != nil {
		return err
	}
	now := e.now()
	model.LastUpdate = uint64(now)
	if err := e.state.RatesPutModel(model); err != nil {
		return err
	}
	e.emit(newModelEvent(eventType, model, caller, now))
	return nil
}

// SubmitProposal records a rate-change proposal. Proposals are scaffolding:
// they can be listed and inspected but no operation advances them to
// execution.
func (e *Engine) SubmitProposal(proposer [20]byte, kind ProposalKind, values []uint64) (*Proposal, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if !kind.Valid() {
		return nil, ErrProposalKindInvalid
	}
	for _, v := range values {
		if v > MaxBps {
			return nil, ErrRateOutOfRange
		}
	}
	id, err := e.state.RatesNextProposalID()
	if err != nil {
		return nil, err
	}
	proposal := &Proposal{
		ID:          id,
		Proposer:    proposer,
		Kind:        kind,
		ValuesBps:   append([]uint64(nil), values...),
		SubmittedAt: uint64(e.now()),
		Status:      ProposalStatusPending,
	}
	if err := e.state.RatesPutProposal(proposal); err != nil {
		return nil, err
	}
	e.emit(newProposalEvent(proposal))
	return proposal.Clone(), nil
}

// Proposal returns the stored proposal for an identifier.
func (e *Engine) Proposal(id uint64) (*Proposal, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	proposal, ok, err := e.state.RatesGetProposal(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrProposalNotFound
	}
	return proposal.Clone(), nil
}

// Proposals lists all recorded proposals in submission order.
func (e *Engine) Proposals() ([]*Proposal, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	return e.state.RatesListProposals()
}
