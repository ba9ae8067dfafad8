package trust

import (
	"errors"
	"math/big"
	"time"

	"credchain/core/events"
	"credchain/core/types"
	nativecommon "credchain/native/common"
)

var (
	// ErrNilState marks an engine invoked before its state backend is wired.
	ErrNilState = errors.New("trust engine: state not configured")
	// ErrAlreadyRegistered is returned when an account registers twice.
	ErrAlreadyRegistered = errors.New("trust engine: score already registered")
	// ErrScoreNotFound marks operations against unregistered accounts.
	ErrScoreNotFound = errors.New("trust engine: score not registered")
	// ErrSelfEndorsement rejects accounts endorsing themselves.
	ErrSelfEndorsement = errors.New("trust engine: self endorsement not allowed")
	// ErrAlreadyEndorsed rejects duplicate endorsements from the same peer.
	ErrAlreadyEndorsed = errors.New("trust engine: endorsement already recorded")
)

const moduleName = "trust"

type engineState interface {
	TrustGetScore(addr [20]byte) (*Score, bool, error)
	TrustPutScore(*Score) error
}

// Engine maintains per-account reputation scores and the endorsement graph.
// Scores move by fixed deltas under saturating arithmetic so no sequence of
// adjustments can leave the [0, 1000] band or abort on overflow.
type Engine struct {
	state   engineState
	emitter events.Emitter
	pauses  nativecommon.PauseView
	nowFn   func() int64
}

// NewEngine constructs a trust engine with no-op dependencies.
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
	e.emitter.Emit(trustEvent{evt: event})
}

// Register creates the caller's score record starting at InitialScore.
func (e *Engine) Register(caller [20]byte) (*Score, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if _, exists, err := e.state.TrustGetScore(caller); err != nil {
		return nil, err
	} else if exists {
		return nil, ErrAlreadyRegistered
	}
	now := e.now()
	score := &Score{
		Address:       caller,
		Value:         InitialScore,
		TotalBorrowed: big.NewInt(0),
		TotalRepaid:   big.NewInt(0),
		LastUpdate:    uint64(now),
	}
	if err := e.state.TrustPutScore(score); err != nil {
		return nil, err
	}
	e.emit(newRegisteredEvent(score, now))
	return score.Clone(), nil
}

// Endorse adds the caller to the endorsed account's endorser set and credits
// the endorsement bonus. Self endorsements and duplicates are rejected; both
// parties must already be registered.
func (e *Engine) Endorse(caller, endorsed [20]byte) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if caller == endorsed {
		return ErrSelfEndorsement
	}
	if _, exists, err := e.state.TrustGetScore(caller); err != nil {
		return err
	} else if !exists {
		return ErrScoreNotFound
	}
	target, exists, err := e.state.TrustGetScore(endorsed)
	if err != nil {
		return err
	}
	if !exists {
		return ErrScoreNotFound
	}
	if target.EndorsedBy(caller) {
		return ErrAlreadyEndorsed
	}
	target.Endorsers = append(target.Endorsers, caller)
	target.addSaturating(EndorseDelta)
	now := e.now()
	target.LastUpdate = uint64(now)
	if err := e.state.TrustPutScore(target); err != nil {
		return err
	}
	e.emit(newEndorsedEvent(caller, target, now))
	return nil
}

// RecordSuccess credits a successful transaction: +SuccessDelta saturating,
// counter increment, and the repaid volume added to the lifetime total.
func (e *Engine) RecordSuccess(addr [20]byte, repaid *big.Int) error {
	return e.adjust(addr, func(score *Score) {
		score.addSaturating(SuccessDelta)
		score.SuccessfulTx++
		if repaid != nil && repaid.Sign() > 0 {
			score.TotalRepaid = new(big.Int).Add(score.TotalRepaid, repaid)
		}
	}, EventTypeSuccessRecorded)
}

// RecordFailure debits a failed transaction: -FailureDelta saturating and a
// counter increment.
func (e *Engine) RecordFailure(addr [20]byte) error {
	return e.adjust(addr, func(score *Score) {
		score.subSaturating(FailureDelta)
		score.FailedTx++
	}, EventTypeFailureRecorded)
}

// RecordBorrow tracks lifetime borrowed volume without moving the score.
func (e *Engine) RecordBorrow(addr [20]byte, amount *big.Int) error {
	return e.adjust(addr, func(score *Score) {
		if amount != nil && amount.Sign() > 0 {
			score.TotalBorrowed = new(big.Int).Add(score.TotalBorrowed, amount)
		}
	}, EventTypeBorrowRecorded)
}

func (e *Engine) adjust(addr [20]byte, apply func(*Score), eventType string) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	score, exists, err := e.state.TrustGetScore(addr)
	if err != nil {
		return err
	}
	if !exists {
		return ErrScoreNotFound
	}
	if score.TotalBorrowed == nil {
		score.TotalBorrowed = big.NewInt(0)
	}
	if score.TotalRepaid == nil {
		score.TotalRepaid = big.NewInt(0)
	}
	apply(score)
	now := e.now()
	score.LastUpdate = uint64(now)
	if err := e.state.TrustPutScore(score); err != nil {
		return err
	}
	e.emit(newScoreEvent(eventType, score, now))
	return nil
}

// Score returns the committed record for an address.
func (e *Engine) Score(addr [20]byte) (*Score, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	score, exists, err := e.state.TrustGetScore(addr)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrScoreNotFound
	}
	return score.Clone(), nil
}

// CreditLimit scales the supplied base by the account's score. Unregistered
// accounts read as zero credit; an intentional not-found-to-zero getter.
func (e *Engine) CreditLimit(addr [20]byte, base *big.Int) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	score, exists, err := e.state.TrustGetScore(addr)
	if err != nil {
		return nil, err
	}
	if !exists {
		return big.NewInt(0), nil
	}
	return CreditLimit(base, score.Value), nil
}
