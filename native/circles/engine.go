package circles

import (
	"errors"
	"math/big"
	"strings"
	"time"

	"credchain/core/events"
	"credchain/core/types"
	"credchain/crypto"
	nativecommon "credchain/native/common"
)

var (
	// ErrNilState marks an engine invoked before its state backend is wired.
	ErrNilState = errors.New("circle engine: state not configured")
	// ErrInvalidAmount rejects zero or negative amounts.
	ErrInvalidAmount = errors.New("circle engine: amount must be positive")
	// ErrInvalidName rejects empty circle names.
	ErrInvalidName = errors.New("circle engine: name required")
	// ErrInvalidMemberLimit rejects member limits outside (0, 100].
	ErrInvalidMemberLimit = errors.New("circle engine: member limit must be in (0, 100]")
	// ErrInvalidRate rejects bid rates above the 10000 bps ceiling.
	ErrInvalidRate = errors.New("circle engine: rate exceeds 10000 bps")
	// ErrCircleNotFound marks operations against unknown circle ids.
	ErrCircleNotFound = errors.New("circle engine: circle not found")
	// ErrCircleInactive marks joins and bids against deactivated circles.
	ErrCircleInactive = errors.New("circle engine: circle not active")
	// ErrCircleFull marks joins beyond the declared member limit.
	ErrCircleFull = errors.New("circle engine: circle is full")
	// ErrAlreadyMember rejects duplicate membership.
	ErrAlreadyMember = errors.New("circle engine: caller already a member")
	// ErrNotMember marks bids from addresses outside the circle.
	ErrNotMember = errors.New("circle engine: caller is not a member")
	// ErrNotOwner marks owner-only calls from other members.
	ErrNotOwner = errors.New("circle engine: caller is not the circle owner")
	// ErrInsufficientStake marks stakes below the contribution floor or
	// bids beyond the 200% stake backing.
	ErrInsufficientStake = errors.New("circle engine: insufficient stake")
	// ErrInsufficientPool marks bids or distributions beyond the pool.
	ErrInsufficientPool = errors.New("circle engine: insufficient pool funds")
	// ErrBiddingClosed marks bids outside an active round's window.
	ErrBiddingClosed = errors.New("circle engine: bidding round closed")
	// ErrBidNotFound marks distributions without a matching unaccepted bid.
	ErrBidNotFound = errors.New("circle engine: no matching unaccepted bid")
	// ErrInsufficientBalance marks stakers without the funds to transfer.
	ErrInsufficientBalance = errors.New("circle engine: insufficient balance")
)

const moduleName = "circles"

type engineState interface {
	CirclesNextID() (uint64, error)
	CirclesGetCircle(id uint64) (*Circle, error)
	CirclesPutCircle(*Circle) error
	CirclesGetStake(id uint64, member [20]byte) (*Stake, bool, error)
	CirclesPutStake(*Stake) error
	CirclesGetRound(id uint64) (*BiddingRound, error)
	CirclesPutRound(*BiddingRound) error
	GetAccount(addr [20]byte) (*types.Account, error)
	PutAccount(addr [20]byte, account *types.Account) error
}

// Engine manages pooled group lending: member stakes accumulate in a circle
// vault and competitive, stake-backed bids draw funds back out. Stakes and
// distributions settle in the protocol's base asset.
type Engine struct {
	state        engineState
	emitter      events.Emitter
	pauses       nativecommon.PauseView
	vaultAddress [20]byte
	nowFn        func() int64
}

// NewEngine constructs a circle engine with no-op dependencies.
func NewEngine() *Engine {
	return &Engine{
		emitter:      events.NoopEmitter{},
		vaultAddress: crypto.ModuleAddress("circles"),
		nowFn:        func() int64 { return time.Now().Unix() },
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
	e.emitter.Emit(circleEvent{evt: event})
}

// VaultAddress returns the account holding all pooled circle funds.
func (e *Engine) VaultAddress() [20]byte { return e.vaultAddress }

func (e *Engine) guard() error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	return nativecommon.Guard(e.pauses, moduleName)
}

func (e *Engine) loadCircle(id uint64) (*Circle, error) {
	circle, err := e.state.CirclesGetCircle(id)
	if err != nil {
		return nil, err
	}
	if circle == nil {
		return nil, ErrCircleNotFound
	}
	if circle.TotalPool == nil {
		circle.TotalPool = big.NewInt(0)
	}
	if circle.MinContribution == nil {
		circle.MinContribution = big.NewInt(0)
	}
	return circle, nil
}

func (e *Engine) transfer(from, to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	fromAcc, err := e.state.GetAccount(from)
	if err != nil {
		return err
	}
	if fromAcc == nil {
		fromAcc = types.NewAccount()
	}
	toAcc, err := e.state.GetAccount(to)
	if err != nil {
		return err
	}
	if toAcc == nil {
		toAcc = types.NewAccount()
	}
	if !fromAcc.Debit(types.BaseAsset, amount) {
		return ErrInsufficientBalance
	}
	toAcc.Credit(types.BaseAsset, amount)
	if err := e.state.PutAccount(from, fromAcc); err != nil {
		return err
	}
	return e.state.PutAccount(to, toAcc)
}

// CreateCircle registers a new circle with a strictly increasing id. The
// creator becomes owner and first member.
func (e *Engine) CreateCircle(caller [20]byte, name string, maxMembers uint64, minContribution *big.Int) (*Circle, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return nil, ErrInvalidName
	}
	if maxMembers == 0 || maxMembers > MaxMembersCeiling {
		return nil, ErrInvalidMemberLimit
	}
	if minContribution == nil || minContribution.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	id, err := e.state.CirclesNextID()
	if err != nil {
		return nil, err
	}
	now := e.now()
	circle := &Circle{
		ID:              id,
		Owner:           caller,
		Name:            trimmed,
		Members:         [][20]byte{caller},
		MaxMembers:      maxMembers,
		TotalPool:       big.NewInt(0),
		MinContribution: new(big.Int).Set(minContribution),
		Active:          true,
		CreatedAt:       uint64(now),
	}
	if err := e.state.CirclesPutCircle(circle); err != nil {
		return nil, err
	}
	e.emit(newCircleEvent(EventTypeCreated, circle, now))
	return circle.Clone(), nil
}

// JoinCircle adds the caller as a member and locks their stake in the
// circle vault. Emits both a membership and a stake event.
func (e *Engine) JoinCircle(caller [20]byte, circleID uint64, stakeAmount *big.Int) error {
	if err := e.guard(); err != nil {
		return err
	}
	if stakeAmount == nil || stakeAmount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	circle, err := e.loadCircle(circleID)
	if err != nil {
		return err
	}
	if !circle.Active {
		return ErrCircleInactive
	}
	if circle.HasMember(caller) {
		return ErrAlreadyMember
	}
	if uint64(len(circle.Members)) >= circle.MaxMembers {
		return ErrCircleFull
	}
	if stakeAmount.Cmp(circle.MinContribution) < 0 {
		return ErrInsufficientStake
	}
	if err := e.transfer(caller, e.vaultAddress, stakeAmount); err != nil {
		return err
	}
	now := e.now()
	circle.Members = append(circle.Members, caller)
	circle.TotalPool = new(big.Int).Add(circle.TotalPool, stakeAmount)
	stake := &Stake{
		CircleID: circleID,
		Member:   caller,
		Amount:   new(big.Int).Set(stakeAmount),
		StakedAt: uint64(now),
	}
	if err := e.state.CirclesPutStake(stake); err != nil {
		return err
	}
	if err := e.state.CirclesPutCircle(circle); err != nil {
		return err
	}
	e.emit(newMemberEvent(EventTypeMemberJoined, circle, caller, nil, now))
	e.emit(newMemberEvent(EventTypeStaked, circle, caller, stakeAmount, now))
	return nil
}

// StartBiddingRound opens a fresh 7-day bidding window. Owner-only; a new
// round supersedes any previous one.
func (e *Engine) StartBiddingRound(caller [20]byte, circleID uint64) (*BiddingRound, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}
	circle, err := e.loadCircle(circleID)
	if err != nil {
		return nil, err
	}
	if circle.Owner != caller {
		return nil, ErrNotOwner
	}
	if !circle.Active {
		return nil, ErrCircleInactive
	}
	previous, err := e.state.CirclesGetRound(circleID)
	if err != nil {
		return nil, err
	}
	roundNumber := uint64(1)
	if previous != nil {
		roundNumber = previous.Round + 1
	}
	now := e.now()
	round := &BiddingRound{
		CircleID:  circleID,
		Round:     roundNumber,
		StartTime: uint64(now),
		EndTime:   uint64(now) + BiddingWindowSeconds,
		Active:    true,
	}
	if err := e.state.CirclesPutRound(round); err != nil {
		return nil, err
	}
	e.emit(newRoundEvent(EventTypeBiddingStarted, round, now))
	return round.Clone(), nil
}

// SubmitBid records a stake-backed offer in the circle's active round. The
// bidder's stake must cover 200% of the bid and the pool must cover the bid
// in full at submission time.
func (e *Engine) SubmitBid(caller [20]byte, circleID uint64, amount *big.Int, rateBps uint64) error {
	if err := e.guard(); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if rateBps > 10_000 {
		return ErrInvalidRate
	}
	circle, err := e.loadCircle(circleID)
	if err != nil {
		return err
	}
	if !circle.Active {
		return ErrCircleInactive
	}
	if !circle.HasMember(caller) {
		return ErrNotMember
	}
	stake, ok, err := e.state.CirclesGetStake(circleID, caller)
	if err != nil {
		return err
	}
	if !ok || stake.Amount == nil {
		return ErrInsufficientStake
	}
	requiredStake := new(big.Int).Mul(amount, big.NewInt(StakeToLoanRatioBps))
	requiredStake.Quo(requiredStake, big.NewInt(10_000))
	if stake.Amount.Cmp(requiredStake) < 0 {
		return ErrInsufficientStake
	}
	if circle.TotalPool.Cmp(amount) < 0 {
		return ErrInsufficientPool
	}
	round, err := e.state.CirclesGetRound(circleID)
	if err != nil {
		return err
	}
	now := e.now()
	if round == nil || !round.Active || uint64(now) < round.StartTime || uint64(now) >= round.EndTime {
		return ErrBiddingClosed
	}
	round.Bids = append(round.Bids, Bid{
		Bidder:  caller,
		Amount:  new(big.Int).Set(amount),
		RateBps: rateBps,
	})
	if err := e.state.CirclesPutRound(round); err != nil {
		return err
	}
	e.emit(newBidEvent(round, caller, amount, rateBps, now))
	return nil
}

// DistributeFunds pays out the winner's first unaccepted bid, oldest first.
// Owner-only. The pool must still cover the bid amount; distribution is a
// first-match walk, not an auction resolution.
func (e *Engine) DistributeFunds(caller [20]byte, circleID uint64, winner [20]byte) (*Bid, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}
	circle, err := e.loadCircle(circleID)
	if err != nil {
		return nil, err
	}
	if circle.Owner != caller {
		return nil, ErrNotOwner
	}
	round, err := e.state.CirclesGetRound(circleID)
	if err != nil {
		return nil, err
	}
	if round == nil {
		return nil, ErrBidNotFound
	}
	var selected *Bid
	for i := range round.Bids {
		if round.Bids[i].Bidder == winner && !round.Bids[i].Accepted {
			selected = &round.Bids[i]
			break
		}
	}
	if selected == nil {
		return nil, ErrBidNotFound
	}
	if circle.TotalPool.Cmp(selected.Amount) < 0 {
		return nil, ErrInsufficientPool
	}
	if err := e.transfer(e.vaultAddress, winner, selected.Amount); err != nil {
		return nil, err
	}
	now := e.now()
	selected.Accepted = true
	circle.TotalPool = new(big.Int).Sub(circle.TotalPool, selected.Amount)
	if err := e.state.CirclesPutRound(round); err != nil {
		return nil, err
	}
	if err := e.state.CirclesPutCircle(circle); err != nil {
		return nil, err
	}
	e.emit(newDistributionEvent(circle, winner, selected, now))
	accepted := *selected
	accepted.Amount = new(big.Int).Set(selected.Amount)
	return &accepted, nil
}

// Circle returns the committed record for an id.
func (e *Engine) Circle(id uint64) (*Circle, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	circle, err := e.loadCircle(id)
	if err != nil {
		return nil, err
	}
	return circle.Clone(), nil
}

// StakeOf returns a member's stake in a circle.
func (e *Engine) StakeOf(id uint64, member [20]byte) (*Stake, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	stake, ok, err := e.state.CirclesGetStake(id, member)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInsufficientStake
	}
	return stake.Clone(), nil
}

// Round returns the circle's most recent bidding round.
func (e *Engine) Round(id uint64) (*BiddingRound, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	round, err := e.state.CirclesGetRound(id)
	if err != nil {
		return nil, err
	}
	if round == nil {
		return nil, ErrBidNotFound
	}
	return round.Clone(), nil
}
