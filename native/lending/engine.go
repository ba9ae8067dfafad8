package lending

import (
	"errors"
	"math/big"
	"time"

	"credchain/core/events"
	"credchain/core/types"
	"credchain/crypto"
	nativecommon "credchain/native/common"
	"credchain/native/rates"
	"credchain/native/trust"
)

var (
	// ErrNilState marks an engine invoked before its state backend is wired.
	ErrNilState = errors.New("lending engine: state not configured")
	// ErrInvalidAmount rejects zero or negative amounts.
	ErrInvalidAmount = errors.New("lending engine: amount must be positive")
	// ErrInvalidRate rejects rates above the 10000 bps ceiling.
	ErrInvalidRate = errors.New("lending engine: rate exceeds 10000 bps")
	// ErrInsufficientBalance marks callers without the funds to transfer.
	ErrInsufficientBalance = errors.New("lending engine: insufficient balance")
	// ErrInsufficientCollateral marks withdrawals or borrows beyond the
	// caller's collateral.
	ErrInsufficientCollateral = errors.New("lending engine: insufficient collateral")
	// ErrUndercollateralized marks mutations that would breach the
	// collateral ratio floor on an open loan.
	ErrUndercollateralized = errors.New("lending engine: position would fall below the collateral ratio")
	// ErrPoolExhausted marks borrows exceeding the pool's idle liquidity.
	ErrPoolExhausted = errors.New("lending engine: pool liquidity exhausted")
	// ErrNoOutstandingDebt marks repayments and liquidations against
	// debt-free positions.
	ErrNoOutstandingDebt = errors.New("lending engine: no outstanding debt")
	// ErrNotLiquidatable marks liquidation attempts on healthy positions.
	ErrNotLiquidatable = errors.New("lending engine: position not eligible for liquidation")
	// ErrLoanRequestNotFound marks fulfilment attempts without an open request.
	ErrLoanRequestNotFound = errors.New("lending engine: loan request not found")
	// ErrLoanAlreadyFulfilled marks double fulfilment of a request.
	ErrLoanAlreadyFulfilled = errors.New("lending engine: loan request already fulfilled")
	// ErrLoanRequestOpen rejects a second live request from the same borrower.
	ErrLoanRequestOpen = errors.New("lending engine: borrower already has an open loan request")
	// ErrSelfFulfil rejects borrowers fulfilling their own request.
	ErrSelfFulfil = errors.New("lending engine: borrower cannot fulfil their own request")
)

const moduleName = "lending"

// LiquidationDisputeWindowSeconds is the 24-hour marker recorded on every
// liquidation event. The window exists for off-chain dispute handling; the
// engine itself does not block or reverse a committed liquidation.
const LiquidationDisputeWindowSeconds = 86_400

type engineState interface {
	LendingGetPool(asset string) (*Pool, error)
	LendingPutPool(*Pool) error
	LendingGetPosition(asset string, addr [20]byte) (*Position, error)
	LendingPutPosition(*Position) error
	LendingGetRequest(borrower [20]byte) (*LoanRequest, bool, error)
	LendingPutRequest(*LoanRequest) error
	LendingNextRequestID() (uint64, error)
	RatesGetModel() (*rates.Model, error)
	GetAccount(addr [20]byte) (*types.Account, error)
	PutAccount(addr [20]byte, account *types.Account) error
}

// TrustView is the optional read-only window into the trust engine used for
// credit-limit hints. The lending engine never mutates trust state.
type TrustView interface {
	Score(addr [20]byte) (*trust.Score, error)
}

// Engine orchestrates collateralized lending: deposits, borrows against the
// pool, peer-to-peer loan requests and permissionless liquidation. Funds move
// between user accounts and the module's liquidity and collateral vaults so
// conservation is auditable from account state.
type Engine struct {
	state             engineState
	emitter           events.Emitter
	pauses            nativecommon.PauseView
	trustView         TrustView
	params            RiskParameters
	moduleAddress     [20]byte
	collateralAddress [20]byte
	nowFn             func() int64
}

// NewEngine constructs a lending engine with the default risk parameters and
// deterministic vault addresses.
func NewEngine() *Engine {
	return &Engine{
		emitter:           events.NoopEmitter{},
		params:            DefaultRiskParameters(),
		moduleAddress:     crypto.ModuleAddress("lending"),
		collateralAddress: crypto.ModuleAddress("lending/collateral"),
		nowFn:             func() int64 { return time.Now().Unix() },
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

// SetTrustView wires the optional reputation lookup used by CreditHint.
func (e *Engine) SetTrustView(view TrustView) {
	if e == nil {
		return
	}
	e.trustView = view
}

// SetRiskParameters replaces the defaults applied to lazily created pools.
func (e *Engine) SetRiskParameters(params RiskParameters) {
	if e == nil {
		return
	}
	if params.MinCollateralRatioBps == 0 {
		params = DefaultRiskParameters()
	}
	e.params = params
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
	e.emitter.Emit(lendingEvent{evt: event})
}

// ModuleAddress returns the liquidity vault address.
func (e *Engine) ModuleAddress() [20]byte { return e.moduleAddress }

// CollateralAddress returns the collateral vault address.
func (e *Engine) CollateralAddress() [20]byte { return e.collateralAddress }

func (e *Engine) guard() error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	return nativecommon.Guard(e.pauses, moduleName)
}

func (e *Engine) ensurePool(asset string) (*Pool, error) {
	pool, err := e.state.LendingGetPool(asset)
	if err != nil {
		return nil, err
	}
	if pool == nil {
		pool = &Pool{Asset: asset, MinCollateralRatioBps: e.params.MinCollateralRatioBps}
	}
	if pool.TotalCollateral == nil {
		pool.TotalCollateral = big.NewInt(0)
	}
	if pool.TotalLoans == nil {
		pool.TotalLoans = big.NewInt(0)
	}
	if pool.AvailableLiquidity == nil {
		pool.AvailableLiquidity = big.NewInt(0)
	}
	if pool.Reserves == nil {
		pool.Reserves = big.NewInt(0)
	}
	if pool.MinCollateralRatioBps == 0 {
		pool.MinCollateralRatioBps = e.params.MinCollateralRatioBps
	}
	return pool, nil
}

func (e *Engine) ensurePosition(asset string, addr [20]byte) (*Position, error) {
	position, err := e.state.LendingGetPosition(asset, addr)
	if err != nil {
		return nil, err
	}
	if position == nil {
		position = &Position{Address: addr, Asset: asset}
	}
	if position.Collateral == nil {
		position.Collateral = big.NewInt(0)
	}
	if position.Principal == nil {
		position.Principal = big.NewInt(0)
	}
	if position.AccruedInterest == nil {
		position.AccruedInterest = big.NewInt(0)
	}
	if position.LiquiditySupplied == nil {
		position.LiquiditySupplied = big.NewInt(0)
	}
	return position, nil
}

func (e *Engine) loadAccount(addr [20]byte) (*types.Account, error) {
	acc, err := e.state.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		acc = types.NewAccount()
	}
	return acc, nil
}

// transfer moves amount of asset between two accounts, failing with
// ErrInsufficientBalance when the source cannot cover it.
func (e *Engine) transfer(from, to [20]byte, asset string, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	fromAcc, err := e.loadAccount(from)
	if err != nil {
		return err
	}
	toAcc, err := e.loadAccount(to)
	if err != nil {
		return err
	}
	if !fromAcc.Debit(asset, amount) {
		return ErrInsufficientBalance
	}
	toAcc.Credit(asset, amount)
	if err := e.state.PutAccount(from, fromAcc); err != nil {
		return err
	}
	return e.state.PutAccount(to, toAcc)
}

// accrue folds simple interest since the position's last update into its
// accrued-interest balance, priced by the rate model at current pool
// utilization. A missing model leaves the position unpriced.
func (e *Engine) accrue(position *Position, pool *Pool, now int64) error {
	elapsed := uint64(0)
	if now > 0 && uint64(now) > position.LastUpdate {
		elapsed = uint64(now) - position.LastUpdate
	}
	defer func() { position.LastUpdate = uint64(now) }()
	if elapsed == 0 || position.Principal.Sign() == 0 {
		return nil
	}
	model, err := e.state.RatesGetModel()
	if err != nil {
		return err
	}
	if model == nil {
		return nil
	}
	utilization := rates.Utilization(pool.TotalLoans, pool.AvailableLiquidity)
	interest := rates.AccruedInterest(position.Principal, model.RateBps(utilization), elapsed)
	if interest.Sign() > 0 {
		position.AccruedInterest = new(big.Int).Add(position.AccruedInterest, interest)
	}
	return nil
}

// DepositCollateral locks collateral for the caller inside the collateral
// vault, creating the position lazily.
func (e *Engine) DepositCollateral(caller [20]byte, asset string, amount *big.Int) error {
	if err := e.guard(); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	normalized, err := types.NormalizeAsset(asset)
	if err != nil {
		return err
	}
	pool, err := e.ensurePool(normalized)
	if err != nil {
		return err
	}
	position, err := e.ensurePosition(normalized, caller)
	if err != nil {
		return err
	}
	now := e.now()
	if err := e.accrue(position, pool, now); err != nil {
		return err
	}
	if err := e.transfer(caller, e.collateralAddress, normalized, amount); err != nil {
		return err
	}
	position.Collateral = new(big.Int).Add(position.Collateral, amount)
	pool.TotalCollateral = new(big.Int).Add(pool.TotalCollateral, amount)
	if err := e.state.LendingPutPosition(position); err != nil {
		return err
	}
	if err := e.state.LendingPutPool(pool); err != nil {
		return err
	}
	e.emit(newPositionEvent(EventTypeCollateralDeposited, position, amount, now))
	return nil
}

// WithdrawCollateral releases collateral back to the caller while keeping
// any open loan above the pool's collateral ratio floor.
func (e *Engine) WithdrawCollateral(caller [20]byte, asset string, amount *big.Int) error {
	if err := e.guard(); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	normalized, err := types.NormalizeAsset(asset)
	if err != nil {
		return err
	}
	pool, err := e.ensurePool(normalized)
	if err != nil {
		return err
	}
	position, err := e.ensurePosition(normalized, caller)
	if err != nil {
		return err
	}
	if position.Collateral.Cmp(amount) < 0 {
		return ErrInsufficientCollateral
	}
	now := e.now()
	if err := e.accrue(position, pool, now); err != nil {
		return err
	}
	remaining := new(big.Int).Sub(position.Collateral, amount)
	if !collateralSufficient(remaining, position.Debt(), pool.MinCollateralRatioBps) {
		return ErrUndercollateralized
	}
	if err := e.transfer(e.collateralAddress, caller, normalized, amount); err != nil {
		return err
	}
	position.Collateral = remaining
	pool.TotalCollateral = new(big.Int).Sub(pool.TotalCollateral, amount)
	if err := e.state.LendingPutPosition(position); err != nil {
		return err
	}
	if err := e.state.LendingPutPool(pool); err != nil {
		return err
	}
	e.emit(newPositionEvent(EventTypeCollateralWithdrawn, position, amount, now))
	return nil
}

// SupplyLiquidity transfers idle funds from the caller into the pool's
// liquidity vault, making them borrowable.
func (e *Engine) SupplyLiquidity(caller [20]byte, asset string, amount *big.Int) error {
	if err := e.guard(); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	normalized, err := types.NormalizeAsset(asset)
	if err != nil {
		return err
	}
	pool, err := e.ensurePool(normalized)
	if err != nil {
		return err
	}
	position, err := e.ensurePosition(normalized, caller)
	if err != nil {
		return err
	}
	now := e.now()
	if err := e.accrue(position, pool, now); err != nil {
		return err
	}
	if err := e.transfer(caller, e.moduleAddress, normalized, amount); err != nil {
		return err
	}
	position.LiquiditySupplied = new(big.Int).Add(position.LiquiditySupplied, amount)
	pool.AvailableLiquidity = new(big.Int).Add(pool.AvailableLiquidity, amount)
	if err := e.state.LendingPutPosition(position); err != nil {
		return err
	}
	if err := e.state.LendingPutPool(pool); err != nil {
		return err
	}
	e.emit(newPositionEvent(EventTypeLiquiditySupplied, position, amount, now))
	return nil
}

// WithdrawLiquidity returns previously supplied funds to the caller, bounded
// by the caller's supplied balance and the pool's idle liquidity.
func (e *Engine) WithdrawLiquidity(caller [20]byte, asset string, amount *big.Int) error {
	if err := e.guard(); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	normalized, err := types.NormalizeAsset(asset)
	if err != nil {
		return err
	}
	pool, err := e.ensurePool(normalized)
	if err != nil {
		return err
	}
	position, err := e.ensurePosition(normalized, caller)
	if err != nil {
		return err
	}
	if position.LiquiditySupplied.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	if pool.AvailableLiquidity.Cmp(amount) < 0 {
		return ErrPoolExhausted
	}
	now := e.now()
	if err := e.accrue(position, pool, now); err != nil {
		return err
	}
	if err := e.transfer(e.moduleAddress, caller, normalized, amount); err != nil {
		return err
	}
	position.LiquiditySupplied = new(big.Int).Sub(position.LiquiditySupplied, amount)
	pool.AvailableLiquidity = new(big.Int).Sub(pool.AvailableLiquidity, amount)
	if err := e.state.LendingPutPosition(position); err != nil {
		return err
	}
	if err := e.state.LendingPutPool(pool); err != nil {
		return err
	}
	e.emit(newPositionEvent(EventTypeLiquidityWithdrawn, position, amount, now))
	return nil
}

// Borrow draws pool liquidity against the caller's collateral. The projected
// debt must stay above the pool's collateral ratio floor.
func (e *Engine) Borrow(caller [20]byte, asset string, amount *big.Int) error {
	if err := e.guard(); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	normalized, err := types.NormalizeAsset(asset)
	if err != nil {
		return err
	}
	pool, err := e.ensurePool(normalized)
	if err != nil {
		return err
	}
	position, err := e.ensurePosition(normalized, caller)
	if err != nil {
		return err
	}
	now := e.now()
	if err := e.accrue(position, pool, now); err != nil {
		return err
	}
	projectedDebt := new(big.Int).Add(position.Debt(), amount)
	if !collateralSufficient(position.Collateral, projectedDebt, pool.MinCollateralRatioBps) {
		return ErrInsufficientCollateral
	}
	if pool.AvailableLiquidity.Cmp(amount) < 0 {
		return ErrPoolExhausted
	}
	if err := e.transfer(e.moduleAddress, caller, normalized, amount); err != nil {
		return err
	}
	position.Principal = new(big.Int).Add(position.Principal, amount)
	pool.TotalLoans = new(big.Int).Add(pool.TotalLoans, amount)
	pool.AvailableLiquidity = new(big.Int).Sub(pool.AvailableLiquidity, amount)
	if err := e.state.LendingPutPosition(position); err != nil {
		return err
	}
	if err := e.state.LendingPutPool(pool); err != nil {
		return err
	}
	e.emit(newPositionEvent(EventTypeBorrowed, position, amount, now))
	return nil
}

// Repay reduces the caller's debt, interest first. The repayment is capped
// at the outstanding debt so excess funds never leave the caller's account;
// interest collected is routed to the pool reserves. The amount actually
// repaid is returned.
func (e *Engine) Repay(caller [20]byte, asset string, amount *big.Int) (*big.Int, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	normalized, err := types.NormalizeAsset(asset)
	if err != nil {
		return nil, err
	}
	pool, err := e.ensurePool(normalized)
	if err != nil {
		return nil, err
	}
	position, err := e.ensurePosition(normalized, caller)
	if err != nil {
		return nil, err
	}
	now := e.now()
	if err := e.accrue(position, pool, now); err != nil {
		return nil, err
	}
	debt := position.Debt()
	if debt.Sign() == 0 {
		return nil, ErrNoOutstandingDebt
	}
	actual := minBigInt(amount, debt)
	interestPaid := minBigInt(actual, position.AccruedInterest)
	principalPaid := new(big.Int).Sub(actual, interestPaid)
	if err := e.transfer(caller, e.moduleAddress, normalized, actual); err != nil {
		return nil, err
	}
	position.AccruedInterest = new(big.Int).Sub(position.AccruedInterest, interestPaid)
	position.Principal = new(big.Int).Sub(position.Principal, principalPaid)
	if position.Principal.Sign() == 0 {
		position.AccruedInterest = big.NewInt(0)
	}
	pool.TotalLoans = new(big.Int).Sub(pool.TotalLoans, principalPaid)
	pool.AvailableLiquidity = new(big.Int).Add(pool.AvailableLiquidity, principalPaid)
	pool.Reserves = new(big.Int).Add(pool.Reserves, interestPaid)
	if err := e.state.LendingPutPosition(position); err != nil {
		return nil, err
	}
	if err := e.state.LendingPutPool(pool); err != nil {
		return nil, err
	}
	e.emit(newPositionEvent(EventTypeRepaid, position, actual, now))
	return actual, nil
}

// CreateLoanRequest opens a peer-to-peer borrow offer backed by free
// collateral the caller already holds. One live request per borrower.
func (e *Engine) CreateLoanRequest(caller [20]byte, asset string, amount *big.Int, rateBps, durationSeconds uint64, collateralAmount *big.Int) (*LoanRequest, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 || collateralAmount == nil || collateralAmount.Sign() <= 0 || durationSeconds == 0 {
		return nil, ErrInvalidAmount
	}
	if rateBps > 10_000 {
		return nil, ErrInvalidRate
	}
	normalized, err := types.NormalizeAsset(asset)
	if err != nil {
		return nil, err
	}
	existing, ok, err := e.state.LendingGetRequest(caller)
	if err != nil {
		return nil, err
	}
	if ok && !existing.Fulfilled {
		return nil, ErrLoanRequestOpen
	}
	pool, err := e.ensurePool(normalized)
	if err != nil {
		return nil, err
	}
	position, err := e.ensurePosition(normalized, caller)
	if err != nil {
		return nil, err
	}
	now := e.now()
	if err := e.accrue(position, pool, now); err != nil {
		return nil, err
	}
	free := new(big.Int).Sub(position.Collateral, requiredCollateral(position.Debt(), pool.MinCollateralRatioBps))
	if free.Cmp(collateralAmount) < 0 {
		return nil, ErrInsufficientCollateral
	}
	id, err := e.state.LendingNextRequestID()
	if err != nil {
		return nil, err
	}
	request := &LoanRequest{
		ID:               id,
		Borrower:         caller,
		Asset:            normalized,
		Amount:           new(big.Int).Set(amount),
		RateBps:          rateBps,
		DurationSeconds:  durationSeconds,
		CollateralAmount: new(big.Int).Set(collateralAmount),
		CreatedAt:        uint64(now),
	}
	if err := e.state.LendingPutRequest(request); err != nil {
		return nil, err
	}
	if err := e.state.LendingPutPosition(position); err != nil {
		return nil, err
	}
	e.emit(newRequestEvent(EventTypeLoanRequestCreated, request, now))
	return request.Clone(), nil
}

// FulfillLoan lets any third party fund a borrower's open request. The
// fulfiller pays the borrower directly; the borrower's debt grows by the
// requested amount and must remain covered by their collateral.
func (e *Engine) FulfillLoan(caller, borrower [20]byte) (*LoanRequest, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}
	if caller == borrower {
		return nil, ErrSelfFulfil
	}
	request, ok, err := e.state.LendingGetRequest(borrower)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLoanRequestNotFound
	}
	if request.Fulfilled {
		return nil, ErrLoanAlreadyFulfilled
	}
	pool, err := e.ensurePool(request.Asset)
	if err != nil {
		return nil, err
	}
	position, err := e.ensurePosition(request.Asset, borrower)
	if err != nil {
		return nil, err
	}
	now := e.now()
	if err := e.accrue(position, pool, now); err != nil {
		return nil, err
	}
	projectedDebt := new(big.Int).Add(position.Debt(), request.Amount)
	if !collateralSufficient(position.Collateral, projectedDebt, pool.MinCollateralRatioBps) {
		return nil, ErrUndercollateralized
	}
	if err := e.transfer(caller, borrower, request.Asset, request.Amount); err != nil {
		return nil, err
	}
	request.Fulfilled = true
	request.Fulfiller = caller
	position.Principal = new(big.Int).Add(position.Principal, request.Amount)
	if err := e.state.LendingPutRequest(request); err != nil {
		return nil, err
	}
	if err := e.state.LendingPutPosition(position); err != nil {
		return nil, err
	}
	e.emit(newRequestEvent(EventTypeLoanFulfilled, request, now))
	return request.Clone(), nil
}

// Liquidate lets any caller seize an undercollateralized position. The
// liquidator repays the full debt to the pool and receives all collateral;
// the position resets to zero. Eligibility is strict: a position exactly at
// the ratio floor is not liquidatable. The emitted event records the 24-hour
// dispute-window deadline for off-chain handling.
func (e *Engine) Liquidate(caller, user [20]byte, asset string) (repaid, seized *big.Int, err error) {
	if err := e.guard(); err != nil {
		return nil, nil, err
	}
	normalized, err := types.NormalizeAsset(asset)
	if err != nil {
		return nil, nil, err
	}
	pool, err := e.ensurePool(normalized)
	if err != nil {
		return nil, nil, err
	}
	position, err := e.ensurePosition(normalized, user)
	if err != nil {
		return nil, nil, err
	}
	now := e.now()
	if err := e.accrue(position, pool, now); err != nil {
		return nil, nil, err
	}
	debt := position.Debt()
	if debt.Sign() == 0 {
		return nil, nil, ErrNoOutstandingDebt
	}
	if position.Collateral.Cmp(requiredCollateral(debt, pool.MinCollateralRatioBps)) >= 0 {
		return nil, nil, ErrNotLiquidatable
	}
	seizeAmount := new(big.Int).Set(position.Collateral)
	if err := e.transfer(caller, e.moduleAddress, normalized, debt); err != nil {
		return nil, nil, err
	}
	if err := e.transfer(e.collateralAddress, caller, normalized, seizeAmount); err != nil {
		return nil, nil, err
	}
	pool.TotalLoans = new(big.Int).Sub(pool.TotalLoans, position.Principal)
	pool.AvailableLiquidity = new(big.Int).Add(pool.AvailableLiquidity, position.Principal)
	pool.Reserves = new(big.Int).Add(pool.Reserves, position.AccruedInterest)
	pool.TotalCollateral = new(big.Int).Sub(pool.TotalCollateral, seizeAmount)
	position.Principal = big.NewInt(0)
	position.AccruedInterest = big.NewInt(0)
	position.Collateral = big.NewInt(0)
	if err := e.state.LendingPutPosition(position); err != nil {
		return nil, nil, err
	}
	if err := e.state.LendingPutPool(pool); err != nil {
		return nil, nil, err
	}
	e.emit(newLiquidationEvent(caller, user, normalized, debt, seizeAmount, now))
	return debt, seizeAmount, nil
}

// Position returns the committed position for an address. Missing positions
// read as zeroed records; an intentional not-found-to-zero getter.
func (e *Engine) Position(asset string, addr [20]byte) (*Position, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	normalized, err := types.NormalizeAsset(asset)
	if err != nil {
		return nil, err
	}
	position, err := e.ensurePosition(normalized, addr)
	if err != nil {
		return nil, err
	}
	return position.Clone(), nil
}

// Pool returns the committed pool for an asset, zeroed when absent.
func (e *Engine) Pool(asset string) (*Pool, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	normalized, err := types.NormalizeAsset(asset)
	if err != nil {
		return nil, err
	}
	pool, err := e.ensurePool(normalized)
	if err != nil {
		return nil, err
	}
	return pool.Clone(), nil
}

// Request returns the borrower's most recent loan request.
func (e *Engine) Request(borrower [20]byte) (*LoanRequest, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	request, ok, err := e.state.LendingGetRequest(borrower)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLoanRequestNotFound
	}
	return request.Clone(), nil
}

// CreditHint scales a base amount by the borrower's trust score when a trust
// view is wired. It is a read-only pricing hint and never gates an
// operation.
func (e *Engine) CreditHint(addr [20]byte, base *big.Int) *big.Int {
	if e == nil || e.trustView == nil {
		return cloneBigInt(base)
	}
	score, err := e.trustView.Score(addr)
	if err != nil || score == nil {
		return cloneBigInt(base)
	}
	return trust.CreditLimit(base, score.Value)
}
