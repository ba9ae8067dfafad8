package lending

import (
	"errors"
	"fmt"
	"math/big"
	"testing"

	"credchain/core/types"
	"credchain/native/rates"
)

type mockState struct {
	pools     map[string]*Pool
	positions map[string]*Position
	requests  map[[20]byte]*LoanRequest
	accounts  map[[20]byte]*types.Account
	model     *rates.Model
	seq       uint64
}

func newMockState() *mockState {
	return &mockState{
		pools:     make(map[string]*Pool),
		positions: make(map[string]*Position),
		requests:  make(map[[20]byte]*LoanRequest),
		accounts:  make(map[[20]byte]*types.Account),
		model:     rates.DefaultModel(),
	}
}

func positionKey(asset string, addr [20]byte) string {
	return fmt.Sprintf("%s/%x", asset, addr)
}

func (m *mockState) LendingGetPool(asset string) (*Pool, error) {
	pool, ok := m.pools[asset]
	if !ok {
		return nil, nil
	}
	return pool.Clone(), nil
}

func (m *mockState) LendingPutPool(pool *Pool) error {
	m.pools[pool.Asset] = pool.Clone()
	return nil
}

func (m *mockState) LendingGetPosition(asset string, addr [20]byte) (*Position, error) {
	position, ok := m.positions[positionKey(asset, addr)]
	if !ok {
		return nil, nil
	}
	return position.Clone(), nil
}

func (m *mockState) LendingPutPosition(position *Position) error {
	m.positions[positionKey(position.Asset, position.Address)] = position.Clone()
	return nil
}

func (m *mockState) LendingGetRequest(borrower [20]byte) (*LoanRequest, bool, error) {
	request, ok := m.requests[borrower]
	if !ok {
		return nil, false, nil
	}
	return request.Clone(), true, nil
}

func (m *mockState) LendingPutRequest(request *LoanRequest) error {
	m.requests[request.Borrower] = request.Clone()
	return nil
}

func (m *mockState) LendingNextRequestID() (uint64, error) {
	m.seq++
	return m.seq, nil
}

func (m *mockState) RatesGetModel() (*rates.Model, error) { return m.model.Clone(), nil }

func (m *mockState) GetAccount(addr [20]byte) (*types.Account, error) {
	account, ok := m.accounts[addr]
	if !ok {
		return nil, nil
	}
	return account.Clone(), nil
}

func (m *mockState) PutAccount(addr [20]byte, account *types.Account) error {
	m.accounts[addr] = account.Clone()
	return nil
}

func (m *mockState) fund(addr [20]byte, amount int64) {
	account, ok := m.accounts[addr]
	if !ok {
		account = types.NewAccount()
		m.accounts[addr] = account
	}
	account.Credit(types.BaseAsset, big.NewInt(amount))
}

func (m *mockState) balance(addr [20]byte) *big.Int {
	account, ok := m.accounts[addr]
	if !ok {
		return big.NewInt(0)
	}
	return account.Balance(types.BaseAsset)
}

func addr(b byte) [20]byte {
	var out [20]byte
	out[19] = b
	return out
}

func newTestEngine(t *testing.T) (*Engine, *mockState, *int64) {
	t.Helper()
	state := newMockState()
	now := int64(1_700_000_000)
	engine := NewEngine()
	engine.SetState(state)
	engine.SetNowFunc(func() int64 { return now })
	return engine, state, &now
}

func TestDepositWithdrawRoundTrip(t *testing.T) {
	engine, state, _ := newTestEngine(t)
	alice := addr(1)
	state.fund(alice, 1_000)

	if err := engine.DepositCollateral(alice, "CRD", big.NewInt(600)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if got := state.balance(alice); got.Cmp(big.NewInt(400)) != 0 {
		t.Fatalf("caller balance after deposit = %s, want 400", got)
	}
	if got := state.balance(engine.CollateralAddress()); got.Cmp(big.NewInt(600)) != 0 {
		t.Fatalf("vault balance = %s, want 600", got)
	}
	position, err := engine.Position("CRD", alice)
	if err != nil {
		t.Fatalf("position: %v", err)
	}
	if position.Collateral.Cmp(big.NewInt(600)) != 0 {
		t.Fatalf("collateral = %s, want 600", position.Collateral)
	}

	if err := engine.WithdrawCollateral(alice, "CRD", big.NewInt(600)); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if got := state.balance(alice); got.Cmp(big.NewInt(1_000)) != 0 {
		t.Fatalf("caller balance after withdraw = %s, want 1000", got)
	}
	if got := state.balance(engine.CollateralAddress()); got.Sign() != 0 {
		t.Fatalf("vault balance after withdraw = %s, want 0", got)
	}

	if err := engine.WithdrawCollateral(alice, "CRD", big.NewInt(1)); !errors.Is(err, ErrInsufficientCollateral) {
		t.Fatalf("expected ErrInsufficientCollateral, got %v", err)
	}
}

func TestBorrowAgainstCollateralLimit(t *testing.T) {
	engine, state, _ := newTestEngine(t)
	alice, lp := addr(1), addr(2)
	state.fund(alice, 20_000)
	state.fund(lp, 50_000)

	if err := engine.SupplyLiquidity(lp, "CRD", big.NewInt(50_000)); err != nil {
		t.Fatalf("supply: %v", err)
	}
	if err := engine.DepositCollateral(alice, "CRD", big.NewInt(20_000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	// 20000 collateral at a 150% floor covers a debt of at most 13333.
	if err := engine.Borrow(alice, "CRD", big.NewInt(13_334)); !errors.Is(err, ErrInsufficientCollateral) {
		t.Fatalf("expected ErrInsufficientCollateral at 13334, got %v", err)
	}
	if err := engine.Borrow(alice, "CRD", big.NewInt(13_333)); err != nil {
		t.Fatalf("borrow 13333: %v", err)
	}
	if got := state.balance(alice); got.Cmp(big.NewInt(13_333)) != 0 {
		t.Fatalf("borrower balance = %s, want 13333", got)
	}

	pool, err := engine.Pool("CRD")
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	if pool.TotalLoans.Cmp(big.NewInt(13_333)) != 0 {
		t.Fatalf("total loans = %s, want 13333", pool.TotalLoans)
	}
	if pool.AvailableLiquidity.Cmp(big.NewInt(36_667)) != 0 {
		t.Fatalf("available liquidity = %s, want 36667", pool.AvailableLiquidity)
	}
}

func TestBorrowPoolExhausted(t *testing.T) {
	engine, state, _ := newTestEngine(t)
	alice, lp := addr(1), addr(2)
	state.fund(alice, 100_000)
	state.fund(lp, 100)

	if err := engine.SupplyLiquidity(lp, "CRD", big.NewInt(100)); err != nil {
		t.Fatalf("supply: %v", err)
	}
	if err := engine.DepositCollateral(alice, "CRD", big.NewInt(100_000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := engine.Borrow(alice, "CRD", big.NewInt(101)); !errors.Is(err, ErrPoolExhausted) {
		t.Fatalf("expected ErrPoolExhausted, got %v", err)
	}
}

func TestRepayInterestFirstAndCapped(t *testing.T) {
	engine, state, _ := newTestEngine(t)
	alice, lp := addr(1), addr(2)
	state.fund(alice, 10_000)
	state.fund(lp, 10_000)

	if err := engine.SupplyLiquidity(lp, "CRD", big.NewInt(10_000)); err != nil {
		t.Fatalf("supply: %v", err)
	}
	if err := engine.DepositCollateral(alice, "CRD", big.NewInt(3_000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := engine.Borrow(alice, "CRD", big.NewInt(1_000)); err != nil {
		t.Fatalf("borrow: %v", err)
	}

	// Seed accrued interest directly so the split is deterministic.
	stored := state.positions[positionKey("CRD", alice)]
	stored.AccruedInterest = big.NewInt(50)

	applied, err := engine.Repay(alice, "CRD", big.NewInt(2_000))
	if err != nil {
		t.Fatalf("repay: %v", err)
	}
	if applied.Cmp(big.NewInt(1_050)) != 0 {
		t.Fatalf("applied = %s, want capped 1050", applied)
	}

	position, _ := engine.Position("CRD", alice)
	if position.Debt().Sign() != 0 {
		t.Fatalf("debt after full repay = %s, want 0", position.Debt())
	}
	pool, _ := engine.Pool("CRD")
	if pool.Reserves.Cmp(big.NewInt(50)) != 0 {
		t.Fatalf("reserves = %s, want interest 50", pool.Reserves)
	}
	if pool.TotalLoans.Sign() != 0 {
		t.Fatalf("total loans = %s, want 0", pool.TotalLoans)
	}
	if pool.AvailableLiquidity.Cmp(big.NewInt(10_000)) != 0 {
		t.Fatalf("available liquidity = %s, want 10000", pool.AvailableLiquidity)
	}

	if _, err := engine.Repay(alice, "CRD", big.NewInt(1)); !errors.Is(err, ErrNoOutstandingDebt) {
		t.Fatalf("expected ErrNoOutstandingDebt, got %v", err)
	}
}

func TestWithdrawCollateralKeepsRatio(t *testing.T) {
	engine, state, _ := newTestEngine(t)
	alice, lp := addr(1), addr(2)
	state.fund(alice, 20_000)
	state.fund(lp, 20_000)

	if err := engine.SupplyLiquidity(lp, "CRD", big.NewInt(20_000)); err != nil {
		t.Fatalf("supply: %v", err)
	}
	if err := engine.DepositCollateral(alice, "CRD", big.NewInt(20_000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := engine.Borrow(alice, "CRD", big.NewInt(10_000)); err != nil {
		t.Fatalf("borrow: %v", err)
	}

	// 10000 debt requires exactly 15000 collateral; dropping to the floor is
	// allowed, going below it is not.
	if err := engine.WithdrawCollateral(alice, "CRD", big.NewInt(5_000)); err != nil {
		t.Fatalf("withdraw to floor: %v", err)
	}
	if err := engine.WithdrawCollateral(alice, "CRD", big.NewInt(1)); !errors.Is(err, ErrUndercollateralized) {
		t.Fatalf("expected ErrUndercollateralized, got %v", err)
	}
}

func TestLiquidationStrictThreshold(t *testing.T) {
	engine, state, _ := newTestEngine(t)
	alice, lp, liquidator := addr(1), addr(2), addr(3)
	state.fund(alice, 15_000)
	state.fund(lp, 20_000)
	state.fund(liquidator, 20_000)

	if err := engine.SupplyLiquidity(lp, "CRD", big.NewInt(20_000)); err != nil {
		t.Fatalf("supply: %v", err)
	}
	if err := engine.DepositCollateral(alice, "CRD", big.NewInt(15_000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := engine.Borrow(alice, "CRD", big.NewInt(10_000)); err != nil {
		t.Fatalf("borrow: %v", err)
	}

	// 15000 collateral against 10000 debt sits exactly at the 150% floor.
	if _, _, err := engine.Liquidate(liquidator, alice, "CRD"); !errors.Is(err, ErrNotLiquidatable) {
		t.Fatalf("expected ErrNotLiquidatable at threshold, got %v", err)
	}

	// One unit below the floor flips eligibility.
	stored := state.positions[positionKey("CRD", alice)]
	stored.Collateral = big.NewInt(14_999)

	repaid, seized, err := engine.Liquidate(liquidator, alice, "CRD")
	if err != nil {
		t.Fatalf("liquidate: %v", err)
	}
	if repaid.Cmp(big.NewInt(10_000)) != 0 {
		t.Fatalf("repaid = %s, want full debt 10000", repaid)
	}
	if seized.Cmp(big.NewInt(14_999)) != 0 {
		t.Fatalf("seized = %s, want full collateral 14999", seized)
	}

	position, _ := engine.Position("CRD", alice)
	if position.Collateral.Sign() != 0 || position.Debt().Sign() != 0 {
		t.Fatalf("position not zeroed: collateral=%s debt=%s", position.Collateral, position.Debt())
	}
	pool, _ := engine.Pool("CRD")
	if pool.TotalLoans.Sign() != 0 {
		t.Fatalf("total loans = %s, want 0", pool.TotalLoans)
	}
	if pool.AvailableLiquidity.Cmp(big.NewInt(20_000)) != 0 {
		t.Fatalf("available liquidity = %s, want restored 20000", pool.AvailableLiquidity)
	}
	// Liquidator paid 10000 and received 14999.
	if got := state.balance(liquidator); got.Cmp(big.NewInt(24_999)) != 0 {
		t.Fatalf("liquidator balance = %s, want 24999", got)
	}
}

func TestLiquidateDebtFreePosition(t *testing.T) {
	engine, state, _ := newTestEngine(t)
	alice, liquidator := addr(1), addr(2)
	state.fund(alice, 1_000)
	if err := engine.DepositCollateral(alice, "CRD", big.NewInt(1_000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if _, _, err := engine.Liquidate(liquidator, alice, "CRD"); !errors.Is(err, ErrNoOutstandingDebt) {
		t.Fatalf("expected ErrNoOutstandingDebt, got %v", err)
	}
}

func TestLoanRequestLifecycle(t *testing.T) {
	engine, state, _ := newTestEngine(t)
	alice, bob := addr(1), addr(2)
	state.fund(alice, 20_000)
	state.fund(bob, 5_000)

	if err := engine.DepositCollateral(alice, "CRD", big.NewInt(20_000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	if _, err := engine.CreateLoanRequest(alice, "CRD", big.NewInt(5_000), 500, 86_400, big.NewInt(30_000)); !errors.Is(err, ErrInsufficientCollateral) {
		t.Fatalf("expected ErrInsufficientCollateral for oversized backing, got %v", err)
	}

	request, err := engine.CreateLoanRequest(alice, "CRD", big.NewInt(5_000), 500, 86_400, big.NewInt(10_000))
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	if request.ID == 0 || request.Fulfilled {
		t.Fatalf("unexpected request record: %+v", request)
	}

	if _, err := engine.CreateLoanRequest(alice, "CRD", big.NewInt(1_000), 500, 86_400, big.NewInt(2_000)); !errors.Is(err, ErrLoanRequestOpen) {
		t.Fatalf("expected ErrLoanRequestOpen, got %v", err)
	}
	if _, err := engine.FulfillLoan(alice, alice); !errors.Is(err, ErrSelfFulfil) {
		t.Fatalf("expected ErrSelfFulfil, got %v", err)
	}

	fulfilled, err := engine.FulfillLoan(bob, alice)
	if err != nil {
		t.Fatalf("fulfill: %v", err)
	}
	if !fulfilled.Fulfilled || fulfilled.Fulfiller != bob {
		t.Fatalf("request not marked fulfilled: %+v", fulfilled)
	}
	if got := state.balance(alice); got.Cmp(big.NewInt(5_000)) != 0 {
		t.Fatalf("borrower balance = %s, want 5000", got)
	}
	if got := state.balance(bob); got.Sign() != 0 {
		t.Fatalf("fulfiller balance = %s, want 0", got)
	}
	position, _ := engine.Position("CRD", alice)
	if position.Principal.Cmp(big.NewInt(5_000)) != 0 {
		t.Fatalf("principal = %s, want 5000", position.Principal)
	}

	if _, err := engine.FulfillLoan(bob, alice); !errors.Is(err, ErrLoanAlreadyFulfilled) {
		t.Fatalf("expected ErrLoanAlreadyFulfilled, got %v", err)
	}
}

func TestInterestAccruesOverTime(t *testing.T) {
	engine, state, now := newTestEngine(t)
	// Flat 5% curve keeps the expected interest independent of utilization.
	state.model = &rates.Model{BaseRateBps: 500, OptimalUtilizationBps: 8_000, Slope1Bps: 0, Slope2Bps: 0}

	alice, lp := addr(1), addr(2)
	state.fund(alice, 200_000)
	state.fund(lp, 200_000)

	if err := engine.SupplyLiquidity(lp, "CRD", big.NewInt(200_000)); err != nil {
		t.Fatalf("supply: %v", err)
	}
	if err := engine.DepositCollateral(alice, "CRD", big.NewInt(200_000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := engine.Borrow(alice, "CRD", big.NewInt(100_000)); err != nil {
		t.Fatalf("borrow: %v", err)
	}

	*now += rates.SecondsPerYear

	applied, err := engine.Repay(alice, "CRD", big.NewInt(1))
	if err != nil {
		t.Fatalf("repay: %v", err)
	}
	if applied.Cmp(big.NewInt(1)) != 0 {
		t.Fatalf("applied = %s, want 1", applied)
	}
	position, _ := engine.Position("CRD", alice)
	// One year at 5% on 100000 accrues 5000; the single repaid unit counts
	// against interest first.
	if position.AccruedInterest.Cmp(big.NewInt(4_999)) != 0 {
		t.Fatalf("accrued interest = %s, want 4999", position.AccruedInterest)
	}
	if position.Principal.Cmp(big.NewInt(100_000)) != 0 {
		t.Fatalf("principal = %s, want untouched 100000", position.Principal)
	}
}

func TestCreditHintNeverGates(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	// Without a trust view the hint passes the base through unchanged.
	hint := engine.CreditHint(addr(1), big.NewInt(10_000))
	if hint.Cmp(big.NewInt(10_000)) != 0 {
		t.Fatalf("hint = %s, want passthrough 10000", hint)
	}
}

func TestRequiredCollateralTruncates(t *testing.T) {
	// 13333 * 15000 / 10000 = 19999.5, truncated to 19999.
	required := requiredCollateral(big.NewInt(13_333), 15_000)
	if required.Cmp(big.NewInt(19_999)) != 0 {
		t.Fatalf("required = %s, want 19999", required)
	}
	if !collateralSufficient(big.NewInt(20_000), big.NewInt(13_333), 15_000) {
		t.Fatal("20000 collateral should cover 13333 debt")
	}
	if collateralSufficient(big.NewInt(20_000), big.NewInt(13_334), 15_000) {
		t.Fatal("20000 collateral should not cover 13334 debt")
	}
}
