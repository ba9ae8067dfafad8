package trust

import (
	"errors"
	"math/big"
	"testing"
)

type mockState struct {
	scores map[[20]byte]*Score
}

func newMockState() *mockState {
	return &mockState{scores: make(map[[20]byte]*Score)}
}

func (m *mockState) TrustGetScore(addr [20]byte) (*Score, bool, error) {
	score, ok := m.scores[addr]
	if !ok {
		return nil, false, nil
	}
	return score.Clone(), true, nil
}

func (m *mockState) TrustPutScore(score *Score) error {
	m.scores[score.Address] = score.Clone()
	return nil
}

func newTestEngine(t *testing.T) (*Engine, *mockState) {
	t.Helper()
	state := newMockState()
	engine := NewEngine()
	engine.SetState(state)
	engine.SetNowFunc(func() int64 { return 1_700_000_000 })
	return engine, state
}

func addr(b byte) [20]byte {
	var out [20]byte
	out[19] = b
	return out
}

func TestRegisterStartsAtInitialScore(t *testing.T) {
	engine, _ := newTestEngine(t)
	score, err := engine.Register(addr(1))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if score.Value != InitialScore {
		t.Fatalf("expected initial score %d, got %d", InitialScore, score.Value)
	}
	if _, err := engine.Register(addr(1)); !errors.Is(err, ErrAlreadyRegistered) {
		t.Fatalf("expected ErrAlreadyRegistered, got %v", err)
	}
}

func TestEndorseRules(t *testing.T) {
	engine, _ := newTestEngine(t)
	alice, bob := addr(1), addr(2)
	if _, err := engine.Register(alice); err != nil {
		t.Fatalf("register alice: %v", err)
	}

	if err := engine.Endorse(alice, alice); !errors.Is(err, ErrSelfEndorsement) {
		t.Fatalf("expected ErrSelfEndorsement, got %v", err)
	}
	if err := engine.Endorse(alice, bob); !errors.Is(err, ErrScoreNotFound) {
		t.Fatalf("expected ErrScoreNotFound for unregistered target, got %v", err)
	}

	if _, err := engine.Register(bob); err != nil {
		t.Fatalf("register bob: %v", err)
	}
	if err := engine.Endorse(alice, bob); err != nil {
		t.Fatalf("endorse: %v", err)
	}
	score, err := engine.Score(bob)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if score.Value != InitialScore+EndorseDelta {
		t.Fatalf("expected score %d, got %d", InitialScore+EndorseDelta, score.Value)
	}
	if !score.EndorsedBy(alice) {
		t.Fatal("expected alice in endorser set")
	}
	if err := engine.Endorse(alice, bob); !errors.Is(err, ErrAlreadyEndorsed) {
		t.Fatalf("expected ErrAlreadyEndorsed, got %v", err)
	}
}

func TestScoreSaturatesAtBounds(t *testing.T) {
	engine, state := newTestEngine(t)
	user := addr(1)
	if _, err := engine.Register(user); err != nil {
		t.Fatalf("register: %v", err)
	}

	state.scores[user].Value = MaxScore - 2
	if err := engine.RecordSuccess(user, big.NewInt(100)); err != nil {
		t.Fatalf("record success: %v", err)
	}
	score, _ := engine.Score(user)
	if score.Value != MaxScore {
		t.Fatalf("expected saturation at %d, got %d", MaxScore, score.Value)
	}

	state.scores[user].Value = FailureDelta - 1
	if err := engine.RecordFailure(user); err != nil {
		t.Fatalf("record failure: %v", err)
	}
	score, _ = engine.Score(user)
	if score.Value != 0 {
		t.Fatalf("expected saturation at 0, got %d", score.Value)
	}
	if err := engine.RecordFailure(user); err != nil {
		t.Fatalf("record failure at floor: %v", err)
	}
	score, _ = engine.Score(user)
	if score.Value != 0 {
		t.Fatalf("score went below zero: %d", score.Value)
	}
}

func TestRecordTracksLifetimeVolumes(t *testing.T) {
	engine, _ := newTestEngine(t)
	user := addr(1)
	if _, err := engine.Register(user); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := engine.RecordBorrow(user, big.NewInt(700)); err != nil {
		t.Fatalf("record borrow: %v", err)
	}
	if err := engine.RecordSuccess(user, big.NewInt(300)); err != nil {
		t.Fatalf("record success: %v", err)
	}
	score, _ := engine.Score(user)
	if score.TotalBorrowed.Cmp(big.NewInt(700)) != 0 {
		t.Fatalf("expected total borrowed 700, got %s", score.TotalBorrowed)
	}
	if score.TotalRepaid.Cmp(big.NewInt(300)) != 0 {
		t.Fatalf("expected total repaid 300, got %s", score.TotalRepaid)
	}
	if score.SuccessfulTx != 1 {
		t.Fatalf("expected one successful tx, got %d", score.SuccessfulTx)
	}
	if score.Value != InitialScore+SuccessDelta {
		t.Fatalf("borrow moved the score: %d", score.Value)
	}
}

func TestCreditLimit(t *testing.T) {
	engine, state := newTestEngine(t)
	user := addr(1)

	limit, err := engine.CreditLimit(user, big.NewInt(10_000))
	if err != nil {
		t.Fatalf("credit limit: %v", err)
	}
	if limit.Sign() != 0 {
		t.Fatalf("unregistered account should have zero credit, got %s", limit)
	}

	if _, err := engine.Register(user); err != nil {
		t.Fatalf("register: %v", err)
	}
	state.scores[user].Value = 750
	limit, err = engine.CreditLimit(user, big.NewInt(10_000))
	if err != nil {
		t.Fatalf("credit limit: %v", err)
	}
	if limit.Cmp(big.NewInt(7_500)) != 0 {
		t.Fatalf("expected 7500, got %s", limit)
	}
}

func TestReputationLevels(t *testing.T) {
	cases := []struct {
		score uint64
		level uint8
	}{
		{0, 0},
		{199, 0},
		{200, 1},
		{399, 1},
		{400, 2},
		{599, 2},
		{600, 3},
		{749, 3},
		{750, 4},
		{899, 4},
		{900, 5},
		{1000, 5},
	}
	for _, tc := range cases {
		if got := ReputationLevel(tc.score); got != tc.level {
			t.Errorf("ReputationLevel(%d) = %d, want %d", tc.score, got, tc.level)
		}
	}
}
