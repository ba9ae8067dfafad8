package core

import (
	"errors"
	"math/big"
	"testing"

	"credchain/config"
	"credchain/core/types"
	"credchain/crypto"
	"credchain/storage"
)

func testConfig(adminAddr string) *config.Config {
	return &config.Config{
		AdminAddress: adminAddr,
		Lending:      config.LendingConfig{MinCollateralRatioBps: 15_000},
		Rates: config.RatesConfig{
			BaseRateBps:           200,
			OptimalUtilizationBps: 8_000,
			Slope1Bps:             100,
			Slope2Bps:             500,
		},
	}
}

func testAddr(b byte) [20]byte {
	var out [20]byte
	out[19] = b
	return out
}

func TestNewNodeAppliesGenesis(t *testing.T) {
	adminRaw := testAddr(9)
	adminBech := crypto.NewAddress(crypto.CredPrefix, adminRaw).String()

	node, err := NewNode(storage.NewMemDB(), testConfig(adminBech), nil)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}

	if !node.Admin().IsAdmin(adminRaw) {
		t.Fatal("genesis admin not initialized")
	}
	model, err := node.Rates().Model()
	if err != nil {
		t.Fatalf("model: %v", err)
	}
	if model.BaseRateBps != 200 || model.Slope2Bps != 500 {
		t.Fatalf("genesis curve not applied: %+v", model)
	}
}

func TestGenesisModelWrittenOnce(t *testing.T) {
	db := storage.NewMemDB()

	node, err := NewNode(db, testConfig(""), nil)
	if err != nil {
		t.Fatalf("first boot: %v", err)
	}
	model, err := node.Rates().Model()
	if err != nil {
		t.Fatalf("model: %v", err)
	}
	if model.Slope1Bps != 100 {
		t.Fatalf("genesis curve not applied: %+v", model)
	}

	// A restart with a different configured curve keeps the committed one.
	cfg := testConfig("")
	cfg.Rates.BaseRateBps = 999
	restarted, err := NewNode(db, cfg, nil)
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	model, err = restarted.Rates().Model()
	if err != nil {
		t.Fatalf("model after restart: %v", err)
	}
	if model.BaseRateBps != 200 {
		t.Fatalf("restart clobbered the committed curve: %+v", model)
	}
}

func TestMintCreditsAccount(t *testing.T) {
	node, err := NewNode(storage.NewMemDB(), testConfig(""), nil)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	user := testAddr(1)

	if err := node.Mint(user, big.NewInt(0)); !errors.Is(err, ErrInvalidMintAmount) {
		t.Fatalf("expected ErrInvalidMintAmount, got %v", err)
	}

	if err := node.Mint(user, big.NewInt(1_000)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := node.Mint(user, big.NewInt(500)); err != nil {
		t.Fatalf("second mint: %v", err)
	}
	account, err := node.Account(user)
	if err != nil {
		t.Fatalf("account: %v", err)
	}
	if got := account.Balance(types.BaseAsset); got.Cmp(big.NewInt(1_500)) != 0 {
		t.Fatalf("balance = %s, want 1500", got)
	}

	// Unknown addresses read as empty accounts, never as errors.
	empty, err := node.Account(testAddr(2))
	if err != nil {
		t.Fatalf("empty account: %v", err)
	}
	if empty.Balance(types.BaseAsset).Sign() != 0 {
		t.Fatalf("unexpected balance on fresh account")
	}
}

func TestEngineEventsReachTheRecorder(t *testing.T) {
	node, err := NewNode(storage.NewMemDB(), testConfig(""), nil)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	user := testAddr(1)

	if _, err := node.Trust().Register(user); err != nil {
		t.Fatalf("register: %v", err)
	}

	recorded := node.Events()
	if len(recorded) == 0 {
		t.Fatal("no events recorded")
	}
	last := recorded[len(recorded)-1]
	if last.Type == "" || last.Attributes == nil {
		t.Fatalf("malformed event payload: %+v", last)
	}
}

func TestOperationsFlowAcrossEngines(t *testing.T) {
	node, err := NewNode(storage.NewMemDB(), testConfig(""), nil)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	borrower, supplier := testAddr(1), testAddr(2)

	if err := node.Mint(borrower, big.NewInt(20_000)); err != nil {
		t.Fatalf("mint borrower: %v", err)
	}
	if err := node.Mint(supplier, big.NewInt(50_000)); err != nil {
		t.Fatalf("mint supplier: %v", err)
	}

	err = node.WithWriteLock(func() error {
		if err := node.Lending().SupplyLiquidity(supplier, types.BaseAsset, big.NewInt(50_000)); err != nil {
			return err
		}
		if err := node.Lending().DepositCollateral(borrower, types.BaseAsset, big.NewInt(20_000)); err != nil {
			return err
		}
		return node.Lending().Borrow(borrower, types.BaseAsset, big.NewInt(10_000))
	})
	if err != nil {
		t.Fatalf("lending flow: %v", err)
	}

	account, err := node.Account(borrower)
	if err != nil {
		t.Fatalf("account: %v", err)
	}
	if got := account.Balance(types.BaseAsset); got.Cmp(big.NewInt(10_000)) != 0 {
		t.Fatalf("borrower balance = %s, want 10000", got)
	}

	tvl, err := node.Admin().TotalValueLocked()
	if err != nil {
		t.Fatalf("tvl: %v", err)
	}
	// 40000 idle liquidity plus 20000 locked collateral.
	if tvl.Cmp(big.NewInt(60_000)) != 0 {
		t.Fatalf("tvl = %s, want 60000", tvl)
	}
}
