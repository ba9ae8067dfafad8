package state

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"credchain/core/types"
	"credchain/native/admin"
	"credchain/native/circles"
	"credchain/native/lending"
	"credchain/native/payments"
	"credchain/native/rates"
	"credchain/native/trust"
	"credchain/storage"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	return NewManager(storage.NewMemDB())
}

func testAddr(b byte) [20]byte {
	var out [20]byte
	out[19] = b
	return out
}

func TestAccountRoundTrip(t *testing.T) {
	manager := newTestManager(t)
	addr := testAddr(1)

	missing, err := manager.GetAccount(addr)
	require.NoError(t, err)
	require.Nil(t, missing)

	account := types.NewAccount()
	account.Nonce = 7
	account.SetBalance("CRD", big.NewInt(1_000))
	account.SetBalance("AUX", big.NewInt(25))
	require.NoError(t, manager.PutAccount(addr, account))

	loaded, err := manager.GetAccount(addr)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Equal(t, uint64(7), loaded.Nonce)
	require.Zero(t, loaded.Balance("CRD").Cmp(big.NewInt(1_000)))
	require.Zero(t, loaded.Balance("AUX").Cmp(big.NewInt(25)))
	require.Zero(t, loaded.Balance("UNKNOWN").Sign())
}

func TestAccountDropsZeroBalances(t *testing.T) {
	manager := newTestManager(t)
	addr := testAddr(1)

	account := types.NewAccount()
	account.SetBalance("CRD", big.NewInt(100))
	account.SetBalance("DUST", big.NewInt(0))
	require.NoError(t, manager.PutAccount(addr, account))

	loaded, err := manager.GetAccount(addr)
	require.NoError(t, err)
	require.Len(t, loaded.Balances, 1)
	require.Zero(t, loaded.Balance("CRD").Cmp(big.NewInt(100)))
}

func TestCountersStartAtOne(t *testing.T) {
	manager := newTestManager(t)

	first, err := manager.CirclesNextID()
	require.NoError(t, err)
	require.Equal(t, uint64(1), first)

	second, err := manager.CirclesNextID()
	require.NoError(t, err)
	require.Equal(t, uint64(2), second)

	// Counters are independent per module.
	payment, err := manager.PaymentsNextID()
	require.NoError(t, err)
	require.Equal(t, uint64(1), payment)

	request, err := manager.LendingNextRequestID()
	require.NoError(t, err)
	require.Equal(t, uint64(1), request)

	proposal, err := manager.RatesNextProposalID()
	require.NoError(t, err)
	require.Equal(t, uint64(1), proposal)
}

func TestLendingRecordsRoundTrip(t *testing.T) {
	manager := newTestManager(t)
	addr := testAddr(1)

	pool, err := manager.LendingGetPool("CRD")
	require.NoError(t, err)
	require.Nil(t, pool)

	require.NoError(t, manager.LendingPutPool(&lending.Pool{
		Asset:                 "CRD",
		TotalCollateral:       big.NewInt(20_000),
		TotalLoans:            big.NewInt(5_000),
		AvailableLiquidity:    big.NewInt(45_000),
		Reserves:              big.NewInt(12),
		MinCollateralRatioBps: 15_000,
	}))
	pool, err = manager.LendingGetPool("CRD")
	require.NoError(t, err)
	require.NotNil(t, pool)
	require.Equal(t, uint64(15_000), pool.MinCollateralRatioBps)
	require.Zero(t, pool.TotalLoans.Cmp(big.NewInt(5_000)))

	position, err := manager.LendingGetPosition("CRD", addr)
	require.NoError(t, err)
	require.Nil(t, position)

	require.NoError(t, manager.LendingPutPosition(&lending.Position{
		Address:           addr,
		Asset:             "CRD",
		Collateral:        big.NewInt(20_000),
		Principal:         big.NewInt(5_000),
		AccruedInterest:   big.NewInt(3),
		LiquiditySupplied: big.NewInt(0),
		LastUpdate:        1_700_000_000,
	}))
	position, err = manager.LendingGetPosition("CRD", addr)
	require.NoError(t, err)
	require.NotNil(t, position)
	require.Zero(t, position.Debt().Cmp(big.NewInt(5_003)))

	_, ok, err := manager.LendingGetRequest(addr)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, manager.LendingPutRequest(&lending.LoanRequest{
		ID:               1,
		Borrower:         addr,
		Asset:            "CRD",
		Amount:           big.NewInt(5_000),
		RateBps:          500,
		DurationSeconds:  86_400,
		CollateralAmount: big.NewInt(10_000),
		CreatedAt:        1_700_000_000,
	}))
	request, ok, err := manager.LendingGetRequest(addr)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(500), request.RateBps)
	require.False(t, request.Fulfilled)
}

func TestCircleRecordsRoundTrip(t *testing.T) {
	manager := newTestManager(t)
	owner, member := testAddr(1), testAddr(2)

	circle, err := manager.CirclesGetCircle(1)
	require.NoError(t, err)
	require.Nil(t, circle)

	require.NoError(t, manager.CirclesPutCircle(&circles.Circle{
		ID:              1,
		Owner:           owner,
		Name:            "savings",
		Members:         [][20]byte{owner, member},
		MaxMembers:      10,
		TotalPool:       big.NewInt(600),
		MinContribution: big.NewInt(100),
		Active:          true,
		CreatedAt:       1_700_000_000,
	}))
	circle, err = manager.CirclesGetCircle(1)
	require.NoError(t, err)
	require.NotNil(t, circle)
	require.Equal(t, "savings", circle.Name)
	require.True(t, circle.HasMember(member))
	require.Zero(t, circle.TotalPool.Cmp(big.NewInt(600)))

	_, ok, err := manager.CirclesGetStake(1, member)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, manager.CirclesPutStake(&circles.Stake{
		CircleID: 1,
		Member:   member,
		Amount:   big.NewInt(500),
		StakedAt: 1_700_000_000,
	}))
	stake, ok, err := manager.CirclesGetStake(1, member)
	require.NoError(t, err)
	require.True(t, ok)
	require.Zero(t, stake.Amount.Cmp(big.NewInt(500)))

	round, err := manager.CirclesGetRound(1)
	require.NoError(t, err)
	require.Nil(t, round)

	require.NoError(t, manager.CirclesPutRound(&circles.BiddingRound{
		CircleID:  1,
		Round:     1,
		Bids:      []circles.Bid{{Bidder: member, Amount: big.NewInt(250), RateBps: 400}},
		StartTime: 1_700_000_000,
		EndTime:   1_700_604_800,
		Active:    true,
	}))
	round, err = manager.CirclesGetRound(1)
	require.NoError(t, err)
	require.NotNil(t, round)
	require.Len(t, round.Bids, 1)
	require.Equal(t, member, round.Bids[0].Bidder)
	require.Zero(t, round.Bids[0].Amount.Cmp(big.NewInt(250)))
}

func TestTrustScoreRoundTrip(t *testing.T) {
	manager := newTestManager(t)
	addr, endorser := testAddr(1), testAddr(2)

	_, ok, err := manager.TrustGetScore(addr)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, manager.TrustPutScore(&trust.Score{
		Address:       addr,
		Value:         510,
		SuccessfulTx:  2,
		FailedTx:      1,
		TotalBorrowed: big.NewInt(700),
		TotalRepaid:   big.NewInt(300),
		Endorsers:     [][20]byte{endorser},
		LastUpdate:    1_700_000_000,
	}))
	score, ok, err := manager.TrustGetScore(addr)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(510), score.Value)
	require.True(t, score.EndorsedBy(endorser))
	require.Zero(t, score.TotalBorrowed.Cmp(big.NewInt(700)))
}

func TestPaymentRecordsRoundTrip(t *testing.T) {
	manager := newTestManager(t)
	payer, payee := testAddr(1), testAddr(2)

	payment, err := manager.PaymentsGetPayment(1)
	require.NoError(t, err)
	require.Nil(t, payment)

	require.NoError(t, manager.PaymentsPutPayment(&payments.Payment{
		ID:          1,
		Payer:       payer,
		Payee:       payee,
		Amount:      big.NewInt(400),
		Status:      payments.StatusPending,
		Description: "invoice 7",
		CreatedAt:   1_700_000_000,
	}))
	payment, err = manager.PaymentsGetPayment(1)
	require.NoError(t, err)
	require.NotNil(t, payment)
	require.Equal(t, payments.StatusPending, payment.Status)
	require.Equal(t, "invoice 7", payment.Description)

	_, ok, err := manager.PaymentsGetAccount(payer)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, manager.PaymentsPutAccount(&payments.Account{
		Address:       payer,
		Outgoing:      []uint64{1},
		EscrowBalance: big.NewInt(400),
		TotalSent:     big.NewInt(0),
		TotalReceived: big.NewInt(0),
		CreatedAt:     1_700_000_000,
	}))
	ledger, ok, err := manager.PaymentsGetAccount(payer)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []uint64{1}, ledger.Outgoing)
	require.Zero(t, ledger.EscrowBalance.Cmp(big.NewInt(400)))
}

func TestRatesModelDefaultsUntilCommitted(t *testing.T) {
	manager := newTestManager(t)

	has, err := manager.RatesHasModel()
	require.NoError(t, err)
	require.False(t, has)

	model, err := manager.RatesGetModel()
	require.NoError(t, err)
	require.Equal(t, rates.DefaultModel(), model)

	custom := &rates.Model{
		BaseRateBps:           300,
		OptimalUtilizationBps: 7_000,
		Slope1Bps:             150,
		Slope2Bps:             900,
		LastUpdate:            1_700_000_000,
	}
	require.NoError(t, manager.RatesPutModel(custom))

	has, err = manager.RatesHasModel()
	require.NoError(t, err)
	require.True(t, has)

	model, err = manager.RatesGetModel()
	require.NoError(t, err)
	require.Equal(t, custom, model)
}

func TestProposalIndexKeepsOrder(t *testing.T) {
	manager := newTestManager(t)

	list, err := manager.RatesListProposals()
	require.NoError(t, err)
	require.Empty(t, list)

	for i := uint64(1); i <= 3; i++ {
		id, err := manager.RatesNextProposalID()
		require.NoError(t, err)
		require.Equal(t, i, id)
		require.NoError(t, manager.RatesPutProposal(&rates.Proposal{
			ID:          id,
			Proposer:    testAddr(byte(i)),
			Kind:        rates.ProposalKindBaseRate,
			ValuesBps:   []uint64{100 * i},
			SubmittedAt: 1_700_000_000,
			Status:      rates.ProposalStatusPending,
		}))
	}

	// Rewriting an existing proposal must not duplicate the index entry.
	require.NoError(t, manager.RatesPutProposal(&rates.Proposal{
		ID:        2,
		Kind:      rates.ProposalKindBaseRate,
		ValuesBps: []uint64{999},
		Status:    rates.ProposalStatusPending,
	}))

	list, err = manager.RatesListProposals()
	require.NoError(t, err)
	require.Len(t, list, 3)
	for i, proposal := range list {
		require.Equal(t, uint64(i+1), proposal.ID)
	}
	require.Equal(t, []uint64{999}, list[1].ValuesBps)
}

func TestAdminConfigRoundTrip(t *testing.T) {
	manager := newTestManager(t)

	_, ok, err := manager.AdminGetConfig()
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, manager.AdminPutConfig(&admin.Config{
		Admin:           testAddr(1),
		Version:         admin.ProtocolVersion,
		CapabilityNonce: 2,
		PausedModules:   []string{"lending"},
		UpdatedAt:       1_700_000_000,
	}))
	config, ok, err := manager.AdminGetConfig()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, testAddr(1), config.Admin)
	require.Equal(t, uint64(2), config.CapabilityNonce)
	require.Equal(t, []string{"lending"}, config.PausedModules)
}
