package state

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/rlp"

	"credchain/core/types"
	"credchain/native/admin"
	"credchain/native/circles"
	"credchain/native/lending"
	"credchain/native/payments"
	"credchain/native/rates"
	"credchain/native/trust"
	"credchain/storage"
)

// Manager persists every module's records in a keyed key-value store. Keys
// are keccak hashes of prefixed byte strings and values are rlp encoded, so
// the layout survives a move to an authenticated trie without rekeying.
//
// Manager satisfies the state interface of each native engine; one instance
// backs the whole protocol.
type Manager struct {
	db storage.Database
}

// NewManager creates a state manager over the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

func (m *Manager) readRLP(key []byte, out interface{}) (bool, error) {
	if m == nil || m.db == nil {
		return false, errors.New("state: database not configured")
	}
	data, err := m.db.Get(key)
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return false, nil
		}
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, fmt.Errorf("state: decode %x: %w", key[:4], err)
	}
	return true, nil
}

func (m *Manager) writeRLP(key []byte, value interface{}) error {
	if m == nil || m.db == nil {
		return errors.New("state: database not configured")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return fmt.Errorf("state: encode %x: %w", key[:4], err)
	}
	return m.db.Put(key, encoded)
}

// nextSequence increments and persists a counter. The first issued value is 1.
func (m *Manager) nextSequence(key []byte) (uint64, error) {
	var current uint64
	if _, err := m.readRLP(key, &current); err != nil {
		return 0, err
	}
	next := current + 1
	if err := m.writeRLP(key, next); err != nil {
		return 0, err
	}
	return next, nil
}

func idBytes(id uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, id)
	return buf
}

// storedAccount is the rlp shape of an account. Balances are flattened into
// parallel slices sorted by asset because rlp cannot encode maps.
type storedAccount struct {
	Nonce   uint64
	Assets  []string
	Amounts []*big.Int
}

// GetAccount loads an account. Missing accounts come back as nil.
func (m *Manager) GetAccount(addr [20]byte) (*types.Account, error) {
	stored := new(storedAccount)
	ok, err := m.readRLP(prefixedKey(accountPrefix, addr[:]), stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	account := types.NewAccount()
	account.Nonce = stored.Nonce
	for i, asset := range stored.Assets {
		if i < len(stored.Amounts) && stored.Amounts[i] != nil {
			account.SetBalance(asset, stored.Amounts[i])
		}
	}
	return account, nil
}

// PutAccount persists an account with balances in sorted asset order.
func (m *Manager) PutAccount(addr [20]byte, account *types.Account) error {
	if account == nil {
		return errors.New("state: nil account")
	}
	stored := &storedAccount{Nonce: account.Nonce}
	assets := make([]string, 0, len(account.Balances))
	for asset := range account.Balances {
		assets = append(assets, asset)
	}
	sort.Strings(assets)
	for _, asset := range assets {
		amount := account.Balances[asset]
		if amount == nil || amount.Sign() == 0 {
			continue
		}
		stored.Assets = append(stored.Assets, asset)
		stored.Amounts = append(stored.Amounts, new(big.Int).Set(amount))
	}
	return m.writeRLP(prefixedKey(accountPrefix, addr[:]), stored)
}

// LendingGetPool loads a pool. Missing pools come back as nil so the engine
// can lazily create them.
func (m *Manager) LendingGetPool(asset string) (*lending.Pool, error) {
	pool := new(lending.Pool)
	ok, err := m.readRLP(prefixedKey(lendingPoolPrefix, []byte(asset)), pool)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return pool, nil
}

// LendingPutPool persists a pool.
func (m *Manager) LendingPutPool(pool *lending.Pool) error {
	if pool == nil {
		return errors.New("state: nil pool")
	}
	return m.writeRLP(prefixedKey(lendingPoolPrefix, []byte(pool.Asset)), pool)
}

// LendingGetPosition loads one user's position in a pool, nil when absent.
func (m *Manager) LendingGetPosition(asset string, addr [20]byte) (*lending.Position, error) {
	position := new(lending.Position)
	ok, err := m.readRLP(prefixedKey(lendingPosPrefix, []byte(asset), addr[:]), position)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return position, nil
}

// LendingPutPosition persists a position.
func (m *Manager) LendingPutPosition(position *lending.Position) error {
	if position == nil {
		return errors.New("state: nil position")
	}
	key := prefixedKey(lendingPosPrefix, []byte(position.Asset), position.Address[:])
	return m.writeRLP(key, position)
}

// LendingGetRequest loads a borrower's open loan request.
func (m *Manager) LendingGetRequest(borrower [20]byte) (*lending.LoanRequest, bool, error) {
	request := new(lending.LoanRequest)
	ok, err := m.readRLP(prefixedKey(lendingReqPrefix, borrower[:]), request)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	return request, true, nil
}

// LendingPutRequest persists a loan request keyed by borrower.
func (m *Manager) LendingPutRequest(request *lending.LoanRequest) error {
	if request == nil {
		return errors.New("state: nil loan request")
	}
	return m.writeRLP(prefixedKey(lendingReqPrefix, request.Borrower[:]), request)
}

// LendingNextRequestID issues the next loan request id.
func (m *Manager) LendingNextRequestID() (uint64, error) {
	return m.nextSequence(lendingReqCounterKey)
}

// CirclesNextID issues the next circle id.
func (m *Manager) CirclesNextID() (uint64, error) {
	return m.nextSequence(circleCounterKey)
}

// CirclesGetCircle loads a circle, nil when absent.
func (m *Manager) CirclesGetCircle(id uint64) (*circles.Circle, error) {
	circle := new(circles.Circle)
	ok, err := m.readRLP(prefixedKey(circlePrefix, idBytes(id)), circle)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return circle, nil
}

// CirclesPutCircle persists a circle.
func (m *Manager) CirclesPutCircle(circle *circles.Circle) error {
	if circle == nil {
		return errors.New("state: nil circle")
	}
	return m.writeRLP(prefixedKey(circlePrefix, idBytes(circle.ID)), circle)
}

// CirclesGetStake loads one member's stake in a circle.
func (m *Manager) CirclesGetStake(id uint64, member [20]byte) (*circles.Stake, bool, error) {
	stake := new(circles.Stake)
	ok, err := m.readRLP(prefixedKey(circleStakePrefix, idBytes(id), member[:]), stake)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	return stake, true, nil
}

// CirclesPutStake persists a member's stake.
func (m *Manager) CirclesPutStake(stake *circles.Stake) error {
	if stake == nil {
		return errors.New("state: nil stake")
	}
	key := prefixedKey(circleStakePrefix, idBytes(stake.CircleID), stake.Member[:])
	return m.writeRLP(key, stake)
}

// CirclesGetRound loads a circle's most recent bidding round, nil when none
// has been started.
func (m *Manager) CirclesGetRound(id uint64) (*circles.BiddingRound, error) {
	round := new(circles.BiddingRound)
	ok, err := m.readRLP(prefixedKey(circleRoundPrefix, idBytes(id)), round)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return round, nil
}

// CirclesPutRound persists a bidding round, replacing any previous one.
func (m *Manager) CirclesPutRound(round *circles.BiddingRound) error {
	if round == nil {
		return errors.New("state: nil round")
	}
	return m.writeRLP(prefixedKey(circleRoundPrefix, idBytes(round.CircleID)), round)
}

// TrustGetScore loads an account's trust score.
func (m *Manager) TrustGetScore(addr [20]byte) (*trust.Score, bool, error) {
	score := new(trust.Score)
	ok, err := m.readRLP(prefixedKey(trustScorePrefix, addr[:]), score)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	return score, true, nil
}

// TrustPutScore persists a trust score.
func (m *Manager) TrustPutScore(score *trust.Score) error {
	if score == nil {
		return errors.New("state: nil score")
	}
	return m.writeRLP(prefixedKey(trustScorePrefix, score.Address[:]), score)
}

// PaymentsNextID issues the next payment id.
func (m *Manager) PaymentsNextID() (uint64, error) {
	return m.nextSequence(paymentCounterKey)
}

// PaymentsGetPayment loads a payment, nil when absent.
func (m *Manager) PaymentsGetPayment(id uint64) (*payments.Payment, error) {
	payment := new(payments.Payment)
	ok, err := m.readRLP(prefixedKey(paymentPrefix, idBytes(id)), payment)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return payment, nil
}

// PaymentsPutPayment persists a payment.
func (m *Manager) PaymentsPutPayment(payment *payments.Payment) error {
	if payment == nil {
		return errors.New("state: nil payment")
	}
	return m.writeRLP(prefixedKey(paymentPrefix, idBytes(payment.ID)), payment)
}

// PaymentsGetAccount loads a payment ledger account.
func (m *Manager) PaymentsGetAccount(addr [20]byte) (*payments.Account, bool, error) {
	account := new(payments.Account)
	ok, err := m.readRLP(prefixedKey(paymentAcctPrefix, addr[:]), account)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	return account, true, nil
}

// PaymentsPutAccount persists a payment ledger account.
func (m *Manager) PaymentsPutAccount(account *payments.Account) error {
	if account == nil {
		return errors.New("state: nil payments account")
	}
	return m.writeRLP(prefixedKey(paymentAcctPrefix, account.Address[:]), account)
}

// RatesGetModel loads the rate curve. An unset model reads as the genesis
// default so accrual never runs against a nil curve.
func (m *Manager) RatesGetModel() (*rates.Model, error) {
	model := new(rates.Model)
	ok, err := m.readRLP(ratesModelKey, model)
	if err != nil {
		return nil, err
	}
	if !ok {
		return rates.DefaultModel(), nil
	}
	return model, nil
}

// RatesHasModel reports whether a curve has been committed. Boot code uses
// it to decide whether the configured genesis curve applies.
func (m *Manager) RatesHasModel() (bool, error) {
	model := new(rates.Model)
	return m.readRLP(ratesModelKey, model)
}

// RatesPutModel persists the rate curve.
func (m *Manager) RatesPutModel(model *rates.Model) error {
	if model == nil {
		return errors.New("state: nil rate model")
	}
	return m.writeRLP(ratesModelKey, model)
}

// RatesNextProposalID issues the next proposal id.
func (m *Manager) RatesNextProposalID() (uint64, error) {
	return m.nextSequence(ratesCounterKey)
}

// RatesGetProposal loads a rate proposal.
func (m *Manager) RatesGetProposal(id uint64) (*rates.Proposal, bool, error) {
	proposal := new(rates.Proposal)
	ok, err := m.readRLP(prefixedKey(ratesProposalPrefix, idBytes(id)), proposal)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	return proposal, true, nil
}

// RatesPutProposal persists a proposal and records its id in the index.
func (m *Manager) RatesPutProposal(proposal *rates.Proposal) error {
	if proposal == nil {
		return errors.New("state: nil proposal")
	}
	if err := m.writeRLP(prefixedKey(ratesProposalPrefix, idBytes(proposal.ID)), proposal); err != nil {
		return err
	}
	var index []uint64
	if _, err := m.readRLP(ratesProposalListKey, &index); err != nil {
		return err
	}
	for _, id := range index {
		if id == proposal.ID {
			return nil
		}
	}
	index = append(index, proposal.ID)
	return m.writeRLP(ratesProposalListKey, index)
}

// RatesListProposals returns every recorded proposal in id order.
func (m *Manager) RatesListProposals() ([]*rates.Proposal, error) {
	var index []uint64
	if _, err := m.readRLP(ratesProposalListKey, &index); err != nil {
		return nil, err
	}
	list := make([]*rates.Proposal, 0, len(index))
	for _, id := range index {
		proposal, ok, err := m.RatesGetProposal(id)
		if err != nil {
			return nil, err
		}
		if ok {
			list = append(list, proposal)
		}
	}
	return list, nil
}

// AdminGetConfig loads the protocol config.
func (m *Manager) AdminGetConfig() (*admin.Config, bool, error) {
	config := new(admin.Config)
	ok, err := m.readRLP(adminConfigKey, config)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	return config, true, nil
}

// AdminPutConfig persists the protocol config.
func (m *Manager) AdminPutConfig(config *admin.Config) error {
	if config == nil {
		return errors.New("state: nil config")
	}
	return m.writeRLP(adminConfigKey, config)
}
