package types

import "math/big"

// Account is the ledger record backing a single address. Balances are held
// per asset symbol so generic lending pools and the settlement asset share
// one bookkeeping structure.
type Account struct {
	Nonce    uint64              `json:"nonce"`
	Balances map[string]*big.Int `json:"balances"`
}

// NewAccount returns an account with an initialised balance table.
func NewAccount() *Account {
	return &Account{Balances: make(map[string]*big.Int)}
}

// Balance returns the account's balance for the supplied asset symbol. A
// missing entry reads as zero; the returned value is the live entry, so
// callers mutate through SetBalance instead.
func (a *Account) Balance(asset string) *big.Int {
	if a == nil || a.Balances == nil {
		return big.NewInt(0)
	}
	if bal, ok := a.Balances[asset]; ok && bal != nil {
		return bal
	}
	return big.NewInt(0)
}

// SetBalance records the balance for an asset, allocating the table lazily.
func (a *Account) SetBalance(asset string, amount *big.Int) {
	if a == nil {
		return
	}
	if a.Balances == nil {
		a.Balances = make(map[string]*big.Int)
	}
	if amount == nil {
		amount = big.NewInt(0)
	}
	a.Balances[asset] = amount
}

// Credit adds amount to the asset balance.
func (a *Account) Credit(asset string, amount *big.Int) {
	if amount == nil || amount.Sign() == 0 {
		return
	}
	a.SetBalance(asset, new(big.Int).Add(a.Balance(asset), amount))
}

// Debit subtracts amount from the asset balance. The caller must have
// verified sufficiency; Debit never drives a balance negative silently.
func (a *Account) Debit(asset string, amount *big.Int) bool {
	if amount == nil || amount.Sign() == 0 {
		return true
	}
	current := a.Balance(asset)
	if current.Cmp(amount) < 0 {
		return false
	}
	a.SetBalance(asset, new(big.Int).Sub(current, amount))
	return true
}

// Clone returns a deep copy so cached reads cannot alias committed state.
func (a *Account) Clone() *Account {
	if a == nil {
		return NewAccount()
	}
	clone := &Account{Nonce: a.Nonce, Balances: make(map[string]*big.Int, len(a.Balances))}
	for asset, bal := range a.Balances {
		if bal == nil {
			bal = big.NewInt(0)
		}
		clone.Balances[asset] = new(big.Int).Set(bal)
	}
	return clone
}
