package payments

import "math/big"

// PaymentStatus tracks a payment through its escrow lifecycle.
type PaymentStatus uint8

const (
	StatusPending PaymentStatus = iota
	StatusCompleted
	StatusFailed
	StatusCancelled
)

// String renders the status for events and RPC responses.
func (s PaymentStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Payment is one escrowed transfer between two registered accounts. Funds
// sit in the module vault from creation until the payee confirms or the
// payer cancels.
type Payment struct {
	ID          uint64
	Payer       [20]byte
	Payee       [20]byte
	Amount      *big.Int
	Status      PaymentStatus
	Description string
	CreatedAt   uint64
	CompletedAt uint64
}

// Clone returns a deep copy of the payment record.
func (p *Payment) Clone() *Payment {
	if p == nil {
		return nil
	}
	clone := *p
	clone.Amount = cloneBigInt(p.Amount)
	return &clone
}

// Account is a participant's payment ledger. Registration is explicit:
// both payer and payee must hold an account before a payment touches them.
type Account struct {
	Address       [20]byte
	Incoming      []uint64
	Outgoing      []uint64
	EscrowBalance *big.Int
	TotalSent     *big.Int
	TotalReceived *big.Int
	CreatedAt     uint64
}

// Clone returns a deep copy of the payment account.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	clone := *a
	clone.Incoming = append([]uint64(nil), a.Incoming...)
	clone.Outgoing = append([]uint64(nil), a.Outgoing...)
	clone.EscrowBalance = cloneBigInt(a.EscrowBalance)
	clone.TotalSent = cloneBigInt(a.TotalSent)
	clone.TotalReceived = cloneBigInt(a.TotalReceived)
	return &clone
}

func (a *Account) normalize() {
	if a.EscrowBalance == nil {
		a.EscrowBalance = big.NewInt(0)
	}
	if a.TotalSent == nil {
		a.TotalSent = big.NewInt(0)
	}
	if a.TotalReceived == nil {
		a.TotalReceived = big.NewInt(0)
	}
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
