package payments

import (
	"errors"
	"math/big"
	"time"

	"credchain/core/events"
	"credchain/core/types"
	"credchain/crypto"
	nativecommon "credchain/native/common"
)

var (
	// ErrNilState marks an engine invoked before its state backend is wired.
	ErrNilState = errors.New("payments engine: state not configured")
	// ErrInvalidAmount rejects zero or negative payment amounts.
	ErrInvalidAmount = errors.New("payments engine: amount must be positive")
	// ErrAccountExists rejects duplicate account registration.
	ErrAccountExists = errors.New("payments engine: account already open")
	// ErrAccountNotFound marks operations touching an unregistered address.
	ErrAccountNotFound = errors.New("payments engine: account not open")
	// ErrSelfPayment rejects payments where payer and payee coincide.
	ErrSelfPayment = errors.New("payments engine: payer and payee identical")
	// ErrPaymentNotFound marks lookups of unknown payment ids.
	ErrPaymentNotFound = errors.New("payments engine: payment not found")
	// ErrNotPending marks settlement attempts on already-settled payments.
	ErrNotPending = errors.New("payments engine: payment not pending")
	// ErrNotPayee marks completion attempts by anyone but the payee.
	ErrNotPayee = errors.New("payments engine: caller is not the payee")
	// ErrNotPayer marks cancellation attempts by anyone but the payer.
	ErrNotPayer = errors.New("payments engine: caller is not the payer")
	// ErrInsufficientBalance marks payers without the funds to escrow.
	ErrInsufficientBalance = errors.New("payments engine: insufficient balance")
)

const moduleName = "payments"

type engineState interface {
	PaymentsNextID() (uint64, error)
	PaymentsGetPayment(id uint64) (*Payment, error)
	PaymentsPutPayment(*Payment) error
	PaymentsGetAccount(addr [20]byte) (*Account, bool, error)
	PaymentsPutAccount(*Account) error
	GetAccount(addr [20]byte) (*types.Account, error)
	PutAccount(addr [20]byte, account *types.Account) error
}

// Engine escrows direct transfers between registered participants. The
// payer funds the module vault at creation; the payee's confirmation or
// the payer's cancellation releases the funds one way or the other.
type Engine struct {
	state        engineState
	emitter      events.Emitter
	pauses       nativecommon.PauseView
	vaultAddress [20]byte
	nowFn        func() int64
}

// NewEngine constructs a payments engine with no-op dependencies.
func NewEngine() *Engine {
	return &Engine{
		emitter:      events.NoopEmitter{},
		vaultAddress: crypto.ModuleAddress("payments"),
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
	e.emitter.Emit(paymentEvent{evt: event})
}

// VaultAddress returns the account holding all escrowed payment funds.
func (e *Engine) VaultAddress() [20]byte { return e.vaultAddress }

func (e *Engine) guard() error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	return nativecommon.Guard(e.pauses, moduleName)
}

func (e *Engine) loadAccount(addr [20]byte) (*Account, error) {
	account, ok, err := e.state.PaymentsGetAccount(addr)
	if err != nil {
		return nil, err
	}
	if !ok || account == nil {
		return nil, ErrAccountNotFound
	}
	account.normalize()
	return account, nil
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

// removeID filters one payment id out of a ledger list. Settled payments
// leave both parties' lists; only pending ids remain.
func removeID(ids []uint64, id uint64) []uint64 {
	filtered := ids[:0]
	for _, v := range ids {
		if v != id {
			filtered = append(filtered, v)
		}
	}
	return filtered
}

// OpenAccount registers the caller for payments. Registration is explicit
// on both sides: a payment to an unregistered payee is rejected rather
// than silently opening an account for them.
func (e *Engine) OpenAccount(caller [20]byte) (*Account, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}
	_, ok, err := e.state.PaymentsGetAccount(caller)
	if err != nil {
		return nil, err
	}
	if ok {
		return nil, ErrAccountExists
	}
	now := e.now()
	account := &Account{
		Address:       caller,
		EscrowBalance: big.NewInt(0),
		TotalSent:     big.NewInt(0),
		TotalReceived: big.NewInt(0),
		CreatedAt:     uint64(now),
	}
	if err := e.state.PaymentsPutAccount(account); err != nil {
		return nil, err
	}
	e.emit(newAccountEvent(caller, now))
	return account.Clone(), nil
}

// CreatePayment escrows the amount from the payer into the module vault
// and records a pending payment. Both parties must hold open accounts.
func (e *Engine) CreatePayment(payer, payee [20]byte, amount *big.Int, description string) (*Payment, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if payer == payee {
		return nil, ErrSelfPayment
	}
	payerAccount, err := e.loadAccount(payer)
	if err != nil {
		return nil, err
	}
	payeeAccount, err := e.loadAccount(payee)
	if err != nil {
		return nil, err
	}
	if err := e.transfer(payer, e.vaultAddress, amount); err != nil {
		return nil, err
	}
	id, err := e.state.PaymentsNextID()
	if err != nil {
		return nil, err
	}
	now := e.now()
	payment := &Payment{
		ID:          id,
		Payer:       payer,
		Payee:       payee,
		Amount:      new(big.Int).Set(amount),
		Status:      StatusPending,
		Description: description,
		CreatedAt:   uint64(now),
	}
	payerAccount.Outgoing = append(payerAccount.Outgoing, id)
	payerAccount.EscrowBalance = new(big.Int).Add(payerAccount.EscrowBalance, amount)
	payeeAccount.Incoming = append(payeeAccount.Incoming, id)
	if err := e.state.PaymentsPutPayment(payment); err != nil {
		return nil, err
	}
	if err := e.state.PaymentsPutAccount(payerAccount); err != nil {
		return nil, err
	}
	if err := e.state.PaymentsPutAccount(payeeAccount); err != nil {
		return nil, err
	}
	e.emit(newPaymentEvent(EventTypeCreated, payment, now))
	return payment.Clone(), nil
}

// CompletePayment releases escrowed funds to the payee. Only the payee may
// confirm, and only while the payment is still pending.
func (e *Engine) CompletePayment(caller [20]byte, id uint64) (*Payment, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}
	payment, err := e.state.PaymentsGetPayment(id)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, ErrPaymentNotFound
	}
	if payment.Status != StatusPending {
		return nil, ErrNotPending
	}
	if payment.Payee != caller {
		return nil, ErrNotPayee
	}
	payerAccount, err := e.loadAccount(payment.Payer)
	if err != nil {
		return nil, err
	}
	payeeAccount, err := e.loadAccount(payment.Payee)
	if err != nil {
		return nil, err
	}
	if err := e.transfer(e.vaultAddress, payment.Payee, payment.Amount); err != nil {
		return nil, err
	}
	now := e.now()
	payment.Status = StatusCompleted
	payment.CompletedAt = uint64(now)
	payerAccount.Outgoing = removeID(payerAccount.Outgoing, payment.ID)
	payerAccount.EscrowBalance = new(big.Int).Sub(payerAccount.EscrowBalance, payment.Amount)
	payerAccount.TotalSent = new(big.Int).Add(payerAccount.TotalSent, payment.Amount)
	payeeAccount.Incoming = removeID(payeeAccount.Incoming, payment.ID)
	payeeAccount.TotalReceived = new(big.Int).Add(payeeAccount.TotalReceived, payment.Amount)
	if err := e.state.PaymentsPutPayment(payment); err != nil {
		return nil, err
	}
	if err := e.state.PaymentsPutAccount(payerAccount); err != nil {
		return nil, err
	}
	if err := e.state.PaymentsPutAccount(payeeAccount); err != nil {
		return nil, err
	}
	e.emit(newPaymentEvent(EventTypeCompleted, payment, now))
	return payment.Clone(), nil
}

// CancelPayment refunds escrowed funds to the payer. Only the payer may
// cancel, and only while the payment is still pending.
func (e *Engine) CancelPayment(caller [20]byte, id uint64) (*Payment, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}
	payment, err := e.state.PaymentsGetPayment(id)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, ErrPaymentNotFound
	}
	if payment.Status != StatusPending {
		return nil, ErrNotPending
	}
	if payment.Payer != caller {
		return nil, ErrNotPayer
	}
	payerAccount, err := e.loadAccount(payment.Payer)
	if err != nil {
		return nil, err
	}
	payeeAccount, err := e.loadAccount(payment.Payee)
	if err != nil {
		return nil, err
	}
	if err := e.transfer(e.vaultAddress, payment.Payer, payment.Amount); err != nil {
		return nil, err
	}
	now := e.now()
	payment.Status = StatusCancelled
	payment.CompletedAt = uint64(now)
	payerAccount.Outgoing = removeID(payerAccount.Outgoing, payment.ID)
	payerAccount.EscrowBalance = new(big.Int).Sub(payerAccount.EscrowBalance, payment.Amount)
	payeeAccount.Incoming = removeID(payeeAccount.Incoming, payment.ID)
	if err := e.state.PaymentsPutPayment(payment); err != nil {
		return nil, err
	}
	if err := e.state.PaymentsPutAccount(payerAccount); err != nil {
		return nil, err
	}
	if err := e.state.PaymentsPutAccount(payeeAccount); err != nil {
		return nil, err
	}
	e.emit(newPaymentEvent(EventTypeCancelled, payment, now))
	return payment.Clone(), nil
}

// Payment returns the committed record for an id.
func (e *Engine) Payment(id uint64) (*Payment, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	payment, err := e.state.PaymentsGetPayment(id)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, ErrPaymentNotFound
	}
	return payment.Clone(), nil
}

// AccountOf returns a participant's payment ledger.
func (e *Engine) AccountOf(addr [20]byte) (*Account, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	account, err := e.loadAccount(addr)
	if err != nil {
		return nil, err
	}
	return account.Clone(), nil
}
