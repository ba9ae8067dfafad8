package core

import (
	"errors"
	"log/slog"
	"math/big"
	"sync"

	"credchain/config"
	"credchain/core/events"
	"credchain/core/state"
	"credchain/core/types"
	"credchain/native/admin"
	"credchain/native/circles"
	"credchain/native/lending"
	"credchain/native/payments"
	"credchain/native/rates"
	"credchain/native/trust"
	"credchain/storage"
)

// ErrInvalidMintAmount rejects zero or negative mint amounts.
var ErrInvalidMintAmount = errors.New("node: mint amount must be positive")

// Node bundles the state manager and every native engine behind a single
// mutex. All mutating operations are serialized; each either fully commits
// or leaves state untouched, so concurrent callers observe a linear history.
type Node struct {
	mu       sync.Mutex
	db       storage.Database
	manager  *state.Manager
	recorder *events.Recorder
	logger   *slog.Logger

	adminEngine    *admin.Engine
	ratesEngine    *rates.Engine
	trustEngine    *trust.Engine
	lendingEngine  *lending.Engine
	circlesEngine  *circles.Engine
	paymentsEngine *payments.Engine
}

// loggingEmitter forwards engine events to the recorder and mirrors them to
// the structured log.
type loggingEmitter struct {
	recorder *events.Recorder
	logger   *slog.Logger
}

func (l loggingEmitter) Emit(evt events.Event) {
	if evt == nil {
		return
	}
	l.recorder.Emit(evt)
	if l.logger == nil {
		return
	}
	payload := evt.Event()
	if payload == nil {
		return
	}
	args := make([]any, 0, len(payload.Attributes))
	for key, value := range payload.Attributes {
		args = append(args, slog.String(key, value))
	}
	l.logger.Info(payload.Type, args...)
}

// NewNode wires the engines over the provided database. The configured
// interest curve is committed only on first boot; a populated store keeps
// whatever the admin last set.
func NewNode(db storage.Database, cfg *config.Config, logger *slog.Logger) (*Node, error) {
	if logger == nil {
		logger = slog.Default()
	}
	manager := state.NewManager(db)
	recorder := &events.Recorder{}
	emitter := loggingEmitter{recorder: recorder, logger: logger}

	adminEngine := admin.NewEngine()
	adminEngine.SetState(manager)
	adminEngine.SetEmitter(emitter)

	ratesEngine := rates.NewEngine()
	ratesEngine.SetState(manager)
	ratesEngine.SetEmitter(emitter)
	ratesEngine.SetPauses(adminEngine)
	ratesEngine.SetAdminView(adminEngine)

	trustEngine := trust.NewEngine()
	trustEngine.SetState(manager)
	trustEngine.SetEmitter(emitter)
	trustEngine.SetPauses(adminEngine)

	lendingEngine := lending.NewEngine()
	lendingEngine.SetState(manager)
	lendingEngine.SetEmitter(emitter)
	lendingEngine.SetPauses(adminEngine)
	lendingEngine.SetTrustView(trustEngine)

	circlesEngine := circles.NewEngine()
	circlesEngine.SetState(manager)
	circlesEngine.SetEmitter(emitter)
	circlesEngine.SetPauses(adminEngine)

	paymentsEngine := payments.NewEngine()
	paymentsEngine.SetState(manager)
	paymentsEngine.SetEmitter(emitter)
	paymentsEngine.SetPauses(adminEngine)

	node := &Node{
		db:             db,
		manager:        manager,
		recorder:       recorder,
		logger:         logger,
		adminEngine:    adminEngine,
		ratesEngine:    ratesEngine,
		trustEngine:    trustEngine,
		lendingEngine:  lendingEngine,
		circlesEngine:  circlesEngine,
		paymentsEngine: paymentsEngine,
	}
	if cfg != nil {
		if err := node.applyGenesis(cfg); err != nil {
			return nil, err
		}
	}
	return node, nil
}

func (n *Node) applyGenesis(cfg *config.Config) error {
	if cfg.Lending.MinCollateralRatioBps > 0 {
		n.lendingEngine.SetRiskParameters(lending.RiskParameters{
			MinCollateralRatioBps: cfg.Lending.MinCollateralRatioBps,
		})
	}
	hasModel, err := n.manager.RatesHasModel()
	if err != nil {
		return err
	}
	if !hasModel {
		if err := n.manager.RatesPutModel(&rates.Model{
			BaseRateBps:           cfg.Rates.BaseRateBps,
			OptimalUtilizationBps: cfg.Rates.OptimalUtilizationBps,
			Slope1Bps:             cfg.Rates.Slope1Bps,
			Slope2Bps:             cfg.Rates.Slope2Bps,
		}); err != nil {
			return err
		}
	}
	adminAddr, err := cfg.Admin()
	if err != nil {
		return err
	}
	if adminAddr != ([20]byte{}) && !n.adminEngine.IsAdmin(adminAddr) {
		if _, err := n.adminEngine.Initialize(adminAddr); err != nil && !errors.Is(err, admin.ErrAlreadyInitialized) {
			return err
		}
	}
	return nil
}

// Admin returns the protocol admin engine.
func (n *Node) Admin() *admin.Engine { return n.adminEngine }

// Rates returns the interest rate engine.
func (n *Node) Rates() *rates.Engine { return n.ratesEngine }

// Trust returns the trust score engine.
func (n *Node) Trust() *trust.Engine { return n.trustEngine }

// Lending returns the collateralized lending engine.
func (n *Node) Lending() *lending.Engine { return n.lendingEngine }

// Circles returns the circle engine.
func (n *Node) Circles() *circles.Engine { return n.circlesEngine }

// Payments returns the payment escrow engine.
func (n *Node) Payments() *payments.Engine { return n.paymentsEngine }

// WithWriteLock serializes a mutating operation against the node state.
// Every transaction entry point runs under this lock so engine writes never
// interleave.
func (n *Node) WithWriteLock(fn func() error) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return fn()
}

// Account returns the committed account record for an address.
func (n *Node) Account(addr [20]byte) (*types.Account, error) {
	account, err := n.manager.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return types.NewAccount(), nil
	}
	return account, nil
}

// Mint credits freshly issued base-asset funds to an account. Used by
// genesis allocation and local development faucets.
func (n *Node) Mint(addr [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidMintAmount
	}
	return n.WithWriteLock(func() error {
		account, err := n.manager.GetAccount(addr)
		if err != nil {
			return err
		}
		if account == nil {
			account = types.NewAccount()
		}
		account.Credit(types.BaseAsset, amount)
		return n.manager.PutAccount(addr, account)
	})
}

// Events returns every event emitted since boot in emission order.
func (n *Node) Events() []*types.Event {
	return n.recorder.Events()
}

// Close releases the underlying database.
func (n *Node) Close() error {
	if n == nil || n.db == nil {
		return nil
	}
	return n.db.Close()
}
