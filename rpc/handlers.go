package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"credchain/crypto"
	"credchain/native/trust"
)

// errBadRequest wraps malformed input so the error mapper can return 400.
var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

func decodeBody(r *http.Request, out interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		return badRequest("invalid json body: %v", err)
	}
	return nil
}

func addressParam(r *http.Request, name string) ([20]byte, error) {
	value := chi.URLParam(r, name)
	decoded, err := crypto.DecodeAddress(value)
	if err != nil {
		return [20]byte{}, badRequest("invalid %s address: %v", name, err)
	}
	return decoded.Raw(), nil
}

func idParam(r *http.Request, name string) (uint64, error) {
	value := chi.URLParam(r, name)
	id, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, badRequest("invalid %s: %v", name, err)
	}
	return id, nil
}

func parseAddress(value, field string) ([20]byte, error) {
	decoded, err := crypto.DecodeAddress(value)
	if err != nil {
		return [20]byte{}, badRequest("invalid %s: %v", field, err)
	}
	return decoded.Raw(), nil
}

func parseAmount(value, field string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, badRequest("invalid %s: %q is not a base-10 integer", field, value)
	}
	return amount, nil
}

func renderAddress(raw [20]byte) string {
	return crypto.NewAddress(crypto.CredPrefix, raw).String()
}

// --- accounts ---

type accountResponse struct {
	Address  string            `json:"address"`
	Nonce    uint64            `json:"nonce"`
	Balances map[string]string `json:"balances"`
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) error {
	addr, err := addressParam(r, "address")
	if err != nil {
		return err
	}
	account, err := s.node.Account(addr)
	if err != nil {
		return err
	}
	balances := make(map[string]string, len(account.Balances))
	for asset, amount := range account.Balances {
		balances[asset] = amount.String()
	}
	writeJSON(w, http.StatusOK, accountResponse{
		Address:  renderAddress(addr),
		Nonce:    account.Nonce,
		Balances: balances,
	})
	return nil
}

type eventResponse struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) error {
	recorded := s.node.Events()
	out := make([]eventResponse, 0, len(recorded))
	for _, evt := range recorded {
		out = append(out, eventResponse{Type: evt.Type, Attributes: evt.Attributes})
	}
	writeJSON(w, http.StatusOK, out)
	return nil
}

// --- lending ---

type poolResponse struct {
	Asset                 string `json:"asset"`
	TotalCollateral       string `json:"totalCollateral"`
	TotalLoans            string `json:"totalLoans"`
	AvailableLiquidity    string `json:"availableLiquidity"`
	Reserves              string `json:"reserves"`
	MinCollateralRatioBps uint64 `json:"minCollateralRatioBps"`
}

func (s *Server) handleGetPool(w http.ResponseWriter, r *http.Request) error {
	pool, err := s.node.Lending().Pool(chi.URLParam(r, "asset"))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, poolResponse{
		Asset:                 pool.Asset,
		TotalCollateral:       pool.TotalCollateral.String(),
		TotalLoans:            pool.TotalLoans.String(),
		AvailableLiquidity:    pool.AvailableLiquidity.String(),
		Reserves:              pool.Reserves.String(),
		MinCollateralRatioBps: pool.MinCollateralRatioBps,
	})
	return nil
}

type positionResponse struct {
	Address           string `json:"address"`
	Asset             string `json:"asset"`
	Collateral        string `json:"collateral"`
	Principal         string `json:"principal"`
	AccruedInterest   string `json:"accruedInterest"`
	Debt              string `json:"debt"`
	LiquiditySupplied string `json:"liquiditySupplied"`
	LastUpdate        uint64 `json:"lastUpdate"`
}

func (s *Server) handleGetPosition(w http.ResponseWriter, r *http.Request) error {
	addr, err := addressParam(r, "address")
	if err != nil {
		return err
	}
	position, err := s.node.Lending().Position(chi.URLParam(r, "asset"), addr)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, positionResponse{
		Address:           renderAddress(position.Address),
		Asset:             position.Asset,
		Collateral:        position.Collateral.String(),
		Principal:         position.Principal.String(),
		AccruedInterest:   position.AccruedInterest.String(),
		Debt:              position.Debt().String(),
		LiquiditySupplied: position.LiquiditySupplied.String(),
		LastUpdate:        position.LastUpdate,
	})
	return nil
}

type loanRequestResponse struct {
	ID               uint64 `json:"id"`
	Borrower         string `json:"borrower"`
	Asset            string `json:"asset"`
	Amount           string `json:"amount"`
	RateBps          uint64 `json:"rateBps"`
	DurationSeconds  uint64 `json:"durationSeconds"`
	CollateralAmount string `json:"collateralAmount"`
	Fulfilled        bool   `json:"fulfilled"`
	Fulfiller        string `json:"fulfiller,omitempty"`
	CreatedAt        uint64 `json:"createdAt"`
}

func (s *Server) handleGetLoanRequest(w http.ResponseWriter, r *http.Request) error {
	addr, err := addressParam(r, "address")
	if err != nil {
		return err
	}
	request, err := s.node.Lending().Request(addr)
	if err != nil {
		return err
	}
	resp := loanRequestResponse{
		ID:               request.ID,
		Borrower:         renderAddress(request.Borrower),
		Asset:            request.Asset,
		Amount:           request.Amount.String(),
		RateBps:          request.RateBps,
		DurationSeconds:  request.DurationSeconds,
		CollateralAmount: request.CollateralAmount.String(),
		Fulfilled:        request.Fulfilled,
		CreatedAt:        request.CreatedAt,
	}
	if request.Fulfilled {
		resp.Fulfiller = renderAddress(request.Fulfiller)
	}
	writeJSON(w, http.StatusOK, resp)
	return nil
}

type amountRequest struct {
	Caller string `json:"caller"`
	Asset  string `json:"asset"`
	Amount string `json:"amount"`
}

func (s *Server) lendingAmountOp(w http.ResponseWriter, r *http.Request, op func(caller [20]byte, asset string, amount *big.Int) error) error {
	var body amountRequest
	if err := decodeBody(r, &body); err != nil {
		return err
	}
	caller, err := parseAddress(body.Caller, "caller")
	if err != nil {
		return err
	}
	amount, err := parseAmount(body.Amount, "amount")
	if err != nil {
		return err
	}
	if err := s.node.WithWriteLock(func() error {
		return op(caller, body.Asset, amount)
	}); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	return nil
}

func (s *Server) handleDepositCollateral(w http.ResponseWriter, r *http.Request) error {
	return s.lendingAmountOp(w, r, s.node.Lending().DepositCollateral)
}

func (s *Server) handleWithdrawCollateral(w http.ResponseWriter, r *http.Request) error {
	return s.lendingAmountOp(w, r, s.node.Lending().WithdrawCollateral)
}

func (s *Server) handleSupplyLiquidity(w http.ResponseWriter, r *http.Request) error {
	return s.lendingAmountOp(w, r, s.node.Lending().SupplyLiquidity)
}

func (s *Server) handleWithdrawLiquidity(w http.ResponseWriter, r *http.Request) error {
	return s.lendingAmountOp(w, r, s.node.Lending().WithdrawLiquidity)
}

func (s *Server) handleBorrow(w http.ResponseWriter, r *http.Request) error {
	return s.lendingAmountOp(w, r, s.node.Lending().Borrow)
}

func (s *Server) handleRepay(w http.ResponseWriter, r *http.Request) error {
	var body amountRequest
	if err := decodeBody(r, &body); err != nil {
		return err
	}
	caller, err := parseAddress(body.Caller, "caller")
	if err != nil {
		return err
	}
	amount, err := parseAmount(body.Amount, "amount")
	if err != nil {
		return err
	}
	var applied *big.Int
	if err := s.node.WithWriteLock(func() error {
		var opErr error
		applied, opErr = s.node.Lending().Repay(caller, body.Asset, amount)
		return opErr
	}); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]string{"applied": applied.String()})
	return nil
}

type createLoanRequestBody struct {
	Caller           string `json:"caller"`
	Asset            string `json:"asset"`
	Amount           string `json:"amount"`
	RateBps          uint64 `json:"rateBps"`
	DurationSeconds  uint64 `json:"durationSeconds"`
	CollateralAmount string `json:"collateralAmount"`
}

func (s *Server) handleCreateLoanRequest(w http.ResponseWriter, r *http.Request) error {
	var body createLoanRequestBody
	if err := decodeBody(r, &body); err != nil {
		return err
	}
	caller, err := parseAddress(body.Caller, "caller")
	if err != nil {
		return err
	}
	amount, err := parseAmount(body.Amount, "amount")
	if err != nil {
		return err
	}
	collateral, err := parseAmount(body.CollateralAmount, "collateralAmount")
	if err != nil {
		return err
	}
	var id uint64
	if err := s.node.WithWriteLock(func() error {
		request, opErr := s.node.Lending().CreateLoanRequest(caller, body.Asset, amount, body.RateBps, body.DurationSeconds, collateral)
		if opErr != nil {
			return opErr
		}
		id = request.ID
		return nil
	}); err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, map[string]uint64{"id": id})
	return nil
}

type fulfillLoanBody struct {
	Caller   string `json:"caller"`
	Borrower string `json:"borrower"`
}

func (s *Server) handleFulfillLoan(w http.ResponseWriter, r *http.Request) error {
	var body fulfillLoanBody
	if err := decodeBody(r, &body); err != nil {
		return err
	}
	caller, err := parseAddress(body.Caller, "caller")
	if err != nil {
		return err
	}
	borrower, err := parseAddress(body.Borrower, "borrower")
	if err != nil {
		return err
	}
	if err := s.node.WithWriteLock(func() error {
		_, opErr := s.node.Lending().FulfillLoan(caller, borrower)
		return opErr
	}); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	return nil
}

type liquidateBody struct {
	Caller string `json:"caller"`
	User   string `json:"user"`
	Asset  string `json:"asset"`
}

func (s *Server) handleLiquidate(w http.ResponseWriter, r *http.Request) error {
	var body liquidateBody
	if err := decodeBody(r, &body); err != nil {
		return err
	}
	caller, err := parseAddress(body.Caller, "caller")
	if err != nil {
		return err
	}
	user, err := parseAddress(body.User, "user")
	if err != nil {
		return err
	}
	var repaid, seized *big.Int
	if err := s.node.WithWriteLock(func() error {
		var opErr error
		repaid, seized, opErr = s.node.Lending().Liquidate(caller, user, body.Asset)
		return opErr
	}); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"repaid": repaid.String(),
		"seized": seized.String(),
	})
	return nil
}

// --- circles ---

type circleResponse struct {
	ID              uint64   `json:"id"`
	Owner           string   `json:"owner"`
	Name            string   `json:"name"`
	Members         []string `json:"members"`
	MaxMembers      uint64   `json:"maxMembers"`
	TotalPool       string   `json:"totalPool"`
	MinContribution string   `json:"minContribution"`
	Active          bool     `json:"active"`
	CreatedAt       uint64   `json:"createdAt"`
}

func (s *Server) handleGetCircle(w http.ResponseWriter, r *http.Request) error {
	id, err := idParam(r, "id")
	if err != nil {
		return err
	}
	circle, err := s.node.Circles().Circle(id)
	if err != nil {
		return err
	}
	members := make([]string, 0, len(circle.Members))
	for _, member := range circle.Members {
		members = append(members, renderAddress(member))
	}
	writeJSON(w, http.StatusOK, circleResponse{
		ID:              circle.ID,
		Owner:           renderAddress(circle.Owner),
		Name:            circle.Name,
		Members:         members,
		MaxMembers:      circle.MaxMembers,
		TotalPool:       circle.TotalPool.String(),
		MinContribution: circle.MinContribution.String(),
		Active:          circle.Active,
		CreatedAt:       circle.CreatedAt,
	})
	return nil
}

type bidResponse struct {
	Bidder   string `json:"bidder"`
	Amount   string `json:"amount"`
	RateBps  uint64 `json:"rateBps"`
	Accepted bool   `json:"accepted"`
}

type roundResponse struct {
	CircleID  uint64        `json:"circleId"`
	Round     uint64        `json:"round"`
	Bids      []bidResponse `json:"bids"`
	StartTime uint64        `json:"startTime"`
	EndTime   uint64        `json:"endTime"`
	Active    bool          `json:"active"`
}

func (s *Server) handleGetRound(w http.ResponseWriter, r *http.Request) error {
	id, err := idParam(r, "id")
	if err != nil {
		return err
	}
	round, err := s.node.Circles().Round(id)
	if err != nil {
		return err
	}
	bids := make([]bidResponse, 0, len(round.Bids))
	for _, bid := range round.Bids {
		bids = append(bids, bidResponse{
			Bidder:   renderAddress(bid.Bidder),
			Amount:   bid.Amount.String(),
			RateBps:  bid.RateBps,
			Accepted: bid.Accepted,
		})
	}
	writeJSON(w, http.StatusOK, roundResponse{
		CircleID:  round.CircleID,
		Round:     round.Round,
		Bids:      bids,
		StartTime: round.StartTime,
		EndTime:   round.EndTime,
		Active:    round.Active,
	})
	return nil
}

type stakeResponse struct {
	CircleID uint64 `json:"circleId"`
	Member   string `json:"member"`
	Amount   string `json:"amount"`
	StakedAt uint64 `json:"stakedAt"`
}

func (s *Server) handleGetStake(w http.ResponseWriter, r *http.Request) error {
	id, err := idParam(r, "id")
	if err != nil {
		return err
	}
	member, err := addressParam(r, "address")
	if err != nil {
		return err
	}
	stake, err := s.node.Circles().StakeOf(id, member)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, stakeResponse{
		CircleID: stake.CircleID,
		Member:   renderAddress(stake.Member),
		Amount:   stake.Amount.String(),
		StakedAt: stake.StakedAt,
	})
	return nil
}

type createCircleBody struct {
	Caller          string `json:"caller"`
	Name            string `json:"name"`
	MaxMembers      uint64 `json:"maxMembers"`
	MinContribution string `json:"minContribution"`
}

func (s *Server) handleCreateCircle(w http.ResponseWriter, r *http.Request) error {
	var body createCircleBody
	if err := decodeBody(r, &body); err != nil {
		return err
	}
	caller, err := parseAddress(body.Caller, "caller")
	if err != nil {
		return err
	}
	minContribution, err := parseAmount(body.MinContribution, "minContribution")
	if err != nil {
		return err
	}
	var id uint64
	if err := s.node.WithWriteLock(func() error {
		circle, opErr := s.node.Circles().CreateCircle(caller, body.Name, body.MaxMembers, minContribution)
		if opErr != nil {
			return opErr
		}
		id = circle.ID
		return nil
	}); err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, map[string]uint64{"id": id})
	return nil
}

type joinCircleBody struct {
	Caller string `json:"caller"`
	Stake  string `json:"stake"`
}

func (s *Server) handleJoinCircle(w http.ResponseWriter, r *http.Request) error {
	id, err := idParam(r, "id")
	if err != nil {
		return err
	}
	var body joinCircleBody
	if err := decodeBody(r, &body); err != nil {
		return err
	}
	caller, err := parseAddress(body.Caller, "caller")
	if err != nil {
		return err
	}
	stake, err := parseAmount(body.Stake, "stake")
	if err != nil {
		return err
	}
	if err := s.node.WithWriteLock(func() error {
		return s.node.Circles().JoinCircle(caller, id, stake)
	}); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	return nil
}

type callerBody struct {
	Caller string `json:"caller"`
}

func (s *Server) handleStartRound(w http.ResponseWriter, r *http.Request) error {
	id, err := idParam(r, "id")
	if err != nil {
		return err
	}
	var body callerBody
	if err := decodeBody(r, &body); err != nil {
		return err
	}
	caller, err := parseAddress(body.Caller, "caller")
	if err != nil {
		return err
	}
	var round uint64
	if err := s.node.WithWriteLock(func() error {
		started, opErr := s.node.Circles().StartBiddingRound(caller, id)
		if opErr != nil {
			return opErr
		}
		round = started.Round
		return nil
	}); err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, map[string]uint64{"round": round})
	return nil
}

type submitBidBody struct {
	Caller  string `json:"caller"`
	Amount  string `json:"amount"`
	RateBps uint64 `json:"rateBps"`
}

func (s *Server) handleSubmitBid(w http.ResponseWriter, r *http.Request) error {
	id, err := idParam(r, "id")
	if err != nil {
		return err
	}
	var body submitBidBody
	if err := decodeBody(r, &body); err != nil {
		return err
	}
	caller, err := parseAddress(body.Caller, "caller")
	if err != nil {
		return err
	}
	amount, err := parseAmount(body.Amount, "amount")
	if err != nil {
		return err
	}
	if err := s.node.WithWriteLock(func() error {
		return s.node.Circles().SubmitBid(caller, id, amount, body.RateBps)
	}); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	return nil
}

type distributeBody struct {
	Caller string `json:"caller"`
	Winner string `json:"winner"`
}

func (s *Server) handleDistribute(w http.ResponseWriter, r *http.Request) error {
	id, err := idParam(r, "id")
	if err != nil {
		return err
	}
	var body distributeBody
	if err := decodeBody(r, &body); err != nil {
		return err
	}
	caller, err := parseAddress(body.Caller, "caller")
	if err != nil {
		return err
	}
	winner, err := parseAddress(body.Winner, "winner")
	if err != nil {
		return err
	}
	var amount string
	if err := s.node.WithWriteLock(func() error {
		bid, opErr := s.node.Circles().DistributeFunds(caller, id, winner)
		if opErr != nil {
			return opErr
		}
		amount = bid.Amount.String()
		return nil
	}); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]string{"amount": amount})
	return nil
}

// --- trust ---

type scoreResponse struct {
	Address       string   `json:"address"`
	Value         uint64   `json:"value"`
	SuccessfulTx  uint64   `json:"successfulTx"`
	FailedTx      uint64   `json:"failedTx"`
	TotalBorrowed string   `json:"totalBorrowed"`
	TotalRepaid   string   `json:"totalRepaid"`
	Endorsers     []string `json:"endorsers"`
	Level         uint8    `json:"level"`
	LastUpdate    uint64   `json:"lastUpdate"`
}

func (s *Server) handleGetScore(w http.ResponseWriter, r *http.Request) error {
	addr, err := addressParam(r, "address")
	if err != nil {
		return err
	}
	score, err := s.node.Trust().Score(addr)
	if err != nil {
		return err
	}
	endorsers := make([]string, 0, len(score.Endorsers))
	for _, endorser := range score.Endorsers {
		endorsers = append(endorsers, renderAddress(endorser))
	}
	writeJSON(w, http.StatusOK, scoreResponse{
		Address:       renderAddress(score.Address),
		Value:         score.Value,
		SuccessfulTx:  score.SuccessfulTx,
		FailedTx:      score.FailedTx,
		TotalBorrowed: score.TotalBorrowed.String(),
		TotalRepaid:   score.TotalRepaid.String(),
		Endorsers:     endorsers,
		Level:         trust.ReputationLevel(score.Value),
		LastUpdate:    score.LastUpdate,
	})
	return nil
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) error {
	var body callerBody
	if err := decodeBody(r, &body); err != nil {
		return err
	}
	caller, err := parseAddress(body.Caller, "caller")
	if err != nil {
		return err
	}
	var value uint64
	if err := s.node.WithWriteLock(func() error {
		score, opErr := s.node.Trust().Register(caller)
		if opErr != nil {
			return opErr
		}
		value = score.Value
		return nil
	}); err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, map[string]uint64{"value": value})
	return nil
}

type endorseBody struct {
	Caller   string `json:"caller"`
	Endorsed string `json:"endorsed"`
}

func (s *Server) handleEndorse(w http.ResponseWriter, r *http.Request) error {
	var body endorseBody
	if err := decodeBody(r, &body); err != nil {
		return err
	}
	caller, err := parseAddress(body.Caller, "caller")
	if err != nil {
		return err
	}
	endorsed, err := parseAddress(body.Endorsed, "endorsed")
	if err != nil {
		return err
	}
	if err := s.node.WithWriteLock(func() error {
		return s.node.Trust().Endorse(caller, endorsed)
	}); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	return nil
}

// --- payments ---

type paymentResponse struct {
	ID          uint64 `json:"id"`
	Payer       string `json:"payer"`
	Payee       string `json:"payee"`
	Amount      string `json:"amount"`
	Status      string `json:"status"`
	Description string `json:"description,omitempty"`
	CreatedAt   uint64 `json:"createdAt"`
	CompletedAt uint64 `json:"completedAt,omitempty"`
}

func (s *Server) handleGetPayment(w http.ResponseWriter, r *http.Request) error {
	id, err := idParam(r, "id")
	if err != nil {
		return err
	}
	payment, err := s.node.Payments().Payment(id)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, paymentResponse{
		ID:          payment.ID,
		Payer:       renderAddress(payment.Payer),
		Payee:       renderAddress(payment.Payee),
		Amount:      payment.Amount.String(),
		Status:      payment.Status.String(),
		Description: payment.Description,
		CreatedAt:   payment.CreatedAt,
		CompletedAt: payment.CompletedAt,
	})
	return nil
}

type paymentAccountResponse struct {
	Address       string   `json:"address"`
	Incoming      []uint64 `json:"incoming"`
	Outgoing      []uint64 `json:"outgoing"`
	EscrowBalance string   `json:"escrowBalance"`
	TotalSent     string   `json:"totalSent"`
	TotalReceived string   `json:"totalReceived"`
	CreatedAt     uint64   `json:"createdAt"`
}

func (s *Server) handleGetPaymentAccount(w http.ResponseWriter, r *http.Request) error {
	addr, err := addressParam(r, "address")
	if err != nil {
		return err
	}
	account, err := s.node.Payments().AccountOf(addr)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, paymentAccountResponse{
		Address:       renderAddress(account.Address),
		Incoming:      account.Incoming,
		Outgoing:      account.Outgoing,
		EscrowBalance: account.EscrowBalance.String(),
		TotalSent:     account.TotalSent.String(),
		TotalReceived: account.TotalReceived.String(),
		CreatedAt:     account.CreatedAt,
	})
	return nil
}

func (s *Server) handleOpenAccount(w http.ResponseWriter, r *http.Request) error {
	var body callerBody
	if err := decodeBody(r, &body); err != nil {
		return err
	}
	caller, err := parseAddress(body.Caller, "caller")
	if err != nil {
		return err
	}
	if err := s.node.WithWriteLock(func() error {
		_, opErr := s.node.Payments().OpenAccount(caller)
		return opErr
	}); err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "ok"})
	return nil
}

type createPaymentBody struct {
	Payer       string `json:"payer"`
	Payee       string `json:"payee"`
	Amount      string `json:"amount"`
	Description string `json:"description"`
}

func (s *Server) handleCreatePayment(w http.ResponseWriter, r *http.Request) error {
	var body createPaymentBody
	if err := decodeBody(r, &body); err != nil {
		return err
	}
	payer, err := parseAddress(body.Payer, "payer")
	if err != nil {
		return err
	}
	payee, err := parseAddress(body.Payee, "payee")
	if err != nil {
		return err
	}
	amount, err := parseAmount(body.Amount, "amount")
	if err != nil {
		return err
	}
	var id uint64
	if err := s.node.WithWriteLock(func() error {
		payment, opErr := s.node.Payments().CreatePayment(payer, payee, amount, body.Description)
		if opErr != nil {
			return opErr
		}
		id = payment.ID
		return nil
	}); err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, map[string]uint64{"id": id})
	return nil
}

func (s *Server) settlePayment(w http.ResponseWriter, r *http.Request, settle func(caller [20]byte, id uint64) error) error {
	id, err := idParam(r, "id")
	if err != nil {
		return err
	}
	var body callerBody
	if err := decodeBody(r, &body); err != nil {
		return err
	}
	caller, err := parseAddress(body.Caller, "caller")
	if err != nil {
		return err
	}
	if err := s.node.WithWriteLock(func() error {
		return settle(caller, id)
	}); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	return nil
}

func (s *Server) handleCompletePayment(w http.ResponseWriter, r *http.Request) error {
	return s.settlePayment(w, r, func(caller [20]byte, id uint64) error {
		_, err := s.node.Payments().CompletePayment(caller, id)
		return err
	})
}

func (s *Server) handleCancelPayment(w http.ResponseWriter, r *http.Request) error {
	return s.settlePayment(w, r, func(caller [20]byte, id uint64) error {
		_, err := s.node.Payments().CancelPayment(caller, id)
		return err
	})
}

// --- rates ---

type modelResponse struct {
	BaseRateBps           uint64 `json:"baseRateBps"`
	OptimalUtilizationBps uint64 `json:"optimalUtilizationBps"`
	Slope1Bps             uint64 `json:"slope1Bps"`
	Slope2Bps             uint64 `json:"slope2Bps"`
	LastUpdate            uint64 `json:"lastUpdate"`
}

func (s *Server) handleGetModel(w http.ResponseWriter, r *http.Request) error {
	model, err := s.node.Rates().Model()
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, modelResponse{
		BaseRateBps:           model.BaseRateBps,
		OptimalUtilizationBps: model.OptimalUtilizationBps,
		Slope1Bps:             model.Slope1Bps,
		Slope2Bps:             model.Slope2Bps,
		LastUpdate:            model.LastUpdate,
	})
	return nil
}

type proposalResponse struct {
	ID          uint64   `json:"id"`
	Proposer    string   `json:"proposer"`
	Kind        string   `json:"kind"`
	ValuesBps   []uint64 `json:"valuesBps"`
	SubmittedAt uint64   `json:"submittedAt"`
	Status      uint8    `json:"status"`
}

func (s *Server) handleListProposals(w http.ResponseWriter, r *http.Request) error {
	proposals, err := s.node.Rates().Proposals()
	if err != nil {
		return err
	}
	out := make([]proposalResponse, 0, len(proposals))
	for _, proposal := range proposals {
		out = append(out, proposalResponse{
			ID:          proposal.ID,
			Proposer:    renderAddress(proposal.Proposer),
			Kind:        string(proposal.Kind),
			ValuesBps:   proposal.ValuesBps,
			SubmittedAt: proposal.SubmittedAt,
			Status:      uint8(proposal.Status),
		})
	}
	writeJSON(w, http.StatusOK, out)
	return nil
}

// --- admin ---

type adminConfigResponse struct {
	Admin         string   `json:"admin"`
	Version       uint64   `json:"version"`
	PausedModules []string `json:"pausedModules"`
	UpdatedAt     uint64   `json:"updatedAt"`
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) error {
	config, err := s.node.Admin().Config()
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, adminConfigResponse{
		Admin:         renderAddress(config.Admin),
		Version:       config.Version,
		PausedModules: config.PausedModules,
		UpdatedAt:     config.UpdatedAt,
	})
	return nil
}

func (s *Server) handleGetTVL(w http.ResponseWriter, r *http.Request) error {
	tvl, err := s.node.Admin().TotalValueLocked()
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]string{"totalValueLocked": tvl.String()})
	return nil
}
