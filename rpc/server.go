package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"credchain/core"
	"credchain/native/admin"
	"credchain/native/circles"
	nativecommon "credchain/native/common"
	"credchain/native/lending"
	"credchain/native/payments"
	"credchain/native/rates"
	"credchain/native/trust"
	"credchain/observability"
)

// Server exposes the protocol over HTTP. Reads hit engine getters directly;
// writes run under the node write lock so they serialize like transactions.
type Server struct {
	node    *core.Node
	logger  *slog.Logger
	metrics *observability.ModuleMetrics
	http    *http.Server
}

// NewServer builds an RPC server over the node.
func NewServer(node *core.Node, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		node:    node,
		logger:  logger.With(slog.String("component", "rpc")),
		metrics: observability.Metrics(),
	}
}

// Router assembles the route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Route("/v1", func(r chi.Router) {
		r.Get("/accounts/{address}", s.instrument("accounts", "get", s.handleGetAccount))
		r.Get("/events", s.instrument("events", "list", s.handleListEvents))

		r.Route("/lending", func(r chi.Router) {
			r.Get("/pools/{asset}", s.instrument("lending", "pool", s.handleGetPool))
			r.Get("/positions/{asset}/{address}", s.instrument("lending", "position", s.handleGetPosition))
			r.Get("/requests/{address}", s.instrument("lending", "request", s.handleGetLoanRequest))
			r.Post("/collateral/deposit", s.instrument("lending", "deposit_collateral", s.handleDepositCollateral))
			r.Post("/collateral/withdraw", s.instrument("lending", "withdraw_collateral", s.handleWithdrawCollateral))
			r.Post("/liquidity/supply", s.instrument("lending", "supply_liquidity", s.handleSupplyLiquidity))
			r.Post("/liquidity/withdraw", s.instrument("lending", "withdraw_liquidity", s.handleWithdrawLiquidity))
			r.Post("/borrow", s.instrument("lending", "borrow", s.handleBorrow))
			r.Post("/repay", s.instrument("lending", "repay", s.handleRepay))
			r.Post("/requests", s.instrument("lending", "create_loan_request", s.handleCreateLoanRequest))
			r.Post("/requests/fulfill", s.instrument("lending", "fulfill_loan", s.handleFulfillLoan))
			r.Post("/liquidate", s.instrument("lending", "liquidate", s.handleLiquidate))
		})

		r.Route("/circles", func(r chi.Router) {
			r.Get("/{id}", s.instrument("circles", "get", s.handleGetCircle))
			r.Get("/{id}/round", s.instrument("circles", "round", s.handleGetRound))
			r.Get("/{id}/stakes/{address}", s.instrument("circles", "stake", s.handleGetStake))
			r.Post("/", s.instrument("circles", "create", s.handleCreateCircle))
			r.Post("/{id}/join", s.instrument("circles", "join", s.handleJoinCircle))
			r.Post("/{id}/rounds", s.instrument("circles", "start_round", s.handleStartRound))
			r.Post("/{id}/bids", s.instrument("circles", "submit_bid", s.handleSubmitBid))
			r.Post("/{id}/distribute", s.instrument("circles", "distribute", s.handleDistribute))
		})

		r.Route("/trust", func(r chi.Router) {
			r.Get("/scores/{address}", s.instrument("trust", "score", s.handleGetScore))
			r.Post("/register", s.instrument("trust", "register", s.handleRegister))
			r.Post("/endorse", s.instrument("trust", "endorse", s.handleEndorse))
		})

		r.Route("/payments", func(r chi.Router) {
			r.Get("/{id}", s.instrument("payments", "get", s.handleGetPayment))
			r.Get("/accounts/{address}", s.instrument("payments", "account", s.handleGetPaymentAccount))
			r.Post("/accounts", s.instrument("payments", "open_account", s.handleOpenAccount))
			r.Post("/", s.instrument("payments", "create", s.handleCreatePayment))
			r.Post("/{id}/complete", s.instrument("payments", "complete", s.handleCompletePayment))
			r.Post("/{id}/cancel", s.instrument("payments", "cancel", s.handleCancelPayment))
		})

		r.Route("/rates", func(r chi.Router) {
			r.Get("/model", s.instrument("rates", "model", s.handleGetModel))
			r.Get("/proposals", s.instrument("rates", "proposals", s.handleListProposals))
		})

		r.Route("/admin", func(r chi.Router) {
			r.Get("/config", s.instrument("admin", "config", s.handleGetConfig))
			r.Get("/tvl", s.instrument("admin", "tvl", s.handleGetTVL))
		})
	})

	return r
}

// Serve runs the HTTP listener until the context is cancelled.
func (s *Server) Serve(ctx context.Context, addr string) error {
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.http.ListenAndServe()
	}()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

type handlerFunc func(w http.ResponseWriter, r *http.Request) error

func (s *Server) instrument(module, method string, fn handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		err := fn(w, r)
		s.metrics.Observe(module, method, err, time.Since(start))
		if err != nil {
			s.writeError(w, r, module, method, err)
		}
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, module, method string, err error) {
	status := statusForError(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("handler failed",
			slog.String("module", module),
			slog.String("method", method),
			slog.String("path", r.URL.Path),
			slog.String("err", err.Error()),
		)
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, nativecommon.ErrModulePaused):
		return http.StatusServiceUnavailable
	case isNotFound(err):
		return http.StatusNotFound
	case isConflict(err):
		return http.StatusConflict
	case isUnauthorized(err):
		return http.StatusForbidden
	case isRejected(err):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func isNotFound(err error) bool {
	for _, target := range []error{
		lending.ErrLoanRequestNotFound,
		circles.ErrCircleNotFound,
		circles.ErrBidNotFound,
		trust.ErrScoreNotFound,
		payments.ErrPaymentNotFound,
		payments.ErrAccountNotFound,
		rates.ErrProposalNotFound,
		admin.ErrNotInitialized,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func isConflict(err error) bool {
	for _, target := range []error{
		trust.ErrAlreadyRegistered,
		trust.ErrAlreadyEndorsed,
		circles.ErrAlreadyMember,
		payments.ErrAccountExists,
		lending.ErrLoanAlreadyFulfilled,
		admin.ErrAlreadyInitialized,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func isUnauthorized(err error) bool {
	for _, target := range []error{
		rates.ErrNotAuthorized,
		circles.ErrNotOwner,
		payments.ErrNotPayee,
		payments.ErrNotPayer,
		admin.ErrInvalidCapability,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func isRejected(err error) bool {
	for _, target := range []error{
		lending.ErrInvalidAmount,
		lending.ErrInsufficientCollateral,
		lending.ErrInsufficientBalance,
		lending.ErrUndercollateralized,
		lending.ErrPoolExhausted,
		lending.ErrNoOutstandingDebt,
		lending.ErrNotLiquidatable,
		circles.ErrInvalidAmount,
		circles.ErrCircleFull,
		circles.ErrCircleInactive,
		circles.ErrNotMember,
		circles.ErrInsufficientStake,
		circles.ErrInsufficientPool,
		circles.ErrBiddingClosed,
		circles.ErrInsufficientBalance,
		trust.ErrSelfEndorsement,
		payments.ErrInvalidAmount,
		payments.ErrSelfPayment,
		payments.ErrNotPending,
		payments.ErrInsufficientBalance,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
