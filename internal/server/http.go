package server

import (
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"LendLedger/internal/asset"
	"LendLedger/internal/core"
	"LendLedger/internal/event"
	"LendLedger/internal/lending"
	"LendLedger/internal/observability"
	"LendLedger/internal/query"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Server exposes the ledger over HTTP/JSON. Mutations are routed
// through the core loop; history queries go to the persisted event
// log.
type Server struct {
	core    *core.Core
	queries *query.Service
	health  *observability.HealthChecker
	metrics *observability.Metrics
	log     zerolog.Logger

	// Dev-mode faucet over the in-memory asset ledgers; nil in
	// deployments backed by an external settlement asset.
	devToken  *asset.TokenLedger
	devNative *asset.NativeLedger
}

func New(
	c *core.Core,
	queries *query.Service,
	health *observability.HealthChecker,
	metrics *observability.Metrics,
	log zerolog.Logger,
) *Server {
	return &Server{
		core:    c,
		queries: queries,
		health:  health,
		metrics: metrics,
		log:     log,
	}
}

// EnableDevFaucet wires the admin faucet endpoints against the
// in-memory asset ledgers. Dev and test deployments only.
func (s *Server) EnableDevFaucet(token *asset.TokenLedger, native *asset.NativeLedger) {
	s.devToken = token
	s.devNative = native
}

// Router builds the chi router with all routes mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", s.health.LivenessHandler)
	r.Get("/readyz", s.health.ReadinessHandler)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/collateral/deposit", s.instrument("collateral_deposit", s.handleDepositCollateral))
		r.Post("/collateral/withdraw", s.instrument("collateral_withdraw", s.handleWithdrawCollateral))
		r.Post("/lend", s.instrument("lend", s.handleLend))
		r.Post("/borrow", s.instrument("borrow", s.handleBorrow))
		r.Post("/repay", s.instrument("repay", s.handleRepay))

		r.Get("/pool", s.instrument("pool", s.handlePool))
		r.Get("/interest/preview", s.instrument("interest_preview", s.handlePreviewInterest))
		r.Get("/accounts/{account}", s.instrument("account", s.handleAccount))
		r.Get("/accounts/{account}/repayment", s.instrument("repayment", s.handleRepayment))
		r.Get("/accounts/{account}/events", s.instrument("account_events", s.handleAccountEvents))
		r.Get("/accounts/{account}/summary", s.instrument("account_summary", s.handleAccountSummary))
		r.Get("/events", s.instrument("events", s.handleEvents))

		if s.devToken != nil {
			r.Post("/admin/faucet", s.instrument("admin_faucet", s.handleFaucet))
			r.Post("/admin/approve", s.instrument("admin_approve", s.handleApprove))
		}
	})

	return r
}

func (s *Server) instrument(endpoint string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		h(sw, r)
		if s.metrics != nil {
			s.metrics.APIRequests.WithLabelValues(endpoint, strconv.Itoa(sw.status)).Inc()
			s.metrics.APIDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
		}
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// --- request/response shapes ---

type amountRequest struct {
	Account string `json:"account"`
	Amount  string `json:"amount"`
}

type accountRequest struct {
	Account string `json:"account"`
}

type eventResponse struct {
	Sequence   int64  `json:"sequence"`
	EventType  string `json:"event_type"`
	EventID    string `json:"event_id"`
	Account    string `json:"account"`
	Amount     string `json:"amount"`
	Collateral string `json:"collateral,omitempty"`
	Principal  string `json:"principal,omitempty"`
	Interest   string `json:"interest,omitempty"`
	Timestamp  int64  `json:"timestamp"`
}

type accountResponse struct {
	Account           string `json:"account"`
	LendingBalance    string `json:"lending_balance"`
	CollateralBalance string `json:"collateral_balance"`
	BorrowedPrincipal string `json:"borrowed_principal"`
	BorrowStart       int64  `json:"borrow_start,omitempty"`
	TotalRepayment    string `json:"total_repayment"`
	MaxBorrowable     string `json:"max_borrowable"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// --- mutation handlers ---

func (s *Server) handleDepositCollateral(w http.ResponseWriter, r *http.Request) {
	account, amount, ok := s.decodeAmountRequest(w, r)
	if !ok {
		return
	}
	rec, err := s.core.DepositCollateral(r.Context(), account, amount)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeRecord(w, rec)
}

func (s *Server) handleWithdrawCollateral(w http.ResponseWriter, r *http.Request) {
	account, amount, ok := s.decodeAmountRequest(w, r)
	if !ok {
		return
	}
	rec, err := s.core.WithdrawCollateral(r.Context(), account, amount)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeRecord(w, rec)
}

func (s *Server) handleLend(w http.ResponseWriter, r *http.Request) {
	account, amount, ok := s.decodeAmountRequest(w, r)
	if !ok {
		return
	}
	rec, err := s.core.Lend(r.Context(), account, amount)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeRecord(w, rec)
}

func (s *Server) handleBorrow(w http.ResponseWriter, r *http.Request) {
	account, amount, ok := s.decodeAmountRequest(w, r)
	if !ok {
		return
	}
	rec, err := s.core.Borrow(r.Context(), account, amount)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeRecord(w, rec)
}

func (s *Server) handleRepay(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeStatus(w, http.StatusBadRequest, "malformed request body")
		return
	}
	account, err := uuid.Parse(req.Account)
	if err != nil {
		s.writeStatus(w, http.StatusBadRequest, "invalid account id")
		return
	}
	rec, err := s.core.Repay(r.Context(), account)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeRecord(w, rec)
}

// --- query handlers ---

func (s *Server) handlePool(w http.ResponseWriter, r *http.Request) {
	balance, err := s.core.PoolBalance(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	params := s.core.Params()
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"balance":          balance.String(),
		"interest_rate":    params.InterestRate,
		"collateral_ratio": params.CollateralRatio,
	})
}

func (s *Server) handlePreviewInterest(w http.ResponseWriter, r *http.Request) {
	principal, ok := new(big.Int).SetString(r.URL.Query().Get("principal"), 10)
	if !ok {
		s.writeStatus(w, http.StatusBadRequest, "invalid principal")
		return
	}
	duration, err := strconv.ParseInt(r.URL.Query().Get("duration"), 10, 64)
	if err != nil {
		s.writeStatus(w, http.StatusBadRequest, "invalid duration")
		return
	}
	interest, err := s.core.PreviewInterest(r.Context(), principal, duration)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"principal": principal.String(),
		"interest":  interest.String(),
	})
}

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	account, ok := s.pathAccount(w, r)
	if !ok {
		return
	}
	state, err := s.core.Account(r.Context(), account)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, accountResponse{
		Account:           state.Account.String(),
		LendingBalance:    state.LendingBalance.String(),
		CollateralBalance: state.CollateralBalance.String(),
		BorrowedPrincipal: state.BorrowedPrincipal.String(),
		BorrowStart:       state.BorrowStart,
		TotalRepayment:    state.TotalRepayment.String(),
		MaxBorrowable:     state.MaxBorrowable.String(),
	})
}

func (s *Server) handleRepayment(w http.ResponseWriter, r *http.Request) {
	account, ok := s.pathAccount(w, r)
	if !ok {
		return
	}
	owed, err := s.core.TotalRepayment(r.Context(), account)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"account":         account.String(),
		"total_repayment": owed.String(),
	})
}

func (s *Server) handleAccountEvents(w http.ResponseWriter, r *http.Request) {
	if s.queries == nil {
		s.writeStatus(w, http.StatusNotImplemented, "event log not configured")
		return
	}
	account, ok := s.pathAccount(w, r)
	if !ok {
		return
	}
	limit, before := pagination(r)
	entries, err := s.queries.AccountEvents(r.Context(), account, limit, before)
	if err != nil {
		s.log.Error().Err(err).Msg("account events query failed")
		s.writeStatus(w, http.StatusInternalServerError, "query failed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"events": entries})
}

func (s *Server) handleAccountSummary(w http.ResponseWriter, r *http.Request) {
	if s.queries == nil {
		s.writeStatus(w, http.StatusNotImplemented, "event log not configured")
		return
	}
	account, ok := s.pathAccount(w, r)
	if !ok {
		return
	}
	summary, err := s.queries.AccountSummary(r.Context(), account)
	if err != nil {
		s.log.Error().Err(err).Msg("account summary query failed")
		s.writeStatus(w, http.StatusInternalServerError, "query failed")
		return
	}
	s.writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.queries == nil {
		s.writeStatus(w, http.StatusNotImplemented, "event log not configured")
		return
	}
	limit, before := pagination(r)
	entries, err := s.queries.Events(r.Context(), limit, before)
	if err != nil {
		s.log.Error().Err(err).Msg("events query failed")
		s.writeStatus(w, http.StatusInternalServerError, "query failed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"events": entries})
}

// --- dev faucet handlers ---

type faucetRequest struct {
	Account string `json:"account"`
	Amount  string `json:"amount"`
	Asset   string `json:"asset"` // "settlement" or "native"
}

func (s *Server) handleFaucet(w http.ResponseWriter, r *http.Request) {
	var req faucetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeStatus(w, http.StatusBadRequest, "malformed request body")
		return
	}
	account, err := uuid.Parse(req.Account)
	if err != nil {
		s.writeStatus(w, http.StatusBadRequest, "invalid account id")
		return
	}
	amount, ok := new(big.Int).SetString(req.Amount, 10)
	if !ok {
		s.writeStatus(w, http.StatusBadRequest, "invalid amount")
		return
	}
	switch req.Asset {
	case "native":
		err = s.devNative.Credit(account, amount)
	case "settlement", "":
		err = s.devToken.Mint(account, amount)
	default:
		s.writeStatus(w, http.StatusBadRequest, "unknown asset")
		return
	}
	if err != nil {
		s.writeStatus(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type approveRequest struct {
	Owner  string `json:"owner"`
	Amount string `json:"amount"`
}

// handleApprove sets the owner's allowance toward the pool on the
// in-memory settlement asset. With a real external asset, approval
// happens out of band.
func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	var req approveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeStatus(w, http.StatusBadRequest, "malformed request body")
		return
	}
	owner, err := uuid.Parse(req.Owner)
	if err != nil {
		s.writeStatus(w, http.StatusBadRequest, "invalid owner id")
		return
	}
	amount, ok := new(big.Int).SetString(req.Amount, 10)
	if !ok {
		s.writeStatus(w, http.StatusBadRequest, "invalid amount")
		return
	}
	if err := s.devToken.Approve(owner, s.core.Pool(), amount); err != nil {
		s.writeStatus(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- helpers ---

func (s *Server) decodeAmountRequest(w http.ResponseWriter, r *http.Request) (uuid.UUID, *big.Int, bool) {
	var req amountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeStatus(w, http.StatusBadRequest, "malformed request body")
		return uuid.Nil, nil, false
	}
	account, err := uuid.Parse(req.Account)
	if err != nil {
		s.writeStatus(w, http.StatusBadRequest, "invalid account id")
		return uuid.Nil, nil, false
	}
	amount, ok := new(big.Int).SetString(req.Amount, 10)
	if !ok {
		s.writeStatus(w, http.StatusBadRequest, "invalid amount")
		return uuid.Nil, nil, false
	}
	return account, amount, true
}

func (s *Server) pathAccount(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	account, err := uuid.Parse(chi.URLParam(r, "account"))
	if err != nil {
		s.writeStatus(w, http.StatusBadRequest, "invalid account id")
		return uuid.Nil, false
	}
	return account, true
}

func pagination(r *http.Request) (int, *int64) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	var before *int64
	if v := r.URL.Query().Get("before"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			before = &n
		}
	}
	return limit, before
}

func (s *Server) writeRecord(w http.ResponseWriter, rec *event.Record) {
	resp := eventResponse{
		Sequence:  rec.Sequence,
		EventType: rec.Type.String(),
		EventID:   rec.EventID.String(),
		Account:   rec.Account.String(),
		Amount:    rec.Amount.String(),
		Timestamp: rec.Timestamp.Unix(),
	}
	if rec.Collateral != nil {
		resp.Collateral = rec.Collateral.String()
	}
	if rec.Principal != nil {
		resp.Principal = rec.Principal.String()
	}
	if rec.Interest != nil {
		resp.Interest = rec.Interest.String()
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// statusForError maps the error taxonomy to HTTP statuses. Malformed
// input and bad amounts are 400, state-machine violations 409,
// solvency and counterparty preconditions 422, a failed external
// transfer 502.
func statusForError(err error) int {
	switch {
	case errors.Is(err, lending.ErrInvalidAmount):
		return http.StatusBadRequest
	case errors.Is(err, lending.ErrOutstandingLoan),
		errors.Is(err, lending.ErrNoActiveLoan),
		errors.Is(err, lending.ErrReentrantCall):
		return http.StatusConflict
	case errors.Is(err, lending.ErrInsufficientBalance),
		errors.Is(err, lending.ErrInsufficientAllowance),
		errors.Is(err, lending.ErrInsufficientCollateral),
		errors.Is(err, lending.ErrInsufficientPoolFunds):
		return http.StatusUnprocessableEntity
	case errors.Is(err, lending.ErrTransferFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	s.writeStatus(w, statusForError(err), err.Error())
}

func (s *Server) writeStatus(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error().Err(err).Msg("response encode failed")
	}
}
