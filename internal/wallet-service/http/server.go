package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/betstack/wallet-platform/internal/wallet-service/balance"
	"github.com/betstack/wallet-platform/internal/wallet-service/dto"
	"github.com/betstack/wallet-platform/internal/wallet-service/ledger"
	"github.com/betstack/wallet-platform/internal/wallet-service/query"
	"github.com/betstack/wallet-platform/internal/wallet-service/withdraw"
)

// Server expõe a API REST da carteira consumida pelo client e pelo admin
type Server struct {
	log     *zap.Logger
	flows   *withdraw.Service
	engine  *balance.Engine
	queries *query.Service
}

func NewServer(log *zap.Logger, flows *withdraw.Service, engine *balance.Engine, queries *query.Service) *Server {
	return &Server{log: log, flows: flows, engine: engine, queries: queries}
}

// Router retorna o mux HTTP com as rotas da API
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/withdrawals", s.withdrawals)        // POST | GET ?accountId=
	mux.HandleFunc("/withdrawals/", s.decideWithdrawal)  // PUT /withdrawals/{id}/approve|reject
	mux.HandleFunc("/deposits", s.deposits)              // POST | GET ?accountId=
	mux.HandleFunc("/deposits/", s.decideDeposit)        // PUT /deposits/{id}/approve|reject
	mux.HandleFunc("/bonuses", s.grantBonus)             // POST
	mux.HandleFunc("/adjustments", s.adjust)             // POST
	mux.HandleFunc("/wallet", s.getWallet)               // GET ?accountId=
	mux.HandleFunc("/dashboard", s.dashboard)            // GET ?startDate=&endDate=
	mux.HandleFunc("/transactions/recent", s.recent)     // GET ?kind=&limit=
	return mux
}

func (s *Server) withdrawals(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.createWithdrawal(w, r)
	case http.MethodGet:
		s.listByAccount(w, r, ledger.KindWithdraw)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) deposits(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.createDeposit(w, r)
	case http.MethodGet:
		s.listByAccount(w, r, ledger.KindDeposit)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) createWithdrawal(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateWithdrawalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "bad json")
		return
	}

	tx, err := s.flows.CreateWithdrawal(r.Context(), withdraw.CreateWithdrawalInput{
		AccountID:   req.AccountID,
		Method:      req.Method,
		Destination: req.Destination,
		AmountCents: req.Amount,
		ExternalRef: req.ExternalRef,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSONStatus(w, http.StatusCreated, dto.CreateTransactionResponse{
		TransactionID: tx.ID,
		Status:        strings.ToLower(string(tx.Status)),
	})
}

func (s *Server) createDeposit(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateDepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "bad json")
		return
	}

	tx, err := s.flows.CreateDeposit(r.Context(), withdraw.CreateDepositInput{
		AccountID:   req.AccountID,
		Method:      req.Method,
		Destination: req.Destination,
		AmountCents: req.Amount,
		ExternalRef: req.ExternalRef,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSONStatus(w, http.StatusCreated, dto.CreateTransactionResponse{
		TransactionID: tx.ID,
		Status:        strings.ToLower(string(tx.Status)),
	})
}

func (s *Server) listByAccount(w http.ResponseWriter, r *http.Request, kind ledger.Kind) {
	accountID := r.URL.Query().Get("accountId")
	if accountID == "" {
		writeError(w, http.StatusBadRequest, "validation_error", "accountId required")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	txs, err := s.flows.List(r.Context(), accountID, kind, limit, offset)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, dto.FromTransactions(txs))
}

func (s *Server) decideWithdrawal(w http.ResponseWriter, r *http.Request) {
	s.decide(w, r, "/withdrawals/", ledger.KindWithdraw)
}

func (s *Server) decideDeposit(w http.ResponseWriter, r *http.Request) {
	s.decide(w, r, "/deposits/", ledger.KindDeposit)
}

// decide trata PUT {prefix}{id}/approve e {prefix}{id}/reject
func (s *Server) decide(w http.ResponseWriter, r *http.Request, prefix string, kind ledger.Kind) {
	if r.Method != http.MethodPut {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, prefix)
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" {
		writeError(w, http.StatusNotFound, "not_found", "")
		return
	}
	id, action := parts[0], parts[1]

	var req dto.DecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "bad json")
		return
	}

	var tx *ledger.Transaction
	var err error
	switch action {
	case "approve":
		tx, err = s.flows.Approve(r.Context(), id, kind, req.AdminID)
	case "reject":
		tx, err = s.flows.Reject(r.Context(), id, kind, req.AdminID)
	default:
		writeError(w, http.StatusNotFound, "not_found", "")
		return
	}
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, dto.DecisionResponse{Status: strings.ToLower(string(tx.Status))})
}

func (s *Server) grantBonus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req dto.BonusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "bad json")
		return
	}
	tx, err := s.flows.GrantBonus(r.Context(), req.AccountID, req.Amount, req.AdminID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, dto.FromTransaction(*tx))
}

func (s *Server) adjust(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req dto.AdjustmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "bad json")
		return
	}
	tx, err := s.flows.Adjust(r.Context(), req.AccountID, req.Amount, req.AdminID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, dto.FromTransaction(*tx))
}

// getWallet retorna (ou cria) a carteira e os saldos do jogador
func (s *Server) getWallet(w http.ResponseWriter, r *http.Request) {
	accountID := r.URL.Query().Get("accountId")
	if accountID == "" {
		writeError(w, http.StatusBadRequest, "validation_error", "accountId required")
		return
	}
	snap, err := s.engine.GetOrCreate(r.Context(), accountID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, dto.WalletResponse{
		AccountID: snap.AccountID,
		Balance:   snap.BalanceCents,
		Reserved:  snap.ReservedCents,
		Available: snap.AvailableCents,
		Status:    strings.ToLower(snap.Status),
	})
}

func (s *Server) dashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	start, err := parseDate(r.URL.Query().Get("startDate"), time.Time{})
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "invalid startDate")
		return
	}
	end, err := parseDate(r.URL.Query().Get("endDate"), time.Now())
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "invalid endDate")
		return
	}

	sum, err := s.queries.Dashboard(r.Context(), start, end)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, sum)
}

func (s *Server) recent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	kind := ledger.Kind(strings.ToUpper(r.URL.Query().Get("kind")))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	txs, err := s.queries.Recent(r.Context(), kind, limit)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, dto.FromTransactions(txs))
}

// writeDomainError mapeia a taxonomia de erros do domínio em códigos
// estáveis. Violações de invariante saem como "internal": o detalhe vai
// pro log, nunca pro cliente.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	var verr *withdraw.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, "validation_error", verr.Error())
	case errors.Is(err, withdraw.ErrAccountBlocked):
		writeError(w, http.StatusBadRequest, "account_blocked", "")
	case errors.Is(err, balance.ErrInsufficientFunds):
		writeError(w, http.StatusConflict, "insufficient_funds", "")
	case errors.Is(err, ledger.ErrConflict):
		writeError(w, http.StatusConflict, "already_decided", "")
	case errors.Is(err, balance.ErrBusy):
		writeError(w, http.StatusTooManyRequests, "busy", "")
	case errors.Is(err, ledger.ErrNotFound), errors.Is(err, balance.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "")
	default:
		s.log.Error("internal error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal", "")
	}
}

// parseDate aceita RFC3339 ou data simples "2006-01-02"
func parseDate(v string, def time.Time) (time.Time, error) {
	if v == "" {
		return def, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", v)
}

// writeJSON serializa e envia resposta JSON
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSONStatus(w, status, dto.ErrorResponse{Error: code, Message: msg})
}
