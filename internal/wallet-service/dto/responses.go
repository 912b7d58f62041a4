package dto

import (
	"strings"
	"time"

	"github.com/betstack/wallet-platform/internal/wallet-service/ledger"
)

// Na API pública status e kind saem em minúsculas ("pending", "withdraw");
// internamente o razão trabalha em maiúsculas.

type CreateTransactionResponse struct {
	TransactionID string `json:"transactionId"`
	Status        string `json:"status"`
}

type DecisionResponse struct {
	Status string `json:"status"`
}

type TransactionResponse struct {
	TransactionID string     `json:"transactionId"`
	AccountID     string     `json:"accountId"`
	Kind          string     `json:"kind"`
	Amount        int64      `json:"amount"`
	Status        string     `json:"status"`
	Method        string     `json:"method,omitempty"`
	Destination   string     `json:"destination,omitempty"`
	DecidedBy     string     `json:"decidedBy,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	DecidedAt     *time.Time `json:"decidedAt,omitempty"`
}

func FromTransaction(t ledger.Transaction) TransactionResponse {
	return TransactionResponse{
		TransactionID: t.ID,
		AccountID:     t.AccountID,
		Kind:          strings.ToLower(string(t.Kind)),
		Amount:        t.AmountCents,
		Status:        strings.ToLower(string(t.Status)),
		Method:        t.Method,
		Destination:   t.Destination,
		DecidedBy:     t.DecidedBy,
		CreatedAt:     t.CreatedAt,
		DecidedAt:     t.DecidedAt,
	}
}

func FromTransactions(ts []ledger.Transaction) []TransactionResponse {
	out := make([]TransactionResponse, 0, len(ts))
	for _, t := range ts {
		out = append(out, FromTransaction(t))
	}
	return out
}

type WalletResponse struct {
	AccountID string `json:"accountId"`
	Balance   int64  `json:"balance"`
	Reserved  int64  `json:"reserved"`
	Available int64  `json:"available"`
	Status    string `json:"status"`
}

// ErrorResponse carrega um código estável legível por máquina
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
