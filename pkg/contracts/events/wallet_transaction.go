package events

import "time"

// Evento publicado no tópico "wallet_transactions" sempre que uma transação
// de carteira é decidida (aprovada, rejeitada ou liquidada direto).
type WalletTransaction struct {
	TransactionID string    `json:"transaction_id"`
	AccountID     string    `json:"account_id"`
	Kind          string    `json:"kind"`   // "DEPOSIT" | "WITHDRAW" | "BET" | "BONUS" | "ADJUSTMENT"
	Status        string    `json:"status"` // "COMPLETED" | "REJECTED" | "FAILED"
	AmountCents   int64     `json:"amount_cents"`
	Method        string    `json:"method,omitempty"`
	DecidedBy     string    `json:"decided_by,omitempty"`
	Ts            time.Time `json:"ts"`
}
