package ledger

import (
	"context"
	"errors"
	"time"
)

// Status de uma transação. PENDING é o único estado mutável;
// depois de decidida a transação é imutável.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
	StatusRejected  Status = "REJECTED"
	StatusFailed    Status = "FAILED"
)

// Kind identifica a natureza do lançamento no razão
type Kind string

const (
	KindDeposit    Kind = "DEPOSIT"
	KindWithdraw   Kind = "WITHDRAW"
	KindBet        Kind = "BET"
	KindBonus      Kind = "BONUS"
	KindAdjustment Kind = "ADJUSTMENT"
)

var (
	ErrNotFound = errors.New("transaction not found")
	ErrConflict = errors.New("transaction already decided")
)

// Transaction é um lançamento imutável do razão (append-only).
// AmountCents é assinado: negativo = saída de dinheiro da conta.
type Transaction struct {
	ID          string
	AccountID   string
	Kind        Kind
	AmountCents int64
	Status      Status
	Method      string // canal de mobile banking ("bkash", "nagad", ...)
	Destination string // número de destino/origem no canal
	ExternalRef string // token de idempotência opcional do cliente
	DecidedBy   string // admin que decidiu; vazio enquanto PENDING
	CreatedAt   time.Time
	DecidedAt   *time.Time
}

// Filter restringe ListByAccount
type Filter struct {
	Kind   Kind   // vazio = todas
	Status Status // vazio = todas
	Limit  int
	Offset int
}

// Store é o razão de transações. Append é monotônico e nunca sobrescreve;
// UpdateStatus é o único caminho de mutação e só enquanto PENDING.
type Store interface {
	Append(ctx context.Context, t *Transaction) (string, error)
	Get(ctx context.Context, id string) (*Transaction, error)
	ListByAccount(ctx context.Context, accountID string, f Filter) ([]Transaction, error)

	// FindByExternalRef localiza uma transação pelo token de idempotência
	// do cliente. Retorna ErrNotFound quando não existe.
	FindByExternalRef(ctx context.Context, accountID string, kind Kind, ref string) (*Transaction, error)

	// UpdateStatus é um compare-and-swap sobre status: falha com ErrConflict
	// se o status armazenado não for mais `from` (outro ator já decidiu).
	UpdateStatus(ctx context.Context, id string, from, to Status, decidedBy string) (*Transaction, error)

	// PendingWithdrawTotal soma (positiva) os saques PENDING da conta.
	// Usado para reconciliar reserved_cents após recuperação.
	PendingWithdrawTotal(ctx context.Context, accountID string) (int64, error)
}
