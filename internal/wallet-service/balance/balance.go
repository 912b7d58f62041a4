package balance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNotFound          = errors.New("account not found")
	ErrBusy              = errors.New("account busy, retry later")

	// ErrInvariant indica underflow de saldo/reserva. Erro de contrato de
	// programação: sempre fatal e logado, nunca mascarado ou clampado.
	ErrInvariant = errors.New("balance invariant violated")
)

// Status da conta
const (
	StatusActive  = "ACTIVE"
	StatusBlocked = "BLOCKED"
)

// Account é o estado de carteira de um jogador. Invariantes a todo momento:
// balance_cents >= 0 e 0 <= reserved_cents <= balance_cents.
// Mutado exclusivamente pela Engine.
type Account struct {
	ID            string
	BalanceCents  int64
	ReservedCents int64
	Status        string
	Version       int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// AvailableCents é o que o jogador pode sacar agora
func (a *Account) AvailableCents() int64 { return a.BalanceCents - a.ReservedCents }

// Snapshot é a visão de saldo exposta pra fora da engine
type Snapshot struct {
	AccountID      string
	BalanceCents   int64
	ReservedCents  int64
	AvailableCents int64
	Status         string
}

// Store persiste contas. Update serializa a mutação por conta (lock de linha
// no Postgres, mutex por conta em memória); contenção vira ErrBusy, nunca
// bloqueio indefinido. Contas diferentes nunca se bloqueiam.
type Store interface {
	Get(ctx context.Context, accountID string) (*Account, error)
	GetOrCreate(ctx context.Context, accountID string) (*Account, error)
	Update(ctx context.Context, accountID string, fn func(a *Account) error) (*Account, error)
}

// Engine é o único escritor do estado de saldo. Toda operação monetária
// passa por aqui, dentro da seção crítica por conta do Store.
type Engine struct {
	log   *zap.Logger
	store Store
}

func NewEngine(log *zap.Logger, store Store) *Engine {
	return &Engine{log: log, store: store}
}

func (e *Engine) Get(ctx context.Context, accountID string) (Snapshot, error) {
	a, err := e.store.Get(ctx, accountID)
	if err != nil {
		return Snapshot{}, err
	}
	return snapshot(a), nil
}

// GetOrCreate abre a carteira do jogador na primeira consulta
func (e *Engine) GetOrCreate(ctx context.Context, accountID string) (Snapshot, error) {
	a, err := e.store.GetOrCreate(ctx, accountID)
	if err != nil {
		return Snapshot{}, err
	}
	return snapshot(a), nil
}

// Reserve bloqueia `amount` para um saque pendente.
// Atômico frente a reserve/release/settle concorrentes na mesma conta.
func (e *Engine) Reserve(ctx context.Context, accountID string, amount int64) (Snapshot, error) {
	if amount <= 0 {
		return Snapshot{}, fmt.Errorf("reserve: amount must be positive, got %d", amount)
	}
	a, err := e.store.Update(ctx, accountID, func(a *Account) error {
		if amount > a.AvailableCents() {
			return ErrInsufficientFunds
		}
		a.ReservedCents += amount
		return nil
	})
	if err != nil {
		return Snapshot{}, err
	}
	return snapshot(a), nil
}

// Release devolve uma reserva (saque rejeitado). Underflow de reserva é
// violação de invariante: alertado e propagado, nunca clampado.
func (e *Engine) Release(ctx context.Context, accountID string, amount int64) (Snapshot, error) {
	if amount <= 0 {
		return Snapshot{}, fmt.Errorf("release: amount must be positive, got %d", amount)
	}
	a, err := e.store.Update(ctx, accountID, func(a *Account) error {
		if amount > a.ReservedCents {
			return fmt.Errorf("%w: release %d with reserved %d on account %s", ErrInvariant, amount, a.ReservedCents, a.ID)
		}
		a.ReservedCents -= amount
		return nil
	})
	if err != nil {
		e.alertIfInvariant(err, "release", accountID, amount)
		return Snapshot{}, err
	}
	return snapshot(a), nil
}

// Settle finaliza um saque aprovado: debita saldo e reserva de uma vez
func (e *Engine) Settle(ctx context.Context, accountID string, amount int64) (Snapshot, error) {
	if amount <= 0 {
		return Snapshot{}, fmt.Errorf("settle: amount must be positive, got %d", amount)
	}
	a, err := e.store.Update(ctx, accountID, func(a *Account) error {
		if amount > a.ReservedCents || amount > a.BalanceCents {
			return fmt.Errorf("%w: settle %d with balance %d reserved %d on account %s",
				ErrInvariant, amount, a.BalanceCents, a.ReservedCents, a.ID)
		}
		a.BalanceCents -= amount
		a.ReservedCents -= amount
		return nil
	})
	if err != nil {
		e.alertIfInvariant(err, "settle", accountID, amount)
		return Snapshot{}, err
	}
	return snapshot(a), nil
}

// Credit adiciona saldo (depósito aprovado, bônus, ajuste positivo).
// Não interage com reserva.
func (e *Engine) Credit(ctx context.Context, accountID string, amount int64) (Snapshot, error) {
	if amount <= 0 {
		return Snapshot{}, fmt.Errorf("credit: amount must be positive, got %d", amount)
	}
	a, err := e.store.Update(ctx, accountID, func(a *Account) error {
		a.BalanceCents += amount
		return nil
	})
	if err != nil {
		return Snapshot{}, err
	}
	return snapshot(a), nil
}

// Debit remove saldo sem reserva (stake de aposta, ajuste negativo).
// Nunca invade fundos reservados para saques pendentes.
func (e *Engine) Debit(ctx context.Context, accountID string, amount int64) (Snapshot, error) {
	if amount <= 0 {
		return Snapshot{}, fmt.Errorf("debit: amount must be positive, got %d", amount)
	}
	a, err := e.store.Update(ctx, accountID, func(a *Account) error {
		if amount > a.AvailableCents() {
			return ErrInsufficientFunds
		}
		a.BalanceCents -= amount
		return nil
	})
	if err != nil {
		return Snapshot{}, err
	}
	return snapshot(a), nil
}

// ReconcileReserved força reserved_cents ao total derivado do razão
// (soma dos saques PENDING). Rodado na subida do serviço; drift é logado.
func (e *Engine) ReconcileReserved(ctx context.Context, accountID string, pendingTotal int64) (Snapshot, error) {
	if pendingTotal < 0 {
		return Snapshot{}, fmt.Errorf("reconcile: negative pending total %d", pendingTotal)
	}
	a, err := e.store.Update(ctx, accountID, func(a *Account) error {
		if a.ReservedCents != pendingTotal {
			e.log.Warn("reserved balance drift, reconciling from ledger",
				zap.String("accountId", a.ID),
				zap.Int64("reservedCents", a.ReservedCents),
				zap.Int64("pendingTotalCents", pendingTotal),
			)
			a.ReservedCents = pendingTotal
		}
		return nil
	})
	if err != nil {
		return Snapshot{}, err
	}
	return snapshot(a), nil
}

// alertIfInvariant loga violações de invariante na severidade máxima;
// é o alerta de reconciliação exigido antes de qualquer correção manual
func (e *Engine) alertIfInvariant(err error, op, accountID string, amount int64) {
	if errors.Is(err, ErrInvariant) {
		e.log.Error("balance invariant violated, manual reconciliation required",
			zap.String("op", op),
			zap.String("accountId", accountID),
			zap.Int64("amountCents", amount),
			zap.Error(err),
		)
	}
}

func snapshot(a *Account) Snapshot {
	return Snapshot{
		AccountID:      a.ID,
		BalanceCents:   a.BalanceCents,
		ReservedCents:  a.ReservedCents,
		AvailableCents: a.AvailableCents(),
		Status:         a.Status,
	}
}
