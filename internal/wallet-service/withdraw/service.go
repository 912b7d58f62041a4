package withdraw

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/betstack/wallet-platform/internal/wallet-service/balance"
	"github.com/betstack/wallet-platform/internal/wallet-service/ledger"
	"github.com/betstack/wallet-platform/pkg/contracts/events"
)

// ErrAccountBlocked: conta bloqueada não movimenta dinheiro
var ErrAccountBlocked = errors.New("account is blocked")

// Publisher publica transações decididas no Kafka (melhor esforço)
type Publisher interface {
	PublishWalletTransaction(ctx context.Context, e events.WalletTransaction) error
}

// Service é a máquina de estados de depósitos e saques:
// PENDING -> COMPLETED | REJECTED, nenhuma outra transição.
// Orquestra razão (CAS de status) e engine de saldo.
type Service struct {
	log              *zap.Logger
	ledger           ledger.Store
	engine           *balance.Engine
	publ             Publisher // opcional
	minWithdrawCents int64
}

func NewService(log *zap.Logger, l ledger.Store, e *balance.Engine, p Publisher, minWithdrawCents int64) *Service {
	return &Service{log: log, ledger: l, engine: e, publ: p, minWithdrawCents: minWithdrawCents}
}

// CreateWithdrawalInput é a entrada de POST /withdrawals
type CreateWithdrawalInput struct {
	AccountID   string
	Method      string
	Destination string
	AmountCents int64
	ExternalRef string // token de idempotência opcional
}

// CreateWithdrawal valida, reserva fundos e registra o saque PENDING.
// Se a reserva falhar, nenhuma transação é criada: tentativa recusada
// não vira registro pendente, só erro para o chamador.
func (s *Service) CreateWithdrawal(ctx context.Context, in CreateWithdrawalInput) (*ledger.Transaction, error) {
	if err := validateWithdrawal(in.AccountID, in.Method, in.Destination, in.AmountCents, s.minWithdrawCents); err != nil {
		return nil, err
	}

	snap, err := s.engine.Get(ctx, in.AccountID)
	if err != nil {
		return nil, err
	}
	if snap.Status == balance.StatusBlocked {
		return nil, ErrAccountBlocked
	}

	// Replay com o mesmo externalRef devolve a transação original
	if in.ExternalRef != "" {
		if existing, err := s.ledger.FindByExternalRef(ctx, in.AccountID, ledger.KindWithdraw, in.ExternalRef); err == nil {
			return existing, nil
		} else if !errors.Is(err, ledger.ErrNotFound) {
			return nil, err
		}
	}

	if _, err := s.engine.Reserve(ctx, in.AccountID, in.AmountCents); err != nil {
		return nil, err
	}

	tx := &ledger.Transaction{
		AccountID:   in.AccountID,
		Kind:        ledger.KindWithdraw,
		AmountCents: -in.AmountCents,
		Status:      ledger.StatusPending,
		Method:      in.Method,
		Destination: in.Destination,
		ExternalRef: in.ExternalRef,
	}
	if _, err := s.ledger.Append(ctx, tx); err != nil {
		// compensa a reserva; sem o registro PENDING ela não é re-derivável
		if _, rerr := s.engine.Release(ctx, in.AccountID, in.AmountCents); rerr != nil {
			s.log.Error("release after failed append", zap.String("accountId", in.AccountID), zap.Error(rerr))
		}
		return nil, fmt.Errorf("append withdrawal: %w", err)
	}

	s.log.Info("withdrawal created",
		zap.String("transactionId", tx.ID),
		zap.String("accountId", in.AccountID),
		zap.Int64("amountCents", in.AmountCents),
		zap.String("method", in.Method),
	)
	return tx, nil
}

// CreateDepositInput é a entrada de POST /deposits
type CreateDepositInput struct {
	AccountID   string
	Method      string
	Destination string // número que enviou o dinheiro
	AmountCents int64
	ExternalRef string
}

// CreateDeposit registra um depósito PENDING. O saldo só é creditado
// na aprovação do admin.
func (s *Service) CreateDeposit(ctx context.Context, in CreateDepositInput) (*ledger.Transaction, error) {
	if err := validateDeposit(in.AccountID, in.Method, in.Destination, in.AmountCents); err != nil {
		return nil, err
	}

	snap, err := s.engine.GetOrCreate(ctx, in.AccountID)
	if err != nil {
		return nil, err
	}
	if snap.Status == balance.StatusBlocked {
		return nil, ErrAccountBlocked
	}

	if in.ExternalRef != "" {
		if existing, err := s.ledger.FindByExternalRef(ctx, in.AccountID, ledger.KindDeposit, in.ExternalRef); err == nil {
			return existing, nil
		} else if !errors.Is(err, ledger.ErrNotFound) {
			return nil, err
		}
	}

	tx := &ledger.Transaction{
		AccountID:   in.AccountID,
		Kind:        ledger.KindDeposit,
		AmountCents: in.AmountCents,
		Status:      ledger.StatusPending,
		Method:      in.Method,
		Destination: in.Destination,
		ExternalRef: in.ExternalRef,
	}
	if _, err := s.ledger.Append(ctx, tx); err != nil {
		return nil, fmt.Errorf("append deposit: %w", err)
	}
	return tx, nil
}

// Approve decide um PENDING como COMPLETED em nome do admin.
// O CAS de status resolve a corrida entre decisões: quem perde recebe
// ledger.ErrConflict e nenhum saldo é tocado. Só depois do CAS vencido
// a engine é chamada, então settle/credit roda exatamente uma vez.
func (s *Service) Approve(ctx context.Context, id string, kind ledger.Kind, adminID string) (*ledger.Transaction, error) {
	if adminID == "" {
		return nil, validationErr("adminId", "required")
	}
	if err := s.checkKind(ctx, id, kind); err != nil {
		return nil, err
	}

	tx, err := s.ledger.UpdateStatus(ctx, id, ledger.StatusPending, ledger.StatusCompleted, adminID)
	if err != nil {
		return nil, err
	}

	switch tx.Kind {
	case ledger.KindWithdraw:
		if _, err := s.engine.Settle(ctx, tx.AccountID, -tx.AmountCents); err != nil {
			// Razão e saldo nunca divergem em silêncio: a transação fica
			// COMPLETED e o caso é escalado, não corrigido automaticamente
			s.log.Error("settle failed after approve, ledger and balance diverged",
				zap.String("transactionId", tx.ID),
				zap.String("accountId", tx.AccountID),
				zap.Int64("amountCents", -tx.AmountCents),
				zap.Error(err),
			)
			return tx, fmt.Errorf("settle after approve: %w", err)
		}
	case ledger.KindDeposit:
		if _, err := s.engine.Credit(ctx, tx.AccountID, tx.AmountCents); err != nil {
			s.log.Error("credit failed after approve, ledger and balance diverged",
				zap.String("transactionId", tx.ID),
				zap.String("accountId", tx.AccountID),
				zap.Int64("amountCents", tx.AmountCents),
				zap.Error(err),
			)
			return tx, fmt.Errorf("credit after approve: %w", err)
		}
	}

	s.publish(ctx, tx)
	s.log.Info("transaction approved",
		zap.String("transactionId", tx.ID),
		zap.String("kind", string(tx.Kind)),
		zap.String("adminId", adminID),
	)
	return tx, nil
}

// Reject decide um PENDING como REJECTED. Para saque, devolve a reserva
// na mesma decisão: o usuário nunca vê REJECTED com fundos ainda presos.
func (s *Service) Reject(ctx context.Context, id string, kind ledger.Kind, adminID string) (*ledger.Transaction, error) {
	if adminID == "" {
		return nil, validationErr("adminId", "required")
	}
	if err := s.checkKind(ctx, id, kind); err != nil {
		return nil, err
	}

	tx, err := s.ledger.UpdateStatus(ctx, id, ledger.StatusPending, ledger.StatusRejected, adminID)
	if err != nil {
		return nil, err
	}

	if tx.Kind == ledger.KindWithdraw {
		if _, err := s.engine.Release(ctx, tx.AccountID, -tx.AmountCents); err != nil {
			s.log.Error("release failed after reject, ledger and balance diverged",
				zap.String("transactionId", tx.ID),
				zap.String("accountId", tx.AccountID),
				zap.Error(err),
			)
			return tx, fmt.Errorf("release after reject: %w", err)
		}
	}

	s.publish(ctx, tx)
	s.log.Info("transaction rejected",
		zap.String("transactionId", tx.ID),
		zap.String("kind", string(tx.Kind)),
		zap.String("adminId", adminID),
	)
	return tx, nil
}

// List retorna as transações da conta, mais recente primeiro
func (s *Service) List(ctx context.Context, accountID string, kind ledger.Kind, limit, offset int) ([]ledger.Transaction, error) {
	if accountID == "" {
		return nil, validationErr("accountId", "required")
	}
	return s.ledger.ListByAccount(ctx, accountID, ledger.Filter{Kind: kind, Limit: limit, Offset: offset})
}

// SettleBet aplica o resultado de uma aposta liquidada na carteira.
// Idempotente por betID: replay do evento não move saldo duas vezes.
func (s *Service) SettleBet(ctx context.Context, ev events.BetSettled) error {
	if ev.BetID == "" || ev.AccountID == "" {
		return validationErr("bet", "betId and accountId required")
	}

	if _, err := s.ledger.FindByExternalRef(ctx, ev.AccountID, ledger.KindBet, ev.BetID); err == nil {
		return nil // já aplicado
	} else if !errors.Is(err, ledger.ErrNotFound) {
		return err
	}

	var amount int64
	switch ev.Result {
	case events.BetResultWon:
		if ev.PayoutCents <= 0 {
			return validationErr("payout", "must be positive for a won bet")
		}
		if _, err := s.engine.Credit(ctx, ev.AccountID, ev.PayoutCents); err != nil {
			return err
		}
		amount = ev.PayoutCents
	case events.BetResultLost:
		if ev.StakeCents <= 0 {
			return validationErr("stake", "must be positive for a lost bet")
		}
		if _, err := s.engine.Debit(ctx, ev.AccountID, ev.StakeCents); err != nil {
			// registra a falha no razão para reconciliação manual
			s.appendDecided(ctx, ev.AccountID, ledger.KindBet, -ev.StakeCents, ledger.StatusFailed, ev.BetID, "")
			return err
		}
		amount = -ev.StakeCents
	case events.BetResultVoid:
		return nil // aposta anulada não movimenta a carteira
	default:
		return validationErr("result", "unknown bet result")
	}

	tx := s.appendDecided(ctx, ev.AccountID, ledger.KindBet, amount, ledger.StatusCompleted, ev.BetID, "")
	if tx != nil {
		s.publish(ctx, tx)
	}
	return nil
}

// GrantBonus credita um bônus promocional decidido por um admin
func (s *Service) GrantBonus(ctx context.Context, accountID string, amountCents int64, adminID string) (*ledger.Transaction, error) {
	if adminID == "" {
		return nil, validationErr("adminId", "required")
	}
	if amountCents <= 0 {
		return nil, validationErr("amount", "must be positive")
	}
	if _, err := s.engine.Credit(ctx, accountID, amountCents); err != nil {
		return nil, err
	}
	tx := s.appendDecided(ctx, accountID, ledger.KindBonus, amountCents, ledger.StatusCompleted, "", adminID)
	if tx == nil {
		return nil, errors.New("append bonus transaction failed")
	}
	s.publish(ctx, tx)
	return tx, nil
}

// Adjust aplica uma correção manual assinada na conta
func (s *Service) Adjust(ctx context.Context, accountID string, amountCents int64, adminID string) (*ledger.Transaction, error) {
	if adminID == "" {
		return nil, validationErr("adminId", "required")
	}
	if amountCents == 0 {
		return nil, validationErr("amount", "must be non-zero")
	}

	var err error
	if amountCents > 0 {
		_, err = s.engine.Credit(ctx, accountID, amountCents)
	} else {
		_, err = s.engine.Debit(ctx, accountID, -amountCents)
	}
	if err != nil {
		return nil, err
	}

	tx := s.appendDecided(ctx, accountID, ledger.KindAdjustment, amountCents, ledger.StatusCompleted, "", adminID)
	if tx == nil {
		return nil, errors.New("append adjustment transaction failed")
	}
	s.publish(ctx, tx)
	return tx, nil
}

// Reconcile recomputa reserved_cents da conta a partir dos saques PENDING
// do razão. Rodado na subida do serviço para recuperação pós-queda.
func (s *Service) Reconcile(ctx context.Context, accountID string) error {
	total, err := s.ledger.PendingWithdrawTotal(ctx, accountID)
	if err != nil {
		return err
	}
	_, err = s.engine.ReconcileReserved(ctx, accountID, total)
	return err
}

// checkKind garante que o id aponta para uma transação do tipo esperado;
// aprovar um depósito pela rota de saque é um 404, não um conflito
func (s *Service) checkKind(ctx context.Context, id string, kind ledger.Kind) error {
	tx, err := s.ledger.Get(ctx, id)
	if err != nil {
		return err
	}
	if kind != "" && tx.Kind != kind {
		return ledger.ErrNotFound
	}
	return nil
}

// appendDecided registra um lançamento já decidido (bets, bônus, ajustes).
// Falha de append depois do saldo movido é alerta de reconciliação.
func (s *Service) appendDecided(ctx context.Context, accountID string, kind ledger.Kind, amount int64, status ledger.Status, externalRef, decidedBy string) *ledger.Transaction {
	now := time.Now()
	tx := &ledger.Transaction{
		AccountID:   accountID,
		Kind:        kind,
		AmountCents: amount,
		Status:      status,
		ExternalRef: externalRef,
		DecidedBy:   decidedBy,
		DecidedAt:   &now,
	}
	if _, err := s.ledger.Append(ctx, tx); err != nil {
		s.log.Error("append decided transaction failed, ledger and balance diverged",
			zap.String("accountId", accountID),
			zap.String("kind", string(kind)),
			zap.Int64("amountCents", amount),
			zap.Error(err),
		)
		return nil
	}
	return tx
}

// publish envia a transação decidida pro Kafka; falha não derruba o fluxo
func (s *Service) publish(ctx context.Context, tx *ledger.Transaction) {
	if s.publ == nil {
		return
	}
	ev := events.WalletTransaction{
		TransactionID: tx.ID,
		AccountID:     tx.AccountID,
		Kind:          string(tx.Kind),
		Status:        string(tx.Status),
		AmountCents:   tx.AmountCents,
		Method:        tx.Method,
		DecidedBy:     tx.DecidedBy,
		Ts:            time.Now(),
	}
	if err := s.publ.PublishWalletTransaction(ctx, ev); err != nil {
		s.log.Warn("publish wallet transaction", zap.String("transactionId", tx.ID), zap.Error(err))
	}
}
