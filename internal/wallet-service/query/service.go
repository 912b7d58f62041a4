package query

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/betstack/wallet-platform/internal/wallet-service/ledger"
)

// Summary é o objeto do dashboard do admin. Todos os campos numéricos
// têm default zero explícito: range vazio devolve a estrutura zerada,
// nunca null nem campo faltando.
type Summary struct {
	Users            UsersSummary     `json:"users"`
	Financial        FinancialSummary `json:"financial"`
	Deposits         FlowSummary      `json:"deposits"`
	Withdrawals      FlowSummary      `json:"withdrawals"`
	PendingApprovals PendingApprovals `json:"pendingApprovals"`
}

type UsersSummary struct {
	Total  int64 `json:"total"`
	Today  int64 `json:"today"`
	Active int64 `json:"active"`
}

type FinancialSummary struct {
	TotalBalance      int64 `json:"totalBalance"`
	TotalDeposit      int64 `json:"totalDeposit"`
	TotalWithdraw     int64 `json:"totalWithdraw"`
	TotalBet          int64 `json:"totalBet"`
	TotalBonusBalance int64 `json:"totalBonusBalance"`
}

type FlowSummary struct {
	Total       int64 `json:"total"`       // quantidade no período
	TodayAmount int64 `json:"todayAmount"` // volume de hoje em centavos
}

type PendingApprovals struct {
	Deposits    int64 `json:"deposits"`
	Withdrawals int64 `json:"withdrawals"`
}

// Reader computa as projeções a partir do razão e da tabela de contas.
// Somente leitura: nenhum caminho de escrita passa por aqui.
type Reader interface {
	Summary(ctx context.Context, start, end time.Time) (Summary, error)
	Recent(ctx context.Context, kind ledger.Kind, limit int) ([]ledger.Transaction, error)
}

// Service serve o dashboard com um cache redis curto na frente do Reader
type Service struct {
	log    *zap.Logger
	reader Reader
	cache  *Cache // opcional
	ttl    time.Duration
}

func NewService(log *zap.Logger, r Reader, c *Cache, ttl time.Duration) *Service {
	return &Service{log: log, reader: r, cache: c, ttl: ttl}
}

// Dashboard computa o resumo do intervalo meio-aberto [start, end)
func (s *Service) Dashboard(ctx context.Context, start, end time.Time) (Summary, error) {
	key := cacheKey(start, end)

	if s.cache != nil {
		var cached Summary
		hit, err := s.cache.Get(ctx, key, &cached)
		if err != nil {
			s.log.Warn("dashboard cache read", zap.Error(err))
		} else if hit {
			return cached, nil
		}
	}

	sum, err := s.reader.Summary(ctx, start, end)
	if err != nil {
		return Summary{}, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, sum, s.ttl); err != nil {
			s.log.Warn("dashboard cache write", zap.Error(err))
		}
	}
	return sum, nil
}

// Recent retorna as N transações mais recentes (created_at DESC)
func (s *Service) Recent(ctx context.Context, kind ledger.Kind, limit int) ([]ledger.Transaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	return s.reader.Recent(ctx, kind, limit)
}

func cacheKey(start, end time.Time) string {
	return fmt.Sprintf("dashboard:summary:%d:%d", start.Unix(), end.Unix())
}
