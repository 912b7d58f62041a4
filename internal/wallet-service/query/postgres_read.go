package query

import (
	"context"
	"database/sql"
	"time"

	"github.com/betstack/wallet-platform/internal/wallet-service/ledger"
)

// ReadRepo computa os agregados direto no Postgres
type ReadRepo struct {
	DB *sql.DB
}

// Summary agrega usuários, financeiro, fluxos e fila de pendências.
// Período meio-aberto [start, end); pendências são globais (fila do admin)
func (r *ReadRepo) Summary(ctx context.Context, start, end time.Time) (Summary, error) {
	var s Summary

	err := r.DB.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE created_at >= $1 AND created_at < $2),
			COUNT(*) FILTER (WHERE status = 'ACTIVE'),
			COALESCE(SUM(balance_cents), 0)
		FROM accounts`,
		start, end,
	).Scan(&s.Users.Total, &s.Users.Today, &s.Users.Active, &s.Financial.TotalBalance)
	if err != nil {
		return Summary{}, err
	}

	// Agregados do razão no período. ABS em BET = volume apostado,
	// independe da direção do acerto
	err = r.DB.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(amount_cents)  FILTER (WHERE kind = 'DEPOSIT'  AND status = 'COMPLETED'), 0),
			COALESCE(SUM(-amount_cents) FILTER (WHERE kind = 'WITHDRAW' AND status = 'COMPLETED'), 0),
			COALESCE(SUM(ABS(amount_cents)) FILTER (WHERE kind = 'BET'  AND status = 'COMPLETED'), 0),
			COALESCE(SUM(amount_cents)  FILTER (WHERE kind = 'BONUS'    AND status = 'COMPLETED'), 0),
			COUNT(*) FILTER (WHERE kind = 'DEPOSIT'  AND status = 'COMPLETED'),
			COUNT(*) FILTER (WHERE kind = 'WITHDRAW' AND status = 'COMPLETED')
		FROM transactions
		WHERE created_at >= $1 AND created_at < $2`,
		start, end,
	).Scan(
		&s.Financial.TotalDeposit,
		&s.Financial.TotalWithdraw,
		&s.Financial.TotalBet,
		&s.Financial.TotalBonusBalance,
		&s.Deposits.Total,
		&s.Withdrawals.Total,
	)
	if err != nil {
		return Summary{}, err
	}

	// Volume do dia corrente, independente do período consultado
	err = r.DB.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(amount_cents)  FILTER (WHERE kind = 'DEPOSIT'  AND status = 'COMPLETED'), 0),
			COALESCE(SUM(-amount_cents) FILTER (WHERE kind = 'WITHDRAW' AND status = 'COMPLETED'), 0)
		FROM transactions
		WHERE created_at >= date_trunc('day', NOW())`,
	).Scan(&s.Deposits.TodayAmount, &s.Withdrawals.TodayAmount)
	if err != nil {
		return Summary{}, err
	}

	err = r.DB.QueryRowContext(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE kind = 'DEPOSIT'),
			COUNT(*) FILTER (WHERE kind = 'WITHDRAW')
		FROM transactions
		WHERE status = 'PENDING'`,
	).Scan(&s.PendingApprovals.Deposits, &s.PendingApprovals.Withdrawals)
	if err != nil {
		return Summary{}, err
	}

	return s, nil
}

// Recent lista as transações mais recentes da plataforma
func (r *ReadRepo) Recent(ctx context.Context, kind ledger.Kind, limit int) ([]ledger.Transaction, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, account_id, kind, amount_cents, status, method, destination,
		       COALESCE(external_ref, ''), COALESCE(decided_by, ''), created_at, decided_at
		FROM transactions
		WHERE ($1 = '' OR kind = $1)
		ORDER BY created_at DESC
		LIMIT $2`,
		string(kind), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ledger.Transaction
	for rows.Next() {
		var t ledger.Transaction
		var k, st string
		var decidedAt sql.NullTime
		if err := rows.Scan(&t.ID, &t.AccountID, &k, &t.AmountCents, &st,
			&t.Method, &t.Destination, &t.ExternalRef, &t.DecidedBy, &t.CreatedAt, &decidedAt); err != nil {
			return nil, err
		}
		t.Kind = ledger.Kind(k)
		t.Status = ledger.Status(st)
		if decidedAt.Valid {
			at := decidedAt.Time
			t.DecidedAt = &at
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ListAccountIDs retorna os ids de todas as contas.
// Usado pela reconciliação de reservas na subida do serviço
func (r *ReadRepo) ListAccountIDs(ctx context.Context) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id FROM accounts ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
