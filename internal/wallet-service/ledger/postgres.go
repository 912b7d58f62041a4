package ledger

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// Postgres implementa o razão de transações em banco
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

const txColumns = `id, account_id, kind, amount_cents, status, method, destination, external_ref, decided_by, created_at, decided_at`

// Append insere um novo lançamento. Gera o id quando vazio; status default PENDING
func (p *Postgres) Append(ctx context.Context, t *Transaction) (string, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Status == "" {
		t.Status = StatusPending
	}
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO transactions (id, account_id, kind, amount_cents, status, method, destination, external_ref, decided_by, created_at, decided_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,NULLIF($8,''),NULLIF($9,''),NOW(),$10)`,
		t.ID, t.AccountID, string(t.Kind), t.AmountCents, string(t.Status), t.Method, t.Destination, t.ExternalRef, t.DecidedBy, t.DecidedAt,
	)
	if err != nil {
		return "", fmt.Errorf("append transaction: %w", err)
	}
	return t.ID, nil
}

func (p *Postgres) Get(ctx context.Context, id string) (*Transaction, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+txColumns+` FROM transactions WHERE id=$1`, id)
	return scanTx(row)
}

// ListByAccount retorna lançamentos da conta em ordem created_at DESC
func (p *Postgres) ListByAccount(ctx context.Context, accountID string, f Filter) ([]Transaction, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+txColumns+`
		FROM transactions
		WHERE account_id = $1
		  AND ($2 = '' OR kind = $2)
		  AND ($3 = '' OR status = $3)
		ORDER BY created_at DESC
		LIMIT $4 OFFSET $5`,
		accountID, string(f.Kind), string(f.Status), limit, f.Offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		t, err := scanTxRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (p *Postgres) FindByExternalRef(ctx context.Context, accountID string, kind Kind, ref string) (*Transaction, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT `+txColumns+`
		FROM transactions
		WHERE account_id=$1 AND kind=$2 AND external_ref=$3`,
		accountID, string(kind), ref)
	return scanTx(row)
}

// UpdateStatus faz o compare-and-swap do status. A cláusula `AND status=$2`
// é o que impede decisão dupla: zero linhas afetadas = ErrConflict.
func (p *Postgres) UpdateStatus(ctx context.Context, id string, from, to Status, decidedBy string) (*Transaction, error) {
	if from != StatusPending {
		return nil, fmt.Errorf("update status: transition from %s is not allowed", from)
	}

	res, err := p.db.ExecContext(ctx, `
		UPDATE transactions
		SET status=$3, decided_by=$4, decided_at=NOW()
		WHERE id=$1 AND status=$2`,
		id, string(from), string(to), decidedBy,
	)
	if err != nil {
		return nil, fmt.Errorf("update status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		// ou não existe, ou outro ator já decidiu
		if _, gerr := p.Get(ctx, id); gerr != nil {
			return nil, gerr
		}
		return nil, ErrConflict
	}
	return p.Get(ctx, id)
}

func (p *Postgres) PendingWithdrawTotal(ctx context.Context, accountID string) (int64, error) {
	var total int64
	err := p.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(-amount_cents), 0)
		FROM transactions
		WHERE account_id=$1 AND kind=$2 AND status=$3`,
		accountID, string(KindWithdraw), string(StatusPending),
	).Scan(&total)
	return total, err
}

type rowScanner interface{ Scan(dest ...any) error }

func scanTx(row rowScanner) (*Transaction, error) {
	t, err := scanTxRows(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return t, err
}

func scanTxRows(row rowScanner) (*Transaction, error) {
	var t Transaction
	var kind, status string
	var extRef, decidedBy sql.NullString
	var decidedAt sql.NullTime
	err := row.Scan(&t.ID, &t.AccountID, &kind, &t.AmountCents, &status,
		&t.Method, &t.Destination, &extRef, &decidedBy, &t.CreatedAt, &decidedAt)
	if err != nil {
		return nil, err
	}
	t.Kind = Kind(kind)
	t.Status = Status(status)
	t.ExternalRef = extRef.String
	t.DecidedBy = decidedBy.String
	if decidedAt.Valid {
		at := decidedAt.Time
		t.DecidedAt = &at
	}
	return &t, nil
}
