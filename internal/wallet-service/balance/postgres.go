package balance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// Postgres implementa Store com lock pessimista de linha (FOR UPDATE).
// O lock de linha é a serialização por conta; lock_timeout converte
// contenção em ErrBusy em vez de espera indefinida.
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

const acctColumns = `id, balance_cents, reserved_cents, status, version, created_at, updated_at`

func (p *Postgres) Get(ctx context.Context, accountID string) (*Account, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+acctColumns+` FROM accounts WHERE id=$1`, accountID)
	a, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return a, err
}

// GetOrCreate retorna a conta, criando-a zerada e ACTIVE se não existir.
// Usa transação para garantir atomicidade
func (p *Postgres) GetOrCreate(ctx context.Context, accountID string) (*Account, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `SELECT `+acctColumns+` FROM accounts WHERE id=$1`, accountID)
	a, err := scanAccount(row)
	if err == sql.ErrNoRows {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO accounts(id, balance_cents, reserved_cents, status, version, created_at, updated_at)
			VALUES($1, 0, 0, $2, 1, NOW(), NOW())`,
			accountID, StatusActive); err != nil {
			return nil, err
		}
		row = tx.QueryRowContext(ctx, `SELECT `+acctColumns+` FROM accounts WHERE id=$1`, accountID)
		if a, err = scanAccount(row); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return a, nil
}

// Update executa fn dentro da seção crítica da conta (linha travada).
// fn mutando o *Account e retornando nil persiste saldo/reserva com
// version incrementada; erro de fn aborta sem efeito.
func (p *Postgres) Update(ctx context.Context, accountID string, fn func(a *Account) error) (*Account, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	// Espera limitada pelo lock da linha; contenção vira ErrBusy
	if _, err = tx.ExecContext(ctx, `SET LOCAL lock_timeout = '2s'`); err != nil {
		return nil, err
	}

	row := tx.QueryRowContext(ctx, `SELECT `+acctColumns+` FROM accounts WHERE id=$1 FOR UPDATE`, accountID)
	a, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		if isLockTimeout(err) {
			return nil, ErrBusy
		}
		return nil, err
	}

	if err = fn(a); err != nil {
		return nil, err
	}
	if a.BalanceCents < 0 || a.ReservedCents < 0 || a.ReservedCents > a.BalanceCents {
		return nil, fmt.Errorf("%w: balance %d reserved %d on account %s",
			ErrInvariant, a.BalanceCents, a.ReservedCents, a.ID)
	}

	if _, err = tx.ExecContext(ctx, `
		UPDATE accounts
		SET balance_cents=$2, reserved_cents=$3, status=$4, version=version+1, updated_at=NOW()
		WHERE id=$1`,
		a.ID, a.BalanceCents, a.ReservedCents, a.Status); err != nil {
		return nil, err
	}
	a.Version++

	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return a, nil
}

// isLockTimeout detecta o erro 55P03 (lock_not_available) do Postgres
func isLockTimeout(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "55P03"
}

func scanAccount(row interface{ Scan(dest ...any) error }) (*Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.BalanceCents, &a.ReservedCents, &a.Status, &a.Version, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
