package balance

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Memory implementa Store em memória com um mutex por conta.
// A aquisição tem prazo: contenção vira ErrBusy, igual ao lock_timeout
// do Postgres. Usado em testes e como referência do contrato.
type Memory struct {
	mu       sync.Mutex
	accounts map[string]*memAccount

	// LockWait limita a espera pelo lock de uma conta
	LockWait time.Duration
}

type memAccount struct {
	lock chan struct{} // capacidade 1: token de posse da conta
	a    Account
}

func NewMemory() *Memory {
	return &Memory{
		accounts: make(map[string]*memAccount),
		LockWait: 2 * time.Second,
	}
}

// Seed insere uma conta pronta (só para testes)
func (m *Memory) Seed(a Account) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if a.Status == "" {
		a.Status = StatusActive
	}
	if a.Version == 0 {
		a.Version = 1
	}
	ma := &memAccount{lock: make(chan struct{}, 1), a: a}
	m.accounts[a.ID] = ma
}

func (m *Memory) Get(ctx context.Context, accountID string) (*Account, error) {
	m.mu.Lock()
	ma, ok := m.accounts[accountID]
	m.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}

	if err := m.acquire(ctx, ma); err != nil {
		return nil, err
	}
	defer m.release(ma)

	cp := ma.a
	return &cp, nil
}

func (m *Memory) GetOrCreate(ctx context.Context, accountID string) (*Account, error) {
	m.mu.Lock()
	ma, ok := m.accounts[accountID]
	if !ok {
		now := time.Now()
		ma = &memAccount{
			lock: make(chan struct{}, 1),
			a: Account{
				ID:        accountID,
				Status:    StatusActive,
				Version:   1,
				CreatedAt: now,
				UpdatedAt: now,
			},
		}
		m.accounts[accountID] = ma
	}
	m.mu.Unlock()

	if err := m.acquire(ctx, ma); err != nil {
		return nil, err
	}
	defer m.release(ma)

	cp := ma.a
	return &cp, nil
}

func (m *Memory) Update(ctx context.Context, accountID string, fn func(a *Account) error) (*Account, error) {
	m.mu.Lock()
	ma, ok := m.accounts[accountID]
	m.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}

	if err := m.acquire(ctx, ma); err != nil {
		return nil, err
	}
	defer m.release(ma)

	work := ma.a
	if err := fn(&work); err != nil {
		return nil, err
	}
	if work.BalanceCents < 0 || work.ReservedCents < 0 || work.ReservedCents > work.BalanceCents {
		return nil, fmt.Errorf("%w: balance %d reserved %d on account %s",
			ErrInvariant, work.BalanceCents, work.ReservedCents, work.ID)
	}

	work.Version = ma.a.Version + 1
	work.UpdatedAt = time.Now()
	ma.a = work

	cp := work
	return &cp, nil
}

// acquire toma o token da conta ou desiste após LockWait
func (m *Memory) acquire(ctx context.Context, ma *memAccount) error {
	timer := time.NewTimer(m.LockWait)
	defer timer.Stop()

	select {
	case ma.lock <- struct{}{}:
		return nil
	case <-timer.C:
		return ErrBusy
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Memory) release(ma *memAccount) { <-ma.lock }
