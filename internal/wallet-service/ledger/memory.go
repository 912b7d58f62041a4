package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory é um razão em memória com a mesma semântica do Postgres.
// Usado em testes e como referência do contrato.
type Memory struct {
	mu  sync.Mutex
	txs map[string]*Transaction
	seq []string // ordem de inserção, para desempate no sort
}

func NewMemory() *Memory {
	return &Memory{txs: make(map[string]*Transaction)}
}

func (m *Memory) Append(_ context.Context, t *Transaction) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Status == "" {
		t.Status = StatusPending
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}

	cp := *t
	m.txs[cp.ID] = &cp
	m.seq = append(m.seq, cp.ID)
	return cp.ID, nil
}

func (m *Memory) Get(_ context.Context, id string) (*Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.txs[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *Memory) ListByAccount(_ context.Context, accountID string, f Filter) ([]Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Transaction
	for i := len(m.seq) - 1; i >= 0; i-- {
		t := m.txs[m.seq[i]]
		if t.AccountID != accountID {
			continue
		}
		if f.Kind != "" && t.Kind != f.Kind {
			continue
		}
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		out = append(out, *t)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })

	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return nil, nil
		}
		out = out[f.Offset:]
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) FindByExternalRef(_ context.Context, accountID string, kind Kind, ref string) (*Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ref == "" {
		return nil, ErrNotFound
	}
	for _, t := range m.txs {
		if t.AccountID == accountID && t.Kind == kind && t.ExternalRef == ref {
			cp := *t
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) UpdateStatus(_ context.Context, id string, from, to Status, decidedBy string) (*Transaction, error) {
	if from != StatusPending {
		return nil, fmt.Errorf("update status: transition from %s is not allowed", from)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.txs[id]
	if !ok {
		return nil, ErrNotFound
	}
	if t.Status != from {
		return nil, ErrConflict
	}

	now := time.Now()
	t.Status = to
	t.DecidedBy = decidedBy
	t.DecidedAt = &now

	cp := *t
	return &cp, nil
}

func (m *Memory) PendingWithdrawTotal(_ context.Context, accountID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var total int64
	for _, t := range m.txs {
		if t.AccountID == accountID && t.Kind == KindWithdraw && t.Status == StatusPending {
			total += -t.AmountCents
		}
	}
	return total, nil
}

// All retorna uma cópia de todos os lançamentos (ordem de inserção).
// Só para inspeção em testes.
func (m *Memory) All() []Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Transaction, 0, len(m.seq))
	for _, id := range m.seq {
		out = append(out, *m.txs[id])
	}
	return out
}
