package balance

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestEngine(accounts ...Account) (*Engine, *Memory) {
	store := NewMemory()
	for _, a := range accounts {
		store.Seed(a)
	}
	return NewEngine(zap.NewNop(), store), store
}

func TestEngine_ReserveSettleFlow(t *testing.T) {
	e, _ := newTestEngine(Account{ID: "acc-1", BalanceCents: 100000})
	ctx := context.Background()

	snap, err := e.Reserve(ctx, "acc-1", 30000)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if snap.BalanceCents != 100000 || snap.ReservedCents != 30000 || snap.AvailableCents != 70000 {
		t.Fatalf("unexpected snapshot after reserve: %+v", snap)
	}

	snap, err = e.Settle(ctx, "acc-1", 30000)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if snap.BalanceCents != 70000 || snap.ReservedCents != 0 {
		t.Fatalf("unexpected snapshot after settle: %+v", snap)
	}
}

func TestEngine_ReserveInsufficient(t *testing.T) {
	e, _ := newTestEngine(Account{ID: "acc-1", BalanceCents: 100000, ReservedCents: 50000})
	ctx := context.Background()

	if _, err := e.Reserve(ctx, "acc-1", 60000); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	// saldo intocado
	snap, _ := e.Get(ctx, "acc-1")
	if snap.BalanceCents != 100000 || snap.ReservedCents != 50000 {
		t.Fatalf("balances changed on refused reserve: %+v", snap)
	}
}

func TestEngine_ReleaseRestoresAvailable(t *testing.T) {
	e, _ := newTestEngine(Account{ID: "acc-1", BalanceCents: 100000})
	ctx := context.Background()

	_, _ = e.Reserve(ctx, "acc-1", 30000)
	snap, err := e.Release(ctx, "acc-1", 30000)
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if snap.BalanceCents != 100000 || snap.ReservedCents != 0 || snap.AvailableCents != 100000 {
		t.Fatalf("unexpected snapshot after release: %+v", snap)
	}
}

func TestEngine_ReleaseUnderflowIsInvariant(t *testing.T) {
	e, _ := newTestEngine(Account{ID: "acc-1", BalanceCents: 100000, ReservedCents: 10000})
	if _, err := e.Release(context.Background(), "acc-1", 20000); !errors.Is(err, ErrInvariant) {
		t.Fatalf("expected ErrInvariant, got %v", err)
	}
}

func TestEngine_SettleUnderflowIsInvariant(t *testing.T) {
	e, _ := newTestEngine(Account{ID: "acc-1", BalanceCents: 100000, ReservedCents: 10000})
	if _, err := e.Settle(context.Background(), "acc-1", 20000); !errors.Is(err, ErrInvariant) {
		t.Fatalf("expected ErrInvariant, got %v", err)
	}
}

func TestEngine_CreditAndDebit(t *testing.T) {
	e, _ := newTestEngine(Account{ID: "acc-1", BalanceCents: 100000, ReservedCents: 40000})
	ctx := context.Background()

	snap, err := e.Credit(ctx, "acc-1", 25000)
	if err != nil {
		t.Fatalf("credit: %v", err)
	}
	if snap.BalanceCents != 125000 || snap.ReservedCents != 40000 {
		t.Fatalf("unexpected snapshot after credit: %+v", snap)
	}

	// débito nunca invade o que está reservado
	if _, err := e.Debit(ctx, "acc-1", 90000); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	snap, err = e.Debit(ctx, "acc-1", 85000)
	if err != nil {
		t.Fatalf("debit: %v", err)
	}
	if snap.BalanceCents != 40000 || snap.AvailableCents != 0 {
		t.Fatalf("unexpected snapshot after debit: %+v", snap)
	}
}

func TestEngine_NonPositiveAmountRejected(t *testing.T) {
	e, _ := newTestEngine(Account{ID: "acc-1", BalanceCents: 100000})
	ctx := context.Background()

	for name, fn := range map[string]func() error{
		"reserve": func() error { _, err := e.Reserve(ctx, "acc-1", 0); return err },
		"release": func() error { _, err := e.Release(ctx, "acc-1", -1); return err },
		"settle":  func() error { _, err := e.Settle(ctx, "acc-1", 0); return err },
		"credit":  func() error { _, err := e.Credit(ctx, "acc-1", -5); return err },
		"debit":   func() error { _, err := e.Debit(ctx, "acc-1", 0); return err },
	} {
		if err := fn(); err == nil {
			t.Errorf("%s: expected error for non-positive amount", name)
		}
	}
}

func TestEngine_UnknownAccount(t *testing.T) {
	e, _ := newTestEngine()
	if _, err := e.Get(context.Background(), "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := e.Reserve(context.Background(), "ghost", 100); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// Reservas concorrentes de 600 numa conta com 1000: exatamente uma passa
func TestEngine_ConcurrentReserves(t *testing.T) {
	e, _ := newTestEngine(Account{ID: "acc-1", BalanceCents: 100000})
	ctx := context.Background()

	const amount = 60000
	results := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.Reserve(ctx, "acc-1", amount)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var ok, insufficient int
	for err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrInsufficientFunds):
			insufficient++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || insufficient != 1 {
		t.Fatalf("expected exactly one success and one refusal, got ok=%d insufficient=%d", ok, insufficient)
	}

	snap, _ := e.Get(ctx, "acc-1")
	if snap.ReservedCents != amount {
		t.Fatalf("expected reserved %d, got %d", amount, snap.ReservedCents)
	}
}

// Contenção prolongada vira ErrBusy, nunca espera indefinida
func TestMemoryStore_BusyOnContention(t *testing.T) {
	store := NewMemory()
	store.LockWait = 50 * time.Millisecond
	store.Seed(Account{ID: "acc-1", BalanceCents: 100000})
	ctx := context.Background()

	hold := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_, _ = store.Update(ctx, "acc-1", func(a *Account) error {
			close(started)
			<-hold // segura o lock da conta
			return nil
		})
	}()
	<-started

	_, err := store.Update(ctx, "acc-1", func(a *Account) error { return nil })
	close(hold)
	if !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
}

// Contas diferentes nunca se bloqueiam
func TestMemoryStore_IndependentAccounts(t *testing.T) {
	store := NewMemory()
	store.LockWait = 50 * time.Millisecond
	store.Seed(Account{ID: "acc-1", BalanceCents: 100000})
	store.Seed(Account{ID: "acc-2", BalanceCents: 100000})
	ctx := context.Background()

	hold := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_, _ = store.Update(ctx, "acc-1", func(a *Account) error {
			close(started)
			<-hold
			return nil
		})
	}()
	<-started
	defer close(hold)

	if _, err := store.Update(ctx, "acc-2", func(a *Account) error {
		a.BalanceCents += 100
		return nil
	}); err != nil {
		t.Fatalf("acc-2 blocked by acc-1 lock: %v", err)
	}
}

func TestMemoryStore_InvariantGuard(t *testing.T) {
	store := NewMemory()
	store.Seed(Account{ID: "acc-1", BalanceCents: 1000})

	_, err := store.Update(context.Background(), "acc-1", func(a *Account) error {
		a.ReservedCents = 2000 // reserva maior que o saldo
		return nil
	})
	if !errors.Is(err, ErrInvariant) {
		t.Fatalf("expected ErrInvariant, got %v", err)
	}

	// mutação abortada não vaza
	a, _ := store.Get(context.Background(), "acc-1")
	if a.ReservedCents != 0 {
		t.Fatalf("aborted update leaked: %+v", a)
	}
}

func TestEngine_ReconcileReserved(t *testing.T) {
	e, _ := newTestEngine(Account{ID: "acc-1", BalanceCents: 100000, ReservedCents: 70000})
	ctx := context.Background()

	// razão diz que só 30000 estão pendentes; drift é corrigido
	snap, err := e.ReconcileReserved(ctx, "acc-1", 30000)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if snap.ReservedCents != 30000 {
		t.Fatalf("expected reserved 30000, got %d", snap.ReservedCents)
	}

	// sem drift é no-op
	snap, err = e.ReconcileReserved(ctx, "acc-1", 30000)
	if err != nil || snap.ReservedCents != 30000 {
		t.Fatalf("expected stable reconcile, got %+v err=%v", snap, err)
	}
}

func TestEngine_GetOrCreate(t *testing.T) {
	e, _ := newTestEngine()
	ctx := context.Background()

	snap, err := e.GetOrCreate(ctx, "acc-new")
	if err != nil {
		t.Fatalf("get or create: %v", err)
	}
	if snap.BalanceCents != 0 || snap.Status != StatusActive {
		t.Fatalf("expected fresh active account, got %+v", snap)
	}

	_, _ = e.Credit(ctx, "acc-new", 500)
	snap, _ = e.GetOrCreate(ctx, "acc-new")
	if snap.BalanceCents != 500 {
		t.Fatalf("expected existing account on second call, got %+v", snap)
	}
}
