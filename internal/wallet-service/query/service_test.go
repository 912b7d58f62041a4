package query

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/betstack/wallet-platform/internal/wallet-service/ledger"
)

type stubReader struct {
	summary     Summary
	recent      []ledger.Transaction
	calls       int
	lastKind    ledger.Kind
	lastLimit   int
	lastStart   time.Time
	lastEnd     time.Time
}

func (r *stubReader) Summary(_ context.Context, start, end time.Time) (Summary, error) {
	r.calls++
	r.lastStart, r.lastEnd = start, end
	return r.summary, nil
}

func (r *stubReader) Recent(_ context.Context, kind ledger.Kind, limit int) ([]ledger.Transaction, error) {
	r.lastKind, r.lastLimit = kind, limit
	return r.recent, nil
}

func TestDashboard_PassesRangeThrough(t *testing.T) {
	r := &stubReader{summary: Summary{
		Users:     UsersSummary{Total: 3, Active: 2},
		Financial: FinancialSummary{TotalBalance: 150000},
	}}
	svc := NewService(zap.NewNop(), r, nil, 0)

	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

	sum, err := svc.Dashboard(context.Background(), start, end)
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if sum.Users.Total != 3 || sum.Financial.TotalBalance != 150000 {
		t.Fatalf("unexpected summary: %+v", sum)
	}
	if !r.lastStart.Equal(start) || !r.lastEnd.Equal(end) {
		t.Fatalf("range not passed through: %v .. %v", r.lastStart, r.lastEnd)
	}
	if r.calls != 1 {
		t.Fatalf("expected a single reader call, got %d", r.calls)
	}
}

// Range vazio devolve a estrutura zerada, nunca campos faltando
func TestDashboard_EmptyRangeIsZeroed(t *testing.T) {
	svc := NewService(zap.NewNop(), &stubReader{}, nil, 0)

	sum, err := svc.Dashboard(context.Background(), time.Time{}, time.Now())
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if sum != (Summary{}) {
		t.Fatalf("expected zeroed summary, got %+v", sum)
	}
}

func TestRecent_ClampsLimit(t *testing.T) {
	r := &stubReader{}
	svc := NewService(zap.NewNop(), r, nil, 0)
	ctx := context.Background()

	cases := map[int]int{
		0:    10,
		-5:   10,
		101:  10,
		25:   25,
		100:  100,
	}
	for in, want := range cases {
		if _, err := svc.Recent(ctx, "", in); err != nil {
			t.Fatalf("recent(%d): %v", in, err)
		}
		if r.lastLimit != want {
			t.Errorf("limit %d: expected clamp to %d, got %d", in, want, r.lastLimit)
		}
	}
}

func TestRecent_ForwardsKindFilter(t *testing.T) {
	r := &stubReader{}
	svc := NewService(zap.NewNop(), r, nil, 0)

	if _, err := svc.Recent(context.Background(), ledger.KindWithdraw, 5); err != nil {
		t.Fatalf("recent: %v", err)
	}
	if r.lastKind != ledger.KindWithdraw {
		t.Fatalf("kind filter not forwarded: %s", r.lastKind)
	}
}

func TestCacheKey_IsStablePerRange(t *testing.T) {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

	if cacheKey(start, end) != cacheKey(start, end) {
		t.Fatal("same range must produce the same key")
	}
	if cacheKey(start, end) == cacheKey(start, end.Add(time.Hour)) {
		t.Fatal("different ranges must not collide")
	}
}
