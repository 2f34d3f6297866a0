package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"riftbot/internal/domain"

	"github.com/rs/zerolog"
)

func TestCreateWindowRejectsSecondActive(t *testing.T) {
	repo := NewBetRepository(newTestDB(t), zerolog.Nop())
	ctx := context.Background()
	now := time.Now()

	if _, err := repo.CreateWindow(ctx, "d1", now); err != nil {
		t.Fatalf("create window: %v", err)
	}
	if _, err := repo.CreateWindow(ctx, "d1", now.Add(time.Minute)); !errors.Is(err, ErrWindowConflict) {
		t.Fatalf("expected ErrWindowConflict, got %v", err)
	}

	// a different target is unaffected
	if _, err := repo.CreateWindow(ctx, "d2", now); err != nil {
		t.Fatalf("create window for other target: %v", err)
	}
}

func TestClosedUnmatchedWindowStillActive(t *testing.T) {
	repo := NewBetRepository(newTestDB(t), zerolog.Nop())
	ctx := context.Background()
	now := time.Now()

	w, err := repo.CreateWindow(ctx, "d1", now)
	if err != nil {
		t.Fatalf("create window: %v", err)
	}
	if err := repo.CloseWindow(ctx, w.ID, now.Add(10*time.Minute)); err != nil {
		t.Fatalf("close window: %v", err)
	}

	// closed but unmatched still blocks a new window
	if _, err := repo.CreateWindow(ctx, "d1", now.Add(11*time.Minute)); !errors.Is(err, ErrWindowConflict) {
		t.Fatalf("expected ErrWindowConflict while awaiting a match, got %v", err)
	}

	// once matched, the target is free again
	if err := repo.BindWindowToMatch(ctx, w.ID, "NA1_1"); err != nil {
		t.Fatalf("bind: %v", err)
	}
	if _, err := repo.CreateWindow(ctx, "d1", now.Add(12*time.Minute)); err != nil {
		t.Fatalf("create window after match: %v", err)
	}
}

func TestWindowTransitionsAreGuarded(t *testing.T) {
	repo := NewBetRepository(newTestDB(t), zerolog.Nop())
	ctx := context.Background()
	now := time.Now()

	w, err := repo.CreateWindow(ctx, "d1", now)
	if err != nil {
		t.Fatalf("create window: %v", err)
	}

	// open windows cannot be bound or cancelled
	if err := repo.BindWindowToMatch(ctx, w.ID, "NA1_1"); !errors.Is(err, ErrWindowTransition) {
		t.Fatalf("bind on open window: got %v", err)
	}
	if err := repo.CancelWindow(ctx, w.ID); !errors.Is(err, ErrWindowTransition) {
		t.Fatalf("cancel on open window: got %v", err)
	}

	if err := repo.CloseWindow(ctx, w.ID, now.Add(10*time.Minute)); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := repo.CloseWindow(ctx, w.ID, now.Add(10*time.Minute)); !errors.Is(err, ErrWindowTransition) {
		t.Fatalf("double close: got %v", err)
	}

	if err := repo.BindWindowToMatch(ctx, w.ID, "NA1_1"); err != nil {
		t.Fatalf("bind: %v", err)
	}
	// matched windows cannot also be cancelled
	if err := repo.CancelWindow(ctx, w.ID); !errors.Is(err, ErrWindowTransition) {
		t.Fatalf("cancel after bind: got %v", err)
	}
}

func TestBindWindowToMatchOnlyOnce(t *testing.T) {
	repo := NewBetRepository(newTestDB(t), zerolog.Nop())
	ctx := context.Background()
	now := time.Now()

	w, _ := repo.CreateWindow(ctx, "d1", now)
	if err := repo.CloseWindow(ctx, w.ID, now.Add(10*time.Minute)); err != nil {
		t.Fatalf("close: %v", err)
	}

	if err := repo.BindWindowToMatch(ctx, w.ID, "NA1_1"); err != nil {
		t.Fatalf("first bind: %v", err)
	}
	if err := repo.BindWindowToMatch(ctx, w.ID, "NA1_2"); !errors.Is(err, ErrWindowTransition) {
		t.Fatalf("second bind must lose: got %v", err)
	}
}

func TestCreateBetUpdatesWindowAggregates(t *testing.T) {
	repo := NewBetRepository(newTestDB(t), zerolog.Nop())
	ctx := context.Background()
	now := time.Now()

	w, _ := repo.CreateWindow(ctx, "d1", now)

	for i, amount := range []int64{100, 50} {
		bet := &domain.Bet{
			BettorID: "bettor", TargetID: "d1", Kind: domain.BetWin,
			Amount: amount, Odds: 1.9, OpenedAt: w.OpenedAt,
		}
		if err := repo.CreateBet(ctx, bet); err != nil {
			t.Fatalf("create bet %d: %v", i, err)
		}
		if bet.ID == "" {
			t.Fatal("bet id not assigned")
		}
	}

	got, err := repo.OpenWindowForTarget(ctx, "d1")
	if err != nil {
		t.Fatalf("get window: %v", err)
	}
	if got.BetCount != 2 || got.TotalStaked != 150 {
		t.Fatalf("aggregates = %d bets / %d staked, want 2 / 150", got.BetCount, got.TotalStaked)
	}
}

func TestSettleBetIsIdempotent(t *testing.T) {
	repo := NewBetRepository(newTestDB(t), zerolog.Nop())
	ctx := context.Background()
	now := time.Now()

	w, _ := repo.CreateWindow(ctx, "d1", now)
	bet := &domain.Bet{
		BettorID: "bettor", TargetID: "d1", Kind: domain.BetWin,
		Amount: 100, Odds: 2.0, OpenedAt: w.OpenedAt,
	}
	if err := repo.CreateBet(ctx, bet); err != nil {
		t.Fatalf("create bet: %v", err)
	}

	if err := repo.SettleBet(ctx, bet.ID, domain.BetWon, 200, now); err != nil {
		t.Fatalf("settle: %v", err)
	}
	if err := repo.SettleBet(ctx, bet.ID, domain.BetWon, 200, now); err == nil {
		t.Fatal("second settle must fail; payouts cannot double-apply")
	}

	pending, err := repo.PendingBetsForWindow(ctx, "d1", w.OpenedAt)
	if err != nil {
		t.Fatalf("pending bets: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("pending = %d, want 0", len(pending))
	}
}

func TestListWindowsToCloseAndCancel(t *testing.T) {
	repo := NewBetRepository(newTestDB(t), zerolog.Nop())
	ctx := context.Background()
	now := time.Now()

	due, _ := repo.CreateWindow(ctx, "d1", now.Add(-15*time.Minute))
	_, _ = repo.CreateWindow(ctx, "d2", now.Add(-2*time.Minute))

	toClose, err := repo.ListWindowsToClose(ctx, now.Add(-10*time.Minute))
	if err != nil {
		t.Fatalf("list to close: %v", err)
	}
	if len(toClose) != 1 || toClose[0].ID != due.ID {
		t.Fatalf("toClose = %+v, want only the 15-minute-old window", toClose)
	}

	if err := repo.CloseWindow(ctx, due.ID, now.Add(-95*time.Minute)); err != nil {
		t.Fatalf("close: %v", err)
	}

	cancellable, err := repo.ListCancellableWindows(ctx, now.Add(-90*time.Minute))
	if err != nil {
		t.Fatalf("list cancellable: %v", err)
	}
	if len(cancellable) != 1 || cancellable[0].ID != due.ID {
		t.Fatalf("cancellable = %+v, want the long-closed window", cancellable)
	}
}
