package repository

import (
	"context"
	"errors"
	"testing"

	"riftbot/internal/domain"

	"github.com/rs/zerolog"
)

func TestLinkDuplicateDiscordID(t *testing.T) {
	repo := NewAccountRepository(newTestDB(t), zerolog.Nop())
	ctx := context.Background()

	linkTestAccount(t, repo, "d1", "puuid-1", 500)

	err := repo.Link(ctx, &domain.LinkedAccount{
		DiscordID: "d1", Puuid: "puuid-2", GameName: "Other", TagLine: "NA1", Region: "americas",
	})
	if !errors.Is(err, ErrAlreadyLinked) {
		t.Fatalf("expected ErrAlreadyLinked, got %v", err)
	}
}

func TestLinkDuplicatePuuid(t *testing.T) {
	repo := NewAccountRepository(newTestDB(t), zerolog.Nop())
	ctx := context.Background()

	linkTestAccount(t, repo, "d1", "puuid-1", 500)

	err := repo.Link(ctx, &domain.LinkedAccount{
		DiscordID: "d2", Puuid: "puuid-1", GameName: "Other", TagLine: "NA1", Region: "americas",
	})
	if !errors.Is(err, ErrAlreadyLinked) {
		t.Fatalf("expected ErrAlreadyLinked, got %v", err)
	}
}

func TestUnlinkHidesAccount(t *testing.T) {
	repo := NewAccountRepository(newTestDB(t), zerolog.Nop())
	ctx := context.Background()

	linkTestAccount(t, repo, "d1", "puuid-1", 500)

	if err := repo.Unlink(ctx, "d1"); err != nil {
		t.Fatalf("unlink: %v", err)
	}
	if _, err := repo.GetByDiscordID(ctx, "d1"); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound after unlink, got %v", err)
	}

	// second unlink finds nothing to do
	if err := repo.Unlink(ctx, "d1"); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound on double unlink, got %v", err)
	}
}

func TestDebitGuardsBalance(t *testing.T) {
	repo := NewAccountRepository(newTestDB(t), zerolog.Nop())
	ctx := context.Background()

	linkTestAccount(t, repo, "d1", "puuid-1", 100)

	if err := repo.Debit(ctx, "d1", 60); err != nil {
		t.Fatalf("first debit: %v", err)
	}
	if err := repo.Debit(ctx, "d1", 60); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}

	account, err := repo.GetByDiscordID(ctx, "d1")
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if account.Balance != 40 {
		t.Fatalf("balance = %d, want 40 (failed debit must not apply)", account.Balance)
	}
}

func TestDebitExactBalance(t *testing.T) {
	repo := NewAccountRepository(newTestDB(t), zerolog.Nop())
	ctx := context.Background()

	linkTestAccount(t, repo, "d1", "puuid-1", 100)

	if err := repo.Debit(ctx, "d1", 100); err != nil {
		t.Fatalf("debit of full balance should succeed: %v", err)
	}
	account, _ := repo.GetByDiscordID(ctx, "d1")
	if account.Balance != 0 {
		t.Fatalf("balance = %d, want 0", account.Balance)
	}
}

func TestPenalizeGoesNegative(t *testing.T) {
	repo := NewAccountRepository(newTestDB(t), zerolog.Nop())
	ctx := context.Background()

	linkTestAccount(t, repo, "d1", "puuid-1", 20)

	if err := repo.Penalize(ctx, "d1", 50); err != nil {
		t.Fatalf("penalize: %v", err)
	}
	account, _ := repo.GetByDiscordID(ctx, "d1")
	if account.Balance != -30 {
		t.Fatalf("balance = %d, want -30", account.Balance)
	}
}

func TestMapByPuuidSkipsUnlinked(t *testing.T) {
	repo := NewAccountRepository(newTestDB(t), zerolog.Nop())
	ctx := context.Background()

	linkTestAccount(t, repo, "d1", "puuid-1", 500)
	linkTestAccount(t, repo, "d2", "puuid-2", 500)
	if err := repo.Unlink(ctx, "d2"); err != nil {
		t.Fatalf("unlink: %v", err)
	}

	byPuuid, err := repo.MapByPuuid(ctx)
	if err != nil {
		t.Fatalf("map by puuid: %v", err)
	}
	if len(byPuuid) != 1 {
		t.Fatalf("map size = %d, want 1", len(byPuuid))
	}
	if _, ok := byPuuid["puuid-1"]; !ok {
		t.Fatal("puuid-1 missing from map")
	}
}
