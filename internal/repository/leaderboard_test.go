package repository

import (
	"context"
	"testing"
	"time"

	"riftbot/internal/domain"

	"github.com/rs/zerolog"
)

func TestWeekKey(t *testing.T) {
	tests := []struct {
		date string
		want string
	}{
		{"2026-08-31", "2026-W36"},
		{"2026-01-01", "2026-W01"},
		// Jan 1st 2027 falls in ISO week 53 of 2026
		{"2027-01-01", "2026-W53"},
	}
	for _, tt := range tests {
		day, err := time.Parse("2006-01-02", tt.date)
		if err != nil {
			t.Fatalf("parse %s: %v", tt.date, err)
		}
		if got := WeekKey(day); got != tt.want {
			t.Errorf("WeekKey(%s) = %s, want %s", tt.date, got, tt.want)
		}
	}
}

func TestAddGameAccumulates(t *testing.T) {
	repo := NewLeaderboardRepository(newTestDB(t), zerolog.Nop())
	ctx := context.Background()

	games := []domain.Participant{
		{Kills: 10, Deaths: 2, Assists: 5, Win: true},
		{Kills: 3, Deaths: 8, Assists: 12, Win: false},
	}
	for _, g := range games {
		if err := repo.AddGame(ctx, "d1", "2026-W36", g); err != nil {
			t.Fatalf("add game: %v", err)
		}
	}

	entry, err := repo.Get(ctx, "d1", "2026-W36")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if entry.GamesPlayed != 2 || entry.GamesWon != 1 {
		t.Fatalf("games = %d/%d won, want 2/1", entry.GamesPlayed, entry.GamesWon)
	}
	if entry.Kills != 13 || entry.Deaths != 10 || entry.Assists != 17 {
		t.Fatalf("kda totals = %d/%d/%d, want 13/10/17", entry.Kills, entry.Deaths, entry.Assists)
	}
}

func TestWeeksAreIndependent(t *testing.T) {
	repo := NewLeaderboardRepository(newTestDB(t), zerolog.Nop())
	ctx := context.Background()

	if err := repo.AddGame(ctx, "d1", "2026-W36", domain.Participant{Kills: 5, Win: true}); err != nil {
		t.Fatalf("add game: %v", err)
	}
	if err := repo.AddGame(ctx, "d1", "2026-W37", domain.Participant{Kills: 1}); err != nil {
		t.Fatalf("add game: %v", err)
	}

	prev, _ := repo.Get(ctx, "d1", "2026-W36")
	if prev.Kills != 5 || prev.GamesPlayed != 1 {
		t.Fatalf("week 36 entry polluted: %+v", prev)
	}
}

func TestTopForWeekOrdersByWinsThenKills(t *testing.T) {
	repo := NewLeaderboardRepository(newTestDB(t), zerolog.Nop())
	ctx := context.Background()
	week := "2026-W36"

	_ = repo.AddGame(ctx, "loser", week, domain.Participant{Kills: 20})
	_ = repo.AddGame(ctx, "winner", week, domain.Participant{Kills: 2, Win: true})
	_ = repo.AddGame(ctx, "winner-more-kills", week, domain.Participant{Kills: 9, Win: true})

	top, err := repo.TopForWeek(ctx, week, 10)
	if err != nil {
		t.Fatalf("top for week: %v", err)
	}
	want := []string{"winner-more-kills", "winner", "loser"}
	if len(top) != len(want) {
		t.Fatalf("entries = %d, want %d", len(top), len(want))
	}
	for i, id := range want {
		if top[i].DiscordID != id {
			t.Errorf("position %d = %s, want %s", i+1, top[i].DiscordID, id)
		}
	}
}

func TestRecordTierPreservesGameStats(t *testing.T) {
	repo := NewLeaderboardRepository(newTestDB(t), zerolog.Nop())
	ctx := context.Background()

	if err := repo.AddGame(ctx, "d1", "2026-W36", domain.Participant{Kills: 4, Win: true}); err != nil {
		t.Fatalf("add game: %v", err)
	}
	if err := repo.RecordTier(ctx, "d1", "2026-W36", "GOLD"); err != nil {
		t.Fatalf("record tier: %v", err)
	}

	entry, _ := repo.Get(ctx, "d1", "2026-W36")
	if entry.HighestTier != "GOLD" {
		t.Fatalf("tier = %q, want GOLD", entry.HighestTier)
	}
	if entry.Kills != 4 || entry.GamesWon != 1 {
		t.Fatalf("tier upsert clobbered stats: %+v", entry)
	}
}
