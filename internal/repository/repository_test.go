package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"riftbot/internal/database"
	"riftbot/internal/domain"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	// in-memory sqlite drops all state when the last connection closes
	db.SetMaxOpenConns(1)

	if err := database.RunMigrations(db, zerolog.Nop()); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	return db
}

func linkTestAccount(t *testing.T, repo *AccountRepository, discordID, puuid string, balance int64) {
	t.Helper()
	err := repo.Link(context.Background(), &domain.LinkedAccount{
		DiscordID: discordID,
		Puuid:     puuid,
		GameName:  "Player" + discordID,
		TagLine:   "NA1",
		Region:    "americas",
		Balance:   balance,
	})
	if err != nil {
		t.Fatalf("link account %s: %v", discordID, err)
	}
}

func testParticipant(matchID, puuid, discordID string, kills, deaths, assists int, win bool) domain.Participant {
	return domain.Participant{
		MatchID:   matchID,
		Puuid:     puuid,
		DiscordID: discordID,
		Champion:  "Ahri",
		Kills:     kills,
		Deaths:    deaths,
		Assists:   assists,
		Win:       win,
		TeamID:    100,
	}
}

func mustClaim(t *testing.T, repo *MatchRepository, matchID string, at time.Time) {
	t.Helper()
	ok, err := repo.TryClaim(context.Background(), matchID, at)
	if err != nil {
		t.Fatalf("claim %s: %v", matchID, err)
	}
	if !ok {
		t.Fatalf("claim %s: lost to nonexistent competitor", matchID)
	}
}
