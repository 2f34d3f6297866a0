package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"riftbot/internal/database"
	"riftbot/internal/domain"
	"riftbot/internal/metrics"
	"riftbot/internal/repository"
	"riftbot/internal/riot"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// fakeSource serves canned match lists and details so tests control exactly
// what the pipeline sees.
type fakeSource struct {
	idsByPuuid map[string][]string
	details    map[string]*riot.MatchResponse
	listErr    error
	detailErr  error
}

func (f *fakeSource) ListRecentMatchIDs(ctx context.Context, puuid string, count int, matchType string) ([]string, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.idsByPuuid[puuid], nil
}

func (f *fakeSource) GetMatchDetail(ctx context.Context, matchID string) (*riot.MatchResponse, error) {
	if f.detailErr != nil {
		return nil, f.detailErr
	}
	return f.details[matchID], nil
}

type fakeIdentity struct {
	accounts map[string]*riot.AccountResponse // keyed "name#tag"
	entries  map[string][]riot.LeagueEntry    // keyed puuid
}

func (f *fakeIdentity) GetAccountByRiotID(ctx context.Context, gameName, tagLine string) (*riot.AccountResponse, error) {
	return f.accounts[gameName+"#"+tagLine], nil
}

func (f *fakeIdentity) GetLeagueEntries(ctx context.Context, puuid string) ([]riot.LeagueEntry, error) {
	return f.entries[puuid], nil
}

type fakeNarrator struct{}

func (fakeNarrator) Narrate(ctx context.Context, analysis *domain.MatchAnalysis) []string {
	return []string{"gg"}
}

// recordingNotifier captures what the pipeline would announce.
type recordingNotifier struct {
	analyses      []*domain.MatchAnalysis
	settlements   []*domain.SettlementResult
	cancellations int
}

func (r *recordingNotifier) NotifyAnalysis(ctx context.Context, a *domain.MatchAnalysis) {
	r.analyses = append(r.analyses, a)
}

func (r *recordingNotifier) NotifySettlement(ctx context.Context, s *domain.SettlementResult) {
	r.settlements = append(r.settlements, s)
}

func (r *recordingNotifier) NotifyCancellation(ctx context.Context, w *domain.BetWindow, refunded int) {
	r.cancellations++
}

type testEnv struct {
	db          *sql.DB
	accounts    *repository.AccountRepository
	matches     *repository.MatchRepository
	bets        *repository.BetRepository
	leaderboard *repository.LeaderboardRepository
	grants      *repository.GrantRepository

	source   *fakeSource
	identity *fakeIdentity
	notifier *recordingNotifier

	ingest     *IngestService
	settlement *SettlementService
	betting    *BettingService
	rankSync   *RankSyncService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	db.SetMaxOpenConns(1)
	if err := database.RunMigrations(db, zerolog.Nop()); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	log := zerolog.Nop()
	env := &testEnv{
		db:          db,
		accounts:    repository.NewAccountRepository(db, log),
		matches:     repository.NewMatchRepository(db, log),
		bets:        repository.NewBetRepository(db, log),
		leaderboard: repository.NewLeaderboardRepository(db, log),
		grants:      repository.NewGrantRepository(db, log),
		source: &fakeSource{
			idsByPuuid: map[string][]string{},
			details:    map[string]*riot.MatchResponse{},
		},
		identity: &fakeIdentity{
			accounts: map[string]*riot.AccountResponse{},
			entries:  map[string][]riot.LeagueEntry{},
		},
		notifier: &recordingNotifier{},
	}

	m := metrics.New()
	env.settlement = NewSettlementService(env.accounts, env.bets, m, log)
	env.betting = NewBettingService(env.identity, env.accounts, env.matches, env.bets, log)
	env.ingest = NewIngestService(env.source, env.accounts, env.matches, env.leaderboard,
		env.grants, env.settlement, fakeNarrator{}, env.notifier, m, log)
	env.rankSync = NewRankSyncService(env.identity, env.accounts, env.leaderboard, env.grants, log)
	return env
}

func (e *testEnv) link(t *testing.T, discordID, puuid string, balance int64) {
	t.Helper()
	err := e.accounts.Link(context.Background(), &domain.LinkedAccount{
		DiscordID: discordID,
		Puuid:     puuid,
		GameName:  "Player" + discordID,
		TagLine:   "NA1",
		Region:    "americas",
		Balance:   balance,
	})
	if err != nil {
		t.Fatalf("link %s: %v", discordID, err)
	}
}

func (e *testEnv) balance(t *testing.T, discordID string) int64 {
	t.Helper()
	account, err := e.accounts.GetByDiscordID(context.Background(), discordID)
	if err != nil {
		t.Fatalf("get account %s: %v", discordID, err)
	}
	return account.Balance
}

// matchDetail builds a full 10-player lobby where the given puuids occupy the
// first slots of team 100.
func matchDetail(matchID string, gameStart time.Time, duration time.Duration, winners []string, losers []string) *riot.MatchResponse {
	detail := &riot.MatchResponse{
		Metadata: riot.MatchMetadata{MatchID: matchID},
		Info: riot.MatchInfo{
			GameCreation: gameStart.UnixMilli(),
			GameDuration: int64(duration / time.Second),
			GameMode:     "CLASSIC",
			QueueID:      420,
		},
	}
	for i, puuid := range winners {
		detail.Info.Participants = append(detail.Info.Participants, riot.MatchParticipant{
			Puuid: puuid, ChampionName: "Ahri",
			Kills: 5 + i, Deaths: 3, Assists: 7,
			TotalDamageDealtToChampions: 20000, TotalDamageTaken: 15000,
			GoldEarned: 12000, VisionScore: 20,
			Win: true, TeamID: 100,
		})
	}
	for i, puuid := range losers {
		detail.Info.Participants = append(detail.Info.Participants, riot.MatchParticipant{
			Puuid: puuid, ChampionName: "Garen",
			Kills: 2, Deaths: 8 + i, Assists: 4,
			TotalDamageDealtToChampions: 14000, TotalDamageTaken: 22000,
			GoldEarned: 9000, VisionScore: 12,
			Win: false, TeamID: 200,
		})
	}
	return detail
}
