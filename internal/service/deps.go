package service

import (
	"context"

	"riftbot/internal/domain"
	"riftbot/internal/riot"
)

// MatchSource is the slice of the Riot client the pipeline consumes. Tests
// substitute a fake.
type MatchSource interface {
	ListRecentMatchIDs(ctx context.Context, puuid string, count int, matchType string) ([]string, error)
	GetMatchDetail(ctx context.Context, matchID string) (*riot.MatchResponse, error)
}

// IdentitySource resolves riot identities and ranked standings.
type IdentitySource interface {
	GetAccountByRiotID(ctx context.Context, gameName, tagLine string) (*riot.AccountResponse, error)
	GetLeagueEntries(ctx context.Context, puuid string) ([]riot.LeagueEntry, error)
}

// Narrator produces post-game commentary. Implementations must be best
// effort: on any internal failure they fall back to canned lines, never an
// error.
type Narrator interface {
	Narrate(ctx context.Context, analysis *domain.MatchAnalysis) []string
}

// Notifier receives finished workflow results for rendering. The pipeline
// never formats user-facing text itself.
type Notifier interface {
	NotifyAnalysis(ctx context.Context, analysis *domain.MatchAnalysis)
	NotifySettlement(ctx context.Context, result *domain.SettlementResult)
	NotifyCancellation(ctx context.Context, window *domain.BetWindow, refunded int)
}

// NopNotifier discards notifications. Used in tests and headless runs.
type NopNotifier struct{}

func (NopNotifier) NotifyAnalysis(context.Context, *domain.MatchAnalysis)      {}
func (NopNotifier) NotifySettlement(context.Context, *domain.SettlementResult) {}
func (NopNotifier) NotifyCancellation(context.Context, *domain.BetWindow, int) {}
