package service

import (
	"context"
	"fmt"
	"time"

	"riftbot/internal/domain"
	"riftbot/internal/repository"
	"riftbot/internal/riot"

	"github.com/rs/zerolog"
)

const rankedSoloQueue = "RANKED_SOLO_5x5"

// rank capability grants outlive two sync cycles; the expiry sweep strips
// roles that stop being renewed.
const rankGrantTTL = 65 * time.Minute

var tierOrder = map[string]int{
	"IRON": 1, "BRONZE": 2, "SILVER": 3, "GOLD": 4, "PLATINUM": 5,
	"EMERALD": 6, "DIAMOND": 7, "MASTER": 8, "GRANDMASTER": 9, "CHALLENGER": 10,
}

// RankSyncService reconciles ranked standings into account rows and rank
// role grants. It is a reconcile loop: each run converges role state onto
// what the ladder says, whatever happened in between.
type RankSyncService struct {
	identity    IdentitySource
	accounts    *repository.AccountRepository
	leaderboard *repository.LeaderboardRepository
	grants      *repository.GrantRepository
	logger      zerolog.Logger
}

func NewRankSyncService(
	identity IdentitySource,
	accounts *repository.AccountRepository,
	leaderboard *repository.LeaderboardRepository,
	grants *repository.GrantRepository,
	logger zerolog.Logger,
) *RankSyncService {
	return &RankSyncService{
		identity:    identity,
		accounts:    accounts,
		leaderboard: leaderboard,
		grants:      grants,
		logger:      logger.With().Str("component", "ranksync").Logger(),
	}
}

// SyncRanks refreshes every linked account. Per-account failures are
// collected, never fatal to the run.
func (s *RankSyncService) SyncRanks(ctx context.Context) *domain.RankSyncResult {
	result := &domain.RankSyncResult{}

	accounts, err := s.accounts.ListActive(ctx)
	if err != nil {
		result.Errors = append(result.Errors, err)
		return result
	}

	now := time.Now()
	week := repository.WeekKey(now)

	for _, account := range accounts {
		entries, err := s.identity.GetLeagueEntries(ctx, account.Puuid)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("league entries for %s: %w", account.DiscordID, err))
			continue
		}

		rank, ok := soloQueueRank(entries)
		if !ok {
			// unranked this season; nothing to reconcile
			continue
		}

		if err := s.accounts.UpdateRank(ctx, account.DiscordID, rank, now); err != nil {
			result.Errors = append(result.Errors, err)
			continue
		}
		if err := s.leaderboard.RecordTier(ctx, account.DiscordID, week, rank.Tier); err != nil {
			s.logger.Warn().Err(err).Str("discord_id", account.DiscordID).Msg("failed to record weekly tier")
		}
		if err := s.renewRankGrant(ctx, account.DiscordID, rank.Tier); err != nil {
			s.logger.Warn().Err(err).Str("discord_id", account.DiscordID).Msg("failed to renew rank grant")
		}

		switch {
		case account.Tier == "":
			// first sync, neither promotion nor demotion
		case tierOrder[rank.Tier] > tierOrder[account.Tier]:
			result.Promoted = append(result.Promoted, account.DiscordID)
		case tierOrder[rank.Tier] < tierOrder[account.Tier]:
			result.Demoted = append(result.Demoted, account.DiscordID)
		}
		result.Synced++
	}

	s.logger.Info().
		Int("synced", result.Synced).
		Int("promoted", len(result.Promoted)).
		Int("demoted", len(result.Demoted)).
		Int("errors", len(result.Errors)).
		Msg("rank sync completed")
	return result
}

// renewRankGrant keeps exactly one live rank capability per account, renewed
// each sync. A changed tier gets a fresh grant; the stale one lapses into
// the expiry sweep.
func (s *RankSyncService) renewRankGrant(ctx context.Context, discordID, tier string) error {
	capability := "rank:" + tier
	active, err := s.grants.ActiveForSubject(ctx, discordID, capability)
	if err != nil {
		return err
	}
	if active != nil && time.Until(active.ExpiresAt) > rankGrantTTL/2 {
		return nil
	}
	_, err = s.grants.Create(ctx, discordID, capability, time.Now().Add(rankGrantTTL))
	return err
}

// SweepExpiredGrants revokes lapsed grants and reports them so the gateway
// can remove the corresponding roles. Idempotent.
func (s *RankSyncService) SweepExpiredGrants(ctx context.Context) ([]domain.ScopedGrant, error) {
	expired, err := s.grants.SweepExpired(ctx, time.Now())
	if err != nil {
		return nil, err
	}
	if len(expired) > 0 {
		s.logger.Info().Int("count", len(expired)).Msg("revoked expired grants")
	}
	return expired, nil
}

func soloQueueRank(entries []riot.LeagueEntry) (domain.Rank, bool) {
	for _, e := range entries {
		if e.QueueType == rankedSoloQueue {
			return domain.Rank{
				Tier:         e.Tier,
				Division:     e.Rank,
				LeaguePoints: e.LeaguePoints,
				Wins:         e.Wins,
				Losses:       e.Losses,
			}, true
		}
	}
	return domain.Rank{}, false
}
