package service

import (
	"context"
	"fmt"
	"time"

	"riftbot/internal/constants"
	"riftbot/internal/domain"
	"riftbot/internal/metrics"
	"riftbot/internal/repository"
	"riftbot/internal/riot"
	"riftbot/internal/scoring"

	"github.com/rs/zerolog"
)

// IngestService walks candidate match ids through the claim state machine:
// absent -> claimed -> terminal, with stale claims recovered back to absent.
// The atomic claim in the match repository is the only thing preventing two
// workers (or two processes) from double-processing a match; everything else
// here is an optimization or a side effect.
type IngestService struct {
	source      MatchSource
	accounts    *repository.AccountRepository
	matches     *repository.MatchRepository
	leaderboard *repository.LeaderboardRepository
	grants      *repository.GrantRepository
	settlement  *SettlementService
	narrator    Narrator
	notifier    Notifier
	metrics     *metrics.PipelineMetrics
	logger      zerolog.Logger

	matchType       string
	sweepMatchCount int
}

func NewIngestService(
	source MatchSource,
	accounts *repository.AccountRepository,
	matches *repository.MatchRepository,
	leaderboard *repository.LeaderboardRepository,
	grants *repository.GrantRepository,
	settlement *SettlementService,
	narrator Narrator,
	notifier Notifier,
	m *metrics.PipelineMetrics,
	logger zerolog.Logger,
) *IngestService {
	return &IngestService{
		source:          source,
		accounts:        accounts,
		matches:         matches,
		leaderboard:     leaderboard,
		grants:          grants,
		settlement:      settlement,
		narrator:        narrator,
		notifier:        notifier,
		metrics:         m,
		logger:          logger.With().Str("component", "ingest").Logger(),
		matchType:       "ranked",
		sweepMatchCount: 5,
	}
}

// SetSweepMatchCount overrides how many recent matches each account is
// checked for per sweep.
func (s *IngestService) SetSweepMatchCount(n int) {
	if n > 0 {
		s.sweepMatchCount = n
	}
}

// SweepAll checks every linked account's recent matches. One bad match or
// account never aborts the sweep; failures land in the result's error list.
func (s *IngestService) SweepAll(ctx context.Context) *domain.SweepResult {
	start := time.Now()
	defer func() {
		s.metrics.SweepDuration.Observe(time.Since(start).Seconds())
	}()

	result := &domain.SweepResult{}

	accounts, err := s.accounts.ListActive(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list linked accounts")
		result.Errors = append(result.Errors, domain.SweepError{Err: err})
		return result
	}

	byPuuid, err := s.accounts.MapByPuuid(ctx)
	if err != nil {
		result.Errors = append(result.Errors, domain.SweepError{Err: err})
		return result
	}

	// Request-scoped dedup: avoids refetching detail for a match several
	// linked accounts played together. Correctness still rests on the
	// atomic claim.
	seen := make(map[string]struct{})

	for _, account := range accounts {
		ids, err := s.source.ListRecentMatchIDs(ctx, account.Puuid, s.sweepMatchCount, s.matchType)
		if err != nil {
			s.logger.Warn().Err(err).Str("discord_id", account.DiscordID).Msg("failed to list matches for account")
			result.Errors = append(result.Errors, domain.SweepError{Err: fmt.Errorf("list matches for %s: %w", account.DiscordID, err)})
			s.metrics.SweepErrors.Inc()
			continue
		}
		for _, id := range ids {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			s.processMatch(ctx, id, byPuuid, result)
		}
	}

	s.logger.Info().
		Int("checked", result.Checked).
		Int("new", len(result.NewMatches)).
		Int("skipped_processed", result.SkippedAlreadyProcessed).
		Int("skipped_solo", result.SkippedNotEnoughPlayers).
		Int("errors", len(result.Errors)).
		Msg("sweep completed")
	return result
}

// CheckAccount is the on-demand variant scoped to one linked account. Safe
// to run concurrently with a sweep; the claim arbitrates.
func (s *IngestService) CheckAccount(ctx context.Context, discordID string) (*domain.SweepResult, error) {
	account, err := s.accounts.GetByDiscordID(ctx, discordID)
	if err != nil {
		return nil, err
	}

	byPuuid, err := s.accounts.MapByPuuid(ctx)
	if err != nil {
		return nil, err
	}

	result := &domain.SweepResult{}
	ids, err := s.source.ListRecentMatchIDs(ctx, account.Puuid, s.sweepMatchCount, s.matchType)
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	for _, id := range ids {
		s.processMatch(ctx, id, byPuuid, result)
	}
	return result, nil
}

// CleanupStaleClaims is the scheduled safety net for claims abandoned by a
// crashed worker mid-sweep.
func (s *IngestService) CleanupStaleClaims(ctx context.Context) (int64, error) {
	n, err := s.matches.DeleteStaleClaims(ctx, time.Now().Add(-constants.ClaimStaleness))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.metrics.StaleClaims.Add(float64(n))
		s.logger.Warn().Int64("count", n).Msg("recovered stale match claims")
	}
	return n, nil
}

// processMatch runs one candidate id through the state machine. All errors
// are recorded on the result; nothing escapes.
func (s *IngestService) processMatch(ctx context.Context, matchID string, byPuuid map[string]domain.LinkedAccount, result *domain.SweepResult) {
	result.Checked++
	log := s.logger.With().Str("match_id", matchID).Logger()

	state, err := s.matches.GetClaimState(ctx, matchID)
	if err != nil {
		s.recordError(result, matchID, err)
		return
	}

	switch {
	case state.Exists && state.Terminal:
		result.SkippedAlreadyProcessed++
		return
	case state.Exists && time.Since(state.ClaimedAt) < constants.ClaimStaleness:
		// another worker owns the live claim
		result.SkippedAlreadyProcessed++
		return
	case state.Exists:
		log.Warn().Time("claimed_at", state.ClaimedAt).Msg("deleting stale claim from crashed worker")
		if err := s.matches.ReleaseClaim(ctx, matchID); err != nil {
			s.recordError(result, matchID, err)
			return
		}
		s.metrics.StaleClaims.Inc()
	}

	// Fetch detail before claiming: a failed fetch must leave the id
	// absent and retryable.
	detail, err := s.source.GetMatchDetail(ctx, matchID)
	if err != nil {
		s.recordError(result, matchID, fmt.Errorf("fetch detail: %w", err))
		return
	}
	if detail == nil {
		s.recordError(result, matchID, fmt.Errorf("match detail not found"))
		return
	}

	linked := resolveLinked(detail, byPuuid)
	if len(linked) == 0 {
		// nobody we know played; nothing to claim
		return
	}

	claimed, err := s.matches.TryClaim(ctx, matchID, time.Now())
	if err != nil {
		s.recordError(result, matchID, err)
		return
	}
	if !claimed {
		s.metrics.ClaimConflicts.Inc()
		result.SkippedAlreadyProcessed++
		return
	}

	if err := s.completeClaim(ctx, matchID, detail, linked, result); err != nil {
		// Release so the next sweep retries; never leave the claim stuck.
		if relErr := s.matches.ReleaseClaim(ctx, matchID); relErr != nil {
			log.Error().Err(relErr).Msg("failed to release claim after processing error")
		}
		s.recordError(result, matchID, err)
	}
}

// completeClaim runs analysis and persistence after a won claim.
func (s *IngestService) completeClaim(ctx context.Context, matchID string, detail *riot.MatchResponse, linked []domain.Participant, result *domain.SweepResult) error {
	gameStart := time.UnixMilli(detail.Info.GameCreation)
	rec := &domain.MatchRecord{
		MatchID:      matchID,
		GameStart:    gameStart,
		GameDuration: time.Duration(detail.Info.GameDuration) * time.Second,
		QueueID:      detail.Info.QueueID,
		GameMode:     detail.Info.GameMode,
		Participants: linked,
	}

	solo := len(linked) < constants.MinLinkedParticipants
	rec.SoloGame = solo

	if !solo {
		// Damage shares are relative to the full in-game team, not just
		// the linked subset. Matters when friends end up on opposite
		// sides.
		teams := scoring.Aggregate(allParticipants(detail))
		for i := range rec.Participants {
			p := &rec.Participants[i]
			p.MvpScore = scoring.MvpScore(*p, teams[p.TeamID])
		}
		if idx := scoring.SelectMVP(rec.Participants, teams); idx >= 0 {
			rec.MvpPuuid = rec.Participants[idx].Puuid
		}
		if idx := scoring.SelectFeeder(rec.Participants); idx >= 0 {
			rec.FeederPuuid = rec.Participants[idx].Puuid
		}
	}

	if err := s.matches.MarkProcessed(ctx, rec); err != nil {
		return fmt.Errorf("persist match: %w", err)
	}

	week := repository.WeekKey(gameStart)
	for _, p := range rec.Participants {
		if err := s.leaderboard.AddGame(ctx, p.DiscordID, week, p); err != nil {
			s.logger.Warn().Err(err).Str("discord_id", p.DiscordID).Msg("failed to update leaderboard")
		}
	}

	if solo {
		s.metrics.MatchesProcessed.WithLabelValues("solo").Inc()
		result.SkippedNotEnoughPlayers++
		result.NewMatches = append(result.NewMatches, matchID)
		return nil
	}

	analysis := s.buildAnalysis(rec)
	analysis.TrashTalks = s.narrator.Narrate(ctx, analysis)

	// MVP keeps the crown for a day; the grant sweep takes it back.
	if rec.MvpPuuid != "" {
		for _, p := range rec.Participants {
			if p.Puuid == rec.MvpPuuid {
				if _, err := s.grants.Create(ctx, p.DiscordID, domain.CapabilityMVP, time.Now().Add(24*time.Hour)); err != nil {
					s.logger.Warn().Err(err).Msg("failed to create mvp grant")
				}
			}
		}
	}

	s.notifier.NotifyAnalysis(ctx, analysis)

	settlements, err := s.settlement.SettleMatch(ctx, rec)
	if err != nil {
		// The match is terminal either way; settlement failures are
		// logged, the window timeout job is the backstop.
		s.logger.Error().Err(err).Str("match_id", matchID).Msg("settlement failed")
	}
	for i := range settlements {
		s.notifier.NotifySettlement(ctx, &settlements[i])
	}

	s.metrics.MatchesProcessed.WithLabelValues("full").Inc()
	result.NewMatches = append(result.NewMatches, matchID)
	return nil
}

func (s *IngestService) buildAnalysis(rec *domain.MatchRecord) *domain.MatchAnalysis {
	analysis := &domain.MatchAnalysis{
		MatchID:      rec.MatchID,
		GameStart:    rec.GameStart,
		GameDuration: rec.GameDuration,
		QueueID:      rec.QueueID,
		SoloGame:     rec.SoloGame,
		Participants: rec.Participants,
	}
	for i := range rec.Participants {
		if rec.Participants[i].Puuid == rec.MvpPuuid {
			analysis.MVP = &rec.Participants[i]
		}
		if rec.Participants[i].Puuid == rec.FeederPuuid {
			analysis.Feeder = &rec.Participants[i]
		}
	}
	return analysis
}

func (s *IngestService) recordError(result *domain.SweepResult, matchID string, err error) {
	s.logger.Warn().Err(err).Str("match_id", matchID).Msg("match processing error")
	s.metrics.SweepErrors.Inc()
	result.Errors = append(result.Errors, domain.SweepError{MatchID: matchID, Err: err})
}

// resolveLinked intersects match participants with linked accounts via the
// prefetched puuid map: one batch read, O(1) per participant.
func resolveLinked(detail *riot.MatchResponse, byPuuid map[string]domain.LinkedAccount) []domain.Participant {
	var linked []domain.Participant
	for _, mp := range detail.Info.Participants {
		account, ok := byPuuid[mp.Puuid]
		if !ok {
			continue
		}
		linked = append(linked, domain.Participant{
			MatchID:     detail.Metadata.MatchID,
			Puuid:       mp.Puuid,
			DiscordID:   account.DiscordID,
			Champion:    mp.ChampionName,
			Kills:       mp.Kills,
			Deaths:      mp.Deaths,
			Assists:     mp.Assists,
			DamageDealt: mp.TotalDamageDealtToChampions,
			DamageTaken: mp.TotalDamageTaken,
			Gold:        mp.GoldEarned,
			VisionScore: mp.VisionScore,
			Win:         mp.Win,
			TeamID:      mp.TeamID,
		})
	}
	return linked
}

// allParticipants converts the full lobby for team aggregation.
func allParticipants(detail *riot.MatchResponse) []domain.Participant {
	all := make([]domain.Participant, 0, len(detail.Info.Participants))
	for _, mp := range detail.Info.Participants {
		all = append(all, domain.Participant{
			Puuid:       mp.Puuid,
			DamageDealt: mp.TotalDamageDealtToChampions,
			DamageTaken: mp.TotalDamageTaken,
			TeamID:      mp.TeamID,
		})
	}
	return all
}
