package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"riftbot/internal/constants"
	"riftbot/internal/domain"
	"riftbot/internal/metrics"
	"riftbot/internal/repository"
	"riftbot/internal/scoring"

	"github.com/rs/zerolog"
)

// SettlementService correlates terminal matches with bet windows and pays
// out. Correlation anchors on game-start time: processing can lag
// arbitrarily and games run long, so "when did the game actually begin" is
// the only timestamp that answers "was this the game the bettor meant".
type SettlementService struct {
	accounts *repository.AccountRepository
	bets     *repository.BetRepository
	metrics  *metrics.PipelineMetrics
	logger   zerolog.Logger
}

func NewSettlementService(
	accounts *repository.AccountRepository,
	bets *repository.BetRepository,
	m *metrics.PipelineMetrics,
	logger zerolog.Logger,
) *SettlementService {
	return &SettlementService{
		accounts: accounts,
		bets:     bets,
		metrics:  m,
		logger:   logger.With().Str("component", "settlement").Logger(),
	}
}

// SettleMatch checks every linked participant of a newly terminal match for
// a closed, unresolved window inside the start-time bound, and settles the
// bound windows' bets.
func (s *SettlementService) SettleMatch(ctx context.Context, rec *domain.MatchRecord) ([]domain.SettlementResult, error) {
	if rec.SoloGame {
		return nil, nil
	}

	var results []domain.SettlementResult
	for i := range rec.Participants {
		p := &rec.Participants[i]
		window, err := s.bets.LatestUnresolvedClosedWindow(ctx, p.DiscordID)
		if err != nil {
			return results, fmt.Errorf("lookup window for %s: %w", p.DiscordID, err)
		}
		if window == nil {
			continue
		}

		elapsed := rec.GameStart.Sub(window.OpenedAt)
		if elapsed < 0 {
			// match predates the window; keep waiting for a later game
			s.logger.Debug().
				Str("window_id", window.ID).
				Str("match_id", rec.MatchID).
				Msg("match started before window opened, skipping")
			continue
		}
		if elapsed > constants.MaxGameStartWindow {
			continue
		}

		if err := s.bets.BindWindowToMatch(ctx, window.ID, rec.MatchID); err != nil {
			if errors.Is(err, repository.ErrWindowTransition) {
				// another instance already bound or cancelled it
				continue
			}
			return results, err
		}

		result, err := s.settleWindow(ctx, window, rec, p)
		if err != nil {
			return results, err
		}
		results = append(results, *result)
	}
	return results, nil
}

// settleWindow resolves every pending bet on the window against this one
// participant's outcome. The stake was debited at placement; losses cost
// nothing further.
func (s *SettlementService) settleWindow(ctx context.Context, window *domain.BetWindow, rec *domain.MatchRecord, p *domain.Participant) (*domain.SettlementResult, error) {
	outcome := scoring.Outcome{
		Win:          p.Win,
		Kills:        p.Kills,
		Deaths:       p.Deaths,
		Assists:      p.Assists,
		GameDuration: rec.GameDuration,
	}

	pending, err := s.bets.PendingBetsForWindow(ctx, window.TargetID, window.OpenedAt)
	if err != nil {
		return nil, fmt.Errorf("load pending bets: %w", err)
	}

	result := &domain.SettlementResult{
		MatchID:  rec.MatchID,
		WindowID: window.ID,
		TargetID: window.TargetID,
	}
	now := time.Now()

	for _, bet := range pending {
		if scoring.EvaluateBet(bet.Kind, outcome) {
			payout := scoring.Payout(bet.Amount, bet.Odds)
			if err := s.bets.SettleBet(ctx, bet.ID, domain.BetWon, payout, now); err != nil {
				s.logger.Error().Err(err).Str("bet_id", bet.ID).Msg("failed to mark bet won")
				continue
			}
			if err := s.accounts.Credit(ctx, bet.BettorID, payout); err != nil {
				s.logger.Error().Err(err).Str("bet_id", bet.ID).Msg("failed to credit payout")
			}
			s.metrics.BetsSettled.WithLabelValues("won").Inc()
			s.metrics.PayoutTotal.Add(float64(payout))
			result.Winners = append(result.Winners, domain.SettledBet{Bet: bet, Payout: payout})
		} else {
			if err := s.bets.SettleBet(ctx, bet.ID, domain.BetLost, 0, now); err != nil {
				s.logger.Error().Err(err).Str("bet_id", bet.ID).Msg("failed to mark bet lost")
				continue
			}
			s.metrics.BetsSettled.WithLabelValues("lost").Inc()
			result.Losers = append(result.Losers, domain.SettledBet{Bet: bet})
		}
	}

	s.logger.Info().
		Str("window_id", window.ID).
		Str("match_id", rec.MatchID).
		Int("winners", len(result.Winners)).
		Int("losers", len(result.Losers)).
		Msg("window settled")
	return result, nil
}

// ExpireWindows runs the two timeout transitions: open windows past their
// countdown close, and closed windows past the total wait are cancelled with
// refunds and an opener penalty.
func (s *SettlementService) ExpireWindows(ctx context.Context, notifier Notifier) error {
	now := time.Now()

	toClose, err := s.bets.ListWindowsToClose(ctx, now.Add(-constants.BetWindowCountdown))
	if err != nil {
		return fmt.Errorf("list windows to close: %w", err)
	}
	for _, w := range toClose {
		if err := s.bets.CloseWindow(ctx, w.ID, now); err != nil && !errors.Is(err, repository.ErrWindowTransition) {
			s.logger.Error().Err(err).Str("window_id", w.ID).Msg("failed to close window")
		}
	}

	toCancel, err := s.bets.ListCancellableWindows(ctx, now.Add(-constants.MaxMatchWait))
	if err != nil {
		return fmt.Errorf("list cancellable windows: %w", err)
	}
	for _, w := range toCancel {
		refunded, err := s.cancelWindow(ctx, &w)
		if err != nil {
			s.logger.Error().Err(err).Str("window_id", w.ID).Msg("failed to cancel window")
			continue
		}
		s.metrics.WindowsCancelled.Inc()
		notifier.NotifyCancellation(ctx, &w, refunded)
	}
	return nil
}

// cancelWindow refunds every pending stake in full and charges the opener
// the fixed penalty: bets wash out, the penalty is the only net currency
// change.
func (s *SettlementService) cancelWindow(ctx context.Context, window *domain.BetWindow) (int, error) {
	if err := s.bets.CancelWindow(ctx, window.ID); err != nil {
		if errors.Is(err, repository.ErrWindowTransition) {
			return 0, nil
		}
		return 0, err
	}

	pending, err := s.bets.PendingBetsForWindow(ctx, window.TargetID, window.OpenedAt)
	if err != nil {
		return 0, fmt.Errorf("load pending bets: %w", err)
	}

	now := time.Now()
	refunded := 0
	for _, bet := range pending {
		if err := s.bets.SettleBet(ctx, bet.ID, domain.BetCancelled, 0, now); err != nil {
			s.logger.Error().Err(err).Str("bet_id", bet.ID).Msg("failed to cancel bet")
			continue
		}
		if err := s.accounts.Credit(ctx, bet.BettorID, bet.Amount); err != nil {
			s.logger.Error().Err(err).Str("bet_id", bet.ID).Msg("failed to refund stake")
			continue
		}
		refunded++
	}

	if err := s.accounts.Penalize(ctx, window.TargetID, constants.CancelPenalty); err != nil {
		s.logger.Error().Err(err).Str("target_id", window.TargetID).Msg("failed to apply cancellation penalty")
	}

	s.logger.Info().
		Str("window_id", window.ID).
		Int("refunded", refunded).
		Msg("window cancelled for timeout")
	return refunded, nil
}
