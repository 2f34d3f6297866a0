package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"riftbot/internal/constants"
	"riftbot/internal/domain"
	"riftbot/internal/repository"
	"riftbot/internal/scoring"

	"github.com/rs/zerolog"
)

var (
	ErrSelfBet        = errors.New("cannot bet on yourself")
	ErrInvalidAmount  = errors.New("bet amount must be positive")
	ErrUnknownBetKind = errors.New("unknown bet kind")
	ErrRiotIDUnknown  = errors.New("riot id not found")
)

// BettingService owns the single-action commands: link, unlink, open a
// window, place a bet. Business-rule rejections surface as typed errors and
// leave state untouched.
type BettingService struct {
	identity IdentitySource
	accounts *repository.AccountRepository
	matches  *repository.MatchRepository
	bets     *repository.BetRepository
	logger   zerolog.Logger
}

func NewBettingService(
	identity IdentitySource,
	accounts *repository.AccountRepository,
	matches *repository.MatchRepository,
	bets *repository.BetRepository,
	logger zerolog.Logger,
) *BettingService {
	return &BettingService{
		identity: identity,
		accounts: accounts,
		matches:  matches,
		bets:     bets,
		logger:   logger.With().Str("component", "betting").Logger(),
	}
}

// Link verifies the riot id upstream and creates the account with the
// starting balance. Either identity already being linked rejects the whole
// operation.
func (s *BettingService) Link(ctx context.Context, discordID, gameName, tagLine, region string) (*domain.LinkedAccount, error) {
	riotAccount, err := s.identity.GetAccountByRiotID(ctx, gameName, tagLine)
	if err != nil {
		return nil, fmt.Errorf("verify riot id: %w", err)
	}
	if riotAccount == nil {
		return nil, ErrRiotIDUnknown
	}

	account := &domain.LinkedAccount{
		DiscordID: discordID,
		Puuid:     riotAccount.Puuid,
		GameName:  riotAccount.GameName,
		TagLine:   riotAccount.TagLine,
		Region:    region,
		Balance:   constants.StartingBalance,
	}
	if err := s.accounts.Link(ctx, account); err != nil {
		return nil, err
	}
	s.logger.Info().Str("discord_id", discordID).Str("riot_id", account.RiotID()).Msg("account linked")
	return account, nil
}

func (s *BettingService) Unlink(ctx context.Context, discordID string) error {
	return s.accounts.Unlink(ctx, discordID)
}

func (s *BettingService) Balance(ctx context.Context, discordID string) (*domain.LinkedAccount, error) {
	return s.accounts.GetByDiscordID(ctx, discordID)
}

// OpenWindow starts a betting window on the target's next match. At most
// one active window per target; duplicates reject.
func (s *BettingService) OpenWindow(ctx context.Context, targetID string) (*domain.BetWindow, error) {
	if _, err := s.accounts.GetByDiscordID(ctx, targetID); err != nil {
		return nil, err
	}
	window, err := s.bets.CreateWindow(ctx, targetID, time.Now())
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("target_id", targetID).Str("window_id", window.ID).Msg("bet window opened")
	return window, nil
}

// PlaceBet quotes odds, debits the stake and records the bet. The quoted
// odds are frozen on the bet row; later recomputes never touch it. A failed
// insert refunds the debit, so a rejected bet leaves no partial state.
func (s *BettingService) PlaceBet(ctx context.Context, bettorID, targetID string, kind domain.BetKind, amount int64) (*domain.Bet, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if bettorID == targetID {
		return nil, ErrSelfBet
	}
	if _, err := s.accounts.GetByDiscordID(ctx, bettorID); err != nil {
		return nil, err
	}

	window, err := s.bets.OpenWindowForTarget(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if window == nil {
		return nil, repository.ErrNoOpenWindow
	}

	quote, err := s.QuoteOdds(ctx, targetID)
	if err != nil {
		return nil, err
	}
	odds, ok := quote.For(kind)
	if !ok {
		return nil, ErrUnknownBetKind
	}

	if err := s.accounts.Debit(ctx, bettorID, amount); err != nil {
		return nil, err
	}

	bet := &domain.Bet{
		BettorID: bettorID,
		TargetID: targetID,
		Kind:     kind,
		Amount:   amount,
		Odds:     odds,
		OpenedAt: window.OpenedAt,
	}
	if err := s.bets.CreateBet(ctx, bet); err != nil {
		if refundErr := s.accounts.Credit(ctx, bettorID, amount); refundErr != nil {
			s.logger.Error().Err(refundErr).Str("bettor_id", bettorID).Msg("failed to refund after bet insert failure")
		}
		return nil, err
	}

	s.logger.Info().
		Str("bettor_id", bettorID).
		Str("target_id", targetID).
		Str("kind", string(kind)).
		Int64("amount", amount).
		Float64("odds", odds).
		Msg("bet placed")
	return bet, nil
}

// QuoteOdds derives the five multipliers from the target's last ten
// processed games. No history quotes the neutral defaults.
func (s *BettingService) QuoteOdds(ctx context.Context, targetID string) (*domain.OddsQuote, error) {
	recent, err := s.matches.RecentStatsFor(ctx, targetID, 10)
	if err != nil {
		return nil, fmt.Errorf("load recent stats: %w", err)
	}

	winRate, avgKDA, avgDeaths := 50.0, 2.0, 6.0
	if len(recent) > 0 {
		var wins, kills, deaths, assists int
		for _, p := range recent {
			if p.Win {
				wins++
			}
			kills += p.Kills
			deaths += p.Deaths
			assists += p.Assists
		}
		n := float64(len(recent))
		winRate = float64(wins) / n * 100
		avgKDA = scoring.KDA(kills, deaths, assists)
		avgDeaths = float64(deaths) / n
	}

	quote := scoring.BettingOdds(targetID, winRate, avgKDA, avgDeaths)
	return &quote, nil
}
