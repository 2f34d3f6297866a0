package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"riftbot/internal/domain"

	"github.com/rs/zerolog"
)

type LeaderboardRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewLeaderboardRepository(sqlDB *sql.DB, logger zerolog.Logger) *LeaderboardRepository {
	return &LeaderboardRepository{db: sqlDB, logger: logger}
}

// WeekKey formats an ISO-week leaderboard key, e.g. "2026-W35".
func WeekKey(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

// AddGame folds one game's stats into the account's weekly aggregate.
// Solo games count here too; only narrative and settlement skip them.
func (r *LeaderboardRepository) AddGame(ctx context.Context, discordID string, week string, p domain.Participant) error {
	won := 0
	if p.Win {
		won = 1
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO leaderboard (discord_id, week, kills, deaths, assists, games_played, games_won, updated_at)
		VALUES (?, ?, ?, ?, ?, 1, ?, ?)
		ON CONFLICT (discord_id, week) DO UPDATE SET
			kills = kills + excluded.kills,
			deaths = deaths + excluded.deaths,
			assists = assists + excluded.assists,
			games_played = games_played + 1,
			games_won = games_won + excluded.games_won,
			updated_at = excluded.updated_at`,
		discordID, week, p.Kills, p.Deaths, p.Assists, won, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert leaderboard entry: %w", err)
	}
	return nil
}

// RecordTier keeps the best rank string observed this week. Tier ordering is
// resolved by the caller; this just overwrites.
func (r *LeaderboardRepository) RecordTier(ctx context.Context, discordID, week, tier string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO leaderboard (discord_id, week, highest_tier, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (discord_id, week) DO UPDATE SET
			highest_tier = excluded.highest_tier,
			updated_at = excluded.updated_at`,
		discordID, week, tier, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to record tier: %w", err)
	}
	return nil
}

func (r *LeaderboardRepository) TopForWeek(ctx context.Context, week string, limit int) ([]domain.LeaderboardEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT discord_id, week, kills, deaths, assists, games_played, games_won, highest_tier, updated_at
		FROM leaderboard
		WHERE week = ?
		ORDER BY games_won DESC, kills DESC
		LIMIT ?`, week, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.LeaderboardEntry
	for rows.Next() {
		var e domain.LeaderboardEntry
		if err := rows.Scan(&e.DiscordID, &e.Week, &e.Kills, &e.Deaths, &e.Assists,
			&e.GamesPlayed, &e.GamesWon, &e.HighestTier, &e.UpdatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *LeaderboardRepository) Get(ctx context.Context, discordID, week string) (*domain.LeaderboardEntry, error) {
	var e domain.LeaderboardEntry
	err := r.db.QueryRowContext(ctx, `
		SELECT discord_id, week, kills, deaths, assists, games_played, games_won, highest_tier, updated_at
		FROM leaderboard WHERE discord_id = ? AND week = ?`, discordID, week,
	).Scan(&e.DiscordID, &e.Week, &e.Kills, &e.Deaths, &e.Assists,
		&e.GamesPlayed, &e.GamesWon, &e.HighestTier, &e.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}
