package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"riftbot/internal/domain"

	"github.com/rs/zerolog"
)

type MatchRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewMatchRepository(sqlDB *sql.DB, logger zerolog.Logger) *MatchRepository {
	return &MatchRepository{db: sqlDB, logger: logger}
}

// ClaimState is the dedup view of one match id: absent, claimed (processing,
// no participants yet) or terminal (participants persisted).
type ClaimState struct {
	Exists    bool
	Terminal  bool
	ClaimedAt time.Time
}

func (r *MatchRepository) GetClaimState(ctx context.Context, matchID string) (ClaimState, error) {
	var state ClaimState
	var processing bool
	err := r.db.QueryRowContext(ctx, `
		SELECT processing, claimed_at,
		       EXISTS (SELECT 1 FROM match_participants mp WHERE mp.match_id = m.match_id)
		FROM matches m WHERE match_id = ?`, matchID,
	).Scan(&processing, &state.ClaimedAt, &state.Terminal)
	if err == sql.ErrNoRows {
		return ClaimState{}, nil
	}
	if err != nil {
		return ClaimState{}, fmt.Errorf("failed to read claim state: %w", err)
	}
	state.Exists = true
	return state, nil
}

// TryClaim is the mutual-exclusion primitive: a single insert that succeeds
// only when no row exists for this match id. RowsAffected zero means another
// worker already owns the match.
func (r *MatchRepository) TryClaim(ctx context.Context, matchID string, now time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO matches (match_id, processing, claimed_at, created_at, updated_at)
		VALUES (?, TRUE, ?, ?, ?)
		ON CONFLICT (match_id) DO NOTHING`,
		matchID, now, now, now,
	)
	if err != nil {
		return false, fmt.Errorf("failed to claim match %s: %w", matchID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ReleaseClaim deletes a non-terminal claim so a future sweep can retry the
// match. Terminal rows are never deleted through this path.
func (r *MatchRepository) ReleaseClaim(ctx context.Context, matchID string) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM matches
		WHERE match_id = ? AND processing = TRUE
		  AND NOT EXISTS (SELECT 1 FROM match_participants mp WHERE mp.match_id = matches.match_id)`,
		matchID,
	)
	if err != nil {
		return fmt.Errorf("failed to release claim on %s: %w", matchID, err)
	}
	return nil
}

// DeleteStaleClaims recovers matches abandoned by a crashed worker: claims
// still processing past the staleness cutoff with no participants.
func (r *MatchRepository) DeleteStaleClaims(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM matches
		WHERE processing = TRUE AND claimed_at < ?
		  AND NOT EXISTS (SELECT 1 FROM match_participants mp WHERE mp.match_id = matches.match_id)`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale claims: %w", err)
	}
	return res.RowsAffected()
}

// MarkProcessed performs the single mutation from claimed to terminal: fills
// the match row, clears the processing flag and writes the participant list,
// all in one transaction.
func (r *MatchRepository) MarkProcessed(ctx context.Context, rec *domain.MatchRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	res, err := tx.ExecContext(ctx, `
		UPDATE matches
		SET processing = FALSE, game_start = ?, game_duration = ?, queue_id = ?,
		    game_mode = ?, solo_game = ?, mvp_puuid = ?, feeder_puuid = ?,
		    processed_at = ?, updated_at = ?
		WHERE match_id = ? AND processing = TRUE`,
		rec.GameStart, int64(rec.GameDuration/time.Second), rec.QueueID,
		rec.GameMode, rec.SoloGame, rec.MvpPuuid, rec.FeederPuuid,
		now, now, rec.MatchID,
	)
	if err != nil {
		return fmt.Errorf("failed to finalize match %s: %w", rec.MatchID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("match %s has no live claim to finalize", rec.MatchID)
	}

	for _, p := range rec.Participants {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO match_participants
				(match_id, puuid, discord_id, champion, kills, deaths, assists,
				 damage_dealt, damage_taken, gold, vision_score, win, team_id, mvp_score)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.MatchID, p.Puuid, p.DiscordID, p.Champion, p.Kills, p.Deaths,
			p.Assists, p.DamageDealt, p.DamageTaken, p.Gold, p.VisionScore,
			p.Win, p.TeamID, p.MvpScore,
		)
		if err != nil {
			return fmt.Errorf("failed to insert participant %s/%s: %w", rec.MatchID, p.Puuid, err)
		}
	}

	return tx.Commit()
}

// RecentStatsFor returns the account's stats from its latest processed
// matches, newest first. Feeds the odds quote.
func (r *MatchRepository) RecentStatsFor(ctx context.Context, discordID string, limit int) ([]domain.Participant, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT mp.match_id, mp.puuid, mp.discord_id, mp.champion, mp.kills, mp.deaths,
		       mp.assists, mp.damage_dealt, mp.damage_taken, mp.gold, mp.vision_score,
		       mp.win, mp.team_id, mp.mvp_score
		FROM match_participants mp
		JOIN matches m ON m.match_id = mp.match_id
		WHERE mp.discord_id = ? AND m.processing = FALSE
		ORDER BY m.game_start DESC
		LIMIT ?`, discordID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []domain.Participant
	for rows.Next() {
		var p domain.Participant
		if err := rows.Scan(
			&p.MatchID, &p.Puuid, &p.DiscordID, &p.Champion, &p.Kills, &p.Deaths,
			&p.Assists, &p.DamageDealt, &p.DamageTaken, &p.Gold, &p.VisionScore,
			&p.Win, &p.TeamID, &p.MvpScore,
		); err != nil {
			return nil, err
		}
		stats = append(stats, p)
	}
	return stats, rows.Err()
}

func (r *MatchRepository) Get(ctx context.Context, matchID string) (*domain.MatchRecord, error) {
	var rec domain.MatchRecord
	var gameStart, processedAt sql.NullTime
	var durationSecs int64
	err := r.db.QueryRowContext(ctx, `
		SELECT match_id, processing, claimed_at, game_start, game_duration, queue_id,
		       game_mode, solo_game, mvp_puuid, feeder_puuid, processed_at, created_at, updated_at
		FROM matches WHERE match_id = ?`, matchID,
	).Scan(
		&rec.MatchID, &rec.Processing, &rec.ClaimedAt, &gameStart, &durationSecs,
		&rec.QueueID, &rec.GameMode, &rec.SoloGame, &rec.MvpPuuid, &rec.FeederPuuid,
		&processedAt, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get match %s: %w", matchID, err)
	}
	if gameStart.Valid {
		rec.GameStart = gameStart.Time
	}
	if processedAt.Valid {
		rec.ProcessedAt = processedAt.Time
	}
	rec.GameDuration = time.Duration(durationSecs) * time.Second

	rows, err := r.db.QueryContext(ctx, `
		SELECT match_id, puuid, discord_id, champion, kills, deaths, assists,
		       damage_dealt, damage_taken, gold, vision_score, win, team_id, mvp_score
		FROM match_participants WHERE match_id = ?`, matchID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var p domain.Participant
		if err := rows.Scan(
			&p.MatchID, &p.Puuid, &p.DiscordID, &p.Champion, &p.Kills, &p.Deaths,
			&p.Assists, &p.DamageDealt, &p.DamageTaken, &p.Gold, &p.VisionScore,
			&p.Win, &p.TeamID, &p.MvpScore,
		); err != nil {
			return nil, err
		}
		rec.Participants = append(rec.Participants, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &rec, nil
}
