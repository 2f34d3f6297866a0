package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"riftbot/internal/domain"

	sqlite3 "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

var (
	ErrAlreadyLinked       = errors.New("identity already linked")
	ErrAccountNotFound     = errors.New("account not linked")
	ErrInsufficientBalance = errors.New("insufficient balance")
)

type AccountRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewAccountRepository(sqlDB *sql.DB, logger zerolog.Logger) *AccountRepository {
	return &AccountRepository{db: sqlDB, logger: logger}
}

// Link creates the account row. The unique keys on discord_id and puuid are
// the duplicate-link guard; a constraint violation surfaces as
// ErrAlreadyLinked.
func (r *AccountRepository) Link(ctx context.Context, account *domain.LinkedAccount) error {
	now := time.Now()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO accounts (discord_id, puuid, game_name, tag_line, region, balance, linked_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		account.DiscordID, account.Puuid, account.GameName, account.TagLine,
		account.Region, account.Balance, now, now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyLinked
		}
		return fmt.Errorf("failed to insert account: %w", err)
	}
	return nil
}

// Unlink soft-removes so bet and match history keeps resolving.
func (r *AccountRepository) Unlink(ctx context.Context, discordID string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE accounts SET unlinked = TRUE, updated_at = ? WHERE discord_id = ? AND unlinked = FALSE`,
		time.Now(), discordID,
	)
	if err != nil {
		return fmt.Errorf("failed to unlink account: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (r *AccountRepository) GetByDiscordID(ctx context.Context, discordID string) (*domain.LinkedAccount, error) {
	row := r.db.QueryRowContext(ctx, selectAccount+` WHERE discord_id = ? AND unlinked = FALSE`, discordID)
	return scanAccount(row)
}

func (r *AccountRepository) GetByPuuid(ctx context.Context, puuid string) (*domain.LinkedAccount, error) {
	row := r.db.QueryRowContext(ctx, selectAccount+` WHERE puuid = ? AND unlinked = FALSE`, puuid)
	return scanAccount(row)
}

func (r *AccountRepository) ListActive(ctx context.Context) ([]domain.LinkedAccount, error) {
	rows, err := r.db.QueryContext(ctx, selectAccount+` WHERE unlinked = FALSE ORDER BY linked_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAccounts(rows)
}

// MapByPuuid is the batch lookup the pipeline intersects match participants
// against: one query, O(1) map hits per participant afterwards.
func (r *AccountRepository) MapByPuuid(ctx context.Context) (map[string]domain.LinkedAccount, error) {
	accounts, err := r.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	byPuuid := make(map[string]domain.LinkedAccount, len(accounts))
	for _, a := range accounts {
		byPuuid[a.Puuid] = a
	}
	return byPuuid, nil
}

// Debit subtracts in a single guarded statement. The balance check and the
// write are one UPDATE, so racing placements cannot drive the stored balance
// below zero even when both passed a read-side check.
func (r *AccountRepository) Debit(ctx context.Context, discordID string, amount int64) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE accounts SET balance = balance - ?, updated_at = ?
		WHERE discord_id = ? AND unlinked = FALSE AND balance >= ?`,
		amount, time.Now(), discordID, amount,
	)
	if err != nil {
		return fmt.Errorf("failed to debit balance: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrInsufficientBalance
	}
	return nil
}

func (r *AccountRepository) Credit(ctx context.Context, discordID string, amount int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE accounts SET balance = balance + ?, updated_at = ? WHERE discord_id = ?`,
		amount, time.Now(), discordID,
	)
	if err != nil {
		return fmt.Errorf("failed to credit balance: %w", err)
	}
	return nil
}

// Penalize may take the balance negative; penalties are the one sanctioned
// way below zero.
func (r *AccountRepository) Penalize(ctx context.Context, discordID string, amount int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE accounts SET balance = balance - ?, updated_at = ? WHERE discord_id = ?`,
		amount, time.Now(), discordID,
	)
	if err != nil {
		return fmt.Errorf("failed to apply penalty: %w", err)
	}
	return nil
}

func (r *AccountRepository) UpdateRank(ctx context.Context, discordID string, rank domain.Rank, syncedAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE accounts SET tier = ?, division = ?, league_points = ?, last_rank_sync_at = ?, updated_at = ?
		WHERE discord_id = ?`,
		rank.Tier, rank.Division, rank.LeaguePoints, syncedAt, time.Now(), discordID,
	)
	if err != nil {
		return fmt.Errorf("failed to update rank: %w", err)
	}
	return nil
}

const selectAccount = `
	SELECT discord_id, puuid, game_name, tag_line, region, balance, tier, division,
	       league_points, last_rank_sync_at, linked_at, unlinked, created_at, updated_at
	FROM accounts`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*domain.LinkedAccount, error) {
	var a domain.LinkedAccount
	var lastSync sql.NullTime
	err := row.Scan(
		&a.DiscordID, &a.Puuid, &a.GameName, &a.TagLine, &a.Region, &a.Balance,
		&a.Tier, &a.Division, &a.LeaguePoints, &lastSync, &a.LinkedAt,
		&a.Unlinked, &a.CreatedAt, &a.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	if lastSync.Valid {
		a.LastRankSyncAt = lastSync.Time
	}
	return &a, nil
}

func scanAccounts(rows *sql.Rows) ([]domain.LinkedAccount, error) {
	var accounts []domain.LinkedAccount
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *a)
	}
	return accounts, rows.Err()
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
