package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"riftbot/internal/domain"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

var (
	ErrNoOpenWindow     = errors.New("no open bet window for target")
	ErrWindowConflict   = errors.New("target already has an active bet window")
	ErrWindowTransition = errors.New("window is not in the expected status")
)

type BetRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewBetRepository(sqlDB *sql.DB, logger zerolog.Logger) *BetRepository {
	return &BetRepository{db: sqlDB, logger: logger}
}

// CreateWindow opens a new window unless the target already has an active
// (open, or closed-but-unresolved) one.
func (r *BetRepository) CreateWindow(ctx context.Context, targetID string, openedAt time.Time) (*domain.BetWindow, error) {
	active, err := r.ActiveWindowForTarget(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return nil, ErrWindowConflict
	}

	id, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("failed to generate window id: %w", err)
	}
	now := time.Now()
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO bet_windows (id, target_id, status, opened_at, created_at, updated_at)
		VALUES (?, ?, 'open', ?, ?, ?)`,
		id, targetID, openedAt, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create bet window: %w", err)
	}
	return &domain.BetWindow{ID: id, TargetID: targetID, Status: domain.WindowOpen, OpenedAt: openedAt}, nil
}

// ActiveWindowForTarget returns the open or closed-but-unmatched window, the
// at most one active window per target is enforced here.
func (r *BetRepository) ActiveWindowForTarget(ctx context.Context, targetID string) (*domain.BetWindow, error) {
	row := r.db.QueryRowContext(ctx, selectWindow+`
		WHERE target_id = ? AND (status = 'open' OR (status = 'closed' AND match_id = ''))
		ORDER BY opened_at DESC LIMIT 1`, targetID)
	w, err := scanWindow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return w, err
}

// OpenWindowForTarget returns the window currently accepting bets.
func (r *BetRepository) OpenWindowForTarget(ctx context.Context, targetID string) (*domain.BetWindow, error) {
	row := r.db.QueryRowContext(ctx, selectWindow+`
		WHERE target_id = ? AND status = 'open'
		ORDER BY opened_at DESC LIMIT 1`, targetID)
	w, err := scanWindow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return w, err
}

// LatestUnresolvedClosedWindow is what the settlement correlator binds a
// fresh match against.
func (r *BetRepository) LatestUnresolvedClosedWindow(ctx context.Context, targetID string) (*domain.BetWindow, error) {
	row := r.db.QueryRowContext(ctx, selectWindow+`
		WHERE target_id = ? AND status = 'closed' AND match_id = ''
		ORDER BY opened_at DESC LIMIT 1`, targetID)
	w, err := scanWindow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return w, err
}

// ListWindowsToClose returns open windows whose countdown has lapsed.
func (r *BetRepository) ListWindowsToClose(ctx context.Context, openedBefore time.Time) ([]domain.BetWindow, error) {
	rows, err := r.db.QueryContext(ctx, selectWindow+`
		WHERE status = 'open' AND opened_at <= ?`, openedBefore)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanWindows(rows)
}

// ListCancellableWindows returns closed, unmatched windows past the total
// wait deadline.
func (r *BetRepository) ListCancellableWindows(ctx context.Context, closedBefore time.Time) ([]domain.BetWindow, error) {
	rows, err := r.db.QueryContext(ctx, selectWindow+`
		WHERE status = 'closed' AND match_id = '' AND closed_at <= ?`, closedBefore)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanWindows(rows)
}

func (r *BetRepository) CloseWindow(ctx context.Context, windowID string, closedAt time.Time) error {
	return r.transition(ctx, `
		UPDATE bet_windows SET status = 'closed', closed_at = ?, updated_at = ?
		WHERE id = ? AND status = 'open'`, closedAt, time.Now(), windowID)
}

func (r *BetRepository) BindWindowToMatch(ctx context.Context, windowID, matchID string) error {
	return r.transition(ctx, `
		UPDATE bet_windows SET status = 'matched', match_id = ?, updated_at = ?
		WHERE id = ? AND status = 'closed' AND match_id = ''`, matchID, time.Now(), windowID)
}

func (r *BetRepository) CancelWindow(ctx context.Context, windowID string) error {
	return r.transition(ctx, `
		UPDATE bet_windows SET status = 'cancelled', updated_at = ?
		WHERE id = ? AND status = 'closed' AND match_id = ''`, time.Now(), windowID)
}

func (r *BetRepository) transition(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to transition window: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrWindowTransition
	}
	return nil
}

func (r *BetRepository) CreateBet(ctx context.Context, bet *domain.Bet) error {
	id, err := gonanoid.New()
	if err != nil {
		return fmt.Errorf("failed to generate bet id: %w", err)
	}
	bet.ID = id
	bet.Result = domain.BetPending
	now := time.Now()
	bet.CreatedAt = now

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO bets (id, bettor_id, target_id, kind, amount, odds, result, opened_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, 'pending', ?, ?)`,
		bet.ID, bet.BettorID, bet.TargetID, string(bet.Kind), bet.Amount, bet.Odds,
		bet.OpenedAt, now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert bet: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE bet_windows SET bet_count = bet_count + 1, total_staked = total_staked + ?, updated_at = ?
		WHERE target_id = ? AND opened_at = ?`,
		bet.Amount, now, bet.TargetID, bet.OpenedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update window aggregates: %w", err)
	}

	return tx.Commit()
}

// PendingBetsForWindow selects by the (opened_at, target_id) correlation
// pair, the same key settlement uses.
func (r *BetRepository) PendingBetsForWindow(ctx context.Context, targetID string, openedAt time.Time) ([]domain.Bet, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, bettor_id, target_id, kind, amount, odds, result, payout, opened_at, created_at
		FROM bets
		WHERE target_id = ? AND opened_at = ? AND result = 'pending'`,
		targetID, openedAt,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bets []domain.Bet
	for rows.Next() {
		var b domain.Bet
		var kind, result string
		if err := rows.Scan(&b.ID, &b.BettorID, &b.TargetID, &kind, &b.Amount,
			&b.Odds, &result, &b.Payout, &b.OpenedAt, &b.CreatedAt); err != nil {
			return nil, err
		}
		b.Kind = domain.BetKind(kind)
		b.Result = domain.BetResult(result)
		bets = append(bets, b)
	}
	return bets, rows.Err()
}

func (r *BetRepository) SettleBet(ctx context.Context, betID string, result domain.BetResult, payout int64, settledAt time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE bets SET result = ?, payout = ?, settled_at = ?
		WHERE id = ? AND result = 'pending'`,
		string(result), payout, settledAt, betID,
	)
	if err != nil {
		return fmt.Errorf("failed to settle bet %s: %w", betID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("bet %s is not pending", betID)
	}
	return nil
}

const selectWindow = `
	SELECT id, target_id, status, opened_at, closed_at, match_id, bet_count, total_staked, created_at, updated_at
	FROM bet_windows`

func scanWindow(row rowScanner) (*domain.BetWindow, error) {
	var w domain.BetWindow
	var status string
	var closedAt sql.NullTime
	err := row.Scan(&w.ID, &w.TargetID, &status, &w.OpenedAt, &closedAt,
		&w.MatchID, &w.BetCount, &w.TotalStaked, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}
	w.Status = domain.WindowStatus(status)
	if closedAt.Valid {
		w.ClosedAt = closedAt.Time
	}
	return &w, nil
}

func scanWindows(rows *sql.Rows) ([]domain.BetWindow, error) {
	var windows []domain.BetWindow
	for rows.Next() {
		w, err := scanWindow(rows)
		if err != nil {
			return nil, err
		}
		windows = append(windows, *w)
	}
	return windows, rows.Err()
}
