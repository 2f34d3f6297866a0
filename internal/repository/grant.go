package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"riftbot/internal/domain"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

type GrantRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewGrantRepository(sqlDB *sql.DB, logger zerolog.Logger) *GrantRepository {
	return &GrantRepository{db: sqlDB, logger: logger}
}

func (r *GrantRepository) Create(ctx context.Context, subjectID, capability string, expiresAt time.Time) (*domain.ScopedGrant, error) {
	id, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("failed to generate grant id: %w", err)
	}
	grant := &domain.ScopedGrant{
		ID:         id,
		SubjectID:  subjectID,
		Capability: capability,
		ExpiresAt:  expiresAt,
		CreatedAt:  time.Now(),
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO grants (id, subject_id, capability, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		grant.ID, grant.SubjectID, grant.Capability, grant.ExpiresAt, grant.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert grant: %w", err)
	}
	return grant, nil
}

// SweepExpired marks lapsed grants revoked and returns them so the caller
// can undo the side effect (role removal). Running it twice for the same
// grant is a no-op.
func (r *GrantRepository) SweepExpired(ctx context.Context, now time.Time) ([]domain.ScopedGrant, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, subject_id, capability, expires_at, created_at
		FROM grants WHERE revoked = FALSE AND expires_at <= ?`, now,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var expired []domain.ScopedGrant
	for rows.Next() {
		var g domain.ScopedGrant
		if err := rows.Scan(&g.ID, &g.SubjectID, &g.Capability, &g.ExpiresAt, &g.CreatedAt); err != nil {
			return nil, err
		}
		expired = append(expired, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, g := range expired {
		if _, err := r.db.ExecContext(ctx, `
			UPDATE grants SET revoked = TRUE WHERE id = ? AND revoked = FALSE`, g.ID); err != nil {
			return nil, fmt.Errorf("failed to revoke grant %s: %w", g.ID, err)
		}
	}
	return expired, nil
}

func (r *GrantRepository) ActiveForSubject(ctx context.Context, subjectID, capability string) (*domain.ScopedGrant, error) {
	var g domain.ScopedGrant
	err := r.db.QueryRowContext(ctx, `
		SELECT id, subject_id, capability, expires_at, created_at
		FROM grants
		WHERE subject_id = ? AND capability = ? AND revoked = FALSE
		ORDER BY expires_at DESC LIMIT 1`, subjectID, capability,
	).Scan(&g.ID, &g.SubjectID, &g.Capability, &g.ExpiresAt, &g.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}
