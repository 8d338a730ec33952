package repository

import (
	"context"
	"fmt"

	"github.com/edumarket/grouplessons/internal/model"
	"github.com/edumarket/grouplessons/internal/repository/base"
	"github.com/jackc/pgx/v5/pgxpool"
)

type InvitationRepository struct {
	*base.Repository
}

func NewInvitationRepository(pool *pgxpool.Pool) *InvitationRepository {
	return &InvitationRepository{Repository: base.NewRepository(pool)}
}

// Create создаёт приглашение. Одно приглашение на занятие,
// после создания не изменяется.
func (r *InvitationRepository) Create(ctx context.Context, inv *model.Invitation) error {
	query := `
		INSERT INTO invitations (lesson_id, creator_id, token, max_participants, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`

	err := r.DB(ctx).QueryRow(
		ctx, query,
		inv.LessonID,
		inv.CreatorID,
		inv.Token,
		inv.MaxParticipants,
		inv.ExpiresAt,
	).Scan(&inv.ID, &inv.CreatedAt)

	if err != nil {
		return fmt.Errorf("create invitation: %w", err)
	}

	return nil
}

// GetByToken получает приглашение по токену
func (r *InvitationRepository) GetByToken(ctx context.Context, token string) (*model.Invitation, error) {
	query := `
		SELECT id, lesson_id, creator_id, token, max_participants, expires_at, created_at
		FROM invitations
		WHERE token = $1
	`

	var inv model.Invitation
	err := r.DB(ctx).QueryRow(ctx, query, token).Scan(
		&inv.ID,
		&inv.LessonID,
		&inv.CreatorID,
		&inv.Token,
		&inv.MaxParticipants,
		&inv.ExpiresAt,
		&inv.CreatedAt,
	)

	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get invitation by token: %w", err)
	}

	return &inv, nil
}
