package repository

import (
	"context"
	"fmt"

	"github.com/edumarket/grouplessons/internal/model"
	"github.com/edumarket/grouplessons/internal/repository/base"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ParticipantRepository struct {
	*base.Repository
}

func NewParticipantRepository(pool *pgxpool.Pool) *ParticipantRepository {
	return &ParticipantRepository{Repository: base.NewRepository(pool)}
}

const participantColumns = `
	id, lesson_id, student_id, role, status, price_paid_cents, commission_cents,
	canceled_by, refund_percent, refunded_cents, canceled_at, progress_advanced_at,
	created_at, updated_at
`

func scanParticipant(row pgx.Row) (*model.Participant, error) {
	var p model.Participant
	err := row.Scan(
		&p.ID,
		&p.LessonID,
		&p.StudentID,
		&p.Role,
		&p.Status,
		&p.PricePaidCents,
		&p.CommissionCents,
		&p.CanceledBy,
		&p.RefundPercent,
		&p.RefundedCents,
		&p.CanceledAt,
		&p.ProgressAdvancedAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Create создаёт запись участника
func (r *ParticipantRepository) Create(ctx context.Context, p *model.Participant) error {
	query := `
		INSERT INTO participants (lesson_id, student_id, role, status, price_paid_cents, commission_cents)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`

	err := r.DB(ctx).QueryRow(
		ctx, query,
		p.LessonID,
		p.StudentID,
		p.Role,
		p.Status,
		p.PricePaidCents,
		p.CommissionCents,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)

	if err != nil {
		return fmt.Errorf("create participant: %w", err)
	}

	return nil
}

// GetActiveByLessonAndStudent получает активное участие студента в занятии
func (r *ParticipantRepository) GetActiveByLessonAndStudent(ctx context.Context, lessonID, studentID int64) (*model.Participant, error) {
	query := `SELECT ` + participantColumns + `
		FROM participants
		WHERE lesson_id = $1 AND student_id = $2 AND status = $3
	`

	p, err := scanParticipant(r.DB(ctx).QueryRow(ctx, query, lessonID, studentID, model.ParticipantStatusActive))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get active participant: %w", err)
	}

	return p, nil
}

// CountActiveByLesson считает активных участников занятия
func (r *ParticipantRepository) CountActiveByLesson(ctx context.Context, lessonID int64) (int, error) {
	query := `SELECT count(*) FROM participants WHERE lesson_id = $1 AND status = $2`

	var count int
	err := r.DB(ctx).QueryRow(ctx, query, lessonID, model.ParticipantStatusActive).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count active participants: %w", err)
	}

	return count, nil
}

// ListActiveByLesson получает активных участников занятия
func (r *ParticipantRepository) ListActiveByLesson(ctx context.Context, lessonID int64) ([]*model.Participant, error) {
	query := `SELECT ` + participantColumns + `
		FROM participants
		WHERE lesson_id = $1 AND status = $2
		ORDER BY created_at ASC
	`

	rows, err := r.DB(ctx).Query(ctx, query, lessonID, model.ParticipantStatusActive)
	if err != nil {
		return nil, fmt.Errorf("list active participants: %w", err)
	}
	defer rows.Close()

	var participants []*model.Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		participants = append(participants, p)
	}

	return participants, rows.Err()
}

// Cancel помечает участие отменённым с метаданными возврата.
// Запись не удаляется - финансовый аудит.
func (r *ParticipantRepository) Cancel(ctx context.Context, id int64, canceledBy model.CanceledBy, refundPercent int, refundedCents int64) error {
	query := `
		UPDATE participants
		SET status = $1, canceled_by = $2, refund_percent = $3, refunded_cents = $4,
			canceled_at = now(), updated_at = now()
		WHERE id = $5 AND status = $6
	`

	result, err := r.DB(ctx).Exec(ctx, query,
		model.ParticipantStatusCanceled, canceledBy, refundPercent, refundedCents,
		id, model.ParticipantStatusActive)
	if err != nil {
		return fmt.Errorf("cancel participant: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("participant not found or already canceled")
	}

	return nil
}

// UpdatePricePaid обновляет фактически уплаченную цену участника
func (r *ParticipantRepository) UpdatePricePaid(ctx context.Context, id int64, priceCents, commissionCents int64) error {
	query := `
		UPDATE participants
		SET price_paid_cents = $1, commission_cents = $2, updated_at = now()
		WHERE id = $3
	`

	result, err := r.DB(ctx).Exec(ctx, query, priceCents, commissionCents, id)
	if err != nil {
		return fmt.Errorf("update participant price: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("participant not found")
	}

	return nil
}

// MarkProgressAdvanced отмечает что прогресс по занятию засчитан.
// Возвращает false если прогресс уже был засчитан ранее.
func (r *ParticipantRepository) MarkProgressAdvanced(ctx context.Context, id int64) (bool, error) {
	query := `
		UPDATE participants
		SET progress_advanced_at = now(), updated_at = now()
		WHERE id = $1 AND progress_advanced_at IS NULL
	`

	result, err := r.DB(ctx).Exec(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("mark progress advanced: %w", err)
	}

	return result.RowsAffected() > 0, nil
}
