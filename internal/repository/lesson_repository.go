package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/edumarket/grouplessons/internal/model"
	"github.com/edumarket/grouplessons/internal/repository/base"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type LessonRepository struct {
	*base.Repository
}

func NewLessonRepository(pool *pgxpool.Pool) *LessonRepository {
	return &LessonRepository{Repository: base.NewRepository(pool)}
}

const lessonColumns = `
	id, teacher_id, start_time, duration_minutes, price_cents,
	is_group, max_participants, group_status, status, canceled_by,
	collected_cents, commission_cents, earnings_cents, earnings_credited,
	created_at, updated_at
`

func scanLesson(row pgx.Row) (*model.Lesson, error) {
	var lesson model.Lesson
	err := row.Scan(
		&lesson.ID,
		&lesson.TeacherID,
		&lesson.StartTime,
		&lesson.DurationMinutes,
		&lesson.PriceCents,
		&lesson.IsGroup,
		&lesson.MaxParticipants,
		&lesson.GroupStatus,
		&lesson.Status,
		&lesson.CanceledBy,
		&lesson.CollectedCents,
		&lesson.CommissionCents,
		&lesson.EarningsCents,
		&lesson.EarningsCredited,
		&lesson.CreatedAt,
		&lesson.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &lesson, nil
}

// Create создаёт новое занятие
func (r *LessonRepository) Create(ctx context.Context, lesson *model.Lesson) error {
	query := `
		INSERT INTO lessons (teacher_id, start_time, duration_minutes, price_cents,
			is_group, max_participants, group_status, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, earnings_credited, created_at, updated_at
	`

	err := r.DB(ctx).QueryRow(
		ctx, query,
		lesson.TeacherID,
		lesson.StartTime,
		lesson.DurationMinutes,
		lesson.PriceCents,
		lesson.IsGroup,
		lesson.MaxParticipants,
		lesson.GroupStatus,
		lesson.Status,
	).Scan(&lesson.ID, &lesson.EarningsCredited, &lesson.CreatedAt, &lesson.UpdatedAt)

	if err != nil {
		return fmt.Errorf("create lesson: %w", err)
	}

	return nil
}

// GetByID получает занятие по ID
func (r *LessonRepository) GetByID(ctx context.Context, id int64) (*model.Lesson, error) {
	query := `SELECT ` + lessonColumns + ` FROM lessons WHERE id = $1`

	lesson, err := scanLesson(r.DB(ctx).QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get lesson by id: %w", err)
	}

	return lesson, nil
}

// GetByIDForUpdate получает занятие с блокировкой строки до конца
// транзакции. Вызывать только внутри WithinTx.
func (r *LessonRepository) GetByIDForUpdate(ctx context.Context, id int64) (*model.Lesson, error) {
	query := `SELECT ` + lessonColumns + ` FROM lessons WHERE id = $1 FOR UPDATE`

	lesson, err := scanLesson(r.DB(ctx).QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get lesson for update: %w", err)
	}

	return lesson, nil
}

// UpdateGroupStatus обновляет групповой статус занятия
func (r *LessonRepository) UpdateGroupStatus(ctx context.Context, id int64, status model.GroupStatus) error {
	query := `
		UPDATE lessons
		SET group_status = $1, updated_at = now()
		WHERE id = $2
	`

	result, err := r.DB(ctx).Exec(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("update group status: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("lesson not found")
	}

	return nil
}

// Cancel отменяет занятие целиком
func (r *LessonRepository) Cancel(ctx context.Context, id int64, canceledBy model.CanceledBy) error {
	query := `
		UPDATE lessons
		SET status = $1, group_status = $2, canceled_by = $3, updated_at = now()
		WHERE id = $4
	`

	result, err := r.DB(ctx).Exec(ctx, query,
		model.LessonStatusCanceled, model.GroupStatusCanceled, canceledBy, id)
	if err != nil {
		return fmt.Errorf("cancel lesson: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("lesson not found")
	}

	return nil
}

// ConvertToPrivate конвертирует групповое занятие в обычное
func (r *LessonRepository) ConvertToPrivate(ctx context.Context, id int64) error {
	query := `
		UPDATE lessons
		SET is_group = false, max_participants = 1, group_status = $1, updated_at = now()
		WHERE id = $2
	`

	result, err := r.DB(ctx).Exec(ctx, query, model.GroupStatusConvertedPrivate, id)
	if err != nil {
		return fmt.Errorf("convert lesson to private: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("lesson not found")
	}

	return nil
}

// StoreSettlement сохраняет итоги расчёта и ставит флаг выплаты
func (r *LessonRepository) StoreSettlement(ctx context.Context, id int64, collected, commission, earnings int64) error {
	query := `
		UPDATE lessons
		SET collected_cents = $1, commission_cents = $2, earnings_cents = $3,
			earnings_credited = true, status = $4, updated_at = now()
		WHERE id = $5
	`

	result, err := r.DB(ctx).Exec(ctx, query,
		collected, commission, earnings, model.LessonStatusCompleted, id)
	if err != nil {
		return fmt.Errorf("store settlement: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("lesson not found")
	}

	return nil
}

// ListOpenPastJoinDeadline возвращает групповые занятия, у которых
// дедлайн набора уже прошёл, а статус ещё open
func (r *LessonRepository) ListOpenPastJoinDeadline(ctx context.Context, deadlineOffset time.Duration, now time.Time) ([]*model.Lesson, error) {
	query := `SELECT ` + lessonColumns + `
		FROM lessons
		WHERE is_group = true AND group_status = $1 AND start_time <= $2
	`

	rows, err := r.DB(ctx).Query(ctx, query, model.GroupStatusOpen, now.Add(deadlineOffset))
	if err != nil {
		return nil, fmt.Errorf("list lessons past deadline: %w", err)
	}
	defer rows.Close()

	return collectLessons(rows)
}

// ListFinishedUnsettled возвращает занятия, чьё время закончилось,
// а выплата учителю ещё не проведена
func (r *LessonRepository) ListFinishedUnsettled(ctx context.Context, now time.Time) ([]*model.Lesson, error) {
	query := `SELECT ` + lessonColumns + `
		FROM lessons
		WHERE earnings_credited = false
			AND status != $1
			AND start_time + duration_minutes * interval '1 minute' <= $2
	`

	rows, err := r.DB(ctx).Query(ctx, query, model.LessonStatusCanceled, now)
	if err != nil {
		return nil, fmt.Errorf("list unsettled lessons: %w", err)
	}
	defer rows.Close()

	return collectLessons(rows)
}

// HasOverlapping проверяет пересечение интервала с активными занятиями студента
func (r *LessonRepository) HasOverlapping(ctx context.Context, studentID int64, start, end time.Time) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM lessons l
			JOIN participants p ON p.lesson_id = l.id
			WHERE p.student_id = $1
				AND p.status = $2
				AND l.status NOT IN ($3, $4)
				AND l.start_time < $5
				AND l.start_time + l.duration_minutes * interval '1 minute' > $6
		)
	`

	var exists bool
	err := r.DB(ctx).QueryRow(ctx, query,
		studentID,
		model.ParticipantStatusActive,
		model.LessonStatusCanceled,
		model.LessonStatusCompleted,
		end,
		start,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check overlapping lessons: %w", err)
	}

	return exists, nil
}

func collectLessons(rows pgx.Rows) ([]*model.Lesson, error) {
	var lessons []*model.Lesson
	for rows.Next() {
		lesson, err := scanLesson(rows)
		if err != nil {
			return nil, fmt.Errorf("scan lesson: %w", err)
		}
		lessons = append(lessons, lesson)
	}
	return lessons, rows.Err()
}
