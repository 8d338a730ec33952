package repository

import (
	"context"
	"fmt"

	"github.com/edumarket/grouplessons/internal/model"
	"github.com/edumarket/grouplessons/internal/repository/base"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ProgressRepository struct {
	*base.Repository
}

func NewProgressRepository(pool *pgxpool.Pool) *ProgressRepository {
	return &ProgressRepository{Repository: base.NewRepository(pool)}
}

// IncrementCompleted увеличивает счётчик завершённых занятий студента
func (r *ProgressRepository) IncrementCompleted(ctx context.Context, studentID int64) error {
	query := `
		INSERT INTO student_progress (student_id, lessons_completed)
		VALUES ($1, 1)
		ON CONFLICT (student_id)
		DO UPDATE SET lessons_completed = student_progress.lessons_completed + 1, updated_at = now()
	`

	_, err := r.DB(ctx).Exec(ctx, query, studentID)
	if err != nil {
		return fmt.Errorf("increment student progress: %w", err)
	}

	return nil
}

// GetByStudentID получает прогресс студента
func (r *ProgressRepository) GetByStudentID(ctx context.Context, studentID int64) (*model.StudentProgress, error) {
	query := `
		SELECT id, student_id, lessons_completed, updated_at
		FROM student_progress
		WHERE student_id = $1
	`

	var p model.StudentProgress
	err := r.DB(ctx).QueryRow(ctx, query, studentID).Scan(
		&p.ID,
		&p.StudentID,
		&p.LessonsCompleted,
		&p.UpdatedAt,
	)

	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get student progress: %w", err)
	}

	return &p, nil
}
