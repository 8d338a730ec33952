package service

import (
	"context"
	"time"
)

// OverlapChecker проверка пересечения интервала с активными занятиями
// студента; реализуется репозиторием занятий.
type OverlapChecker interface {
	HasOverlapping(ctx context.Context, studentID int64, start, end time.Time) (bool, error)
}

// SchedulingAdapter реализация LessonSchedulingCollaborator поверх
// собственной базы занятий. Внешний календарь может заменить её целиком.
type SchedulingAdapter struct {
	lessons OverlapChecker
}

func NewSchedulingAdapter(lessons OverlapChecker) *SchedulingAdapter {
	return &SchedulingAdapter{lessons: lessons}
}

func (a *SchedulingAdapter) HasConflict(ctx context.Context, studentID int64, start, end time.Time) (bool, error) {
	return a.lessons.HasOverlapping(ctx, studentID, start, end)
}
