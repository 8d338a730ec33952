package model

import "time"

type LessonStatus string

const (
	LessonStatusPending   LessonStatus = "pending"   // Ожидает начала
	LessonStatusConfirmed LessonStatus = "confirmed" // Подтверждено
	LessonStatusCompleted LessonStatus = "completed" // Завершено
	LessonStatusCanceled  LessonStatus = "canceled"  // Отменено
)

type GroupStatus string

const (
	GroupStatusOpen             GroupStatus = "open"              // Есть свободные места
	GroupStatusFull             GroupStatus = "full"              // Группа заполнена
	GroupStatusDeadlinePassed   GroupStatus = "deadline_passed"   // Дедлайн набора прошёл
	GroupStatusCanceled         GroupStatus = "canceled"          // Группа отменена
	GroupStatusConvertedPrivate GroupStatus = "converted_private" // Конвертировано в обычное занятие
)

type CanceledBy string

const (
	CanceledByStudent CanceledBy = "student"
	CanceledByTeacher CanceledBy = "teacher"
	CanceledBySystem  CanceledBy = "system"
)

type Lesson struct {
	ID               int64        `json:"id"`
	TeacherID        int64        `json:"teacher_id"`
	StartTime        time.Time    `json:"start_time"`
	DurationMinutes  int          `json:"duration_minutes"`
	PriceCents       int64        `json:"price_cents"` // эталонная почасовая ставка учителя
	IsGroup          bool         `json:"is_group"`
	MaxParticipants  int          `json:"max_participants"` // 2 или 3, после конвертации 1
	GroupStatus      *GroupStatus `json:"group_status"`     // nil для обычных занятий
	Status           LessonStatus `json:"status"`
	CanceledBy       *CanceledBy  `json:"canceled_by"`
	CollectedCents   *int64       `json:"collected_cents"`  // заполняется при расчёте
	CommissionCents  *int64       `json:"commission_cents"` // заполняется при расчёте
	EarningsCents    *int64       `json:"earnings_cents"`   // заполняется при расчёте
	EarningsCredited bool         `json:"earnings_credited"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

// EndTime возвращает время окончания занятия
func (l *Lesson) EndTime() time.Time {
	return l.StartTime.Add(time.Duration(l.DurationMinutes) * time.Minute)
}
