package model

import "time"

type ParticipantRole string

const (
	ParticipantRoleCreator     ParticipantRole = "creator"     // Создатель группы
	ParticipantRoleParticipant ParticipantRole = "participant" // Присоединился по приглашению
)

type ParticipantStatus string

const (
	ParticipantStatusActive   ParticipantStatus = "active"
	ParticipantStatusCanceled ParticipantStatus = "canceled"
)

// Participant связывает студента с групповым занятием.
// Записи никогда не удаляются физически - финансовый аудит.
type Participant struct {
	ID                  int64             `json:"id"`
	LessonID            int64             `json:"lesson_id"`
	StudentID           int64             `json:"student_id"`
	Role                ParticipantRole   `json:"role"`
	Status              ParticipantStatus `json:"status"`
	PricePaidCents      int64             `json:"price_paid_cents"`
	CommissionCents     int64             `json:"commission_cents"`
	CanceledBy          *CanceledBy       `json:"canceled_by"`
	RefundPercent       *int              `json:"refund_percent"`
	RefundedCents       *int64            `json:"refunded_cents"`
	CanceledAt          *time.Time        `json:"canceled_at"`
	ProgressAdvancedAt  *time.Time        `json:"progress_advanced_at"`
	CreatedAt           time.Time         `json:"created_at"`
	UpdatedAt           time.Time         `json:"updated_at"`
}

// IsActive проверяет что участие не отменено
func (p *Participant) IsActive() bool {
	return p.Status == ParticipantStatusActive
}
