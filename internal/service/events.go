package service

import "go.uber.org/zap"

type EventType string

const (
	EventGroupCreated      EventType = "group_created"
	EventParticipantJoined EventType = "participant_joined"
	EventParticipantLeft   EventType = "participant_left"
	EventGroupCanceled     EventType = "group_canceled"
	EventLessonConverted   EventType = "lesson_converted_private"
	EventLessonSettled     EventType = "lesson_settled"
)

// Event исходящее событие для уведомлений. Публикуется после коммита
// финансовой операции; доставка не блокирует и не роняет операцию.
type Event struct {
	Type        EventType
	LessonID    int64
	StudentID   int64
	AmountCents int64
}

type EventPublisher interface {
	Publish(event Event)
}

// LogPublisher публикатор по умолчанию: просто пишет событие в лог.
// Реальная доставка уведомлений подключается снаружи.
type LogPublisher struct {
	logger *zap.Logger
}

func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(event Event) {
	p.logger.Info("Event published",
		zap.String("type", string(event.Type)),
		zap.Int64("lesson_id", event.LessonID),
		zap.Int64("student_id", event.StudentID),
		zap.Int64("amount_cents", event.AmountCents),
	)
}
