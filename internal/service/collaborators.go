package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Внешние коллабораторы подсистемы. Реализации живут за её пределами
// (платёжный шлюз, биллинг, календарь); здесь только контракты.

// ChargeCollaborator клиент платёжного шлюза. CreateCharge выполняет
// предварительную авторизацию карты, ConfirmCharge подтверждает списание.
type ChargeCollaborator interface {
	CreateCharge(ctx context.Context, payerID, amountCents int64, description string) (chargeRef string, err error)
	ConfirmCharge(ctx context.Context, chargeRef string) (paid bool, err error)
}

// InvoiceCollaborator выставляет счёт-фактуру по платежу
type InvoiceCollaborator interface {
	Generate(ctx context.Context, payerID, teacherID, lessonID, amountCents int64) error
}

// LessonSchedulingCollaborator проверяет конфликты расписания студента
type LessonSchedulingCollaborator interface {
	HasConflict(ctx context.Context, studentID int64, start, end time.Time) (bool, error)
}

// UnconfiguredCharges заглушка платёжного шлюза: любые операции с картой
// отклоняются, пока реальный клиент не подключён. Оплата из кошелька
// при этом работает полностью.
type UnconfiguredCharges struct{}

func (UnconfiguredCharges) CreateCharge(context.Context, int64, int64, string) (string, error) {
	return "", errors.New("charge collaborator is not configured")
}

func (UnconfiguredCharges) ConfirmCharge(context.Context, string) (bool, error) {
	return false, errors.New("charge collaborator is not configured")
}

// LogInvoices пишет счета в лог вместо внешнего биллинга
type LogInvoices struct {
	logger *zap.Logger
}

func NewLogInvoices(logger *zap.Logger) *LogInvoices {
	return &LogInvoices{logger: logger}
}

func (i *LogInvoices) Generate(_ context.Context, payerID, teacherID, lessonID, amountCents int64) error {
	i.logger.Info("Invoice generated",
		zap.Int64("payer_id", payerID),
		zap.Int64("teacher_id", teacherID),
		zap.Int64("lesson_id", lessonID),
		zap.Int64("amount_cents", amountCents),
	)
	return nil
}
