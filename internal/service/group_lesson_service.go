package service

import (
	"context"
	"fmt"
	"time"

	"github.com/edumarket/grouplessons/internal/lock"
	"github.com/edumarket/grouplessons/internal/model"
	"github.com/edumarket/grouplessons/internal/pricing"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Окно полного возврата: при отмене более чем за 24 часа до начала
// участнику возвращается 100% уплаченного.
const fullRefundWindow = 24 * time.Hour

// DeadlineChoice решение создателя после пропуска дедлайна набора
type DeadlineChoice string

const (
	DeadlineChoiceCancel  DeadlineChoice = "cancel"   // Отменить занятие, вернуть всем 100%
	DeadlineChoicePayFull DeadlineChoice = "pay_full" // Доплатить до полной ставки, заниматься одному
)

// Policy настраиваемые параметры групповых занятий
type Policy struct {
	// Процент возврата при отмене внутри 24-часового окна
	LateRefundPercent int
	// За сколько до начала занятия закрывается набор группы
	JoinDeadlineOffset time.Duration
}

type CreateGroupLessonInput struct {
	CreatorID       int64     `validate:"required,gt=0"`
	TeacherID       int64     `validate:"required,gt=0"`
	StartTime       time.Time `validate:"required"`
	DurationMinutes int       `validate:"required,gt=0"`
	GroupSize       int       `validate:"required"`
}

type JoinInput struct {
	StudentID int64  `validate:"required,gt=0"`
	Token     string `validate:"required"`
}

type JoinWithCardInput struct {
	StudentID int64  `validate:"required,gt=0"`
	Token     string `validate:"required"`
	ChargeRef string `validate:"required"`
}

type LeaveInput struct {
	StudentID int64 `validate:"required,gt=0"`
	LessonID  int64 `validate:"required,gt=0"`
	Reason    string
}

type ResolveDeadlineInput struct {
	CreatorID int64          `validate:"required,gt=0"`
	LessonID  int64          `validate:"required,gt=0"`
	Choice    DeadlineChoice `validate:"required"`
}

// GroupLessonService оркестратор групповых занятий: создание, вступление,
// выход, разрешение дедлайна и финальный расчёт. Все мутации ростера
// одного занятия сериализуются мьютексом по ID занятия и блокировкой
// строки в базе; денежные изменения атомарны с изменениями ростера.
type GroupLessonService struct {
	tx           TxManager
	lessons      LessonStore
	participants ParticipantStore
	invitations  InvitationStore
	payments     PaymentStore
	progress     ProgressStore
	users        UserStore
	ledger       Ledger
	charges      ChargeCollaborator
	invoices     InvoiceCollaborator
	scheduling   LessonSchedulingCollaborator
	events       EventPublisher
	locks        *lock.KeyedMutex
	validate     *validator.Validate
	policy       Policy
	logger       *zap.Logger
	now          func() time.Time
}

func NewGroupLessonService(
	tx TxManager,
	lessons LessonStore,
	participants ParticipantStore,
	invitations InvitationStore,
	payments PaymentStore,
	progress ProgressStore,
	users UserStore,
	ledger Ledger,
	charges ChargeCollaborator,
	invoices InvoiceCollaborator,
	scheduling LessonSchedulingCollaborator,
	events EventPublisher,
	policy Policy,
	logger *zap.Logger,
) *GroupLessonService {
	return &GroupLessonService{
		tx:           tx,
		lessons:      lessons,
		participants: participants,
		invitations:  invitations,
		payments:     payments,
		progress:     progress,
		users:        users,
		ledger:       ledger,
		charges:      charges,
		invoices:     invoices,
		scheduling:   scheduling,
		events:       events,
		locks:        lock.NewKeyedMutex(),
		validate:     validator.New(),
		policy:       policy,
		logger:       logger,
		now:          time.Now,
	}
}

// CreateGroupLesson создаёт групповое занятие: списывает с создателя цену
// участника, создаёт занятие со статусом open, участие с ролью creator
// и приглашение. Списание и создание атомарны: либо всё, либо ничего.
func (s *GroupLessonService) CreateGroupLesson(ctx context.Context, input CreateGroupLessonInput) (*model.Lesson, *model.Invitation, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, nil, fmt.Errorf("validate input: %w", err)
	}

	teacher, err := s.users.GetByID(ctx, input.TeacherID)
	if err != nil {
		return nil, nil, fmt.Errorf("get teacher: %w", err)
	}
	if teacher == nil || !teacher.IsTeacher {
		return nil, nil, fmt.Errorf("teacher %d not found", input.TeacherID)
	}

	// Цена участника от эталонной ставки; невалидный размер группы
	// отклоняется до любых изменений
	price, err := pricing.ParticipantPrice(teacher.HourlyRateCents, input.GroupSize)
	if err != nil {
		return nil, nil, err
	}

	end := input.StartTime.Add(time.Duration(input.DurationMinutes) * time.Minute)
	conflict, err := s.scheduling.HasConflict(ctx, input.CreatorID, input.StartTime, end)
	if err != nil {
		return nil, nil, fmt.Errorf("check schedule conflict: %w", err)
	}
	if conflict {
		return nil, nil, ErrScheduleConflict
	}

	groupStatus := model.GroupStatusOpen
	lesson := &model.Lesson{
		TeacherID:       input.TeacherID,
		StartTime:       input.StartTime,
		DurationMinutes: input.DurationMinutes,
		PriceCents:      teacher.HourlyRateCents,
		IsGroup:         true,
		MaxParticipants: input.GroupSize,
		GroupStatus:     &groupStatus,
		Status:          model.LessonStatusPending,
	}

	invitation := &model.Invitation{
		CreatorID:       input.CreatorID,
		Token:           uuid.NewString(),
		MaxParticipants: input.GroupSize,
		ExpiresAt:       input.StartTime.Add(-s.policy.JoinDeadlineOffset),
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.lessons.Create(ctx, lesson); err != nil {
			return err
		}

		// Неудачное списание откатывает и занятие
		if err := s.ledger.Deduct(ctx, input.CreatorID, price, lesson.ID); err != nil {
			return err
		}

		payment := &model.Payment{
			LessonID:    lesson.ID,
			PayerID:     input.CreatorID,
			Method:      model.PaymentMethodWallet,
			AmountCents: price,
			Status:      model.PaymentStatusPaid,
		}
		if err := s.payments.Create(ctx, payment); err != nil {
			return err
		}

		participant := &model.Participant{
			LessonID:        lesson.ID,
			StudentID:       input.CreatorID,
			Role:            model.ParticipantRoleCreator,
			Status:          model.ParticipantStatusActive,
			PricePaidCents:  price,
			CommissionCents: pricing.Commission(price),
		}
		if err := s.participants.Create(ctx, participant); err != nil {
			return err
		}

		invitation.LessonID = lesson.ID
		return s.invitations.Create(ctx, invitation)
	})
	if err != nil {
		return nil, nil, err
	}

	s.generateInvoice(ctx, input.CreatorID, input.TeacherID, lesson.ID, price)

	s.logger.Info("Group lesson created",
		zap.Int64("lesson_id", lesson.ID),
		zap.Int64("creator_id", input.CreatorID),
		zap.Int64("teacher_id", input.TeacherID),
		zap.Int("group_size", input.GroupSize),
		zap.Int64("participant_price_cents", price),
	)

	s.events.Publish(Event{
		Type:        EventGroupCreated,
		LessonID:    lesson.ID,
		StudentID:   input.CreatorID,
		AmountCents: price,
	})

	return lesson, invitation, nil
}

// Join вступление в группу по токену с оплатой из кошелька
func (s *GroupLessonService) Join(ctx context.Context, input JoinInput) (*model.Participant, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, fmt.Errorf("validate input: %w", err)
	}

	return s.join(ctx, input.StudentID, input.Token, "")
}

// JoinWithCard вступление с оплатой предавторизованным списанием с карты.
// Идемпотентно по chargeRef: повторное подтверждение того же списания
// не создаёт второго участия.
func (s *GroupLessonService) JoinWithCard(ctx context.Context, input JoinWithCardInput) (*model.Participant, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, fmt.Errorf("validate input: %w", err)
	}

	return s.join(ctx, input.StudentID, input.Token, input.ChargeRef)
}

func (s *GroupLessonService) join(ctx context.Context, studentID int64, token, chargeRef string) (*model.Participant, error) {
	invitation, err := s.invitations.GetByToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("get invitation: %w", err)
	}
	if invitation == nil {
		return nil, ErrInvitationNotFound
	}
	if invitation.IsExpired(s.now()) {
		return nil, ErrInvitationExpired
	}

	unlock := s.locks.Lock(invitation.LessonID)
	defer unlock()

	var participant *model.Participant
	var teacherID int64
	var duplicateCharge bool

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		lesson, err := s.lessons.GetByIDForUpdate(ctx, invitation.LessonID)
		if err != nil {
			return err
		}
		if lesson == nil {
			return ErrLessonNotFound
		}
		if !lesson.IsGroup || lesson.GroupStatus == nil {
			return ErrNotAGroupLesson
		}
		teacherID = lesson.TeacherID

		switch *lesson.GroupStatus {
		case model.GroupStatusOpen:
		case model.GroupStatusFull:
			return ErrGroupFull
		default:
			return ErrGroupNotOpen
		}

		// Повторная проверка под блокировкой: конкурентный join мог
		// успеть раньше
		existing, err := s.participants.GetActiveByLessonAndStudent(ctx, lesson.ID, studentID)
		if err != nil {
			return err
		}
		if existing != nil {
			return ErrAlreadyParticipant
		}

		activeCount, err := s.participants.CountActiveByLesson(ctx, lesson.ID)
		if err != nil {
			return err
		}
		if activeCount >= lesson.MaxParticipants {
			return ErrGroupFull
		}

		// Размер группы берётся из снимка в приглашении: поздние правки
		// занятия не меняют цену, по которой звали участников
		price, err := pricing.ParticipantPrice(lesson.PriceCents, invitation.MaxParticipants)
		if err != nil {
			return err
		}

		payment := &model.Payment{
			LessonID:    lesson.ID,
			PayerID:     studentID,
			AmountCents: price,
			Status:      model.PaymentStatusPaid,
		}

		if chargeRef == "" {
			if err := s.ledger.Deduct(ctx, studentID, price, lesson.ID); err != nil {
				return err
			}
			payment.Method = model.PaymentMethodWallet
		} else {
			// Повторная доставка подтверждения того же списания:
			// участие уже создано, второго не будет
			duplicate, err := s.payments.GetByExternalRef(ctx, chargeRef)
			if err != nil {
				return err
			}
			if duplicate != nil {
				duplicateCharge = true
				participant, err = s.participants.GetActiveByLessonAndStudent(ctx, lesson.ID, duplicate.PayerID)
				return err
			}

			// Подтверждение внешнего списания до выдачи места; блокировка
			// удерживается, таймаут ограничивается контекстом вызова
			paid, err := s.charges.ConfirmCharge(ctx, chargeRef)
			if err != nil {
				return fmt.Errorf("confirm charge: %w", err)
			}
			if !paid {
				return ErrChargeNotPaid
			}
			payment.Method = model.PaymentMethodCard
			payment.ExternalRef = &chargeRef
		}

		if err := s.payments.Create(ctx, payment); err != nil {
			return err
		}

		participant = &model.Participant{
			LessonID:        lesson.ID,
			StudentID:       studentID,
			Role:            model.ParticipantRoleParticipant,
			Status:          model.ParticipantStatusActive,
			PricePaidCents:  price,
			CommissionCents: pricing.Commission(price),
		}
		if err := s.participants.Create(ctx, participant); err != nil {
			return err
		}

		if activeCount+1 == lesson.MaxParticipants {
			return s.lessons.UpdateGroupStatus(ctx, lesson.ID, model.GroupStatusFull)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	if duplicateCharge {
		// Повторная доставка подтверждения: без счёта и событий
		return participant, nil
	}

	s.generateInvoice(ctx, studentID, teacherID, invitation.LessonID, participant.PricePaidCents)

	s.logger.Info("Student joined group lesson",
		zap.Int64("lesson_id", invitation.LessonID),
		zap.Int64("student_id", studentID),
		zap.Int64("price_cents", participant.PricePaidCents),
		zap.Bool("card", chargeRef != ""),
	)

	s.events.Publish(Event{
		Type:        EventParticipantJoined,
		LessonID:    invitation.LessonID,
		StudentID:   studentID,
		AmountCents: participant.PricePaidCents,
	})

	return participant, nil
}

// Leave выход участника из группы с возвратом по временной политике:
// 100% более чем за 24 часа до начала, иначе настроенный процент.
// Если активных участников не осталось, занятие отменяется системой.
func (s *GroupLessonService) Leave(ctx context.Context, input LeaveInput) error {
	if err := s.validate.Struct(input); err != nil {
		return fmt.Errorf("validate input: %w", err)
	}

	unlock := s.locks.Lock(input.LessonID)
	defer unlock()

	var refund int64
	var systemCanceled bool

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		lesson, err := s.lessons.GetByIDForUpdate(ctx, input.LessonID)
		if err != nil {
			return err
		}
		if lesson == nil {
			return ErrLessonNotFound
		}
		if !lesson.IsGroup || lesson.GroupStatus == nil {
			return ErrNotAGroupLesson
		}

		participant, err := s.participants.GetActiveByLessonAndStudent(ctx, lesson.ID, input.StudentID)
		if err != nil {
			return err
		}
		if participant == nil {
			return ErrNotAParticipant
		}

		refundPercent := s.policy.LateRefundPercent
		if lesson.StartTime.Sub(s.now()) > fullRefundWindow {
			refundPercent = 100
		}
		refund = participant.PricePaidCents * int64(refundPercent) / 100

		// Запись о возврате создаётся всегда, даже при нулевой сумме
		if err := s.ledger.Refund(ctx, input.StudentID, refund, lesson.ID); err != nil {
			return err
		}

		if err := s.participants.Cancel(ctx, participant.ID, model.CanceledByStudent, refundPercent, refund); err != nil {
			return err
		}

		payment, err := s.payments.GetByLessonAndPayer(ctx, lesson.ID, input.StudentID)
		if err != nil {
			return err
		}
		if payment != nil {
			if err := s.payments.ApplyRefund(ctx, payment.ID, refund); err != nil {
				return err
			}
		}

		remaining, err := s.participants.CountActiveByLesson(ctx, lesson.ID)
		if err != nil {
			return err
		}

		if remaining == 0 {
			// Пустые групповые занятия не живут молча
			systemCanceled = true
			return s.lessons.Cancel(ctx, lesson.ID, model.CanceledBySystem)
		}

		if *lesson.GroupStatus == model.GroupStatusFull {
			return s.lessons.UpdateGroupStatus(ctx, lesson.ID, model.GroupStatusOpen)
		}

		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("Participant left group lesson",
		zap.Int64("lesson_id", input.LessonID),
		zap.Int64("student_id", input.StudentID),
		zap.Int64("refund_cents", refund),
		zap.String("reason", input.Reason),
		zap.Bool("lesson_canceled", systemCanceled),
	)

	s.events.Publish(Event{
		Type:        EventParticipantLeft,
		LessonID:    input.LessonID,
		StudentID:   input.StudentID,
		AmountCents: refund,
	})
	if systemCanceled {
		s.events.Publish(Event{Type: EventGroupCanceled, LessonID: input.LessonID})
	}

	return nil
}

// DeadlineElapsed переводит занятие в deadline_passed, если дедлайн
// набора прошёл, а группа так и не заполнилась. Вызывается планировщиком,
// сериализуется той же блокировкой, что и пользовательские операции.
func (s *GroupLessonService) DeadlineElapsed(ctx context.Context, lessonID int64) error {
	unlock := s.locks.Lock(lessonID)
	defer unlock()

	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		lesson, err := s.lessons.GetByIDForUpdate(ctx, lessonID)
		if err != nil {
			return err
		}
		if lesson == nil {
			return ErrLessonNotFound
		}
		if !lesson.IsGroup || lesson.GroupStatus == nil {
			return ErrNotAGroupLesson
		}

		// Повторный вызов или гонка с join: уже не open - ничего не делаем
		if *lesson.GroupStatus != model.GroupStatusOpen {
			return nil
		}

		activeCount, err := s.participants.CountActiveByLesson(ctx, lessonID)
		if err != nil {
			return err
		}
		if activeCount >= lesson.MaxParticipants {
			return s.lessons.UpdateGroupStatus(ctx, lessonID, model.GroupStatusFull)
		}

		s.logger.Info("Group deadline passed",
			zap.Int64("lesson_id", lessonID),
			zap.Int("active_participants", activeCount),
		)

		return s.lessons.UpdateGroupStatus(ctx, lessonID, model.GroupStatusDeadlinePassed)
	})
}

// ResolveDeadline решение создателя по незаполнившейся группе:
// cancel - вернуть всем активным участникам 100% и отменить занятие;
// pay_full - доплатить разницу до полной ставки и заниматься одному.
func (s *GroupLessonService) ResolveDeadline(ctx context.Context, input ResolveDeadlineInput) error {
	if err := s.validate.Struct(input); err != nil {
		return fmt.Errorf("validate input: %w", err)
	}

	if input.Choice != DeadlineChoiceCancel && input.Choice != DeadlineChoicePayFull {
		return ErrInvalidChoice
	}

	unlock := s.locks.Lock(input.LessonID)
	defer unlock()

	var eventType EventType
	var amount int64

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		lesson, err := s.lessons.GetByIDForUpdate(ctx, input.LessonID)
		if err != nil {
			return err
		}
		if lesson == nil {
			return ErrLessonNotFound
		}
		if !lesson.IsGroup || lesson.GroupStatus == nil {
			return ErrNotAGroupLesson
		}
		if *lesson.GroupStatus != model.GroupStatusDeadlinePassed {
			return ErrDeadlineNotPassed
		}

		creator, err := s.participants.GetActiveByLessonAndStudent(ctx, lesson.ID, input.CreatorID)
		if err != nil {
			return err
		}
		if creator == nil || creator.Role != model.ParticipantRoleCreator {
			return ErrOnlyCreatorCanResolve
		}

		switch input.Choice {
		case DeadlineChoiceCancel:
			eventType = EventGroupCanceled
			return s.cancelWithFullRefunds(ctx, lesson)

		case DeadlineChoicePayFull:
			eventType = EventLessonConverted

			// Доплата строго разницы: полная ставка минус уже уплаченное,
			// повторного списания полной суммы нет
			delta := lesson.PriceCents - creator.PricePaidCents
			amount = delta
			if delta > 0 {
				if err := s.ledger.Deduct(ctx, input.CreatorID, delta, lesson.ID); err != nil {
					return err
				}

				payment := &model.Payment{
					LessonID:    lesson.ID,
					PayerID:     input.CreatorID,
					Method:      model.PaymentMethodWallet,
					AmountCents: delta,
					Status:      model.PaymentStatusPaid,
				}
				if err := s.payments.Create(ctx, payment); err != nil {
					return err
				}
			}

			if err := s.participants.UpdatePricePaid(ctx, creator.ID, lesson.PriceCents, pricing.Commission(lesson.PriceCents)); err != nil {
				return err
			}

			return s.lessons.ConvertToPrivate(ctx, lesson.ID)
		}

		return ErrInvalidChoice
	})
	if err != nil {
		return err
	}

	s.logger.Info("Group deadline resolved",
		zap.Int64("lesson_id", input.LessonID),
		zap.Int64("creator_id", input.CreatorID),
		zap.String("choice", string(input.Choice)),
		zap.Int64("amount_cents", amount),
	)

	s.events.Publish(Event{
		Type:        eventType,
		LessonID:    input.LessonID,
		StudentID:   input.CreatorID,
		AmountCents: amount,
	})

	return nil
}

// cancelWithFullRefunds возвращает 100% всем активным участникам
// и отменяет занятие по решению студента
func (s *GroupLessonService) cancelWithFullRefunds(ctx context.Context, lesson *model.Lesson) error {
	actives, err := s.participants.ListActiveByLesson(ctx, lesson.ID)
	if err != nil {
		return err
	}

	for _, p := range actives {
		if err := s.ledger.Refund(ctx, p.StudentID, p.PricePaidCents, lesson.ID); err != nil {
			return err
		}
		if err := s.participants.Cancel(ctx, p.ID, model.CanceledByStudent, 100, p.PricePaidCents); err != nil {
			return err
		}

		payment, err := s.payments.GetByLessonAndPayer(ctx, lesson.ID, p.StudentID)
		if err != nil {
			return err
		}
		if payment != nil {
			if err := s.payments.ApplyRefund(ctx, payment.ID, p.PricePaidCents); err != nil {
				return err
			}
		}
	}

	return s.lessons.Cancel(ctx, lesson.ID, model.CanceledByStudent)
}

// CompleteSettlement финальный расчёт занятия: сумма фактически уплаченного
// активными участниками, комиссия и заработок пересчитываются от неё,
// заработок зачисляется учителю ровно один раз. Повторные вызовы - no-op
// под защитой флага earnings_credited.
func (s *GroupLessonService) CompleteSettlement(ctx context.Context, lessonID int64) error {
	unlock := s.locks.Lock(lessonID)
	defer unlock()

	var collected, commission, earnings int64
	var settled bool

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		lesson, err := s.lessons.GetByIDForUpdate(ctx, lessonID)
		if err != nil {
			return err
		}
		if lesson == nil {
			return ErrLessonNotFound
		}
		if lesson.EarningsCredited || lesson.Status == model.LessonStatusCanceled {
			return nil
		}

		actives, err := s.participants.ListActiveByLesson(ctx, lessonID)
		if err != nil {
			return err
		}

		// Источник правды - фактически уплаченное, а не номинальная ставка:
		// отмены меняют реально собранную сумму
		for _, p := range actives {
			collected += p.PricePaidCents
		}
		commission = pricing.Commission(collected)
		earnings = pricing.TeacherEarnings(collected)

		if err := s.lessons.StoreSettlement(ctx, lessonID, collected, commission, earnings); err != nil {
			return err
		}

		if err := s.ledger.CreditEarnings(ctx, lesson.TeacherID, earnings, lessonID); err != nil {
			return err
		}

		for _, p := range actives {
			advanced, err := s.participants.MarkProgressAdvanced(ctx, p.ID)
			if err != nil {
				return err
			}
			if advanced {
				if err := s.progress.IncrementCompleted(ctx, p.StudentID); err != nil {
					return err
				}
			}
		}

		settled = true
		return nil
	})
	if err != nil {
		return err
	}

	if !settled {
		return nil
	}

	s.logger.Info("Lesson settled",
		zap.Int64("lesson_id", lessonID),
		zap.Int64("collected_cents", collected),
		zap.Int64("commission_cents", commission),
		zap.Int64("earnings_cents", earnings),
	)

	s.events.Publish(Event{
		Type:        EventLessonSettled,
		LessonID:    lessonID,
		AmountCents: earnings,
	})

	return nil
}

// generateInvoice выставляет счёт после коммита. Сбой биллинга
// логируется, но не откатывает уже проведённую операцию.
func (s *GroupLessonService) generateInvoice(ctx context.Context, payerID, teacherID, lessonID, amountCents int64) {
	if err := s.invoices.Generate(ctx, payerID, teacherID, lessonID, amountCents); err != nil {
		s.logger.Error("Failed to generate invoice",
			zap.Int64("lesson_id", lessonID),
			zap.Int64("payer_id", payerID),
			zap.Error(err),
		)
	}
}
