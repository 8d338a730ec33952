package app

import (
	"context"
	"errors"
	"time"

	"github.com/edumarket/grouplessons/internal/service"
	"go.uber.org/zap"
)

// Scheduler управляет фоновыми задачами: перевод групп с пропущенным
// дедлайном набора и финальный расчёт завершившихся занятий. Обе задачи
// ходят через оркестратор и берут ту же блокировку занятия, что и
// пользовательские операции.
type Scheduler struct {
	groupService *service.GroupLessonService
	lessons      service.LessonStore
	deadline     time.Duration
	interval     time.Duration
	logger       *zap.Logger
	stopChan     chan struct{}
}

// NewScheduler создаёт новый планировщик
func NewScheduler(
	groupService *service.GroupLessonService,
	lessons service.LessonStore,
	deadline, interval time.Duration,
	logger *zap.Logger,
) *Scheduler {
	return &Scheduler{
		groupService: groupService,
		lessons:      lessons,
		deadline:     deadline,
		interval:     interval,
		logger:       logger,
		stopChan:     make(chan struct{}),
	}
}

// Start запускает фоновые задачи
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("Starting background scheduler",
		zap.Duration("interval", s.interval),
		zap.Duration("join_deadline_offset", s.deadline),
	)

	go s.run(ctx)
}

// Stop останавливает фоновые задачи
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping background scheduler")
	close(s.stopChan)
}

func (s *Scheduler) run(ctx context.Context) {
	// Первый проход сразу при старте
	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep(ctx)
		case <-s.stopChan:
			s.logger.Info("Scheduler sweep task stopped")
			return
		case <-ctx.Done():
			s.logger.Info("Scheduler sweep task cancelled")
			return
		}
	}
}

func (s *Scheduler) sweep(ctx context.Context) {
	s.sweepDeadlines(ctx)
	s.sweepSettlements(ctx)
}

// sweepDeadlines переводит незаполнившиеся группы в deadline_passed
func (s *Scheduler) sweepDeadlines(ctx context.Context) {
	lessons, err := s.lessons.ListOpenPastJoinDeadline(ctx, s.deadline, time.Now())
	if err != nil {
		s.logger.Error("Failed to list lessons past join deadline", zap.Error(err))
		return
	}

	for _, lesson := range lessons {
		if err := s.groupService.DeadlineElapsed(ctx, lesson.ID); err != nil {
			// Гонка с конкурентной отменой - не ошибка планировщика
			if errors.Is(err, service.ErrLessonNotFound) || errors.Is(err, service.ErrNotAGroupLesson) {
				continue
			}
			s.logger.Error("Failed to mark deadline elapsed",
				zap.Int64("lesson_id", lesson.ID),
				zap.Error(err),
			)
		}
	}
}

// sweepSettlements проводит расчёт по занятиям, чьё время закончилось
func (s *Scheduler) sweepSettlements(ctx context.Context) {
	lessons, err := s.lessons.ListFinishedUnsettled(ctx, time.Now())
	if err != nil {
		s.logger.Error("Failed to list unsettled lessons", zap.Error(err))
		return
	}

	for _, lesson := range lessons {
		if err := s.groupService.CompleteSettlement(ctx, lesson.ID); err != nil {
			s.logger.Error("Failed to settle lesson",
				zap.Int64("lesson_id", lesson.ID),
				zap.Error(err),
			)
		}
	}
}
