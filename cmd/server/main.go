package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/edumarket/grouplessons/internal/app"
	"github.com/edumarket/grouplessons/internal/config"
	"github.com/edumarket/grouplessons/internal/repository"
	"github.com/edumarket/grouplessons/internal/repository/base"
	"github.com/edumarket/grouplessons/internal/service"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := app.NewLogger(cfg.Environment)
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DBDSN)
	if err != nil {
		logger.Fatal("Failed to create connection pool", zap.Error(err))
	}
	defer pool.Close()

	migrator, err := app.NewMigrator(pool, cfg.MigrationsPath, logger)
	if err != nil {
		logger.Fatal("Failed to create migrator", zap.Error(err))
	}
	if err := migrator.Run(ctx); err != nil {
		logger.Fatal("Failed to apply migrations", zap.Error(err))
	}
	migrator.Close()

	txManager := base.NewRepository(pool)
	lessonRepo := repository.NewLessonRepository(pool)
	participantRepo := repository.NewParticipantRepository(pool)
	invitationRepo := repository.NewInvitationRepository(pool)
	paymentRepo := repository.NewPaymentRepository(pool)
	walletRepo := repository.NewWalletRepository(pool)
	progressRepo := repository.NewProgressRepository(pool)
	userRepo := repository.NewUserRepository(pool)

	walletService := service.NewWalletService(txManager, walletRepo, logger)

	groupService := service.NewGroupLessonService(
		txManager,
		lessonRepo,
		participantRepo,
		invitationRepo,
		paymentRepo,
		progressRepo,
		userRepo,
		walletService,
		service.UnconfiguredCharges{}, // реальный платёжный шлюз подключается снаружи
		service.NewLogInvoices(logger),
		service.NewSchedulingAdapter(lessonRepo),
		service.NewLogPublisher(logger),
		service.Policy{
			LateRefundPercent:  cfg.LateRefundPercent,
			JoinDeadlineOffset: cfg.JoinDeadlineOffset,
		},
		logger,
	)

	scheduler := app.NewScheduler(groupService, lessonRepo, cfg.JoinDeadlineOffset, cfg.SweepInterval, logger)
	scheduler.Start(ctx)
	defer scheduler.Stop()

	logger.Info("Group lesson service started",
		zap.String("environment", cfg.Environment),
		zap.Int("late_refund_percent", cfg.LateRefundPercent),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down")
}
