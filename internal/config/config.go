package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DBDSN       string
	Environment string

	// Процент возврата при отмене внутри 24-часового окна.
	// Политика, не выводится из наблюдаемого поведения.
	LateRefundPercent int

	// За сколько до начала занятия закрывается набор группы
	JoinDeadlineOffset time.Duration

	// Интервал фоновых проходов планировщика
	SweepInterval time.Duration

	MigrationsPath string
}

const (
	defaultLateRefundPercent = 50
	defaultJoinDeadlineHours = 24
	defaultSweepMinutes      = 5
	defaultMigrationsPath    = "migrations"
)

func Load() (*Config, error) {
	// .env необязателен: в проде переменные приходят из окружения
	if err := godotenv.Load(".env"); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := &Config{
		DBDSN:              os.Getenv("DB_DSN"),
		Environment:        os.Getenv("ENV"),
		LateRefundPercent:  intEnv("LATE_CANCEL_REFUND_PERCENT", defaultLateRefundPercent),
		JoinDeadlineOffset: time.Duration(intEnv("JOIN_DEADLINE_HOURS", defaultJoinDeadlineHours)) * time.Hour,
		SweepInterval:      time.Duration(intEnv("SWEEP_INTERVAL_MINUTES", defaultSweepMinutes)) * time.Minute,
		MigrationsPath:     os.Getenv("MIGRATIONS_PATH"),
	}

	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.MigrationsPath == "" {
		cfg.MigrationsPath = defaultMigrationsPath
	}

	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("DB_DSN is required but not set")
	}
	if cfg.LateRefundPercent < 0 || cfg.LateRefundPercent > 100 {
		return nil, fmt.Errorf("LATE_CANCEL_REFUND_PERCENT must be within [0, 100]")
	}

	return cfg, nil
}

func intEnv(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}

	value, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("Invalid %s=%q, using default %d", key, raw, fallback)
		return fallback
	}

	return value
}
