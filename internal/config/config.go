package config

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/vitatrack/fitness_backend/internal/models"
)

type Config struct {
	Addr        string
	DatabaseURL string

	AccessSecret  []byte
	RefreshSecret []byte
	ReauthSecret  []byte

	// RedisAddr empty means process-local challenge and capability stores
	// (single-instance deployments only).
	RedisAddr string

	// KafkaBrokers empty means audit events go to the process log.
	KafkaBrokers []string
	KafkaTopic   string
	AuditBuffer  int

	LogLevel string
}

func Load() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Notice: .env file not found: %v. Using system environment variables", err)
	}

	cfg := &Config{
		Addr:          getenv("ADDR", ":8080"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		AccessSecret:  []byte(os.Getenv("JWT_SECRET")),
		RefreshSecret: []byte(os.Getenv("REFRESH_SECRET")),
		ReauthSecret:  []byte(os.Getenv("REAUTH_SECRET")),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		KafkaTopic:    getenv("KAFKA_AUDIT_TOPIC", "audit_events"),
		AuditBuffer:   256,
		LogLevel:      getenv("LOG_LEVEL", "info"),
	}
	if brokers := os.Getenv("KAFKA_ADDRESS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}

	if len(cfg.AccessSecret) == 0 || len(cfg.RefreshSecret) == 0 || len(cfg.ReauthSecret) == 0 {
		return nil, errors.New("JWT_SECRET, REFRESH_SECRET and REAUTH_SECRET are required")
	}
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func configurePool(sqlDB *sql.DB) {
	const (
		maxOpenConns    = 20
		maxIdleConns    = 10
		connMaxLifetime = 30 * time.Minute
		connMaxIdleTime = 5 * time.Minute
	)

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)
}

func InitDB(ctx context.Context, dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		PrepareStmt: true,
		NowFunc:     func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("db handle: %w", err)
	}
	configurePool(sqlDB)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}

	if err := db.AutoMigrate(&models.Account{}, &models.Nutritionist{}, &models.PhysicalEducator{}); err != nil {
		return nil, fmt.Errorf("db migrate: %w", err)
	}
	return db, nil
}
