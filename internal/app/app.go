// Package app assembles the store, gateway and services shared by the API
// server and the ops CLI.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"skillmint/config"
	"skillmint/internal/database"
	"skillmint/internal/domain"
	"skillmint/internal/metrics"
	"skillmint/internal/models"
	"skillmint/internal/repository"
	"skillmint/internal/service"
	"skillmint/pkg/payment"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type App struct {
	Config   *config.Config
	DB       *gorm.DB
	Metrics  *metrics.Metrics
	Services *service.Services
	Log      logrus.FieldLogger

	redis *redis.Client
}

// Open connects to the database, migrates and seeds it, and wires the services.
func Open(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (*App, error) {
	db, err := database.NewDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	platform, err := Migrate(db, cfg)
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg, DB: db, Metrics: metrics.New(), Log: log}
	var dedup repository.WebhookEventCache = repository.NopWebhookCache{}
	if cfg.Redis.Addr != "" {
		a.redis = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := a.redis.Ping(ctx).Err(); err != nil {
			log.WithError(err).Warn("redis unreachable, webhook replays fall back to database guards")
		}
		dedup = repository.NewRedisWebhookCache(a.redis, cfg.Redis.WebhookDedupTTL)
	}
	a.Services = service.NewServices(cfg, db, Gateway(cfg, log), dedup, platform.ID, a.Metrics, log)
	return a, nil
}

// Migrate runs the schema migration and seeds the platform account and coupons.
func Migrate(db *gorm.DB, cfg *config.Config) (*models.User, error) {
	if err := database.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	platform, err := database.SeedPlatformAccount(db, cfg.Platform.UserEmail)
	if err != nil {
		return nil, err
	}
	if err := database.SeedCoupons(db); err != nil {
		return nil, fmt.Errorf("seed coupons: %w", err)
	}
	return platform, nil
}

// SeedSettings stores the configured commission levels unless an admin has
// already set them.
func SeedSettings(db *gorm.DB, cfg *config.Config) error {
	byKey := make(map[string]float64, len(cfg.Commission.Levels))
	for level, pct := range cfg.Commission.Levels {
		byKey[strconv.Itoa(level)] = pct
	}
	raw, err := json.Marshal(byKey)
	if err != nil {
		return err
	}
	return repository.NewSettingRepository(db).SeedDefaults(map[string]string{
		domain.SettingCommissionLevels: string(raw),
	})
}

// Gateway returns the stub in development when configured, otherwise the HTTP client.
func Gateway(cfg *config.Config, log logrus.FieldLogger) payment.Gateway {
	gc := cfg.Gateway
	if gc.Stub {
		log.Warn("using the in-process payment gateway stub")
		return payment.NewStubGateway(gc.KeySecret, gc.WebhookSecret)
	}
	return payment.NewHTTPGateway(gc.BaseURL, gc.KeyID, gc.KeySecret, gc.WebhookSecret, gc.Timeout, log)
}

func (a *App) Close() error {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	sqlDB, err := a.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
