// Package app инициализирует все компоненты приложения.
// app.go — точка сборки: открывает хранилище, загружает таблицы наград,
// создаёт движки, фасад, HTTP сервер и планировщик.
package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/lingvo-backend/internal/common"
	"serotonyl.ru/lingvo-backend/internal/config"
	"serotonyl.ru/lingvo-backend/internal/features/achievements"
	"serotonyl.ru/lingvo-backend/internal/features/gamification"
	"serotonyl.ru/lingvo-backend/internal/features/streak"
	"serotonyl.ru/lingvo-backend/internal/features/xp"
	apphttp "serotonyl.ru/lingvo-backend/internal/http"
	httpH "serotonyl.ru/lingvo-backend/internal/http/handlers"
	httpMW "serotonyl.ru/lingvo-backend/internal/http/middleware"
	"serotonyl.ru/lingvo-backend/internal/jobs"
	"serotonyl.ru/lingvo-backend/internal/rewards"
	"serotonyl.ru/lingvo-backend/internal/storage"
	"serotonyl.ru/lingvo-backend/internal/storage/postgres"
	"serotonyl.ru/lingvo-backend/internal/storage/sqlite"
)

// App содержит все компоненты приложения.
type App struct {
	Server      *apphttp.Server
	Scheduler   *jobs.Scheduler
	Store       storage.Store
	Service     *gamification.Service
	RateLimiter *httpMW.RateLimiter
}

// New создаёт и инициализирует приложение.
// Порядок инициализации важен: компоненты зависят друг от друга.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	// === 1. Таблицы наград ===
	// Битые таблицы — ошибка старта, до подключения к БД
	tables, err := rewards.Load(cfg.RewardsFile)
	if err != nil {
		return nil, fmt.Errorf("ошибка загрузки таблиц наград: %w", err)
	}
	log.WithFields(log.Fields{
		"actions":      len(tables.ActionTypes()),
		"levels":       tables.MaxLevel(),
		"achievements": len(tables.Achievements()),
	}).Info("Таблицы наград загружены")

	// === 2. Хранилище ===
	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	// === 3. Движки и фасад ===
	loc := common.LoadLocation(cfg.AppTimezone)
	svc := gamification.NewService(store, tables,
		xp.NewEngine(tables, nil),
		achievements.NewEngine(tables, nil),
		streak.NewEngine(tables, loc, nil),
		cfg.FeatureStreaksEnabled,
	)

	// === 4. HTTP ===
	rl := httpMW.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow)
	server := apphttp.NewServer(cfg.HTTPAddr, apphttp.RouterConfig{
		GamificationHandler: httpH.NewGamificationHandler(svc),
		HealthHandler:       httpH.NewHealthHandler(store),
		TokenAuth:           httpMW.NewTokenAuth(cfg.APITokenHash),
		RateLimiter:         rl,
	})

	// === 5. Планировщик задач ===
	refillEnabled := cfg.FeatureFreezeRefillEnabled && cfg.FeatureStreaksEnabled
	scheduler := jobs.NewScheduler(svc, cfg.StreakRefillCron, loc, refillEnabled)

	return &App{
		Server:      server,
		Scheduler:   scheduler,
		Store:       store,
		Service:     svc,
		RateLimiter: rl,
	}, nil
}

// Close освобождает ресурсы, не принадлежащие серверу.
func (a *App) Close() {
	a.RateLimiter.Close()
	if err := a.Store.Close(); err != nil {
		log.WithError(err).Warn("Ошибка закрытия хранилища")
	}
}

func openStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	switch cfg.DBDriver {
	case config.DriverSQLite:
		s, err := sqlite.Open(cfg.SQLitePath, cfg.DBTxRetries)
		if err != nil {
			return nil, fmt.Errorf("ошибка открытия SQLite: %w", err)
		}
		return s, nil
	default:
		s, err := postgres.Open(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("ошибка подключения к БД: %w", err)
		}
		return s, nil
	}
}
