// Package main — точка входа сервиса геймификации.
// Загружает конфигурацию, инициализирует приложение и запускает HTTP сервер.
// По SIGINT/SIGTERM или при падении сервера дожидается текущих запросов и выходит.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/lingvo-backend/internal/app"
	"serotonyl.ru/lingvo-backend/internal/config"
)

func main() {
	setupLogging(log.DebugLevel)

	log.Info("=== Сервис запускается ===")

	// Конфигурация: переменные окружения и необязательный .env
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("Не удалось загрузить конфигурацию")
	}

	if level, err := log.ParseLevel(cfg.AppLogLevel); err == nil {
		setupLogging(level)
	} else {
		log.WithField("level", cfg.AppLogLevel).Warn("Неизвестный APP_LOG_LEVEL, оставляем debug")
	}

	// Отменяется при остановке; от него зависят фоновые задачи
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Инициализируем приложение (таблицы, БД, движки, HTTP)
	application, err := app.New(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("Не удалось инициализировать приложение")
	}
	defer application.Close()

	// Cron: пополнение заморозок
	if err := application.Scheduler.Start(ctx); err != nil {
		log.WithError(err).Fatal("Не удалось запустить планировщик")
	}
	defer application.Scheduler.Stop()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() { serverErr <- application.Server.Run() }()

	log.Info("=== Сервис готов к работе ===")

	// Ждём сигнала остановки или падения сервера
	select {
	case sig := <-quit:
		log.Infof("Получен сигнал %s, останавливаемся...", sig)
	case err := <-serverErr:
		if err != nil {
			log.WithError(err).Error("HTTP сервер упал")
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer shutdownCancel()
	if err := application.Server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("HTTP сервер не успел завершить запросы")
	}

	// Отменяем контекст, фоновые задачи начнут завершаться
	cancel()

	log.Info("=== Сервис остановлен ===")
}

// setupLogging включает текстовый формат logrus с полной меткой времени.
func setupLogging(level log.Level) {
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	log.SetOutput(os.Stdout)
	log.SetLevel(level)
}
