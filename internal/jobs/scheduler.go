// Package jobs управляет фоновыми задачами (cron).
// scheduler.go настраивает расписание: пополнение токенов заморозки стрика.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/lingvo-backend/internal/common"
)

// Refiller — сервис, пополняющий заморозки всем пользователям.
type Refiller interface {
	RefillFreezeTokens(ctx context.Context) (int64, error)
}

// Scheduler управляет фоновыми задачами.
type Scheduler struct {
	cron     *cron.Cron
	refiller Refiller
	schedule string
	enabled  bool
}

// NewScheduler создаёт планировщик в часовом поясе стриков.
// schedule — расписание пополнения в формате cron (5 полей).
func NewScheduler(refiller Refiller, schedule string, loc *time.Location, enabled bool) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{
		cron:     cron.New(cron.WithLocation(loc)),
		refiller: refiller,
		schedule: schedule,
		enabled:  enabled,
	}
}

// Start регистрирует задачи и запускает планировщик.
// Некорректное расписание — ошибка старта, а не тихий пропуск.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.enabled {
		if _, err := s.cron.AddFunc(s.schedule, func() { s.refill(ctx) }); err != nil {
			return fmt.Errorf("некорректное расписание пополнения %q: %w", s.schedule, err)
		}
	} else {
		log.Info("[CRON] Пополнение заморозок отключено")
	}

	s.cron.Start()
	log.WithField("refill", s.schedule).Info("Планировщик задач запущен")
	return nil
}

func (s *Scheduler) refill(ctx context.Context) {
	defer common.RecoverFromPanic()

	log.Info("[CRON] Пополнение токенов заморозки")
	n, err := s.refiller.RefillFreezeTokens(ctx)
	if err != nil {
		log.WithError(err).Error("[CRON] Ошибка пополнения заморозок")
		return
	}
	log.WithField("users", n).Info("[CRON] Заморозки пополнены")
}

// Stop останавливает планировщик и ждёт завершения запущенных задач.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("Планировщик задач остановлен")
}
