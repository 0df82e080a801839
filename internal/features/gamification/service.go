// Package gamification — service.go содержит обработку событий и запросы на чтение.
package gamification

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/lingvo-backend/internal/common"
	"serotonyl.ru/lingvo-backend/internal/features/achievements"
	"serotonyl.ru/lingvo-backend/internal/features/streak"
	"serotonyl.ru/lingvo-backend/internal/features/xp"
	"serotonyl.ru/lingvo-backend/internal/rewards"
	"serotonyl.ru/lingvo-backend/internal/storage"
)

// Service — фасад движка геймификации.
type Service struct {
	store          storage.Store
	tables         *rewards.Tables
	xp             *xp.Engine
	achievements   *achievements.Engine
	streak         *streak.Engine
	streaksEnabled bool
}

// NewService собирает фасад. При streaksEnabled == false события не трогают стрики.
func NewService(store storage.Store, tables *rewards.Tables, xpEngine *xp.Engine, achEngine *achievements.Engine, streakEngine *streak.Engine, streaksEnabled bool) *Service {
	return &Service{
		store:          store,
		tables:         tables,
		xp:             xpEngine,
		achievements:   achEngine,
		streak:         streakEngine,
		streaksEnabled: streaksEnabled,
	}
}

// ProcessEvent обрабатывает событие ученика.
//
// Порядок внутри одной транзакции пользователя:
//  1. Начисляем опыт за действие
//  2. Проверяем ачивки по новой статистике
//  3. Отмечаем активность в стрике
//  4. Если достигнут рубеж стрика — ровно одно бонусное начисление
//  5. Повторная проверка ачивок, зависящих от стрика и бонуса
//
// Любая ошибка откатывает всё: частичный результат не виден.
func (s *Service) ProcessEvent(ctx context.Context, userID int64, ev Event) (*EventResult, error) {
	if userID <= 0 {
		return nil, fmt.Errorf("%w: %d", common.ErrInvalidUser, userID)
	}
	if _, ok := s.tables.XPFor(ev.Type); !ok || s.tables.IsMilestoneAction(ev.Type) {
		return nil, fmt.Errorf("%w: %q", common.ErrUnknownActionType, ev.Type)
	}

	var result *EventResult
	err := s.store.Update(ctx, userID, func(ctx context.Context, tx storage.Tx) error {
		// Тело может выполниться повторно, поэтому результат собираем заново
		res := &EventResult{UserID: userID, EventType: ev.Type, Achievements: []achievements.Entry{}}

		award, err := s.xp.Award(ctx, tx, userID, ev.Type, ev.ReferenceID)
		if err != nil {
			return err
		}
		res.XP = award

		if err := s.unlock(ctx, tx, userID, ev, res); err != nil {
			return err
		}

		if !s.streaksEnabled {
			result = res
			return nil
		}

		activity, err := s.streak.RecordActivity(ctx, tx, userID)
		if err != nil {
			return err
		}
		res.Streak = activity

		if m := activity.Milestone; m != nil {
			ref := fmt.Sprintf("streak:%d:%s", m.Days, common.FormatDate(s.streak.Today()))
			bonus, err := s.xp.Award(ctx, tx, userID, m.Action, ref)
			if err != nil {
				return fmt.Errorf("бонус за рубеж %d: %w", m.Days, err)
			}
			res.MilestoneXP = bonus
		}

		if activity.Changed {
			if err := s.unlock(ctx, tx, userID, ev, res); err != nil {
				return err
			}
		}

		result = res
		return nil
	})
	if err != nil {
		log.WithError(err).WithFields(log.Fields{
			"user_id": userID,
			"event":   ev.Type,
		}).Warn("Событие не обработано")
		return nil, err
	}

	s.logResult(result)
	return result, nil
}

// unlock собирает статистику и открывает выполненные ачивки, дописывая их в res.
func (s *Service) unlock(ctx context.Context, tx storage.Tx, userID int64, ev Event, res *EventResult) error {
	stats, err := s.stats(ctx, tx, userID)
	if err != nil {
		return err
	}
	unlocked, err := s.achievements.CheckAndUnlock(ctx, tx, userID, ev.Type, ev.Context, stats)
	if err != nil {
		return err
	}
	res.Achievements = append(res.Achievements, unlocked...)
	return nil
}

func (s *Service) stats(ctx context.Context, tx storage.Tx, userID int64) (achievements.Stats, error) {
	var st achievements.Stats

	p, err := tx.GetProgression(ctx, userID)
	switch {
	case err == nil:
		st.TotalXP = p.TotalXP
		st.Level = p.CurrentLevel
	case errors.Is(err, common.ErrNotFound):
		st.Level = 1
	default:
		return st, err
	}

	r, err := tx.GetStreak(ctx, userID)
	switch {
	case err == nil:
		st.CurrentStreak = r.CurrentStreak
		st.LongestStreak = r.LongestStreak
	case errors.Is(err, common.ErrNotFound):
	default:
		return st, err
	}

	counts, err := tx.CountXPEvents(ctx, userID)
	if err != nil {
		return st, err
	}
	st.EventCounts = counts
	return st, nil
}

func (s *Service) logResult(res *EventResult) {
	fields := log.Fields{
		"user_id":       res.UserID,
		"event":         res.EventType,
		"xp":            res.TotalAwarded(),
		"current_level": res.Level(),
	}
	if res.XP.LeveledUp || (res.MilestoneXP != nil && res.MilestoneXP.LeveledUp) {
		fields["leveled_up"] = true
	}
	if len(res.Achievements) > 0 {
		ids := make([]string, 0, len(res.Achievements))
		for _, a := range res.Achievements {
			ids = append(ids, a.ID)
		}
		fields["achievements"] = ids
	}
	if res.Streak != nil {
		fields["streak"] = res.Streak.CurrentStreak
		if res.Streak.Milestone != nil {
			fields["milestone"] = res.Streak.Milestone.Days
		}
	}
	log.WithFields(fields).Info("Событие обработано")
}

// Achievements возвращает ачивки пользователя. Только чтение.
func (s *Service) Achievements(ctx context.Context, userID int64, includeLocked bool) (*achievements.Overview, error) {
	if userID <= 0 {
		return nil, fmt.Errorf("%w: %d", common.ErrInvalidUser, userID)
	}
	var out *achievements.Overview
	err := s.store.View(ctx, func(ctx context.Context, tx storage.Tx) error {
		ov, err := s.achievements.UserAchievements(ctx, tx, userID, includeLocked)
		if err != nil {
			return err
		}
		out = ov
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// StreakStatus возвращает состояние стрика. Только чтение.
func (s *Service) StreakStatus(ctx context.Context, userID int64) (*streak.StatusResult, error) {
	if userID <= 0 {
		return nil, fmt.Errorf("%w: %d", common.ErrInvalidUser, userID)
	}
	var out *streak.StatusResult
	err := s.store.View(ctx, func(ctx context.Context, tx storage.Tx) error {
		st, err := s.streak.Status(ctx, tx, userID)
		if err != nil {
			return err
		}
		out = st
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Progression возвращает опыт и уровень пользователя. Только чтение.
func (s *Service) Progression(ctx context.Context, userID int64) (*xp.Summary, error) {
	if userID <= 0 {
		return nil, fmt.Errorf("%w: %d", common.ErrInvalidUser, userID)
	}
	var out *xp.Summary
	err := s.store.View(ctx, func(ctx context.Context, tx storage.Tx) error {
		sum, err := s.xp.Progression(ctx, tx, userID)
		if err != nil {
			return err
		}
		out = sum
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RefillFreezeTokens пополняет заморозки всем пользователям. Вызывается планировщиком.
func (s *Service) RefillFreezeTokens(ctx context.Context) (int64, error) {
	return s.streak.Refill(ctx, s.store)
}
