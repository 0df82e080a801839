// Package streak — service.go содержит правила стриков.
//
// Правила по разнице в календарных днях (gap) между последней активностью и сегодня:
//   - gap <= 0 → ничего не меняется
//   - gap == 1 → серия +1
//   - gap == 2 и есть заморозка → заморозка списывается, серия +1
//   - иначе → серия начинается заново с 1
package streak

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/lingvo-backend/internal/common"
	"serotonyl.ru/lingvo-backend/internal/rewards"
)

// Engine применяет правила стриков.
type Engine struct {
	tables *rewards.Tables
	policy rewards.StreakPolicy
	loc    *time.Location
	now    func() time.Time
}

// NewEngine создаёт движок стриков. Календарный день считается в поясе loc.
func NewEngine(tables *rewards.Tables, loc *time.Location, now func() time.Time) *Engine {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &Engine{tables: tables, policy: tables.Streak(), loc: loc, now: now}
}

// Today — текущая календарная дата в поясе движка.
func (e *Engine) Today() time.Time {
	return common.DateIn(e.now(), e.loc)
}

// RecordActivity отмечает активность пользователя сегодня.
// Повторный вызов в тот же день ничего не меняет.
func (e *Engine) RecordActivity(ctx context.Context, repo Repository, userID int64) (*ActivityResult, error) {
	today := e.Today()
	now := e.now().UTC()

	rec, err := repo.GetStreak(ctx, userID)
	if errors.Is(err, common.ErrNotFound) {
		rec = &Record{
			UserID:           userID,
			CurrentStreak:    1,
			LongestStreak:    1,
			FreezeTokens:     e.policy.InitialFreezeTokens,
			LastActivityDate: today,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if err := repo.CreateStreak(ctx, rec); err != nil {
			return nil, err
		}
		res := e.result(rec, TransitionStarted, 0)
		e.logTransition(userID, res)
		return res, nil
	}
	if err != nil {
		return nil, err
	}

	before := rec.CurrentStreak
	transition := e.advance(rec, today)
	if transition == TransitionSameDay || transition == TransitionClockSkew {
		res := e.result(rec, transition, before)
		return res, nil
	}

	rec.UpdatedAt = now
	if err := repo.UpdateStreak(ctx, rec); err != nil {
		return nil, err
	}

	res := e.result(rec, transition, before)
	e.logTransition(userID, res)
	return res, nil
}

// advance применяет правила к записи на дату today и возвращает сработавшую ветку.
func (e *Engine) advance(rec *Record, today time.Time) Transition {
	gap := common.DaysBetween(rec.LastActivityDate, today)

	var t Transition
	switch {
	case gap < 0:
		// Часы разъехались: дату назад не двигаем
		return TransitionClockSkew
	case gap == 0:
		return TransitionSameDay
	case gap == 1:
		rec.CurrentStreak++
		t = TransitionExtended
	case gap == 2 && rec.FreezeTokens > 0:
		rec.FreezeTokens--
		rec.CurrentStreak++
		t = TransitionFrozen
	default:
		rec.CurrentStreak = 1
		t = TransitionReset
	}

	if rec.CurrentStreak > rec.LongestStreak {
		rec.LongestStreak = rec.CurrentStreak
	}
	rec.LastActivityDate = today
	return t
}

func (e *Engine) result(rec *Record, t Transition, before int) *ActivityResult {
	res := &ActivityResult{
		CurrentStreak: rec.CurrentStreak,
		LongestStreak: rec.LongestStreak,
		FreezeTokens:  rec.FreezeTokens,
		FreezeUsed:    t == TransitionFrozen,
		Changed:       t != TransitionSameDay && t != TransitionClockSkew,
		Transition:    t,
	}
	if res.Changed {
		if m, ok := e.tables.MilestoneCrossed(before, rec.CurrentStreak); ok {
			res.Milestone = &m
		}
	}
	return res
}

func (e *Engine) logTransition(userID int64, res *ActivityResult) {
	fields := log.Fields{
		"user_id":    userID,
		"transition": res.Transition,
		"current":    res.CurrentStreak,
		"longest":    res.LongestStreak,
		"freeze":     res.FreezeTokens,
	}
	if res.Milestone != nil {
		fields["milestone"] = res.Milestone.Days
		log.WithFields(fields).Info("Достигнут рубеж стрика")
		return
	}
	log.WithFields(fields).Debug("Стрик обновлён")
}

// Status возвращает состояние стрика без изменений в хранилище.
func (e *Engine) Status(ctx context.Context, repo Repository, userID int64) (*StatusResult, error) {
	rec, err := repo.GetStreak(ctx, userID)
	if errors.Is(err, common.ErrNotFound) {
		return &StatusResult{Status: StatusNone}, nil
	}
	if err != nil {
		return nil, err
	}

	last := common.FormatDate(rec.LastActivityDate)
	return &StatusResult{
		Status:           e.classify(rec, e.Today()),
		CurrentStreak:    rec.CurrentStreak,
		LongestStreak:    rec.LongestStreak,
		FreezeTokens:     rec.FreezeTokens,
		LastActivityDate: &last,
	}, nil
}

func (e *Engine) classify(rec *Record, today time.Time) Status {
	gap := common.DaysBetween(rec.LastActivityDate, today)
	switch {
	case gap <= 0:
		return StatusActive
	case gap == 1:
		return StatusAtRisk
	case gap == 2 && rec.FreezeTokens > 0:
		return StatusAtRisk
	default:
		return StatusBroken
	}
}

// Refill пополняет заморозки всем пользователям по правилам таблицы наград.
// Вызывается планировщиком.
func (e *Engine) Refill(ctx context.Context, r Refiller) (int64, error) {
	if e.policy.FreezeRefillAmount == 0 || e.policy.FreezeTokenCap == 0 {
		return 0, nil
	}
	n, err := r.RefillFreezeTokens(ctx, e.policy.FreezeRefillAmount, e.policy.FreezeTokenCap)
	if err != nil {
		return 0, err
	}
	log.WithFields(log.Fields{
		"updated": n,
		"amount":  e.policy.FreezeRefillAmount,
		"cap":     e.policy.FreezeTokenCap,
	}).Info("Заморозки пополнены")
	return n, nil
}
