// Package xp — service.go содержит начисление опыта и вычисление уровня.
package xp

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/lingvo-backend/internal/common"
	"serotonyl.ru/lingvo-backend/internal/rewards"
)

// Engine начисляет опыт по таблице наград.
// Состояния не хранит: всё лежит в Repository текущей транзакции.
type Engine struct {
	tables *rewards.Tables
	now    func() time.Time
}

// NewEngine создаёт движок опыта. now == nil — time.Now.
func NewEngine(tables *rewards.Tables, now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{tables: tables, now: now}
}

// Award начисляет опыт за действие.
//
// Алгоритм:
//  1. Ищем опыт за действие в таблице (нет — ErrUnknownActionType)
//  2. Читаем прогресс; если записи нет — создаём с 0 опыта и 1 уровнем
//  3. Прибавляем опыт и заново вычисляем уровень по порогам
//  4. Сохраняем прогресс и запись журнала
//
// Фиксация — на границе транзакции вызывающего.
func (e *Engine) Award(ctx context.Context, repo Repository, userID int64, action, referenceID string) (*AwardResult, error) {
	amount, ok := e.tables.XPFor(action)
	if !ok {
		return nil, fmt.Errorf("%w: %q", common.ErrUnknownActionType, action)
	}

	p, err := e.loadOrCreate(ctx, repo, userID)
	if err != nil {
		return nil, err
	}

	total, ok := common.AddSafe(p.TotalXP, amount)
	if !ok {
		return nil, fmt.Errorf("%w: переполнение опыта (user_id=%d)", common.ErrInvalidAmount, userID)
	}

	previous := p.CurrentLevel
	now := e.now().UTC()
	p.TotalXP = total
	p.CurrentLevel = e.tables.LevelFor(total)
	p.UpdatedAt = now

	if err := repo.UpdateProgression(ctx, p); err != nil {
		return nil, err
	}
	if err := repo.AppendXPEvent(ctx, &Event{
		UserID:      userID,
		ActionType:  action,
		Amount:      amount,
		ReferenceID: referenceID,
		CreatedAt:   now,
	}); err != nil {
		return nil, err
	}

	res := &AwardResult{
		ActionType:    action,
		AwardedAmount: amount,
		TotalXP:       p.TotalXP,
		CurrentLevel:  p.CurrentLevel,
		LeveledUp:     p.CurrentLevel > previous,
		PreviousLevel: previous,
	}

	log.WithFields(log.Fields{
		"user_id":       userID,
		"action":        action,
		"amount":        amount,
		"total":         p.TotalXP,
		"current_level": p.CurrentLevel,
	}).Debug("Опыт начислен")

	return res, nil
}

// Progression возвращает прогресс пользователя с расстоянием до следующего уровня.
// Пользователь без записи считается новичком: 0 опыта, 1 уровень.
func (e *Engine) Progression(ctx context.Context, repo Repository, userID int64) (*Summary, error) {
	p, err := repo.GetProgression(ctx, userID)
	if errors.Is(err, common.ErrNotFound) {
		p = &Progression{UserID: userID, TotalXP: 0, CurrentLevel: 1}
	} else if err != nil {
		return nil, err
	}

	s := &Summary{Progression: *p}
	if p.CurrentLevel < e.tables.MaxLevel() {
		next := p.CurrentLevel + 1
		threshold, _ := e.tables.Threshold(next)
		s.NextLevel = &next
		s.NextLevelXP = &threshold
		s.XPToNextLevel = threshold - p.TotalXP
	}
	return s, nil
}

func (e *Engine) loadOrCreate(ctx context.Context, repo Repository, userID int64) (*Progression, error) {
	p, err := repo.GetProgression(ctx, userID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}

	now := e.now().UTC()
	p = &Progression{
		UserID:       userID,
		TotalXP:      0,
		CurrentLevel: 1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := repo.CreateProgression(ctx, p); err != nil {
		return nil, err
	}
	log.WithField("user_id", userID).Debug("Создан прогресс пользователя")
	return p, nil
}
