// Package xp — repository.go описывает доступ к таблицам user_progression и xp_events.
package xp

import "context"

// Repository — операции хранилища для опыта.
// Передаётся движку внутри транзакции пользователя; реализации — в internal/storage.
type Repository interface {
	// GetProgression возвращает прогресс или common.ErrNotFound.
	GetProgression(ctx context.Context, userID int64) (*Progression, error)
	CreateProgression(ctx context.Context, p *Progression) error
	UpdateProgression(ctx context.Context, p *Progression) error
	// AppendXPEvent дописывает запись журнала и заполняет e.ID.
	AppendXPEvent(ctx context.Context, e *Event) error
	// CountXPEvents — число начислений по каждому типу действия.
	CountXPEvents(ctx context.Context, userID int64) (map[string]int64, error)
}
