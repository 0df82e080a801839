// Package streak — repository.go описывает доступ к таблице streaks.
package streak

import "context"

// Repository — операции со стриком одного пользователя внутри его транзакции.
type Repository interface {
	// GetStreak возвращает запись или common.ErrNotFound.
	GetStreak(ctx context.Context, userID int64) (*Record, error)
	CreateStreak(ctx context.Context, r *Record) error
	UpdateStreak(ctx context.Context, r *Record) error
}

// Refiller пополняет заморозки всем пользователям одним запросом.
type Refiller interface {
	// RefillFreezeTokens ставит freeze_tokens = min(cap, freeze_tokens + amount)
	// и возвращает число изменённых записей.
	RefillFreezeTokens(ctx context.Context, amount, cap int) (int64, error)
}
