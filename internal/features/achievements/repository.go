// Package achievements — repository.go описывает доступ к таблице achievement_unlocks.
package achievements

import "context"

// Repository — операции с открытыми ачивками пользователя.
type Repository interface {
	// ListUnlocks возвращает открытые ачивки пользователя.
	ListUnlocks(ctx context.Context, userID int64) ([]Unlock, error)
	// InsertUnlock вставляет запись, если её ещё нет.
	// inserted == false — ачивка уже была открыта (повторная вставка не ошибка).
	InsertUnlock(ctx context.Context, u *Unlock) (inserted bool, err error)
}
