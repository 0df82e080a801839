// Package storage описывает транзакционное хранилище движка геймификации.
//
// Все записи одного события выполняются в одной транзакции, привязанной
// к пользователю: вызовы для одного пользователя сериализуются, для разных
// не блокируют друг друга. Реализации: postgres (боевая) и sqlite (разработка, тесты).
package storage

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/lingvo-backend/internal/common"
	"serotonyl.ru/lingvo-backend/internal/features/achievements"
	"serotonyl.ru/lingvo-backend/internal/features/streak"
	"serotonyl.ru/lingvo-backend/internal/features/xp"
)

// Tx — репозитории, работающие внутри одной транзакции.
type Tx interface {
	xp.Repository
	streak.Repository
	achievements.Repository
}

// TxFunc — тело транзакции. Ошибка откатывает все изменения.
// При конфликте функция может быть вызвана повторно, поэтому не должна
// иметь побочных эффектов вне Tx.
type TxFunc func(ctx context.Context, tx Tx) error

// Store — транзакционное хранилище.
type Store interface {
	// Update выполняет fn в транзакции с эксклюзивной блокировкой пользователя.
	Update(ctx context.Context, userID int64, fn TxFunc) error
	// View выполняет fn в транзакции только для чтения.
	View(ctx context.Context, fn TxFunc) error
	streak.Refiller
	Ping(ctx context.Context) error
	Close() error
}

// Паузы между повторами транзакции при конфликте
var retryBackoff = []time.Duration{
	10 * time.Millisecond,
	25 * time.Millisecond,
	50 * time.Millisecond,
	100 * time.Millisecond,
}

// WithRetry выполняет fn и повторяет её до retries раз при ErrStorageConflict.
// Прочие ошибки возвращаются сразу.
func WithRetry(ctx context.Context, retries int, fn func() error) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = fn()
		if err == nil || !errors.Is(err, common.ErrStorageConflict) || attempt >= retries {
			return err
		}

		pause := retryBackoff[len(retryBackoff)-1]
		if attempt < len(retryBackoff) {
			pause = retryBackoff[attempt]
		}
		log.WithError(err).WithField("attempt", attempt+1).Debug("Конфликт транзакции, повторяем")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pause):
		}
	}
}
