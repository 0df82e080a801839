// Package common — errors.go определяет ошибки, которые используются
// во всех модулях движка геймификации.
// Обработчики HTTP различают их через errors.Is и отдают клиенту
// соответствующий код ответа.
package common

import "errors"

// Ошибки входных данных
var (
	// ErrUnknownActionType — тип действия отсутствует в таблице наград
	ErrUnknownActionType = errors.New("неизвестный тип действия")
	// ErrInvalidUser — идентификатор пользователя некорректен (<= 0)
	ErrInvalidUser = errors.New("некорректный идентификатор пользователя")
	// ErrInvalidAmount — начисление приводит к переполнению счётчика опыта
	ErrInvalidAmount = errors.New("некорректное количество опыта")
)

// Ошибки хранилища
var (
	// ErrStorageConflict — конфликт сериализации или таймаут блокировки, можно повторить
	ErrStorageConflict = errors.New("конфликт транзакции хранилища")
	// ErrStorageUnavailable — база недоступна, можно повторить позже
	ErrStorageUnavailable = errors.New("хранилище недоступно")
	// ErrNotFound — запись не найдена
	ErrNotFound = errors.New("запись не найдена")
)

// Ошибки конфигурации и доступа
var (
	// ErrInvalidRewardTables — таблицы наград не прошли проверку при старте
	ErrInvalidRewardTables = errors.New("некорректные таблицы наград")
	// ErrUnauthorized — неверный или отсутствующий сервисный токен
	ErrUnauthorized = errors.New("требуется авторизация")
)

// IsRetryable сообщает, имеет ли смысл повторить операцию целиком.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStorageConflict) || errors.Is(err, ErrStorageUnavailable)
}
