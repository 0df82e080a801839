package postgres

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"serotonyl.ru/lingvo-backend/internal/common"
)

// Коды SQLSTATE, после которых транзакцию можно повторить
var conflictCodes = map[string]bool{
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
	"55P03": true, // lock_not_available (lock_timeout)
	"23505": true, // unique_violation: гонка при создании записи
}

// Коды SQLSTATE, означающие недоступность сервера
var unavailableCodes = map[string]bool{
	"53300": true, // too_many_connections
	"57P01": true, // admin_shutdown
	"57P02": true, // crash_shutdown
	"57P03": true, // cannot_connect_now
}

// classify переводит ошибки pgx в ошибки хранилища из common.
// Исходная ошибка сохраняется в цепочке.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %w", common.ErrNotFound, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case conflictCodes[pgErr.Code]:
			return fmt.Errorf("%w: %w", common.ErrStorageConflict, err)
		case unavailableCodes[pgErr.Code]:
			return fmt.Errorf("%w: %w", common.ErrStorageUnavailable, err)
		}
		return err
	}

	var connErr *pgconn.ConnectError
	var netErr net.Error
	if errors.As(err, &connErr) || errors.As(err, &netErr) || pgconn.Timeout(err) {
		return fmt.Errorf("%w: %w", common.ErrStorageUnavailable, err)
	}
	return err
}
