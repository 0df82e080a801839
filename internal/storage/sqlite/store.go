// Package sqlite — хранилище движка геймификации на SQLite (modernc, без cgo).
// Используется для локальной разработки и тестов.
//
// Соединение одно, а транзакции открываются как BEGIN IMMEDIATE, поэтому
// все записи выполняются строго по очереди, в том числе для разных пользователей.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"serotonyl.ru/lingvo-backend/internal/storage"
)

// MemoryPath — база в памяти (живёт, пока открыт Store).
const MemoryPath = ":memory:"

// Store реализует storage.Store поверх SQLite.
type Store struct {
	db      *sqlx.DB
	retries int
}

var (
	_ storage.Store = (*Store)(nil)
	_ storage.Tx    = (*sqliteTx)(nil)
)

// Open открывает (или создаёт) базу по пути и применяет миграции.
func Open(path string, retries int) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("путь к SQLite не задан")
	}
	if path != MemoryPath {
		path = filepath.Clean(path)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("не удалось создать каталог базы: %w", err)
		}
	}

	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_txlock=immediate"
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия SQLite: %w", err)
	}

	// SQLite не поддерживает несколько писателей; для :memory: одно соединение = одна база
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("SQLite недоступна: %w", classify(err))
	}
	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ошибка миграций: %w", err)
	}

	log.WithField("path", path).Info("SQLite открыта")
	return &Store{db: db, retries: retries}, nil
}

// Update выполняет fn в транзакции BEGIN IMMEDIATE.
func (s *Store) Update(ctx context.Context, userID int64, fn storage.TxFunc) error {
	return storage.WithRetry(ctx, s.retries, func() error {
		return s.run(ctx, fn)
	})
}

// View выполняет fn в транзакции; изменения всегда откатываются.
func (s *Store) View(ctx context.Context, fn storage.TxFunc) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", classify(err))
	}
	defer tx.Rollback()

	return fn(ctx, &sqliteTx{tx: tx})
}

func (s *Store) run(ctx context.Context, fn storage.TxFunc) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", classify(err))
	}
	// Откатываем транзакцию, если что-то пошло не так
	defer tx.Rollback()

	if err := fn(ctx, &sqliteTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("ошибка фиксации транзакции: %w", classify(err))
	}
	return nil
}

// RefillFreezeTokens пополняет заморозки всем пользователям до cap.
func (s *Store) RefillFreezeTokens(ctx context.Context, amount, cap int) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE streaks
		SET freeze_tokens = MIN(?, freeze_tokens + ?), updated_at = ?
		WHERE freeze_tokens < ?
	`, cap, amount, nowMillis(), cap)
	if err != nil {
		return 0, fmt.Errorf("ошибка пополнения заморозок: %w", classify(err))
	}
	return res.RowsAffected()
}

// Ping проверяет доступность базы.
func (s *Store) Ping(ctx context.Context) error {
	return classify(s.db.PingContext(ctx))
}

// Close закрывает базу.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB — низкоуровневый доступ для тестов.
func (s *Store) DB() *sql.DB {
	return s.db.DB
}
