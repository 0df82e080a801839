package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/lingvo-backend/internal/config"
	"serotonyl.ru/lingvo-backend/internal/storage"
)

// Store реализует storage.Store поверх pgxpool.
//
// Update берёт pg_advisory_xact_lock(user_id) в начале транзакции, а все чтения
// внутри неё идут с FOR UPDATE. Два события одного пользователя выполняются
// строго по очереди, разные пользователи не блокируют друг друга.
type Store struct {
	pool        *pgxpool.Pool
	retries     int
	lockTimeout time.Duration
}

var (
	_ storage.Store = (*Store)(nil)
	_ storage.Tx    = (*pgTx)(nil)
)

// New оборачивает готовый пул.
func New(pool *pgxpool.Pool, retries int) *Store {
	return &Store{pool: pool, retries: retries, lockTimeout: 5 * time.Second}
}

// Open подключается к PostgreSQL по конфигурации и применяет миграции.
func Open(ctx context.Context, cfg *config.Config) (*Store, error) {
	pool, err := NewPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ошибка миграций: %w", err)
	}
	return New(pool, cfg.DBTxRetries), nil
}

// Update выполняет fn в транзакции пользователя, повторяя её при конфликте.
func (s *Store) Update(ctx context.Context, userID int64, fn storage.TxFunc) error {
	return storage.WithRetry(ctx, s.retries, func() error {
		return s.update(ctx, userID, fn)
	})
}

func (s *Store) update(ctx context.Context, userID int64, fn storage.TxFunc) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", classify(err))
	}
	// Откатываем транзакцию, если что-то пошло не так
	defer tx.Rollback(ctx)

	// SET LOCAL не принимает параметры, поэтому set_config
	if _, err := tx.Exec(ctx, "SELECT set_config('lock_timeout', $1, true)",
		fmt.Sprintf("%dms", s.lockTimeout.Milliseconds())); err != nil {
		return fmt.Errorf("ошибка настройки lock_timeout: %w", classify(err))
	}
	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", userID); err != nil {
		return fmt.Errorf("ошибка блокировки пользователя %d: %w", userID, classify(err))
	}

	if err := fn(ctx, &pgTx{tx: tx, forUpdate: true}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("ошибка фиксации транзакции: %w", classify(err))
	}
	return nil
}

// View выполняет fn в транзакции только для чтения.
func (s *Store) View(ctx context.Context, fn storage.TxFunc) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", classify(err))
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx, &pgTx{tx: tx}); err != nil {
		return err
	}
	return classify(tx.Commit(ctx))
}

// RefillFreezeTokens пополняет заморозки всем пользователям до cap.
func (s *Store) RefillFreezeTokens(ctx context.Context, amount, cap int) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE streaks
		SET freeze_tokens = LEAST($2, freeze_tokens + $1), updated_at = NOW()
		WHERE freeze_tokens < $2
	`, amount, cap)
	if err != nil {
		return 0, fmt.Errorf("ошибка пополнения заморозок: %w", classify(err))
	}
	return tag.RowsAffected(), nil
}

// Ping проверяет доступность базы.
func (s *Store) Ping(ctx context.Context) error {
	return classify(s.pool.Ping(ctx))
}

// Close закрывает пул соединений.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
