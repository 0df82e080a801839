package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

// Migrate создаёт таблицу schema_migrations и применяет встроенные миграции по порядку.
// Уже применённые версии пропускаются.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMPTZ DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("ошибка создания таблицы миграций: %w", classify(err))
	}

	for _, m := range migrations {
		applied, err := execMigrationSQL(ctx, pool, m.version, m.sql)
		if err != nil {
			return fmt.Errorf("миграция %d: %w", m.version, err)
		}
		if applied {
			log.Infof("Миграция %d применена", m.version)
		}
	}
	return nil
}

// execMigrationSQL выполняет одну миграцию в транзакции.
// Если запрос упадёт, транзакция откатится автоматически.
func execMigrationSQL(ctx context.Context, pool *pgxpool.Pool, version int, sql string) (bool, error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("ошибка начала транзакции: %w", classify(err))
	}
	defer tx.Rollback(ctx)

	// Параллельный старт нескольких экземпляров: миграции по очереди
	if _, err := tx.Exec(ctx, "LOCK TABLE schema_migrations IN EXCLUSIVE MODE"); err != nil {
		return false, fmt.Errorf("ошибка блокировки миграций: %w", classify(err))
	}

	var exists bool
	err = tx.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)", version,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("ошибка проверки миграции: %w", classify(err))
	}
	if exists {
		return false, nil
	}

	if _, err := tx.Exec(ctx, sql); err != nil {
		return false, fmt.Errorf("ошибка выполнения миграции %d: %w", version, err)
	}
	if _, err := tx.Exec(ctx,
		"INSERT INTO schema_migrations (version) VALUES ($1)", version,
	); err != nil {
		return false, fmt.Errorf("ошибка записи версии миграции: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, classify(err)
	}
	return true, nil
}

// SQL-миграции встроены в код для упрощения деплоя.
var migrations = []struct {
	version int
	sql     string
}{
	{1, migration001Progression},
	{2, migration002Streaks},
	{3, migration003Achievements},
}

var migration001Progression = `
CREATE TABLE IF NOT EXISTS user_progression (
    user_id BIGINT PRIMARY KEY CHECK (user_id > 0),
    total_xp BIGINT NOT NULL DEFAULT 0 CHECK (total_xp >= 0),
    current_level INTEGER NOT NULL DEFAULT 1 CHECK (current_level >= 1),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS xp_events (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL REFERENCES user_progression(user_id),
    action_type VARCHAR(64) NOT NULL,
    amount BIGINT NOT NULL CHECK (amount > 0),
    reference_id VARCHAR(255) NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_xp_events_user_action ON xp_events(user_id, action_type);
CREATE INDEX IF NOT EXISTS idx_xp_events_created_at ON xp_events(created_at DESC);
`

var migration002Streaks = `
CREATE TABLE IF NOT EXISTS streaks (
    user_id BIGINT PRIMARY KEY CHECK (user_id > 0),
    current_streak INTEGER NOT NULL CHECK (current_streak >= 0),
    longest_streak INTEGER NOT NULL CHECK (longest_streak >= current_streak),
    freeze_tokens INTEGER NOT NULL DEFAULT 0 CHECK (freeze_tokens >= 0),
    last_activity_date DATE NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

var migration003Achievements = `
CREATE TABLE IF NOT EXISTS achievement_unlocks (
    user_id BIGINT NOT NULL CHECK (user_id > 0),
    achievement_id VARCHAR(64) NOT NULL,
    unlocked_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (user_id, achievement_id)
);
`
