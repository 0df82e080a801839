package sqlite

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	log "github.com/sirupsen/logrus"
)

// migrate применяет встроенные миграции по порядку, как и postgres-хранилище.
// Время хранится в миллисекундах UTC, календарные даты — текстом 2006-01-02.
func migrate(db *sqlx.DB) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at INTEGER NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("ошибка создания таблицы миграций: %w", classify(err))
	}

	for _, m := range migrations {
		applied, err := execMigration(db, m.version, m.sql)
		if err != nil {
			return fmt.Errorf("миграция %d: %w", m.version, err)
		}
		if applied {
			log.Debugf("SQLite: миграция %d применена", m.version)
		}
	}
	return nil
}

func execMigration(db *sqlx.DB, version int, sql string) (bool, error) {
	tx, err := db.Beginx()
	if err != nil {
		return false, fmt.Errorf("ошибка начала транзакции: %w", classify(err))
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.Get(&exists, "SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = ?)", version); err != nil {
		return false, fmt.Errorf("ошибка проверки миграции: %w", classify(err))
	}
	if exists {
		return false, nil
	}

	if _, err := tx.Exec(sql); err != nil {
		return false, fmt.Errorf("ошибка выполнения миграции %d: %w", version, err)
	}
	if _, err := tx.Exec("INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)", version, nowMillis()); err != nil {
		return false, fmt.Errorf("ошибка записи версии миграции: %w", err)
	}
	return true, classify(tx.Commit())
}

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
    user_id INTEGER PRIMARY KEY CHECK (user_id > 0),
    total_xp INTEGER NOT NULL DEFAULT 0 CHECK (total_xp >= 0),
    current_level INTEGER NOT NULL DEFAULT 1 CHECK (current_level >= 1),
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS xp_events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id INTEGER NOT NULL REFERENCES user_progression(user_id),
    action_type TEXT NOT NULL,
    amount INTEGER NOT NULL CHECK (amount > 0),
    reference_id TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_xp_events_user_action ON xp_events(user_id, action_type);
`

var migration002Streaks = `
CREATE TABLE IF NOT EXISTS streaks (
    user_id INTEGER PRIMARY KEY CHECK (user_id > 0),
    current_streak INTEGER NOT NULL CHECK (current_streak >= 0),
    longest_streak INTEGER NOT NULL CHECK (longest_streak >= current_streak),
    freeze_tokens INTEGER NOT NULL DEFAULT 0 CHECK (freeze_tokens >= 0),
    last_activity_date TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);
`

var migration003Achievements = `
CREATE TABLE IF NOT EXISTS achievement_unlocks (
    user_id INTEGER NOT NULL CHECK (user_id > 0),
    achievement_id TEXT NOT NULL,
    unlocked_at INTEGER NOT NULL,
    PRIMARY KEY (user_id, achievement_id)
);
`
