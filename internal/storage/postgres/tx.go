package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"serotonyl.ru/lingvo-backend/internal/features/achievements"
	"serotonyl.ru/lingvo-backend/internal/features/streak"
	"serotonyl.ru/lingvo-backend/internal/features/xp"
)

// pgTx — репозитории поверх одной транзакции pgx.
type pgTx struct {
	tx        pgx.Tx
	forUpdate bool // чтения с блокировкой строк (только в Update)
}

func (t *pgTx) lockClause() string {
	if t.forUpdate {
		return " FOR UPDATE"
	}
	return ""
}

// --- Опыт ---

func (t *pgTx) GetProgression(ctx context.Context, userID int64) (*xp.Progression, error) {
	query := `
		SELECT user_id, total_xp, current_level, created_at, updated_at
		FROM user_progression
		WHERE user_id = $1` + t.lockClause()

	var p xp.Progression
	err := t.tx.QueryRow(ctx, query, userID).Scan(
		&p.UserID, &p.TotalXP, &p.CurrentLevel, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("прогресс не найден (user_id=%d): %w", userID, classify(err))
	}
	return &p, nil
}

func (t *pgTx) CreateProgression(ctx context.Context, p *xp.Progression) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO user_progression (user_id, total_xp, current_level, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`, p.UserID, p.TotalXP, p.CurrentLevel, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("ошибка создания прогресса: %w", classify(err))
	}
	return nil
}

func (t *pgTx) UpdateProgression(ctx context.Context, p *xp.Progression) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE user_progression
		SET total_xp = $2, current_level = $3, updated_at = $4
		WHERE user_id = $1
	`, p.UserID, p.TotalXP, p.CurrentLevel, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("ошибка обновления прогресса: %w", classify(err))
	}
	return nil
}

func (t *pgTx) AppendXPEvent(ctx context.Context, e *xp.Event) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO xp_events (user_id, action_type, amount, reference_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, e.UserID, e.ActionType, e.Amount, e.ReferenceID, e.CreatedAt).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("ошибка записи журнала опыта: %w", classify(err))
	}
	return nil
}

func (t *pgTx) CountXPEvents(ctx context.Context, userID int64) (map[string]int64, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT action_type, COUNT(*)
		FROM xp_events
		WHERE user_id = $1
		GROUP BY action_type
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("ошибка подсчёта действий: %w", classify(err))
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var action string
		var n int64
		if err := rows.Scan(&action, &n); err != nil {
			return nil, fmt.Errorf("ошибка сканирования: %w", err)
		}
		counts[action] = n
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return counts, nil
}

// --- Стрики ---

func (t *pgTx) GetStreak(ctx context.Context, userID int64) (*streak.Record, error) {
	query := `
		SELECT user_id, current_streak, longest_streak, freeze_tokens,
		       last_activity_date, created_at, updated_at
		FROM streaks
		WHERE user_id = $1` + t.lockClause()

	var r streak.Record
	err := t.tx.QueryRow(ctx, query, userID).Scan(
		&r.UserID, &r.CurrentStreak, &r.LongestStreak, &r.FreezeTokens,
		&r.LastActivityDate, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("стрик не найден (user_id=%d): %w", userID, classify(err))
	}
	return &r, nil
}

// DATE кодируется pgx по году, месяцу и дню значения, часовой пояс не влияет.
func (t *pgTx) CreateStreak(ctx context.Context, r *streak.Record) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO streaks (user_id, current_streak, longest_streak, freeze_tokens,
		                     last_activity_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, r.UserID, r.CurrentStreak, r.LongestStreak, r.FreezeTokens,
		r.LastActivityDate, r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("ошибка создания стрика: %w", classify(err))
	}
	return nil
}

func (t *pgTx) UpdateStreak(ctx context.Context, r *streak.Record) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE streaks
		SET current_streak = $2, longest_streak = $3, freeze_tokens = $4,
		    last_activity_date = $5, updated_at = $6
		WHERE user_id = $1
	`, r.UserID, r.CurrentStreak, r.LongestStreak, r.FreezeTokens,
		r.LastActivityDate, r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("ошибка обновления стрика: %w", classify(err))
	}
	return nil
}

// --- Ачивки ---

func (t *pgTx) ListUnlocks(ctx context.Context, userID int64) ([]achievements.Unlock, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT user_id, achievement_id, unlocked_at
		FROM achievement_unlocks
		WHERE user_id = $1
		ORDER BY unlocked_at, achievement_id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения ачивок: %w", classify(err))
	}
	unlocks, err := pgx.CollectRows(rows, pgx.RowToStructByName[achievements.Unlock])
	if err != nil {
		return nil, fmt.Errorf("ошибка сканирования ачивок: %w", classify(err))
	}
	return unlocks, nil
}

func (t *pgTx) InsertUnlock(ctx context.Context, u *achievements.Unlock) (bool, error) {
	tag, err := t.tx.Exec(ctx, `
		INSERT INTO achievement_unlocks (user_id, achievement_id, unlocked_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, achievement_id) DO NOTHING
	`, u.UserID, u.AchievementID, u.UnlockedAt)
	if err != nil {
		return false, fmt.Errorf("ошибка открытия ачивки: %w", classify(err))
	}
	return tag.RowsAffected() == 1, nil
}
