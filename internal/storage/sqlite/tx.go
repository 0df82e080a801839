package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"serotonyl.ru/lingvo-backend/internal/common"
	"serotonyl.ru/lingvo-backend/internal/features/achievements"
	"serotonyl.ru/lingvo-backend/internal/features/streak"
	"serotonyl.ru/lingvo-backend/internal/features/xp"
)

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(v int64) time.Time {
	return time.UnixMilli(v).UTC()
}

func nowMillis() int64 {
	return toMillis(time.Now())
}

// Строки таблиц в формате хранения SQLite
type progressionRow struct {
	UserID       int64 `db:"user_id"`
	TotalXP      int64 `db:"total_xp"`
	CurrentLevel int   `db:"current_level"`
	CreatedAt    int64 `db:"created_at"`
	UpdatedAt    int64 `db:"updated_at"`
}

type streakRow struct {
	UserID           int64  `db:"user_id"`
	CurrentStreak    int    `db:"current_streak"`
	LongestStreak    int    `db:"longest_streak"`
	FreezeTokens     int    `db:"freeze_tokens"`
	LastActivityDate string `db:"last_activity_date"`
	CreatedAt        int64  `db:"created_at"`
	UpdatedAt        int64  `db:"updated_at"`
}

type unlockRow struct {
	UserID        int64  `db:"user_id"`
	AchievementID string `db:"achievement_id"`
	UnlockedAt    int64  `db:"unlocked_at"`
}

type countRow struct {
	ActionType string `db:"action_type"`
	N          int64  `db:"n"`
}

// sqliteTx — репозитории поверх одной транзакции sqlx.
type sqliteTx struct {
	tx *sqlx.Tx
}

// --- Опыт ---

func (t *sqliteTx) GetProgression(ctx context.Context, userID int64) (*xp.Progression, error) {
	var row progressionRow
	err := t.tx.GetContext(ctx, &row, `
		SELECT user_id, total_xp, current_level, created_at, updated_at
		FROM user_progression WHERE user_id = ?
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("прогресс не найден (user_id=%d): %w", userID, classify(err))
	}
	return &xp.Progression{
		UserID:       row.UserID,
		TotalXP:      row.TotalXP,
		CurrentLevel: row.CurrentLevel,
		CreatedAt:    fromMillis(row.CreatedAt),
		UpdatedAt:    fromMillis(row.UpdatedAt),
	}, nil
}

func (t *sqliteTx) CreateProgression(ctx context.Context, p *xp.Progression) error {
	_, err := t.tx.NamedExecContext(ctx, `
		INSERT INTO user_progression (user_id, total_xp, current_level, created_at, updated_at)
		VALUES (:user_id, :total_xp, :current_level, :created_at, :updated_at)
	`, progressionRow{
		UserID:       p.UserID,
		TotalXP:      p.TotalXP,
		CurrentLevel: p.CurrentLevel,
		CreatedAt:    toMillis(p.CreatedAt),
		UpdatedAt:    toMillis(p.UpdatedAt),
	})
	if err != nil {
		return fmt.Errorf("ошибка создания прогресса: %w", classify(err))
	}
	return nil
}

func (t *sqliteTx) UpdateProgression(ctx context.Context, p *xp.Progression) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE user_progression
		SET total_xp = ?, current_level = ?, updated_at = ?
		WHERE user_id = ?
	`, p.TotalXP, p.CurrentLevel, toMillis(p.UpdatedAt), p.UserID)
	if err != nil {
		return fmt.Errorf("ошибка обновления прогресса: %w", classify(err))
	}
	return nil
}

func (t *sqliteTx) AppendXPEvent(ctx context.Context, e *xp.Event) error {
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO xp_events (user_id, action_type, amount, reference_id, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, e.UserID, e.ActionType, e.Amount, e.ReferenceID, toMillis(e.CreatedAt))
	if err != nil {
		return fmt.Errorf("ошибка записи журнала опыта: %w", classify(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("ошибка получения id записи: %w", err)
	}
	e.ID = id
	return nil
}

func (t *sqliteTx) CountXPEvents(ctx context.Context, userID int64) (map[string]int64, error) {
	var rows []countRow
	err := t.tx.SelectContext(ctx, &rows, `
		SELECT action_type, COUNT(*) AS n
		FROM xp_events
		WHERE user_id = ?
		GROUP BY action_type
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("ошибка подсчёта действий: %w", classify(err))
	}
	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.ActionType] = r.N
	}
	return counts, nil
}

// --- Стрики ---

func (t *sqliteTx) GetStreak(ctx context.Context, userID int64) (*streak.Record, error) {
	var row streakRow
	err := t.tx.GetContext(ctx, &row, `
		SELECT user_id, current_streak, longest_streak, freeze_tokens,
		       last_activity_date, created_at, updated_at
		FROM streaks WHERE user_id = ?
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("стрик не найден (user_id=%d): %w", userID, classify(err))
	}
	day, err := common.ParseDate(row.LastActivityDate, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("некорректная дата стрика %q: %w", row.LastActivityDate, err)
	}
	return &streak.Record{
		UserID:           row.UserID,
		CurrentStreak:    row.CurrentStreak,
		LongestStreak:    row.LongestStreak,
		FreezeTokens:     row.FreezeTokens,
		LastActivityDate: day,
		CreatedAt:        fromMillis(row.CreatedAt),
		UpdatedAt:        fromMillis(row.UpdatedAt),
	}, nil
}

func (t *sqliteTx) CreateStreak(ctx context.Context, r *streak.Record) error {
	_, err := t.tx.NamedExecContext(ctx, `
		INSERT INTO streaks (user_id, current_streak, longest_streak, freeze_tokens,
		                     last_activity_date, created_at, updated_at)
		VALUES (:user_id, :current_streak, :longest_streak, :freeze_tokens,
		        :last_activity_date, :created_at, :updated_at)
	`, toStreakRow(r))
	if err != nil {
		return fmt.Errorf("ошибка создания стрика: %w", classify(err))
	}
	return nil
}

func (t *sqliteTx) UpdateStreak(ctx context.Context, r *streak.Record) error {
	_, err := t.tx.NamedExecContext(ctx, `
		UPDATE streaks
		SET current_streak = :current_streak, longest_streak = :longest_streak,
		    freeze_tokens = :freeze_tokens, last_activity_date = :last_activity_date,
		    updated_at = :updated_at
		WHERE user_id = :user_id
	`, toStreakRow(r))
	if err != nil {
		return fmt.Errorf("ошибка обновления стрика: %w", classify(err))
	}
	return nil
}

func toStreakRow(r *streak.Record) streakRow {
	return streakRow{
		UserID:           r.UserID,
		CurrentStreak:    r.CurrentStreak,
		LongestStreak:    r.LongestStreak,
		FreezeTokens:     r.FreezeTokens,
		LastActivityDate: common.FormatDate(r.LastActivityDate),
		CreatedAt:        toMillis(r.CreatedAt),
		UpdatedAt:        toMillis(r.UpdatedAt),
	}
}

// --- Ачивки ---

func (t *sqliteTx) ListUnlocks(ctx context.Context, userID int64) ([]achievements.Unlock, error) {
	var rows []unlockRow
	err := t.tx.SelectContext(ctx, &rows, `
		SELECT user_id, achievement_id, unlocked_at
		FROM achievement_unlocks
		WHERE user_id = ?
		ORDER BY unlocked_at, achievement_id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения ачивок: %w", classify(err))
	}
	out := make([]achievements.Unlock, 0, len(rows))
	for _, r := range rows {
		out = append(out, achievements.Unlock{
			UserID:        r.UserID,
			AchievementID: r.AchievementID,
			UnlockedAt:    fromMillis(r.UnlockedAt),
		})
	}
	return out, nil
}

func (t *sqliteTx) InsertUnlock(ctx context.Context, u *achievements.Unlock) (bool, error) {
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO achievement_unlocks (user_id, achievement_id, unlocked_at)
		VALUES (?, ?, ?)
		ON CONFLICT (user_id, achievement_id) DO NOTHING
	`, u.UserID, u.AchievementID, toMillis(u.UnlockedAt))
	if err != nil {
		return false, fmt.Errorf("ошибка открытия ачивки: %w", classify(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
