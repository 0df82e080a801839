// Package streak управляет ежедневными сериями занятий (стриками)
// и токенами заморозки.
// models.go описывает запись стрика и результаты операций.
package streak

import (
	"time"

	"serotonyl.ru/lingvo-backend/internal/rewards"
)

// Record — запись стрика пользователя.
// Создаётся при первой активности со стриком 1.
type Record struct {
	UserID           int64     `db:"user_id" json:"user_id"`
	CurrentStreak    int       `db:"current_streak" json:"current_streak"` // Текущая серия (дней подряд)
	LongestStreak    int       `db:"longest_streak" json:"longest_streak"` // Личный рекорд, >= текущей
	FreezeTokens     int       `db:"freeze_tokens" json:"freeze_tokens"`   // Заморозки: прощают один пропущенный день
	LastActivityDate time.Time `db:"last_activity_date" json:"last_activity_date"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

// Transition — какая ветка правил сработала при записи активности.
type Transition string

const (
	TransitionStarted   Transition = "started"    // Первая активность
	TransitionSameDay   Transition = "same_day"   // Уже занимались сегодня
	TransitionClockSkew Transition = "clock_skew" // Дата последней активности в будущем
	TransitionExtended  Transition = "extended"   // Следующий день подряд
	TransitionFrozen    Transition = "frozen"     // Пропущен день, списана заморозка
	TransitionReset     Transition = "reset"      // Серия прервана, начинаем с 1
)

// ActivityResult — итог record_activity.
type ActivityResult struct {
	CurrentStreak int                `json:"current_streak"`
	LongestStreak int                `json:"longest_streak"`
	FreezeTokens  int                `json:"freeze_tokens"`
	FreezeUsed    bool               `json:"freeze_used"`
	Changed       bool               `json:"changed"`
	Transition    Transition         `json:"transition"`
	Milestone     *rewards.Milestone `json:"milestone_reached,omitempty"`
}

// Status — состояние стрика на сегодня.
type Status string

const (
	StatusActive Status = "active"  // Уже занимались сегодня
	StatusAtRisk Status = "at_risk" // Серия продолжится, если заняться сегодня
	StatusBroken Status = "broken"  // Серия уже прервана
	StatusNone   Status = "none"    // Активности ещё не было
)

// StatusResult — ответ get_streak_status. Хранимые значения не пересчитываются.
type StatusResult struct {
	Status           Status  `json:"status"`
	CurrentStreak    int     `json:"current_streak"`
	LongestStreak    int     `json:"longest_streak"`
	FreezeTokens     int     `json:"freeze_tokens"`
	LastActivityDate *string `json:"last_activity_date,omitempty"`
}
