// Package xp управляет опытом и уровнями учеников.
// models.go описывает прогресс пользователя, журнал начислений и результат начисления.
package xp

import "time"

// Progression — прогресс пользователя.
// У каждого ученика ровно одна запись, создаётся при первом начислении.
type Progression struct {
	UserID       int64     `db:"user_id" json:"user_id"`
	TotalXP      int64     `db:"total_xp" json:"total_xp"`           // Всего опыта (не убывает)
	CurrentLevel int       `db:"current_level" json:"current_level"` // Всегда соответствует total_xp
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Event — одна запись журнала начислений.
// По журналу считаются количества действий для условий ачивок.
type Event struct {
	ID          int64     `db:"id" json:"id"`
	UserID      int64     `db:"user_id" json:"user_id"`
	ActionType  string    `db:"action_type" json:"action_type"`
	Amount      int64     `db:"amount" json:"amount"`             // Всегда положительное
	ReferenceID string    `db:"reference_id" json:"reference_id"` // ID урока, теста и т.п.
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// AwardResult — итог одного начисления.
type AwardResult struct {
	ActionType    string `json:"action_type"`
	AwardedAmount int64  `json:"awarded_amount"`
	TotalXP       int64  `json:"total_xp"`
	CurrentLevel  int    `json:"current_level"`
	LeveledUp     bool   `json:"leveled_up"`
	PreviousLevel int    `json:"previous_level"`
}

// Summary — прогресс для отображения: текущий уровень и сколько до следующего.
type Summary struct {
	Progression
	NextLevel     *int   `json:"next_level,omitempty"`
	NextLevelXP   *int64 `json:"next_level_xp,omitempty"`
	XPToNextLevel int64  `json:"xp_to_next_level"`
}
