// Package gamification объединяет движки опыта, ачивок и стриков:
// одно событие ученика обрабатывается в одной транзакции пользователя.
package gamification

import (
	"serotonyl.ru/lingvo-backend/internal/features/achievements"
	"serotonyl.ru/lingvo-backend/internal/features/streak"
	"serotonyl.ru/lingvo-backend/internal/features/xp"
)

// Event — действие ученика.
type Event struct {
	Type        string         `json:"event_type"`
	ReferenceID string         `json:"reference_id,omitempty"`
	Context     map[string]any `json:"context,omitempty"`
}

// EventResult — суммарный итог process_event.
type EventResult struct {
	UserID       int64                  `json:"user_id"`
	EventType    string                 `json:"event_type"`
	XP           *xp.AwardResult        `json:"xp"`
	Achievements []achievements.Entry   `json:"achievements"`
	Streak       *streak.ActivityResult `json:"streak,omitempty"`
	MilestoneXP  *xp.AwardResult        `json:"milestone_xp,omitempty"`
}

// TotalAwarded — весь опыт, начисленный событием (включая бонус за рубеж).
func (r *EventResult) TotalAwarded() int64 {
	total := r.XP.AwardedAmount
	if r.MilestoneXP != nil {
		total += r.MilestoneXP.AwardedAmount
	}
	return total
}

// Level — уровень после обработки события.
func (r *EventResult) Level() int {
	if r.MilestoneXP != nil {
		return r.MilestoneXP.CurrentLevel
	}
	return r.XP.CurrentLevel
}
