// Package achievements проверяет и открывает ачивки учеников.
// models.go описывает записи об открытии и ответы API.
package achievements

import (
	"time"

	"serotonyl.ru/lingvo-backend/internal/rewards"
)

// Unlock — факт открытия ачивки. Пара (user_id, achievement_id) уникальна.
type Unlock struct {
	UserID        int64     `db:"user_id"`
	AchievementID string    `db:"achievement_id"`
	UnlockedAt    time.Time `db:"unlocked_at"`
}

// Entry — ачивка из каталога вместе с отметкой об открытии.
type Entry struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Rarity      rewards.Rarity `json:"rarity"`
	UnlockedAt  *time.Time     `json:"unlocked_at,omitempty"`
}

// Overview — ответ get_user_achievements.
type Overview struct {
	Unlocked       []Entry `json:"unlocked"`
	Locked         []Entry `json:"locked,omitempty"`
	TotalUnlocked  int     `json:"total_unlocked"`
	TotalAvailable int     `json:"total_available"`
}

// Stats — агрегаты пользователя, на которых проверяются условия.
type Stats struct {
	TotalXP       int64
	Level         int
	CurrentStreak int
	LongestStreak int
	EventCounts   map[string]int64
}

func newEntry(a rewards.Achievement, unlockedAt *time.Time) Entry {
	return Entry{
		ID:          a.ID,
		Name:        a.Name,
		Description: a.Description,
		Rarity:      a.Rarity,
		UnlockedAt:  unlockedAt,
	}
}
