// Package achievements — service.go содержит проверку каталога и открытие ачивок.
package achievements

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/lingvo-backend/internal/rewards"
)

// Engine проверяет каталог ачивок из таблиц наград.
type Engine struct {
	tables *rewards.Tables
	now    func() time.Time
}

// NewEngine создаёт движок ачивок. now == nil — time.Now.
func NewEngine(tables *rewards.Tables, now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{tables: tables, now: now}
}

// CheckAndUnlock проходит каталог в порядке объявления, пропускает уже открытые
// и открывает те, чьё условие выполнено для события и статистики.
// Возвращает только ачивки, открытые этим вызовом.
func (e *Engine) CheckAndUnlock(ctx context.Context, repo Repository, userID int64, eventType string, evContext map[string]any, stats Stats) ([]Entry, error) {
	unlocks, err := repo.ListUnlocks(ctx, userID)
	if err != nil {
		return nil, err
	}
	have := make(map[string]struct{}, len(unlocks))
	for _, u := range unlocks {
		have[u.AchievementID] = struct{}{}
	}

	facts := rewards.Facts{
		EventType:     eventType,
		Context:       evContext,
		TotalXP:       stats.TotalXP,
		Level:         stats.Level,
		CurrentStreak: stats.CurrentStreak,
		LongestStreak: stats.LongestStreak,
		EventCounts:   stats.EventCounts,
	}

	var unlocked []Entry
	for _, a := range e.tables.Achievements() {
		if _, ok := have[a.ID]; ok {
			continue
		}
		if !a.Satisfied(facts) {
			continue
		}

		at := e.now().UTC()
		inserted, err := repo.InsertUnlock(ctx, &Unlock{UserID: userID, AchievementID: a.ID, UnlockedAt: at})
		if err != nil {
			return nil, err
		}
		if !inserted {
			// Открыта параллельно другой транзакцией
			continue
		}
		have[a.ID] = struct{}{}
		unlocked = append(unlocked, newEntry(a, &at))

		log.WithFields(log.Fields{
			"user_id":     userID,
			"achievement": a.ID,
			"rarity":      a.Rarity,
			"event":       eventType,
		}).Debug("Ачивка открыта")
	}
	return unlocked, nil
}

// UserAchievements возвращает открытые (и при includeLocked закрытые) ачивки
// в порядке каталога. Ничего не меняет.
func (e *Engine) UserAchievements(ctx context.Context, repo Repository, userID int64, includeLocked bool) (*Overview, error) {
	unlocks, err := repo.ListUnlocks(ctx, userID)
	if err != nil {
		return nil, err
	}
	at := make(map[string]time.Time, len(unlocks))
	for _, u := range unlocks {
		at[u.AchievementID] = u.UnlockedAt
	}

	catalog := e.tables.Achievements()
	out := &Overview{
		Unlocked:       []Entry{},
		TotalAvailable: len(catalog),
	}
	if includeLocked {
		out.Locked = []Entry{}
	}

	for _, a := range catalog {
		if t, ok := at[a.ID]; ok {
			out.Unlocked = append(out.Unlocked, newEntry(a, &t))
			continue
		}
		if includeLocked {
			out.Locked = append(out.Locked, newEntry(a, nil))
		}
	}
	// Записи об ачивках, убранных из каталога, не считаются
	out.TotalUnlocked = len(out.Unlocked)
	return out, nil
}
