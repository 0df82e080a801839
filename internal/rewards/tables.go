// Package rewards описывает статические таблицы наград: опыт за действия,
// пороги уровней, каталог ачивок и правила стриков.
//
// Таблицы загружаются один раз при старте из YAML, проходят полную проверку
// и дальше только читаются, поэтому безопасны для конкурентного доступа.
package rewards

import (
	"sort"
)

// Rarity — редкость ачивки.
type Rarity string

const (
	RarityCommon    Rarity = "common"
	RarityRare      Rarity = "rare"
	RarityEpic      Rarity = "epic"
	RarityLegendary Rarity = "legendary"
)

// Valid сообщает, входит ли редкость в допустимый набор.
func (r Rarity) Valid() bool {
	switch r {
	case RarityCommon, RarityRare, RarityEpic, RarityLegendary:
		return true
	}
	return false
}

// Achievement — неизменяемое определение ачивки.
type Achievement struct {
	ID          string
	Name        string
	Description string
	Rarity      Rarity
	Criteria    Criteria

	match Predicate
}

// Satisfied проверяет условие ачивки на фактах о пользователе.
func (a Achievement) Satisfied(f Facts) bool {
	if a.match == nil {
		return false
	}
	return a.match(f)
}

// Milestone — рубеж стрика, за достижение которого начисляется бонусный опыт.
type Milestone struct {
	Days   int    `json:"days"`
	Action string `json:"action"`
}

// StreakPolicy — правила стриков и токенов заморозки.
type StreakPolicy struct {
	InitialFreezeTokens int
	FreezeTokenCap      int
	FreezeRefillAmount  int
	Milestones          []Milestone
}

// Tables — проверенный набор таблиц наград.
type Tables struct {
	actions      map[string]int64
	milestoneFor map[string]int
	levels       []int64
	achievements []Achievement
	byID         map[string]int
	streak       StreakPolicy
}

// XPFor возвращает опыт за действие.
func (t *Tables) XPFor(action string) (int64, bool) {
	amount, ok := t.actions[action]
	return amount, ok
}

// IsMilestoneAction сообщает, зарезервировано ли действие под бонус за рубеж стрика.
// Такие действия начисляет только сам движок.
func (t *Tables) IsMilestoneAction(action string) bool {
	_, ok := t.milestoneFor[action]
	return ok
}

// ActionTypes возвращает все известные действия в алфавитном порядке.
func (t *Tables) ActionTypes() []string {
	out := make([]string, 0, len(t.actions))
	for a := range t.actions {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// LevelFor вычисляет уровень по суммарному опыту:
// наибольший уровень, чей порог <= totalXP. Порог уровня N — levels[N-1].
//
// Пример для порогов [0, 50, 150]:
//
//	LevelFor(0)   → 1
//	LevelFor(49)  → 1
//	LevelFor(50)  → 2
//	LevelFor(999) → 3
func (t *Tables) LevelFor(totalXP int64) int {
	// Число порогов, не превышающих totalXP. levels[0] == 0, поэтому результат >= 1.
	n := sort.Search(len(t.levels), func(i int) bool { return t.levels[i] > totalXP })
	if n < 1 {
		return 1
	}
	return n
}

// Threshold возвращает порог опыта для уровня.
func (t *Tables) Threshold(level int) (int64, bool) {
	if level < 1 || level > len(t.levels) {
		return 0, false
	}
	return t.levels[level-1], true
}

// MaxLevel — последний уровень в таблице.
func (t *Tables) MaxLevel() int {
	return len(t.levels)
}

// Achievements возвращает каталог в порядке объявления.
func (t *Tables) Achievements() []Achievement {
	out := make([]Achievement, len(t.achievements))
	copy(out, t.achievements)
	return out
}

// Achievement ищет ачивку по ID.
func (t *Tables) Achievement(id string) (Achievement, bool) {
	i, ok := t.byID[id]
	if !ok {
		return Achievement{}, false
	}
	return t.achievements[i], true
}

// Streak возвращает правила стриков.
func (t *Tables) Streak() StreakPolicy {
	p := t.streak
	p.Milestones = append([]Milestone(nil), t.streak.Milestones...)
	return p
}

// MilestoneCrossed возвращает рубеж, впервые достигнутый при переходе
// стрика с before на after (before < days <= after).
// Если пересечено несколько рубежей, берётся старший, бонус один.
func (t *Tables) MilestoneCrossed(before, after int) (Milestone, bool) {
	var found Milestone
	ok := false
	for _, m := range t.streak.Milestones {
		if before < m.Days && m.Days <= after {
			found = m
			ok = true
		}
	}
	return found, ok
}
