package rewards

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"serotonyl.ru/lingvo-backend/internal/common"
)

//go:embed default.yaml
var defaultYAML []byte

// file — формат YAML-файла таблиц наград.
type file struct {
	Actions      map[string]int64  `yaml:"actions"`
	Levels       []int64           `yaml:"levels"`
	Streak       streakFile        `yaml:"streak"`
	Achievements []achievementFile `yaml:"achievements"`
}

type streakFile struct {
	InitialFreezeTokens int         `yaml:"initial_freeze_tokens"`
	FreezeTokenCap      int         `yaml:"freeze_token_cap"`
	FreezeRefillAmount  int         `yaml:"freeze_refill_amount"`
	Milestones          []Milestone `yaml:"milestones"`
}

type achievementFile struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Rarity      Rarity   `yaml:"rarity"`
	Criteria    Criteria `yaml:"criteria"`
}

// Default возвращает встроенные таблицы наград.
func Default() (*Tables, error) {
	return Parse(defaultYAML)
}

// MustDefault — Default для тестов и утилит; паникует на битых встроенных таблицах.
func MustDefault() *Tables {
	t, err := Default()
	if err != nil {
		panic(err)
	}
	return t
}

// Load читает таблицы из файла. Пустой путь — встроенные таблицы.
func Load(path string) (*Tables, error) {
	if strings.TrimSpace(path) == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("не удалось прочитать таблицы наград %s: %w", path, err)
	}
	t, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Parse разбирает и проверяет YAML. Возвращает все найденные проблемы сразу;
// каждая обёрнута в common.ErrInvalidRewardTables.
func Parse(data []byte) (*Tables, error) {
	var f file
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: пустой документ", common.ErrInvalidRewardTables)
		}
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidRewardTables, err)
	}
	return build(f)
}

// MaxKeyLen — предел длины имени действия и id ачивки,
// совпадает с VARCHAR(64) в схеме Postgres.
const MaxKeyLen = 64

func build(f file) (*Tables, error) {
	var problems []error
	bad := func(format string, args ...any) {
		problems = append(problems, fmt.Errorf("%w: %s", common.ErrInvalidRewardTables, fmt.Sprintf(format, args...)))
	}

	t := &Tables{
		actions:      make(map[string]int64, len(f.Actions)),
		milestoneFor: make(map[string]int),
		byID:         make(map[string]int, len(f.Achievements)),
	}

	// --- Действия ---
	if len(f.Actions) == 0 {
		bad("actions: таблица пуста")
	}
	for action, amount := range f.Actions {
		if strings.TrimSpace(action) == "" {
			bad("actions: пустое имя действия")
			continue
		}
		if len(action) > MaxKeyLen {
			bad("actions.%s: имя длиннее %d байт", action, MaxKeyLen)
			continue
		}
		if amount <= 0 {
			bad("actions.%s: опыт должен быть > 0, получено %d", action, amount)
			continue
		}
		t.actions[action] = amount
	}

	// --- Уровни ---
	switch {
	case len(f.Levels) == 0:
		bad("levels: таблица пуста")
	case f.Levels[0] != 0:
		bad("levels[0]: порог первого уровня должен быть 0, получено %d", f.Levels[0])
	}
	for i := 1; i < len(f.Levels); i++ {
		if f.Levels[i] <= f.Levels[i-1] {
			bad("levels[%d]: пороги должны строго возрастать (%d <= %d)", i, f.Levels[i], f.Levels[i-1])
		}
	}
	t.levels = append([]int64(nil), f.Levels...)

	// --- Стрики ---
	s := f.Streak
	if s.InitialFreezeTokens < 0 || s.FreezeTokenCap < 0 || s.FreezeRefillAmount < 0 {
		bad("streak: значения заморозок не могут быть отрицательными")
	}
	if s.InitialFreezeTokens > s.FreezeTokenCap {
		bad("streak: initial_freeze_tokens (%d) больше freeze_token_cap (%d)", s.InitialFreezeTokens, s.FreezeTokenCap)
	}
	prevDays := 1
	for i, m := range s.Milestones {
		if m.Days <= prevDays {
			bad("streak.milestones[%d]: дни должны быть >= 2 и строго возрастать, получено %d", i, m.Days)
		}
		prevDays = m.Days
		if _, ok := f.Actions[m.Action]; !ok {
			bad("streak.milestones[%d]: неизвестное действие %q", i, m.Action)
		}
		if _, dup := t.milestoneFor[m.Action]; dup {
			bad("streak.milestones[%d]: действие %q уже занято другим рубежом", i, m.Action)
		}
		t.milestoneFor[m.Action] = m.Days
	}
	t.streak = StreakPolicy{
		InitialFreezeTokens: s.InitialFreezeTokens,
		FreezeTokenCap:      s.FreezeTokenCap,
		FreezeRefillAmount:  s.FreezeRefillAmount,
		Milestones:          append([]Milestone(nil), s.Milestones...),
	}

	// --- Ачивки ---
	for i, a := range f.Achievements {
		where := fmt.Sprintf("achievements[%d]", i)
		if a.ID != "" {
			where = fmt.Sprintf("achievements.%s", a.ID)
		}
		if strings.TrimSpace(a.ID) == "" {
			bad("%s: пустой id", where)
			continue
		}
		if _, dup := t.byID[a.ID]; dup {
			bad("%s: повторяющийся id", where)
			continue
		}
		if len(a.ID) > MaxKeyLen {
			bad("%s: id длиннее %d байт", where, MaxKeyLen)
			continue
		}
		if strings.TrimSpace(a.Name) == "" {
			bad("%s: пустое имя", where)
		}
		if !a.Rarity.Valid() {
			bad("%s: неизвестная редкость %q", where, a.Rarity)
		}
		pred, err := compile(a.Criteria, f.Actions)
		if err != nil {
			bad("%s: criteria: %v", where, err)
			continue
		}
		t.byID[a.ID] = len(t.achievements)
		t.achievements = append(t.achievements, Achievement{
			ID:          a.ID,
			Name:        a.Name,
			Description: a.Description,
			Rarity:      a.Rarity,
			Criteria:    a.Criteria,
			match:       pred,
		})
	}

	if len(problems) > 0 {
		return nil, errors.Join(problems...)
	}
	return t, nil
}
