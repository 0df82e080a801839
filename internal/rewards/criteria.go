package rewards

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

// Criteria — декларативное условие ачивки в YAML.
// Все заданные поля одного узла объединяются через И.
// Узел обязан задавать хотя бы одно условие.
type Criteria struct {
	Event            string             `yaml:"event,omitempty"`
	EventCount       *EventCount        `yaml:"event_count,omitempty"`
	TotalXPGte       *int64             `yaml:"total_xp_gte,omitempty"`
	LevelGte         *int               `yaml:"level_gte,omitempty"`
	StreakGte        *int               `yaml:"streak_gte,omitempty"`
	LongestStreakGte *int               `yaml:"longest_streak_gte,omitempty"`
	Context          []ContextCondition `yaml:"context,omitempty"`
	All              []Criteria         `yaml:"all,omitempty"`
	Any              []Criteria         `yaml:"any,omitempty"`
}

// EventCount — «действие event выполнено не меньше gte раз».
type EventCount struct {
	Event string `yaml:"event"`
	Gte   int64  `yaml:"gte"`
}

// ContextCondition проверяет одно поле контекста события.
// Ровно одно из Eq / Gte должно быть задано.
type ContextCondition struct {
	Key string   `yaml:"key"`
	Eq  *string  `yaml:"eq,omitempty"`
	Gte *float64 `yaml:"gte,omitempty"`
}

// Facts — всё, что известно о пользователе в момент проверки ачивок.
type Facts struct {
	EventType     string
	Context       map[string]any
	TotalXP       int64
	Level         int
	CurrentStreak int
	LongestStreak int
	EventCounts   map[string]int64
}

// Predicate — скомпилированное условие. Чистая функция без побочных эффектов.
type Predicate func(f Facts) bool

// compile превращает узел условия в предикат.
// Ссылки на действия проверяются по known.
func compile(c Criteria, known map[string]int64) (Predicate, error) {
	var preds []Predicate

	if c.Event != "" {
		if _, ok := known[c.Event]; !ok {
			return nil, fmt.Errorf("event: неизвестное действие %q", c.Event)
		}
		event := c.Event
		preds = append(preds, func(f Facts) bool { return f.EventType == event })
	}

	if c.EventCount != nil {
		ec := *c.EventCount
		if _, ok := known[ec.Event]; !ok {
			return nil, fmt.Errorf("event_count: неизвестное действие %q", ec.Event)
		}
		if ec.Gte <= 0 {
			return nil, fmt.Errorf("event_count.gte должен быть > 0")
		}
		preds = append(preds, func(f Facts) bool { return f.EventCounts[ec.Event] >= ec.Gte })
	}

	if c.TotalXPGte != nil {
		v := *c.TotalXPGte
		if v < 0 {
			return nil, fmt.Errorf("total_xp_gte не может быть отрицательным")
		}
		preds = append(preds, func(f Facts) bool { return f.TotalXP >= v })
	}

	if c.LevelGte != nil {
		v := *c.LevelGte
		if v < 1 {
			return nil, fmt.Errorf("level_gte должен быть >= 1")
		}
		preds = append(preds, func(f Facts) bool { return f.Level >= v })
	}

	if c.StreakGte != nil {
		v := *c.StreakGte
		if v < 1 {
			return nil, fmt.Errorf("streak_gte должен быть >= 1")
		}
		preds = append(preds, func(f Facts) bool { return f.CurrentStreak >= v })
	}

	if c.LongestStreakGte != nil {
		v := *c.LongestStreakGte
		if v < 1 {
			return nil, fmt.Errorf("longest_streak_gte должен быть >= 1")
		}
		preds = append(preds, func(f Facts) bool { return f.LongestStreak >= v })
	}

	for i, cc := range c.Context {
		p, err := compileContext(cc)
		if err != nil {
			return nil, fmt.Errorf("context[%d]: %w", i, err)
		}
		preds = append(preds, p)
	}

	if c.All != nil {
		sub, err := compileList(c.All, known, "all")
		if err != nil {
			return nil, err
		}
		preds = append(preds, and(sub))
	}

	if c.Any != nil {
		sub, err := compileList(c.Any, known, "any")
		if err != nil {
			return nil, err
		}
		preds = append(preds, func(f Facts) bool {
			for _, p := range sub {
				if p(f) {
					return true
				}
			}
			return false
		})
	}

	if len(preds) == 0 {
		return nil, errors.New("пустое условие")
	}
	return and(preds), nil
}

func compileList(nodes []Criteria, known map[string]int64, name string) ([]Predicate, error) {
	if len(nodes) == 0 {
		return nil, fmt.Errorf("%s: пустой список условий", name)
	}
	out := make([]Predicate, 0, len(nodes))
	for i, n := range nodes {
		p, err := compile(n, known)
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", name, i, err)
		}
		out = append(out, p)
	}
	return out, nil
}

func compileContext(cc ContextCondition) (Predicate, error) {
	if cc.Key == "" {
		return nil, errors.New("пустой ключ")
	}
	if (cc.Eq == nil) == (cc.Gte == nil) {
		return nil, fmt.Errorf("ключ %q: нужно ровно одно из eq / gte", cc.Key)
	}

	key := cc.Key
	if cc.Eq != nil {
		want := *cc.Eq
		return func(f Facts) bool {
			v, ok := f.Context[key]
			if !ok {
				return false
			}
			s, ok := contextString(v)
			return ok && s == want
		}, nil
	}

	threshold := *cc.Gte
	if math.IsNaN(threshold) {
		return nil, fmt.Errorf("ключ %q: gte не число", cc.Key)
	}
	return func(f Facts) bool {
		v, ok := f.Context[key]
		if !ok {
			return false
		}
		n, ok := contextNumber(v)
		return ok && n >= threshold
	}, nil
}

func and(preds []Predicate) Predicate {
	if len(preds) == 1 {
		return preds[0]
	}
	return func(f Facts) bool {
		for _, p := range preds {
			if !p(f) {
				return false
			}
		}
		return true
	}
}

// contextNumber приводит значение контекста (из JSON или Go-кода) к числу.
func contextNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case interface{ Float64() (float64, error) }:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func contextString(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case bool:
		return strconv.FormatBool(s), true
	case nil:
		return "", false
	default:
		if n, ok := contextNumber(v); ok {
			return strconv.FormatFloat(n, 'f', -1, 64), true
		}
		return fmt.Sprint(v), true
	}
}
