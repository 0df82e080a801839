// rewardlint проверяет YAML с таблицами наград до деплоя.
// Запуск: go run ./cmd/rewardlint rewards.yaml
//
// Печатает все найденные проблемы; код выхода 1, если они есть.
package main

import (
	"errors"
	"fmt"
	"os"

	"serotonyl.ru/lingvo-backend/internal/rewards"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Использование: go run ./cmd/rewardlint <rewards.yaml>")
		os.Exit(2)
	}

	path := os.Args[1]
	tables, err := rewards.Load(path)
	if err != nil {
		fmt.Printf("%s: таблицы некорректны\n", path)
		for _, p := range unwrapJoined(err) {
			fmt.Printf("  - %v\n", p)
		}
		os.Exit(1)
	}

	fmt.Printf("%s: OK (действий %d, уровней %d, ачивок %d, рубежей стрика %d)\n",
		path, len(tables.ActionTypes()), tables.MaxLevel(),
		len(tables.Achievements()), len(tables.Streak().Milestones))
}

// unwrapJoined раскрывает errors.Join, чтобы вывести по одной проблеме на строку.
func unwrapJoined(err error) []error {
	for e := err; e != nil; e = errors.Unwrap(e) {
		if j, ok := e.(interface{ Unwrap() []error }); ok {
			return j.Unwrap()
		}
	}
	return []error{err}
}
