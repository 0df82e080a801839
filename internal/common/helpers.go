// Package common содержит общие утилиты, используемые во всём проекте.
// Сюда входят: работа с календарными датами, безопасная арифметика, хеши токенов.
package common

import (
	"math"
	"time"

	log "github.com/sirupsen/logrus"
)

// DateLayout — формат календарной даты в хранилище и ответах API.
const DateLayout = "2006-01-02"

// LoadLocation загружает часовой пояс по имени.
// Если зона не найдена (нет tzdata в контейнере), используем UTC.
func LoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		log.WithError(err).WithField("timezone", name).Warn("Не удалось загрузить часовой пояс, используем UTC")
		return time.UTC
	}
	return loc
}

// DateIn возвращает календарную дату момента t в поясе loc (полночь).
func DateIn(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// DaysBetween возвращает число календарных дней от from до to.
// Считается по году, месяцу и дню, поэтому переходы на летнее время не влияют.
//
// Примеры:
//
//	DaysBetween(2024-03-01, 2024-03-01) → 0
//	DaysBetween(2024-02-28, 2024-03-01) → 2
//	DaysBetween(2024-03-02, 2024-03-01) → -1
func DaysBetween(from, to time.Time) int {
	a := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	b := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}

// ParseDate разбирает дату формата 2006-01-02 в поясе loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, loc)
}

// FormatDate форматирует календарную дату.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// AddSafe складывает два неотрицательных значения опыта.
// Возвращает false, если сумма не помещается в int64.
func AddSafe(a, b int64) (int64, bool) {
	if b > 0 && a > math.MaxInt64-b {
		return 0, false
	}
	return a + b, true
}
