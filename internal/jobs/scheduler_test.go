package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type countingRefiller struct {
	calls atomic.Int32
	err   error
}

func (r *countingRefiller) RefillFreezeTokens(context.Context) (int64, error) {
	r.calls.Add(1)
	return 3, r.err
}

func TestSchedulerRejectsBadSchedule(t *testing.T) {
	s := NewScheduler(&countingRefiller{}, "every monday", time.UTC, true)
	if err := s.Start(context.Background()); err == nil {
		s.Stop()
		t.Fatal("Start() ожидалась ошибка расписания")
	}
}

func TestSchedulerDisabledIgnoresSchedule(t *testing.T) {
	s := NewScheduler(&countingRefiller{}, "", time.UTC, false)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	s.Stop()
	if n := len(s.cron.Entries()); n != 0 {
		t.Errorf("задач = %d, want 0", n)
	}
}

func TestSchedulerRegistersRefill(t *testing.T) {
	s := NewScheduler(&countingRefiller{}, "0 0 * * 1", time.UTC, true)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Stop()

	entries := s.cron.Entries()
	if len(entries) != 1 {
		t.Fatalf("задач = %d, want 1", len(entries))
	}
	if next := entries[0].Schedule.Next(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)); next.Weekday() != time.Monday {
		t.Errorf("следующий запуск %v, want понедельник", next)
	}
}

func TestRefillSurvivesErrorsAndPanics(t *testing.T) {
	r := &countingRefiller{err: errors.New("db down")}
	s := NewScheduler(r, "@every 1h", time.UTC, true)
	s.refill(context.Background())
	if r.calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", r.calls.Load())
	}

	s = NewScheduler(panicRefiller{}, "@every 1h", time.UTC, true)
	s.refill(context.Background())
}

type panicRefiller struct{}

func (panicRefiller) RefillFreezeTokens(context.Context) (int64, error) { panic("refill") }
