package gamification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"serotonyl.ru/lingvo-backend/internal/common"
	"serotonyl.ru/lingvo-backend/internal/features/achievements"
	"serotonyl.ru/lingvo-backend/internal/features/streak"
	"serotonyl.ru/lingvo-backend/internal/features/xp"
	"serotonyl.ru/lingvo-backend/internal/rewards"
	"serotonyl.ru/lingvo-backend/internal/storage"
	"serotonyl.ru/lingvo-backend/internal/storage/sqlite"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advanceDays(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.AddDate(0, 0, n)
}

type fixture struct {
	svc   *Service
	store storage.Store
	clock *clock
}

func newFixture(t *testing.T, wrap func(storage.Store) storage.Store) *fixture {
	t.Helper()
	db, err := sqlite.Open(sqlite.MemoryPath, 3)
	if err != nil {
		t.Fatalf("sqlite.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	var store storage.Store = db
	if wrap != nil {
		store = wrap(db)
	}

	tables := rewards.MustDefault()
	c := &clock{t: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
	svc := NewService(store, tables,
		xp.NewEngine(tables, c.now),
		achievements.NewEngine(tables, c.now),
		streak.NewEngine(tables, time.UTC, c.now),
		true,
	)
	return &fixture{svc: svc, store: store, clock: c}
}

func achievementIDs(entries []achievements.Entry) map[string]int {
	out := make(map[string]int)
	for _, e := range entries {
		out[e.ID]++
	}
	return out
}

func TestProcessEventFirstLesson(t *testing.T) {
	f := newFixture(t, nil)

	res, err := f.svc.ProcessEvent(context.Background(), 42, Event{Type: "lesson_completed", ReferenceID: "lesson-1"})
	if err != nil {
		t.Fatalf("ProcessEvent() error = %v", err)
	}

	if res.XP.AwardedAmount != 50 || res.XP.TotalXP != 50 {
		t.Errorf("xp = %+v, want 50/50", res.XP)
	}
	if res.XP.CurrentLevel != 2 || res.XP.PreviousLevel != 1 || !res.XP.LeveledUp {
		t.Errorf("level = %d (prev %d, up %v), want 2 (prev 1, up true)",
			res.XP.CurrentLevel, res.XP.PreviousLevel, res.XP.LeveledUp)
	}
	if ids := achievementIDs(res.Achievements); ids["first_lesson"] != 1 || len(ids) != 1 {
		t.Errorf("achievements = %v, want only first_lesson", ids)
	}
	if res.Streak == nil || res.Streak.Transition != streak.TransitionStarted || res.Streak.CurrentStreak != 1 {
		t.Errorf("streak = %+v, want started at 1", res.Streak)
	}
	if res.MilestoneXP != nil {
		t.Errorf("milestone_xp = %+v, want nil", res.MilestoneXP)
	}
}

func TestProcessEventSameDayTwice(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	if _, err := f.svc.ProcessEvent(ctx, 1, Event{Type: "lesson_completed"}); err != nil {
		t.Fatal(err)
	}
	res, err := f.svc.ProcessEvent(ctx, 1, Event{Type: "lesson_completed"})
	if err != nil {
		t.Fatal(err)
	}
	if res.XP.TotalXP != 100 {
		t.Errorf("total_xp = %d, want 100", res.XP.TotalXP)
	}
	if len(res.Achievements) != 0 {
		t.Errorf("повторно открыты %v", achievementIDs(res.Achievements))
	}
	if res.Streak.Changed || res.Streak.CurrentStreak != 1 {
		t.Errorf("streak = %+v, want unchanged 1", res.Streak)
	}
}

func TestProcessEventSevenDayMilestone(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	var res *EventResult
	for day := 1; day <= 7; day++ {
		var err error
		res, err = f.svc.ProcessEvent(ctx, 1, Event{Type: "exercise_completed"})
		if err != nil {
			t.Fatalf("день %d: %v", day, err)
		}
		if day < 7 && res.MilestoneXP != nil {
			t.Fatalf("день %d: неожиданный бонус %+v", day, res.MilestoneXP)
		}
		if day < 7 {
			f.clock.advanceDays(1)
		}
	}

	if res.Streak.CurrentStreak != 7 || res.Streak.Milestone == nil || res.Streak.Milestone.Days != 7 {
		t.Fatalf("streak = %+v, want milestone 7", res.Streak)
	}
	if res.MilestoneXP == nil {
		t.Fatal("нет бонуса за рубеж")
	}
	if res.MilestoneXP.ActionType != "streak_milestone_7" || res.MilestoneXP.AwardedAmount != 100 {
		t.Errorf("milestone_xp = %+v, want streak_milestone_7 / 100", res.MilestoneXP)
	}
	// 7 упражнений по 10 + бонус 100
	if res.MilestoneXP.TotalXP != 170 || res.TotalAwarded() != 110 {
		t.Errorf("total_xp = %d, awarded = %d", res.MilestoneXP.TotalXP, res.TotalAwarded())
	}
	// Ачивка за неделю открывается в том же вызове
	if ids := achievementIDs(res.Achievements); ids["week_streak"] != 1 {
		t.Errorf("achievements = %v, want week_streak", ids)
	}

	// Повтор в тот же день: бонус не начисляется
	again, err := f.svc.ProcessEvent(ctx, 1, Event{Type: "exercise_completed"})
	if err != nil {
		t.Fatal(err)
	}
	if again.MilestoneXP != nil || len(again.Achievements) != 0 {
		t.Errorf("повтор: milestone=%+v achievements=%v", again.MilestoneXP, achievementIDs(again.Achievements))
	}
}

func TestProcessEventFreezeThenReset(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	for day := 1; day <= 5; day++ {
		if _, err := f.svc.ProcessEvent(ctx, 1, Event{Type: "word_learned"}); err != nil {
			t.Fatal(err)
		}
		if day < 5 {
			f.clock.advanceDays(1)
		}
	}

	f.clock.advanceDays(2) // пропущен один день, заморозка 1 из начальных
	res, err := f.svc.ProcessEvent(ctx, 1, Event{Type: "word_learned"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Streak.CurrentStreak != 6 || res.Streak.FreezeTokens != 0 || !res.Streak.FreezeUsed {
		t.Fatalf("после заморозки: %+v, want 6 / freeze 0", res.Streak)
	}

	f.clock.advanceDays(3)
	res, err = f.svc.ProcessEvent(ctx, 1, Event{Type: "word_learned"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Streak.CurrentStreak != 1 || res.Streak.LongestStreak != 6 {
		t.Fatalf("после разрыва: %+v, want 1 / longest 6", res.Streak)
	}

	status, err := f.svc.StreakStatus(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if status.Status != streak.StatusActive || status.CurrentStreak != 1 {
		t.Errorf("status = %+v", status)
	}
}

func TestProcessEventRejectsInput(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	tests := []struct {
		name    string
		userID  int64
		event   string
		wantErr error
	}{
		{"unknown action", 1, "dance", common.ErrUnknownActionType},
		{"milestone action from client", 1, "streak_milestone_7", common.ErrUnknownActionType},
		{"zero user", 0, "lesson_completed", common.ErrInvalidUser},
		{"negative user", -5, "lesson_completed", common.ErrInvalidUser},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.ProcessEvent(ctx, tt.userID, Event{Type: tt.event})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ProcessEvent() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	p, err := f.svc.Progression(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if p.TotalXP != 0 {
		t.Errorf("отклонённые события изменили опыт: %d", p.TotalXP)
	}
}

func TestProcessEventContextAchievement(t *testing.T) {
	f := newFixture(t, nil)

	res, err := f.svc.ProcessEvent(context.Background(), 3, Event{
		Type:    "quiz_passed",
		Context: map[string]any{"score": 100.0},
	})
	if err != nil {
		t.Fatal(err)
	}
	if ids := achievementIDs(res.Achievements); ids["perfect_quiz"] != 1 {
		t.Errorf("achievements = %v, want perfect_quiz", ids)
	}
}

// failingStore ломает запись стрика, чтобы проверить откат всей транзакции.
type failingStore struct {
	storage.Store
}

type failingTx struct {
	storage.Tx
}

var errStreakWrite = errors.New("streak write failed")

func (t failingTx) CreateStreak(context.Context, *streak.Record) error { return errStreakWrite }
func (t failingTx) UpdateStreak(context.Context, *streak.Record) error { return errStreakWrite }

func (s failingStore) Update(ctx context.Context, userID int64, fn storage.TxFunc) error {
	return s.Store.Update(ctx, userID, func(ctx context.Context, tx storage.Tx) error {
		return fn(ctx, failingTx{Tx: tx})
	})
}

func TestProcessEventIsAtomic(t *testing.T) {
	f := newFixture(t, func(s storage.Store) storage.Store { return failingStore{Store: s} })
	ctx := context.Background()

	_, err := f.svc.ProcessEvent(ctx, 1, Event{Type: "lesson_completed"})
	if !errors.Is(err, errStreakWrite) {
		t.Fatalf("ProcessEvent() error = %v, want errStreakWrite", err)
	}

	p, err := f.svc.Progression(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if p.TotalXP != 0 || p.CurrentLevel != 1 {
		t.Errorf("опыт сохранился после отката: %+v", p)
	}
	ov, err := f.svc.Achievements(ctx, 1, false)
	if err != nil {
		t.Fatal(err)
	}
	if ov.TotalUnlocked != 0 {
		t.Errorf("ачивки сохранились после отката: %v", achievementIDs(ov.Unlocked))
	}
}

func TestProcessEventConcurrentSameUser(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	const workers = 25

	var wg sync.WaitGroup
	results := make(chan *EventResult, workers)
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.svc.ProcessEvent(ctx, 9, Event{Type: "lesson_completed"})
			if err != nil {
				errs <- err
				return
			}
			results <- res
		}()
	}
	wg.Wait()
	close(results)
	close(errs)

	for err := range errs {
		t.Fatalf("ProcessEvent() error = %v", err)
	}

	unlockedFirst := 0
	for res := range results {
		unlockedFirst += achievementIDs(res.Achievements)["first_lesson"]
	}
	if unlockedFirst != 1 {
		t.Errorf("first_lesson открыта %d раз, want 1", unlockedFirst)
	}

	p, err := f.svc.Progression(ctx, 9)
	if err != nil {
		t.Fatal(err)
	}
	if p.TotalXP != workers*50 {
		t.Errorf("total_xp = %d, want %d", p.TotalXP, workers*50)
	}
	st, err := f.svc.StreakStatus(ctx, 9)
	if err != nil {
		t.Fatal(err)
	}
	if st.CurrentStreak != 1 {
		t.Errorf("streak = %d, want 1", st.CurrentStreak)
	}
}

func TestProcessEventWithStreaksDisabled(t *testing.T) {
	f := newFixture(t, nil)
	f.svc.streaksEnabled = false

	res, err := f.svc.ProcessEvent(context.Background(), 1, Event{Type: "lesson_completed"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Streak != nil {
		t.Errorf("streak = %+v, want nil", res.Streak)
	}
	st, err := f.svc.StreakStatus(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if st.Status != streak.StatusNone {
		t.Errorf("status = %s, want none", st.Status)
	}
}

func TestReadQueries(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	if _, err := f.svc.ProcessEvent(ctx, 1, Event{Type: "lesson_completed"}); err != nil {
		t.Fatal(err)
	}

	ov, err := f.svc.Achievements(ctx, 1, true)
	if err != nil {
		t.Fatal(err)
	}
	total := len(rewards.MustDefault().Achievements())
	if ov.TotalUnlocked != 1 || ov.TotalAvailable != total || len(ov.Locked) != total-1 {
		t.Errorf("overview: unlocked %d, locked %d, available %d", ov.TotalUnlocked, len(ov.Locked), ov.TotalAvailable)
	}

	p, err := f.svc.Progression(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if p.TotalXP != 50 || p.CurrentLevel != 2 || p.XPToNextLevel != 100 {
		t.Errorf("progression = %+v", p)
	}

	f.clock.advanceDays(1)
	st, err := f.svc.StreakStatus(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if st.Status != streak.StatusAtRisk {
		t.Errorf("status = %s, want at_risk", st.Status)
	}

	for _, call := range []func() error{
		func() error { _, err := f.svc.Achievements(ctx, 0, false); return err },
		func() error { _, err := f.svc.StreakStatus(ctx, -1); return err },
		func() error { _, err := f.svc.Progression(ctx, 0); return err },
	} {
		if err := call(); !errors.Is(err, common.ErrInvalidUser) {
			t.Errorf("err = %v, want ErrInvalidUser", err)
		}
	}
}

func TestRefillFreezeTokens(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	// Тратим начальную заморозку
	if _, err := f.svc.ProcessEvent(ctx, 1, Event{Type: "lesson_completed"}); err != nil {
		t.Fatal(err)
	}
	f.clock.advanceDays(2)
	if _, err := f.svc.ProcessEvent(ctx, 1, Event{Type: "lesson_completed"}); err != nil {
		t.Fatal(err)
	}

	n, err := f.svc.RefillFreezeTokens(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("updated = %d, want 1", n)
	}
	st, err := f.svc.StreakStatus(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if st.FreezeTokens != 1 {
		t.Errorf("freeze = %d, want 1", st.FreezeTokens)
	}
}
