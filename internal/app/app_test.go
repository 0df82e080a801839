package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"serotonyl.ru/lingvo-backend/internal/common"
	"serotonyl.ru/lingvo-backend/internal/config"
	"serotonyl.ru/lingvo-backend/internal/features/gamification"
	"serotonyl.ru/lingvo-backend/internal/storage/sqlite"
)

func testConfig() *config.Config {
	return &config.Config{
		HTTPAddr:                   "127.0.0.1:0",
		DBDriver:                   config.DriverSQLite,
		SQLitePath:                 sqlite.MemoryPath,
		DBTxRetries:                3,
		AppTimezone:                "UTC",
		StreakRefillCron:           "0 0 * * 1",
		RateLimitRequests:          10,
		RateLimitWindow:            time.Minute,
		FeatureStreaksEnabled:      true,
		FeatureFreezeRefillEnabled: true,
	}
}

func TestNewWiresSQLite(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, testConfig())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer a.Close()

	if err := a.Scheduler.Start(ctx); err != nil {
		t.Fatalf("Scheduler.Start() error = %v", err)
	}
	defer a.Scheduler.Stop()

	if err := a.Store.Ping(ctx); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
	res, err := a.Service.ProcessEvent(ctx, 1, gamification.Event{Type: "lesson_completed"})
	if err != nil {
		t.Fatalf("ProcessEvent() error = %v", err)
	}
	if res.XP.TotalXP != 50 {
		t.Errorf("total_xp = %d, want 50", res.XP.TotalXP)
	}
}

func TestNewRejectsBrokenRewards(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rewards.yaml")
	if err := os.WriteFile(path, []byte("levels: [5]\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg := testConfig()
	cfg.RewardsFile = path

	_, err := New(context.Background(), cfg)
	if !errors.Is(err, common.ErrInvalidRewardTables) {
		t.Fatalf("New() error = %v, want ErrInvalidRewardTables", err)
	}
}
