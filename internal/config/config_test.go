package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		DBDriver:                   DriverSQLite,
		SQLitePath:                 ":memory:",
		DBMaxConns:                 25,
		DBMinConns:                 5,
		DBTxRetries:                3,
		AppEnv:                     "development",
		RateLimitRequests:          10,
		RateLimitWindow:            time.Minute,
		StreakRefillCron:           "0 0 * * 1",
		FeatureFreezeRefillEnabled: true,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid sqlite", func(c *Config) {}, ""},
		{"valid postgres", func(c *Config) { c.DBDriver = DriverPostgres }, ""},
		{"unknown driver", func(c *Config) { c.DBDriver = "mysql" }, "DB_DRIVER"},
		{"bad pool", func(c *Config) { c.DBDriver = DriverPostgres; c.DBMinConns = 50 }, "DB_MAX_CONNS"},
		{"empty sqlite path", func(c *Config) { c.SQLitePath = " " }, "SQLITE_PATH"},
		{"negative retries", func(c *Config) { c.DBTxRetries = -1 }, "DB_TX_RETRIES"},
		{"zero rate limit", func(c *Config) { c.RateLimitRequests = 0 }, "RATE_LIMIT"},
		{"production without token", func(c *Config) { c.AppEnv = "production" }, "API_TOKEN_HASH"},
		{"production with token", func(c *Config) { c.AppEnv = "production"; c.APITokenHash = "$argon2id$..." }, ""},
		{"refill without schedule", func(c *Config) { c.StreakRefillCron = "" }, "STREAK_REFILL_CRON"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() error = %v, want mention of %s", err, tt.wantErr)
			}
		})
	}
}

func TestDatabaseDSN(t *testing.T) {
	cfg := Config{DBUser: "u", DBPassword: "p", DBHost: "h", DBPort: 5433, DBName: "n", DBSSLMode: "require"}
	want := "postgres://u:p@h:5433/n?sslmode=require"
	if got := cfg.DatabaseDSN(); got != want {
		t.Errorf("DatabaseDSN() = %q, want %q", got, want)
	}
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	env := "DB_DRIVER=sqlite\nSQLITE_PATH=from-dotenv.db\nAPP_TIMEZONE=UTC\n"
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(env), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Chdir(dir)
	// Переменная окружения важнее .env
	t.Setenv("APP_TIMEZONE", "Europe/Berlin")
	// godotenv не перезаписывает заданные переменные; очищаем те, что читаем из файла
	t.Setenv("DB_DRIVER", "")
	os.Unsetenv("DB_DRIVER")
	t.Setenv("SQLITE_PATH", "")
	os.Unsetenv("SQLITE_PATH")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.DBDriver != DriverSQLite || cfg.SQLitePath != "from-dotenv.db" {
		t.Errorf("Load() driver=%q path=%q", cfg.DBDriver, cfg.SQLitePath)
	}
	if cfg.AppTimezone != "Europe/Berlin" {
		t.Errorf("AppTimezone = %q, want Europe/Berlin", cfg.AppTimezone)
	}
	if cfg.DBTxRetries != 3 {
		t.Errorf("DBTxRetries = %d, want default 3", cfg.DBTxRetries)
	}
}
