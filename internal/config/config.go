// Package config загружает конфигурацию сервиса из переменных окружения.
// Используется envconfig для маппинга переменных окружения на поля структуры,
// а godotenv подхватывает локальный .env при разработке.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Драйверы хранилища
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config содержит ВСЕ настройки приложения.
type Config struct {
	// --- HTTP ---
	HTTPAddr            string        `envconfig:"HTTP_ADDR" default:":8080"`
	HTTPShutdownTimeout time.Duration `envconfig:"HTTP_SHUTDOWN_TIMEOUT" default:"10s"`
	// Argon2id хеш сервисного токена (генерируется cmd/tokenhash).
	// Пустой хеш отключает проверку; допустимо только вне production.
	APITokenHash string `envconfig:"API_TOKEN_HASH"`

	// --- Database ---
	DBDriver string `envconfig:"DB_DRIVER" default:"postgres"`
	// В Docker дефолт "postgres" (имя сервиса в docker-compose), для локалки DB_HOST=localhost.
	DBHost     string `envconfig:"DB_HOST" default:"postgres"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"lingvo"`
	DBPassword string `envconfig:"DB_PASSWORD"`
	DBName     string `envconfig:"DB_NAME" default:"lingvo"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	DBMaxConns int32  `envconfig:"DB_MAX_CONNS" default:"25"`
	DBMinConns int32  `envconfig:"DB_MIN_CONNS" default:"5"`
	// Сколько раз повторять транзакцию при конфликте сериализации
	DBTxRetries int `envconfig:"DB_TX_RETRIES" default:"3"`
	// Файл SQLite для DB_DRIVER=sqlite (":memory:" — в памяти)
	SQLitePath string `envconfig:"SQLITE_PATH" default:"data/lingvo.db"`

	// --- Application ---
	AppEnv      string `envconfig:"APP_ENV" default:"development"`
	AppLogLevel string `envconfig:"APP_LOG_LEVEL" default:"debug"`
	// Граница календарного дня для стриков
	AppTimezone string `envconfig:"APP_TIMEZONE" default:"Europe/Moscow"`

	// --- Rewards ---
	// YAML с таблицами наград. Пусто — встроенные таблицы по умолчанию.
	RewardsFile string `envconfig:"REWARDS_FILE"`

	// --- Streak ---
	// Расписание пополнения заморозок (cron, в часовом поясе APP_TIMEZONE)
	StreakRefillCron string `envconfig:"STREAK_REFILL_CRON" default:"0 0 * * 1"`

	// --- Rate Limiting ---
	RateLimitRequests int           `envconfig:"RATE_LIMIT_REQUESTS" default:"120"`
	RateLimitWindow   time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`

	// --- Feature Flags ---
	FeatureStreaksEnabled      bool `envconfig:"FEATURE_STREAKS_ENABLED" default:"true"`
	FeatureFreezeRefillEnabled bool `envconfig:"FEATURE_FREEZE_REFILL_ENABLED" default:"true"`
}

// DatabaseDSN возвращает строку подключения к PostgreSQL в формате DSN.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

// IsProduction сообщает, запущен ли сервис в боевом окружении.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

func (c *Config) Validate() error {
	switch c.DBDriver {
	case DriverPostgres:
		if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
			return fmt.Errorf("некорректные DB_MIN_CONNS/DB_MAX_CONNS")
		}
	case DriverSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			return fmt.Errorf("SQLITE_PATH не задан")
		}
	default:
		return fmt.Errorf("DB_DRIVER должен быть %q или %q, получено %q", DriverPostgres, DriverSQLite, c.DBDriver)
	}
	if c.DBTxRetries < 0 {
		return fmt.Errorf("DB_TX_RETRIES должен быть >= 0")
	}
	if c.RateLimitRequests <= 0 || c.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS и RATE_LIMIT_WINDOW должны быть > 0")
	}
	if c.IsProduction() && c.APITokenHash == "" {
		return fmt.Errorf("API_TOKEN_HASH обязателен в production")
	}
	if c.FeatureFreezeRefillEnabled && strings.TrimSpace(c.StreakRefillCron) == "" {
		return fmt.Errorf("STREAK_REFILL_CRON не задан")
	}
	return nil
}

// Load читает .env (если есть) и переменные окружения, заполняет Config.
// Уже заданные переменные окружения имеют приоритет над .env.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("не удалось прочитать .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("не удалось загрузить конфигурацию: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
