package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/samber/lo"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverBadger   = "badger"

	EnvProd = "prod"
)

var defaultSeedRooms = []string{"General", "Frontend", "Backend"}

type Config struct {
	AppEnv   string `env:"APP_ENV,default=dev"`
	LogLevel string `env:"LOG_LEVEL,default=info"`
	Port     int    `env:"PORT,default=8080"`

	StoreDriver string `env:"STORE_DRIVER,default=postgres"`
	DatabaseURL string `env:"DATABASE_URL"`
	BadgerPath  string `env:"BADGER_PATH,default=./data/badger"`

	// Пустой REDIS_URL отключает шину между экземплярами
	RedisURL string `env:"REDIS_URL"`

	// Списки через запятую
	SeedRoomsRaw string `env:"SEED_ROOMS"`
	CORSAllowRaw string `env:"CORS_ALLOW"`

	SendBufferSize   int           `env:"SEND_BUFFER_SIZE,default=256"`
	MaxMessageSize   int           `env:"MAX_MESSAGE_SIZE,default=524288"`
	MaxContentLength int           `env:"MAX_CONTENT_LENGTH,default=4096"`
	WriteWait        time.Duration `env:"WRITE_WAIT,default=10s"`
	PongWait         time.Duration `env:"PONG_WAIT,default=60s"`
	ShutdownTimeout  time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`

	SeedRooms []string
	CORSAllow []string
}

// Load читает .env.local или .env (если есть), затем переменные окружения
func Load() (Config, error) {
	if err := godotenv.Load(".env.local"); err != nil {
		_ = godotenv.Load()
	}
	return FromEnviron()
}

// FromEnviron собирает конфиг только из окружения процесса
func FromEnviron() (Config, error) {
	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}

	cfg.SeedRooms = splitList(cfg.SeedRoomsRaw)
	if len(cfg.SeedRooms) == 0 {
		cfg.SeedRooms = defaultSeedRooms
	}
	cfg.CORSAllow = splitList(cfg.CORSAllowRaw)
	if len(cfg.CORSAllow) == 0 {
		cfg.CORSAllow = []string{"*"}
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if !lo.Contains([]string{DriverPostgres, DriverSQLite, DriverBadger}, c.StoreDriver) {
		return fmt.Errorf("config error: unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.StoreDriver != DriverBadger && c.DatabaseURL == "" {
		return fmt.Errorf("config error: DATABASE_URL is required for %s", c.StoreDriver)
	}
	if c.StoreDriver == DriverBadger && c.BadgerPath == "" {
		return fmt.Errorf("config error: BADGER_PATH is required for badger")
	}
	if c.PongWait <= 0 || c.WriteWait <= 0 {
		return fmt.Errorf("config error: WRITE_WAIT and PONG_WAIT must be positive")
	}
	return nil
}

func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c Config) IsProd() bool {
	return c.AppEnv == EnvProd
}

func splitList(raw string) []string {
	parts := lo.Map(strings.Split(raw, ","), func(s string, _ int) string {
		return strings.TrimSpace(s)
	})
	return lo.Uniq(lo.Compact(parts))
}

// NewLogger: JSON в prod, текст в остальных окружениях
func NewLogger(appEnv, level string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}

	var handler slog.Handler
	if appEnv == EnvProd {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}
