package config

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
)

const (
	defaultRunAddress      = "localhost:8080"
	defaultJWTSecret       = "default-secret-change-in-production"
	defaultTokenExpiration = 24 * time.Hour
	defaultPurgeSchedule   = "0 2 * * *"
	defaultPurgeBatchSize  = 100
)

// Config содержит конфигурацию приложения.
type Config struct {
	RunAddress            string
	DatabaseURI           string
	CatalogServiceAddress string
	JWTSecret             string
	TokenExpiration       time.Duration
	PurgeSchedule         string
	PurgeBatchSize        int
	NotifyWebhookURL      string
	AdminLogins           []string
	LogLevel              slog.Level
}

// Load загружает конфигурацию из флагов командной строки и переменных окружения.
// Приоритет: переменные окружения > флаги > значения по умолчанию.
func Load() (*Config, error) {
	return load(os.Args[1:], os.LookupEnv)
}

type envLookup func(string) (string, bool)

func load(args []string, lookup envLookup) (*Config, error) {
	cfg := &Config{}
	var tokenExpiration, logLevel, adminLogins string

	fs := flag.NewFlagSet("orderflow", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&cfg.RunAddress, "a", defaultRunAddress, "адрес и порт запуска сервиса")
	fs.StringVar(&cfg.DatabaseURI, "d", "", "строка подключения к PostgreSQL")
	fs.StringVar(&cfg.CatalogServiceAddress, "c", "", "адрес сервиса каталога товаров")
	fs.StringVar(&tokenExpiration, "t", defaultTokenExpiration.String(), "время жизни токена")
	fs.StringVar(&cfg.PurgeSchedule, "s", defaultPurgeSchedule, "расписание очистки удалённых заказов (cron)")
	fs.IntVar(&cfg.PurgeBatchSize, "b", defaultPurgeBatchSize, "размер пачки при очистке")
	fs.StringVar(&logLevel, "l", "info", "уровень логирования")
	fs.StringVar(&adminLogins, "admins", "", "логины администраторов через запятую")
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	cfg.RunAddress = getString(lookup, "RUN_ADDRESS", cfg.RunAddress)
	cfg.DatabaseURI = getString(lookup, "DATABASE_URI", cfg.DatabaseURI)
	cfg.CatalogServiceAddress = getString(lookup, "CATALOG_SERVICE_ADDRESS", cfg.CatalogServiceAddress)
	cfg.PurgeSchedule = getString(lookup, "PURGE_SCHEDULE", cfg.PurgeSchedule)
	cfg.PurgeBatchSize = getInt(lookup, "PURGE_BATCH_SIZE", cfg.PurgeBatchSize)
	cfg.NotifyWebhookURL = getString(lookup, "NOTIFY_WEBHOOK_URL", "")
	cfg.JWTSecret = getString(lookup, "JWT_SECRET", defaultJWTSecret)
	tokenExpiration = getString(lookup, "TOKEN_EXPIRATION", tokenExpiration)
	logLevel = getString(lookup, "LOG_LEVEL", logLevel)
	adminLogins = getString(lookup, "ADMIN_LOGINS", adminLogins)

	if secretFile, ok := lookup("JWT_SECRET_FILE"); ok && secretFile != "" {
		content, err := os.ReadFile(secretFile)
		if err != nil {
			return nil, fmt.Errorf("read jwt secret file: %w", err)
		}
		cfg.JWTSecret = strings.TrimSpace(string(content))
	}

	// Некорректные значения заменяются значениями по умолчанию
	cfg.TokenExpiration = defaultTokenExpiration
	if d, err := time.ParseDuration(tokenExpiration); err == nil && d > 0 {
		cfg.TokenExpiration = d
	}
	if cfg.PurgeBatchSize <= 0 {
		cfg.PurgeBatchSize = defaultPurgeBatchSize
	}
	if err := cfg.LogLevel.UnmarshalText([]byte(logLevel)); err != nil {
		cfg.LogLevel = slog.LevelInfo
	}

	cfg.AdminLogins = lo.Compact(lo.Map(strings.Split(adminLogins, ","), func(login string, _ int) string {
		return strings.TrimSpace(login)
	}))

	return cfg, nil
}

func getString(lookup envLookup, key, def string) string {
	if v, ok := lookup(key); ok && v != "" {
		return v
	}
	return def
}

func getInt(lookup envLookup, key string, def int) int {
	if v, ok := lookup(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
