// Package config загружает настройки из .env, YAML-файла и переменных окружения.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "VEIN_"

// ErrInvalidConfig значение настройки не прошло проверку
var ErrInvalidConfig = errors.New("invalid config")

// Драйверы хранилища сессии
const (
	StoreFile     = "file"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

type Config struct {
	// APIBase основной адрес сервиса; относительный путь разрешается от Origin.
	APIBase      string `koanf:"api_base"`
	Origin       string `koanf:"origin"`
	FallbackBase string `koanf:"fallback_base"`

	StoreDriver string `koanf:"store_driver"`
	StorePath   string `koanf:"store_path"`
	DatabaseURL string `koanf:"database_url"`
	Profile     string `koanf:"profile"`
	ArtifactDir string `koanf:"artifact_dir"`

	CameraDevice int           `koanf:"camera_device"`
	HTTPTimeout  time.Duration `koanf:"http_timeout"`
	MetricsAddr  string        `koanf:"metrics_addr"`
	LogLevel     string        `koanf:"log_level"`

	TelegramToken  string `koanf:"telegram_token"`
	OperatorChatID int64  `koanf:"operator_chat_id"`
}

// Default возвращает настройки по умолчанию
func Default() *Config {
	return &Config{
		APIBase:      "/api",
		Origin:       "http://localhost",
		FallbackBase: "http://localhost:8000",
		StoreDriver:  StoreFile,
		StorePath:    ".vein-session.json",
		Profile:      "default",
		LogLevel:     "info",
	}
}

// Load собирает настройки: значения по умолчанию, затем YAML из VEIN_CONFIG,
// затем переменные окружения VEIN_*.
func Load() (*Config, error) {
	// Загружаем .env файл (игнорируем ошибку если файла нет)
	_ = godotenv.Load()

	k := koanf.New(".")

	if path := os.Getenv("VEIN_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}

	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if cfg.TelegramToken == "" {
		cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет согласованность настроек
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case StoreFile:
		if c.StorePath == "" {
			return fmt.Errorf("%w: store_path must not be empty", ErrInvalidConfig)
		}
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("%w: database_url is required for postgres store", ErrInvalidConfig)
		}
	case StoreMemory:
	default:
		return fmt.Errorf("%w: unknown store_driver %q", ErrInvalidConfig, c.StoreDriver)
	}

	if _, err := c.PrimaryEndpoint(); err != nil {
		return err
	}
	if c.HTTPTimeout < 0 {
		return fmt.Errorf("%w: http_timeout must not be negative", ErrInvalidConfig)
	}
	return nil
}

// PrimaryEndpoint разрешает APIBase относительно Origin
func (c *Config) PrimaryEndpoint() (string, error) {
	base, err := url.Parse(c.APIBase)
	if err != nil {
		return "", fmt.Errorf("%w: api_base: %v", ErrInvalidConfig, err)
	}
	if base.IsAbs() {
		return base.String(), nil
	}
	origin, err := url.Parse(c.Origin)
	if err != nil || !origin.IsAbs() {
		return "", fmt.Errorf("%w: origin %q must be an absolute URL", ErrInvalidConfig, c.Origin)
	}
	return origin.ResolveReference(base).String(), nil
}

// Endpoints адреса сервиса в порядке перебора
func (c *Config) Endpoints() []string {
	primary, err := c.PrimaryEndpoint()
	if err != nil {
		return []string{c.FallbackBase}
	}
	return []string{primary, c.FallbackBase}
}

// SlogLevel переводит LogLevel в уровень slog
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
