// Package config содержит логику чтения конфигурации учёта парковки.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Поддерживаемые хранилища.
const (
	StorageFile   = "file"
	StorageSQLite = "sqlite"
)

// ErrUnknownStorage возвращается для неподдерживаемого значения хранилища.
var ErrUnknownStorage = errors.New("unknown storage")

// Config содержит параметры конфигурации учёта парковки.
type Config struct {
	DataFile   string `env:"PARKING_DATA_FILE"`
	HistoryDir string `env:"PARKING_HISTORY_DIR"`
	RatesFile  string `env:"PARKING_RATES_FILE"`
	Storage    string `env:"PARKING_STORAGE"`
	SQLitePath string `env:"PARKING_SQLITE_PATH"`
	RunAddress string `env:"RUN_ADDRESS"`
	LogLevel   string `env:"LOG_LEVEL"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Переменные окружения, в том числе из файла .env, имеют приоритет над флагами.
func Parse() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{}

	flag.StringVar(&cfg.DataFile, "data", "data.json", "active cars file")
	flag.StringVar(&cfg.HistoryDir, "history", ".", "directory with payment histories")
	flag.StringVar(&cfg.RatesFile, "rates", "", "rate table YAML file")
	flag.StringVar(&cfg.Storage, "storage", StorageFile, "storage backend: file or sqlite")
	flag.StringVar(&cfg.SQLitePath, "sqlite", "parking.db", "SQLite database path")
	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.LogLevel, "log-level", "warn", "log level")

	flag.Parse()

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if cfg.Storage != StorageFile && cfg.Storage != StorageSQLite {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStorage, cfg.Storage)
	}

	return cfg, nil
}
