// Package config содержит логику чтения конфигурации бота проката.
package config

import (
	"flag"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config содержит параметры конфигурации бота проката.
type Config struct {
	TelegramToken string        `env:"TELEGRAM_TOKEN"`
	DatabaseURI   string        `env:"DATABASE_URI"`
	RunAddress    string        `env:"RUN_ADDRESS"`
	AdminIDs      []int64       `env:"ADMIN_IDS" envSeparator:","`
	SessionTTL    time.Duration `env:"SESSION_TTL"`
}

// Parse считывает конфигурацию из .env-файла, переменных окружения и флагов
// командной строки. Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envToken := cfg.TelegramToken
	envDatabaseURI := cfg.DatabaseURI
	envRunAddress := cfg.RunAddress
	envAdminIDs := cfg.AdminIDs
	envSessionTTL := cfg.SessionTTL

	var adminsFlag string
	flag.StringVar(&cfg.TelegramToken, "t", "", "telegram bot token")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for ops HTTP server")
	flag.StringVar(&adminsFlag, "admins", "", "comma-separated admin user ids")
	flag.DurationVar(&cfg.SessionTTL, "s", 30*time.Minute, "idle session TTL")

	flag.Parse()

	if adminsFlag != "" {
		ids, err := parseAdminIDs(adminsFlag)
		if err != nil {
			return nil, err
		}
		cfg.AdminIDs = ids
	}

	if envToken != "" {
		cfg.TelegramToken = envToken
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if len(envAdminIDs) > 0 {
		cfg.AdminIDs = envAdminIDs
	}
	if envSessionTTL > 0 {
		cfg.SessionTTL = envSessionTTL
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 30 * time.Minute
	}

	return cfg, nil
}

func parseAdminIDs(raw string) ([]int64, error) {
	parts := strings.Split(raw, ",")
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse admin id %q: %w", p, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
