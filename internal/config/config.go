// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds the application configuration.
type Config struct {
	TelegramBotToken string
	DatabasePath     string
	LogLevel         string
	SuperAdminID     int64
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}

	superAdmin := os.Getenv("SUPERADMIN_ID")
	if superAdmin == "" {
		return nil, fmt.Errorf("SUPERADMIN_ID is required")
	}
	superAdminID, err := strconv.ParseInt(superAdmin, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid SUPERADMIN_ID %q: %w", superAdmin, err)
	}

	dbPath := os.Getenv("DATABASE_PATH")
	if dbPath == "" {
		dbPath = "./data/bot.db"
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}

	return &Config{
		TelegramBotToken: token,
		DatabasePath:     dbPath,
		LogLevel:         logLevel,
		SuperAdminID:     superAdminID,
	}, nil
}
