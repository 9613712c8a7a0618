// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// MinIntervalMinutes is the floor for the poll interval, to stay inside
// the GitHub rate limit budget.
const MinIntervalMinutes = 2

// Config holds the application configuration.
type Config struct {
	GithubToken      string
	GithubRootURL    string
	TelegramBotToken string
	// NotifyChatID is the Telegram chat that receives notification messages.
	NotifyChatID      int64
	AllowedUsers      []int64
	DatabasePath      string
	LogLevel          string
	IntervalMinutes   int
	NotifSound        bool
	SendNotifications bool
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	token := os.Getenv("GITHUB_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("GITHUB_TOKEN is required")
	}

	rootURL := os.Getenv("GITHUB_ROOT_URL")
	if rootURL == "" {
		rootURL = "https://github.com"
	}

	botToken := os.Getenv("TELEGRAM_BOT_TOKEN")
	if botToken == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}

	chatID, err := strconv.ParseInt(os.Getenv("NOTIFY_CHAT_ID"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("NOTIFY_CHAT_ID is required and must be an integer: %w", err)
	}

	dbPath := os.Getenv("DATABASE_PATH")
	if dbPath == "" {
		dbPath = "./data/notifier.db"
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}

	interval := MinIntervalMinutes
	if raw := os.Getenv("POLL_INTERVAL_MINUTES"); raw != "" {
		interval, err = strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid POLL_INTERVAL_MINUTES %q: %w", raw, err)
		}
		if interval < MinIntervalMinutes {
			interval = MinIntervalMinutes
		}
	}

	var allowedUsers []int64
	if raw := os.Getenv("ALLOWED_USERS"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			uid, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid user ID %q in ALLOWED_USERS: %w", s, err)
			}
			allowedUsers = append(allowedUsers, uid)
		}
	}

	return &Config{
		GithubToken:       token,
		GithubRootURL:     rootURL,
		TelegramBotToken:  botToken,
		NotifyChatID:      chatID,
		AllowedUsers:      allowedUsers,
		DatabasePath:      dbPath,
		LogLevel:          logLevel,
		IntervalMinutes:   interval,
		NotifSound:        envBool("NOTIF_SOUND"),
		SendNotifications: envBool("SEND_NOTIFICATIONS"),
	}, nil
}

func envBool(key string) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// IsUserAllowed checks whether a user ID is in the allow list.
// Returns true if the allow list is empty (all users permitted).
func (c *Config) IsUserAllowed(userID int64) bool {
	if len(c.AllowedUsers) == 0 {
		return true
	}
	for _, id := range c.AllowedUsers {
		if id == userID {
			return true
		}
	}
	return false
}
