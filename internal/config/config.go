// Package config loads the process environment and manages the
// runtime-mutable settings persisted in the database.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	defaultDescription    = "Premium Content Sharing Bot\n\nAccess exclusive content through secure links."
	defaultChannelMessage = "Join our channels for more content!"
)

// Config holds the immutable process configuration read from the
// environment at startup.
type Config struct {
	BotToken string
	AdminIDs []int64

	DatabasePath string
	WorkDir      string
	MetricsAddr  string

	// ChannelMessage is the reply sent to non-admin users who try to
	// talk to the bot directly.
	ChannelMessage string

	// FallbackCommand, when set, names an external helper invoked for
	// files the HTTP download path rejects as too large. Split on
	// whitespace: first field is the binary, the rest fixed arguments.
	FallbackCommand string
}

// Load reads .env (if present) and the process environment. Missing
// required variables are reported as errors, not defaults.
func Load() (*Config, error) {
	// A missing .env is fine; the environment may be set directly.
	_ = godotenv.Load()

	cfg := &Config{
		BotToken:        os.Getenv("BOT_TOKEN"),
		DatabasePath:    envOr("DB_PATH", "medialink.db"),
		WorkDir:         envOr("WORK_DIR", filepath.Join(os.TempDir(), "medialink")),
		MetricsAddr:     envOr("METRICS_ADDR", ":2112"),
		ChannelMessage:  envOr("CHANNEL_MESSAGE", defaultChannelMessage),
		FallbackCommand: os.Getenv("FALLBACK_FETCH_CMD"),
	}
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("BOT_TOKEN is not set")
	}

	ids, err := parseAdminIDs(os.Getenv("ADMIN_IDS"))
	if err != nil {
		return nil, err
	}
	cfg.AdminIDs = ids

	return cfg, nil
}

// IsAdmin reports whether id is in the configured admin list.
func (c *Config) IsAdmin(id int64) bool {
	for _, a := range c.AdminIDs {
		if a == id {
			return true
		}
	}
	return false
}

func parseAdminIDs(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("ADMIN_IDS entry %q: %w", part, err)
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("ADMIN_IDS must list at least one admin user id")
	}
	return ids, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
