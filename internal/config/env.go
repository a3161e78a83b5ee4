package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Environment variables that override file values when set.
const (
	EnvBotToken   = "TELEGRAM_BOT_TOKEN"
	EnvSourceChat = "NEWS_GROUP_ID"
	EnvSinkURL    = "SERVER_URL"
	EnvSinkToken  = "ADMIN_TOKEN"
	EnvLogLevel   = "TGRELAY_LOG_LEVEL"
)

// ApplyEnv overlays environment values onto cfg. getenv is usually os.Getenv.
func ApplyEnv(cfg *Config, getenv func(string) string) error {
	if cfg == nil || getenv == nil {
		return nil
	}
	if v := strings.TrimSpace(getenv(EnvBotToken)); v != "" {
		cfg.Telegram.Token = v
	}
	if v := strings.TrimSpace(getenv(EnvSourceChat)); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%s: invalid chat id %q: %w", EnvSourceChat, v, err)
		}
		cfg.Telegram.SourceChat = id
	}
	if v := strings.TrimSpace(getenv(EnvSinkURL)); v != "" {
		cfg.Sink.URL = v
	}
	if v := strings.TrimSpace(getenv(EnvSinkToken)); v != "" {
		cfg.Sink.Token = v
	}
	if v := strings.TrimSpace(getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = v
	}
	return nil
}
