package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrMissingCredential marks configuration that lacks a required secret.
var ErrMissingCredential = errors.New("missing credential")

// ValidateMonitor checks the settings the inbound listener cannot start without.
func ValidateMonitor(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		return fmt.Errorf("%w: telegram.token (or %s) must be set", ErrMissingCredential, EnvBotToken)
	}
	if strings.TrimSpace(cfg.Sink.Token) == "" {
		return fmt.Errorf("%w: sink.token (or %s) must be set", ErrMissingCredential, EnvSinkToken)
	}
	if cfg.Telegram.SourceChat == 0 {
		return fmt.Errorf("telegram.source_chat (or %s) must be set", EnvSourceChat)
	}
	u, err := url.Parse(strings.TrimSpace(cfg.Sink.URL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("sink.url: invalid endpoint %q", cfg.Sink.URL)
	}
	for path, raw := range map[string]string{
		"telegram.poll_timeout": cfg.Telegram.PollTimeout,
		"sink.timeout":          cfg.Sink.Timeout,
	} {
		if _, err := ParseDurationField(path, raw); err != nil {
			return err
		}
	}
	if cfg.Storage != nil {
		if _, err := ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout); err != nil {
			return err
		}
	}
	return nil
}

// ValidatePoster checks what a one-shot post needs: only the bot token.
func ValidatePoster(cfg *Config) error {
	if cfg == nil || strings.TrimSpace(cfg.Telegram.Token) == "" {
		return fmt.Errorf("%w: %s (or telegram.token) must be set", ErrMissingCredential, EnvBotToken)
	}
	return nil
}
