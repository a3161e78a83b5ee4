package config

// Config is the on-disk configuration shared by both binaries.
//
// The file is JSON (unknown fields rejected) or YAML when the path ends in
// .yaml/.yml. Durations are Go duration strings ("8s", "1m").
type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Sink     SinkConfig     `json:"sink"`
	Logging  LoggingConfig  `json:"logging"`
	Storage  *StorageConfig `json:"storage,omitempty"`
	Metrics  MetricsConfig  `json:"metrics,omitempty"`

	// Report is a cron spec ("@every 1h", "0 9 * * *") for the monitor's
	// periodic counters summary. Empty disables it.
	Report string `json:"report,omitempty"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// SourceChat is the numeric id of the monitored channel/group.
	SourceChat int64 `json:"source_chat"`
	// PollTimeout is the long-poll timeout (default "10s").
	PollTimeout string `json:"poll_timeout,omitempty"`
	// Buffer is the capacity of the inbound event queue (default 64).
	Buffer int `json:"buffer,omitempty"`
}

// SinkConfig describes the internal HTTP endpoint receiving headlines.
type SinkConfig struct {
	URL        string `json:"url"`
	Token      string `json:"token"`
	Timeout    string `json:"timeout,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty"` // 0 disables the cap
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	ChatID     int64  `json:"chat_id"`
	ThreadID   int    `json:"thread_id"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// StorageConfig enables the optional audit trail.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./tgrelay.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path,omitempty"`
	DSN         string `json:"dsn,omitempty"`          // postgres only (do not log)
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only
}

// MetricsConfig controls the Prometheus listener of the monitor.
// Prefer binding to localhost.
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"` // default "127.0.0.1:9464"
	// Pprof mounts /debug/pprof/ on the same listener.
	Pprof bool   `json:"pprof,omitempty"`
	Token string `json:"token,omitempty"` // required for pprof off loopback
}
