package storage

import (
	"context"
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Entry kinds.
const (
	KindForward = "forward"
	KindPost    = "post"
)

// Config selects a driver. An empty Driver or "none" disables storage.
type Config struct {
	Driver      string
	Path        string // file, sqlite
	DSN         string // postgres
	BusyTimeout time.Duration
}

// AuditEntry is one forward or post attempt.
// Keep it compact and schema-stable.
type AuditEntry struct {
	At        time.Time `json:"at"`
	Kind      string    `json:"kind"`
	ChatID    int64     `json:"chat_id"`
	MessageID int       `json:"message_id,omitempty"`
	Target    string    `json:"target,omitempty"`
	Text      string    `json:"text"`
	URL       string    `json:"url,omitempty"`
	OK        bool      `json:"ok"`
	Error     string    `json:"error,omitempty"`
	TookMS    int64     `json:"took_ms"`
}

type Store interface {
	AppendAudit(ctx context.Context, e AuditEntry) error
	Close() error
}

// Nop discards entries. Used when storage is disabled so callers need no nil checks.
type Nop struct{}

func (Nop) AppendAudit(context.Context, AuditEntry) error { return nil }
func (Nop) Close() error                                  { return nil }
