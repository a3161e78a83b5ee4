package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	logx "tgrelay/pkg/logx"
)

// Open initializes the configured store.
// It returns ErrDisabled if storage is disabled.
func Open(ctx context.Context, cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, ErrDisabled
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	log = log.With(logx.String("comp", "storage"), logx.String("driver", driver))

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(ctx, cfg, log)
	case "postgres", "postgresql", "pgx":
		return openPostgres(ctx, cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}

var timeNow = time.Now

func normalize(e AuditEntry) AuditEntry {
	if e.At.IsZero() {
		e.At = timeNow()
	}
	e.At = e.At.UTC()
	return e
}
