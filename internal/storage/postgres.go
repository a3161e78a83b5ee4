package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	logx "tgrelay/pkg/logx"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS tgrelay_audit (
	id         BIGSERIAL PRIMARY KEY,
	at         TIMESTAMPTZ NOT NULL,
	kind       TEXT        NOT NULL,
	chat_id    BIGINT      NOT NULL,
	message_id INTEGER,
	target     TEXT,
	text       TEXT        NOT NULL,
	url        TEXT,
	ok         BOOLEAN     NOT NULL,
	err        TEXT,
	took_ms    BIGINT      NOT NULL
);
CREATE INDEX IF NOT EXISTS tgrelay_audit_at_idx ON tgrelay_audit(at);
`

type postgresStore struct {
	pool *pgxpool.Pool
	log  logx.Logger
}

func openPostgres(ctx context.Context, cfg Config, log logx.Logger) (Store, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("storage.dsn is required for postgres driver")
	}
	pcfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("pgxpool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres migrate: %w", err)
	}
	log.Debug("postgres connected", logx.String("host", pcfg.ConnConfig.Host), logx.String("database", pcfg.ConnConfig.Database))
	return &postgresStore{pool: pool, log: log}, nil
}

func (s *postgresStore) AppendAudit(ctx context.Context, e AuditEntry) error {
	if s == nil || s.pool == nil {
		return ErrDisabled
	}
	e = normalize(e)
	_, err := s.pool.Exec(ctx,
		`INSERT INTO tgrelay_audit(at, kind, chat_id, message_id, target, text, url, ok, err, took_ms)
		 VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		e.At, e.Kind, e.ChatID, nullInt(e.MessageID), nullStr(e.Target),
		e.Text, nullStr(e.URL), e.OK, nullStr(e.Error), e.TookMS,
	)
	return err
}

func (s *postgresStore) Close() error {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
	return nil
}
