package storage

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	logx "tgrelay/pkg/logx"
)

func TestOpenDisabled(t *testing.T) {
	t.Parallel()
	for _, driver := range []string{"", " none "} {
		if _, err := Open(context.Background(), Config{Driver: driver}, logx.Nop()); !errors.Is(err, ErrDisabled) {
			t.Fatalf("driver %q: err = %v, want ErrDisabled", driver, err)
		}
	}
	if _, err := Open(context.Background(), Config{Driver: "mongo"}, logx.Nop()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
	if _, err := Open(context.Background(), Config{Driver: "postgres"}, logx.Nop()); err == nil {
		t.Fatal("expected error for missing dsn")
	}
}

func TestFileStoreAppends(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "nested", "audit.jsonl")
	st, err := Open(context.Background(), Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	at := time.Date(2025, 5, 3, 12, 0, 0, 0, time.UTC)
	entries := []AuditEntry{
		{At: at, Kind: KindForward, ChatID: -100, MessageID: 7, Text: "Headline", URL: "https://x", OK: true, TookMS: 12},
		{At: at, Kind: KindForward, ChatID: -100, MessageID: 8, Text: "Other", Error: "sink returned 403", TookMS: 3},
	}
	for _, e := range entries {
		if err := st.AppendAudit(context.Background(), e); err != nil {
			t.Fatalf("AppendAudit: %v", err)
		}
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := st.AppendAudit(context.Background(), entries[0]); err == nil {
		t.Fatal("expected error after Close")
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	var got []AuditEntry
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e AuditEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			t.Fatalf("line %q: %v", sc.Text(), err)
		}
		got = append(got, e)
	}
	if diff := cmp.Diff(entries, got); diff != "" {
		t.Fatalf("entries mismatch (-want +got):\n%s", diff)
	}
}

func TestFileStoreFillsTimestamp(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	st, err := Open(context.Background(), Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	if err := st.AppendAudit(context.Background(), AuditEntry{Kind: KindPost, Text: "x"}); err != nil {
		t.Fatal(err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var e AuditEntry
	if err := json.Unmarshal(b, &e); err != nil {
		t.Fatal(err)
	}
	if e.At.IsZero() || time.Since(e.At) > time.Minute {
		t.Fatalf("At = %v", e.At)
	}
}

func TestSQLiteStore(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "audit.db")
	ctx := context.Background()
	st, err := Open(ctx, Config{Driver: "sqlite", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := st.AppendAudit(ctx, AuditEntry{Kind: KindForward, ChatID: -100, MessageID: 1, Text: "ok", OK: true}); err != nil {
		t.Fatalf("AppendAudit: %v", err)
	}
	if err := st.AppendAudit(ctx, AuditEntry{Kind: KindPost, Target: "@news", Text: "failed", Error: "boom"}); err != nil {
		t.Fatalf("AppendAudit: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatal(err)
	}

	// Reopening runs the migration again on an existing schema.
	st, err = Open(ctx, Config{Driver: "sqlite", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	db := st.(*sqliteStore).db
	var total, ok int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*), COALESCE(SUM(ok), 0) FROM audit`).Scan(&total, &ok); err != nil {
		t.Fatal(err)
	}
	if total != 2 || ok != 1 {
		t.Fatalf("total=%d ok=%d", total, ok)
	}
	var target sql.NullString
	if err := db.QueryRowContext(ctx, `SELECT target FROM audit WHERE kind = 'forward'`).Scan(&target); err != nil {
		t.Fatal(err)
	}
	if target.Valid {
		t.Fatalf("empty target should be NULL, got %q", target.String)
	}
	_ = st.Close()
}

func TestNop(t *testing.T) {
	t.Parallel()
	var st Store = Nop{}
	if err := st.AppendAudit(context.Background(), AuditEntry{}); err != nil {
		t.Fatal(err)
	}
	if err := st.Close(); err != nil {
		t.Fatal(err)
	}
}
