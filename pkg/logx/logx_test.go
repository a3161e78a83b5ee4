package logx

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"tgrelay/internal/transport"
)

type recordingSender struct {
	mu   sync.Mutex
	msgs []string
	to   []transport.ChatTarget
}

func (r *recordingSender) Resolve(_ context.Context, to transport.ChatTarget) (transport.ChatTarget, error) {
	return to, nil
}

func (r *recordingSender) SendText(_ context.Context, to transport.ChatTarget, text string, _ *transport.SendOptions) (transport.MessageRef, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, text)
	r.to = append(r.to, to)
	return transport.MessageRef{ChatID: to.ChatID, MessageID: len(r.msgs)}, nil
}

func (r *recordingSender) SendMedia(context.Context, transport.ChatTarget, transport.Media, string, *transport.SendOptions) (transport.MessageRef, error) {
	return transport.MessageRef{}, errors.New("not supported")
}

func (r *recordingSender) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.msgs...)
}

func TestFormatTelegramLine(t *testing.T) {
	t.Parallel()
	got := formatTelegramLine([]byte(`{"level":"warn","time":"2025-01-01","message":"disk low","b":2,"a":"x"}`))
	if want := "[WARN] disk low\n- a=x\n- b=2"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
	if got := formatTelegramLine([]byte("  not json  ")); got != "not json" {
		t.Fatalf("got %q", got)
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()
	if got := truncate("abcdefghijklmnop", 12); got != "abcdefghi..." {
		t.Fatalf("got %q", got)
	}
	if got := truncate("short", 12); got != "short" {
		t.Fatalf("got %q", got)
	}

	// Two-byte runes: the cut backs up to a rune boundary.
	cyr := strings.Repeat("Ж", 8)
	if got := truncate(cyr, 12); got != "ЖЖЖЖ..." || !utf8.ValidString(got) {
		t.Fatalf("got %q", got)
	}
	if got := truncate("ЖЖЖ", 5); got != "ЖЖ" {
		t.Fatalf("got %q", got)
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()
	tests := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		" INFO ":  zerolog.InfoLevel,
		"warning": zerolog.WarnLevel,
		"Error":   zerolog.ErrorLevel,
		"loud":    zerolog.InfoLevel,
	}
	for in, want := range tests {
		if got := ParseLevel(in, zerolog.InfoLevel); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestConsoleLevelFilter(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := NewConsole(&buf, "warn").With(String("comp", "test"))
	log.Info("quiet")
	if buf.Len() != 0 {
		t.Fatalf("info written at warn level: %q", buf.String())
	}
	log.Warn("loud")
	if !strings.Contains(buf.String(), "loud") || !strings.Contains(buf.String(), "comp") {
		t.Fatalf("output = %q", buf.String())
	}
}

func TestZeroLoggerDiscards(t *testing.T) {
	t.Parallel()
	var l Logger
	if !l.IsZero() || Nop().IsZero() {
		t.Fatal("IsZero mismatch")
	}
	l.Error("dropped", Err(errors.New("x")))
}

func TestServiceTelegramSink(t *testing.T) {
	t.Parallel()
	rs := &recordingSender{}
	var out bytes.Buffer
	svc, log := New(Config{
		Level: "debug",
		Telegram: TelegramConfig{
			Enabled:    true,
			ChatID:     -5,
			ThreadID:   9,
			MinLevel:   "warn",
			RatePerSec: 10,
		},
	}, &out, rs)
	defer svc.Close()

	log.Info("routine")
	log.Warn("disk low", String("mount", "/"))

	deadline := time.Now().Add(2 * time.Second)
	for len(rs.snapshot()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("no telegram message sent")
		}
		time.Sleep(5 * time.Millisecond)
	}
	msgs := rs.snapshot()
	if len(msgs) != 1 {
		t.Fatalf("messages = %q", msgs)
	}
	if !strings.HasPrefix(msgs[0], "[WARN] disk low") || !strings.Contains(msgs[0], "- mount=/") {
		t.Fatalf("message = %q", msgs[0])
	}
	rs.mu.Lock()
	to := rs.to[0]
	rs.mu.Unlock()
	if to.ChatID != -5 || to.ThreadID != 9 {
		t.Fatalf("target = %+v", to)
	}
}

func TestServiceApplyFileSink(t *testing.T) {
	t.Parallel()
	var out bytes.Buffer
	svc, log := New(Config{Level: "info", Console: true}, &out, nil)
	log.Info("console only")
	if !strings.Contains(out.String(), "console only") {
		t.Fatalf("console output = %q", out.String())
	}

	path := filepath.Join(t.TempDir(), "app.log")
	svc.Apply(Config{Level: "info", File: FileConfig{Enabled: true, Path: path}})
	log.Info("to file", Int("n", 3))
	log.Debug("below level")
	if err := svc.Close(); err != nil {
		t.Fatal(err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), `"message":"to file"`) || !strings.Contains(string(b), `"n":3`) {
		t.Fatalf("file = %q", b)
	}
	if strings.Contains(string(b), "below level") || strings.Contains(out.String(), "to file") {
		t.Fatal("output routed to the wrong sink")
	}
}
