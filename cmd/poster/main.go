// Command poster sends one post (text, photo or video with a caption) to a
// Telegram channel and exits.
//
// Exit codes: 0 sent or dry run, 1 missing credential, 2 nothing to post,
// 3 media file missing, 4 channel not resolvable, 5 send failed.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tgrelay/internal/caption"
	"tgrelay/internal/config"
	"tgrelay/internal/poster"
	"tgrelay/internal/storage"
	"tgrelay/internal/transport"
	"tgrelay/internal/transport/telegram"
	logx "tgrelay/pkg/logx"
)

type options struct {
	configPath string
	group      string
	caption    string
	image      string
	video      string
	record     string
	escapeHTML bool
	dryRun     bool
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("poster", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var o options
	fs.StringVar(&o.configPath, "config", "", "optional config file (.json, .yaml)")
	fs.StringVar(&o.group, "group", "", "target @username, t.me link or numeric id (required)")
	fs.StringVar(&o.caption, "caption", "", "caption or message text")
	fs.StringVar(&o.image, "image", "", "path to an image file")
	fs.StringVar(&o.video, "video", "", "path to a video file (sent with streaming support)")
	fs.StringVar(&o.record, "json", "", "race result record (.json, .yaml) to build the caption from")
	fs.BoolVar(&o.escapeHTML, "escape-html", false, "escape & < > and send with the HTML parse mode")
	fs.BoolVar(&o.dryRun, "dry-run", false, "print what would be sent and exit")
	if err := fs.Parse(args); err != nil {
		return int(poster.CodeNoInput)
	}
	if o.group == "" {
		fmt.Fprintln(stderr, "ERROR: -group is required")
		fs.Usage()
		return int(poster.CodeNoInput)
	}

	// Nothing to post exits before the credential check; a missing media
	// file is only reported once credentials are known to be present.
	req, err := buildRequest(o)
	if err != nil {
		return fail(stderr, err)
	}

	cfg, err := config.NewManager(o.configPath, os.Getenv).Load()
	if err == nil {
		err = config.ValidatePoster(cfg)
	}
	if err != nil {
		return fail(stderr, &poster.Error{Code: poster.CodeConfig, Op: "config", Err: err})
	}

	if err := poster.CheckInput(req); err != nil {
		return fail(stderr, err)
	}

	if o.dryRun {
		media := "None"
		if req.Media != nil {
			media = req.Media.Path
		}
		fmt.Fprintln(stdout, "--- DRY RUN ---")
		fmt.Fprintf(stdout, "Target: %s\n", o.group)
		fmt.Fprintf(stdout, "Media: %s\n", media)
		fmt.Fprintf(stdout, "Caption:\n%s\n", req.Text)
		return int(poster.CodeOK)
	}

	log := logx.NewConsole(stderr, cfg.Logging.Level)
	ad, err := telegram.New(telegram.Config{Token: cfg.Telegram.Token}, log.With(logx.String("comp", "telegram")))
	if err != nil {
		return fail(stderr, &poster.Error{Code: poster.CodeConfig, Op: "telegram", Err: err})
	}

	store := openAudit(ctx, cfg, log)
	defer store.Close()

	start := time.Now()
	res, err := poster.New(ad, log).Post(ctx, req)
	entry := storage.AuditEntry{
		At:        start,
		Kind:      storage.KindPost,
		ChatID:    res.ChatID,
		MessageID: res.MessageID,
		Target:    o.group,
		Text:      req.Text,
		OK:        err == nil,
		TookMS:    time.Since(start).Milliseconds(),
	}
	if err != nil {
		entry.Error = err.Error()
	}
	if aerr := store.AppendAudit(ctx, entry); aerr != nil {
		log.Warn("audit append failed", logx.Err(aerr))
	}
	if err != nil {
		return fail(stderr, err)
	}
	fmt.Fprintf(stdout, "Posted to %s; message id: %d\n", o.group, res.MessageID)
	return int(poster.CodeOK)
}

// buildRequest composes the caption and picks the media. An image wins
// over a video when both are given.
func buildRequest(o options) (poster.Request, error) {
	var rec *caption.RaceResult
	if o.record != "" {
		r, err := caption.Load(o.record)
		if err != nil {
			return poster.Request{}, &poster.Error{Code: poster.CodeNoInput, Op: "record", Err: err}
		}
		rec = r
	}

	req := poster.Request{Target: o.group}
	switch {
	case o.image != "":
		req.Media = &transport.Media{Kind: transport.MediaPhoto, Path: o.image}
	case o.video != "":
		req.Media = &transport.Media{Kind: transport.MediaVideo, Path: o.video, Streaming: true}
	}

	text, err := caption.Composer{EscapeHTML: o.escapeHTML}.Compose(o.caption, rec)
	switch {
	case errors.Is(err, caption.ErrEmpty) && req.Media != nil:
		// Media may go out without a caption.
	case err != nil:
		return poster.Request{}, &poster.Error{Code: poster.CodeNoInput, Op: "caption", Err: err}
	}
	req.Text = text
	if o.escapeHTML {
		req.ParseMode = "HTML"
	}
	return req, nil
}

func openAudit(ctx context.Context, cfg *config.Config, log logx.Logger) storage.Store {
	if cfg.Storage == nil {
		return storage.Nop{}
	}
	busy, _ := config.ParseDurationOrDefault("storage.busy_timeout", cfg.Storage.BusyTimeout, 0)
	st, err := storage.Open(ctx, storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		DSN:         cfg.Storage.DSN,
		BusyTimeout: busy,
	}, log)
	if err != nil {
		if !errors.Is(err, storage.ErrDisabled) {
			log.Warn("audit trail unavailable", logx.Err(err))
		}
		return storage.Nop{}
	}
	return st
}

func fail(stderr io.Writer, err error) int {
	fmt.Fprintln(stderr, "ERROR:", err)
	return poster.ExitCode(err)
}
