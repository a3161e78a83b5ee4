// Package poster sends one caption, optionally with a photo or video, to a
// Telegram channel and classifies failures into process exit codes.
package poster

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"tgrelay/internal/transport"
	logx "tgrelay/pkg/logx"
)

type Request struct {
	// Target is a numeric chat id, "@name", "name" or a t.me link.
	Target    string
	Text      string
	Media     *transport.Media
	ParseMode string
}

type Result struct {
	ChatID    int64
	MessageID int
}

type Sender struct {
	tr  transport.Sender
	log logx.Logger
}

func New(tr transport.Sender, log logx.Logger) *Sender {
	return &Sender{tr: tr, log: log.With(logx.String("comp", "poster"))}
}

// Post resolves the target and sends the media or text. Errors are *Error.
func (s *Sender) Post(ctx context.Context, req Request) (Result, error) {
	if err := CheckInput(req); err != nil {
		return Result{}, err
	}
	target, err := ParseTarget(req.Target)
	if err != nil {
		return Result{}, &Error{Code: CodeResolve, Op: "parse target", Err: err}
	}
	to, err := s.tr.Resolve(ctx, target)
	if err != nil {
		return Result{}, &Error{Code: CodeResolve, Op: "resolve " + req.Target, Err: err}
	}
	s.log.Debug("target resolved", logx.Int64("chat_id", to.ChatID), logx.String("title", to.Title))

	var opt *transport.SendOptions
	if req.ParseMode != "" {
		opt = &transport.SendOptions{ParseMode: req.ParseMode}
	}

	start := time.Now()
	var ref transport.MessageRef
	if req.Media != nil {
		ref, err = s.tr.SendMedia(ctx, to, *req.Media, req.Text, opt)
	} else {
		ref, err = s.tr.SendText(ctx, to, req.Text, opt)
	}
	if err != nil {
		return Result{}, &Error{Code: CodeSend, Op: "send", Err: err}
	}
	s.log.Info("posted",
		logx.Int64("chat_id", ref.ChatID),
		logx.Int("message_id", ref.MessageID),
		logx.Duration("took", time.Since(start)),
	)
	return Result{ChatID: ref.ChatID, MessageID: ref.MessageID}, nil
}

// CheckInput validates a request without touching the network: there must
// be text or media, and a media file must exist.
func CheckInput(req Request) error {
	if req.Media == nil {
		if strings.TrimSpace(req.Text) == "" {
			return &Error{Code: CodeNoInput, Op: "input", Err: errors.New("nothing to post: provide a caption, image, video or record")}
		}
		return nil
	}
	switch req.Media.Kind {
	case transport.MediaPhoto, transport.MediaVideo:
	default:
		return &Error{Code: CodeNoInput, Op: "input", Err: fmt.Errorf("unsupported media kind %q", req.Media.Kind)}
	}
	fi, err := os.Stat(req.Media.Path)
	if err != nil {
		return &Error{Code: CodeMediaMissing, Op: "media", Err: err}
	}
	if fi.IsDir() {
		return &Error{Code: CodeMediaMissing, Op: "media", Err: fmt.Errorf("%s is a directory", req.Media.Path)}
	}
	return nil
}

// ParseTarget interprets a channel reference. It is numeric when the string
// minus a leading "-" is all digits; otherwise it is a handle.
func ParseTarget(raw string) (transport.ChatTarget, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return transport.ChatTarget{}, errors.New("empty target")
	}
	if digits := strings.TrimPrefix(s, "-"); digits != "" && strings.Trim(digits, "0123456789") == "" {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return transport.ChatTarget{}, fmt.Errorf("target %q: %w", raw, err)
		}
		return transport.ChatTarget{ChatID: id}, nil
	}
	s = strings.TrimPrefix(strings.TrimPrefix(s, "https://"), "http://")
	s = strings.TrimPrefix(strings.TrimPrefix(s, "t.me/"), "telegram.me/")
	s = strings.TrimPrefix(s, "@")
	if s == "" || strings.ContainsAny(s, "/ ") {
		return transport.ChatTarget{}, fmt.Errorf("target %q: not a chat id or username", raw)
	}
	return transport.ChatTarget{Username: "@" + s}, nil
}
