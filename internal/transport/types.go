package transport

import (
	"context"
	"time"
)

// Entity is a rich-text annotation attached to a message.
// URL is empty unless the annotation carries an explicit link target.
type Entity struct {
	Kind string
	URL  string
}

// RawEvent is a newly posted message in a monitored chat.
type RawEvent struct {
	ChatID    int64
	MessageID int
	Text      string
	Entities  []Entity
	At        time.Time
}

// ChatTarget addresses a chat either by numeric id or by handle.
// A resolved target always has ChatID set.
type ChatTarget struct {
	ChatID   int64
	Username string // "@name" form; empty for numeric targets
	ThreadID int    // telegram forum topic thread id (0 if none)
	Title    string // filled on resolve, informational
}

func (t ChatTarget) IsZero() bool { return t.ChatID == 0 && t.Username == "" }

type MessageRef struct {
	ChatID    int64
	ThreadID  int
	MessageID int
}

type MediaKind string

const (
	MediaPhoto MediaKind = "photo"
	MediaVideo MediaKind = "video"
)

// Media is a local file attached to an outbound message.
type Media struct {
	Kind      MediaKind
	Path      string
	Streaming bool // video only
}

type SendOptions struct {
	ParseMode      string // empty means plain text
	DisablePreview bool
}

// Source delivers raw message events for a single chat.
//
// Subscribe starts delivery into out and returns once the underlying
// session is established; authentication failures are returned here.
// Events stop when ctx is cancelled or Stop is called.
type Source interface {
	Subscribe(ctx context.Context, chatID int64, out chan<- RawEvent) error
	Stop(ctx context.Context) error
}

// Sender is the outbound capability of the messaging platform.
type Sender interface {
	Resolve(ctx context.Context, to ChatTarget) (ChatTarget, error)
	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)
	SendMedia(ctx context.Context, to ChatTarget, m Media, caption string, opt *SendOptions) (MessageRef, error)
}
