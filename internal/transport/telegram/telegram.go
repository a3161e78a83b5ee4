// Package telegram implements transport.Source and transport.Sender on
// top of the Telegram Bot API (telebot).
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	tele "gopkg.in/telebot.v4"

	rtsup "tgrelay/internal/runtime/supervisor"
	"tgrelay/internal/transport"
	logx "tgrelay/pkg/logx"
)

type Config struct {
	Token       string
	PollTimeout time.Duration
	// URL overrides the Bot API endpoint (tests, local bot API servers).
	URL string
	// Offline skips the getMe handshake.
	Offline bool
}

// ctxBox gives atomic.Pointer a fixed type whatever the context's
// concrete type is.
type ctxBox struct{ context.Context }

type Adapter struct {
	cfg Config
	log logx.Logger
	bot *tele.Bot

	out    atomic.Value // chan<- transport.RawEvent
	chatID atomic.Int64
	// ctx bounds blocking hand-offs from the poll loop to the consumer.
	ctx atomic.Pointer[ctxBox]

	runMu   sync.Mutex
	running bool
	sup     *rtsup.Supervisor

	ignored atomic.Uint64
}

var (
	_ transport.Source = (*Adapter)(nil)
	_ transport.Sender = (*Adapter)(nil)
)

// New creates the bot. Unless cfg.Offline is set this performs getMe, so
// an invalid token fails here, before any listening starts.
func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		URL:     cfg.URL,
		Token:   cfg.Token,
		Poller:  &tele.LongPoller{Timeout: timeout, AllowedUpdates: []string{"message", "channel_post"}},
		Offline: cfg.Offline,
		// Handlers run on the poll goroutine so events leave in arrival order.
		Synchronous: true,
		OnError: func(err error, c tele.Context) {
			log.Warn("telegram handler error", logx.Err(err))
		},
	})
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	a := &Adapter{cfg: cfg, log: log, bot: b}
	var nilOut chan<- transport.RawEvent
	a.out.Store(nilOut)
	a.ctx.Store(&ctxBox{context.Background()})
	a.registerHandlers()
	return a, nil
}

func (a *Adapter) registerHandlers() {
	h := func(c tele.Context) error {
		a.dispatch(c.Message())
		return nil
	}
	a.bot.Handle(tele.OnChannelPost, h)
	a.bot.Handle(tele.OnText, h)
	a.bot.Handle(tele.OnMedia, h)
}

func (a *Adapter) dispatch(m *tele.Message) {
	ev, ok := rawEventFrom(m)
	if !ok || ev.ChatID != a.chatID.Load() {
		a.ignored.Add(1)
		return
	}
	out, _ := a.out.Load().(chan<- transport.RawEvent)
	if out == nil {
		return
	}
	ctx := a.ctx.Load()
	// Block rather than drop: pending updates wait in Telegram's queue.
	select {
	case out <- ev:
	case <-ctx.Done():
	}
}

// rawEventFrom converts a message; media posts contribute their caption.
func rawEventFrom(m *tele.Message) (transport.RawEvent, bool) {
	if m == nil || m.Chat == nil {
		return transport.RawEvent{}, false
	}
	text, ents := m.Text, m.Entities
	if text == "" {
		text, ents = m.Caption, m.CaptionEntities
	}
	ev := transport.RawEvent{
		ChatID:    m.Chat.ID,
		MessageID: m.ID,
		Text:      text,
		At:        m.Time(),
	}
	if len(ents) > 0 {
		ev.Entities = make([]transport.Entity, 0, len(ents))
		for _, e := range ents {
			ev.Entities = append(ev.Entities, transport.Entity{Kind: string(e.Type), URL: e.URL})
		}
	}
	return ev, true
}

// Subscribe starts long polling and forwards messages of chatID into out.
func (a *Adapter) Subscribe(ctx context.Context, chatID int64, out chan<- transport.RawEvent) error {
	if out == nil {
		return errors.New("telegram: nil output channel")
	}
	a.runMu.Lock()
	defer a.runMu.Unlock()
	if a.running {
		return errors.New("telegram: already subscribed")
	}
	a.running = true
	a.chatID.Store(chatID)
	a.out.Store(out)
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log.With(logx.String("comp", "telegram"))))
	a.ctx.Store(&ctxBox{a.sup.Context()})
	sup := a.sup

	sup.Go0("telebot.stop_on_cancel", func(c context.Context) {
		<-c.Done()
		a.bot.Stop()
	})
	// Start() blocks until Stop(); restart it if it returns early.
	sup.GoRestart("telebot.poll", func(c context.Context) error {
		a.log.Info("polling started", logx.Int64("chat_id", chatID))
		a.bot.Start()
		a.log.Info("polling stopped")
		return nil
	}, rtsup.WithRestartBackoff(500*time.Millisecond, 10*time.Second), rtsup.WithStopOnCleanExit(false))
	return nil
}

// Stop ends polling. It never blocks longer than ctx allows (2s at most).
func (a *Adapter) Stop(ctx context.Context) error {
	a.runMu.Lock()
	sup := a.sup
	a.sup = nil
	wasRunning := a.running
	a.running = false
	var nilOut chan<- transport.RawEvent
	a.out.Store(nilOut)
	a.runMu.Unlock()

	if !wasRunning || sup == nil {
		return nil
	}
	sup.Cancel()
	wctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := sup.Wait(wctx); err != nil {
		c := sup.Counters()
		a.log.Warn("telegram stop",
			logx.Err(err),
			logx.Int64("active", c.Active),
			logx.Uint64("started", c.Started),
			logx.Uint64("ignored_updates", a.ignored.Load()),
		)
	}
	return nil
}

// Resolve looks the target up with getChat and returns it with ChatID set.
func (a *Adapter) Resolve(ctx context.Context, to transport.ChatTarget) (transport.ChatTarget, error) {
	if err := ctx.Err(); err != nil {
		return to, err
	}
	var (
		chat *tele.Chat
		err  error
	)
	switch {
	case to.ChatID != 0:
		chat, err = a.bot.ChatByID(to.ChatID)
	case to.Username != "":
		chat, err = a.bot.ChatByUsername(to.Username)
	default:
		return to, errors.New("telegram: empty chat target")
	}
	if err != nil {
		return to, err
	}
	to.ChatID = chat.ID
	to.Title = chat.Title
	if chat.Username != "" {
		to.Username = "@" + chat.Username
	}
	return to, nil
}

func (a *Adapter) sendOptions(to transport.ChatTarget, opt *transport.SendOptions) *tele.SendOptions {
	so := &tele.SendOptions{ThreadID: to.ThreadID}
	if opt != nil {
		so.ParseMode = tele.ParseMode(opt.ParseMode)
		so.DisableWebPagePreview = opt.DisablePreview
	}
	return so
}

func (a *Adapter) SendText(ctx context.Context, to transport.ChatTarget, text string, opt *transport.SendOptions) (transport.MessageRef, error) {
	if err := ctx.Err(); err != nil {
		return transport.MessageRef{}, err
	}
	msg, err := a.bot.Send(&tele.Chat{ID: to.ChatID}, text, a.sendOptions(to, opt))
	if err != nil {
		return transport.MessageRef{}, err
	}
	return transport.MessageRef{ChatID: to.ChatID, ThreadID: to.ThreadID, MessageID: msg.ID}, nil
}

func (a *Adapter) SendMedia(ctx context.Context, to transport.ChatTarget, m transport.Media, caption string, opt *transport.SendOptions) (transport.MessageRef, error) {
	if err := ctx.Err(); err != nil {
		return transport.MessageRef{}, err
	}
	var what tele.Sendable
	switch m.Kind {
	case transport.MediaPhoto:
		what = &tele.Photo{File: tele.FromDisk(m.Path), Caption: caption}
	case transport.MediaVideo:
		what = &tele.Video{File: tele.FromDisk(m.Path), Caption: caption, Streaming: m.Streaming}
	default:
		return transport.MessageRef{}, fmt.Errorf("telegram: unsupported media kind %q", m.Kind)
	}
	msg, err := a.bot.Send(&tele.Chat{ID: to.ChatID}, what, a.sendOptions(to, opt))
	if err != nil {
		return transport.MessageRef{}, err
	}
	return transport.MessageRef{ChatID: to.ChatID, ThreadID: to.ThreadID, MessageID: msg.ID}, nil
}
