// Package monitor forwards headlines from a watched chat to the sink.
//
// Events are handled one at a time in arrival order. A failure (or panic)
// while handling one event is logged and never stops the loop.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/robfig/cron/v3"

	"tgrelay/internal/headline"
	"tgrelay/internal/metrics"
	rtsup "tgrelay/internal/runtime/supervisor"
	"tgrelay/internal/storage"
	"tgrelay/internal/transport"
	logx "tgrelay/pkg/logx"
)

// Deliverer posts one headline to the sink.
type Deliverer interface {
	Deliver(ctx context.Context, h headline.Headline) error
}

// NotifyFunc reports a service state to the init system (sd_notify).
type NotifyFunc func(state string) (bool, error)

type Deps struct {
	Source    transport.Source
	Deliverer Deliverer
	Log       logx.Logger

	// Optional.
	Store   storage.Store
	Metrics *metrics.Metrics
	Notify  NotifyFunc
}

type Config struct {
	ChatID int64
	// Buffer is the capacity of the event queue between poller and handler.
	Buffer int
	// Report is a cron spec for the periodic stats log. Empty disables it.
	Report string
	// Watchdog overrides the systemd watchdog interval. Zero asks systemd.
	Watchdog time.Duration
}

// Stats are the counters since start.
type Stats struct {
	Received  uint64
	Skipped   uint64
	Forwarded uint64
	Failed    uint64
}

type Service struct {
	deps Deps
	cfg  Config
	log  logx.Logger

	received  atomic.Uint64
	skipped   atomic.Uint64
	forwarded atomic.Uint64
	failed    atomic.Uint64
}

func New(deps Deps, cfg Config) *Service {
	if deps.Log.IsZero() {
		deps.Log = logx.Nop()
	}
	if deps.Store == nil {
		deps.Store = storage.Nop{}
	}
	if deps.Notify == nil {
		deps.Notify = func(state string) (bool, error) { return daemon.SdNotify(false, state) }
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = 64
	}
	return &Service{deps: deps, cfg: cfg, log: deps.Log.With(logx.String("comp", "monitor"))}
}

func (s *Service) Stats() Stats {
	return Stats{
		Received:  s.received.Load(),
		Skipped:   s.skipped.Load(),
		Forwarded: s.forwarded.Load(),
		Failed:    s.failed.Load(),
	}
}

// Run listens until ctx is cancelled. It returns an error only when the
// source cannot be started or the report schedule is invalid.
func (s *Service) Run(ctx context.Context) error {
	if s.deps.Source == nil || s.deps.Deliverer == nil {
		return errors.New("monitor: source and deliverer are required")
	}

	var sched *cron.Cron
	if s.cfg.Report != "" {
		sched = cron.New(cron.WithParser(cron.NewParser(
			cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
		)))
		if _, err := sched.AddFunc(s.cfg.Report, s.report); err != nil {
			return fmt.Errorf("report schedule %q: %w", s.cfg.Report, err)
		}
	}

	events := make(chan transport.RawEvent, s.cfg.Buffer)
	if err := s.deps.Source.Subscribe(ctx, s.cfg.ChatID, events); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := s.deps.Source.Stop(stopCtx); err != nil {
			s.log.Warn("source stop", logx.Err(err))
		}
	}()

	sup := rtsup.New(ctx, rtsup.WithLogger(s.log))
	if sched != nil {
		sched.Start()
		defer func() { <-sched.Stop().Done() }()
	}
	if interval := s.watchdogInterval(); interval > 0 {
		sup.Go0("monitor.watchdog", func(c context.Context) { s.watchdog(c, interval) })
	}

	s.notify(daemon.SdNotifyReady)
	s.log.Info("listening", logx.Int64("chat_id", s.cfg.ChatID), logx.Int("buffer", s.cfg.Buffer))

	for {
		select {
		case <-ctx.Done():
			s.notify(daemon.SdNotifyStopping)
			st := s.Stats()
			s.log.Info("stopping",
				logx.Uint64("received", st.Received),
				logx.Uint64("forwarded", st.Forwarded),
				logx.Uint64("failed", st.Failed),
			)
			wctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = sup.Stop(wctx)
			return nil
		case ev := <-events:
			s.handle(ctx, ev)
		}
	}
}

// handle runs one event inside its own failure scope.
func (s *Service) handle(ctx context.Context, ev transport.RawEvent) {
	s.received.Add(1)
	if m := s.deps.Metrics; m != nil {
		m.Received.Inc()
	}
	err := rtsup.Guard(s.log, "monitor.handle", func() error { return s.process(ctx, ev) })
	if err == nil {
		return
	}
	s.failed.Add(1)
	if m := s.deps.Metrics; m != nil {
		m.Failed.Inc()
	}
	s.log.Error("forward failed",
		logx.Int64("chat_id", ev.ChatID),
		logx.Int("message_id", ev.MessageID),
		logx.Err(err),
	)
}

func (s *Service) process(ctx context.Context, ev transport.RawEvent) error {
	h, ok := headline.Extract(ev)
	if !ok {
		s.skipped.Add(1)
		if m := s.deps.Metrics; m != nil {
			m.Skipped.Inc()
		}
		s.log.Debug("skipping empty message", logx.Int64("chat_id", ev.ChatID), logx.Int("message_id", ev.MessageID))
		return nil
	}

	start := time.Now()
	err := s.deps.Deliverer.Deliver(ctx, h)
	took := time.Since(start)
	if m := s.deps.Metrics; m != nil {
		m.Latency.Observe(took.Seconds())
	}

	entry := storage.AuditEntry{
		At:        start,
		Kind:      storage.KindForward,
		ChatID:    ev.ChatID,
		MessageID: ev.MessageID,
		Text:      h.Text,
		URL:       h.URL,
		OK:        err == nil,
		TookMS:    took.Milliseconds(),
	}
	if err != nil {
		entry.Error = err.Error()
	}
	if aerr := s.deps.Store.AppendAudit(ctx, entry); aerr != nil {
		s.log.Warn("audit append failed", logx.Err(aerr))
	}
	if err != nil {
		return err
	}

	s.forwarded.Add(1)
	if m := s.deps.Metrics; m != nil {
		m.Forwarded.Inc()
	}
	s.log.Info("headline forwarded",
		logx.Int("message_id", ev.MessageID),
		logx.String("headline", h.Text),
		logx.Bool("has_url", h.URL != ""),
		logx.Duration("took", took),
	)
	return nil
}

func (s *Service) report() {
	st := s.Stats()
	s.log.Info("stats",
		logx.Uint64("received", st.Received),
		logx.Uint64("skipped", st.Skipped),
		logx.Uint64("forwarded", st.Forwarded),
		logx.Uint64("failed", st.Failed),
	)
}

func (s *Service) notify(state string) {
	if _, err := s.deps.Notify(state); err != nil {
		s.log.Debug("sd_notify failed", logx.String("state", state), logx.Err(err))
	}
}

func (s *Service) watchdogInterval() time.Duration {
	if s.cfg.Watchdog > 0 {
		return s.cfg.Watchdog
	}
	d, err := daemon.SdWatchdogEnabled(false)
	if err != nil || d <= 0 {
		return 0
	}
	// Ping twice per interval.
	return d / 2
}

func (s *Service) watchdog(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.notify(daemon.SdNotifyWatchdog)
		}
	}
}
