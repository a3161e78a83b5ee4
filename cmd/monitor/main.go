// Command monitor watches a Telegram chat and forwards each message's
// headline and link to the news server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tgrelay/internal/config"
	"tgrelay/internal/delivery"
	"tgrelay/internal/metrics"
	"tgrelay/internal/monitor"
	rtsup "tgrelay/internal/runtime/supervisor"
	"tgrelay/internal/storage"
	"tgrelay/internal/transport/telegram"
	logx "tgrelay/pkg/logx"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "", "path to config (.json, .yaml); empty uses defaults and environment")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfgPath); err != nil {
		fmt.Fprintln(os.Stderr, "ERROR:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfgPath string) error {
	cfgm := config.NewManager(cfgPath, os.Getenv)
	cfg, err := cfgm.Load()
	if err != nil {
		return err
	}
	if err := config.ValidateMonitor(cfg); err != nil {
		return err
	}
	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return err
	}
	sinkTimeout, err := config.ParseDurationOrDefault("sink.timeout", cfg.Sink.Timeout, 10*time.Second)
	if err != nil {
		return err
	}

	bootLog := logx.NewConsole(logx.Stderr(), cfg.Logging.Level).With(logx.String("comp", "telegram"))
	ad, err := telegram.New(telegram.Config{Token: cfg.Telegram.Token, PollTimeout: pollTimeout}, bootLog)
	if err != nil {
		return err
	}

	logSvc, log := logx.New(cfg.Logging.Logx(), logx.Stdout(), ad)
	defer logSvc.Close()
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	store, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	client, err := delivery.New(delivery.Config{
		URL:        cfg.Sink.URL,
		Token:      cfg.Sink.Token,
		Timeout:    sinkTimeout,
		RatePerSec: cfg.Sink.RatePerSec,
	}, log.With(logx.String("comp", "delivery")))
	if err != nil {
		return err
	}

	// A failed background task (metrics listener, config watcher) ends the run.
	sup := rtsup.New(ctx, rtsup.WithLogger(log), rtsup.WithCancelOnError(true))
	defer func() {
		wctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = sup.Stop(wctx)
	}()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		srv := metrics.NewServer(metrics.ServerConfig{
			Addr:  cfg.Metrics.Addr,
			Pprof: cfg.Metrics.Pprof,
			Token: cfg.Metrics.Token,
		}, m, log)
		sup.Go("metrics.serve", srv.Run)
	}

	watchConfig(sup, cfgm, logSvc, log)

	svc := monitor.New(monitor.Deps{
		Source:    ad,
		Deliverer: client,
		Store:     store,
		Metrics:   m,
		Log:       log,
	}, monitor.Config{
		ChatID: cfg.Telegram.SourceChat,
		Buffer: cfg.Telegram.Buffer,
		Report: cfg.Report,
	})
	if err := svc.Run(sup.Context()); err != nil {
		return err
	}
	return sup.Err()
}

func openStore(ctx context.Context, cfg *config.Config, log logx.Logger) (storage.Store, error) {
	if cfg.Storage == nil {
		return storage.Nop{}, nil
	}
	busy, err := config.ParseDurationOrDefault("storage.busy_timeout", cfg.Storage.BusyTimeout, 0)
	if err != nil {
		return nil, err
	}
	st, err := storage.Open(ctx, storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		DSN:         cfg.Storage.DSN,
		BusyTimeout: busy,
	}, log)
	if errors.Is(err, storage.ErrDisabled) {
		return storage.Nop{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}
	log.Info("audit trail enabled", logx.String("driver", cfg.Storage.Driver))
	return st, nil
}

// watchConfig follows the config file and re-applies logging on change.
// Other sections take effect on restart.
func watchConfig(sup *rtsup.Supervisor, cfgm *config.Manager, logSvc *logx.Service, log logx.Logger) {
	if cfgm.Path() == "" {
		return
	}
	updates := cfgm.Subscribe(1)
	sup.GoRestart("config.watch", func(ctx context.Context) error {
		return cfgm.Watch(ctx, config.ValidateMonitor)
	}, rtsup.WithRestartBackoff(time.Second, time.Minute), rtsup.WithMaxRestarts(5))
	sup.Go0("config.apply", func(ctx context.Context) {
		defer cfgm.Unsubscribe(updates)
		for {
			select {
			case <-ctx.Done():
				return
			case c := <-updates:
				logSvc.Apply(c.Logging.Logx())
				log.Info("logging reconfigured; other changes apply on restart", logx.String("level", c.Logging.Level))
			}
		}
	})
}
