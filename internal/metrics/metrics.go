// Package metrics exposes the monitor's counters to Prometheus.
package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	logx "tgrelay/pkg/logx"
)

const namespace = "tgrelay"

const DefaultAddr = "127.0.0.1:9464"

// Metrics holds the monitor's counters on a private registry.
type Metrics struct {
	reg *prometheus.Registry

	Received  prometheus.Counter
	Skipped   prometheus.Counter
	Forwarded prometheus.Counter
	Failed    prometheus.Counter
	Latency   prometheus.Histogram
}

func New() *Metrics {
	m := &Metrics{reg: prometheus.NewRegistry()}
	m.Received = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "messages_received_total",
		Help:      "Messages received from the source chat",
	})
	m.Skipped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "messages_skipped_total",
		Help:      "Messages without a usable headline",
	})
	m.Forwarded = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "forward_ok_total",
		Help:      "Headlines accepted by the sink",
	})
	m.Failed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "forward_failed_total",
		Help:      "Headlines the sink rejected or never received",
	})
	m.Latency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "forward_duration_seconds",
		Help:      "Time spent delivering one headline",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
	})
	m.reg.MustRegister(
		m.Received, m.Skipped, m.Forwarded, m.Failed, m.Latency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr string
	// Pprof mounts net/http/pprof under /debug/pprof/. On a non-loopback
	// address it requires Token.
	Pprof bool
	Token string
}

// Server serves /metrics, /healthz and optionally /debug/pprof/.
type Server struct {
	srv *http.Server
	log logx.Logger
}

func NewServer(cfg ServerConfig, m *Metrics, log logx.Logger) *Server {
	addr := cfg.Addr
	if addr == "" {
		addr = DefaultAddr
	}
	log = log.With(logx.String("comp", "metrics"))
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if cfg.Pprof {
		if cfg.Token == "" && !isLoopbackAddr(addr) {
			log.Warn("pprof refused on non-loopback address without token", logx.String("addr", addr))
		} else {
			mountPprof(mux, cfg.Token)
		}
	}
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		log: log,
	}
}

// Run listens until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	s.log.Info("metrics listening", logx.String("addr", ln.Addr().String()))

	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.Serve(ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(sctx)
		return nil
	}
}
