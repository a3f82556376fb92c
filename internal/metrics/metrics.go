package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rallybot/internal/agent"
	"rallybot/internal/eventbus"
	logx "rallybot/pkg/logx"
)

// Config controls the optional metrics HTTP server.
// Prefer binding to localhost; the endpoints carry no auth.
type Config struct {
	Enabled bool
	Addr    string
}

// StatsSource provides the live dispatcher snapshot for gauges and /statsz.
type StatsSource interface {
	Stats() agent.Stats
}

// Service exposes Prometheus metrics and a JSON stats endpoint, fed by the
// notify.* event stream plus an on-scrape stats snapshot.
type Service struct {
	mu     sync.Mutex
	cfg    Config
	log    logx.Logger
	src    StatsSource
	bus    eventbus.Bus
	reg    *prometheus.Registry
	events *prometheus.CounterVec

	ln    net.Listener
	srv   *http.Server
	unsub func()
}

func New(cfg Config, src StatsSource, bus eventbus.Bus, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{
		cfg: cfg,
		log: log.With(logx.String("component", "metrics")),
		src: src,
		bus: bus,
		reg: prometheus.NewRegistry(),
	}

	s.events = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rallybot",
		Subsystem: "notify",
		Name:      "events_total",
		Help:      "Notification lifecycle events by outcome and type.",
	}, []string{"outcome", "type"})
	s.reg.MustRegister(s.events)

	s.reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "rallybot",
		Subsystem: "notify",
		Name:      "pending",
		Help:      "Pending notifications currently tracked.",
	}, func() float64 {
		st := src.Stats()
		total := 0
		for _, n := range st.Pending {
			total += n
		}
		return float64(total)
	}))
	s.reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "rallybot",
		Subsystem: "notify",
		Name:      "tracked_users",
		Help:      "Users with at least one pending notification.",
	}, func() float64 { return float64(src.Stats().Users) }))

	s.reg.MustRegister(collectors.NewGoCollector())
	s.reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return s
}

// outcome strips the "notify." topic prefix into a label value.
func outcome(topic string) string {
	return strings.TrimPrefix(topic, "notify.")
}

func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv != nil {
		return nil
	}

	if s.bus != nil && s.unsub == nil {
		ch, unsub := s.bus.Subscribe(256)
		s.unsub = unsub
		go s.consume(ctx, ch)
	}

	if !s.cfg.Enabled {
		return nil
	}
	addr := strings.TrimSpace(s.cfg.Addr)
	if addr == "" {
		addr = "127.0.0.1:9215"
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/statsz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(s.src.Stats())
	})

	srv := &http.Server{
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	s.ln = ln
	s.srv = srv

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("metrics server stopped", logx.Err(err))
		}
	}()
	s.log.Info("metrics started", logx.String("addr", ln.Addr().String()))
	return nil
}

func (s *Service) consume(ctx context.Context, ch <-chan eventbus.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			if !strings.HasPrefix(e.Type, "notify.") {
				continue
			}
			typ := ""
			if ev, ok := e.Data.(agent.Event); ok {
				typ = string(ev.Type)
			}
			s.events.WithLabelValues(outcome(e.Type), typ).Inc()
		}
	}
}

func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	srv := s.srv
	ln := s.ln
	unsub := s.unsub
	s.srv = nil
	s.ln = nil
	s.unsub = nil
	s.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	if srv == nil {
		return
	}
	if err := srv.Shutdown(ctx); err != nil {
		if ln != nil {
			_ = ln.Close()
		}
		_ = srv.Close()
	}
	s.log.Info("metrics stopped")
}
