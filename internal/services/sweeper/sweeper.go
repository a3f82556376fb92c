package sweeper

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	logx "rallybot/pkg/logx"
)

// Runner is the expiration pass the service drives on its cadence.
type Runner interface {
	CheckExpirations(ctx context.Context) int
}

type Config struct {
	// Interval is the fixed sweep cadence. Ignored when CronSpec is set.
	Interval time.Duration
	// CronSpec schedules sweeps by cron expression (optional seconds field).
	CronSpec string
	// Timezone is the IANA zone for cron evaluation; empty means local.
	Timezone string
}

const defaultInterval = 30 * time.Second

// Service drives periodic expiration sweeps, either on a fixed interval or
// a cron spec. An invalid cron spec falls back to the interval so a bad
// config edit never silently stops expiry.
type Service struct {
	mu  sync.Mutex
	cfg Config
	log logx.Logger
	run Runner

	parser cron.Parser
	c      *cron.Cron
	stopCh chan struct{}
	kick   chan struct{}
}

func New(cfg Config, run Runner, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:    cfg,
		log:    log.With(logx.String("component", "sweeper")),
		run:    run,
		parser: cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		kick:   make(chan struct{}, 1),
	}
}

func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopCh != nil {
		return
	}
	s.stopCh = make(chan struct{})
	s.startLocked(ctx)
}

func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopCh == nil {
		return
	}
	close(s.stopCh)
	s.stopCh = nil
	s.stopCronLocked()
	s.log.Info("sweeper stopped")
}

// Apply installs a new cadence. The running schedule restarts only when the
// cadence actually changed.
func (s *Service) Apply(ctx context.Context, cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := cfg.Interval != s.cfg.Interval ||
		cfg.CronSpec != s.cfg.CronSpec ||
		cfg.Timezone != s.cfg.Timezone
	s.cfg = cfg
	if !changed || s.stopCh == nil {
		return
	}
	close(s.stopCh)
	s.stopCh = make(chan struct{})
	s.stopCronLocked()
	s.startLocked(ctx)
	s.log.Info("sweeper cadence updated")
}

// Kick requests an immediate sweep from the interval loop. Coalesces when
// one is already queued.
func (s *Service) Kick() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

// Sweep runs one expiration pass now.
func (s *Service) Sweep(ctx context.Context) int {
	n := s.run.CheckExpirations(ctx)
	if n > 0 {
		s.log.Info("sweep expired records", logx.Int("count", n))
	}
	return n
}

func (s *Service) startLocked(ctx context.Context) {
	spec := strings.TrimSpace(s.cfg.CronSpec)
	if spec != "" {
		if err := s.startCronLocked(ctx, spec); err == nil {
			s.log.Info("sweeper started", logx.String("cron", spec))
			return
		} else {
			s.log.Warn("invalid sweep cron spec, using interval",
				logx.String("spec", spec), logx.Err(err))
		}
	}

	interval := s.cfg.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	stopCh := s.stopCh
	go s.loop(ctx, interval, stopCh)
	s.log.Info("sweeper started", logx.Duration("interval", interval))
}

func (s *Service) startCronLocked(ctx context.Context, spec string) error {
	if _, err := s.parser.Parse(spec); err != nil {
		return err
	}
	loc := time.Local
	if tz := strings.TrimSpace(s.cfg.Timezone); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			s.log.Warn("invalid timezone, using local", logx.String("tz", tz), logx.Err(err))
		} else {
			loc = l
		}
	}
	c := cron.New(cron.WithParser(s.parser), cron.WithLocation(loc))
	if _, err := c.AddFunc(spec, func() { s.Sweep(ctx) }); err != nil {
		return err
	}
	c.Start()
	s.c = c
	return nil
}

func (s *Service) stopCronLocked() {
	if s.c != nil {
		<-s.c.Stop().Done()
		s.c = nil
	}
}

func (s *Service) loop(ctx context.Context, interval time.Duration, stopCh chan struct{}) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-s.kick:
			s.Sweep(ctx)
		case <-t.C:
			s.Sweep(ctx)
		}
	}
}
