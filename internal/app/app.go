package app

import (
	"context"
	"fmt"
	"time"

	"rallybot/internal/agent"
	"rallybot/internal/config"
	"rallybot/internal/eventbus"
	"rallybot/internal/extension"
	"rallybot/internal/metrics"
	rtsup "rallybot/internal/runtime/supervisor"
	"rallybot/internal/services/sweeper"
	"rallybot/internal/storage"
	"rallybot/internal/transport"
	telegram "rallybot/internal/transport/telegram/adapter"
	logx "rallybot/pkg/logx"
)

// App assembles the notification pipeline: telegram adapter in, agent in the
// middle, sweeper and metrics around it, config hot-reload fanning out to
// every component.
type App struct {
	cfgm *config.Manager
	sup  *rtsup.Supervisor

	log      logx.Logger
	logs     *logx.Service
	bus      eventbus.Bus
	store    storage.Store
	storeCfg storage.Config

	adapter *telegram.Adapter
	steps   *extension.Registry
	agent   *agent.Agent
	sweep   *sweeper.Service
	metrics *metrics.Service

	updates chan transport.Update
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(mapLoggingConfig(cfg))
	log = log.With(logx.String("component", "app"))

	pollTimeout, err := config.ParseDurationOrDefault(
		"telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	ad, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, logSvc.Logger())
	if err != nil {
		return nil, err
	}

	bus := eventbus.New()

	var store storage.Store
	sc, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	if st, err := storage.Open(sc, logSvc.Logger()); err != nil {
		return nil, err
	} else if st != nil {
		store = st
		log.Info("audit storage enabled", logx.String("driver", sc.Driver))
	}

	steps := extension.NewRegistry(logSvc.Logger())

	ag := agent.New(mapAgentConfig(cfg), agent.Options{
		Messenger: ad,
		Steps:     steps,
		Bus:       bus,
		Audit:     store,
		Logger:    logSvc.Logger(),
	})

	swCfg, err := mapSweeperConfig(cfg)
	if err != nil {
		return nil, err
	}
	sw := sweeper.New(swCfg, ag, logSvc.Logger())

	ms := metrics.New(mapMetricsConfig(cfg), ag, bus, logSvc.Logger())

	return &App{
		cfgm:     cfgm,
		log:      log,
		logs:     logSvc,
		bus:      bus,
		store:    store,
		storeCfg: sc,
		adapter:  ad,
		steps:    steps,
		agent:    ag,
		sweep:    sw,
		metrics:  ms,
		updates:  make(chan transport.Update, 256),
	}, nil
}

// Agent exposes the dispatcher for embedding callers (commands, schedulers).
func (a *App) Agent() *agent.Agent { return a.agent }

// Steps exposes the extension registry so callers can hook the dispatch
// pipeline before Start.
func (a *App) Steps() *extension.Registry { return a.steps }

// Done is closed when the run context ends (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))

	a.cfgm.SetLogger(a.logs.Logger().With(logx.String("component", "config")))
	// Reject bad hot-reloads before they are committed or published.
	a.cfgm.SetValidator(func(c context.Context, cfg *config.Config) error {
		if _, err := config.ParseDurationField("telegram.poll_timeout", cfg.Telegram.PollTimeout); err != nil {
			return err
		}
		if _, err := mapSweeperConfig(cfg); err != nil {
			return err
		}
		if _, err := mapStorageConfig(cfg); err != nil {
			return err
		}
		return nil
	})

	if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
		return err
	}
	if err := a.metrics.Start(a.sup.Context()); err != nil {
		return err
	}
	a.sweep.Start(a.sup.Context())

	a.sup.Go("responses.dispatch", func(c context.Context) error {
		for {
			select {
			case <-c.Done():
				return nil
			case up, ok := <-a.updates:
				if !ok {
					return nil
				}
				a.agent.HandleResponse(c, up.UserID, up.Text)
			}
		}
	})

	events, unsub := a.bus.Subscribe(128)
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
			}
		}
	})

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: apply only the latest config.
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						goto APPLY
					}
				}
			APPLY:
				a.applyConfig(c, newCfg)
			}
		}
	})

	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.log.Info("app started")
	return nil
}

func (a *App) applyConfig(ctx context.Context, cfg *config.Config) {
	a.logs.Apply(mapLoggingConfig(cfg))
	a.agent.Apply(mapAgentConfig(cfg))

	if swCfg, err := mapSweeperConfig(cfg); err != nil {
		a.log.Warn("invalid sweep config; keeping previous", logx.Err(err))
	} else {
		a.sweep.Apply(ctx, swCfg)
	}

	// Storage binds its file or database at startup.
	if sc, err := mapStorageConfig(cfg); err == nil && sc != a.storeCfg {
		a.log.Warn("storage config changed; restart required to take effect")
	}

	a.log.Info("config reloaded")
}

func (a *App) Stop(ctx context.Context) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping")
	a.sup.Cancel()

	// Bounded shutdown steps so one component cannot stall the stop.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		stepCtx := ctx
		var cancel context.CancelFunc
		if max > 0 {
			if dl, ok := ctx.Deadline(); ok {
				if rem := time.Until(dl); rem > 0 && rem < max {
					max = rem
				}
			}
			stepCtx, cancel = context.WithTimeout(ctx, max)
			defer cancel()
		}

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached", logx.String("name", name))
		}
	}

	step("sweeper", 2*time.Second, func(c context.Context) error { a.sweep.Stop(c); return nil })
	step("metrics", 1*time.Second, func(c context.Context) error { a.metrics.Stop(c); return nil })
	step("adapter", 2*time.Second, func(c context.Context) error { return a.adapter.Stop(c) })
	step("storage", 1*time.Second, func(c context.Context) error {
		if a.store != nil {
			return a.store.Close()
		}
		return nil
	})
	step("supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}
