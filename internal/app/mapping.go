package app

import (
	"time"

	"rallybot/internal/agent"
	"rallybot/internal/config"
	"rallybot/internal/metrics"
	"rallybot/internal/services/sweeper"
	"rallybot/internal/storage"
	logx "rallybot/pkg/logx"
)

// mapAgentConfig turns the notification namespace into the agent's policy.
// Effective keywords are resolved here so the agent never consults defaults.
func mapAgentConfig(cfg *config.Config) agent.Config {
	nc := cfg.Notification
	out := agent.Config{
		Enabled:           nc.Enabled,
		MaxPendingPerUser: nc.MaxPendingPerUser,
		RatePerSec:        nc.RatePerSec,
		FallbackChannelID: nc.FallbackChannelID,
		Triggers:          make(map[agent.Type]agent.TriggerConfig, len(nc.Triggers)),
	}
	for typ, trig := range nc.Triggers {
		out.Triggers[agent.Type(typ)] = agent.TriggerConfig{
			Enabled:        trig.Enabled,
			Tier:           trig.Tier,
			TimeoutSeconds: trig.TimeoutSeconds,
			DMTemplate:     trig.DMTemplate,
			ConfirmKeyword: trig.Keyword(typ),
		}
	}
	return out
}

func mapSweeperConfig(cfg *config.Config) (sweeper.Config, error) {
	interval, err := config.ParseDurationOrDefault(
		"notification.sweep_interval", cfg.Notification.SweepInterval, 30*time.Second)
	if err != nil {
		return sweeper.Config{}, err
	}
	return sweeper.Config{
		Interval: interval,
		CronSpec: cfg.Notification.SweepCron,
	}, nil
}

func mapMetricsConfig(cfg *config.Config) metrics.Config {
	if cfg.Metrics == nil {
		return metrics.Config{}
	}
	return metrics.Config{
		Enabled: cfg.Metrics.Enabled,
		Addr:    cfg.Metrics.Addr,
	}
}

func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	if cfg.Storage == nil {
		return storage.Config{}, nil
	}
	busy, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: busy,
	}, nil
}

func mapLoggingConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}
