package daemon

import (
	"time"

	"git.home.luguber.info/inful/cadence/internal/config"
	"git.home.luguber.info/inful/cadence/internal/quota"
)

// Settings is the part of the configuration a running scheduler reads on
// every tick. It can be swapped on config reload.
type Settings struct {
	Window         quota.Window
	MinCommits     int
	MaxCommits     int
	DailyLimit     int
	DelayMin       time.Duration
	DelayMax       time.Duration
	ActiveInterval time.Duration
	IdleInterval   time.Duration
}

// SettingsFromConfig extracts scheduler settings from a validated configuration.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		Window:         quota.WindowFromConfig(cfg),
		MinCommits:     cfg.MinCommits,
		MaxCommits:     cfg.MaxCommits,
		DailyLimit:     cfg.DailyLimit,
		DelayMin:       cfg.CommitDelayMin.Std(),
		DelayMax:       cfg.CommitDelayMax.Std(),
		ActiveInterval: cfg.ActiveInterval.Std(),
		IdleInterval:   cfg.IdleInterval.Std(),
	}
}
