// Package config loads engine tuning from an optional YAML file layered
// over built-in defaults. A missing file is not an error; hosts that
// never ship a config run on defaults.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mkessler/bubble/internal/types"
)

// Config is the host-tunable engine configuration
type Config struct {
	DailyBudget        int            `yaml:"daily_budget"`
	EmergencyThreshold int            `yaml:"emergency_threshold"`
	StaleAfterDays     int            `yaml:"stale_after_days"`
	HourlyLimits       map[string]int `yaml:"hourly_limits"` // keyed by focus mode name
}

// Default returns the built-in configuration
func Default() Config {
	return Config{
		DailyBudget:        15,
		EmergencyThreshold: 98,
		StaleAfterDays:     7,
		HourlyLimits: map[string]int{
			string(types.ModeAvailable): 6,
			string(types.ModeFocused):   2,
			string(types.ModeDND):       0,
		},
	}
}

// Load reads a YAML config file, overriding defaults for any key that is
// set. A missing file returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	var over Config
	if err := yaml.Unmarshal(data, &over); err != nil {
		return cfg, fmt.Errorf("failed to parse config: %w", err)
	}

	if over.DailyBudget != 0 {
		cfg.DailyBudget = over.DailyBudget
	}
	if over.EmergencyThreshold != 0 {
		cfg.EmergencyThreshold = over.EmergencyThreshold
	}
	if over.StaleAfterDays != 0 {
		cfg.StaleAfterDays = over.StaleAfterDays
	}
	for mode, limit := range over.HourlyLimits {
		cfg.HourlyLimits[mode] = limit
	}
	return cfg, nil
}

// StaleAfter returns the retention window as a duration
func (c Config) StaleAfter() time.Duration {
	return time.Duration(c.StaleAfterDays) * 24 * time.Hour
}

// ModeHourlyLimits converts the YAML map to typed mode keys for the engine
func (c Config) ModeHourlyLimits() map[types.FocusModeName]int {
	out := make(map[types.FocusModeName]int, len(c.HourlyLimits))
	for mode, limit := range c.HourlyLimits {
		out[types.FocusModeName(mode)] = limit
	}
	return out
}
