// Package focus maps the user's interruption policy (focus mode) to what
// the engine is allowed to show: which visual intensities, how many
// interruptions per hour, and whether blocked items queue or drop.
package focus

import (
	"github.com/mkessler/bubble/internal/types"
)

// Visual intensity thresholds on the confidence score
const (
	ThresholdPassive  = 40
	ThresholdReady    = 60
	ThresholdActive   = 80
	ThresholdPriority = 95
)

// Config describes one focus mode's allowances
type Config struct {
	Name              types.FocusModeName `yaml:"name"`
	Allowed           []types.VisualState `yaml:"allowed"`
	HourlyLimit       int                 `yaml:"hourly_limit"`
	PassiveIndicators bool                `yaml:"passive_indicators"`
	Sound             bool                `yaml:"sound"`
	Haptics           bool                `yaml:"haptics"`
	QueueWhenBlocked  bool                `yaml:"queue_when_blocked"` // dnd queues instead of dropping
}

// modeTable holds the built-in mode definitions. Hourly limits can be
// overridden by the host via engine options.
var modeTable = map[types.FocusModeName]Config{
	types.ModeAvailable: {
		Name:              types.ModeAvailable,
		Allowed:           []types.VisualState{types.VisualPassive, types.VisualReady, types.VisualActive, types.VisualPriority},
		HourlyLimit:       6,
		PassiveIndicators: true,
		Sound:             true,
		Haptics:           true,
	},
	types.ModeFocused: {
		Name:              types.ModeFocused,
		Allowed:           []types.VisualState{types.VisualPassive, types.VisualReady},
		HourlyLimit:       2,
		PassiveIndicators: true,
		Sound:             false,
		Haptics:           true,
	},
	types.ModeDND: {
		Name:             types.ModeDND,
		Allowed:          []types.VisualState{},
		HourlyLimit:      0,
		QueueWhenBlocked: true,
	},
}

// ModeConfig returns the configuration for a mode. Unknown names fall
// back to available rather than erroring.
func ModeConfig(name types.FocusModeName) Config {
	if cfg, ok := modeTable[name]; ok {
		return cfg
	}
	return modeTable[types.ModeAvailable]
}

// VisualForScore maps a confidence score to its natural visual intensity
func VisualForScore(score int) types.VisualState {
	switch {
	case score >= ThresholdPriority:
		return types.VisualPriority
	case score >= ThresholdActive:
		return types.VisualActive
	case score >= ThresholdReady:
		return types.VisualReady
	case score >= ThresholdPassive:
		return types.VisualPassive
	default:
		return types.VisualSilent
	}
}

// Allows reports whether the mode permits the given intensity
func (c Config) Allows(v types.VisualState) bool {
	for _, a := range c.Allowed {
		if a == v {
			return true
		}
	}
	return false
}

// Decision is the outcome of gating an item through a focus mode
type Decision struct {
	Surface bool
	Queue   bool // dnd holds the item instead of dropping it
}

// ShouldSurface gates an item by score and mode. Emergency-score items
// surface in any mode except dnd; dnd blocks everything and queues it.
func ShouldSurface(score int, mode types.FocusModeName, emergencyThreshold int) Decision {
	cfg := ModeConfig(mode)

	if mode == types.ModeDND {
		return Decision{Surface: false, Queue: cfg.QueueWhenBlocked}
	}
	if score >= emergencyThreshold {
		return Decision{Surface: true}
	}
	return Decision{Surface: cfg.Allows(VisualForScore(score))}
}

// downgradeOrder is the intensity hierarchy searched when a mode
// disallows an item's natural intensity
var downgradeOrder = []types.VisualState{
	types.VisualPriority,
	types.VisualActive,
	types.VisualReady,
	types.VisualPassive,
}

// EffectiveVisualState returns the intensity an item actually renders at
// under a mode: its natural intensity if allowed, otherwise the highest
// allowed intensity below it. Nil means no visual representation.
func EffectiveVisualState(score int, mode types.FocusModeName) *types.VisualState {
	natural := VisualForScore(score)
	if natural == types.VisualSilent {
		return nil
	}
	cfg := ModeConfig(mode)

	start := 0
	for i, v := range downgradeOrder {
		if v == natural {
			start = i
			break
		}
	}
	for i := start; i < len(downgradeOrder); i++ {
		if cfg.Allows(downgradeOrder[i]) {
			v := downgradeOrder[i]
			return &v
		}
	}
	return nil
}

// Cycle advances to the next mode for UI toggles:
// available -> focused -> dnd -> available
func Cycle(mode types.FocusModeName) types.FocusModeName {
	switch mode {
	case types.ModeAvailable:
		return types.ModeFocused
	case types.ModeFocused:
		return types.ModeDND
	default:
		return types.ModeAvailable
	}
}
