package calibration

import (
	"fmt"
	"time"
)

// Target is one fixation point. X and Y are the intended anchor as a
// fraction of the viewport; the live position always comes from the layout.
type Target struct {
	ID     string  `yaml:"id" json:"id"`
	X      float64 `yaml:"x" json:"x"`
	Y      float64 `yaml:"y" json:"y"`
	Center bool    `yaml:"center" json:"center"`
}

// Config holds all tunable calibration parameters.
type Config struct {
	// PressesPerTarget is how many confirmed fixations each target needs.
	PressesPerTarget int `yaml:"presses_per_target"`

	// Timing
	IntroStep             time.Duration `yaml:"intro_step"`             // each onboarding line
	EncouragementDuration time.Duration `yaml:"encouragement_duration"` // message after a target completes
	TransitionDelay       time.Duration `yaml:"transition_delay"`       // gap before the next target, presses ignored
	PressFeedback         time.Duration `yaml:"press_feedback"`         // per-press pulse

	// Script
	SkipIntro      bool     `yaml:"skip_intro"`
	IntroScript    []string `yaml:"intro_script"`
	Encouragements []string `yaml:"encouragements"`

	Targets []Target `yaml:"targets"`
}

// DefaultConfig returns the stock nine-point calibration.
func DefaultConfig() Config {
	return Config{
		PressesPerTarget: 5,

		IntroStep:             1500 * time.Millisecond,
		EncouragementDuration: 1000 * time.Millisecond,
		TransitionDelay:       500 * time.Millisecond,
		PressFeedback:         300 * time.Millisecond,

		IntroScript: []string{
			"Welcome to Eyesite.",
			"First, the tracker needs to learn how your eyes move.",
			"Look at each dot and press SPACE.",
			"Every dot needs five presses. Keep your head still.",
		},
		Encouragements: []string{
			"Nice!",
			"Great job!",
			"Perfect!",
			"Keep going!",
			"Excellent!",
			"You're a natural.",
			"Looking good!",
			"Right on target.",
		},

		Targets: DefaultTargets(),
	}
}

// DefaultTargets returns the nine points of the stock layout, perimeter
// clockwise from the top-left corner and the center last.
func DefaultTargets() []Target {
	return []Target{
		{ID: "Pt1", X: 0.02, Y: 0.08},
		{ID: "Pt2", X: 0.50, Y: 0.08},
		{ID: "Pt3", X: 0.98, Y: 0.08},
		{ID: "Pt6", X: 0.98, Y: 0.50},
		{ID: "Pt9", X: 0.98, Y: 0.95},
		{ID: "Pt8", X: 0.50, Y: 0.95},
		{ID: "Pt7", X: 0.02, Y: 0.95},
		{ID: "Pt4", X: 0.02, Y: 0.50},
		{ID: "Pt5", X: 0.50, Y: 0.50, Center: true},
	}
}

// Validate checks the configuration for values the sequencer cannot run with.
func (c Config) Validate() error {
	if c.PressesPerTarget < 1 {
		return fmt.Errorf("%w: presses_per_target must be at least 1", ErrInvalidConfig)
	}
	if len(c.Targets) == 0 {
		return fmt.Errorf("%w: no targets", ErrInvalidConfig)
	}
	seen := make(map[string]bool, len(c.Targets))
	for _, t := range c.Targets {
		if t.ID == "" {
			return fmt.Errorf("%w: target without id", ErrInvalidConfig)
		}
		if seen[t.ID] {
			return fmt.Errorf("%w: duplicate target %q", ErrInvalidConfig, t.ID)
		}
		seen[t.ID] = true
	}
	if c.IntroStep < 0 || c.EncouragementDuration < 0 || c.TransitionDelay < 0 || c.PressFeedback < 0 {
		return fmt.Errorf("%w: negative duration", ErrInvalidConfig)
	}
	return nil
}

// Ordered returns targets in visiting order: the listed order with every
// center target moved to the end. Edge mappings are anchored first.
func Ordered(targets []Target) []Target {
	out := make([]Target, 0, len(targets))
	var centers []Target
	for _, t := range targets {
		if t.Center {
			centers = append(centers, t)
			continue
		}
		out = append(out, t)
	}
	return append(out, centers...)
}
