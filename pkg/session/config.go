package session

import (
	"fmt"
	"time"

	"github.com/teslashibe/go-gaze/pkg/calibration"
	"github.com/teslashibe/go-gaze/pkg/click"
	"github.com/teslashibe/go-gaze/pkg/region"
)

// ActionOpenContent marks a region whose click opens the content reader.
const ActionOpenContent = "open_content"

// RegionSpec describes one interactive region shown while Interacting.
type RegionSpec struct {
	ID        string `yaml:"id" json:"id"`
	Clickable bool   `yaml:"clickable" json:"clickable"`
	Action    string `yaml:"action,omitempty" json:"action,omitempty"`
}

// ReaderConfig tunes the gaze scroll reader.
type ReaderConfig struct {
	TopBand    float64       `yaml:"top_band"`    // fraction of height, scroll back at or above
	BottomBand float64       `yaml:"bottom_band"` // fraction of height, scroll forward at or below
	Rate       float64       `yaml:"rate"`        // px per tick
	Interval   time.Duration `yaml:"interval"`    // tick period
}

// Config holds session parameters plus the components the session owns.
type Config struct {
	MinWidth  int `yaml:"min_width"`  // px
	MinHeight int `yaml:"min_height"` // px

	Hover       region.Config      `yaml:"hover"`
	Click       click.Config       `yaml:"click"`
	Calibration calibration.Config `yaml:"calibration"`
	Reader      ReaderConfig       `yaml:"reader"`

	Regions []RegionSpec `yaml:"regions"`
}

// DefaultConfig returns the stock session configuration.
func DefaultConfig() Config {
	return Config{
		MinWidth:  1200,
		MinHeight: 728,

		Hover:       region.DefaultConfig(),
		Click:       click.DefaultConfig(),
		Calibration: calibration.DefaultConfig(),
		Reader: ReaderConfig{
			TopBand:    0.15,
			BottomBand: 0.75,
			Rate:       10,
			Interval:   16 * time.Millisecond,
		},

		Regions: []RegionSpec{
			{ID: "blog", Clickable: true, Action: ActionOpenContent},
			{ID: "game", Clickable: true},
			{ID: "about"},
		},
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.MinWidth <= 0 || c.MinHeight <= 0 {
		return fmt.Errorf("%w: minimum viewport %dx%d", ErrInvalidConfig, c.MinWidth, c.MinHeight)
	}
	if c.Hover.Margin < 0 {
		return fmt.Errorf("%w: negative hover margin", ErrInvalidConfig)
	}
	if c.Click.FeedbackDuration <= 0 {
		return fmt.Errorf("%w: click feedback must be positive", ErrInvalidConfig)
	}
	r := c.Reader
	if r.TopBand < 0 || r.BottomBand > 1 || r.TopBand >= r.BottomBand {
		return fmt.Errorf("%w: reader bands %.2f/%.2f", ErrInvalidConfig, r.TopBand, r.BottomBand)
	}
	if r.Rate <= 0 || r.Interval <= 0 {
		return fmt.Errorf("%w: reader rate and interval must be positive", ErrInvalidConfig)
	}
	seen := make(map[string]bool, len(c.Regions))
	for _, spec := range c.Regions {
		if spec.ID == "" || seen[spec.ID] {
			return fmt.Errorf("%w: region id %q empty or duplicated", ErrInvalidConfig, spec.ID)
		}
		seen[spec.ID] = true
		if spec.Action != "" && spec.Action != ActionOpenContent {
			return fmt.Errorf("%w: unknown action %q on region %s", ErrInvalidConfig, spec.Action, spec.ID)
		}
		if spec.Action != "" && !spec.Clickable {
			return fmt.Errorf("%w: region %s has an action but is not clickable", ErrInvalidConfig, spec.ID)
		}
	}
	if err := c.Calibration.Validate(); err != nil {
		return err
	}
	return nil
}
