package config

import (
	"errors"
	"fmt"
)

// Config is the root of a declarative loop-definition file.
type Config struct {
	Loops []LoopDefinition `json:"loops" yaml:"loops"`
}

// LoopDefinition describes one adaptation loop: which subject domain it
// belongs to, which metrics it samples, how often it runs and the
// thresholds its samples are scored against.
type LoopDefinition struct {
	Name   string `json:"name" yaml:"name"`
	Domain string `json:"domain" yaml:"domain"`

	// Interval is the cycle period.
	Interval Duration `json:"interval" yaml:"interval"`

	// CycleTimeout bounds one cycle; zero means the interval is used.
	CycleTimeout Duration `json:"cycle_timeout,omitempty" yaml:"cycle_timeout,omitempty"`

	// Metrics are sampled every cycle.
	Metrics []string `json:"metrics" yaml:"metrics"`

	Thresholds []ThresholdDefinition `json:"thresholds" yaml:"thresholds"`

	// HistorySize bounds retained analyses for trend lookback.
	HistorySize int `json:"history_size" yaml:"history_size"`
}

// ThresholdDefinition is the configured bound for one metric.
type ThresholdDefinition struct {
	Metric    string  `json:"metric" yaml:"metric"`
	Limit     float64 `json:"limit" yaml:"limit"`
	Direction string  `json:"direction" yaml:"direction"`
}

// Direction values accepted in loop-definition files.
const (
	DirectionHigherIsBetter = "higher_is_better"
	DirectionLowerIsBetter  = "lower_is_better"
)

// Validate checks the whole configuration.
func (c *Config) Validate() error {
	if len(c.Loops) == 0 {
		return errors.New("configuration defines no loops")
	}

	seen := make(map[string]bool, len(c.Loops))
	for i := range c.Loops {
		def := &c.Loops[i]
		if err := def.Validate(); err != nil {
			return err
		}
		if seen[def.Name] {
			return fmt.Errorf("duplicate loop name %q", def.Name)
		}
		seen[def.Name] = true
	}
	return nil
}

// Validate checks a single loop definition.
func (d *LoopDefinition) Validate() error {
	if d.Name == "" {
		return errors.New("loop name cannot be empty")
	}
	if d.Interval <= 0 {
		return fmt.Errorf("loop %q: interval must be positive", d.Name)
	}
	if d.CycleTimeout < 0 {
		return fmt.Errorf("loop %q: cycle timeout cannot be negative", d.Name)
	}
	if len(d.Metrics) == 0 {
		return fmt.Errorf("loop %q: at least one metric is required", d.Name)
	}
	for _, t := range d.Thresholds {
		if t.Metric == "" {
			return fmt.Errorf("loop %q: threshold metric cannot be empty", d.Name)
		}
		if t.Limit <= 0 {
			return fmt.Errorf("loop %q: threshold limit for %q must be positive", d.Name, t.Metric)
		}
		switch t.Direction {
		case DirectionHigherIsBetter, DirectionLowerIsBetter:
		default:
			return fmt.Errorf("loop %q: threshold %q has unknown direction %q", d.Name, t.Metric, t.Direction)
		}
	}
	return nil
}
