package config

import "time"

// DefaultConfig returns a configuration with one conservative example
// loop. Callers normally load their own definitions; the default exists
// so the engine can be exercised without a config file.
func DefaultConfig() *Config {
	return &Config{
		Loops: []LoopDefinition{
			{
				Name:     "latency",
				Domain:   "service",
				Interval: Duration(30 * time.Second),
				Metrics:  []string{"response_time"},
				Thresholds: []ThresholdDefinition{
					{
						Metric:    "response_time",
						Limit:     1000,
						Direction: DirectionLowerIsBetter,
					},
				},
			},
		},
	}
}
