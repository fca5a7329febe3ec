package feedback

import (
	"fmt"

	"github.com/adaptd-io/adaptd/config"
)

// FromDefinition converts a validated loop definition into a LoopConfig,
// binding it to the given sources, catalog and observers.
func FromDefinition(def config.LoopDefinition, sources *SourceRegistry, catalog *Catalog, observers ...CycleObserver) (LoopConfig, error) {
	if err := def.Validate(); err != nil {
		return LoopConfig{}, err
	}

	thresholds := make([]ThresholdSpec, 0, len(def.Thresholds))
	for _, t := range def.Thresholds {
		direction, err := parseDirection(t.Direction)
		if err != nil {
			return LoopConfig{}, fmt.Errorf("loop %q: %w", def.Name, err)
		}
		thresholds = append(thresholds, ThresholdSpec{
			Metric:    t.Metric,
			Limit:     t.Limit,
			Direction: direction,
		})
	}

	return LoopConfig{
		Domain:       def.Domain,
		Metrics:      append([]string(nil), def.Metrics...),
		Interval:     def.Interval.Std(),
		CycleTimeout: def.CycleTimeout.Std(),
		Thresholds:   thresholds,
		HistorySize:  def.HistorySize,
		Sources:      sources,
		Catalog:      catalog,
		Observers:    observers,
	}, nil
}

// RegisterDefinitions registers every loop in cfg on the supervisor,
// sharing one source registry and catalog across them.
func RegisterDefinitions(sup *Supervisor, cfg *config.Config, sources *SourceRegistry, catalog *Catalog, observers ...CycleObserver) error {
	for _, def := range cfg.Loops {
		loopCfg, err := FromDefinition(def, sources, catalog, observers...)
		if err != nil {
			return err
		}
		if _, err := sup.Register(def.Name, loopCfg); err != nil {
			return fmt.Errorf("registering loop %q: %w", def.Name, err)
		}
	}
	return nil
}

func parseDirection(s string) (Direction, error) {
	switch s {
	case config.DirectionHigherIsBetter:
		return HigherIsBetter, nil
	case config.DirectionLowerIsBetter:
		return LowerIsBetter, nil
	default:
		return "", fmt.Errorf("unknown threshold direction %q", s)
	}
}
