package feedback

import (
	"log/slog"
)

// LogObserver logs every completed cycle through a structured logger.
type LogObserver struct {
	logger *slog.Logger
}

// NewLogObserver creates a cycle observer that logs to logger, or to
// slog.Default() when logger is nil.
func NewLogObserver(logger *slog.Logger) *LogObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogObserver{logger: logger}
}

func (o *LogObserver) CycleCompleted(result CycleResult) {
	attrs := []any{
		slog.String("loop", result.Loop),
		slog.Uint64("cycle", result.Cycle),
		slog.Float64("score", result.Analysis.OverallScore),
		slog.String("status", string(result.Analysis.Status)),
		slog.Int("violations", len(result.Analysis.Violations)),
		slog.Duration("duration", result.Duration),
	}

	switch {
	case result.Err != nil:
		attrs = append(attrs, slog.String("error", result.Err.Error()))
		o.logger.Error("Cycle completed with failure", attrs...)
	case result.Improved:
		attrs = append(attrs,
			slog.Int("actions", len(result.Outcomes)),
			slog.Float64("action_success_rate", result.SuccessRate),
		)
		o.logger.Info("Cycle completed with improvement", attrs...)
	case result.AdaptationNeeded:
		attrs = append(attrs, slog.Int("actions", len(result.Outcomes)))
		o.logger.Warn("Cycle completed, adaptation attempted", attrs...)
	default:
		o.logger.Debug("Cycle completed", attrs...)
	}
}
