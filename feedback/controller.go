package feedback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// LoopState represents the lifecycle state of a loop.
type LoopState int

const (
	LoopInactive LoopState = iota
	LoopActive
)

func (s LoopState) String() string {
	switch s {
	case LoopActive:
		return "active"
	case LoopInactive:
		return "inactive"
	default:
		return "unknown"
	}
}

// LoopConfig describes one monitored subject.
type LoopConfig struct {
	// Domain scopes catalog lookups for this loop's violations.
	Domain string `json:"domain"`

	// Metrics are the names sampled every cycle.
	Metrics []string `json:"metrics"`

	// Interval is the cycle period. Required.
	Interval time.Duration `json:"interval"`

	// CycleTimeout bounds one cycle including action applications.
	// Zero means the interval is used.
	CycleTimeout time.Duration `json:"cycle_timeout"`

	// Thresholds are immutable for the lifetime of the loop.
	Thresholds []ThresholdSpec `json:"thresholds"`

	// HistorySize bounds the retained analyses used for trend lookback.
	// Zero means DefaultHistorySize.
	HistorySize int `json:"history_size"`

	Sources   *SourceRegistry `json:"-"`
	Catalog   *Catalog        `json:"-"`
	Observers []CycleObserver `json:"-"`
}

// DefaultHistorySize bounds per-loop analysis history.
const DefaultHistorySize = 50

// PerformanceStats are cumulative per-loop statistics.
type PerformanceStats struct {
	AvgExecutionTime time.Duration `json:"avg_execution_time"`
	SuccessRate      float64       `json:"success_rate"`
	ImprovementRate  float64       `json:"improvement_rate"`
}

// LoopStatus is a point-in-time snapshot of one loop.
type LoopStatus struct {
	Name             string           `json:"name"`
	Domain           string           `json:"domain"`
	State            string           `json:"state"`
	ExecutionCount   uint64           `json:"execution_count"`
	ImprovementCount uint64           `json:"improvement_count"`
	FailedCycles     uint64           `json:"failed_cycles"`
	SkippedTicks     uint64           `json:"skipped_ticks"`
	LastExecution    time.Time        `json:"last_execution"`
	LastScore        float64          `json:"last_score"`
	Performance      PerformanceStats `json:"performance"`
}

// CycleResult is the full outcome of one cycle, handed to observers and
// returned by ExecuteCycleNow so callers can log or serialize it without
// hidden control flow.
type CycleResult struct {
	Loop             string          `json:"loop"`
	Cycle            uint64          `json:"cycle"`
	Timestamp        time.Time       `json:"timestamp"`
	Duration         time.Duration   `json:"duration"`
	Samples          []MetricSample  `json:"samples"`
	Analysis         AnalysisResult  `json:"analysis"`
	AdaptationNeeded bool            `json:"adaptation_needed"`
	Outcomes         []ActionOutcome `json:"outcomes,omitempty"`
	SuccessRate      float64         `json:"success_rate"`
	Improved         bool            `json:"improved"`
	Err              error           `json:"-"`
}

// CycleObserver is notified after every completed cycle.
type CycleObserver interface {
	CycleCompleted(result CycleResult)
}

// improvementLedger receives improvement records; the Supervisor's
// bounded ledger is the only implementation.
type improvementLedger interface {
	appendImprovement(rec ImprovementRecord)
}

// Loop is one periodically-executing monitor+adapt unit. Loops are
// created through Supervisor.Register.
type Loop struct {
	name    string
	cfg     LoopConfig
	logger  *slog.Logger
	ledger  improvementLedger
	timeout time.Duration

	// cycleMu serializes scheduled and manual cycles: one loop never
	// runs two cycles concurrently.
	cycleMu sync.Mutex

	mu       sync.Mutex
	state    LoopState
	stopChan chan struct{}
	done     chan struct{}

	executionCount   uint64
	improvementCount uint64
	failedCycles     uint64
	skippedTicks     uint64
	cleanCycles      uint64
	lastExecution    time.Time
	lastScore        float64
	avgExecution     time.Duration
	history          []AnalysisResult
}

func newLoop(name string, cfg LoopConfig, logger *slog.Logger, ledger improvementLedger) (*Loop, error) {
	if name == "" {
		return nil, errors.New("loop name cannot be empty")
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("loop %q: interval must be positive", name)
	}
	for _, spec := range cfg.Thresholds {
		if spec.Metric == "" {
			return nil, fmt.Errorf("loop %q: threshold metric cannot be empty", name)
		}
		if spec.Limit <= 0 {
			return nil, fmt.Errorf("loop %q: threshold limit for %q must be positive", name, spec.Metric)
		}
	}
	if cfg.Sources == nil {
		cfg.Sources = NewSourceRegistry()
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = DefaultHistorySize
	}

	timeout := cfg.CycleTimeout
	if timeout <= 0 {
		timeout = cfg.Interval
	}

	return &Loop{
		name:    name,
		cfg:     cfg,
		logger:  logger,
		ledger:  ledger,
		timeout: timeout,
	}, nil
}

// Name returns the loop's registered name.
func (l *Loop) Name() string { return l.name }

// State returns the loop's current lifecycle state.
func (l *Loop) State() LoopState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Start transitions the loop to Active and launches its ticker
// goroutine. Starting an already-active loop is a logged no-op.
func (l *Loop) Start(ctx context.Context) {
	l.mu.Lock()
	if l.state == LoopActive {
		l.mu.Unlock()
		l.logger.Warn("Loop already active, start ignored", slog.String("loop", l.name))
		return
	}
	l.state = LoopActive
	l.stopChan = make(chan struct{})
	l.done = make(chan struct{})
	stopChan, done := l.stopChan, l.done
	l.mu.Unlock()

	go l.run(ctx, stopChan, done)

	l.logger.Info("Loop started",
		slog.String("loop", l.name),
		slog.Duration("interval", l.cfg.Interval),
		slog.Int("metrics", len(l.cfg.Metrics)),
	)
}

// Stop transitions the loop to Inactive. It returns only after the
// ticker goroutine has exited; an in-flight cycle is allowed to finish
// but no new cycle starts after Stop returns.
func (l *Loop) Stop() {
	l.mu.Lock()
	if l.state != LoopActive {
		l.mu.Unlock()
		return
	}
	close(l.stopChan)
	done := l.done
	l.mu.Unlock()

	<-done

	l.mu.Lock()
	l.state = LoopInactive
	l.mu.Unlock()

	l.logger.Info("Loop stopped", slog.String("loop", l.name))
}

func (l *Loop) run(ctx context.Context, stopChan <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(l.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopChan:
			return
		case <-ticker.C:
			l.runCycle(ctx)

			// A cycle that overran its interval leaves a pending tick;
			// skip it rather than firing back-to-back cycles.
			select {
			case <-ticker.C:
				l.mu.Lock()
				l.skippedTicks++
				l.mu.Unlock()
			default:
			}
		}
	}
}

// ExecuteCycleNow runs one cycle immediately, serialized against any
// scheduled cycle of the same loop. Tests and callers use it to drive
// the loop deterministically.
func (l *Loop) ExecuteCycleNow(ctx context.Context) CycleResult {
	return l.runCycle(ctx)
}

func (l *Loop) runCycle(parent context.Context) CycleResult {
	l.cycleMu.Lock()
	defer l.cycleMu.Unlock()

	start := time.Now()

	l.mu.Lock()
	cycle := l.executionCount + 1
	l.mu.Unlock()

	ctx, cancel := context.WithTimeout(parent, l.timeout)
	defer cancel()

	result := l.doCycle(ctx, cycle, start)
	result.Duration = time.Since(start)

	if ctxErr := ctx.Err(); errors.Is(ctxErr, context.DeadlineExceeded) && result.Err == nil {
		result.Err = &CycleTimeoutError{Loop: l.name, Cycle: cycle, Timeout: l.timeout}
	}

	l.record(result, start)

	if result.Err != nil {
		l.logger.Error("Cycle failed",
			slog.String("loop", l.name),
			slog.Uint64("cycle", cycle),
			slog.Time("timestamp", start),
			slog.String("error", result.Err.Error()),
		)
	}

	for _, obs := range l.cfg.Observers {
		obs.CycleCompleted(result)
	}

	return result
}

// doCycle is the sample -> evaluate -> decide -> act body of one cycle.
// Panics from sources, evaluation or actions are contained here: they
// mark the cycle failed without crashing the loop or its siblings.
func (l *Loop) doCycle(ctx context.Context, cycle uint64, start time.Time) (result CycleResult) {
	result = CycleResult{Loop: l.name, Cycle: cycle, Timestamp: start}

	defer func() {
		if r := recover(); r != nil {
			result.Err = fmt.Errorf("loop %q cycle %d panicked: %v", l.name, cycle, r)
		}
	}()

	for _, metric := range l.cfg.Metrics {
		value, err := l.cfg.Sources.Sample(ctx, metric)
		if err != nil {
			// Missing or erroring sources do not abort the cycle; the
			// metric is simply absent from this analysis.
			l.logger.Warn("Metric sample unavailable",
				slog.String("loop", l.name),
				slog.Uint64("cycle", cycle),
				slog.String("metric", metric),
				slog.String("error", err.Error()),
			)
			continue
		}
		result.Samples = append(result.Samples, MetricSample{
			Name:      metric,
			Value:     value,
			Timestamp: time.Now(),
		})
	}

	result.Analysis = Evaluate(result.Samples, l.cfg.Thresholds)
	result.AdaptationNeeded = l.adaptationNeeded(result.Analysis)

	if !result.AdaptationNeeded {
		return result
	}

	plan := l.cfg.Catalog.PlanActions(l.cfg.Domain, result.Analysis.Violations)
	if len(plan) == 0 {
		l.logger.Info("Adaptation needed but no actions registered",
			slog.String("loop", l.name),
			slog.Uint64("cycle", cycle),
			slog.Int("violations", len(result.Analysis.Violations)),
		)
		return result
	}

	var successes int
	var applied []string
	var expectedImpact float64
	for _, action := range plan {
		if ctx.Err() != nil {
			result.Err = &CycleTimeoutError{Loop: l.name, Cycle: cycle, Timeout: l.timeout}
			break
		}
		outcome := safeApply(ctx, action)
		result.Outcomes = append(result.Outcomes, outcome)
		if outcome.Success {
			successes++
			applied = append(applied, action.Name())
			expectedImpact += action.EstimatedImpact()
		}
	}

	// An action that ignores its context can overrun the deadline and
	// still report success; the timeout verdict must be final before the
	// improvement decision and the ledger see this cycle.
	if result.Err == nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		result.Err = &CycleTimeoutError{Loop: l.name, Cycle: cycle, Timeout: l.timeout}
	}

	if attempted := len(result.Outcomes); attempted > 0 {
		result.SuccessRate = float64(successes) / float64(attempted)
		// An abandoned cycle never counts as an improvement.
		result.Improved = result.Err == nil && result.SuccessRate > 0.5
	}

	if result.Improved && l.ledger != nil {
		l.ledger.appendImprovement(newImprovementRecord(l.name, result.Analysis.OverallScore, applied, expectedImpact))
	}

	return result
}

// adaptationNeeded applies the decision rule: poor overall score, any
// high-severity violation, or a declining score trend.
func (l *Loop) adaptationNeeded(analysis AnalysisResult) bool {
	if analysis.OverallScore < 0.7 {
		return true
	}
	for _, v := range analysis.Violations {
		if v.Severity == SeverityHigh {
			return true
		}
	}
	return l.trendDeclining(analysis.OverallScore)
}

// trendDeclining compares the current analysis score against the one
// from roughly five cycles prior. It needs at least two retained prior
// analyses and reports decline when the drop exceeds 10%.
func (l *Loop) trendDeclining(recent float64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.history) < 2 {
		return false
	}
	idx := len(l.history) - 5
	if idx < 0 {
		idx = 0
	}
	older := l.history[idx].OverallScore
	if older <= 0 {
		return false
	}
	return (recent-older)/older < -0.1
}

// record folds one cycle result into the loop's cumulative statistics.
func (l *Loop) record(result CycleResult, start time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.executionCount++
	l.lastExecution = start
	if result.Err == nil {
		l.lastScore = result.Analysis.OverallScore
	}

	n := time.Duration(l.executionCount)
	l.avgExecution += (result.Duration - l.avgExecution) / n

	if result.Err == nil {
		l.cleanCycles++
		if result.Improved {
			l.improvementCount++
		}
	} else {
		l.failedCycles++
	}

	l.history = append(l.history, result.Analysis)
	if len(l.history) > l.cfg.HistorySize {
		l.history = l.history[len(l.history)-l.cfg.HistorySize:]
	}
}

// Status returns a consistent snapshot of the loop's counters.
func (l *Loop) Status() LoopStatus {
	l.mu.Lock()
	defer l.mu.Unlock()

	status := LoopStatus{
		Name:             l.name,
		Domain:           l.cfg.Domain,
		State:            l.state.String(),
		ExecutionCount:   l.executionCount,
		ImprovementCount: l.improvementCount,
		FailedCycles:     l.failedCycles,
		SkippedTicks:     l.skippedTicks,
		LastExecution:    l.lastExecution,
		LastScore:        l.lastScore,
	}
	status.Performance.AvgExecutionTime = l.avgExecution
	if l.executionCount > 0 {
		status.Performance.SuccessRate = float64(l.cleanCycles) / float64(l.executionCount)
		status.Performance.ImprovementRate = float64(l.improvementCount) / float64(l.executionCount)
	}
	return status
}
