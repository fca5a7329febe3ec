package feedback

import (
	"fmt"
	"time"
)

// UnknownMetricError reports a sample request for a metric that has no
// registered source. Cycles record the metric as absent and continue.
type UnknownMetricError struct {
	Metric string
}

func (e *UnknownMetricError) Error() string {
	return fmt.Sprintf("no source registered for metric %q", e.Metric)
}

// ActionApplicationError describes a failed adaptation action. It is
// captured into an ActionOutcome and never propagated as an error from
// Apply; the type exists so outcomes can carry structured detail.
type ActionApplicationError struct {
	Action string
	Cause  error
}

func (e *ActionApplicationError) Error() string {
	return fmt.Sprintf("action %q failed: %v", e.Action, e.Cause)
}

func (e *ActionApplicationError) Unwrap() error { return e.Cause }

// LoopAlreadyActiveError is returned when registration would replace a
// loop that is currently running.
type LoopAlreadyActiveError struct {
	Name string
}

func (e *LoopAlreadyActiveError) Error() string {
	return fmt.Sprintf("loop %q is active and cannot be replaced", e.Name)
}

// CycleTimeoutError marks a cycle that exceeded its timeout budget. The
// cycle is recorded as failed and the loop continues with the next tick.
type CycleTimeoutError struct {
	Loop    string
	Cycle   uint64
	Timeout time.Duration
}

func (e *CycleTimeoutError) Error() string {
	return fmt.Sprintf("loop %q cycle %d exceeded timeout %v", e.Loop, e.Cycle, e.Timeout)
}
