package feedback

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func quickLoopConfig(interval time.Duration) LoopConfig {
	registry := NewSourceRegistry()
	registry.Register("response_time", &stubValue{value: 400})
	return LoopConfig{
		Domain:   "api",
		Metrics:  []string{"response_time"},
		Interval: interval,
		Thresholds: []ThresholdSpec{
			{Metric: "response_time", Limit: 1000, Direction: LowerIsBetter},
		},
		Sources: registry,
	}
}

func TestSupervisorRegisterValidation(t *testing.T) {
	sup := NewSupervisor(nil)

	_, err := sup.Register("", quickLoopConfig(time.Hour))
	assert.Error(t, err)

	cfg := quickLoopConfig(time.Hour)
	cfg.Interval = 0
	_, err = sup.Register("bad-interval", cfg)
	assert.Error(t, err)

	cfg = quickLoopConfig(time.Hour)
	cfg.Thresholds = []ThresholdSpec{{Metric: "response_time", Limit: -1, Direction: LowerIsBetter}}
	_, err = sup.Register("bad-limit", cfg)
	assert.Error(t, err)
}

func TestSupervisorRegisterDuplicate(t *testing.T) {
	sup := NewSupervisor(nil)

	loop, err := sup.Register("x", quickLoopConfig(10*time.Millisecond))
	require.NoError(t, err)

	// Replacing an inactive loop is allowed.
	_, err = sup.Register("x", quickLoopConfig(10*time.Millisecond))
	require.NoError(t, err)

	loop = sup.Loop("x")
	loop.Start(context.Background())

	// Replacing an active loop is not.
	_, err = sup.Register("x", quickLoopConfig(10*time.Millisecond))
	require.Error(t, err)
	var active *LoopAlreadyActiveError
	require.True(t, errors.As(err, &active))
	assert.Equal(t, "x", active.Name)

	require.Eventually(t, func() bool {
		return loop.Status().ExecutionCount >= 1
	}, 2*time.Second, 5*time.Millisecond)
	loop.Stop()

	// After stopping, re-registration succeeds and resets the counters.
	replacement, err := sup.Register("x", quickLoopConfig(10*time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, uint64(0), replacement.Status().ExecutionCount)
}

func TestSupervisorStartStopAll(t *testing.T) {
	sup := NewSupervisor(nil)

	_, err := sup.Register("a", quickLoopConfig(10*time.Millisecond))
	require.NoError(t, err)
	_, err = sup.Register("b", quickLoopConfig(10*time.Millisecond))
	require.NoError(t, err)

	sup.Start(context.Background())
	assert.True(t, sup.Status().Running)

	// Idempotent start.
	sup.Start(context.Background())

	require.Eventually(t, func() bool {
		status := sup.Status()
		return status.TotalExecutions >= 4
	}, 2*time.Second, 5*time.Millisecond)

	sup.Stop()
	status := sup.Status()
	assert.False(t, status.Running)

	executionsAtStop := status.TotalExecutions
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, executionsAtStop, sup.Status().TotalExecutions,
		"no loop may cycle after Stop returns")

	for _, ls := range status.Loops {
		assert.Equal(t, "inactive", ls.State)
	}
}

func TestSupervisorRegisterWhileRunningStartsLoop(t *testing.T) {
	sup := NewSupervisor(nil)
	sup.Start(context.Background())
	defer sup.Stop()

	loop, err := sup.Register("late", quickLoopConfig(10*time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, LoopActive, loop.State())

	require.Eventually(t, func() bool {
		return loop.Status().ExecutionCount >= 1
	}, 2*time.Second, 5*time.Millisecond)
}

func TestSupervisorLateRegistrationSharesStartContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sup := NewSupervisor(nil)
	sup.Start(ctx)
	defer sup.Stop()

	loop, err := sup.Register("late", quickLoopConfig(5*time.Millisecond))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return loop.Status().ExecutionCount >= 1
	}, 2*time.Second, time.Millisecond)

	// A late-registered loop runs under the same context as the rest:
	// cancelling it stops this loop's scheduled cycles too.
	cancel()
	time.Sleep(30 * time.Millisecond)
	before := loop.Status().ExecutionCount
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, before, loop.Status().ExecutionCount)
}

func TestSupervisorStatusSnapshot(t *testing.T) {
	sup := NewSupervisor(nil)

	_, err := sup.Register("b-loop", quickLoopConfig(time.Hour))
	require.NoError(t, err)
	_, err = sup.Register("a-loop", quickLoopConfig(time.Hour))
	require.NoError(t, err)

	sup.Loop("a-loop").ExecuteCycleNow(context.Background())

	status := sup.Status()
	require.Len(t, status.Loops, 2)
	assert.Equal(t, "a-loop", status.Loops[0].Name, "per-loop status is sorted by name")
	assert.Equal(t, "b-loop", status.Loops[1].Name)
	assert.Equal(t, uint64(1), status.TotalExecutions)
}

func TestSupervisorFailingLoopStaysVisible(t *testing.T) {
	sup := NewSupervisor(nil)

	registry := NewSourceRegistry()
	registry.Register("m", SourceFunc(func(context.Context, string) (float64, error) {
		panic("always broken")
	}))
	_, err := sup.Register("broken", LoopConfig{
		Metrics:    []string{"m"},
		Interval:   time.Hour,
		Thresholds: []ThresholdSpec{{Metric: "m", Limit: 1, Direction: HigherIsBetter}},
		Sources:    registry,
	})
	require.NoError(t, err)
	_, err = sup.Register("healthy", quickLoopConfig(time.Hour))
	require.NoError(t, err)

	sup.Loop("broken").ExecuteCycleNow(context.Background())
	sup.Loop("healthy").ExecuteCycleNow(context.Background())

	status := sup.Status()
	require.Len(t, status.Loops, 2, "a failing loop never disappears from status")

	var broken LoopStatus
	for _, ls := range status.Loops {
		if ls.Name == "broken" {
			broken = ls
		}
	}
	assert.Equal(t, uint64(1), broken.FailedCycles)
	assert.Equal(t, uint64(1), broken.ExecutionCount)
}

func TestSupervisorRemove(t *testing.T) {
	sup := NewSupervisor(nil)

	loop, err := sup.Register("gone", quickLoopConfig(10*time.Millisecond))
	require.NoError(t, err)
	loop.Start(context.Background())

	sup.Remove("gone")
	assert.Nil(t, sup.Loop("gone"))
	assert.Equal(t, LoopInactive, loop.State())

	// Removing an unknown name is a no-op.
	sup.Remove("never-existed")
}

func TestLedgerBounded(t *testing.T) {
	sup := NewSupervisor(nil)
	sup.ledgerSize = 5

	for i := 0; i < 12; i++ {
		sup.appendImprovement(newImprovementRecord("loop", 0.4, []string{"a"}, 0.1))
	}

	records := sup.RecentImprovements(100)
	assert.Len(t, records, 5)
}

func TestLedgerConcurrentAppends(t *testing.T) {
	sup := NewSupervisor(nil)

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 20; j++ {
				sup.appendImprovement(newImprovementRecord("loop", 0.4, []string{"a"}, 0.1))
			}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}

	records := sup.RecentImprovements(DefaultLedgerSize)
	assert.Len(t, records, DefaultLedgerSize)
	for _, rec := range records {
		assert.Equal(t, "loop", rec.Loop)
		assert.NotEmpty(t, rec.ID)
	}
}
