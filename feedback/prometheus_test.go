package feedback

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExporterCycleCompleted(t *testing.T) {
	exporter := NewExporter()

	exporter.CycleCompleted(CycleResult{
		Loop:      "latency",
		Cycle:     1,
		Duration:  5 * time.Millisecond,
		Analysis:  AnalysisResult{OverallScore: 0.5, Status: StatusFair},
		Improved:  true,
		Outcomes: []ActionOutcome{
			{Action: "scale-pool", Success: true},
			{Action: "shed-load", Success: false},
		},
	})
	exporter.CycleCompleted(CycleResult{
		Loop:     "latency",
		Cycle:    2,
		Duration: time.Millisecond,
		Analysis: AnalysisResult{OverallScore: 0.9, Status: StatusExcellent},
		Err:      &CycleTimeoutError{Loop: "latency", Cycle: 2, Timeout: time.Second},
	})

	cycles := testutil.ToFloat64(exporter.cyclesTotal.WithLabelValues("latency"))
	assert.Equal(t, 2.0, cycles)

	improvements := testutil.ToFloat64(exporter.improvementsTotal.WithLabelValues("latency"))
	assert.Equal(t, 1.0, improvements)

	failed := testutil.ToFloat64(exporter.failedTotal.WithLabelValues("latency"))
	assert.Equal(t, 1.0, failed)

	score := testutil.ToFloat64(exporter.lastScore.WithLabelValues("latency"))
	assert.Equal(t, 0.9, score)

	succeeded := testutil.ToFloat64(exporter.actionsTotal.WithLabelValues("latency", "success"))
	assert.Equal(t, 1.0, succeeded)
	failedActions := testutil.ToFloat64(exporter.actionsTotal.WithLabelValues("latency", "failure"))
	assert.Equal(t, 1.0, failedActions)
}

func TestExporterRegistryGathers(t *testing.T) {
	exporter := NewExporter()
	exporter.CycleCompleted(CycleResult{Loop: "a", Analysis: AnalysisResult{OverallScore: 1}})

	families, err := exporter.Registry().Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)

	names := make(map[string]bool, len(families))
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	assert.True(t, names["feedback_loop_cycles_total"])
	assert.True(t, names["feedback_loop_last_overall_score"])
}
