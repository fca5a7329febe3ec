package feedback

import (
	"fmt"
)

// Direction indicates which side of a threshold is "good".
type Direction string

const (
	HigherIsBetter Direction = "higher_is_better"
	LowerIsBetter  Direction = "lower_is_better"
)

// ThresholdSpec is the configured acceptable bound for one metric. It is
// immutable for the lifetime of the loop that carries it.
type ThresholdSpec struct {
	Metric    string    `json:"metric"`
	Limit     float64   `json:"limit"`
	Direction Direction `json:"direction"`
}

// Severity classifies how far a violated metric is from its threshold.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
)

func (s Severity) String() string {
	switch s {
	case SeverityHigh:
		return "high"
	case SeverityMedium:
		return "medium"
	case SeverityLow:
		return "low"
	default:
		return "unknown"
	}
}

// Violation is a metric whose current value fails its threshold.
type Violation struct {
	Metric   string   `json:"metric"`
	Value    float64  `json:"value"`
	Limit    float64  `json:"limit"`
	Score    float64  `json:"score"`
	Severity Severity `json:"severity"`
}

// Status buckets the overall score of one analysis.
type Status string

const (
	StatusExcellent Status = "excellent"
	StatusGood      Status = "good"
	StatusFair      Status = "fair"
	StatusPoor      Status = "poor"
)

// AnalysisResult is the outcome of scoring one cycle's samples against
// the loop's thresholds.
type AnalysisResult struct {
	OverallScore    float64     `json:"overall_score"`
	Status          Status      `json:"status"`
	Violations      []Violation `json:"violations"`
	Recommendations []string    `json:"recommendations"`
}

// Evaluate scores samples against thresholds. It is a pure function of
// its inputs: identical inputs always yield identical results.
//
// Thresholds with no matching sample are skipped. Per-metric scores are
// clamped to [0,1]; the overall score is their arithmetic mean (0 when no
// threshold matched a sample).
func Evaluate(samples []MetricSample, thresholds []ThresholdSpec) AnalysisResult {
	byName := make(map[string]float64, len(samples))
	for _, s := range samples {
		byName[s.Name] = s.Value
	}

	result := AnalysisResult{}
	var sum float64
	var scored int

	for _, spec := range thresholds {
		value, ok := byName[spec.Metric]
		if !ok {
			continue
		}

		score := metricScore(value, spec)
		sum += score
		scored++

		if score < 1 {
			result.Violations = append(result.Violations, Violation{
				Metric:   spec.Metric,
				Value:    value,
				Limit:    spec.Limit,
				Score:    score,
				Severity: scoreSeverity(score),
			})
		}
	}

	if scored > 0 {
		result.OverallScore = sum / float64(scored)
	}
	result.Status = scoreStatus(result.OverallScore)

	for _, v := range result.Violations {
		result.Recommendations = append(result.Recommendations, fmt.Sprintf(
			"metric %q at %.4g violates limit %.4g (%s severity): bring it %s the configured bound",
			v.Metric, v.Value, v.Limit, v.Severity, boundSide(thresholds, v.Metric),
		))
	}
	if result.OverallScore < 0.8 {
		result.Recommendations = append(result.Recommendations,
			fmt.Sprintf("overall score %.2f is below 0.80: review thresholds and recent adaptations", result.OverallScore))
	}

	return result
}

func metricScore(value float64, spec ThresholdSpec) float64 {
	switch spec.Direction {
	case LowerIsBetter:
		if value == 0 {
			return 1
		}
		return clamp01(spec.Limit / value)
	default:
		if spec.Limit == 0 {
			return 1
		}
		return clamp01(value / spec.Limit)
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func scoreSeverity(score float64) Severity {
	switch {
	case score < 0.5:
		return SeverityHigh
	case score < 0.8:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

func scoreStatus(score float64) Status {
	switch {
	case score >= 0.9:
		return StatusExcellent
	case score >= 0.7:
		return StatusGood
	case score >= 0.5:
		return StatusFair
	default:
		return StatusPoor
	}
}

func boundSide(thresholds []ThresholdSpec, metric string) string {
	for _, spec := range thresholds {
		if spec.Metric == metric {
			if spec.Direction == LowerIsBetter {
				return "below"
			}
			return "above"
		}
	}
	return "within"
}
