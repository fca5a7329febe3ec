// Package feedback implements a periodic adaptation-loop engine.
//
// A Loop monitors one subject: on every cycle it samples a set of named
// metrics, scores them against configured thresholds, decides whether
// corrective action is warranted, applies actions from a shared catalog
// and records the outcome. A Supervisor owns a collection of named loops,
// starts and stops them together and aggregates status across all of them.
//
// The engine is a library; callers wire metric sources and adaptation
// actions in, then drive it through the Supervisor:
//
//	sup := feedback.NewSupervisor(nil)
//	loop, err := sup.Register("latency", feedback.LoopConfig{
//		Domain:   "api",
//		Metrics:  []string{"response_time"},
//		Interval: 10 * time.Second,
//		Thresholds: []feedback.ThresholdSpec{
//			{Metric: "response_time", Limit: 1000, Direction: feedback.LowerIsBetter},
//		},
//		Sources: registry,
//		Catalog: catalog,
//	})
//
// Metric sources and action applications may block (a real deployment may
// probe over the network); every cycle runs under a timeout and a loop's
// cycles never overlap. Failures inside one loop's cycle are contained
// within that loop and never affect siblings or the Supervisor.
package feedback
