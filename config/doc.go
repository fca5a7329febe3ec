// Package config defines declarative loop definitions for the feedback
// engine: which subject a loop monitors, which metrics it samples, how
// often it runs and the thresholds its samples are scored against.
//
// Definitions are plain YAML:
//
//	loops:
//	  - name: latency
//	    domain: api
//	    interval: 30s
//	    metrics:
//	      - response_time
//	    thresholds:
//	      - metric: response_time
//	        limit: 1000
//	        direction: lower_is_better
//
// Load or Parse validates the document; feedback.RegisterDefinitions
// turns the definitions into running loops.
package config
