package metrics

import (
	"time"
)

// Global functions for dot-import usage

// MetricDuration records a duration directly
func MetricDuration(topic, function string, duration time.Duration) {
	GetInstance().RecordDuration(topic, function, duration)
}

// MetricTimer starts a timer and returns the func that records it
func MetricTimer(topic, function string) func() {
	start := time.Now()
	return func() {
		GetInstance().RecordDuration(topic, function, time.Since(start))
	}
}

// MetricInc increments a counter
func MetricInc(topic, function string) {
	GetInstance().AddCounter(topic, function, 1)
}

// MetricAdd adds to a counter
func MetricAdd(topic, function string, delta int64) {
	GetInstance().AddCounter(topic, function, delta)
}

// MetricSuccess records a successful operation
func MetricSuccess(topic, operation string) {
	GetInstance().RecordSuccess(topic, operation)
}

// MetricFail records a failed operation
func MetricFail(topic, operation string) {
	GetInstance().RecordFailure(topic, operation, "")
}

// MetricFailWithReason records a failed operation with reason
func MetricFailWithReason(topic, operation, reason string) {
	GetInstance().RecordFailure(topic, operation, reason)
}

// MetricOutcome records a specific outcome
func MetricOutcome(topic, operation, outcome string) {
	GetInstance().RecordOutcome(topic, operation, outcome)
}
