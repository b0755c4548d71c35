package metrics

import (
	"sync"
	"time"
)

// MetricType represents the type of metric
type MetricType string

const (
	TypeTiming      MetricType = "timing"
	TypeCounter     MetricType = "counter"
	TypeSuccessFail MetricType = "success_fail"
	TypeOutcome     MetricType = "outcome"
)

// TimingMetric tracks timing statistics
type TimingMetric struct {
	mu    sync.RWMutex
	Count int64
	Total time.Duration
	Min   time.Duration
	Max   time.Duration
	Last  time.Duration
}

// CounterMetric tracks incrementing values
type CounterMetric struct {
	mu    sync.RWMutex
	Value int64
	Last  time.Time
}

// SuccessFailMetric tracks success and failure counts
type SuccessFailMetric struct {
	mu             sync.RWMutex
	Success        int64
	Failures       int64
	LastSuccess    time.Time
	LastFailure    time.Time
	FailureReasons map[string]int64 // reason -> count
}

// OutcomeMetric tracks multiple possible outcomes, e.g. decision kinds
type OutcomeMetric struct {
	mu          sync.RWMutex
	Outcomes    map[string]int64
	LastOutcome string
	LastTime    time.Time
	Total       int64
}

// Snapshot is a point-in-time view of one metric
type Snapshot struct {
	Path string     `json:"path"`
	Type MetricType `json:"type"`
	Data any        `json:"data"`
}

// TimingSnapshot for JSON serialization
type TimingSnapshot struct {
	Count  int64   `json:"count"`
	AvgMs  float64 `json:"avg_ms"`
	MinMs  float64 `json:"min_ms"`
	MaxMs  float64 `json:"max_ms"`
	LastMs float64 `json:"last_ms"`
}

// CounterSnapshot for JSON serialization
type CounterSnapshot struct {
	Value int64 `json:"value"`
}

// SuccessFailSnapshot for JSON serialization
type SuccessFailSnapshot struct {
	Success        int64            `json:"success"`
	Failures       int64            `json:"failures"`
	SuccessRate    float64          `json:"success_rate"`
	FailureReasons map[string]int64 `json:"failure_reasons,omitempty"`
}

// OutcomeSnapshot for JSON serialization
type OutcomeSnapshot struct {
	Outcomes map[string]int64 `json:"outcomes"`
	Total    int64            `json:"total"`
}
