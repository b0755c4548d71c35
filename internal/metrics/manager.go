// Package metrics records in-process counters, timings and outcomes for the
// router. Use dot import to access the Metric* helpers directly.
package metrics

import (
	"database/sql"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Manager holds every metric keyed by "topic/function" path.
type Manager struct {
	mu          sync.RWMutex
	timings     map[string]*TimingMetric
	counters    map[string]*CounterMetric
	successFail map[string]*SuccessFailMetric
	outcomes    map[string]*OutcomeMetric

	// persistence, nil when running in-memory
	db      *sql.DB
	flusher *cron.Cron
}

var (
	instance *Manager
	once     sync.Once
)

// GetInstance returns the process-wide manager.
func GetInstance() *Manager {
	once.Do(func() {
		instance = NewManager()
	})
	return instance
}

// NewManager creates an empty in-memory manager.
func NewManager() *Manager {
	return &Manager{
		timings:     make(map[string]*TimingMetric),
		counters:    make(map[string]*CounterMetric),
		successFail: make(map[string]*SuccessFailMetric),
		outcomes:    make(map[string]*OutcomeMetric),
	}
}

func buildPath(topic, function string) string {
	if function == "" {
		return topic
	}
	return topic + "/" + function
}

// getOrCreate returns the metric at path, creating it with mk if absent.
func getOrCreate[T any](m *Manager, table map[string]*T, path string, mk func() *T) *T {
	m.mu.RLock()
	metric, ok := table[path]
	m.mu.RUnlock()
	if ok {
		return metric
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if metric, ok = table[path]; ok {
		return metric
	}
	metric = mk()
	table[path] = metric
	return metric
}

// RecordDuration records one timing sample.
func (m *Manager) RecordDuration(topic, function string, d time.Duration) {
	metric := getOrCreate(m, m.timings, buildPath(topic, function), func() *TimingMetric {
		return &TimingMetric{Min: d, Max: d}
	})

	metric.mu.Lock()
	defer metric.mu.Unlock()
	metric.Count++
	metric.Total += d
	metric.Last = d
	if d < metric.Min {
		metric.Min = d
	}
	if d > metric.Max {
		metric.Max = d
	}
}

// AddCounter adds delta to a counter.
func (m *Manager) AddCounter(topic, function string, delta int64) {
	metric := getOrCreate(m, m.counters, buildPath(topic, function), func() *CounterMetric {
		return &CounterMetric{}
	})

	metric.mu.Lock()
	defer metric.mu.Unlock()
	metric.Value += delta
	metric.Last = time.Now()
}

// RecordSuccess records a successful operation.
func (m *Manager) RecordSuccess(topic, function string) {
	metric := getOrCreate(m, m.successFail, buildPath(topic, function), newSuccessFail)

	metric.mu.Lock()
	defer metric.mu.Unlock()
	metric.Success++
	metric.LastSuccess = time.Now()
}

// RecordFailure records a failed operation. reason may be empty.
func (m *Manager) RecordFailure(topic, function, reason string) {
	metric := getOrCreate(m, m.successFail, buildPath(topic, function), newSuccessFail)

	metric.mu.Lock()
	defer metric.mu.Unlock()
	metric.Failures++
	metric.LastFailure = time.Now()
	if reason != "" {
		metric.FailureReasons[reason]++
	}
}

func newSuccessFail() *SuccessFailMetric {
	return &SuccessFailMetric{FailureReasons: make(map[string]int64)}
}

// RecordOutcome records one of several named outcomes.
func (m *Manager) RecordOutcome(topic, function, outcome string) {
	metric := getOrCreate(m, m.outcomes, buildPath(topic, function), func() *OutcomeMetric {
		return &OutcomeMetric{Outcomes: make(map[string]int64)}
	})

	metric.mu.Lock()
	defer metric.mu.Unlock()
	metric.Outcomes[outcome]++
	metric.Total++
	metric.LastOutcome = outcome
	metric.LastTime = time.Now()
}

// GetSnapshot returns a copy of every metric, keyed by path.
func (m *Manager) GetSnapshot() map[string]Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]Snapshot, len(m.timings)+len(m.counters)+len(m.successFail)+len(m.outcomes))

	for path, metric := range m.timings {
		metric.mu.RLock()
		avg := 0.0
		if metric.Count > 0 {
			avg = ms(metric.Total) / float64(metric.Count)
		}
		out[path] = Snapshot{Path: path, Type: TypeTiming, Data: TimingSnapshot{
			Count:  metric.Count,
			AvgMs:  avg,
			MinMs:  ms(metric.Min),
			MaxMs:  ms(metric.Max),
			LastMs: ms(metric.Last),
		}}
		metric.mu.RUnlock()
	}

	for path, metric := range m.counters {
		metric.mu.RLock()
		out[path] = Snapshot{Path: path, Type: TypeCounter, Data: CounterSnapshot{Value: metric.Value}}
		metric.mu.RUnlock()
	}

	for path, metric := range m.successFail {
		metric.mu.RLock()
		rate := 0.0
		if total := metric.Success + metric.Failures; total > 0 {
			rate = float64(metric.Success) / float64(total) * 100
		}
		reasons := make(map[string]int64, len(metric.FailureReasons))
		for k, v := range metric.FailureReasons {
			reasons[k] = v
		}
		out[path] = Snapshot{Path: path, Type: TypeSuccessFail, Data: SuccessFailSnapshot{
			Success:        metric.Success,
			Failures:       metric.Failures,
			SuccessRate:    rate,
			FailureReasons: reasons,
		}}
		metric.mu.RUnlock()
	}

	for path, metric := range m.outcomes {
		metric.mu.RLock()
		outcomes := make(map[string]int64, len(metric.Outcomes))
		for k, v := range metric.Outcomes {
			outcomes[k] = v
		}
		out[path] = Snapshot{Path: path, Type: TypeOutcome, Data: OutcomeSnapshot{
			Outcomes: outcomes,
			Total:    metric.Total,
		}}
		metric.mu.RUnlock()
	}

	return out
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
