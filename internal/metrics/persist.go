package metrics

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/robfig/cron/v3"

	. "github.com/roelfdiedericks/gaiabot/internal/logging"
	"github.com/roelfdiedericks/gaiabot/internal/paths"
)

const (
	// DefaultFlushSchedule is the cron spec for periodic saves.
	DefaultFlushSchedule = "@every 5m"
	// DBFileName is the metrics database under the data directory.
	DBFileName = "metrics.db"

	pruneMaxAge   = 7 * 24 * time.Hour
	dbOpenOptions = "?_busy_timeout=5000"
)

const schemaSQL = `CREATE TABLE IF NOT EXISTS metrics (
	path       TEXT PRIMARY KEY,
	type       TEXT NOT NULL,
	data       BLOB NOT NULL,
	updated_at INTEGER NOT NULL
)`

// DefaultDBPath returns <base>/metrics.db.
func DefaultDBPath() (string, error) {
	return paths.DataPath(DBFileName)
}

// Persist opens the metrics DB at dbPath, loads persisted data, prunes stale
// entries and schedules periodic saves. An empty schedule selects
// DefaultFlushSchedule. Callers may treat an error as "run in-memory".
func (m *Manager) Persist(dbPath, schedule string) error {
	if schedule == "" {
		schedule = DefaultFlushSchedule
	}
	if err := paths.EnsureParentDir(dbPath); err != nil {
		return err
	}

	db, err := sql.Open("sqlite3", dbPath+dbOpenOptions)
	if err != nil {
		return fmt.Errorf("open metrics db: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return fmt.Errorf("create metrics schema: %w", err)
	}

	flusher := cron.New()
	if _, err := flusher.AddFunc(schedule, func() {
		if err := m.Save(); err != nil {
			L_warn("metrics: periodic save failed", "error", err)
		}
	}); err != nil {
		db.Close()
		return fmt.Errorf("invalid flush schedule %q: %w", schedule, err)
	}

	m.mu.Lock()
	m.db = db
	m.flusher = flusher
	m.mu.Unlock()

	loaded, err := m.load()
	if err != nil {
		L_warn("metrics: failed to load persisted data", "error", err)
	} else if loaded > 0 {
		L_info("metrics: loaded persisted data", "count", loaded)
	}

	pruned, err := m.prune()
	if err != nil {
		L_warn("metrics: failed to prune stale data", "error", err)
	} else if pruned > 0 {
		L_info("metrics: pruned stale metrics", "count", pruned)
	}

	flusher.Start()
	L_debug("metrics: persistence enabled", "path", dbPath, "schedule", schedule)
	return nil
}

// Close stops the flush schedule, performs a final save and closes the DB.
// Safe to call even if persistence was never enabled.
func (m *Manager) Close() error {
	m.mu.RLock()
	db, flusher := m.db, m.flusher
	m.mu.RUnlock()
	if db == nil {
		return nil
	}

	if flusher != nil {
		<-flusher.Stop().Done()
	}
	if err := m.Save(); err != nil {
		L_warn("metrics: final save failed", "error", err)
	}

	m.mu.Lock()
	m.db = nil
	m.flusher = nil
	m.mu.Unlock()
	return db.Close()
}

// Save writes all metrics to the database in a single transaction.
func (m *Manager) Save() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.db == nil {
		return nil
	}

	tx, err := m.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.Prepare(`INSERT INTO metrics (path, type, data, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().Unix()
	if err := saveMapEntries(stmt, now, m.timings, TypeTiming, marshalTiming); err != nil {
		return err
	}
	if err := saveMapEntries(stmt, now, m.counters, TypeCounter, marshalCounter); err != nil {
		return err
	}
	if err := saveMapEntries(stmt, now, m.successFail, TypeSuccessFail, marshalSuccessFail); err != nil {
		return err
	}
	if err := saveMapEntries(stmt, now, m.outcomes, TypeOutcome, marshalOutcome); err != nil {
		return err
	}

	return tx.Commit()
}

func saveMapEntries[T any](stmt *sql.Stmt, now int64, metrics map[string]*T, metricType MetricType, marshal func(*T) ([]byte, error)) error {
	for path, metric := range metrics {
		data, err := marshal(metric)
		if err != nil {
			L_warn("metrics: failed to marshal metric", "path", path, "type", metricType, "error", err)
			continue
		}
		if _, err := stmt.Exec(path, string(metricType), data, now); err != nil {
			return err
		}
	}
	return nil
}

// load restores persisted metrics into memory.
func (m *Manager) load() (int, error) {
	rows, err := m.db.Query("SELECT path, type, data FROM metrics")
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for rows.Next() {
		var path, metricType string
		var data []byte
		if err := rows.Scan(&path, &metricType, &data); err != nil {
			L_warn("metrics: failed to scan row", "error", err)
			continue
		}
		if err := m.restore(path, MetricType(metricType), data); err != nil {
			L_warn("metrics: failed to restore metric", "path", path, "type", metricType, "error", err)
			continue
		}
		count++
	}
	return count, rows.Err()
}

func (m *Manager) prune() (int, error) {
	cutoff := time.Now().Add(-pruneMaxAge).Unix()
	result, err := m.db.Exec("DELETE FROM metrics WHERE updated_at < ?", cutoff)
	if err != nil {
		return 0, err
	}
	n, _ := result.RowsAffected()
	return int(n), nil
}

// restore must be called with m.mu held.
func (m *Manager) restore(path string, metricType MetricType, data []byte) error {
	switch metricType {
	case TypeTiming:
		var p persistTiming
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
		m.timings[path] = &TimingMetric{Count: p.Count, Total: p.Total, Min: p.Min, Max: p.Max, Last: p.Last}
	case TypeCounter:
		var p persistCounter
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
		m.counters[path] = &CounterMetric{Value: p.Value, Last: p.Last}
	case TypeSuccessFail:
		var p persistSuccessFail
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
		if p.FailureReasons == nil {
			p.FailureReasons = make(map[string]int64)
		}
		m.successFail[path] = &SuccessFailMetric{
			Success:        p.Success,
			Failures:       p.Failures,
			LastSuccess:    p.LastSuccess,
			LastFailure:    p.LastFailure,
			FailureReasons: p.FailureReasons,
		}
	case TypeOutcome:
		var p persistOutcome
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
		if p.Outcomes == nil {
			p.Outcomes = make(map[string]int64)
		}
		m.outcomes[path] = &OutcomeMetric{
			Outcomes:    p.Outcomes,
			LastOutcome: p.LastOutcome,
			LastTime:    p.LastTime,
			Total:       p.Total,
		}
	default:
		return fmt.Errorf("unknown metric type %q", metricType)
	}
	return nil
}

// JSON-safe mirrors of the metric structs (no mutex).

type persistTiming struct {
	Count int64         `json:"count"`
	Total time.Duration `json:"total"`
	Min   time.Duration `json:"min"`
	Max   time.Duration `json:"max"`
	Last  time.Duration `json:"last"`
}

type persistCounter struct {
	Value int64     `json:"value"`
	Last  time.Time `json:"last"`
}

type persistSuccessFail struct {
	Success        int64            `json:"success"`
	Failures       int64            `json:"failures"`
	LastSuccess    time.Time        `json:"last_success"`
	LastFailure    time.Time        `json:"last_failure"`
	FailureReasons map[string]int64 `json:"failure_reasons,omitempty"`
}

type persistOutcome struct {
	Outcomes    map[string]int64 `json:"outcomes"`
	LastOutcome string           `json:"last_outcome"`
	LastTime    time.Time        `json:"last_time"`
	Total       int64            `json:"total"`
}

func marshalTiming(m *TimingMetric) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return json.Marshal(persistTiming{Count: m.Count, Total: m.Total, Min: m.Min, Max: m.Max, Last: m.Last})
}

func marshalCounter(m *CounterMetric) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return json.Marshal(persistCounter{Value: m.Value, Last: m.Last})
}

func marshalSuccessFail(m *SuccessFailMetric) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return json.Marshal(persistSuccessFail{
		Success:        m.Success,
		Failures:       m.Failures,
		LastSuccess:    m.LastSuccess,
		LastFailure:    m.LastFailure,
		FailureReasons: m.FailureReasons,
	})
}

func marshalOutcome(m *OutcomeMetric) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return json.Marshal(persistOutcome{
		Outcomes:    m.Outcomes,
		LastOutcome: m.LastOutcome,
		LastTime:    m.LastTime,
		Total:       m.Total,
	})
}
