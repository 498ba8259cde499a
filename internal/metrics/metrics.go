package metrics

import (
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"
)

// Metrics holds all application metrics
type Metrics struct {
	mu sync.RWMutex

	// Ingestion metrics
	RowsReadTotal    int64
	FatalRowsTotal   int64
	eventsByCategory map[string]int64
	anomaliesByKind  map[string]int64

	// Run metrics
	RunsTotal       int64
	RunErrorsTotal  int64
	lastRunDuration time.Duration
	lastRunRows     int

	// HTTP metrics
	httpRequestsTotal    map[string]map[int]int64 // endpoint -> status -> count
	httpRequestDurations map[string][]float64     // endpoint -> durations

	// Timing
	startTime time.Time
}

// Global metrics instance
var instance *Metrics
var once sync.Once

// Get returns the singleton metrics instance
func Get() *Metrics {
	once.Do(func() {
		instance = &Metrics{
			eventsByCategory:     make(map[string]int64),
			anomaliesByKind:      make(map[string]int64),
			httpRequestsTotal:    make(map[string]map[int]int64),
			httpRequestDurations: make(map[string][]float64),
			startTime:            time.Now(),
		}
	})
	return instance
}

// RecordRow increments the rows read counter
func (m *Metrics) RecordRow() {
	m.mu.Lock()
	m.RowsReadTotal++
	m.mu.Unlock()
}

// RecordFatalRow increments the fatal row counter
func (m *Metrics) RecordFatalRow() {
	m.mu.Lock()
	m.FatalRowsTotal++
	m.mu.Unlock()
}

// RecordCategory counts one classified event
func (m *Metrics) RecordCategory(category string) {
	m.mu.Lock()
	m.eventsByCategory[category]++
	m.mu.Unlock()
}

// RecordAnomaly counts one reported anomaly
func (m *Metrics) RecordAnomaly(kind string) {
	m.mu.Lock()
	m.anomaliesByKind[kind]++
	m.mu.Unlock()
}

// RecordRun records a completed report run
func (m *Metrics) RecordRun(duration time.Duration, rows int) {
	m.mu.Lock()
	m.RunsTotal++
	m.lastRunDuration = duration
	m.lastRunRows = rows
	m.mu.Unlock()
}

// RecordRunError increments the failed run counter
func (m *Metrics) RecordRunError() {
	m.mu.Lock()
	m.RunErrorsTotal++
	m.mu.Unlock()
}

// CategoryCount returns the number of events seen for a category
func (m *Metrics) CategoryCount(category string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.eventsByCategory[category]
}

// AnomalyCount returns the number of anomalies seen for a kind
func (m *Metrics) AnomalyCount(kind string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.anomaliesByKind[kind]
}

// RunSnapshot is a consistent copy of the run counters
type RunSnapshot struct {
	RowsRead        int64
	FatalRows       int64
	Runs            int64
	RunErrors       int64
	LastRunDuration time.Duration
	LastRunRows     int
	Events          map[string]int64
	Anomalies       map[string]int64
}

// Snapshot copies the run counters under the lock
func (m *Metrics) Snapshot() RunSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := RunSnapshot{
		RowsRead:        m.RowsReadTotal,
		FatalRows:       m.FatalRowsTotal,
		Runs:            m.RunsTotal,
		RunErrors:       m.RunErrorsTotal,
		LastRunDuration: m.lastRunDuration,
		LastRunRows:     m.lastRunRows,
		Events:          make(map[string]int64, len(m.eventsByCategory)),
		Anomalies:       make(map[string]int64, len(m.anomaliesByKind)),
	}
	for k, v := range m.eventsByCategory {
		s.Events[k] = v
	}
	for k, v := range m.anomaliesByKind {
		s.Anomalies[k] = v
	}
	return s
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(endpoint string, statusCode int, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.httpRequestsTotal[endpoint] == nil {
		m.httpRequestsTotal[endpoint] = make(map[int]int64)
	}
	m.httpRequestsTotal[endpoint][statusCode]++

	// Keep last 100 durations for percentile calculation
	if len(m.httpRequestDurations[endpoint]) >= 100 {
		m.httpRequestDurations[endpoint] = m.httpRequestDurations[endpoint][1:]
	}
	m.httpRequestDurations[endpoint] = append(m.httpRequestDurations[endpoint], duration.Seconds())
}

// HTTPRequestCount returns the number of requests seen for endpoint and status
func (m *Metrics) HTTPRequestCount(endpoint string, statusCode int) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.httpRequestsTotal[endpoint][statusCode]
}

// Handler returns an HTTP handler for the /metrics endpoint
func (m *Metrics) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m.mu.RLock()
		defer m.mu.RUnlock()

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")

		// Helper to write metric
		write := func(name string, value interface{}, labels ...string) {
			labelStr := ""
			if len(labels) > 0 {
				labelStr = "{"
				for i := 0; i < len(labels); i += 2 {
					if i > 0 {
						labelStr += ","
					}
					labelStr += labels[i] + "=\"" + labels[i+1] + "\""
				}
				labelStr += "}"
			}

			switch v := value.(type) {
			case int:
				w.Write([]byte(name + labelStr + " " + strconv.Itoa(v) + "\n"))
			case int64:
				w.Write([]byte(name + labelStr + " " + strconv.FormatInt(v, 10) + "\n"))
			case float64:
				w.Write([]byte(name + labelStr + " " + strconv.FormatFloat(v, 'f', 6, 64) + "\n"))
			}
		}

		// System metrics
		write("cdrstats_uptime_seconds", time.Since(m.startTime).Seconds())

		// Ingestion metrics
		write("cdrstats_rows_read_total", m.RowsReadTotal)
		write("cdrstats_fatal_rows_total", m.FatalRowsTotal)
		for _, category := range sortedKeys(m.eventsByCategory) {
			write("cdrstats_events_total", m.eventsByCategory[category], "category", category)
		}
		for _, kind := range sortedKeys(m.anomaliesByKind) {
			write("cdrstats_anomalies_total", m.anomaliesByKind[kind], "kind", kind)
		}

		// Run metrics
		write("cdrstats_runs_total", m.RunsTotal)
		write("cdrstats_run_errors_total", m.RunErrorsTotal)
		write("cdrstats_last_run_duration_seconds", m.lastRunDuration.Seconds())
		write("cdrstats_last_run_rows", m.lastRunRows)

		// HTTP metrics
		for endpoint, statusCodes := range m.httpRequestsTotal {
			for status, count := range statusCodes {
				write("cdrstats_http_requests_total", count, "endpoint", endpoint, "status", strconv.Itoa(status))
			}
		}
	}
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
