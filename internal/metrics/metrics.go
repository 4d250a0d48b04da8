// Package metrics keeps process-wide counters and renders them in the
// Prometheus text format.
package metrics

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/signamoz/signa/internal/session"
)

// Metrics holds the service counters. The zero value is ready to use.
type Metrics struct {
	frames        atomic.Int64
	dispatched    atomic.Int64
	words         atomic.Int64
	appended      atomic.Int64
	attempts      atomic.Int64
	failures      atomic.Int64
	attemptMillis atomic.Int64
	publishErrors atomic.Int64
	pluginRuns    atomic.Int64
	pluginErrors  atomic.Int64

	mu       sync.Mutex
	outcomes map[session.Outcome]int64
	models   map[string]int64

	started time.Time
}

// New returns metrics with the start time set to now.
func New() *Metrics {
	return &Metrics{started: time.Now()}
}

// ObserveOutcome counts a submitted frame by outcome.
func (m *Metrics) ObserveOutcome(o session.Outcome) {
	m.frames.Add(1)
	if o == session.OutcomeDispatched {
		m.dispatched.Add(1)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.outcomes == nil {
		m.outcomes = make(map[session.Outcome]int64)
	}
	m.outcomes[o]++
}

// ObserveAttempt counts one backend attempt of the classifier.
func (m *Metrics) ObserveAttempt(model string, err error, elapsed time.Duration) {
	m.attempts.Add(1)
	m.attemptMillis.Add(elapsed.Milliseconds())
	if err != nil {
		m.failures.Add(1)
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.models == nil {
		m.models = make(map[string]int64)
	}
	m.models[model]++
}

// ObserveWord counts a classified word.
func (m *Metrics) ObserveWord(e session.WordEvent) {
	m.words.Add(1)
	if e.Appended {
		m.appended.Add(1)
	}
}

func (m *Metrics) IncPublishErrors() { m.publishErrors.Add(1) }

// ObservePlugin counts a plugin run.
func (m *Metrics) ObservePlugin(failed bool) {
	m.pluginRuns.Add(1)
	if failed {
		m.pluginErrors.Add(1)
	}
}

// Snapshot returns the counters keyed by metric name.
func (m *Metrics) Snapshot() map[string]int64 {
	return map[string]int64{
		"frames":         m.frames.Load(),
		"dispatched":     m.dispatched.Load(),
		"words":          m.words.Load(),
		"appended":       m.appended.Load(),
		"attempts":       m.attempts.Load(),
		"failures":       m.failures.Load(),
		"publish_errors": m.publishErrors.Load(),
		"plugin_runs":    m.pluginRuns.Load(),
		"plugin_errors":  m.pluginErrors.Load(),
	}
}

// WriteTo renders the metrics. sessions is the number of live sessions.
func (m *Metrics) WriteTo(w io.Writer, sessions int) {
	fmt.Fprintf(w, "signa_frames_total %d\n", m.frames.Load())
	fmt.Fprintf(w, "signa_classifications_dispatched_total %d\n", m.dispatched.Load())
	fmt.Fprintf(w, "signa_words_total %d\n", m.words.Load())
	fmt.Fprintf(w, "signa_words_appended_total %d\n", m.appended.Load())
	fmt.Fprintf(w, "signa_backend_attempts_total %d\n", m.attempts.Load())
	fmt.Fprintf(w, "signa_backend_failures_total %d\n", m.failures.Load())
	fmt.Fprintf(w, "signa_backend_attempt_milliseconds_total %d\n", m.attemptMillis.Load())
	fmt.Fprintf(w, "signa_publish_errors_total %d\n", m.publishErrors.Load())
	fmt.Fprintf(w, "signa_plugin_runs_total %d\n", m.pluginRuns.Load())
	fmt.Fprintf(w, "signa_plugin_errors_total %d\n", m.pluginErrors.Load())
	fmt.Fprintf(w, "signa_sessions %d\n", sessions)
	if !m.started.IsZero() {
		fmt.Fprintf(w, "signa_uptime_seconds %d\n", int64(time.Since(m.started).Seconds()))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range sortedKeys(m.outcomes) {
		fmt.Fprintf(w, "signa_frame_outcomes_total{outcome=%q} %d\n", o, m.outcomes[o])
	}
	for _, model := range sortedKeys(m.models) {
		fmt.Fprintf(w, "signa_backend_successes_total{model=%q} %d\n", model, m.models[model])
	}
}

// Handler serves the metrics. sessions reports the live session count.
func (m *Metrics) Handler(sessions func() int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		n := 0
		if sessions != nil {
			n = sessions()
		}
		m.WriteTo(w, n)
	})
}

func sortedKeys[K ~string, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
