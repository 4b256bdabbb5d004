// Package metrics holds the prometheus collectors exported on /metrics.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "nnoitra"

// Metrics groups the service's collectors. A nil *Metrics records nothing.
type Metrics struct {
	actions        *prometheus.CounterVec
	actionDuration *prometheus.HistogramVec
	sessionsSwept  prometheus.Counter
	auditPruned    prometheus.Counter
}

var (
	defaultOnce sync.Once
	defaultInst *Metrics
)

// Default returns the collectors registered on the global registry
func Default() *Metrics {
	defaultOnce.Do(func() {
		defaultInst = New(prometheus.DefaultRegisterer)
	})
	return defaultInst
}

// New registers a fresh set of collectors on reg
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		actions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "actions_total",
			Help:      "Dispatched actions, labeled by action and result status",
		}, []string{"action", "status"}),
		actionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "action_duration_seconds",
			Help:      "Time spent handling a dispatched action",
			Buckets:   prometheus.DefBuckets,
		}, []string{"action"}),
		sessionsSwept: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_swept_total",
			Help:      "Expired sessions deleted by the background sweeper",
		}),
		auditPruned: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_logs_pruned_total",
			Help:      "Audit log rows deleted after passing the retention period",
		}),
	}
}

// ObserveAction records one dispatched action
func (m *Metrics) ObserveAction(action, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.actions.WithLabelValues(action, status).Inc()
	m.actionDuration.WithLabelValues(action).Observe(d.Seconds())
}

// SessionsSwept adds n to the swept sessions counter
func (m *Metrics) SessionsSwept(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.sessionsSwept.Add(float64(n))
}

// AuditPruned adds n to the pruned audit rows counter
func (m *Metrics) AuditPruned(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.auditPruned.Add(float64(n))
}
