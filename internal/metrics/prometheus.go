package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wwsupercheese/tictactoe/types"
)

// PrometheusCollector implements types.MetricsCollector backed by Prometheus.
//
// Collectors are created and registered lazily on first use, so constructing
// a PrometheusCollector never panics on duplicate registration.
type PrometheusCollector struct {
	*NopMetrics

	reg       prometheus.Registerer
	namespace string
	once      sync.Once

	roleTransitions  *prometheus.CounterVec
	roleGauge        *prometheus.GaugeVec
	leaderChanges    *prometheus.CounterVec
	coordErrors      *prometheus.CounterVec
	replPasses       *prometheus.CounterVec
	replDuration     *prometheus.HistogramVec
	reconnects       *prometheus.CounterVec
	retries          *prometheus.CounterVec
	retriesExhausted *prometheus.CounterVec
	requests         *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	moves            *prometheus.CounterVec
}

var _ types.MetricsCollector = (*PrometheusCollector)(nil)

// NewPrometheus creates a new Prometheus-backed metrics collector.
//
// Parameters:
//   - reg: Prometheus registerer (uses prometheus.DefaultRegisterer if nil)
//   - namespace: Metrics namespace (defaults to "tictactoe" if empty)
//
// Returns:
//   - *PrometheusCollector: A MetricsCollector implementation using Prometheus
func NewPrometheus(reg prometheus.Registerer, namespace string) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "tictactoe"
	}

	return &PrometheusCollector{NopMetrics: NewNop(), reg: reg, namespace: namespace}
}

func (p *PrometheusCollector) ensureRegistered() {
	p.once.Do(func() {
		p.roleTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "election",
			Name:      "role_transitions_total",
			Help:      "Total election role transitions by tier and target role.",
		}, []string{"tier", "to"})

		p.roleGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "election",
			Name:      "is_leader",
			Help:      "1 when this instance is the tier leader, 0 otherwise.",
		}, []string{"tier"})

		p.leaderChanges = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "election",
			Name:      "leader_changes_total",
			Help:      "Total observed leader address changes by tier (known=false when cleared).",
		}, []string{"tier", "known"})

		p.coordErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "coordination",
			Name:      "errors_total",
			Help:      "Total failed coordination calls by operation.",
		}, []string{"op"})

		p.replPasses = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "replication",
			Name:      "passes_total",
			Help:      "Total replication reconciliation passes by action and result.",
		}, []string{"action", "result"})

		p.replDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "replication",
			Name:      "pass_duration_seconds",
			Help:      "Duration of replication reconciliation passes in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}, []string{"action"})

		p.reconnects = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "discovery",
			Name:      "reconnects_total",
			Help:      "Total connections established to a new leader.",
		}, []string{"tier"})

		p.retries = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "discovery",
			Name:      "retries_total",
			Help:      "Total calls retried after SYSTEM_SYNCING.",
		}, []string{"tier"})

		p.retriesExhausted = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "discovery",
			Name:      "retries_exhausted_total",
			Help:      "Total calls that spent their whole retry budget.",
		}, []string{"tier"})

		p.requests = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "game",
			Name:      "requests_total",
			Help:      "Total served requests by operation and error code.",
		}, []string{"op", "code"})

		p.requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "game",
			Name:      "request_duration_seconds",
			Help:      "Request latency in seconds by operation.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms .. ~2s
		}, []string{"op"})

		p.moves = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "game",
			Name:      "moves_total",
			Help:      "Total move attempts by outcome (accepted|rejected).",
		}, []string{"outcome"})

		p.reg.MustRegister(
			p.roleTransitions,
			p.roleGauge,
			p.leaderChanges,
			p.coordErrors,
			p.replPasses,
			p.replDuration,
			p.reconnects,
			p.retries,
			p.retriesExhausted,
			p.requests,
			p.requestDuration,
			p.moves,
		)
	})
}

// RecordRoleTransition counts the transition and updates the leader gauge.
func (p *PrometheusCollector) RecordRoleTransition(tier types.Tier, _ types.Role, to types.Role) {
	p.ensureRegistered()
	p.roleTransitions.WithLabelValues(string(tier), to.String()).Inc()
	if to == types.RoleLeader {
		p.roleGauge.WithLabelValues(string(tier)).Set(1)
	} else {
		p.roleGauge.WithLabelValues(string(tier)).Set(0)
	}
}

// RecordLeaderChange counts an observed leader change.
func (p *PrometheusCollector) RecordLeaderChange(tier types.Tier, leader string) {
	p.ensureRegistered()
	known := "true"
	if leader == "" {
		known = "false"
	}
	p.leaderChanges.WithLabelValues(string(tier), known).Inc()
}

// RecordCoordinationError counts a failed coordination call.
func (p *PrometheusCollector) RecordCoordinationError(operation string) {
	p.ensureRegistered()
	p.coordErrors.WithLabelValues(operation).Inc()
}

// RecordReplicationPass counts a reconciliation pass and observes its duration.
func (p *PrometheusCollector) RecordReplicationPass(action string, duration float64, success bool) {
	p.ensureRegistered()
	result := "success"
	if !success {
		result = "failure"
	}
	p.replPasses.WithLabelValues(action, result).Inc()
	p.replDuration.WithLabelValues(action).Observe(duration)
}

// RecordReconnect counts a new leader connection.
func (p *PrometheusCollector) RecordReconnect(tier types.Tier) {
	p.ensureRegistered()
	p.reconnects.WithLabelValues(string(tier)).Inc()
}

// RecordRetry counts a retried call.
func (p *PrometheusCollector) RecordRetry(tier types.Tier) {
	p.ensureRegistered()
	p.retries.WithLabelValues(string(tier)).Inc()
}

// RecordRetriesExhausted counts a call that spent its retry budget.
func (p *PrometheusCollector) RecordRetriesExhausted(tier types.Tier) {
	p.ensureRegistered()
	p.retriesExhausted.WithLabelValues(string(tier)).Inc()
}

// RecordRequest counts a served request and observes its latency.
func (p *PrometheusCollector) RecordRequest(operation, code string, duration float64) {
	p.ensureRegistered()
	if code == "" {
		code = "OK"
	}
	p.requests.WithLabelValues(operation, code).Inc()
	p.requestDuration.WithLabelValues(operation).Observe(duration)
}

// RecordMove counts a move attempt.
func (p *PrometheusCollector) RecordMove(accepted bool) {
	p.ensureRegistered()
	outcome := "accepted"
	if !accepted {
		outcome = "rejected"
	}
	p.moves.WithLabelValues(outcome).Inc()
}
