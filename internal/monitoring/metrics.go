package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker"
)

// ExternalAPIMetrics contains all metrics for external API monitoring
type ExternalAPIMetrics struct {
	apiDuration         *prometheus.HistogramVec
	apiCalls            *prometheus.CounterVec
	circuitBreakerState *prometheus.GaugeVec
	timeouts            *prometheus.CounterVec
}

// NewExternalAPIMetrics creates a new instance of external API metrics
func NewExternalAPIMetrics() *ExternalAPIMetrics {
	return &ExternalAPIMetrics{
		apiDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "escrow_backend_external_api_duration_seconds",
				Help:    "Duration of external API calls in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"api_name", "endpoint", "status"},
		),

		apiCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "escrow_backend_external_api_calls_total",
				Help: "Total number of external API calls",
			},
			[]string{"api_name", "status"},
		),

		circuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "escrow_backend_circuit_breaker_state",
				Help: "Current state of circuit breakers (0=closed, 1=half-open, 2=open)",
			},
			[]string{"api_name"},
		),

		timeouts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "escrow_backend_external_api_timeouts_total",
				Help: "Total number of external API timeouts",
			},
			[]string{"api_name", "timeout_type"},
		),
	}
}

// MustRegister registers all metrics with the provided registry
func (m *ExternalAPIMetrics) MustRegister(registry prometheus.Registerer) {
	registry.MustRegister(
		m.apiDuration,
		m.apiCalls,
		m.circuitBreakerState,
		m.timeouts,
	)
}

// RecordAPICall records an API call with duration and status
func (m *ExternalAPIMetrics) RecordAPICall(apiName, endpoint, status string, duration float64) {
	m.apiDuration.WithLabelValues(apiName, endpoint, status).Observe(duration)
	m.apiCalls.WithLabelValues(apiName, status).Inc()
}

// UpdateCircuitBreakerState updates the circuit breaker state metric
func (m *ExternalAPIMetrics) UpdateCircuitBreakerState(apiName string, state gobreaker.State) {
	m.circuitBreakerState.WithLabelValues(apiName).Set(float64(state))
}

// RecordTimeout records a timeout event
func (m *ExternalAPIMetrics) RecordTimeout(apiName, timeoutType string) {
	m.timeouts.WithLabelValues(apiName, timeoutType).Inc()
}

// EscrowMetrics tracks fund movements and state machine activity. A nil
// *EscrowMetrics is valid and records nothing.
type EscrowMetrics struct {
	fundMoves     *prometheus.CounterVec
	transitions   *prometheus.CounterVec
	sweepOutcomes *prometheus.CounterVec
	openEntities  *prometheus.GaugeVec
}

func NewEscrowMetrics() *EscrowMetrics {
	return &EscrowMetrics{
		fundMoves: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "escrow_backend_fund_moves_total",
				Help: "Escrow adapter operations by kind and outcome",
			},
			[]string{"kind", "status"},
		),
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "escrow_backend_state_transitions_total",
				Help: "Committed state transitions by entity and target state",
			},
			[]string{"entity", "to"},
		),
		sweepOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "escrow_backend_sweep_outcomes_total",
				Help: "Sweeper results per step (processed, skipped, failed)",
			},
			[]string{"step", "outcome"},
		),
		openEntities: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "escrow_backend_open_entities",
				Help: "Non-terminal entities seen by the last sweep",
			},
			[]string{"entity"},
		),
	}
}

func (m *EscrowMetrics) MustRegister(registry prometheus.Registerer) {
	registry.MustRegister(
		m.fundMoves,
		m.transitions,
		m.sweepOutcomes,
		m.openEntities,
	)
}

func (m *EscrowMetrics) RecordFundMove(kind, status string) {
	if m == nil {
		return
	}
	m.fundMoves.WithLabelValues(kind, status).Inc()
}

func (m *EscrowMetrics) RecordTransition(entity, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(entity, to).Inc()
}

func (m *EscrowMetrics) RecordSweepOutcome(step, outcome string, count int) {
	if m == nil || count == 0 {
		return
	}
	m.sweepOutcomes.WithLabelValues(step, outcome).Add(float64(count))
}

func (m *EscrowMetrics) SetOpenEntities(entity string, count int) {
	if m == nil {
		return
	}
	m.openEntities.WithLabelValues(entity).Set(float64(count))
}
