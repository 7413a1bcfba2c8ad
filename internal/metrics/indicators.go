package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/elys-network/stakevault/internal/types"
)

const Namespace = "stakevault"

// Indicators records what the host did with each inbound operation.
type Indicators interface {
	IncrementOperations(op types.Operation, outcome string)
	IncrementEffects(effects []types.Effect)
	ObserveOperationDuration(op types.Operation, d time.Duration)
	ObserveGasUsed(gasUsed int64)
}

type PromIndicators struct {
	operationsTotal   *prometheus.CounterVec
	effectsTotal      *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	gasUsed           prometheus.Summary
}

var _ Indicators = (*PromIndicators)(nil)

func NewPromIndicators(reg prometheus.Registerer) *PromIndicators {
	return &PromIndicators{
		operationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "operations_total",
				Help:      "number of operations handled, by operation and outcome (success or error class)",
			},
			[]string{"operation", "outcome"},
		),
		effectsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "effects_emitted_total",
				Help:      "number of effects submitted, by effect type",
			},
			[]string{"type"},
		),
		operationDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "operation_duration_seconds",
				Help:      "time from request to receipt",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		gasUsed: promauto.With(reg).NewSummary(
			prometheus.SummaryOpts{
				Namespace:  Namespace,
				Name:       "gas_used",
				Help:       "gas used by each submitted transaction",
				Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
			},
		),
	}
}

func (p *PromIndicators) IncrementOperations(op types.Operation, outcome string) {
	p.operationsTotal.WithLabelValues(string(op), outcome).Inc()
}

func (p *PromIndicators) IncrementEffects(effects []types.Effect) {
	for _, e := range effects {
		p.effectsTotal.WithLabelValues(string(e.Type)).Inc()
	}
}

func (p *PromIndicators) ObserveOperationDuration(op types.Operation, d time.Duration) {
	p.operationDuration.WithLabelValues(string(op)).Observe(d.Seconds())
}

func (p *PromIndicators) ObserveGasUsed(gasUsed int64) {
	p.gasUsed.Observe(float64(gasUsed))
}
