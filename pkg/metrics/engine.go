package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// EngineMetrics records validation outcomes and ledger applications.
type EngineMetrics struct {
	rejections *prometheus.CounterVec
	applies    *prometheus.CounterVec
}

// NewEngineMetrics registers the engine metrics on the provided registerer.
func NewEngineMetrics(reg prometheus.Registerer) *EngineMetrics {
	if reg == nil {
		return &EngineMetrics{}
	}
	rejections := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "procurement_validation_rejections_total",
		Help: "Validation failures by error code.",
	}, []string{"code"})
	applies := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "procurement_ledger_applications_total",
		Help: "Ledger deltas applied by direction.",
	}, []string{"direction"})
	reg.MustRegister(rejections, applies)
	return &EngineMetrics{
		rejections: rejections,
		applies:    applies,
	}
}

// IncRejection increments the rejection counter for the given error code.
func (m *EngineMetrics) IncRejection(code string) {
	if m == nil || m.rejections == nil {
		return
	}
	m.rejections.WithLabelValues(normalizeLabel(code)).Inc()
}

// IncApply increments the ledger application counter for the direction.
func (m *EngineMetrics) IncApply(direction string) {
	if m == nil || m.applies == nil {
		return
	}
	m.applies.WithLabelValues(normalizeLabel(direction)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
