package service

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts repository operations and the compensating rollbacks they trigger.
type Metrics struct {
	operations *prometheus.CounterVec
	rollbacks  *prometheus.CounterVec
}

// NewMetrics creates the repository metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "volume_operations_total",
				Help: "Total number of repository operations by outcome.",
			},
			[]string{"operation", "result"},
		),
		rollbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "volume_rollbacks_total",
				Help: "Total number of compensating rollbacks performed.",
			},
			[]string{"operation"},
		),
	}

	if err := reg.Register(m.operations); err != nil {
		return nil, err
	}
	if err := reg.Register(m.rollbacks); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) observe(op string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = kindLabel(err)
	}
	m.operations.WithLabelValues(op, result).Inc()
}

func (m *Metrics) rollback(op string) {
	if m == nil {
		return
	}
	m.rollbacks.WithLabelValues(op).Inc()
}
