package realtime

import "github.com/prometheus/client_golang/prometheus"

// Metrics exposes registry activity to prometheus. A nil *Metrics is valid and records nothing.
type Metrics struct {
	connections prometheus.Gauge
	pushes      *prometheus.CounterVec
	evictions   *prometheus.CounterVec
}

// NewMetrics registers the registry collectors on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hrms",
			Subsystem: "realtime",
			Name:      "connections",
			Help:      "Live push connections in the registry.",
		}),
		pushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hrms",
			Subsystem: "realtime",
			Name:      "pushes_total",
			Help:      "Push writes by result.",
		}, []string{"result"}),
		evictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hrms",
			Subsystem: "realtime",
			Name:      "evictions_total",
			Help:      "Connections removed from the registry by reason.",
		}, []string{"reason"}),
	}

	for _, c := range []prometheus.Collector{m.connections, m.pushes, m.evictions} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) setConnections(n int) {
	if m == nil {
		return
	}
	m.connections.Set(float64(n))
}

func (m *Metrics) push(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.pushes.WithLabelValues("delivered").Inc()
	} else {
		m.pushes.WithLabelValues("failed").Inc()
	}
}

func (m *Metrics) evicted(reason string) {
	if m == nil {
		return
	}
	m.evictions.WithLabelValues(reason).Inc()
}
