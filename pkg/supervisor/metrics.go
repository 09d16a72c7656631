package supervisor

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	resultSuccess = "success"
	resultFailure = "failure"
)

// Metrics exposes supervisor activity as Prometheus collectors.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	probes         *prometheus.CounterVec
	launches       *prometheus.CounterVec
	stops          *prometheus.CounterVec
	ensureDuration *prometheus.HistogramVec
	serviceUp      *prometheus.GaugeVec

	registry *prometheus.Registry
}

// NewMetrics creates the collectors on a dedicated registry
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "domestic"
	}

	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}

	m.probes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "supervisor",
			Name:      "probes_total",
			Help:      "Total number of health probes",
		},
		[]string{"service", "result"},
	)

	m.launches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "supervisor",
			Name:      "launches_total",
			Help:      "Total number of service launch attempts",
		},
		[]string{"service", "result"},
	)

	m.stops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "supervisor",
			Name:      "stops_total",
			Help:      "Total number of service stop attempts",
		},
		[]string{"service", "result"},
	)

	m.ensureDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "supervisor",
			Name:      "ensure_duration_seconds",
			Help:      "Duration of ensure running calls",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
		[]string{"service", "result"},
	)

	m.serviceUp = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "supervisor",
			Name:      "service_up",
			Help:      "Whether the service answered its last health probe (1) or not (0)",
		},
		[]string{"service"},
	)

	m.registry.MustRegister(
		m.probes,
		m.launches,
		m.stops,
		m.ensureDuration,
		m.serviceUp,
	)

	return m
}

// Registry returns the registry holding the supervisor collectors
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func result(ok bool) string {
	if ok {
		return resultSuccess
	}
	return resultFailure
}

func (m *Metrics) recordProbe(service string, reachable bool) {
	if m == nil {
		return
	}
	m.probes.WithLabelValues(service, result(reachable)).Inc()
	m.setUp(service, reachable)
}

func (m *Metrics) recordLaunch(service string, ok bool) {
	if m == nil {
		return
	}
	m.launches.WithLabelValues(service, result(ok)).Inc()
}

func (m *Metrics) recordStop(service string, ok bool) {
	if m == nil {
		return
	}
	m.stops.WithLabelValues(service, result(ok)).Inc()
	if ok {
		m.setUp(service, false)
	}
}

func (m *Metrics) recordEnsure(service string, ok bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.ensureDuration.WithLabelValues(service, result(ok)).Observe(duration.Seconds())
}

func (m *Metrics) setUp(service string, up bool) {
	value := 0.0
	if up {
		value = 1
	}
	m.serviceUp.WithLabelValues(service).Set(value)
}
