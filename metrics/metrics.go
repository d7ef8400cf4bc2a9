// Package metrics exposes prometheus counters for deployments and
// invocations.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var MetricsSubsystem = "sandbox"

// SandboxMetrics is the sink the engine reports to.
type SandboxMetrics interface {
	IncInvocation(result string)
	IncDeployment(result string)
	AddStamps(used int64)
	IncRejection(rule string)
}

type sandboxMetrics struct {
	invocations *prometheus.CounterVec
	deployments *prometheus.CounterVec
	stamps      prometheus.Counter
	rejections  *prometheus.CounterVec
}

// InitMetrics creates the counters and registers them on registry. A nil
// registry leaves them unregistered.
func InitMetrics(registry prometheus.Registerer) SandboxMetrics {
	m := &sandboxMetrics{}
	m.invocations = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "invocations_total",
		Help: "Contract invocations by result", Subsystem: MetricsSubsystem}, []string{"result"})
	m.deployments = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "deployments_total",
		Help: "Contract deployments by result", Subsystem: MetricsSubsystem}, []string{"result"})
	m.stamps = prometheus.NewCounter(prometheus.CounterOpts{Name: "stamps_used_total",
		Help: "Stamps consumed by deployments and invocations", Subsystem: MetricsSubsystem})
	m.rejections = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "rejections_total",
		Help: "Contract rejections by violated rule", Subsystem: MetricsSubsystem}, []string{"rule"})

	if registry != nil {
		registry.MustRegister(m.invocations, m.deployments, m.stamps, m.rejections)
	}
	return m
}

func (m *sandboxMetrics) IncInvocation(result string) {
	m.invocations.With(prometheus.Labels{"result": result}).Inc()
}

func (m *sandboxMetrics) IncDeployment(result string) {
	m.deployments.With(prometheus.Labels{"result": result}).Inc()
}

func (m *sandboxMetrics) AddStamps(used int64) {
	if used > 0 {
		m.stamps.Add(float64(used))
	}
}

func (m *sandboxMetrics) IncRejection(rule string) {
	m.rejections.With(prometheus.Labels{"rule": rule}).Inc()
}
