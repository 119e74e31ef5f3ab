package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the session lifecycle counters for the application.
type Metrics struct {
	Logins          prometheus.Counter
	LoginFailures   prometheus.Counter
	Logouts         prometheus.Counter
	IdleLogouts     prometheus.Counter
	SessionsExpired prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		Logins: promauto.NewCounter(prometheus.CounterOpts{
			Name: "passage_logins_total",
			Help: "Total number of successful logins",
		}),
		LoginFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "passage_login_failures_total",
			Help: "Total number of rejected login attempts",
		}),
		Logouts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "passage_logouts_total",
			Help: "Total number of explicit logouts",
		}),
		IdleLogouts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "passage_idle_logouts_total",
			Help: "Total number of sessions ended by the idle monitor",
		}),
		SessionsExpired: promauto.NewCounter(prometheus.CounterOpts{
			Name: "passage_sessions_expired_total",
			Help: "Total number of sessions ended by a backend 401",
		}),
	}
}

// NewNop returns unregistered counters so test suites can build several
// services without fighting over the default registry.
func NewNop() *Metrics {
	nop := func(name string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: "test counter"})
	}
	return &Metrics{
		Logins:          nop("logins"),
		LoginFailures:   nop("login_failures"),
		Logouts:         nop("logouts"),
		IdleLogouts:     nop("idle_logouts"),
		SessionsExpired: nop("sessions_expired"),
	}
}
