package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Decisions counts guard outcomes by action label.
	Decisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "passage_guard_decisions_total",
		Help: "Guard decisions by outcome",
	}, []string{"action"})
)
