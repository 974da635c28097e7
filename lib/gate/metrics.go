package gate

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	gateDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "codegate_gate_decisions",
		Help: "The number of gated requests by challenge type and outcome",
	}, []string{"type", "outcome"})

	gateConditionErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "codegate_gate_condition_errors",
		Help: "The number of gate conditions that failed to evaluate",
	}, []string{"type"})
)
