package challenge

import (
	"math"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	challengesIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "codegate_challenges_issued",
		Help: "The number of challenges issued by type",
	}, []string{"type"})

	challengesValidated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "codegate_challenges_validated",
		Help: "The number of successful challenge validations by type",
	}, []string{"type"})

	challengeFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "codegate_challenge_failures",
		Help: "The number of failed challenge operations by type and failure kind",
	}, []string{"type", "kind"})

	TimeTaken = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "codegate_challenge_time_taken",
		Help:    "The time taken to produce or validate a challenge (milliseconds)",
		Buckets: prometheus.ExponentialBucketsRange(0.01, math.Pow(2, 14), 20),
	}, []string{"type", "op"})
)
