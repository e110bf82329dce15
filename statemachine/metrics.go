package statemachine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "statemachine_transitions_total",
		Help: "Committed transitions by flow, from_state and to_state",
	}, []string{"flow", "from_state", "to_state"})

	acceptErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "statemachine_accept_errors_total",
		Help: "Rejected or failed events by flow, state and kind (invalid_event, collaborator, canceled, closed, panic)",
	}, []string{"flow", "state", "kind"})

	acceptDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "statemachine_accept_duration_seconds",
		Help:    "Time spent running a transition by flow and outcome",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"flow", "outcome"})

	queueWait = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "statemachine_queue_wait_seconds",
		Help:    "Time an event waited in the mailbox before its transition started",
		Buckets: []float64{0.0001, 0.001, 0.01, 0.1, 0.5, 1, 5},
	}, []string{"flow"})
)

func sanitizeFlow(flow string) string {
	if flow == "" {
		return "unknown"
	}

	return flow
}

func outcomeOf(err error) string {
	if err != nil {
		return "error"
	}

	return "success"
}
