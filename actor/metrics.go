package actor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Every vector is labelled by subsystem and actor name.

//nolint:gochecknoglobals
var (
	actorPanic = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "actor_panic",
		Help: "The total number of times an actor recovered from a panic",
	}, []string{"subsystem", "actor"})

	aliveActors = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "actor_alive_actors",
		Help: "The number of actors currently running",
	}, []string{"subsystem", "actor"})

	enqueuedMessages = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "actor_enqueued_messages",
		Help: "The number of messages waiting in the mailbox, sampled periodically",
	}, []string{"subsystem", "actor"})

	submitCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "actor_submit_count",
		Help: "The total number of messages submitted",
	}, []string{"subsystem", "actor"})

	submitTime = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "actor_submit_time",
		Help:    "The time spent waiting for room in the mailbox",
		Buckets: []float64{0.001, 0.01, 0.1, 1, 10, 60},
	}, []string{"subsystem", "actor"})

	receiveTime = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "actor_receive_time",
		Help:    "The time spent waiting for a response after submission",
		Buckets: []float64{0.001, 0.01, 0.1, 1, 10, 60},
	}, []string{"subsystem", "actor"})

	processedMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "actor_processed_messages",
		Help: "The total number of messages processed",
	}, []string{"subsystem", "actor"})

	processingTime = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "actor_processing_time",
		Help:    "The time spent processing a message",
		Buckets: []float64{0.001, 0.01, 0.1, 1, 10, 60},
	}, []string{"subsystem", "actor"})
)
