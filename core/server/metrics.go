package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Batch outcomes.
const (
	outcomeAccepted = "accepted"
	outcomeRejected = "rejected"
	outcomeFailed   = "failed"
)

type Metrics struct {
	registry *prometheus.Registry

	batches          *prometheus.CounterVec
	recordsSent      prometheus.Counter
	dispatchFailures prometheus.Counter
	dispatchLatency  prometheus.Histogram
	listRequests     *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sensorgate",
			Name:      "ingest_batches_total",
			Help:      "Ingest batches by outcome.",
		}, []string{"outcome"}),
		recordsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sensorgate",
			Name:      "records_dispatched_total",
			Help:      "Records acknowledged by the message queue.",
		}),
		dispatchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sensorgate",
			Name:      "dispatch_failures_total",
			Help:      "Records the message queue failed to accept.",
		}),
		dispatchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "sensorgate",
			Name:      "dispatch_duration_seconds",
			Help:      "Time to dispatch a whole batch.",
			Buckets:   prometheus.DefBuckets,
		}),
		listRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sensorgate",
			Name:      "sensor_list_requests_total",
			Help:      "Sensor listing requests by result.",
		}, []string{"result"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.batches,
		m.recordsSent,
		m.dispatchFailures,
		m.dispatchLatency,
		m.listRequests,
	)
	return m
}

func (m *Metrics) observeBatch(outcome string, sent, failed int, seconds float64) {
	m.batches.WithLabelValues(outcome).Inc()
	m.recordsSent.Add(float64(sent))
	m.dispatchFailures.Add(float64(failed))
	m.dispatchLatency.Observe(seconds)
}
