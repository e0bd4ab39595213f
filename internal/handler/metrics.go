package handler

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for transcoding requests
type Metrics struct {
	operations *prometheus.CounterVec   // requests by op, layout and result
	bytes      *prometheus.CounterVec   // payload bytes by op and direction
	duration   *prometheus.HistogramVec // codec time by op
	wsSessions prometheus.Gauge         // open websocket sessions
}

// NewMetrics registers the collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		operations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "imaadpcm_operations_total",
				Help: "Encode and decode operations by layout and result",
			},
			[]string{"op", "layout", "result"},
		),
		bytes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "imaadpcm_bytes_total",
				Help: "Bytes received and produced by the codec",
			},
			[]string{"op", "direction"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "imaadpcm_operation_duration_seconds",
				Help:    "Time spent transforming one buffer",
				Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
			},
			[]string{"op"},
		),
		wsSessions: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "imaadpcm_websocket_sessions",
				Help: "Open websocket transcoding sessions",
			},
		),
	}
}

func (m *Metrics) observe(op, layout string, in, out int, start time.Time, err error) {
	if m == nil {
		return
	}

	result := "ok"
	if err != nil {
		result = "error"
	}
	if layout == "" {
		layout = "unknown"
	}

	m.operations.WithLabelValues(op, layout, result).Inc()
	m.bytes.WithLabelValues(op, "in").Add(float64(in))
	m.bytes.WithLabelValues(op, "out").Add(float64(out))
	m.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
