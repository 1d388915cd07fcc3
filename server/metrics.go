package server

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics of the HTTP server
type Metrics struct {
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge
	AnswersTotal     *prometheus.CounterVec
	CorpusChunks     prometheus.Gauge
	AdLabelsTotal    *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates the metrics on their own registry together with the Go and process collectors
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Metrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "handbot_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"route", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "handbot_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"route"},
		),
		RequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "handbot_http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
		),
		AnswersTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "handbot_answers_total",
				Help: "Total number of chatbot answers by category",
			},
			[]string{"category"},
		),
		CorpusChunks: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "handbot_corpus_chunks",
				Help: "Number of chunks in the retrieval corpus",
			},
		),
		AdLabelsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "handbot_ad_labels_total",
				Help: "Total number of analyzed ad images by winning label",
			},
			[]string{"label"},
		),
		registry: registry,
	}
}

// RecordRequest records a finished HTTP request
func (m *Metrics) RecordRequest(route string, status int, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(route).Observe(duration.Seconds())
}

// Gatherer returns the registry the metrics are registered on
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}
