// Package metrics defines the Prometheus collectors of the pipeline.
//
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tap"

// Metrics holds the pipeline collectors.
type Metrics struct {
	filesParsed    *prometheus.CounterVec   // by kind
	parseFailures  *prometheus.CounterVec   // by kind
	datasets       prometheus.Counter       // datasets registered
	corrections    *prometheus.CounterVec   // by variant
	normalizations prometheus.Counter       // successful normalizations
	stageDuration  *prometheus.HistogramVec // by stage
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		filesParsed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_parsed_total",
			Help:      "Input files parsed successfully, by file kind.",
		}, []string{"kind"}),
		parseFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parse_failures_total",
			Help:      "Input files rejected by the parser, by file kind.",
		}, []string{"kind"}),
		datasets: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "datasets_registered_total",
			Help:      "Datasets added to session registries.",
		}),
		corrections: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "corrections_total",
			Help:      "Corrections performed, by resulting variant.",
		}, []string{"variant"}),
		normalizations: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "normalizations_total",
			Help:      "Inert normalizations performed.",
		}),
		stageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall time of pipeline stages.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"stage"}),
	}
}

// FileParsed counts a successfully parsed file of kind.
func (m *Metrics) FileParsed(kind string) {
	if m != nil {
		m.filesParsed.WithLabelValues(kind).Inc()
	}
}

// ParseFailed counts a file of kind that failed to parse.
func (m *Metrics) ParseFailed(kind string) {
	if m != nil {
		m.parseFailures.WithLabelValues(kind).Inc()
	}
}

// Registered adds n datasets to the registration counter.
func (m *Metrics) Registered(n int) {
	if m != nil {
		m.datasets.Add(float64(n))
	}
}

// Corrected counts a correction producing variant.
func (m *Metrics) Corrected(variant string) {
	if m != nil {
		m.corrections.WithLabelValues(variant).Inc()
	}
}

// Normalized counts one inert normalization.
func (m *Metrics) Normalized() {
	if m != nil {
		m.normalizations.Inc()
	}
}

// Observe records the duration of stage since start.
func (m *Metrics) Observe(stage string, start time.Time) {
	if m != nil {
		m.stageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	}
}
