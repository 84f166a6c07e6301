package catalog

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "promptdex"

// Metrics records catalog and search activity. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	searches       *prometheus.CounterVec
	searchDuration *prometheus.HistogramVec
	searchResults  prometheus.Histogram
	prompts        prometheus.Gauge
	reloads        *prometheus.CounterVec
}

// NewMetrics creates the catalog collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "searches_total",
			Help:      "Number of catalog searches by mode.",
		}, []string{"mode"}),
		searchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "search_duration_seconds",
			Help:      "Catalog search latency by mode.",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5},
		}, []string{"mode"}),
		searchResults: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "search_results",
			Help:      "Number of results returned per search.",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250},
		}),
		prompts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "catalog_prompts",
			Help:      "Number of prompts currently loaded.",
		}),
		reloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "catalog_loads_total",
			Help:      "Catalog loads by outcome.",
		}, []string{"outcome"}),
	}

	if reg != nil {
		reg.MustRegister(m.searches, m.searchDuration, m.searchResults, m.prompts, m.reloads)
	}
	return m
}

// ObserveSearch records a completed search.
func (m *Metrics) ObserveSearch(mode Mode, elapsed time.Duration, results int) {
	if m == nil {
		return
	}
	m.searches.WithLabelValues(string(mode)).Inc()
	m.searchDuration.WithLabelValues(string(mode)).Observe(elapsed.Seconds())
	m.searchResults.Observe(float64(results))
}

// ObserveLoad records a catalog load attempt and, on success, the prompt count.
func (m *Metrics) ObserveLoad(err error, prompts int) {
	if m == nil {
		return
	}
	if err != nil {
		m.reloads.WithLabelValues("error").Inc()
		return
	}
	m.reloads.WithLabelValues("success").Inc()
	m.prompts.Set(float64(prompts))
}
