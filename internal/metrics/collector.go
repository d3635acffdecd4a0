package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"modelprobe/internal/models"
)

// Collector exposes sweep progress as Prometheus metrics.
type Collector struct {
	registry *prometheus.Registry
	probes   *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	inFlight prometheus.Gauge
	batches  prometheus.Counter
}

// NewCollector creates a collector backed by its own registry.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		probes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "modelprobe",
			Name:      "probes_total",
			Help:      "Completed probes by route and outcome status.",
		}, []string{"route", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "modelprobe",
			Name:      "probe_latency_seconds",
			Help:      "Latency of successful probes.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		}, []string{"route"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "modelprobe",
			Name:      "probes_in_flight",
			Help:      "Probes of the current batch that have not completed.",
		}),
		batches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "modelprobe",
			Name:      "batches_completed_total",
			Help:      "Batches that finished.",
		}),
	}
	c.registry.MustRegister(c.probes, c.latency, c.inFlight, c.batches)
	return c
}

// BatchStarted records the probes about to be issued.
func (c *Collector) BatchStarted(batch models.Batch) {
	c.inFlight.Set(float64(len(batch.Targets)))
}

// BatchCompleted records the outcomes of a finished batch.
func (c *Collector) BatchCompleted(_ models.Batch, outcomes []models.ProbeOutcome) {
	for _, outcome := range outcomes {
		route := string(outcome.Route)
		c.probes.WithLabelValues(route, string(outcome.Status)).Inc()
		if outcome.OK() {
			c.latency.WithLabelValues(route).Observe(outcome.LatencyMillis / 1000)
		}
	}
	c.inFlight.Set(0)
	c.batches.Inc()
}

// Handler serves the collected metrics in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
