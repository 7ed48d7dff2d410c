package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds all Prometheus metrics for the service. Methods are safe to
// call on a nil *Collector, which records nothing.
type Collector struct {
	// Registry for this collector instance
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Pipeline metrics
	Runs            *prometheus.CounterVec
	ActiveRuns      prometheus.Gauge
	StepDuration    *prometheus.HistogramVec
	NodesCreated    *prometheus.CounterVec
	NodesReused     *prometheus.CounterVec
	EdgesCreated    *prometheus.CounterVec
	TriageDecisions *prometheus.CounterVec
	DroppedEvents   prometheus.Counter
}

// NewCollector creates a collector with its own registry
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		Runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "generation_runs_total",
				Help:      "Domain generation runs by outcome",
			},
			[]string{"outcome"},
		),
		ActiveRuns: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "generation_runs_active",
				Help:      "Domain generation runs currently executing",
			},
		),
		StepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "generation_step_duration_seconds",
				Help:      "Duration of each pipeline step",
				Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
			},
			[]string{"agent", "status"},
		),
		NodesCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "nodes_created_total",
				Help:      "Total number of nodes created",
			},
			[]string{"label"},
		),
		NodesReused: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "nodes_reused_total",
				Help:      "Total number of existing nodes reused by similarity triage",
			},
			[]string{"label"},
		),
		EdgesCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "edges_created_total",
				Help:      "Total number of edges written",
			},
			[]string{"type"},
		),
		TriageDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "triage_decisions_total",
				Help:      "Similarity triage outcomes by decision and source",
			},
			[]string{"decision", "source"},
		),
		DroppedEvents: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_dropped_total",
				Help:      "Progress events dropped because the consumer was gone or slow",
			},
		),
	}

	registry.MustRegister(
		c.HTTPRequests,
		c.HTTPDuration,
		c.Runs,
		c.ActiveRuns,
		c.StepDuration,
		c.NodesCreated,
		c.NodesReused,
		c.EdgesCreated,
		c.TriageDecisions,
		c.DroppedEvents,
	)

	return c
}

// Handler serves the collector's registry in the Prometheus text format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// GetRegistry returns the Prometheus registry for this collector
func (c *Collector) GetRegistry() *prometheus.Registry {
	return c.registry
}

// ObserveHTTP records one served request
func (c *Collector) ObserveHTTP(method, route, status string, duration time.Duration) {
	if c == nil {
		return
	}
	c.HTTPRequests.WithLabelValues(method, route, status).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RunStarted marks a run as executing
func (c *Collector) RunStarted() {
	if c == nil {
		return
	}
	c.ActiveRuns.Inc()
}

// RunFinished records a run's outcome: completed, failed or domain_exists
func (c *Collector) RunFinished(outcome string) {
	if c == nil {
		return
	}
	c.ActiveRuns.Dec()
	c.Runs.WithLabelValues(outcome).Inc()
}

// ObserveStep records one pipeline step's duration
func (c *Collector) ObserveStep(agent string, failed bool, duration time.Duration) {
	if c == nil {
		return
	}
	status := "ok"
	if failed {
		status = "error"
	}
	c.StepDuration.WithLabelValues(agent, status).Observe(duration.Seconds())
}

// NodeWritten records a node as created or reused
func (c *Collector) NodeWritten(label string, reused bool) {
	if c == nil {
		return
	}
	if reused {
		c.NodesReused.WithLabelValues(label).Inc()
		return
	}
	c.NodesCreated.WithLabelValues(label).Inc()
}

// EdgeWritten records one edge write
func (c *Collector) EdgeWritten(relType string) {
	if c == nil {
		return
	}
	c.EdgesCreated.WithLabelValues(relType).Inc()
}

// Triage records a triage decision; source is "score" or "model"
func (c *Collector) Triage(decision, source string) {
	if c == nil {
		return
	}
	c.TriageDecisions.WithLabelValues(decision, source).Inc()
}

// EventDropped records an event the sink could not deliver
func (c *Collector) EventDropped() {
	if c == nil {
		return
	}
	c.DroppedEvents.Inc()
}
