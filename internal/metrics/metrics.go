// Package metrics exposes generation job measurements in the Prometheus
// text format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"postgen/internal/domain"
	"postgen/internal/jobs"
)

const namespace = "postgen"

// Collector owns its registry so tests and multiple servers never collide on
// the global one.
type Collector struct {
	registry *prometheus.Registry

	submitted *prometheus.CounterVec
	rejected  *prometheus.CounterVec
	finished  *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	stages    *prometheus.HistogramVec
	stageErrs *prometheus.CounterVec
	queue     prometheus.Gauge
}

func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		submitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_submitted_total",
			Help:      "Generation jobs accepted, by mode.",
		}, []string{"mode"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_rejected_total",
			Help:      "Generation requests refused before running, by reason.",
		}, []string{"reason"}),
		finished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_finished_total",
			Help:      "Generation jobs that reached a terminal state.",
		}, []string{"mode", "status", "code"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Time from pickup to terminal state.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
		}, []string{"mode", "status"}),
		stages: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of each collaborator call.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
		stageErrs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_errors_total",
			Help:      "Failed collaborator calls, by stage.",
		}, []string{"stage"}),
		queue: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Jobs accepted but not yet picked up by a worker.",
		}),
	}

	c.registry.MustRegister(
		c.submitted,
		c.rejected,
		c.finished,
		c.latency,
		c.stages,
		c.stageErrs,
		c.queue,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

func (c *Collector) JobSubmitted(mode domain.GenerationMode) {
	c.submitted.WithLabelValues(string(mode)).Inc()
}

func (c *Collector) JobRejected(reason string) {
	c.rejected.WithLabelValues(reason).Inc()
}

// JobFinished records the outcome. code is empty for completed jobs.
func (c *Collector) JobFinished(mode domain.GenerationMode, status domain.JobStatus, code string, took time.Duration) {
	c.finished.WithLabelValues(string(mode), string(status), code).Inc()
	c.latency.WithLabelValues(string(mode), string(status)).Observe(took.Seconds())
}

func (c *Collector) StageObserved(stage string, took time.Duration, err error) {
	c.stages.WithLabelValues(stage).Observe(took.Seconds())
	if err != nil {
		c.stageErrs.WithLabelValues(stage).Inc()
	}
}

func (c *Collector) QueueDepth(n int) {
	c.queue.Set(float64(n))
}

// Handler serves the registry on /metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Registry is exposed for callers that want to add their own collectors.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

var _ jobs.Recorder = (*Collector)(nil)
