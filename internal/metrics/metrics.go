// Package metrics exposes logkeeper's Prometheus metrics.
package metrics

import (
	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/raoulx24/logkeeper/internal/retention"
)

// Collector records retention and bridge activity. It implements
// retention.Metrics and bridge.Metrics.
type Collector struct {
	registry *prometheus.Registry

	passes       *prometheus.CounterVec
	passDuration *prometheus.HistogramVec
	filesDeleted *prometheus.CounterVec
	filesFailed  *prometheus.CounterVec
	bytesDeleted *prometheus.CounterVec
	lastPass     *prometheus.GaugeVec
	namespaces   prometheus.Counter
	loggers      prometheus.Counter
	loggerFailed prometheus.Counter
}

// Pass outcomes.
const (
	OutcomeOK      = "ok"
	OutcomeAborted = "aborted"
	OutcomeError   = "error"
)

// New registers the collectors in a fresh registry. An empty namespace
// means "logkeeper".
func New(namespace string) *Collector {
	if namespace == "" {
		namespace = "logkeeper"
	}
	reg := prometheus.NewRegistry()

	c := &Collector{
		registry: reg,
		passes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retention",
			Name:      "passes_total",
			Help:      "Retention passes by target and outcome.",
		}, []string{"target", "outcome"}),
		passDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "retention",
			Name:      "pass_duration_seconds",
			Help:      "Duration of retention passes.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 30, 120},
		}, []string{"target"}),
		filesDeleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retention",
			Name:      "files_deleted_total",
			Help:      "Archives deleted.",
		}, []string{"target"}),
		filesFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retention",
			Name:      "delete_failures_total",
			Help:      "Archives that could not be deleted.",
		}, []string{"target"}),
		bytesDeleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retention",
			Name:      "bytes_deleted_total",
			Help:      "Bytes freed by deleted archives.",
		}, []string{"target"}),
		lastPass: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "retention",
			Name:      "last_pass_timestamp_seconds",
			Help:      "Start time of the last retention pass.",
		}, []string{"target"}),
		namespaces: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bridge",
			Name:      "namespaces_total",
			Help:      "Logger namespaces created.",
		}),
		loggers: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bridge",
			Name:      "loggers_created_total",
			Help:      "Loggers created by the backend factory.",
		}),
		loggerFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bridge",
			Name:      "logger_creation_failures_total",
			Help:      "Logger creations the backend factory refused.",
		}),
	}

	reg.MustRegister(
		c.passes, c.passDuration, c.filesDeleted, c.filesFailed, c.bytesDeleted, c.lastPass,
		c.namespaces, c.loggers, c.loggerFailed,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// PassFinished implements retention.Metrics.
func (c *Collector) PassFinished(r retention.Result, err error) {
	outcome := OutcomeOK
	switch {
	case errors.Is(err, retention.ErrScriptExecution):
		outcome = OutcomeAborted
	case err != nil:
		outcome = OutcomeError
	}
	c.passes.WithLabelValues(r.Target, outcome).Inc()
	c.passDuration.WithLabelValues(r.Target).Observe(r.Duration.Seconds())
	c.lastPass.WithLabelValues(r.Target).Set(float64(r.Started.Unix()))

	var freed int64
	for _, f := range r.Deleted {
		freed += f.Size
	}
	c.filesDeleted.WithLabelValues(r.Target).Add(float64(len(r.Deleted)))
	c.filesFailed.WithLabelValues(r.Target).Add(float64(len(r.Failed)))
	c.bytesDeleted.WithLabelValues(r.Target).Add(float64(freed))
}

func (c *Collector) NamespaceCreated()     { c.namespaces.Inc() }
func (c *Collector) LoggerCreated()        { c.loggers.Inc() }
func (c *Collector) LoggerCreationFailed() { c.loggerFailed.Inc() }
