package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "notesync"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	outcomes        *prom.CounterVec
	publishDuration prom.Histogram
	attempts        prom.Histogram
	conflicts       prom.Counter
	retries         *prom.CounterVec
	failures        *prom.CounterVec
	coalesced       prom.Counter
	queueDepth      prom.Gauge
	inFlight        prom.Gauge
}

// NewPrometheusRecorder constructs the publish metrics and registers them with reg.
func NewPrometheusRecorder(reg prom.Registerer) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		outcomes: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "publish_outcomes_total",
			Help:      "Publish tasks by terminal outcome",
		}, []string{"outcome"}),
		publishDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "publish_duration_seconds",
			Help:      "Wall time of one publish task including retries",
			Buckets:   prom.DefBuckets,
		}),
		attempts: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "publish_attempts",
			Help:      "Attempts consumed per publish task",
			Buckets:   []float64{1, 2, 3, 4, 5, 8, 13},
		}),
		conflicts: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "ref_conflicts_total",
			Help:      "Branch reference updates rejected because the branch moved",
		}),
		retries: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "publish_retries_total",
			Help:      "Step retries after transient or rate-limited failures",
		}, []string{"step", "category"}),
		failures: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "publish_failures_total",
			Help:      "Failure notices delivered by the sync queue",
		}, []string{"category"}),
		coalesced: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "events_coalesced_total",
			Help:      "Change events folded into an already pending or in-flight task",
		}),
		queueDepth: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_pending",
			Help:      "Paths waiting for a worker",
		}),
		inFlight: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "publishes_in_flight",
			Help:      "Publishes currently running",
		}),
	}
	reg.MustRegister(pr.outcomes, pr.publishDuration, pr.attempts, pr.conflicts, pr.retries,
		pr.failures, pr.coalesced, pr.queueDepth, pr.inFlight)
	return pr
}

func (p *PrometheusRecorder) IncPublishOutcome(outcome OutcomeLabel) {
	p.outcomes.WithLabelValues(string(outcome)).Inc()
}

func (p *PrometheusRecorder) ObservePublishDuration(d time.Duration) {
	p.publishDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObservePublishAttempts(n int) {
	p.attempts.Observe(float64(n))
}

func (p *PrometheusRecorder) IncConflict() { p.conflicts.Inc() }

func (p *PrometheusRecorder) IncRetry(step, category string) {
	p.retries.WithLabelValues(step, category).Inc()
}

func (p *PrometheusRecorder) IncFailure(category string) {
	p.failures.WithLabelValues(category).Inc()
}

func (p *PrometheusRecorder) IncCoalesced() { p.coalesced.Inc() }

func (p *PrometheusRecorder) SetQueueDepth(n int) { p.queueDepth.Set(float64(n)) }

func (p *PrometheusRecorder) SetInFlight(n int) { p.inFlight.Set(float64(n)) }
