package metrics

import (
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusRecorder implements Recorder on a Prometheus registry.
type PrometheusRecorder struct {
	registry          *prom.Registry
	stageDuration     *prom.HistogramVec
	runDuration       prom.Histogram
	stageResults      *prom.CounterVec
	runOutcome        *prom.CounterVec
	webhooks          *prom.CounterVec
	queueCoalesced    prom.Counter
	queueDepth        prom.Gauge
	deliveryConflicts prom.Counter
	retries           *prom.CounterVec
}

// NewPrometheusRecorder constructs and registers the pipeline metrics.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{registry: reg}
	pr.stageDuration = prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: "docdrift",
		Name:      "stage_duration_seconds",
		Help:      "Duration of individual pipeline stages",
		Buckets:   prom.DefBuckets,
	}, []string{"stage"})
	pr.runDuration = prom.NewHistogram(prom.HistogramOpts{
		Namespace: "docdrift",
		Name:      "run_duration_seconds",
		Help:      "Total pipeline run duration",
		Buckets:   prom.DefBuckets,
	})
	pr.stageResults = prom.NewCounterVec(prom.CounterOpts{
		Namespace: "docdrift",
		Name:      "stage_results_total",
		Help:      "Stage result counts by outcome",
	}, []string{"stage", "result"})
	pr.runOutcome = prom.NewCounterVec(prom.CounterOpts{
		Namespace: "docdrift",
		Name:      "run_outcomes_total",
		Help:      "Run outcomes by final status",
	}, []string{"outcome"})
	pr.webhooks = prom.NewCounterVec(prom.CounterOpts{
		Namespace: "docdrift",
		Name:      "webhooks_total",
		Help:      "Webhook deliveries by provider and acceptance",
	}, []string{"provider", "accepted"})
	pr.queueCoalesced = prom.NewCounter(prom.CounterOpts{
		Namespace: "docdrift",
		Name:      "queue_coalesced_total",
		Help:      "Triggers replaced in the pending slot before running",
	})
	pr.queueDepth = prom.NewGauge(prom.GaugeOpts{
		Namespace: "docdrift",
		Name:      "queue_depth",
		Help:      "Pending pipeline jobs",
	})
	pr.deliveryConflicts = prom.NewCounter(prom.CounterOpts{
		Namespace: "docdrift",
		Name:      "delivery_conflicts_total",
		Help:      "Deliveries degraded by a diverged docs branch",
	})
	pr.retries = prom.NewCounterVec(prom.CounterOpts{
		Namespace: "docdrift",
		Name:      "retries_total",
		Help:      "Transient-failure retries by stage",
	}, []string{"stage"})

	reg.MustRegister(pr.stageDuration, pr.runDuration, pr.stageResults, pr.runOutcome,
		pr.webhooks, pr.queueCoalesced, pr.queueDepth, pr.deliveryConflicts, pr.retries)
	return pr
}

// Handler serves the registry in Prometheus exposition format.
func (p *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveRunDuration(d time.Duration) {
	p.runDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncStageResult(stage string, result ResultLabel) {
	p.stageResults.WithLabelValues(stage, string(result)).Inc()
}

func (p *PrometheusRecorder) IncRunOutcome(outcome OutcomeLabel) {
	p.runOutcome.WithLabelValues(string(outcome)).Inc()
}

func (p *PrometheusRecorder) IncWebhook(provider string, accepted bool) {
	label := "false"
	if accepted {
		label = "true"
	}
	p.webhooks.WithLabelValues(provider, label).Inc()
}

func (p *PrometheusRecorder) IncQueueCoalesced() { p.queueCoalesced.Inc() }

func (p *PrometheusRecorder) SetQueueDepth(n int) { p.queueDepth.Set(float64(n)) }

func (p *PrometheusRecorder) IncDeliveryConflict() { p.deliveryConflicts.Inc() }

func (p *PrometheusRecorder) IncRetry(stage string) {
	p.retries.WithLabelValues(stage).Inc()
}
