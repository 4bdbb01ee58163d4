package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "sitesmith"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	fileDuration     *prom.HistogramVec
	fileResults      *prom.CounterVec
	buildDuration    prom.Histogram
	buildOutcome     *prom.CounterVec
	passthroughBytes prom.Counter
	workers          prom.Gauge
}

// NewPrometheusRecorder creates the collectors and registers them with reg
// (a fresh registry when nil).
func NewPrometheusRecorder(reg prom.Registerer) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		fileDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "file_duration_seconds",
			Help:      "Compile and render time per input file",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"format"}),
		fileResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "file_results_total",
			Help:      "Processed input files by format and result",
		}, []string{"format", "result"}),
		buildDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "build_duration_seconds",
			Help:      "Total build duration",
			Buckets:   prom.DefBuckets,
		}),
		buildOutcome: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "build_outcomes_total",
			Help:      "Builds by final status",
		}, []string{"outcome"}),
		passthroughBytes: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "passthrough_bytes_total",
			Help:      "Bytes copied by passthrough rules",
		}),
		workers: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "build_workers",
			Help:      "Worker pool size of the last build",
		}),
	}
	reg.MustRegister(pr.fileDuration, pr.fileResults, pr.buildDuration, pr.buildOutcome, pr.passthroughBytes, pr.workers)
	return pr
}

func (p *PrometheusRecorder) ObserveFileDuration(format string, d time.Duration) {
	p.fileDuration.WithLabelValues(format).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncFileResult(format string, result FileResult) {
	p.fileResults.WithLabelValues(format, string(result)).Inc()
}

func (p *PrometheusRecorder) ObserveBuildDuration(d time.Duration) {
	p.buildDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncBuildOutcome(outcome BuildOutcome) {
	p.buildOutcome.WithLabelValues(string(outcome)).Inc()
}

func (p *PrometheusRecorder) AddPassthroughBytes(n int64) {
	p.passthroughBytes.Add(float64(n))
}

func (p *PrometheusRecorder) SetWorkers(n int) {
	p.workers.Set(float64(n))
}
