package pipeline

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/joseph-ayodele/panel-extractor/constants"
	"github.com/joseph-ayodele/panel-extractor/internal/llm"
)

// Metrics holds the pipeline's Prometheus collectors. A nil *Metrics records nothing.
type Metrics struct {
	runs      *prometheus.CounterVec
	persisted *prometheus.CounterVec
	failures  *prometheus.CounterVec
	duration  prometheus.Histogram
	inference *prometheus.HistogramVec
}

// NewMetrics registers the collectors with reg. A nil reg uses the default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "panels",
			Name:      "runs_total",
			Help:      "Pipeline runs by outcome and reject reason.",
		}, []string{"outcome", "reason"}),
		persisted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "panels",
			Name:      "records_persisted_total",
			Help:      "Records stored, by relation.",
		}, []string{"relation"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "panels",
			Name:      "record_failures_total",
			Help:      "Records dropped, by stage.",
		}, []string{"stage"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "panels",
			Name:      "run_duration_seconds",
			Help:      "Wall time of one pipeline run.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 80, 160},
		}),
		inference: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "panels",
			Name:      "inference_duration_seconds",
			Help:      "Latency of model inference calls.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
		}, []string{"provider", "result"}),
	}
	reg.MustRegister(m.runs, m.persisted, m.failures, m.duration, m.inference)
	return m
}

func (m *Metrics) observeRun(res Result) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(string(res.Outcome), string(res.Reason)).Inc()
	m.duration.Observe(res.Elapsed.Seconds())
	if res.Persisted > 0 {
		m.persisted.WithLabelValues(res.Relation).Add(float64(res.Persisted))
	}
	for _, f := range res.Failures {
		m.failures.WithLabelValues(string(f.Stage)).Inc()
	}
}

// InstrumentInvoker times every call of inv under the given provider label.
func (m *Metrics) InstrumentInvoker(provider string, inv llm.Invoker) llm.Invoker {
	if m == nil {
		return inv
	}
	return llm.InvokerFunc(func(ctx context.Context, req llm.Request) (string, error) {
		start := time.Now()
		out, err := inv.Invoke(ctx, req)
		result := "ok"
		switch {
		case llm.IsTimeout(err):
			result = string(constants.ReasonInferenceTimeout)
		case err != nil:
			result = "error"
		}
		m.inference.WithLabelValues(provider, result).Observe(time.Since(start).Seconds())
		return out, err
	})
}
