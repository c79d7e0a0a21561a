// Package metrics exposes pipeline measurements as Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	apperrors "github.com/leeforge/imagepipe/errors"
)

const namespace = "imagepipe"

// OutcomeSuccess labels invocations that wrote their target. Failures are
// labeled with their error type.
const OutcomeSuccess = "success"

// Pipeline 流水线指标，实现 processor.Observer
type Pipeline struct {
	invocations   *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
}

// NewPipeline registers the pipeline collectors on reg.
func NewPipeline(reg prometheus.Registerer) (*Pipeline, error) {
	m := &Pipeline{
		invocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invocations_total",
			Help:      "Pipeline invocations by outcome.",
		}, []string{"outcome"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Time spent in each pipeline stage.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"stage"}),
	}

	for _, c := range []prometheus.Collector{m.invocations, m.stageDuration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObserveStage records how long one stage took.
func (m *Pipeline) ObserveStage(stage string, d time.Duration) {
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// ObserveResult counts one finished invocation.
func (m *Pipeline) ObserveResult(err error) {
	m.invocations.WithLabelValues(Outcome(err)).Inc()
}

// Outcome maps an invocation error to its label value.
func Outcome(err error) string {
	if err == nil {
		return OutcomeSuccess
	}
	return string(apperrors.TypeOf(err))
}
