// Package telemetry tracks pipeline health: turn outcomes, per-stage
// latency, and per-tool invocation counts.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Pipeline stages as reported to metrics.
const (
	StageRoute     = "route"
	StagePlan      = "plan"
	StageRetrieve  = "retrieve"
	StageReconcile = "reconcile"
)

// Turn outcomes.
const (
	OutcomeSuccess  = "success"
	OutcomeDegraded = "degraded"
)

type Telemetry struct {
	turnsTotal      *prometheus.CounterVec
	stageDuration   *prometheus.HistogramVec
	toolInvocations *prometheus.CounterVec
}

// New registers the assistant metrics on the given registerer (pass
// prometheus.DefaultRegisterer in production, a fresh registry in tests).
func New(reg prometheus.Registerer) *Telemetry {
	t := &Telemetry{
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "assistant_turns_total",
			Help: "Completed pipeline turns by outcome.",
		}, []string{"outcome"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "assistant_stage_duration_seconds",
			Help:    "Wall-clock duration per pipeline stage.",
			Buckets: prometheus.DefBuckets,
		}, []string{"stage"}),
		toolInvocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "assistant_tool_invocations_total",
			Help: "Tool invocations by tool name and result status.",
		}, []string{"tool", "status"}),
	}
	reg.MustRegister(t.turnsTotal, t.stageDuration, t.toolInvocations)
	return t
}

func (t *Telemetry) RecordTurn(outcome string) {
	if t == nil {
		return
	}
	t.turnsTotal.WithLabelValues(outcome).Inc()
}

func (t *Telemetry) RecordStage(stage string, d time.Duration) {
	if t == nil {
		return
	}
	t.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (t *Telemetry) RecordToolInvocation(tool, status string) {
	if t == nil {
		return
	}
	t.toolInvocations.WithLabelValues(tool, status).Inc()
}
