package metrics

import (
	"time"

	"github.com/hausnetz/eos/core/measurement"
	"github.com/hausnetz/eos/core/model"
)

// CycleRecord summarizes one optimization cycle for observability purposes.
type CycleRecord struct {
	PlanID    string
	Status    string // "ok", "infeasible", "solver_error" or "fallback"
	Trigger   string
	Horizon   int
	SolveTime time.Duration
	Time      time.Time
}

// MetricsSink records cycle outcomes.
type MetricsSink interface {
	RecordCycle(CycleRecord) error
}

// PlanRecorder is implemented by sinks able to persist a full dispatch plan,
// step by step.
type PlanRecorder interface {
	RecordPlan(plan *model.DispatchPlan) error
}

// SampleRecorder is implemented by sinks able to record individual
// measurement samples.
type SampleRecorder interface {
	RecordSample(s measurement.Sample) error
}

// NopSink implements every recorder interface with no-op methods.
type NopSink struct{}

func (NopSink) RecordCycle(CycleRecord) error         { return nil }
func (NopSink) RecordPlan(*model.DispatchPlan) error  { return nil }
func (NopSink) RecordSample(measurement.Sample) error { return nil }
