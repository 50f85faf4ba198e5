package metrics

import (
	"github.com/hausnetz/eos/core/measurement"
	"github.com/hausnetz/eos/core/model"
)

// MultiSink fans records out to multiple sinks, returning the first error
// encountered. Optional recorder interfaces are forwarded only to the sinks
// that implement them.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordCycle forwards the cycle record to all sinks.
func (m *MultiSink) RecordCycle(rec CycleRecord) error {
	for _, s := range m.Sinks {
		if err := s.RecordCycle(rec); err != nil {
			return err
		}
	}
	return nil
}

// RecordPlan forwards the plan to sinks that persist plans.
func (m *MultiSink) RecordPlan(plan *model.DispatchPlan) error {
	for _, s := range m.Sinks {
		if pr, ok := s.(PlanRecorder); ok {
			if err := pr.RecordPlan(plan); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordSample forwards the sample to sinks that record samples.
func (m *MultiSink) RecordSample(sample measurement.Sample) error {
	for _, s := range m.Sinks {
		if sr, ok := s.(SampleRecorder); ok {
			if err := sr.RecordSample(sample); err != nil {
				return err
			}
		}
	}
	return nil
}
