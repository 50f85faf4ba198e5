package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hausnetz/eos/core/measurement"
	"github.com/hausnetz/eos/core/model"
)

type recordSink struct {
	cycles  int
	plans   int
	samples int
}

func (r *recordSink) RecordCycle(CycleRecord) error         { r.cycles++; return nil }
func (r *recordSink) RecordPlan(*model.DispatchPlan) error  { r.plans++; return nil }
func (r *recordSink) RecordSample(measurement.Sample) error { r.samples++; return nil }

// A sink without the optional interfaces.
type cycleOnlySink struct{ cycles int }

func (r *cycleOnlySink) RecordCycle(CycleRecord) error { r.cycles++; return nil }

func TestMultiSinkForwardsToAll(t *testing.T) {
	s1 := &recordSink{}
	s2 := &recordSink{}
	m := NewMultiSink(s1, s2)

	require.NoError(t, m.RecordCycle(CycleRecord{Status: "ok"}))
	require.NoError(t, m.RecordPlan(model.NewIdlePlan(time.Now(), time.Hour, 4)))
	require.NoError(t, m.RecordSample(measurement.Sample{Key: measurement.KeyLoad}))

	assert.Equal(t, 1, s1.cycles)
	assert.Equal(t, 1, s2.plans)
	assert.Equal(t, 1, s2.samples)
}

func TestMultiSinkSkipsUnsupportedRecorders(t *testing.T) {
	s := &cycleOnlySink{}
	m := NewMultiSink(s)
	require.NoError(t, m.RecordPlan(model.NewIdlePlan(time.Now(), time.Hour, 1)))
	require.NoError(t, m.RecordCycle(CycleRecord{}))
	assert.Equal(t, 1, s.cycles)
}

func TestNewMetricsSinkEmptyConfig(t *testing.T) {
	s, err := NewMetricsSink(nil)
	require.NoError(t, err)
	assert.IsType(t, NopSink{}, s)
}
