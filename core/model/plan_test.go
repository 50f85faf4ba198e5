package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatchPlanStepLookup(t *testing.T) {
	start := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	steps := []StepDecision{
		{GridImportKW: 1},
		{GridImportKW: 2},
		{BatteryChargeKW: 3},
	}
	p := NewDispatchPlan(start, 15*time.Minute, steps)
	require.NotEmpty(t, p.ID)
	assert.Equal(t, 3, p.Horizon())

	d, ok := p.ActiveStep(start.Add(20 * time.Minute))
	require.True(t, ok)
	assert.Equal(t, 2.0, d.GridImportKW)

	next, ok := p.NextStep(start.Add(20 * time.Minute))
	require.True(t, ok)
	assert.Equal(t, 3.0, next.BatteryChargeKW)

	_, ok = p.ActiveStep(start.Add(time.Hour))
	assert.False(t, ok)
	_, ok = p.NextStep(start.Add(44 * time.Minute))
	assert.False(t, ok)
}

func TestIdlePlanIsInactive(t *testing.T) {
	p := NewIdlePlan(time.Now(), 15*time.Minute, 4)
	require.Equal(t, 4, p.Horizon())
	for _, s := range p.Steps {
		assert.Zero(t, s.BatteryChargeKW)
		assert.Zero(t, s.BatteryDischargeKW)
		assert.Zero(t, s.EVChargeKW)
	}
}

func TestDevicesValidate(t *testing.T) {
	d := Devices{
		Battery: BatteryConfig{CapacityKWh: 5, MaxChargeKW: 2, MaxDischargeKW: 2},
		EV:      EVConfig{CapacityKWh: 40, MaxChargeKW: 11, TargetSoC: 0.8},
		Grid:    GridConfig{ImportCapKW: 10, ExportCapKW: 10},
	}
	d.SetDefaults()
	require.NoError(t, d.Validate())
	assert.Equal(t, 0.95, d.Battery.ChargeEfficiency)
	assert.Equal(t, 1.0, d.Battery.SoCMax)

	bad := d
	bad.Battery.SoCMin = 0.9
	bad.Battery.SoCMax = 0.5
	assert.Error(t, bad.Validate())
}
