package constraint

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hausnetz/eos/core/model"
)

func testDevices() model.Devices {
	d := model.Devices{
		Battery: model.BatteryConfig{CapacityKWh: 10, MaxChargeKW: 3, MaxDischargeKW: 3},
		EV:      model.EVConfig{CapacityKWh: 40, MaxChargeKW: 11, TargetSoC: 0.8},
		Grid:    model.GridConfig{ImportCapKW: 10, ExportCapKW: 8},
	}
	d.SetDefaults()
	return d
}

func TestConstraintsForUnpluggedEV(t *testing.T) {
	m := NewModel(testDevices())
	set, err := m.ConstraintsFor(8, model.InitialState{BatterySoC: 0.5, EVPlugged: false})
	require.NoError(t, err)

	_, hi, ok := set.PowerBounds(DeviceEVCharge, 3)
	require.True(t, ok)
	assert.Zero(t, hi)
	assert.Empty(t, set.EnergyConstraints(DeviceEVCharge))
}

func TestConstraintsForPluggedEVNarrowsWindow(t *testing.T) {
	m := NewModel(testDevices())
	set, err := m.ConstraintsFor(8, model.InitialState{
		BatterySoC: 0.5, EVPlugged: true, EVSoC: 0.4, EVDepartureSteps: 4,
	})
	require.NoError(t, err)

	_, hi, ok := set.PowerBounds(DeviceEVCharge, 2)
	require.True(t, ok)
	assert.Equal(t, 11.0, hi)

	_, hi, ok = set.PowerBounds(DeviceEVCharge, 5)
	require.True(t, ok)
	assert.Zero(t, hi)

	energy := set.EnergyConstraints(DeviceEVCharge)
	require.Len(t, energy, 1)
	// (0.8-0.4)*40 kWh of stored energy, divided by charge efficiency 0.9.
	assert.InDelta(t, 16.0/0.9, energy[0].Min, 1e-9)
	assert.Equal(t, 4, energy[0].To)
}

func TestConstraintsForFullChargeSession(t *testing.T) {
	devices := testDevices()
	devices.EV.TargetSoC = 1.0
	m := NewModel(devices)
	set, err := m.ConstraintsFor(8, model.InitialState{
		EVPlugged: true, EVSoC: 0.0, EVDepartureSteps: 8,
	})
	require.NoError(t, err)

	energy := set.EnergyConstraints(DeviceEVCharge)
	require.Len(t, energy, 1)
	// A session to 100% needs the full pack through the 0.9-efficient
	// charger; min and max coincide at 40/0.9 kWh.
	assert.InDelta(t, 40.0/0.9, energy[0].Min, 1e-9)
	assert.InDelta(t, 40.0/0.9, energy[0].Max, 1e-9)
}

func TestConstraintsForGridCaps(t *testing.T) {
	m := NewModel(testDevices())
	set, err := m.ConstraintsFor(4, model.InitialState{})
	require.NoError(t, err)
	_, hi, ok := set.PowerBounds(DeviceGridImport, 0)
	require.True(t, ok)
	assert.Equal(t, 10.0, hi)
	_, hi, ok = set.PowerBounds(DeviceGridExport, 3)
	require.True(t, ok)
	assert.Equal(t, 8.0, hi)
}

func TestSetValidateMinAboveMax(t *testing.T) {
	set := Set{Horizon: 4, Constraints: []Constraint{
		{Device: DeviceBatteryCharge, Kind: KindPower, From: 0, To: 4, Min: 5, Max: 2},
	}}
	err := set.Validate()
	var ice *InfeasibleConfigurationError
	require.True(t, errors.As(err, &ice))
	assert.Equal(t, DeviceBatteryCharge, ice.Device)
}

func TestSetValidateConflictingWindows(t *testing.T) {
	set := Set{Horizon: 4, Constraints: []Constraint{
		{Device: DeviceGridImport, Kind: KindPower, From: 0, To: 4, Min: 0, Max: 2},
		{Device: DeviceGridImport, Kind: KindPower, From: 1, To: 3, Min: 5, Max: 9},
	}}
	err := set.Validate()
	var ice *InfeasibleConfigurationError
	require.True(t, errors.As(err, &ice))
	assert.Equal(t, 1, ice.Step)
}

func TestSetValidateWindowOutsideHorizon(t *testing.T) {
	set := Set{Horizon: 4, Constraints: []Constraint{
		{Device: DeviceEVCharge, Kind: KindPower, From: 2, To: 6, Min: 0, Max: 1},
	}}
	assert.Error(t, set.Validate())
}

func TestPowerBoundsIntersection(t *testing.T) {
	set := Set{Horizon: 4, Constraints: []Constraint{
		{Device: DeviceBatteryCharge, Kind: KindPower, From: 0, To: 4, Min: 0, Max: 5},
		{Device: DeviceBatteryCharge, Kind: KindPower, From: 2, To: 4, Min: 1, Max: 3},
	}}
	require.NoError(t, set.Validate())
	lo, hi, ok := set.PowerBounds(DeviceBatteryCharge, 2)
	require.True(t, ok)
	assert.Equal(t, 1.0, lo)
	assert.Equal(t, 3.0, hi)
}
