package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDevicesDefaultsAndValidate(t *testing.T) {
	d := Devices{
		Battery: BatteryConfig{CapacityKWh: 10, MaxChargeKW: 3, MaxDischargeKW: 3},
		EV:      EVConfig{CapacityKWh: 40, MaxChargeKW: 11, TargetSoC: 0.8},
		Grid:    GridConfig{ImportCapKW: 14, ExportCapKW: 14},
	}
	d.SetDefaults()
	require.NoError(t, d.Validate())

	assert.Equal(t, 0.95, d.Battery.ChargeEfficiency)
	assert.Equal(t, 0.95, d.Battery.DischargeEfficiency)
	assert.Equal(t, 1.0, d.Battery.SoCMax)
	assert.Equal(t, 0.9, d.EV.ChargeEfficiency)
}

func TestBatteryValidateNoBattery(t *testing.T) {
	var b BatteryConfig
	b.SetDefaults()
	assert.NoError(t, b.Validate())

	b.MaxChargeKW = 3
	err := b.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "capacity_kwh")
}

func TestBatteryValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*BatteryConfig)
	}{
		{"negative capacity", func(b *BatteryConfig) { b.CapacityKWh = -1 }},
		{"negative power", func(b *BatteryConfig) { b.MaxChargeKW = -2 }},
		{"efficiency above one", func(b *BatteryConfig) { b.ChargeEfficiency = 1.2 }},
		{"inverted soc bounds", func(b *BatteryConfig) { b.SoCMin = 0.9; b.SoCMax = 0.5 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := BatteryConfig{CapacityKWh: 10, MaxChargeKW: 3, MaxDischargeKW: 3}
			b.SetDefaults()
			tc.mutate(&b)
			assert.Error(t, b.Validate())
		})
	}
}

func TestEVValidateRejectsBadTarget(t *testing.T) {
	ev := EVConfig{CapacityKWh: 40, MaxChargeKW: 11, TargetSoC: 1.5}
	ev.SetDefaults()
	assert.Error(t, ev.Validate())
}
