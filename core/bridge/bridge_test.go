package bridge

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hausnetz/eos/core/measurement"
	"github.com/hausnetz/eos/core/model"
)

func testSolutionTable() map[string]string {
	return map[string]string{
		"battery_charge_kw":    "number.battery_charge",
		"battery_discharge_kw": "number.battery_discharge",
		"ev_charge_kw":         "number.wallbox_power",
		"grid_import_kw":       "sensor.grid_import_setpoint",
		"grid_export_kw":       "sensor.grid_export_setpoint",
	}
}

func testMeasurementTable() map[string]string {
	return map[string]string{
		"pv_production": "sensor.pv_energy_total",
		"load":          "sensor.house_energy_total",
		"battery_soc":   "sensor.battery_soc",
		"ev_soc":        "sensor.car_soc",
	}
}

func TestNewMeasurementMappingRejectsUnknownKey(t *testing.T) {
	_, err := NewMeasurementMapping(map[string]string{"pv_prodction": "sensor.pv"})
	assert.Error(t, err)
}

func TestNewMeasurementMappingRejectsDuplicateEntity(t *testing.T) {
	_, err := NewMeasurementMapping(map[string]string{
		"pv_production": "sensor.same",
		"load":          "sensor.same",
	})
	assert.Error(t, err)
}

func TestNewSolutionMappingRejectsUnknownField(t *testing.T) {
	_, err := NewSolutionMapping(map[string]string{"battery_power_kw": "number.x"})
	assert.Error(t, err)
}

func TestToCommandsTranslatesActiveStep(t *testing.T) {
	mapping, err := NewSolutionMapping(testSolutionTable())
	require.NoError(t, err)

	start := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	plan := model.NewDispatchPlan(start, 15*time.Minute, []model.StepDecision{
		{BatteryChargeKW: 2, GridExportKW: 1.5},
		{BatteryDischargeKW: 1, GridImportKW: 0.5},
	})

	commands, err := ToCommands(plan, mapping, start.Add(20*time.Minute))
	require.NoError(t, err)
	require.Len(t, commands, 5)

	byEntity := map[string]float64{}
	for _, c := range commands {
		byEntity[c.EntityID] = c.Value
	}
	assert.Equal(t, 1.0, byEntity["number.battery_discharge"])
	assert.Equal(t, 0.5, byEntity["sensor.grid_import_setpoint"])
	assert.Zero(t, byEntity["number.battery_charge"])
}

func TestToCommandsFailsOnMissingField(t *testing.T) {
	table := testSolutionTable()
	delete(table, "ev_charge_kw")
	mapping, err := NewSolutionMapping(table)
	require.NoError(t, err)

	start := time.Now().UTC()
	plan := model.NewDispatchPlan(start, 15*time.Minute, make([]model.StepDecision, 1))

	_, err = ToCommands(plan, mapping, start)
	var uf *UnmappedFieldError
	require.True(t, errors.As(err, &uf))
	assert.Equal(t, FieldEVChargeKW, uf.Field)
}

func TestToCommandsFailsOutsidePlanWindow(t *testing.T) {
	mapping, err := NewSolutionMapping(testSolutionTable())
	require.NoError(t, err)
	start := time.Now().UTC()
	plan := model.NewDispatchPlan(start, 15*time.Minute, make([]model.StepDecision, 2))
	_, err = ToCommands(plan, mapping, start.Add(time.Hour))
	assert.Error(t, err)
}

func TestFromMeasurementsTranslatesKnownEntities(t *testing.T) {
	mapping, err := NewMeasurementMapping(testMeasurementTable())
	require.NoError(t, err)

	ts := time.Now().UTC()
	samples, err := FromMeasurements(map[string]float64{
		"sensor.pv_energy_total": 1234.5,
		"sensor.battery_soc":     0.62,
	}, mapping, ts)
	require.NoError(t, err)
	require.Len(t, samples, 2)

	byKey := map[measurement.Key]float64{}
	for _, s := range samples {
		assert.Equal(t, ts, s.Timestamp)
		byKey[s.Key] = s.Value
	}
	assert.Equal(t, 1234.5, byKey[measurement.KeyPVProduction])
	assert.Equal(t, 0.62, byKey[measurement.KeyBatterySoC])
}

func TestFromMeasurementsSkipsUnknownEntities(t *testing.T) {
	mapping, err := NewMeasurementMapping(testMeasurementTable())
	require.NoError(t, err)

	samples, err := FromMeasurements(map[string]float64{
		"sensor.pv_energy_total": 1000,
		"sensor.unrelated":       42,
	}, mapping, time.Now().UTC())

	var uk *UnmappedKeyError
	require.True(t, errors.As(err, &uk))
	assert.Equal(t, "sensor.unrelated", uk.Entity)
	// The mapped sample still comes through.
	require.Len(t, samples, 1)
	assert.Equal(t, measurement.KeyPVProduction, samples[0].Key)
}

// A payload built from a plan's own commands must resolve back to the same
// values through the inverse mapping.
func TestRoundTripThroughMappings(t *testing.T) {
	solution, err := NewSolutionMapping(testSolutionTable())
	require.NoError(t, err)

	start := time.Now().UTC()
	plan := model.NewDispatchPlan(start, time.Hour, []model.StepDecision{
		{BatteryChargeKW: 3.2, EVChargeKW: 7.4, GridImportKW: 10.6},
	})
	commands, err := ToCommands(plan, solution, start)
	require.NoError(t, err)

	payload := map[string]float64{}
	for _, c := range commands {
		payload[c.EntityID] = c.Value
	}
	for _, f := range SolutionFields() {
		entity, ok := solution.EntityFor(f)
		require.True(t, ok)
		assert.Equal(t, fieldValue(plan.Steps[0], f), payload[entity])
	}
}
