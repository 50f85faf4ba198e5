package bridge

import (
	"fmt"

	"github.com/hausnetz/eos/core/measurement"
	"github.com/hausnetz/eos/core/model"
)

// SolutionField names a canonical output field of a dispatch plan.
type SolutionField string

const (
	FieldBatteryChargeKW    SolutionField = "battery_charge_kw"
	FieldBatteryDischargeKW SolutionField = "battery_discharge_kw"
	FieldEVChargeKW         SolutionField = "ev_charge_kw"
	FieldGridImportKW       SolutionField = "grid_import_kw"
	FieldGridExportKW       SolutionField = "grid_export_kw"
)

// SolutionFields returns all plan output fields in a stable order.
func SolutionFields() []SolutionField {
	return []SolutionField{
		FieldBatteryChargeKW,
		FieldBatteryDischargeKW,
		FieldEVChargeKW,
		FieldGridImportKW,
		FieldGridExportKW,
	}
}

func fieldValue(d model.StepDecision, f SolutionField) float64 {
	switch f {
	case FieldBatteryChargeKW:
		return d.BatteryChargeKW
	case FieldBatteryDischargeKW:
		return d.BatteryDischargeKW
	case FieldEVChargeKW:
		return d.EVChargeKW
	case FieldGridImportKW:
		return d.GridImportKW
	case FieldGridExportKW:
		return d.GridExportKW
	default:
		return 0
	}
}

// MeasurementMapping is a validated bidirectional mapping between canonical
// measurement keys and adapter entity IDs. It is built once at startup from
// loosely typed configuration and read-only afterwards.
type MeasurementMapping struct {
	byKey    map[measurement.Key]string
	byEntity map[string]measurement.Key
}

// NewMeasurementMapping validates a configuration table keyed by canonical
// measurement names. Unknown names and duplicate entity IDs fail fast.
func NewMeasurementMapping(table map[string]string) (MeasurementMapping, error) {
	m := MeasurementMapping{
		byKey:    make(map[measurement.Key]string, len(table)),
		byEntity: make(map[string]measurement.Key, len(table)),
	}
	for name, entity := range table {
		key, err := measurement.ParseKey(name)
		if err != nil {
			return MeasurementMapping{}, fmt.Errorf("measurement mapping: %w", err)
		}
		if entity == "" {
			return MeasurementMapping{}, fmt.Errorf("measurement mapping: empty entity id for %s", name)
		}
		if prev, ok := m.byEntity[entity]; ok {
			return MeasurementMapping{}, fmt.Errorf("measurement mapping: entity %s mapped to both %s and %s", entity, prev, name)
		}
		m.byKey[key] = entity
		m.byEntity[entity] = key
	}
	return m, nil
}

// EntityFor returns the adapter entity ID for a canonical key.
func (m MeasurementMapping) EntityFor(key measurement.Key) (string, bool) {
	e, ok := m.byKey[key]
	return e, ok
}

// KeyFor resolves an adapter entity ID back to its canonical key.
func (m MeasurementMapping) KeyFor(entity string) (measurement.Key, bool) {
	k, ok := m.byEntity[entity]
	return k, ok
}

// Keys returns the mapped canonical keys in the store's stable order.
func (m MeasurementMapping) Keys() []measurement.Key {
	var out []measurement.Key
	for _, k := range measurement.Keys() {
		if _, ok := m.byKey[k]; ok {
			out = append(out, k)
		}
	}
	return out
}

// SolutionMapping maps canonical plan output fields to adapter entity IDs.
type SolutionMapping struct {
	byField map[SolutionField]string
}

// NewSolutionMapping validates a configuration table keyed by solution field
// names.
func NewSolutionMapping(table map[string]string) (SolutionMapping, error) {
	valid := map[SolutionField]bool{}
	for _, f := range SolutionFields() {
		valid[f] = true
	}
	m := SolutionMapping{byField: make(map[SolutionField]string, len(table))}
	for name, entity := range table {
		f := SolutionField(name)
		if !valid[f] {
			return SolutionMapping{}, fmt.Errorf("solution mapping: unknown field %q", name)
		}
		if entity == "" {
			return SolutionMapping{}, fmt.Errorf("solution mapping: empty entity id for %s", name)
		}
		m.byField[f] = entity
	}
	return m, nil
}

// EntityFor returns the adapter entity ID for a solution field.
func (m SolutionMapping) EntityFor(f SolutionField) (string, bool) {
	e, ok := m.byField[f]
	return e, ok
}

// Len returns the number of mapped fields.
func (m SolutionMapping) Len() int { return len(m.byField) }
