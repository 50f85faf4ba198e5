package constraint

import (
	"github.com/hausnetz/eos/core/model"
)

// Model derives the active constraint set for a horizon from static device
// configuration plus the dynamic state of the cycle.
type Model struct {
	Devices model.Devices
}

// NewModel creates a constraint model for the configured devices.
func NewModel(devices model.Devices) *Model {
	return &Model{Devices: devices}
}

// ConstraintsFor builds and validates the constraint set for a horizon of H
// steps. An EV that is not plugged in, or whose departure falls inside the
// horizon, gets its charge window narrowed accordingly.
func (m *Model) ConstraintsFor(horizon int, state model.InitialState) (Set, error) {
	set := Set{Horizon: horizon}
	bat := m.Devices.Battery
	ev := m.Devices.EV
	grid := m.Devices.Grid

	set.Constraints = append(set.Constraints,
		Constraint{Device: DeviceBatteryCharge, Kind: KindPower, From: 0, To: horizon, Min: 0, Max: bat.MaxChargeKW},
		Constraint{Device: DeviceBatteryDischarge, Kind: KindPower, From: 0, To: horizon, Min: 0, Max: bat.MaxDischargeKW},
	)
	if bat.RampKW > 0 {
		set.Constraints = append(set.Constraints,
			Constraint{Device: DeviceBatteryCharge, Kind: KindRamp, From: 0, To: horizon, Min: 0, Max: bat.RampKW})
	}

	if grid.ImportCapKW > 0 {
		set.Constraints = append(set.Constraints,
			Constraint{Device: DeviceGridImport, Kind: KindPower, From: 0, To: horizon, Min: 0, Max: grid.ImportCapKW})
	}
	if grid.ExportCapKW > 0 {
		set.Constraints = append(set.Constraints,
			Constraint{Device: DeviceGridExport, Kind: KindPower, From: 0, To: horizon, Min: 0, Max: grid.ExportCapKW})
	}

	chargeWindow := horizon
	if state.EVDepartureSteps > 0 && state.EVDepartureSteps < horizon {
		chargeWindow = state.EVDepartureSteps
	}
	switch {
	case !state.EVPlugged || ev.MaxChargeKW == 0:
		set.Constraints = append(set.Constraints,
			Constraint{Device: DeviceEVCharge, Kind: KindPower, From: 0, To: horizon, Min: 0, Max: 0})
	default:
		set.Constraints = append(set.Constraints,
			Constraint{Device: DeviceEVCharge, Kind: KindPower, From: 0, To: chargeWindow, Min: 0, Max: ev.MaxChargeKW})
		if chargeWindow < horizon {
			set.Constraints = append(set.Constraints,
				Constraint{Device: DeviceEVCharge, Kind: KindPower, From: chargeWindow, To: horizon, Min: 0, Max: 0})
		}
		if need := (ev.TargetSoC - state.EVSoC) * ev.CapacityKWh; need > 0 && state.EVDepartureSteps > 0 {
			// Both bounds in charger energy, before efficiency losses. The
			// upper bound is the remaining headroom to a full pack, so a
			// session to 100% stays a valid (tight) constraint.
			headroom := (1 - state.EVSoC) * ev.CapacityKWh / ev.ChargeEfficiency
			set.Constraints = append(set.Constraints,
				Constraint{Device: DeviceEVCharge, Kind: KindEnergy, From: 0, To: chargeWindow,
					Min: need / ev.ChargeEfficiency, Max: headroom})
		}
	}

	if err := set.Validate(); err != nil {
		return Set{}, err
	}
	return set, nil
}
