package constraint

import (
	"fmt"
	"math"
)

// Device names a decision variable group a constraint applies to.
type Device string

const (
	DeviceBatteryCharge    Device = "battery_charge"
	DeviceBatteryDischarge Device = "battery_discharge"
	DeviceEVCharge         Device = "ev_charge"
	DeviceGridImport       Device = "grid_import"
	DeviceGridExport       Device = "grid_export"
)

// Kind distinguishes the bound types.
type Kind int

const (
	// KindPower bounds the per-step power in kW over the window.
	KindPower Kind = iota
	// KindEnergy bounds the cumulative energy in kWh over the window.
	KindEnergy
	// KindRamp bounds the change of power between consecutive steps in kW.
	KindRamp
)

func (k Kind) String() string {
	switch k {
	case KindPower:
		return "power"
	case KindEnergy:
		return "energy"
	case KindRamp:
		return "ramp"
	default:
		return "unknown"
	}
}

// Constraint is a typed bound on a decision variable, scoped to a device and a
// half-open step window [From, To).
type Constraint struct {
	Device Device
	Kind   Kind
	From   int
	To     int
	Min    float64
	Max    float64
}

// InfeasibleConfigurationError reports mutually exclusive constraints detected
// before any solve is attempted.
type InfeasibleConfigurationError struct {
	Device Device
	Kind   Kind
	Step   int
	Reason string
}

func (e *InfeasibleConfigurationError) Error() string {
	return fmt.Sprintf("constraint: infeasible configuration for %s/%s at step %d: %s",
		e.Device, e.Kind, e.Step, e.Reason)
}

// Set is a validated collection of constraints over one horizon.
type Set struct {
	Horizon     int
	Constraints []Constraint
}

// Validate checks each constraint and the pairwise consistency of constraints
// sharing a device, kind and overlapping window.
func (s Set) Validate() error {
	for _, c := range s.Constraints {
		if c.Min > c.Max {
			return &InfeasibleConfigurationError{Device: c.Device, Kind: c.Kind, Step: c.From,
				Reason: fmt.Sprintf("min %g exceeds max %g", c.Min, c.Max)}
		}
		if c.From < 0 || c.To > s.Horizon || c.From >= c.To {
			return &InfeasibleConfigurationError{Device: c.Device, Kind: c.Kind, Step: c.From,
				Reason: fmt.Sprintf("window [%d,%d) outside horizon %d", c.From, c.To, s.Horizon)}
		}
	}
	// Per-step intersection of power bounds must stay non-empty.
	for step := 0; step < s.Horizon; step++ {
		bounds := map[Device][2]float64{}
		for _, c := range s.Constraints {
			if c.Kind != KindPower || step < c.From || step >= c.To {
				continue
			}
			lo, hi := c.Min, c.Max
			if prev, ok := bounds[c.Device]; ok {
				lo = math.Max(lo, prev[0])
				hi = math.Min(hi, prev[1])
			}
			if lo > hi {
				return &InfeasibleConfigurationError{Device: c.Device, Kind: KindPower, Step: step,
					Reason: fmt.Sprintf("empty power interval [%g,%g]", lo, hi)}
			}
			bounds[c.Device] = [2]float64{lo, hi}
		}
	}
	return nil
}

// PowerBounds returns the effective power interval for the device at the step.
// The second return is false when no power constraint covers the step.
func (s Set) PowerBounds(device Device, step int) (float64, float64, bool) {
	lo, hi := math.Inf(-1), math.Inf(1)
	found := false
	for _, c := range s.Constraints {
		if c.Kind != KindPower || c.Device != device || step < c.From || step >= c.To {
			continue
		}
		lo = math.Max(lo, c.Min)
		hi = math.Min(hi, c.Max)
		found = true
	}
	return lo, hi, found
}

// EnergyConstraints returns all cumulative energy bounds for the device.
func (s Set) EnergyConstraints(device Device) []Constraint {
	var out []Constraint
	for _, c := range s.Constraints {
		if c.Kind == KindEnergy && c.Device == device {
			out = append(out, c)
		}
	}
	return out
}

// Ramp returns the ramp limit for the device, if any.
func (s Set) Ramp(device Device) (float64, bool) {
	for _, c := range s.Constraints {
		if c.Kind == KindRamp && c.Device == device {
			return c.Max, true
		}
	}
	return 0, false
}
