package model

import "fmt"

// BatteryConfig describes the stationary home battery.
type BatteryConfig struct {
	CapacityKWh         float64 `json:"capacity_kwh" yaml:"capacity_kwh"`
	MaxChargeKW         float64 `json:"max_charge_kw" yaml:"max_charge_kw"`
	MaxDischargeKW      float64 `json:"max_discharge_kw" yaml:"max_discharge_kw"`
	ChargeEfficiency    float64 `json:"charge_efficiency" yaml:"charge_efficiency"`
	DischargeEfficiency float64 `json:"discharge_efficiency" yaml:"discharge_efficiency"`
	SoCMin              float64 `json:"soc_min" yaml:"soc_min"`
	SoCMax              float64 `json:"soc_max" yaml:"soc_max"`
	// RampKW limits the change of charge power between consecutive steps.
	// Zero disables the limit.
	RampKW float64 `json:"ramp_kw" yaml:"ramp_kw"`
}

// SetDefaults fills unset efficiency and SoC bounds.
func (c *BatteryConfig) SetDefaults() {
	if c.ChargeEfficiency == 0 {
		c.ChargeEfficiency = 0.95
	}
	if c.DischargeEfficiency == 0 {
		c.DischargeEfficiency = 0.95
	}
	if c.SoCMax == 0 {
		c.SoCMax = 1.0
	}
}

// Validate checks physical plausibility of the battery configuration.
// Zero capacity means no battery is installed.
func (c BatteryConfig) Validate() error {
	if c.CapacityKWh == 0 {
		if c.MaxChargeKW != 0 || c.MaxDischargeKW != 0 {
			return fmt.Errorf("battery: power limits require capacity_kwh")
		}
		return nil
	}
	if c.CapacityKWh < 0 {
		return fmt.Errorf("battery: capacity_kwh must be positive")
	}
	if c.MaxChargeKW < 0 || c.MaxDischargeKW < 0 {
		return fmt.Errorf("battery: power limits must be non-negative")
	}
	if c.ChargeEfficiency <= 0 || c.ChargeEfficiency > 1 || c.DischargeEfficiency <= 0 || c.DischargeEfficiency > 1 {
		return fmt.Errorf("battery: efficiencies must be in (0,1]")
	}
	if c.SoCMin < 0 || c.SoCMax > 1 || c.SoCMin > c.SoCMax {
		return fmt.Errorf("battery: soc bounds must satisfy 0 <= soc_min <= soc_max <= 1")
	}
	return nil
}

// EVConfig describes the electric vehicle charger.
type EVConfig struct {
	CapacityKWh      float64 `json:"capacity_kwh" yaml:"capacity_kwh"`
	MaxChargeKW      float64 `json:"max_charge_kw" yaml:"max_charge_kw"`
	ChargeEfficiency float64 `json:"charge_efficiency" yaml:"charge_efficiency"`
	// TargetSoC is the fraction the EV should reach before departure.
	TargetSoC float64 `json:"target_soc" yaml:"target_soc"`
}

// SetDefaults fills unset efficiency and target.
func (c *EVConfig) SetDefaults() {
	if c.ChargeEfficiency == 0 {
		c.ChargeEfficiency = 0.9
	}
}

// Validate checks physical plausibility of the EV configuration.
func (c EVConfig) Validate() error {
	if c.CapacityKWh < 0 || c.MaxChargeKW < 0 {
		return fmt.Errorf("ev: capacity and power must be non-negative")
	}
	if c.ChargeEfficiency <= 0 || c.ChargeEfficiency > 1 {
		return fmt.Errorf("ev: charge_efficiency must be in (0,1]")
	}
	if c.TargetSoC < 0 || c.TargetSoC > 1 {
		return fmt.Errorf("ev: target_soc must be in [0,1]")
	}
	return nil
}

// GridConfig caps the exchange with the grid connection point.
type GridConfig struct {
	ImportCapKW float64 `json:"import_cap_kw" yaml:"import_cap_kw"`
	ExportCapKW float64 `json:"export_cap_kw" yaml:"export_cap_kw"`
}

// Validate checks the grid caps.
func (c GridConfig) Validate() error {
	if c.ImportCapKW < 0 || c.ExportCapKW < 0 {
		return fmt.Errorf("grid: caps must be non-negative")
	}
	return nil
}

// Devices groups the controllable and bounded devices of the site.
type Devices struct {
	Battery BatteryConfig `json:"battery" yaml:"battery"`
	EV      EVConfig      `json:"ev" yaml:"ev"`
	Grid    GridConfig    `json:"grid" yaml:"grid"`
}

// SetDefaults applies per-device defaults.
func (d *Devices) SetDefaults() {
	d.Battery.SetDefaults()
	d.EV.SetDefaults()
}

// Validate validates every device.
func (d Devices) Validate() error {
	if err := d.Battery.Validate(); err != nil {
		return err
	}
	if err := d.EV.Validate(); err != nil {
		return err
	}
	return d.Grid.Validate()
}

// InitialState carries the physically realized state a cycle starts from. Only
// this state crosses cycle boundaries; the previous plan's assumptions do not.
type InitialState struct {
	BatterySoC float64
	EVSoC      float64
	EVPlugged  bool
	// EVDepartureSteps is the number of horizon steps until the EV departs.
	// Zero or negative means the EV stays beyond the horizon.
	EVDepartureSteps int
}
