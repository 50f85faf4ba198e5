package model

import (
	"time"

	"github.com/google/uuid"
)

// StepDecision holds the per-device setpoints for one horizon step.
// Power values are in kW; charge and discharge are non-negative.
type StepDecision struct {
	BatteryChargeKW    float64 `json:"battery_charge_kw"`
	BatteryDischargeKW float64 `json:"battery_discharge_kw"`
	EVChargeKW         float64 `json:"ev_charge_kw"`
	GridImportKW       float64 `json:"grid_import_kw"`
	GridExportKW       float64 `json:"grid_export_kw"`
}

// DispatchPlan is the time-indexed control schedule produced by one
// optimization cycle. A plan is immutable once produced; the next cycle
// replaces it instead of mutating it.
type DispatchPlan struct {
	ID           string         `json:"id"`
	GeneratedAt  time.Time      `json:"generated_at"`
	Start        time.Time      `json:"start"`
	StepDuration time.Duration  `json:"step_duration"`
	Steps        []StepDecision `json:"steps"`
}

// NewDispatchPlan creates a plan with a fresh ID.
func NewDispatchPlan(start time.Time, step time.Duration, steps []StepDecision) *DispatchPlan {
	return &DispatchPlan{
		ID:           uuid.NewString(),
		GeneratedAt:  time.Now().UTC(),
		Start:        start,
		StepDuration: step,
		Steps:        steps,
	}
}

// NewIdlePlan returns a conservative plan with no active charging or
// discharging. It is the safe fallback when a cycle cannot produce a plan.
func NewIdlePlan(start time.Time, step time.Duration, horizon int) *DispatchPlan {
	return NewDispatchPlan(start, step, make([]StepDecision, horizon))
}

// Horizon returns the number of steps in the plan.
func (p *DispatchPlan) Horizon() int { return len(p.Steps) }

// End returns the instant the plan stops being valid.
func (p *DispatchPlan) End() time.Time {
	return p.Start.Add(time.Duration(len(p.Steps)) * p.StepDuration)
}

// StepAt returns the index of the step covering the given instant.
func (p *DispatchPlan) StepAt(now time.Time) (int, bool) {
	if now.Before(p.Start) || !now.Before(p.End()) || p.StepDuration <= 0 {
		return 0, false
	}
	return int(now.Sub(p.Start) / p.StepDuration), true
}

// ActiveStep returns the decision in effect at the given instant.
func (p *DispatchPlan) ActiveStep(now time.Time) (StepDecision, bool) {
	i, ok := p.StepAt(now)
	if !ok {
		return StepDecision{}, false
	}
	return p.Steps[i], true
}

// NextStep returns the first decision starting strictly after the given
// instant.
func (p *DispatchPlan) NextStep(now time.Time) (StepDecision, bool) {
	if len(p.Steps) == 0 {
		return StepDecision{}, false
	}
	if now.Before(p.Start) {
		return p.Steps[0], true
	}
	i, ok := p.StepAt(now)
	if !ok || i+1 >= len(p.Steps) {
		return StepDecision{}, false
	}
	return p.Steps[i+1], true
}
