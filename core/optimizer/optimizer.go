package optimizer

import (
	"context"
	"fmt"

	"github.com/hausnetz/eos/core/constraint"
	"github.com/hausnetz/eos/core/forecast"
	corelogger "github.com/hausnetz/eos/core/logger"
	"github.com/hausnetz/eos/core/model"
)

// InfeasibleError reports that no plan satisfies all hard constraints. Callers
// recover by relaxing soft constraints or keeping the last safe plan, which is
// a different path than a solver breakdown.
type InfeasibleError struct {
	Reason string
}

func (e *InfeasibleError) Error() string {
	return fmt.Sprintf("optimizer: no feasible plan: %s", e.Reason)
}

// SolverError reports a numerical failure of the LP solver.
type SolverError struct {
	Err error
}

func (e *SolverError) Error() string {
	return fmt.Sprintf("optimizer: solver failure: %v", e.Err)
}

func (e *SolverError) Unwrap() error { return e.Err }

// Weights are the tunable terms of the cost objective. The balance between
// cost minimization, battery wear and end-of-horizon storage value is a policy
// choice, so all three are explicit.
type Weights struct {
	// WearPerKWh penalizes every kWh moved through the battery.
	WearPerKWh float64 `json:"wear_per_kwh" yaml:"wear_per_kwh"`
	// TerminalValuePerKWh values energy left in the battery at the end of
	// the horizon. Without it the optimizer would always drain storage.
	TerminalValuePerKWh float64 `json:"terminal_value_per_kwh" yaml:"terminal_value_per_kwh"`
	// CostWeight scales the grid cost term.
	CostWeight float64 `json:"cost_weight" yaml:"cost_weight"`
}

// SetDefaults fills unset weights.
func (w *Weights) SetDefaults() {
	if w.CostWeight == 0 {
		w.CostWeight = 1
	}
	if w.WearPerKWh == 0 {
		w.WearPerKWh = 0.01
	}
	if w.TerminalValuePerKWh == 0 {
		w.TerminalValuePerKWh = 0.25
	}
}

// Tie-break terms. Both are orders of magnitude below real prices so they only
// separate plans of equal cost: first minimize peak grid import, then prefer
// charging earlier in the horizon.
const (
	epsPeak  = 1e-4
	epsEarly = 1e-6
)

// defaultGridCapKW bounds grid exchange when no cap is configured, keeping the
// LP bounded.
const defaultGridCapKW = 1000

// Optimizer solves the dispatch problem for one cycle. It carries no state
// between cycles; every plan is a pure function of the inputs.
type Optimizer struct {
	devices model.Devices
	weights Weights
	log     corelogger.Logger
}

// New creates an Optimizer for the configured devices.
func New(devices model.Devices, weights Weights, log corelogger.Logger) *Optimizer {
	weights.SetDefaults()
	return &Optimizer{devices: devices, weights: weights, log: log}
}

// Optimize computes a dispatch plan for the horizon described by the forecast
// bundle, subject to the constraint set. The objective minimizes
// Σ price·import − export_price·export + wear·(charge+discharge) −
// terminal_value·stored_energy, with deterministic tie-breaking.
func (o *Optimizer) Optimize(ctx context.Context, initial model.InitialState, fc forecast.Bundle, set constraint.Set) (*model.DispatchPlan, error) {
	horizon := fc.PV.Horizon()
	if horizon == 0 {
		return nil, &InfeasibleError{Reason: "empty horizon"}
	}
	if fc.Load.Horizon() != horizon || fc.Price.Horizon() != horizon {
		return nil, fmt.Errorf("optimizer: forecast series lengths differ")
	}
	if set.Horizon != horizon {
		return nil, fmt.Errorf("optimizer: constraint horizon %d does not match forecast horizon %d", set.Horizon, horizon)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prob := o.buildProblem(initial, fc, set)
	sol, err := lpSolve(prob)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		// A cancellation during the solve means fresher data arrived; the
		// result would be stale.
		return nil, err
	}

	steps := prob.extract(sol)
	plan := model.NewDispatchPlan(fc.PV.Start, fc.PV.Step, steps)
	if o.log != nil {
		o.log.Debugw("plan solved", map[string]any{
			"plan_id": plan.ID,
			"horizon": horizon,
		})
	}
	return plan, nil
}

// Replay recomputes the battery SoC trajectory by applying the plan to the
// initial state. The result has horizon+1 entries, starting at the initial
// SoC. It is the reference check that a plan keeps storage within bounds.
func Replay(plan *model.DispatchPlan, bat model.BatteryConfig, initialSoC float64) []float64 {
	soc := make([]float64, plan.Horizon()+1)
	soc[0] = initialSoC
	dt := plan.StepDuration.Hours()
	for i, s := range plan.Steps {
		delta := (bat.ChargeEfficiency*s.BatteryChargeKW - s.BatteryDischargeKW/bat.DischargeEfficiency) * dt
		soc[i+1] = soc[i] + delta/bat.CapacityKWh
	}
	return soc
}
