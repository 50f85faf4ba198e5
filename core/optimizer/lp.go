package optimizer

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"

	"github.com/hausnetz/eos/core/constraint"
	"github.com/hausnetz/eos/core/forecast"
	"github.com/hausnetz/eos/core/model"
)

// problem is the LP encoding of one dispatch cycle.
//
// Variable layout, with H the horizon length:
//
//	[0,H)    battery charge power per step (kW)
//	[H,2H)   battery discharge power per step (kW)
//	[2H,3H)  EV charge power per step (kW)
//	[3H,4H)  grid import power per step (kW)
//	[4H,5H)  grid export power per step (kW)
//	[5H,6H)  PV curtailment power per step (kW)
//	6H       auxiliary peak grid import (kW)
//
// Curtailment keeps the balance feasible when PV surplus exceeds what export,
// battery and EV can absorb; the inverter throttles the excess. It is not a
// dispatched setpoint, so it stays out of the extracted plan.
type problem struct {
	horizon int
	n       int
	dt      float64
	c       []float64
	g       [][]float64
	h       []float64
	a       [][]float64
	b       []float64
}

func (p *problem) bc(t int) int { return t }
func (p *problem) bd(t int) int { return p.horizon + t }
func (p *problem) ec(t int) int { return 2*p.horizon + t }
func (p *problem) gi(t int) int { return 3*p.horizon + t }
func (p *problem) ge(t int) int { return 4*p.horizon + t }
func (p *problem) cu(t int) int { return 5*p.horizon + t }
func (p *problem) peak() int    { return 6 * p.horizon }

func (p *problem) row() []float64 { return make([]float64, p.n) }

func (p *problem) addIneq(row []float64, rhs float64) {
	p.g = append(p.g, row)
	p.h = append(p.h, rhs)
}

func (p *problem) addEq(row []float64, rhs float64) {
	p.a = append(p.a, row)
	p.b = append(p.b, rhs)
}

func (o *Optimizer) buildProblem(initial model.InitialState, fc forecast.Bundle, set constraint.Set) *problem {
	horizon := fc.PV.Horizon()
	p := &problem{horizon: horizon, n: 6*horizon + 1, dt: fc.PV.Step.Hours()}
	bat := o.devices.Battery
	ev := o.devices.EV
	w := o.weights
	dt := p.dt

	// Objective.
	p.c = make([]float64, p.n)
	for t := 0; t < horizon; t++ {
		p.c[p.bc(t)] = w.WearPerKWh*dt - w.TerminalValuePerKWh*bat.ChargeEfficiency*dt + epsEarly*float64(t)*dt
		p.c[p.bd(t)] = w.WearPerKWh*dt + w.TerminalValuePerKWh*dt/bat.DischargeEfficiency
		p.c[p.ec(t)] = epsEarly * float64(t) * dt
		p.c[p.gi(t)] = w.CostWeight * fc.Price.At(t) * dt
		p.c[p.ge(t)] = -fc.ExportPrice * dt
	}
	p.c[p.peak()] = epsPeak

	// Non-negativity for every variable.
	for i := 0; i < p.n; i++ {
		row := p.row()
		row[i] = -1
		p.addIneq(row, 0)
	}

	// Per-step power bounds from the constraint set, with device defaults
	// where no constraint covers a step.
	varIndex := map[constraint.Device]func(int) int{
		constraint.DeviceBatteryCharge:    p.bc,
		constraint.DeviceBatteryDischarge: p.bd,
		constraint.DeviceEVCharge:         p.ec,
		constraint.DeviceGridImport:       p.gi,
		constraint.DeviceGridExport:       p.ge,
	}
	fallback := map[constraint.Device]float64{
		constraint.DeviceBatteryCharge:    bat.MaxChargeKW,
		constraint.DeviceBatteryDischarge: bat.MaxDischargeKW,
		constraint.DeviceEVCharge:         ev.MaxChargeKW,
		constraint.DeviceGridImport:       defaultGridCapKW,
		constraint.DeviceGridExport:       defaultGridCapKW,
	}
	for device, idx := range varIndex {
		for t := 0; t < horizon; t++ {
			lo, hi, ok := set.PowerBounds(device, t)
			if !ok {
				lo, hi = 0, fallback[device]
			}
			if !math.IsInf(hi, 1) {
				row := p.row()
				row[idx(t)] = 1
				p.addIneq(row, hi)
			}
			if lo > 0 {
				row := p.row()
				row[idx(t)] = -1
				p.addIneq(row, -lo)
			}
		}
	}

	// Battery SoC trajectory bounds: socMin <= soc0 + cumulative/capacity <= socMax.
	for t := 1; t <= horizon; t++ {
		upper := p.row()
		lower := p.row()
		for s := 0; s < t; s++ {
			upper[p.bc(s)] = bat.ChargeEfficiency * dt
			upper[p.bd(s)] = -dt / bat.DischargeEfficiency
			lower[p.bc(s)] = -bat.ChargeEfficiency * dt
			lower[p.bd(s)] = dt / bat.DischargeEfficiency
		}
		p.addIneq(upper, (bat.SoCMax-initial.BatterySoC)*bat.CapacityKWh)
		p.addIneq(lower, (initial.BatterySoC-bat.SoCMin)*bat.CapacityKWh)
	}

	// EV storage cannot exceed full.
	if initial.EVPlugged && ev.CapacityKWh > 0 {
		for t := 1; t <= horizon; t++ {
			row := p.row()
			for s := 0; s < t; s++ {
				row[p.ec(s)] = ev.ChargeEfficiency * dt
			}
			p.addIneq(row, (1-initial.EVSoC)*ev.CapacityKWh)
		}
	}

	// Cumulative energy constraints (EV session target and the like).
	for device, idx := range varIndex {
		for _, c := range set.EnergyConstraints(device) {
			if c.Min > 0 {
				row := p.row()
				for s := c.From; s < c.To; s++ {
					row[idx(s)] = -dt
				}
				p.addIneq(row, -c.Min)
			}
			if !math.IsInf(c.Max, 1) {
				row := p.row()
				for s := c.From; s < c.To; s++ {
					row[idx(s)] = dt
				}
				p.addIneq(row, c.Max)
			}
		}
	}

	// Ramp limit on battery charging.
	if ramp, ok := set.Ramp(constraint.DeviceBatteryCharge); ok {
		for t := 1; t < horizon; t++ {
			up := p.row()
			up[p.bc(t)] = 1
			up[p.bc(t-1)] = -1
			p.addIneq(up, ramp)
			down := p.row()
			down[p.bc(t)] = -1
			down[p.bc(t-1)] = 1
			p.addIneq(down, ramp)
		}
	}

	// Curtailment cannot exceed the step's PV production.
	for t := 0; t < horizon; t++ {
		row := p.row()
		row[p.cu(t)] = dt
		p.addIneq(row, fc.PV.At(t))
	}

	// Peak import auxiliary variable dominates every step's import.
	for t := 0; t < horizon; t++ {
		row := p.row()
		row[p.gi(t)] = 1
		row[p.peak()] = -1
		p.addIneq(row, 0)
	}

	// Energy balance at every step:
	// pv + discharge + import = load + charge + export + ev charge + curtail.
	for t := 0; t < horizon; t++ {
		row := p.row()
		row[p.bd(t)] = dt
		row[p.gi(t)] = dt
		row[p.bc(t)] = -dt
		row[p.ge(t)] = -dt
		row[p.ec(t)] = -dt
		row[p.cu(t)] = -dt
		p.addEq(row, fc.Load.At(t)-fc.PV.At(t))
	}

	return p
}

// solveLP converts the problem to standard form and runs the simplex method.
func solveLP(p *problem) ([]float64, error) {
	g := mat.NewDense(len(p.g), p.n, nil)
	for i, row := range p.g {
		g.SetRow(i, row)
	}
	a := mat.NewDense(len(p.a), p.n, nil)
	for i, row := range p.a {
		a.SetRow(i, row)
	}
	cStd, aStd, bStd := lp.Convert(p.c, g, p.h, a, p.b)
	_, sol, err := lp.Simplex(cStd, aStd, bStd, 1e-7, nil)
	if err != nil {
		if errors.Is(err, lp.ErrInfeasible) {
			return nil, &InfeasibleError{Reason: "constraint set has no solution"}
		}
		return nil, &SolverError{Err: err}
	}
	return sol, nil
}

// lpSolve points to the function used to solve the LP. It can be overridden in
// tests to simulate solver failures.
var lpSolve = solveLP

// extract recovers the per-step decisions from the standard-form solution.
// Convert splits every free variable x into x⁺−x⁻, so the original value is
// the difference of the paired entries.
func (p *problem) extract(sol []float64) []model.StepDecision {
	value := func(i int) float64 {
		v := sol[i] - sol[p.n+i]
		if v < 1e-9 {
			return 0
		}
		return v
	}
	steps := make([]model.StepDecision, p.horizon)
	for t := 0; t < p.horizon; t++ {
		steps[t] = model.StepDecision{
			BatteryChargeKW:    value(p.bc(t)),
			BatteryDischargeKW: value(p.bd(t)),
			EVChargeKW:         value(p.ec(t)),
			GridImportKW:       value(p.gi(t)),
			GridExportKW:       value(p.ge(t)),
		}
	}
	return steps
}
