package ems

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hausnetz/eos/core/bridge"
	"github.com/hausnetz/eos/core/constraint"
	"github.com/hausnetz/eos/core/events"
	"github.com/hausnetz/eos/core/forecast"
	corelogger "github.com/hausnetz/eos/core/logger"
	"github.com/hausnetz/eos/core/measurement"
	"github.com/hausnetz/eos/core/model"
	"github.com/hausnetz/eos/core/optimizer"
	"github.com/hausnetz/eos/internal/eventbus"
)

// Config holds the cycle engine settings.
type Config struct {
	// HorizonSteps is the number of steps in every plan.
	HorizonSteps int `json:"horizon_steps" yaml:"horizon_steps"`
	// StepDuration is the length of one plan step.
	StepDuration time.Duration `json:"step_duration" yaml:"step_duration"`
	// Interval is the cadence of periodic replanning. Defaults to
	// StepDuration.
	Interval time.Duration `json:"interval" yaml:"interval"`
	// ReplanOnMeasurement restarts the cycle when a fresh sample arrives,
	// canceling any solve in flight.
	ReplanOnMeasurement bool `json:"replan_on_measurement" yaml:"replan_on_measurement"`
}

// Validate checks the engine configuration.
func (c *Config) Validate() error {
	if c.HorizonSteps <= 0 {
		return fmt.Errorf("ems: horizon_steps must be positive")
	}
	if c.StepDuration <= 0 {
		return fmt.Errorf("ems: step_duration must be positive")
	}
	if c.Interval == 0 {
		c.Interval = c.StepDuration
	}
	if c.Interval < 0 {
		return fmt.Errorf("ems: interval must be positive")
	}
	return nil
}

// Dispatcher pushes translated commands to the building. Implemented by the
// adapter layer.
type Dispatcher interface {
	SendCommands(ctx context.Context, commands []bridge.Command) error
}

// EVSession describes the current charging session, reported by the adapter
// or the API.
type EVSession struct {
	Plugged   bool
	Departure time.Time
}

// Engine runs the rolling-horizon control loop: snapshot measurements,
// forecast, build constraints, optimize, translate, dispatch. The solver
// itself carries no state between cycles, so the engine owns the current plan
// and the fallback policy.
type Engine struct {
	cfg        Config
	store      *measurement.Store
	provider   forecast.Provider
	fcConfig   forecast.Config
	cmodel     *constraint.Model
	opt        *optimizer.Optimizer
	solution   bridge.SolutionMapping
	dispatcher Dispatcher
	bus        eventbus.EventBus
	log        corelogger.Logger

	trigger chan string

	mu          sync.Mutex
	current     *model.DispatchPlan
	session     EVSession
	cancelSolve context.CancelFunc
}

// Deps groups the engine collaborators.
type Deps struct {
	Store          *measurement.Store
	Provider       forecast.Provider
	ForecastConfig forecast.Config
	Constraints    *constraint.Model
	Optimizer      *optimizer.Optimizer
	Solution       bridge.SolutionMapping
	Dispatcher     Dispatcher
	Bus            eventbus.EventBus
	Log            corelogger.Logger
}

// New creates an Engine. The dispatcher and bus may be nil; dispatching and
// event publication are then skipped.
func New(cfg Config, deps Deps) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		cfg:        cfg,
		store:      deps.Store,
		provider:   deps.Provider,
		fcConfig:   deps.ForecastConfig,
		cmodel:     deps.Constraints,
		opt:        deps.Optimizer,
		solution:   deps.Solution,
		dispatcher: deps.Dispatcher,
		bus:        deps.Bus,
		log:        deps.Log,
		trigger:    make(chan string, 1),
	}, nil
}

// CurrentPlan returns the plan currently in force, or nil before the first
// successful cycle.
func (e *Engine) CurrentPlan() *model.DispatchPlan {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

// SetEVSession updates the charging session used by the next cycle.
func (e *Engine) SetEVSession(s EVSession) {
	e.mu.Lock()
	e.session = s
	e.mu.Unlock()
	e.Trigger("measurement")
}

// Trigger requests an immediate replanning cycle. It never blocks; a cycle
// already pending absorbs the request.
func (e *Engine) Trigger(reason string) {
	select {
	case e.trigger <- reason:
	default:
	}
}

// Ingest records samples in the store and, if configured, restarts the cycle.
// Out-of-order samples are rejected sample by sample; the returned error
// joins all rejections while valid samples are still recorded.
func (e *Engine) Ingest(source string, samples ...measurement.Sample) error {
	var errs []error
	accepted := false
	for _, s := range samples {
		if err := e.store.Record(s); err != nil {
			errs = append(errs, err)
			continue
		}
		accepted = true
		if e.bus != nil {
			e.bus.Publish(events.MeasurementIngestedEvent{Sample: s, Source: source})
		}
	}
	if accepted && e.cfg.ReplanOnMeasurement {
		e.interruptSolve()
		e.Trigger("measurement")
	}
	return errors.Join(errs...)
}

// interruptSolve cancels a solve in flight so the next cycle starts from
// fresh data.
func (e *Engine) interruptSolve() {
	e.mu.Lock()
	cancel := e.cancelSolve
	e.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Run executes one immediate cycle and then loops on the configured interval
// until the context is canceled. Manual triggers and measurement arrivals
// schedule extra cycles in between.
func (e *Engine) Run(ctx context.Context) error {
	e.cycle(ctx, "startup")
	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			e.cycle(ctx, "tick")
		case reason := <-e.trigger:
			e.cycle(ctx, reason)
		}
	}
}

// RunOnce executes a single cycle and returns the resulting plan. Used by the
// one-shot CLI path.
func (e *Engine) RunOnce(ctx context.Context) (*model.DispatchPlan, error) {
	return e.cycle(ctx, "manual")
}

func (e *Engine) cycle(ctx context.Context, reason string) (*model.DispatchPlan, error) {
	start := time.Now().UTC().Truncate(time.Minute)
	if e.bus != nil {
		e.bus.Publish(events.CycleStartedEvent{Trigger: reason, Time: start})
	}

	// One consistent snapshot per cycle: all state the solve uses is as-of
	// this instant, and history reads are bounded at start, so samples
	// ingested mid-cycle cannot mix into the optimization.
	state := e.initialState(start, e.store.Snapshot())
	fc, err := e.forecastBundle(start)
	if err != nil {
		return e.fail(ctx, start, err)
	}

	set, err := e.cmodel.ConstraintsFor(e.cfg.HorizonSteps, state)
	if err != nil {
		// A contradictory configuration cannot be recovered by replanning.
		return e.fail(ctx, start, err)
	}

	solveCtx, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	e.cancelSolve = cancel
	e.mu.Unlock()
	solveStart := time.Now()
	plan, err := e.opt.Optimize(solveCtx, state, fc, set)
	solveTime := time.Since(solveStart)
	e.mu.Lock()
	e.cancelSolve = nil
	e.mu.Unlock()
	cancel()

	if err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() == nil {
			// Interrupted by fresh data; the pending trigger reruns the cycle.
			e.logDebugf("cycle interrupted, replanning")
			return nil, err
		}
		return e.fail(ctx, start, err)
	}

	e.mu.Lock()
	e.current = plan
	e.mu.Unlock()

	if err := e.dispatch(ctx, plan, start); err != nil {
		e.logErrorf("dispatch failed: %v", err)
		return plan, err
	}
	if e.bus != nil {
		e.bus.Publish(events.PlanPublishedEvent{Plan: plan, SolveTime: solveTime})
	}
	e.logDebugf("cycle complete: plan %s, %d steps, solved in %s", plan.ID, plan.Horizon(), solveTime)
	return plan, nil
}

// fail applies the fallback policy: keep the last plan while it still covers
// the present, otherwise fall back to an idle plan.
func (e *Engine) fail(ctx context.Context, start time.Time, cause error) (*model.DispatchPlan, error) {
	e.mu.Lock()
	last := e.current
	e.mu.Unlock()

	fallback := "last_plan"
	if last == nil || !start.Before(last.End()) {
		fallback = "idle"
		idle := model.NewIdlePlan(start, e.cfg.StepDuration, e.cfg.HorizonSteps)
		e.mu.Lock()
		e.current = idle
		e.mu.Unlock()
		if err := e.dispatch(ctx, idle, start); err != nil {
			e.logErrorf("idle dispatch failed: %v", err)
		}
	}
	e.logErrorf("cycle failed (%s fallback): %v", fallback, cause)
	if e.bus != nil {
		e.bus.Publish(events.CycleFailedEvent{Err: cause, Fallback: fallback, Time: start})
	}
	return nil, cause
}

func (e *Engine) dispatch(ctx context.Context, plan *model.DispatchPlan, now time.Time) error {
	if e.dispatcher == nil {
		return nil
	}
	commands, err := bridge.ToCommands(plan, e.solution, now)
	if err != nil {
		return err
	}
	return e.dispatcher.SendCommands(ctx, commands)
}

// initialState assembles the optimizer starting point from a store snapshot
// and the EV session.
func (e *Engine) initialState(start time.Time, snap map[measurement.Key]measurement.Sample) model.InitialState {
	state := model.InitialState{}
	if s, ok := snap[measurement.KeyBatterySoC]; ok {
		state.BatterySoC = s.Value
	}
	if s, ok := snap[measurement.KeyEVSoC]; ok {
		state.EVSoC = s.Value
	}
	e.mu.Lock()
	session := e.session
	e.mu.Unlock()
	if session.Plugged {
		state.EVPlugged = true
		if session.Departure.After(start) {
			steps := int(session.Departure.Sub(start) / e.cfg.StepDuration)
			if steps > e.cfg.HorizonSteps {
				steps = e.cfg.HorizonSteps
			}
			state.EVDepartureSteps = steps
		}
	}
	return state
}

// forecastBundle asks the provider for the horizon and falls back to a flat
// bundle when history is too short to forecast from.
func (e *Engine) forecastBundle(start time.Time) (forecast.Bundle, error) {
	fc, err := e.provider.Forecast(start, e.cfg.HorizonSteps, e.cfg.StepDuration)
	if err == nil {
		return fc, nil
	}
	var ih *forecast.InsufficientHistoryError
	if errors.As(err, &ih) {
		e.logWarnf("forecast degraded: %v", err)
		return forecast.FlatBundle(e.fcConfig, start, e.cfg.HorizonSteps, e.cfg.StepDuration), nil
	}
	return forecast.Bundle{}, err
}

func (e *Engine) logDebugf(format string, args ...any) {
	if e.log != nil {
		e.log.Debugf(format, args...)
	}
}

func (e *Engine) logWarnf(format string, args ...any) {
	if e.log != nil {
		e.log.Warnf(format, args...)
	}
}

func (e *Engine) logErrorf(format string, args ...any) {
	if e.log != nil {
		e.log.Errorf(format, args...)
	}
}
