package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hausnetz/eos/core/measurement"
	coremetrics "github.com/hausnetz/eos/core/metrics"
	"github.com/hausnetz/eos/core/model"
)

// PromSink records cycle outcomes and plan setpoints in Prometheus metrics.
type PromSink struct {
	cycles    *prometheus.CounterVec
	solveTime prometheus.Histogram
	setpoints *prometheus.GaugeVec
	horizon   prometheus.Gauge
	samples   *prometheus.GaugeVec
}

// NewPromSink registers the controller metrics on the default Prometheus
// registerer. The metrics endpoint is served separately, see StartPromServer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	cycles := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "eos_cycles_total",
		Help: "Total number of optimization cycles by outcome",
	}, []string{"status", "trigger"})
	solveTime := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "eos_solve_duration_seconds",
		Help:    "Time spent solving the dispatch problem",
		Buckets: prometheus.DefBuckets,
	})
	setpoints := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "eos_plan_setpoint_kw",
		Help: "Active setpoints of the most recent dispatch plan",
	}, []string{"field"})
	horizon := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "eos_plan_horizon_steps",
		Help: "Horizon length of the most recent dispatch plan",
	})
	samples := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "eos_measurement_value",
		Help: "Most recent value per measurement key",
	}, []string{"key"})

	if err := reg.Register(cycles); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			cycles = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(solveTime); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			solveTime = are.ExistingCollector.(prometheus.Histogram)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(setpoints); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			setpoints = are.ExistingCollector.(*prometheus.GaugeVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(horizon); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			horizon = are.ExistingCollector.(prometheus.Gauge)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(samples); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			samples = are.ExistingCollector.(*prometheus.GaugeVec)
		} else {
			return nil, err
		}
	}

	return &PromSink{
		cycles:    cycles,
		solveTime: solveTime,
		setpoints: setpoints,
		horizon:   horizon,
		samples:   samples,
	}, nil
}

// RecordCycle counts the cycle outcome and observes the solve time.
func (s *PromSink) RecordCycle(rec coremetrics.CycleRecord) error {
	s.cycles.WithLabelValues(rec.Status, rec.Trigger).Inc()
	if rec.SolveTime > 0 {
		s.solveTime.Observe(rec.SolveTime.Seconds())
	}
	return nil
}

// RecordPlan exposes the first step of the plan as the active setpoints.
func (s *PromSink) RecordPlan(plan *model.DispatchPlan) error {
	if plan.Horizon() == 0 {
		return nil
	}
	first := plan.Steps[0]
	s.setpoints.WithLabelValues("battery_charge_kw").Set(first.BatteryChargeKW)
	s.setpoints.WithLabelValues("battery_discharge_kw").Set(first.BatteryDischargeKW)
	s.setpoints.WithLabelValues("ev_charge_kw").Set(first.EVChargeKW)
	s.setpoints.WithLabelValues("grid_import_kw").Set(first.GridImportKW)
	s.setpoints.WithLabelValues("grid_export_kw").Set(first.GridExportKW)
	s.horizon.Set(float64(plan.Horizon()))
	return nil
}

// RecordSample exposes the latest value per measurement key.
func (s *PromSink) RecordSample(sample measurement.Sample) error {
	s.samples.WithLabelValues(sample.Key.String()).Set(sample.Value)
	return nil
}
