package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/hausnetz/eos/core/events"
	coremetrics "github.com/hausnetz/eos/core/metrics"
	"github.com/hausnetz/eos/core/optimizer"
	"github.com/hausnetz/eos/internal/eventbus"
)

// StartEventCollector records metrics for control-cycle events from the bus.
// It stops when the context is canceled. Keeping the recording here means the
// cycle engine never blocks on a slow sink.
func StartEventCollector(ctx context.Context, bus eventbus.EventBus, sink coremetrics.MetricsSink) {
	if bus == nil || sink == nil {
		return
	}
	plans := eventbus.SubscribeTo[events.PlanPublishedEvent](ctx, bus)
	failures := eventbus.SubscribeTo[events.CycleFailedEvent](ctx, bus)
	samples := eventbus.SubscribeTo[events.MeasurementIngestedEvent](ctx, bus)

	go func() {
		for e := range plans {
			_ = sink.RecordCycle(coremetrics.CycleRecord{
				PlanID:    e.Plan.ID,
				Status:    "ok",
				Horizon:   e.Plan.Horizon(),
				SolveTime: e.SolveTime,
				Time:      time.Now().UTC(),
			})
			if pr, ok := sink.(coremetrics.PlanRecorder); ok {
				_ = pr.RecordPlan(e.Plan)
			}
		}
	}()
	go func() {
		for e := range failures {
			_ = sink.RecordCycle(coremetrics.CycleRecord{
				Status: failureStatus(e.Err),
				Time:   e.Time,
			})
		}
	}()
	go func() {
		for e := range samples {
			if sr, ok := sink.(coremetrics.SampleRecorder); ok {
				_ = sr.RecordSample(e.Sample)
			}
		}
	}()
}

func failureStatus(err error) string {
	var inf *optimizer.InfeasibleError
	if errors.As(err, &inf) {
		return "infeasible"
	}
	var se *optimizer.SolverError
	if errors.As(err, &se) {
		return "solver_error"
	}
	return "error"
}
