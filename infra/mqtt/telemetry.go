package mqtt

import (
	"context"

	"github.com/hausnetz/eos/core/events"
	"github.com/hausnetz/eos/internal/eventbus"
)

// StartTelemetry forwards published plans from the event bus to the broker.
// It returns immediately and stops when the context is canceled.
func StartTelemetry(ctx context.Context, bus eventbus.EventBus, p *Publisher) {
	if bus == nil || p == nil {
		return
	}
	plans := eventbus.SubscribeTo[events.PlanPublishedEvent](ctx, bus)
	go func() {
		for e := range plans {
			if err := p.PublishPlan(e.Plan); err != nil {
				p.log.Errorf("publish plan: %v", err)
			}
		}
	}()
}
