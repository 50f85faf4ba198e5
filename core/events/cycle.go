package events

import (
	"time"

	"github.com/hausnetz/eos/core/model"
)

// CycleStartedEvent is published when an optimization cycle begins.
// Trigger is "tick", "measurement" or "manual".
type CycleStartedEvent struct {
	Trigger string
	Time    time.Time
}

// PlanPublishedEvent is published after a plan was translated and handed to
// the adapter.
type PlanPublishedEvent struct {
	Plan      *model.DispatchPlan
	SolveTime time.Duration
}

// CycleFailedEvent is published when a cycle could not produce a fresh plan.
// Fallback names what the controller kept running: "last_plan" or "idle".
type CycleFailedEvent struct {
	Err      error
	Fallback string
	Time     time.Time
}
