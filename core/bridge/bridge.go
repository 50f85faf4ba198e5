package bridge

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/hausnetz/eos/core/measurement"
	"github.com/hausnetz/eos/core/model"
)

// UnmappedFieldError reports a plan output field with no entity mapping.
// Outbound translation fails hard on it: silently dropping a setpoint would
// leave a device running an outdated command.
type UnmappedFieldError struct {
	Field SolutionField
}

func (e *UnmappedFieldError) Error() string {
	return fmt.Sprintf("bridge: solution field %s has no entity mapping", e.Field)
}

// UnmappedKeyError reports an inbound payload key with no canonical mapping.
// Inbound translation still returns the samples it could translate; callers
// log the error and keep going.
type UnmappedKeyError struct {
	Entity string
}

func (e *UnmappedKeyError) Error() string {
	return fmt.Sprintf("bridge: entity %s has no measurement mapping", e.Entity)
}

// Command is one setpoint write for the adapter.
type Command struct {
	EntityID string  `json:"entity_id"`
	Value    float64 `json:"value"`
}

// ToCommands translates the currently active step of a plan into adapter
// commands, one per mapped solution field in stable order. Every field of the
// step must be mapped.
func ToCommands(plan *model.DispatchPlan, mapping SolutionMapping, now time.Time) ([]Command, error) {
	step, ok := plan.ActiveStep(now)
	if !ok {
		return nil, fmt.Errorf("bridge: plan %s does not cover %s", plan.ID, now.Format(time.RFC3339))
	}
	commands := make([]Command, 0, len(SolutionFields()))
	for _, f := range SolutionFields() {
		entity, ok := mapping.EntityFor(f)
		if !ok {
			return nil, &UnmappedFieldError{Field: f}
		}
		commands = append(commands, Command{EntityID: entity, Value: fieldValue(step, f)})
	}
	return commands, nil
}

// FromMeasurements translates an adapter payload, keyed by entity ID, into
// canonical samples. Entities without a mapping are skipped and reported
// through a joined error alongside the translated samples.
func FromMeasurements(payload map[string]float64, mapping MeasurementMapping, ts time.Time) ([]measurement.Sample, error) {
	entities := make([]string, 0, len(payload))
	for e := range payload {
		entities = append(entities, e)
	}
	sort.Strings(entities)

	var samples []measurement.Sample
	var errs []error
	for _, entity := range entities {
		key, ok := mapping.KeyFor(entity)
		if !ok {
			errs = append(errs, &UnmappedKeyError{Entity: entity})
			continue
		}
		samples = append(samples, measurement.Sample{
			Key:       key,
			Timestamp: ts,
			Value:     payload[entity],
		})
	}
	return samples, errors.Join(errs...)
}
