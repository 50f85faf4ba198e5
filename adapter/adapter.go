// Package adapter connects the controller to the home-automation layer that
// owns the physical devices. Adapters read raw entity states and write
// setpoint commands; all translation to canonical keys happens in the bridge.
package adapter

import (
	"context"
	"time"

	"github.com/hausnetz/eos/core/bridge"
	"github.com/hausnetz/eos/core/factory"
)

// Adapter is the transport to one home-automation system.
type Adapter interface {
	// FetchMeasurements reads the current state of the given entities.
	// Entities that cannot be read are absent from the result.
	FetchMeasurements(ctx context.Context, entities []string) (map[string]float64, error)
	// SendCommands writes the translated setpoints.
	SendCommands(ctx context.Context, commands []bridge.Command) error
}

// Config is the adapter section of the service configuration.
type Config struct {
	// Module selects and configures the adapter implementation.
	Module factory.ModuleConfig `json:"module" yaml:"module"`
	// MeasurementEntities maps canonical measurement keys to entity IDs.
	MeasurementEntities map[string]string `json:"measurement_entities" yaml:"measurement_entities"`
	// SolutionEntities maps plan output fields to entity IDs.
	SolutionEntities map[string]string `json:"solution_entities" yaml:"solution_entities"`
	// PollInterval is the cadence of measurement polling. Zero disables
	// polling.
	PollInterval time.Duration `json:"poll_interval" yaml:"poll_interval"`
}

var registry = factory.NewRegistry[Adapter]()

// Register adds an adapter factory identified by name.
func Register(name string, f factory.Factory[Adapter]) error {
	return registry.Register(name, f)
}

// New creates an Adapter from its module configuration. An empty type yields
// the no-op adapter.
func New(cfg factory.ModuleConfig) (Adapter, error) {
	if cfg.Type == "" {
		return NopAdapter{}, nil
	}
	return registry.Create(cfg)
}

// NopAdapter ignores commands and reports no measurements. Used in
// simulation runs and as the default when no adapter is configured.
type NopAdapter struct{}

func (NopAdapter) FetchMeasurements(context.Context, []string) (map[string]float64, error) {
	return map[string]float64{}, nil
}

func (NopAdapter) SendCommands(context.Context, []bridge.Command) error { return nil }

func init() {
	_ = Register("nop", func(map[string]any) (Adapter, error) {
		return NopAdapter{}, nil
	})
}
