package adapter

import (
	"context"
	"time"

	"github.com/hausnetz/eos/core/bridge"
	corelogger "github.com/hausnetz/eos/core/logger"
	"github.com/hausnetz/eos/core/measurement"
)

// Ingestor consumes translated samples. Implemented by the cycle engine.
type Ingestor interface {
	Ingest(source string, samples ...measurement.Sample) error
}

// StartPoller periodically reads the mapped entities from the adapter,
// translates them and feeds them to the ingestor. It returns immediately and
// stops when the context is canceled.
func StartPoller(ctx context.Context, a Adapter, mapping bridge.MeasurementMapping, sink Ingestor, interval time.Duration, log corelogger.Logger) {
	if interval <= 0 {
		return
	}
	entities := make([]string, 0, len(mapping.Keys()))
	for _, key := range mapping.Keys() {
		if e, ok := mapping.EntityFor(key); ok {
			entities = append(entities, e)
		}
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				poll(ctx, a, mapping, sink, entities, log)
			}
		}
	}()
}

func poll(ctx context.Context, a Adapter, mapping bridge.MeasurementMapping, sink Ingestor, entities []string, log corelogger.Logger) {
	payload, err := a.FetchMeasurements(ctx, entities)
	if err != nil {
		if log != nil {
			log.Errorf("poll failed: %v", err)
		}
		return
	}
	samples, err := bridge.FromMeasurements(payload, mapping, time.Now().UTC())
	if err != nil && log != nil {
		log.Warnf("poll translation: %v", err)
	}
	if len(samples) == 0 {
		return
	}
	if err := sink.Ingest("adapter", samples...); err != nil && log != nil {
		log.Warnf("poll ingest: %v", err)
	}
}
