package events

import "github.com/hausnetz/eos/core/measurement"

// MeasurementIngestedEvent is published when a sample is accepted by the
// store. Source names the ingestion path, e.g. "adapter" or "api".
type MeasurementIngestedEvent struct {
	Sample measurement.Sample
	Source string
}
