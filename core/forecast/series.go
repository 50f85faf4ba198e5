package forecast

import (
	"fmt"
	"time"
)

// Series is a contiguous per-step prediction over the optimization horizon.
// Values carry per-step energy in kWh for PV and load, and a price per kWh for
// tariffs.
type Series struct {
	Start  time.Time
	Step   time.Duration
	Values []float64
}

// NewSeries builds a Series and enforces the horizon length invariant.
func NewSeries(start time.Time, step time.Duration, horizon int, values []float64) (Series, error) {
	if step <= 0 {
		return Series{}, fmt.Errorf("forecast: step duration must be positive")
	}
	if len(values) != horizon {
		return Series{}, fmt.Errorf("forecast: series has %d values, horizon is %d", len(values), horizon)
	}
	return Series{Start: start, Step: step, Values: values}, nil
}

// Flat returns a Series with the same value at every step.
func Flat(start time.Time, step time.Duration, horizon int, value float64) Series {
	values := make([]float64, horizon)
	for i := range values {
		values[i] = value
	}
	return Series{Start: start, Step: step, Values: values}
}

// At returns the value for the given step index.
func (s Series) At(i int) float64 { return s.Values[i] }

// Horizon returns the number of steps.
func (s Series) Horizon() int { return len(s.Values) }

// Bundle groups the forecast series consumed by one optimization cycle.
type Bundle struct {
	PV    Series
	Load  Series
	Price Series
	// ExportPrice is the flat feed-in remuneration per kWh.
	ExportPrice float64
}
