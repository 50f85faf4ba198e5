package forecast

import (
	"fmt"
	"time"

	"github.com/hausnetz/eos/core/measurement"
)

// InsufficientHistoryError reports that the store does not cover the minimum
// lookback needed to derive a forecast. Callers fall back to a flat default
// bundle instead of aborting the cycle.
type InsufficientHistoryError struct {
	Key      measurement.Key
	Lookback time.Duration
}

func (e *InsufficientHistoryError) Error() string {
	return fmt.Sprintf("forecast: insufficient history for %s over %s", e.Key, e.Lookback)
}

// Provider produces the forecast bundle for a horizon. Implementations must be
// deterministic for identical history and parameters.
type Provider interface {
	Forecast(start time.Time, horizon int, step time.Duration) (Bundle, error)
}

// HistoryReader is the slice of the measurement store the provider reads.
type HistoryReader interface {
	Window(key measurement.Key, from, to time.Time) []measurement.Sample
}

// Config holds forecast model parameters.
type Config struct {
	MinLookbackHours int          `json:"min_lookback_hours" yaml:"min_lookback_hours"`
	Tariff           TariffConfig `json:"tariff" yaml:"tariff"`
	// Defaults used by the flat fallback bundle.
	DefaultLoadKW float64 `json:"default_load_kw" yaml:"default_load_kw"`
}

// SetDefaults fills unset parameters.
func (c *Config) SetDefaults() {
	if c.MinLookbackHours == 0 {
		c.MinLookbackHours = 2
	}
	if c.DefaultLoadKW == 0 {
		c.DefaultLoadKW = 0.5
	}
	c.Tariff.SetDefaults()
}

// Validate checks the forecast parameters.
func (c Config) Validate() error {
	if c.MinLookbackHours < 0 {
		return fmt.Errorf("forecast: min_lookback_hours must be non-negative")
	}
	return c.Tariff.Validate()
}

// TariffConfig describes grid prices. ImportHourly, when set, must contain one
// price per hour of day and overrides ImportFlat.
type TariffConfig struct {
	ImportFlat   float64   `json:"import_flat" yaml:"import_flat"`
	ImportHourly []float64 `json:"import_hourly" yaml:"import_hourly"`
	ExportFlat   float64   `json:"export_flat" yaml:"export_flat"`
}

// SetDefaults fills unset prices.
func (c *TariffConfig) SetDefaults() {
	if c.ImportFlat == 0 && len(c.ImportHourly) == 0 {
		c.ImportFlat = 0.30
	}
}

// Validate checks the tariff schedule shape.
func (c TariffConfig) Validate() error {
	if n := len(c.ImportHourly); n != 0 && n != 24 {
		return fmt.Errorf("tariff: import_hourly must have 24 entries, got %d", n)
	}
	for _, p := range c.ImportHourly {
		if p < 0 {
			return fmt.Errorf("tariff: negative hourly price")
		}
	}
	if c.ImportFlat < 0 || c.ExportFlat < 0 {
		return fmt.Errorf("tariff: prices must be non-negative")
	}
	return nil
}

// PriceSeries expands the tariff into a per-step import price series.
func (c TariffConfig) PriceSeries(start time.Time, horizon int, step time.Duration) Series {
	values := make([]float64, horizon)
	for i := range values {
		if len(c.ImportHourly) == 24 {
			values[i] = c.ImportHourly[start.Add(time.Duration(i)*step).Hour()]
		} else {
			values[i] = c.ImportFlat
		}
	}
	return Series{Start: start, Step: step, Values: values}
}

// HistoryProvider derives PV and load forecasts from energy meter history and
// prices from the tariff schedule.
type HistoryProvider struct {
	History HistoryReader
	Config  Config
}

// NewHistoryProvider creates a provider reading from the given history.
func NewHistoryProvider(history HistoryReader, cfg Config) *HistoryProvider {
	return &HistoryProvider{History: history, Config: cfg}
}

// Forecast implements Provider. PV and load are projected at the mean
// production and consumption rate observed over the lookback window; prices
// come from the configured tariff.
func (p *HistoryProvider) Forecast(start time.Time, horizon int, step time.Duration) (Bundle, error) {
	pvRate, err := p.meanRateKW(measurement.KeyPVProduction, start)
	if err != nil {
		return Bundle{}, err
	}
	loadRate, err := p.meanRateKW(measurement.KeyLoad, start)
	if err != nil {
		return Bundle{}, err
	}
	stepHours := step.Hours()
	pv := make([]float64, horizon)
	load := make([]float64, horizon)
	for i := 0; i < horizon; i++ {
		pv[i] = pvRate * stepHours
		load[i] = loadRate * stepHours
	}
	return Bundle{
		PV:          Series{Start: start, Step: step, Values: pv},
		Load:        Series{Start: start, Step: step, Values: load},
		Price:       p.Config.Tariff.PriceSeries(start, horizon, step),
		ExportPrice: p.Config.Tariff.ExportFlat,
	}, nil
}

// meanRateKW computes the average rate of an accumulating energy meter over
// the lookback window.
func (p *HistoryProvider) meanRateKW(key measurement.Key, now time.Time) (float64, error) {
	lookback := time.Duration(p.Config.MinLookbackHours) * time.Hour
	window := p.History.Window(key, now.Add(-lookback), now.Add(time.Nanosecond))
	if len(window) < 2 {
		return 0, &InsufficientHistoryError{Key: key, Lookback: lookback}
	}
	first, last := window[0], window[len(window)-1]
	elapsed := last.Timestamp.Sub(first.Timestamp).Hours()
	if elapsed <= 0 {
		return 0, &InsufficientHistoryError{Key: key, Lookback: lookback}
	}
	delta := last.Value - first.Value
	if delta < 0 {
		// Meter reset; treat the window as unusable rather than forecast
		// negative energy.
		return 0, &InsufficientHistoryError{Key: key, Lookback: lookback}
	}
	return delta / elapsed, nil
}

// FlatBundle is the default fallback when history is insufficient: zero PV,
// configured baseline load and tariff prices.
func FlatBundle(cfg Config, start time.Time, horizon int, step time.Duration) Bundle {
	return Bundle{
		PV:          Flat(start, step, horizon, 0),
		Load:        Flat(start, step, horizon, cfg.DefaultLoadKW*step.Hours()),
		Price:       cfg.Tariff.PriceSeries(start, horizon, step),
		ExportPrice: cfg.Tariff.ExportFlat,
	}
}
