package adapter

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hausnetz/eos/core/bridge"
	"github.com/hausnetz/eos/core/measurement"
)

type stubAdapter struct {
	payload map[string]float64
}

func (s *stubAdapter) FetchMeasurements(_ context.Context, entities []string) (map[string]float64, error) {
	return s.payload, nil
}

func (s *stubAdapter) SendCommands(context.Context, []bridge.Command) error { return nil }

type captureIngestor struct {
	mu      sync.Mutex
	samples []measurement.Sample
}

func (c *captureIngestor) Ingest(_ string, samples ...measurement.Sample) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.samples = append(c.samples, samples...)
	return nil
}

func (c *captureIngestor) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.samples)
}

func TestPollerTranslatesAndIngests(t *testing.T) {
	mapping, err := bridge.NewMeasurementMapping(map[string]string{
		"pv_production": "sensor.pv",
		"battery_soc":   "sensor.soc",
	})
	require.NoError(t, err)

	a := &stubAdapter{payload: map[string]float64{"sensor.pv": 100, "sensor.soc": 0.5}}
	sink := &captureIngestor{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	StartPoller(ctx, a, mapping, sink, 10*time.Millisecond, nil)
	require.Eventually(t, func() bool { return sink.count() >= 2 }, time.Second, 5*time.Millisecond)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	keys := map[measurement.Key]bool{}
	for _, s := range sink.samples {
		keys[s.Key] = true
	}
	assert.True(t, keys[measurement.KeyPVProduction])
	assert.True(t, keys[measurement.KeyBatterySoC])
}

func TestPollerDisabledWithoutInterval(t *testing.T) {
	sink := &captureIngestor{}
	StartPoller(context.Background(), NopAdapter{}, bridge.MeasurementMapping{}, sink, 0, nil)
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, sink.count())
}
