package measurements

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hausnetz/eos/core/measurement"
)

type storeIngestor struct {
	store *measurement.Store
}

func (s *storeIngestor) Ingest(_ string, samples ...measurement.Sample) error {
	for _, sample := range samples {
		if err := s.store.Record(sample); err != nil {
			return err
		}
	}
	return nil
}

func TestIngestHandlerRecordsSamples(t *testing.T) {
	store := measurement.NewStore()
	h := NewIngestHandler(&storeIngestor{store: store}, "")

	body := `[{"key":"pv_production","timestamp":"2026-08-30T10:00:00Z","value":1234.5}]`
	req := httptest.NewRequest(http.MethodPost, "/api/measurements", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code)

	latest, err := store.Latest(measurement.KeyPVProduction)
	require.NoError(t, err)
	assert.Equal(t, 1234.5, latest.Value)
}

func TestIngestHandlerRejectsUnknownKey(t *testing.T) {
	h := NewIngestHandler(&storeIngestor{store: measurement.NewStore()}, "")
	body := `[{"key":"pv_prodction","value":1}]`
	req := httptest.NewRequest(http.MethodPost, "/api/measurements", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIngestHandlerOutOfOrderConflict(t *testing.T) {
	store := measurement.NewStore()
	require.NoError(t, store.Record(measurement.Sample{
		Key: measurement.KeyLoad, Timestamp: time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC), Value: 10,
	}))
	h := NewIngestHandler(&storeIngestor{store: store}, "")

	body := `[{"key":"load","timestamp":"2026-08-30T11:00:00Z","value":9}]`
	req := httptest.NewRequest(http.MethodPost, "/api/measurements", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestIngestHandlerRequiresToken(t *testing.T) {
	h := NewIngestHandler(&storeIngestor{store: measurement.NewStore()}, "secret")
	req := httptest.NewRequest(http.MethodPost, "/api/measurements", strings.NewReader(`[]`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/measurements", strings.NewReader(`[]`))
	req.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestLatestHandler(t *testing.T) {
	store := measurement.NewStore()
	ts := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	require.NoError(t, store.Record(measurement.Sample{Key: measurement.KeyBatterySoC, Timestamp: ts, Value: 0.55}))

	h := NewLatestHandler(store)
	req := httptest.NewRequest(http.MethodGet, "/api/measurements/latest", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var out map[string]struct {
		Timestamp time.Time `json:"timestamp"`
		Value     float64   `json:"value"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Contains(t, out, "battery_soc")
	assert.Equal(t, 0.55, out["battery_soc"].Value)
	assert.True(t, out["battery_soc"].Timestamp.Equal(ts))
}
