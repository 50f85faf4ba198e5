package measurements

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/hausnetz/eos/core/measurement"
)

// Ingestor consumes validated samples. Implemented by the cycle engine.
type Ingestor interface {
	Ingest(source string, samples ...measurement.Sample) error
}

// Snapshotter exposes the latest sample per key. Implemented by the store.
type Snapshotter interface {
	Snapshot() map[measurement.Key]measurement.Sample
}

type samplePayload struct {
	Key       string    `json:"key"`
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// NewIngestHandler returns an HTTP handler accepting samples via
// POST /api/measurements. Requests must include an Authorization header with
// "Bearer <token>" when token is non-empty. Out-of-order samples yield 409.
func NewIngestHandler(sink Ingestor, token string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if token != "" {
			auth := r.Header.Get("Authorization")
			if auth != "Bearer "+token {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		var payload []samplePayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		samples := make([]measurement.Sample, 0, len(payload))
		for _, p := range payload {
			key, err := measurement.ParseKey(p.Key)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			ts := p.Timestamp
			if ts.IsZero() {
				ts = time.Now().UTC()
			}
			samples = append(samples, measurement.Sample{Key: key, Timestamp: ts, Value: p.Value})
		}
		if err := sink.Ingest("api", samples...); err != nil {
			var ooo *measurement.OutOfOrderError
			if errors.As(err, &ooo) {
				http.Error(w, err.Error(), http.StatusConflict)
				return
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	})
}

// NewLatestHandler returns an HTTP handler exposing the latest sample per key
// via GET /api/measurements/latest.
func NewLatestHandler(store Snapshotter) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		snapshot := store.Snapshot()
		out := make(map[string]samplePayload, len(snapshot))
		for key, s := range snapshot {
			out[key.String()] = samplePayload{Key: key.String(), Timestamp: s.Timestamp, Value: s.Value}
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(out); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}
