package measurement

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Sample is a single time-stamped reading for a canonical key.
// Energy readings are in kWh, SoC readings are fractions in [0,1].
type Sample struct {
	Key       Key       `json:"key"`
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// OutOfOrderError reports a sample older than the latest stored sample for its
// key when no backfill was requested.
type OutOfOrderError struct {
	Key    Key
	Sample time.Time
	Latest time.Time
}

func (e *OutOfOrderError) Error() string {
	return fmt.Sprintf("measurement: out-of-order sample for %s: %s precedes %s",
		e.Key, e.Sample.Format(time.RFC3339), e.Latest.Format(time.RFC3339))
}

// NotAvailableError reports that no sample exists for a key.
type NotAvailableError struct {
	Key Key
}

func (e *NotAvailableError) Error() string {
	return fmt.Sprintf("measurement: no sample available for %s", e.Key)
}

// Store buffers time-stamped readings per key. Adapters write concurrently
// while the control cycle takes one consistent snapshot per optimization.
type Store struct {
	mu      sync.RWMutex
	samples map[Key][]Sample
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{samples: make(map[Key][]Sample)}
}

// Record appends the sample, rejecting it with OutOfOrderError if its
// timestamp precedes the latest stored sample for the key. A sample at the
// exact latest timestamp replaces the stored value.
func (s *Store) Record(sample Sample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	series := s.samples[sample.Key]
	if n := len(series); n > 0 {
		last := series[n-1].Timestamp
		if sample.Timestamp.Before(last) {
			return &OutOfOrderError{Key: sample.Key, Sample: sample.Timestamp, Latest: last}
		}
		if sample.Timestamp.Equal(last) {
			series[n-1] = sample
			return nil
		}
	}
	s.samples[sample.Key] = append(series, sample)
	return nil
}

// RecordBackfill inserts a sample at its timestamp position regardless of
// ordering. Existing samples at the same timestamp are replaced.
func (s *Store) RecordBackfill(sample Sample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	series := s.samples[sample.Key]
	i := sort.Search(len(series), func(i int) bool {
		return !series[i].Timestamp.Before(sample.Timestamp)
	})
	if i < len(series) && series[i].Timestamp.Equal(sample.Timestamp) {
		series[i] = sample
		return
	}
	series = append(series, Sample{})
	copy(series[i+1:], series[i:])
	series[i] = sample
	s.samples[sample.Key] = series
}

// Latest returns the most recent sample for the key.
func (s *Store) Latest(key Key) (Sample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	series := s.samples[key]
	if len(series) == 0 {
		return Sample{}, &NotAvailableError{Key: key}
	}
	return series[len(series)-1], nil
}

// Window returns the samples for key within [from, to), oldest first. The
// result is empty, not an error, when no samples fall in the range.
func (s *Store) Window(key Key, from, to time.Time) []Sample {
	s.mu.RLock()
	defer s.mu.RUnlock()
	series := s.samples[key]
	var out []Sample
	for _, sample := range series {
		if sample.Timestamp.Before(from) || !sample.Timestamp.Before(to) {
			continue
		}
		out = append(out, sample)
	}
	return out
}

// Snapshot returns the latest sample for every key that has one, taken under a
// single lock so one cycle never mixes readings from different instants of the
// store's history.
func (s *Store) Snapshot() map[Key]Sample {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := make(map[Key]Sample, len(s.samples))
	for key, series := range s.samples {
		if len(series) > 0 {
			snap[key] = series[len(series)-1]
		}
	}
	return snap
}

// Prune drops samples older than the cutoff, keeping at least the latest
// sample per key.
func (s *Store) Prune(before time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, series := range s.samples {
		i := 0
		for i < len(series)-1 && series[i].Timestamp.Before(before) {
			i++
		}
		if i > 0 {
			s.samples[key] = append([]Sample(nil), series[i:]...)
		}
	}
}
