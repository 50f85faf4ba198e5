package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/hausnetz/eos/core/measurement"
	coremetrics "github.com/hausnetz/eos/core/metrics"
	"github.com/hausnetz/eos/core/model"
	"github.com/hausnetz/eos/infra/logger"
)

// InfluxSink writes cycle records and full dispatch plans to an InfluxDB
// instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and returns a
// NopSink if the health check fails, so a missing database never blocks
// dispatch.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordCycle writes the cycle outcome as a single point.
func (s *InfluxSink) RecordCycle(rec coremetrics.CycleRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ts := rec.Time
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	p := write.NewPointWithMeasurement("optimization_cycle").
		AddTag("status", rec.Status).
		AddTag("trigger", rec.Trigger).
		AddTag("plan_id", rec.PlanID).
		AddField("horizon", rec.Horizon).
		AddField("solve_seconds", round3(rec.SolveTime.Seconds())).
		SetTime(ts)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordPlan writes one point per plan step, timestamped at the step start,
// so dashboards can chart the committed schedule against realized flows.
func (s *InfluxSink) RecordPlan(plan *model.DispatchPlan) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for i, step := range plan.Steps {
		p := write.NewPointWithMeasurement("dispatch_step").
			AddTag("plan_id", plan.ID).
			AddTag("step", strconv.Itoa(i)).
			AddField("battery_charge_kw", round3(step.BatteryChargeKW)).
			AddField("battery_discharge_kw", round3(step.BatteryDischargeKW)).
			AddField("ev_charge_kw", round3(step.EVChargeKW)).
			AddField("grid_import_kw", round3(step.GridImportKW)).
			AddField("grid_export_kw", round3(step.GridExportKW)).
			SetTime(plan.Start.Add(time.Duration(i) * plan.StepDuration))
		if err := s.writeAPI.WritePoint(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// RecordSample persists a measurement sample.
func (s *InfluxSink) RecordSample(sample measurement.Sample) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("measurement").
		AddTag("key", sample.Key.String()).
		AddField("value", sample.Value).
		SetTime(sample.Timestamp)
	return s.writeAPI.WritePoint(ctx, p)
}

// Close releases the underlying client.
func (s *InfluxSink) Close() {
	s.client.Close()
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
