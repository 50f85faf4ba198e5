package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/hausnetz/eos/adapter"
	apimeasurements "github.com/hausnetz/eos/api/measurements"
	apiplan "github.com/hausnetz/eos/api/plan"
	"github.com/hausnetz/eos/config"
	"github.com/hausnetz/eos/core/bridge"
	"github.com/hausnetz/eos/core/constraint"
	"github.com/hausnetz/eos/core/ems"
	"github.com/hausnetz/eos/core/forecast"
	"github.com/hausnetz/eos/core/measurement"
	coremetrics "github.com/hausnetz/eos/core/metrics"
	"github.com/hausnetz/eos/core/optimizer"
	"github.com/hausnetz/eos/infra/logger"
	inframetrics "github.com/hausnetz/eos/infra/metrics"
	inframqtt "github.com/hausnetz/eos/infra/mqtt"
	"github.com/hausnetz/eos/internal/eventbus"
)

// Service wires the store, forecaster, optimizer, adapter and observability
// into a running controller.
type Service struct {
	Engine *ems.Engine
	Store  *measurement.Store

	cfg         *config.Config
	adapter     adapter.Adapter
	measMapping bridge.MeasurementMapping
	bus         eventbus.EventBus
	sink        coremetrics.MetricsSink
	log         logger.Logger
}

// New creates a Service from the configuration. No network connections are
// opened here; Run establishes them.
func New(cfg *config.Config) (*Service, error) {
	logger.SetGlobalLevel(cfg.Logging.Level)
	log := logger.New("service")

	a, err := adapter.New(cfg.Adapter.Module)
	if err != nil {
		return nil, fmt.Errorf("adapter: %w", err)
	}
	measMapping, err := bridge.NewMeasurementMapping(cfg.Adapter.MeasurementEntities)
	if err != nil {
		return nil, err
	}
	solMapping, err := bridge.NewSolutionMapping(cfg.Adapter.SolutionEntities)
	if err != nil {
		return nil, err
	}
	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}

	store := measurement.NewStore()
	bus := eventbus.New()
	engine, err := ems.New(cfg.Engine, ems.Deps{
		Store:          store,
		Provider:       forecast.NewHistoryProvider(store, cfg.Forecast),
		ForecastConfig: cfg.Forecast,
		Constraints:    constraint.NewModel(cfg.Devices),
		Optimizer:      optimizer.New(cfg.Devices, cfg.Optimizer, logger.New("optimizer")),
		Solution:       solMapping,
		Dispatcher:     a,
		Bus:            bus,
		Log:            logger.New("ems"),
	})
	if err != nil {
		return nil, err
	}

	return &Service{
		Engine:      engine,
		Store:       store,
		cfg:         cfg,
		adapter:     a,
		measMapping: measMapping,
		bus:         bus,
		sink:        sink,
		log:         log,
	}, nil
}

// Run starts all background components and blocks in the control loop until
// the context is canceled.
func (s *Service) Run(ctx context.Context) error {
	inframetrics.StartEventCollector(ctx, s.bus, s.sink)

	if s.cfg.MQTT.Broker != "" {
		pub, err := inframqtt.NewPublisher(s.cfg.MQTT)
		if err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
		defer pub.Close()
		inframqtt.StartTelemetry(ctx, s.bus, pub)
	}

	adapter.StartPoller(ctx, s.adapter, s.measMapping, s.Engine, s.cfg.Adapter.PollInterval, logger.New("poller"))
	s.startPruner(ctx)

	if port := s.cfg.Metrics.PrometheusPort; port != 0 {
		go func() {
			if err := inframetrics.StartPromServer(ctx, fmt.Sprintf(":%d", port)); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	if s.cfg.API.Addr != "" {
		go s.serveAPI(ctx)
	}

	return s.Engine.Run(ctx)
}

// Close releases the event bus.
func (s *Service) Close() {
	s.bus.Close()
}

// startPruner trims measurement history beyond what forecasting needs, with
// headroom for inspection through the API.
func (s *Service) startPruner(ctx context.Context) {
	retention := 4 * time.Duration(s.cfg.Forecast.MinLookbackHours) * time.Hour
	if retention < 24*time.Hour {
		retention = 24 * time.Hour
	}
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Store.Prune(time.Now().UTC().Add(-retention))
			}
		}
	}()
}

func (s *Service) serveAPI(ctx context.Context) {
	mux := http.NewServeMux()
	mux.Handle("/api/measurements/latest", apimeasurements.NewLatestHandler(s.Store))
	mux.Handle("/api/measurements", apimeasurements.NewIngestHandler(s.Engine, s.cfg.API.Token))
	mux.Handle("/api/plan/trigger", apiplan.NewTriggerHandler(s.Engine))
	mux.Handle("/api/plan", apiplan.NewPlanHandler(s.Engine))

	srv := &http.Server{Addr: s.cfg.API.Addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Errorf("api shutdown: %v", err)
		}
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.log.Errorf("api server: %v", err)
	}
}
