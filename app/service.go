// Package app wires the controller, device client, stores and telemetry
// into a runnable service.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/nutetra/doser/api/dosing"
	"github.com/nutetra/doser/config"
	"github.com/nutetra/doser/core/controller"
	"github.com/nutetra/doser/core/history"
	coremetrics "github.com/nutetra/doser/core/metrics"
	coremon "github.com/nutetra/doser/core/monitoring"
	"github.com/nutetra/doser/core/telemetry"
	"github.com/nutetra/doser/infra/device"
	"github.com/nutetra/doser/infra/logger"
	"github.com/nutetra/doser/infra/metrics"
	"github.com/nutetra/doser/infra/monitoring"
	"github.com/nutetra/doser/infra/mqtt"
	"github.com/nutetra/doser/internal/eventbus"
)

// Service orchestrates the dosing controller and its adapters.
type Service struct {
	Controller *controller.Controller

	cfg       *config.Config
	bus       eventbus.EventBus
	sink      coremetrics.MetricsSink
	store     history.Store
	publisher telemetry.Publisher
	log       logger.Logger
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")
	mon, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	coremon.Init(mon)

	client := device.NewClient(cfg.Device, logger.New("device_client"))

	var sinks []coremetrics.MetricsSink
	if cfg.Metrics.PrometheusEnabled {
		sink, err := metrics.NewPromSink(cfg.Metrics)
		if err != nil {
			return nil, fmt.Errorf("prom sink: %w", err)
		}
		sinks = append(sinks, sink)
	}
	if cfg.Metrics.InfluxEnabled {
		sinks = append(sinks, metrics.NewInfluxSinkWithFallback(cfg.Metrics))
	}
	var sink coremetrics.MetricsSink = coremetrics.NopSink{}
	if len(sinks) == 1 {
		sink = sinks[0]
	} else if len(sinks) > 1 {
		sink = metrics.NewMultiSink(sinks...)
	}

	store, err := cfg.History.NewStore()
	if err != nil {
		return nil, fmt.Errorf("history store: %w", err)
	}

	bus := eventbus.New()
	ctrl, err := controller.New(cfg.Controller.ToConfig(), client, client, client, store, sink, bus, logger.New("controller"))
	if err != nil {
		return nil, fmt.Errorf("controller: %w", err)
	}

	svc := &Service{
		Controller: ctrl,
		cfg:        cfg,
		bus:        bus,
		sink:       sink,
		store:      store,
		log:        logg,
	}
	if cfg.MQTT.Enabled {
		pub, err := mqtt.NewPahoPublisher(cfg.MQTT)
		if err != nil {
			return nil, fmt.Errorf("mqtt publisher: %w", err)
		}
		svc.publisher = pub
	}
	return svc, nil
}

// Run starts the service and blocks until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	go metrics.NewBridge(s.sink, s.bus, logger.New("metrics_bridge")).Run(ctx)
	if s.publisher != nil {
		go mqtt.NewBridge(s.publisher, s.bus, s.cfg.MQTT.TopicPrefix, logger.New("mqtt_bridge")).Run(ctx)
	}
	if s.cfg.Metrics.PrometheusEnabled {
		go func() {
			if err := metrics.StartPromServer(ctx, s.cfg.Metrics.PrometheusPort); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}

	srv := &http.Server{Addr: s.cfg.API.Address, Handler: s.apiMux()}
	go func() {
		s.log.Infof("control API listening on %s", s.cfg.API.Address)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Errorf("api server: %v", err)
		}
	}()

	if s.cfg.Controller.Enabled {
		s.Controller.Start()
	}

	<-ctx.Done()
	s.Controller.Stop()

	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		s.log.Errorf("api shutdown: %v", err)
	}
	return nil
}

func (s *Service) apiMux() *http.ServeMux {
	token := s.cfg.API.Token
	mux := http.NewServeMux()
	mux.Handle("/api/dosing/status", dosing.NewStatusHandler(s.Controller, token))
	mux.Handle("/api/dosing/history", dosing.NewHistoryHandler(s.Controller, token))
	mux.Handle("/api/dosing/start", dosing.NewStartHandler(s.Controller, token))
	mux.Handle("/api/dosing/stop", dosing.NewStopHandler(s.Controller, token))
	mux.Handle("/api/dosing/config", dosing.NewConfigHandler(s.Controller, token))
	mux.Handle("/api/dosing/export", dosing.NewExportHandler(s.Controller, token))
	mux.Handle("/api/dosing/exports", dosing.NewExportsHandler(s.store, token))
	return mux
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	coremon.Flush(2 * time.Second)
	if s.publisher != nil {
		s.publisher.Disconnect()
	}
	s.bus.Close()
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}
