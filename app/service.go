// Package app wires the catalog, engine components and HTTP surface into a
// runnable service.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/vehicleplus/sums/api"
	"github.com/vehicleplus/sums/api/mobile"
	"github.com/vehicleplus/sums/api/registry"
	"github.com/vehicleplus/sums/api/unit"
	"github.com/vehicleplus/sums/auth"
	"github.com/vehicleplus/sums/config"
	"github.com/vehicleplus/sums/core/catalog"
	"github.com/vehicleplus/sums/core/desired"
	"github.com/vehicleplus/sums/core/ingest"
	coremetrics "github.com/vehicleplus/sums/core/metrics"
	corenotify "github.com/vehicleplus/sums/core/notify"
	"github.com/vehicleplus/sums/core/reconcile"
	"github.com/vehicleplus/sums/core/release"
	"github.com/vehicleplus/sums/infra/compose"
	"github.com/vehicleplus/sums/infra/logger"
	"github.com/vehicleplus/sums/infra/metrics"
	"github.com/vehicleplus/sums/infra/notify"
	"github.com/vehicleplus/sums/infra/store"
	"github.com/vehicleplus/sums/internal/eventbus"
)

// Service orchestrates the OTA engine: catalog store, ingestor, desired-state
// controller, reconciler, release publisher and the HTTP server.
type Service struct {
	Publisher *release.Publisher

	store       catalog.Store
	sender      corenotify.Sender
	sink        coremetrics.MetricsSink
	srv         *http.Server
	bus         eventbus.EventBus
	log         logger.Logger
	promEnabled bool
	promPort    string
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")

	st, err := store.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	var sinks []coremetrics.MetricsSink
	if cfg.Metrics.PrometheusEnabled {
		sink, err := metrics.NewPromSink(cfg.Metrics)
		if err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("prom sink: %w", err)
		}
		sinks = append(sinks, sink)
	}
	if cfg.Metrics.InfluxEnabled {
		sink := metrics.NewInfluxSinkWithFallback(
			cfg.Metrics.InfluxURL, cfg.Metrics.InfluxToken, cfg.Metrics.InfluxOrg, cfg.Metrics.InfluxBucket)
		sinks = append(sinks, sink)
	}
	var sink coremetrics.MetricsSink
	if len(sinks) == 1 {
		sink = sinks[0]
	} else if len(sinks) > 1 {
		sink = metrics.NewMultiSink(sinks...)
	}

	bus := eventbus.New()

	sender, err := notify.New(cfg.Notify, logger.New("notify"))
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("notification sender: %w", err)
	}

	resolver := catalog.NewResolver(st)
	ingestor := ingest.NewIngestor(st, st, bus, logger.New("ingest"))
	controller := desired.NewController(st, resolver, bus, logger.New("desired"))
	reconciler := reconcile.NewReconciler(st, cfg.Registry.Host, bus, logger.New("reconcile"))
	publisher := release.NewPublisher(st, sender,
		time.Duration(cfg.Publisher.IntervalSeconds)*time.Second, bus, logger.New("release"))

	verifier := auth.NewVerifier(cfg.Auth)
	router := api.NewRouter(verifier,
		mobile.NewHandler(controller, logger.New("api-mobile")),
		unit.NewHandler(reconciler, compose.NewRenderer(), logger.New("api-unit")),
		registry.NewHandler(ingestor, logger.New("api-registry")),
	)

	svc := &Service{
		Publisher:   publisher,
		store:       st,
		sender:      sender,
		srv:         &http.Server{Addr: cfg.HTTP.Addr, Handler: router},
		bus:         bus,
		log:         logg,
		promEnabled: cfg.Metrics.PrometheusEnabled,
		promPort:    cfg.Metrics.PrometheusPort,
	}
	svc.sink = sink
	return svc, nil
}

// Run starts the service and blocks until the context is cancelled or the
// HTTP server fails.
func (s *Service) Run(ctx context.Context) error {
	if s.sink != nil {
		metrics.StartEventCollector(ctx, s.bus, s.sink)
	}
	if s.promEnabled {
		go func() {
			if err := metrics.StartPromServer(ctx, s.promPort); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	go s.Publisher.Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("http server listening on %s", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		s.log.Errorf("http shutdown: %v", err)
	}
	return nil
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	s.bus.Close()
	if err := s.sender.Close(); err != nil {
		s.log.Errorf("close sender: %v", err)
	}
	return s.store.Close()
}
