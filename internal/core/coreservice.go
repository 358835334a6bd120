package core

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/jo-hoe/imagebot/internal/dispatcher"
	"github.com/jo-hoe/imagebot/internal/raster"
	"github.com/jo-hoe/imagebot/internal/session"
	"github.com/jo-hoe/imagebot/internal/transform"
)

// CoreService wires the session store, the transform registry and the
// dispatcher from a ServiceConfig.
type CoreService struct {
	config     *ServiceConfig
	store      session.Store
	registry   *prometheus.Registry
	dispatcher *dispatcher.Dispatcher
}

func NewCoreService(ctx context.Context, config *ServiceConfig) (*CoreService, error) {
	transforms, err := transform.NewRegistry(config.TransformConfigs())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize transforms: %w", err)
	}

	encoder, err := raster.NewEncoder(config.Output.Format, config.Output.Quality)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize output encoder: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := dispatcher.NewMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	store, err := session.NewStore(ctx, config.SessionStore)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize session store: %w", err)
	}

	d := dispatcher.New(store, transforms,
		dispatcher.WithLogger(slog.Default()),
		dispatcher.WithMetrics(metrics),
		dispatcher.WithEncoder(encoder),
		dispatcher.WithMaxPixels(config.MaxImagePixels))

	slog.Info("core service initialized",
		"session_store", config.SessionStore.Type,
		"output_format", encoder.Format,
		"max_image_pixels", config.MaxImagePixels,
		"commands", len(transforms.Commands()))

	return &CoreService{
		config:     config,
		store:      store,
		registry:   registry,
		dispatcher: d,
	}, nil
}

func (service *CoreService) Dispatcher() *dispatcher.Dispatcher {
	return service.dispatcher
}

// Gatherer exposes the metrics registry for the /metrics endpoint.
func (service *CoreService) Gatherer() prometheus.Gatherer {
	return service.registry
}

func (service *CoreService) Close() error {
	if service.store == nil {
		return nil
	}
	if err := service.store.Close(); err != nil {
		return fmt.Errorf("failed to close session store: %w", err)
	}
	return nil
}
