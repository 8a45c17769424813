package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// ServiceVersion — версия сервиса в ресурсе телеметрии.
const ServiceVersion = "1.0.0"

// exportErrorLogInterval — не чаще одного лога об ошибке выгрузки за интервал.
const exportErrorLogInterval = 30 * time.Second

// Config — параметры конвейера метрик.
type Config struct {
	ServiceName string
	Environment string

	// MetricsEndpoint — полный URL приёмника OTLP/HTTP.
	// Пустая строка отключает OTLP выгрузку, остаётся только /metrics.
	MetricsEndpoint string

	ExportInterval time.Duration
	ExportTimeout  time.Duration
}

// Provider — MeterProvider сервиса с OTLP и Prometheus читателями.
type Provider struct {
	mp       *sdkmetric.MeterProvider
	registry *prometheus.Registry
	logger   *slog.Logger

	shutdownOnce sync.Once
	shutdownErr  error
}

// Setup собирает конвейер метрик:
//   - ресурс с service.name, service.version и deployment.environment;
//   - PeriodicReader поверх otlpmetrichttp (без повторов);
//   - Prometheus exporter в собственном реестре для GET /metrics.
//
// Ошибки выгрузки логируются через otel error handler и не
// затрагивают обработку запросов.
func Setup(ctx context.Context, cfg Config, logger *slog.Logger) (*Provider, error) {
	res, err := resource.New(ctx,
		resource.WithTelemetrySDK(),
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(ServiceVersion),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	promExporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}

	opts := []sdkmetric.Option{
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(promExporter),
	}

	if cfg.MetricsEndpoint != "" {
		otlpExporter, err := otlpmetrichttp.New(ctx,
			otlpmetrichttp.WithEndpointURL(cfg.MetricsEndpoint),
			otlpmetrichttp.WithTimeout(cfg.ExportTimeout),
			otlpmetrichttp.WithRetry(otlpmetrichttp.RetryConfig{Enabled: false}),
		)
		if err != nil {
			return nil, fmt.Errorf("create otlp exporter: %w", err)
		}

		opts = append(opts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(otlpExporter,
			sdkmetric.WithInterval(cfg.ExportInterval),
			sdkmetric.WithTimeout(cfg.ExportTimeout),
		)))
	}

	otel.SetErrorHandler(exportErrorHandler(logger, NewRateLimiter(exportErrorLogInterval)))

	logger.Info("metrics pipeline configured",
		"service", cfg.ServiceName,
		"environment", cfg.Environment,
		"otlp_endpoint", cfg.MetricsEndpoint,
		"export_interval", cfg.ExportInterval,
	)

	return &Provider{
		mp:       sdkmetric.NewMeterProvider(opts...),
		registry: registry,
		logger:   logger,
	}, nil
}

// MeterProvider возвращает SDK MeterProvider.
func (p *Provider) MeterProvider() *sdkmetric.MeterProvider {
	return p.mp
}

// MetricsHandler отдаёт метрики в формате Prometheus.
func (p *Provider) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

// ForceFlush немедленно выгружает накопленные измерения.
func (p *Provider) ForceFlush(ctx context.Context) error {
	return p.mp.ForceFlush(ctx)
}

// Shutdown выгружает остаток измерений и останавливает читателей.
// Повторные вызовы возвращают результат первого.
func (p *Provider) Shutdown(ctx context.Context) error {
	p.shutdownOnce.Do(func() {
		p.shutdownErr = p.mp.Shutdown(ctx)
		if p.shutdownErr != nil && !errors.Is(p.shutdownErr, context.DeadlineExceeded) {
			p.logger.Warn("metrics shutdown failed", "error", p.shutdownErr)
		}
	})
	return p.shutdownErr
}

// exportErrorHandler логирует ошибки SDK с ограничением частоты.
func exportErrorHandler(logger *slog.Logger, limiter *RateLimiter) otel.ErrorHandler {
	return otel.ErrorHandlerFunc(func(err error) {
		if !limiter.Allow() {
			return
		}
		logger.Warn("metrics export failed", "error", err)
	})
}

// RateLimiter пропускает не больше одного события за интервал.
type RateLimiter struct {
	interval time.Duration
	lastTime time.Time
	mu       sync.Mutex
}

// NewRateLimiter создаёт RateLimiter.
func NewRateLimiter(interval time.Duration) *RateLimiter {
	return &RateLimiter{interval: interval}
}

// Allow сообщает, можно ли выполнить действие сейчас.
func (r *RateLimiter) Allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	if r.lastTime.IsZero() || now.Sub(r.lastTime) >= r.interval {
		r.lastTime = now
		return true
	}
	return false
}
