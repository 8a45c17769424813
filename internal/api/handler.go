package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/shaiso/Itemsvc/internal/config"
	"github.com/shaiso/Itemsvc/internal/domain"
	"github.com/shaiso/Itemsvc/internal/mq"
	"github.com/shaiso/Itemsvc/internal/telemetry"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// ItemStore — хранилище товаров (memory, redis или postgres).
type ItemStore interface {
	List(ctx context.Context) ([]domain.Item, error)
	Create(ctx context.Context, in domain.ItemInput) (*domain.Item, error)
	Get(ctx context.Context, id string) (*domain.Item, error)
	Update(ctx context.Context, id string, in domain.ItemInput) (*domain.Item, error)
	Delete(ctx context.Context, id string) error
}

// EventPublisher публикует события товаров.
type EventPublisher interface {
	PublishItemEvent(ctx context.Context, typ mq.MessageType, itemID string, item *domain.Item) error
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	store          ItemStore
	publisher      EventPublisher
	instruments    *telemetry.Instruments
	meterProvider  metric.MeterProvider
	metricsHandler http.Handler
	logger         *slog.Logger

	simulation      config.Simulation
	serviceName     string
	metricsEndpoint string
}

// Config — конфигурация для создания Handler.
type Config struct {
	Store ItemStore

	// Publisher — необязательный; nil отключает события товаров.
	Publisher EventPublisher

	// Instruments — счётчики сервиса; nil заменяется на noop.
	Instruments *telemetry.Instruments

	// MeterProvider — для автоматических HTTP метрик otelhttp.
	// nil отключает их.
	MeterProvider metric.MeterProvider

	// MetricsHandler обслуживает GET /metrics; nil отключает маршрут.
	MetricsHandler http.Handler

	Logger *slog.Logger

	Simulation      config.Simulation
	ServiceName     string
	MetricsEndpoint string
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	if cfg.Instruments == nil {
		// noop провайдер не возвращает ошибок
		cfg.Instruments, _ = telemetry.NewInstruments(noop.NewMeterProvider())
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Handler{
		store:           cfg.Store,
		publisher:       cfg.Publisher,
		instruments:     cfg.Instruments,
		meterProvider:   cfg.MeterProvider,
		metricsHandler:  cfg.MetricsHandler,
		logger:          cfg.Logger,
		simulation:      cfg.Simulation,
		serviceName:     cfg.ServiceName,
		metricsEndpoint: cfg.MetricsEndpoint,
	}
}
