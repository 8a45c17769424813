package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shaiso/Itemsvc/internal/api"
	"github.com/shaiso/Itemsvc/internal/config"
	"github.com/shaiso/Itemsvc/internal/mq"
	"github.com/shaiso/Itemsvc/internal/repo"
	"github.com/shaiso/Itemsvc/internal/telemetry"
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger.Info("starting itemsvc-api",
		"service", cfg.ServiceName,
		"environment", cfg.Environment,
		"metrics_endpoint", cfg.MetricsEndpoint,
		"export_interval", cfg.ExportInterval,
		"store", cfg.StoreBackend,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Метрики
	provider, err := telemetry.Setup(ctx, telemetry.Config{
		ServiceName:     cfg.ServiceName,
		Environment:     cfg.Environment,
		MetricsEndpoint: cfg.MetricsEndpoint,
		ExportInterval:  cfg.ExportInterval,
		ExportTimeout:   cfg.ExportTimeout,
	}, logger)
	if err != nil {
		logger.Error("failed to setup metrics", "error", err)
		os.Exit(1)
	}

	instruments, err := telemetry.NewInstruments(provider.MeterProvider())
	if err != nil {
		logger.Error("failed to create instruments", "error", err)
		os.Exit(1)
	}

	// Хранилище
	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open store", "backend", cfg.StoreBackend, "error", err)
		os.Exit(1)
	}
	defer closeStore()

	// События товаров (необязательно)
	var publisher api.EventPublisher
	if cfg.AMQPURL != "" {
		conn, err := mq.NewConnection(cfg.AMQPURL, logger)
		if err != nil {
			logger.Error("failed to connect to rabbitmq", "error", err)
			os.Exit(1)
		}
		defer conn.Close()

		if err := mq.SetupTopology(ctx, conn); err != nil {
			logger.Error("failed to setup topology", "error", err)
			os.Exit(1)
		}
		logger.Debug("rabbitmq topology", "info", mq.TopologyInfo())

		publisher = mq.NewPublisher(conn, logger)
		logger.Info("publishing item events", "exchange", mq.ExchangeItems)
	}

	handler := api.NewHandler(api.Config{
		Store:           store,
		Publisher:       publisher,
		Instruments:     instruments,
		MeterProvider:   provider.MeterProvider(),
		MetricsHandler:  provider.MetricsHandler(),
		Logger:          logger,
		Simulation:      cfg.Simulation,
		ServiceName:     cfg.ServiceName,
		MetricsEndpoint: cfg.MetricsEndpoint,
	})

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Запускаем сервер в горутине
	go func() {
		logger.Info("listening", "addr", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	// Graceful shutdown с таймаутом 10 секунд
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	// Последняя выгрузка метрик перед выходом
	if err := provider.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics shutdown error", "error", err)
	}

	logger.Info("stopped")
}

// openStore создаёт хранилище товаров выбранного типа.
func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (api.ItemStore, func(), error) {
	switch cfg.StoreBackend {
	case config.StoreRedis:
		rdb, err := repo.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("connected to redis")
		return repo.NewRedisItemRepo(rdb), func() { rdb.Close() }, nil

	case config.StorePostgres:
		pool, err := repo.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		r := repo.NewPgItemRepo(pool)
		if err := r.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("ensure schema: %w", err)
		}
		logger.Info("connected to database")
		return r, pool.Close, nil

	default:
		return repo.NewMemoryItemRepo(), func() {}, nil
	}
}
