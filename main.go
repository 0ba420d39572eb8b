package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	appOrder "github.com/Zhima-Mochi/minishop-fulfillment/internal/application/order"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/config"
	domainOrder "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/infrastructure/gateway"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/infrastructure/kafka"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/infrastructure/memory"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/infrastructure/observability/oteltrace"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/infrastructure/observability/prometrics"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/infrastructure/observability/telemetry"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/infrastructure/observability/zaplogger"
	orderworker "github.com/Zhima-Mochi/minishop-fulfillment/internal/infrastructure/order/worker"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/infrastructure/outbox"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/infrastructure/postgres"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/infrastructure/sqlite"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/observability"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/pkg/logging"
	httppresentation "github.com/Zhima-Mochi/minishop-fulfillment/internal/presentation/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	baseLogger := logging.MustNewLogger(logging.Options{
		Service: cfg.ServiceName,
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		File:    cfg.LogFile,
	})
	defer func() { _ = baseLogger.Sync() }()
	zap.ReplaceGlobals(baseLogger)

	systemLogger := logging.WithTrace(baseLogger, logging.SystemTraceID, logging.SystemSpanID)

	if err := run(cfg, baseLogger, systemLogger); err != nil {
		systemLogger.Error("service_failed", zap.Error(err))
		_ = baseLogger.Sync()
		os.Exit(1)
	}
}

func run(cfg config.Config, baseLogger, systemLogger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	counters, histograms := prometrics.Standard(prometrics.New(reg, "minishop", ""))
	appLogger := zaplogger.New(baseLogger)
	tel := telemetry.New(oteltrace.New(cfg.ServiceName), appLogger, counters, histograms)

	repo, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	accounts, products, err := buildGateways(cfg, tel)
	if err != nil {
		return err
	}

	// In-process bus; the relay forwards order events to the durable sink.
	bus := outbox.NewBus(appLogger)
	sink, sinkName, closeSink := buildSink(cfg, appLogger)
	defer closeSink()
	orderworker.New(bus, sink, sinkName, tel).Start()
	bus.Start(ctx)

	orderService := appOrder.NewService(repo, accounts, products, bus, tel)
	handler := httppresentation.NewHandler(orderService, appLogger, tel)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler.Router(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		systemLogger.Info("http_server_start",
			zap.String("addr", server.Addr),
			zap.String("store", cfg.StoreDriver),
			zap.Bool("remote_gateways", cfg.RemoteGateways()),
			zap.String("event_sink", sinkName),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			systemLogger.Error("http_server_error", zap.Error(err))
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		systemLogger.Error("http_server_shutdown_error",
			zap.Error(err),
		)
	} else {
		systemLogger.Info("http_server_stopped")
	}
	if err := bus.Stop(shutdownCtx); err != nil {
		systemLogger.Warn("event_bus_drain_incomplete", zap.Error(err))
	}
	return nil
}

func openStore(ctx context.Context, cfg config.Config) (domainOrder.Repository, func(), error) {
	switch cfg.StoreDriver {
	case config.StoreSQLite:
		store, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return store, func() { _ = store.Close() }, nil
	case config.StorePostgres:
		store, err := postgres.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres store: %w", err)
		}
		return store, store.Close, nil
	default:
		return memory.NewOrderRepository(), func() {}, nil
	}
}

func buildGateways(cfg config.Config, tel observability.Observability) (appOrder.AccountGateway, appOrder.ProductGateway, error) {
	if cfg.RemoteGateways() {
		hc := &http.Client{Timeout: cfg.GatewayTimeout}
		return gateway.NewAccountClient(cfg.AccountServiceURL, hc, tel),
			gateway.NewProductClient(cfg.ProductServiceURL, cfg.ProductBatchSize, hc, tel),
			nil
	}

	accounts := memory.NewAccountDirectory()
	products := memory.NewProductCatalog()
	if cfg.SeedFile != "" {
		seed, err := memory.LoadSeedFile(cfg.SeedFile)
		if err != nil {
			return nil, nil, err
		}
		seed.Apply(accounts, products)
	}
	return accounts, products, nil
}

func buildSink(cfg config.Config, logger observability.Logger) (domoutbox.Publisher, string, func()) {
	if len(cfg.KafkaBrokers) == 0 {
		return orderworker.NewLogSink(logger), "log", func() {}
	}
	writer := kafka.NewWriter(cfg.KafkaBrokers)
	return kafka.NewPublisher(writer, cfg.KafkaTopic, logger), "kafka", func() { _ = writer.Close() }
}
