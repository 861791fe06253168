// cmd/taskhost/main.go
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	http_api "background-tasks/internal/api/http"
	"background-tasks/internal/config"
	"background-tasks/internal/dispatcher"
	"background-tasks/internal/domain"
	"background-tasks/internal/infra/etcd"
	http_infra "background-tasks/internal/infra/http"
	"background-tasks/internal/infra/memory"
	redis_infra "background-tasks/internal/infra/redis"
	shell_infra "background-tasks/internal/infra/shell"
	sqlite_infra "background-tasks/internal/infra/sqlite"
	"background-tasks/internal/metrics"
	"background-tasks/internal/scheduler"
	"background-tasks/internal/taskqueue"
	"background-tasks/internal/tracing"
	"background-tasks/internal/usecase"
	"background-tasks/internal/worker"
	"background-tasks/internal/workitem"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	otelgrpc "go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	_ "modernc.org/sqlite"
)

// dispatcherService is the gRPC health service name that reports whether the
// dispatch loop is running.
const dispatcherService = "taskhost.Dispatcher"

func main() {
	configFile := flag.String("config", "", "path to config file (default: search ./configs and . for config.yaml)")
	flag.Parse()

	// 1. Load configuration
	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// 2. Initialize logger and tracer
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	tracerShutdown, err := tracing.InitTracer("background-tasks", os.Stdout)
	if err != nil {
		log.Fatalf("failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := tracerShutdown(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", "error", err)
		}
	}()

	// 3. Create root context for lifecycle management
	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	setupGracefulShutdown(cancel, logger)

	if err := run(rootCtx, cfg, logger); err != nil {
		logger.Error("task host exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("task host shut down")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	m := metrics.New(nil)

	// Execution history
	execRepo, closeRepo, err := newExecutionRepository(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeRepo()

	// Workers
	registry := worker.NewRegistry()
	if err := workitem.Register(registry); err != nil {
		return err
	}
	httpWorker := http_infra.NewCallWorker(http_infra.Config{
		Timeout:   cfg.HttpWorker.Timeout,
		RateLimit: cfg.HttpWorker.RateLimit,
		Burst:     cfg.HttpWorker.Burst,
	}, logger)
	if err := http_infra.Register(registry, httpWorker); err != nil {
		return err
	}
	if err := shell_infra.Register(registry, shell_infra.NewCommandWorker(cfg.ShellWorker.Timeout, logger)); err != nil {
		return err
	}
	logger.Info("workers registered", "kinds", registry.Kinds())

	// Queue and dispatcher
	queue := taskqueue.New()
	m.RegisterQueueDepth(queue.Len)

	d, err := dispatcher.New(queue, registry,
		dispatcher.WithLogger(logger),
		dispatcher.WithMetrics(m),
		dispatcher.WithExecutionRepository(execRepo),
	)
	if err != nil {
		return err
	}

	// Producers
	orderService := usecase.NewOrderService(queue, execRepo, m, logger)
	schedules, err := buildSchedules(cfg.Schedules)
	if err != nil {
		return err
	}
	schedulerService := usecase.NewSchedulerService(scheduler.NewCronScheduler(orderService, logger), schedules, logger)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	http_api.NewOrderHandler(orderService, m, logger, http_api.WithShellOrders(cfg.HttpAPI.AllowShell)).RegisterRoutes(mux)
	httpServer := &http.Server{
		Addr:              cfg.HttpListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	lis, err := net.Listen("tcp", cfg.GrpcListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen for gRPC: %w", err)
	}

	// Consumer
	if err := d.Start(ctx); err != nil {
		_ = lis.Close()
		return err
	}
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(dispatcherService, healthpb.HealthCheckResponse_SERVING)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting HTTP API server", "addr", cfg.HttpListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		logger.Info("starting gRPC server", "addr", cfg.GrpcListenAddr)
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("gRPC server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return schedulerService.Start(gctx)
	})
	g.Go(func() error {
		var exitErr error
		select {
		case <-gctx.Done():
		case <-d.Done():
			exitErr = errors.New("dispatcher exited unexpectedly")
		}
		logger.Info("shutting down task host gracefully...")
		healthServer.SetServingStatus(dispatcherService, healthpb.HealthCheckResponse_NOT_SERVING)
		healthServer.Shutdown()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown failed", "error", err)
		}
		grpcServer.GracefulStop()
		return exitErr
	})

	serveErr := g.Wait()

	// Producers are down; drain the consumer.
	stopCtx, stopCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer stopCancel()
	if err := d.Stop(stopCtx); err != nil {
		if errors.Is(err, domain.ErrShutdownTimeout) {
			logger.Warn("dispatcher did not stop within shutdown timeout", "timeout", cfg.ShutdownTimeout)
		}
		return errors.Join(serveErr, err)
	}
	return serveErr
}

// newExecutionRepository builds the configured execution store and returns a
// function that releases its connections.
func newExecutionRepository(ctx context.Context, cfg *config.Config, logger *slog.Logger) (domain.ExecutionRepository, func(), error) {
	switch cfg.ExecutionStore {
	case "etcd":
		client, err := etcd.NewClient(cfg.EtcdEndpoints, cfg.EtcdTimeout)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("connected to etcd", "endpoints", cfg.EtcdEndpoints)
		return etcd.NewExecutionRepository(client, ""), func() { _ = client.Close() }, nil
	case "redis":
		client, err := redis_infra.NewClient(ctx, cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("connected to redis", "addr", cfg.RedisAddr)
		return redis_infra.NewExecutionRepository(client, ""), func() { _ = client.Close() }, nil
	case "sqlite":
		db, err := sql.Open("sqlite", cfg.SqlitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open sqlite database: %w", err)
		}
		repo, err := sqlite_infra.NewExecutionRepository(ctx, db)
		if err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		logger.Info("opened sqlite database", "path", cfg.SqlitePath)
		return repo, func() { _ = db.Close() }, nil
	default:
		return memory.NewExecutionRepository(), func() {}, nil
	}
}

func setupGracefulShutdown(cancel context.CancelFunc, logger *slog.Logger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("received signal, initiating graceful shutdown", "signal", sig.String())
		cancel()
	}()
}
