package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	"github.com/joseph-ayodele/panel-extractor/internal/async"
	"github.com/joseph-ayodele/panel-extractor/internal/bus"
	"github.com/joseph-ayodele/panel-extractor/internal/common"
	"github.com/joseph-ayodele/panel-extractor/internal/ingest"
	"github.com/joseph-ayodele/panel-extractor/internal/layout"
	"github.com/joseph-ayodele/panel-extractor/internal/pipeline"
	repo "github.com/joseph-ayodele/panel-extractor/internal/repository"
	svc "github.com/joseph-ayodele/panel-extractor/internal/server"
)

func main() {
	// Structured logger without time/level so container logs stay compact
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.Attr{}
			}
			return a
		},
	}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg, err := layout.Load(cfg.Pipeline.LayoutsFile)
	if err != nil {
		logger.Error("failed to load layouts", "file", cfg.Pipeline.LayoutsFile, "error", err)
		os.Exit(1)
	}
	logger.Info("layouts loaded", "count", reg.Len(), "file", cfg.Pipeline.LayoutsFile)

	store, err := svc.ConnectDB(ctx, cfg.Database, logger)
	if err != nil {
		os.Exit(1)
	}
	defer store.Close()

	if err := svc.PingDB(ctx, store, logger, 5*time.Second); err != nil {
		os.Exit(1)
	}
	provisioner := repo.NewProvisioner(store, logger)
	if err := provisioner.Verify(ctx, reg); err != nil {
		logger.Error("layout relations do not match, run `panelctl provision`", "error", err)
		os.Exit(1)
	}

	// Model access, instrumented
	metrics := pipeline.NewMetrics(prometheus.DefaultRegisterer)
	inv, err := svc.NewInvoker(ctx, cfg.LLM, logger)
	if err != nil {
		logger.Error("failed to build model client", "provider", cfg.LLM.Provider, "error", err)
		os.Exit(1)
	}
	inv = metrics.InstrumentInvoker(cfg.LLM.Provider, inv)

	// Optional result fan-out over NATS
	opts := []pipeline.Option{pipeline.WithMetrics(metrics)}
	if cfg.Bus.NATSURL != "" {
		pub, err := bus.NewPublisher(cfg.Bus.NATSURL, logger)
		if err != nil {
			logger.Error("failed to connect to NATS", "url", cfg.Bus.NATSURL, "error", err)
			os.Exit(1)
		}
		defer pub.Close()
		opts = append(opts, pipeline.WithSinks(bus.NewResultSink(pub, cfg.Bus.Subject)))
	}

	comps, err := svc.BuildPipeline(cfg, reg, store, inv, logger, opts...)
	if err != nil {
		logger.Error("failed to build pipeline", "error", err)
		os.Exit(1)
	}

	ledger, err := ingest.OpenLedger(cfg.Ingest.LedgerDir, logger)
	if err != nil {
		logger.Error("failed to open ledger", "dir", cfg.Ingest.LedgerDir, "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := ledger.Close(); err != nil {
			logger.Warn("failed to close ledger", "error", err)
		}
	}()

	queue := async.NewProcessorQueue(comps.Pipeline, logger,
		async.WithWorkers(cfg.Queue.Workers),
		async.WithQueueSize(cfg.Queue.Size),
		async.WithProcessTimeout(cfg.Queue.ProcessTimeout),
		async.WithLedger(ledger),
	)

	// Folder watcher feeding the queue
	if len(cfg.Ingest.WatchDirs) > 0 {
		paths, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
			Roots:       cfg.Ingest.WatchDirs,
			InitialScan: true,
			Debounce:    cfg.Ingest.Debounce,
			SkipHidden:  true,
			Logger:      logger,
		})
		if err != nil {
			logger.Error("failed to start watcher", "dirs", cfg.Ingest.WatchDirs, "error", err)
			os.Exit(1)
		}
		go feedQueue(ctx, queue, paths, errs, logger)
	}

	// gRPC health
	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		logger.Error("failed to listen on address", "addr", cfg.Server.GRPCAddr, "error", err)
		os.Exit(1)
	}
	grpcServer := grpc.NewServer()
	monitor := svc.NewHealthMonitor(func(ctx context.Context) error {
		if err := store.HealthCheck(ctx, 2*time.Second); err != nil {
			return err
		}
		return provisioner.Verify(ctx, reg)
	}, logger)
	monitor.Register(grpcServer)
	reflection.Register(grpcServer)
	go monitor.Run(ctx, 30*time.Second)

	go func() {
		logger.Info("grpc health listening", "addr", cfg.Server.GRPCAddr)
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC serve error", "error", err)
			stop()
		}
	}()

	// HTTP API
	httpServer := &http.Server{
		Addr: cfg.Server.HTTPAddr,
		Handler: svc.NewRouter(&svc.Handler{
			Runner:   comps.Pipeline,
			Registry: reg,
			DB:       store,
			Logger:   logger,
		}, cfg.Queue.ProcessTimeout),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("panel-extractor listening", "addr", cfg.Server.HTTPAddr, "layouts", reg.Len())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http serve error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
	queue.Shutdown(shutdownCtx)
	grpcServer.GracefulStop()
	logger.Info("stopped")
}

// feedQueue enqueues every path the watcher emits until both channels close.
func feedQueue(ctx context.Context, q async.Queue, paths <-chan string, errs <-chan error, logger *slog.Logger) {
	for paths != nil || errs != nil {
		select {
		case p, ok := <-paths:
			if !ok {
				paths = nil
				continue
			}
			if err := q.Enqueue(ctx, async.Job{Path: p, SubmittedAt: time.Now().UTC()}); err != nil {
				logger.Warn("watcher.enqueue_failed", "path", p, "error", err)
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			logger.Warn("watcher.error", "error", err)
		}
	}
}
