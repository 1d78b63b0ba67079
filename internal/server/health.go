package server

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the gRPC health service name of the pipeline daemon.
const ServiceName = "panels.Pipeline"

// HealthMonitor drives the gRPC health service from a storage check: SERVING while every
// layout relation verifies, NOT_SERVING otherwise.
type HealthMonitor struct {
	hs     *health.Server
	check  func(ctx context.Context) error
	logger *slog.Logger
}

func NewHealthMonitor(check func(ctx context.Context) error, logger *slog.Logger) *HealthMonitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthMonitor{hs: health.NewServer(), check: check, logger: logger}
}

func (m *HealthMonitor) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, m.hs)
}

// Server exposes the underlying health server.
func (m *HealthMonitor) Server() *health.Server {
	return m.hs
}

// Refresh runs the check once and publishes the status. It reports whether the check passed.
func (m *HealthMonitor) Refresh(ctx context.Context) bool {
	status := healthpb.HealthCheckResponse_SERVING
	if err := m.check(ctx); err != nil {
		m.logger.Warn("health.check_failed", "error", err)
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	m.hs.SetServingStatus("", status)
	m.hs.SetServingStatus(ServiceName, status)
	return status == healthpb.HealthCheckResponse_SERVING
}

// Run refreshes the status every interval until ctx is done, then marks the server as
// shutting down.
func (m *HealthMonitor) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	m.Refresh(ctx)
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			m.hs.Shutdown()
			return
		case <-t.C:
			m.Refresh(ctx)
		}
	}
}
