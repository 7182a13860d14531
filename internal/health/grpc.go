package health

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the gRPC health service name reported alongside the overall ("") status.
const ServiceName = "docsite.api"

// GRPCServer exposes the monitor through the standard gRPC health protocol
// so orchestrators can probe the service without HTTP.
type GRPCServer struct {
	monitor  *Monitor
	health   *grpchealth.Server
	server   *grpc.Server
	interval time.Duration
}

// NewGRPCServer creates a gRPC health server that re-evaluates the monitor every interval.
func NewGRPCServer(monitor *Monitor, interval time.Duration) *GRPCServer {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	hs := grpchealth.NewServer()
	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, hs)

	return &GRPCServer{
		monitor:  monitor,
		health:   hs,
		server:   srv,
		interval: interval,
	}
}

// Serve syncs the serving status and blocks serving on lis until Stop.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	s.Sync(ctx)
	go s.watch(ctx)

	if err := s.server.Serve(lis); err != nil && err != grpc.ErrServerStopped {
		return fmt.Errorf("grpc health server failed: %w", err)
	}
	return nil
}

// Sync copies the current monitor status into the gRPC health server.
func (s *GRPCServer) Sync(ctx context.Context) {
	report := s.monitor.CheckHealth(ctx)

	status := healthpb.HealthCheckResponse_SERVING
	if report.SystemStatus == StatusCritical {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

func (s *GRPCServer) watch(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sync(ctx)
		}
	}
}

// Stop marks every service as not serving and stops the server.
func (s *GRPCServer) Stop(ctx context.Context) {
	s.health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		slog.Warn("gRPC health server did not stop in time, forcing")
		s.server.Stop()
	}
}
