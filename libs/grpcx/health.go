package grpcx

import (
	"context"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/md-rashed-zaman/homelube/libs/runtime"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthServer exposes grpc.health.v1 for mesh and orchestrator probes. Its
// serving status follows the same dependency checks as /readyz.
type HealthServer struct {
	server   *grpc.Server
	health   *health.Server
	checks   []runtime.ReadyCheck
	logger   *slog.Logger
	interval time.Duration
}

func NewHealthServer(logger *slog.Logger, interval time.Duration, checks ...runtime.ReadyCheck) *HealthServer {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	srv := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(UnaryServerRequestIDInterceptor()),
	)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	return &HealthServer{
		server:   srv,
		health:   hs,
		checks:   checks,
		logger:   logger,
		interval: interval,
	}
}

// Refresh runs the checks once and publishes the overall status.
func (h *HealthServer) Refresh(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	if failures := runtime.RunChecks(ctx, h.checks); len(failures) > 0 {
		status = healthpb.HealthCheckResponse_NOT_SERVING
		h.logger.Warn("grpc health degraded", "failures", strings.Join(failures, "; "))
	}
	h.health.SetServingStatus("", status)
	return status
}

// Serve listens on addr until ctx is cancelled.
func (h *HealthServer) Serve(ctx context.Context, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	h.Refresh(ctx)
	go func() {
		ticker := time.NewTicker(h.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				h.health.Shutdown()
				h.server.GracefulStop()
				return
			case <-ticker.C:
				h.Refresh(ctx)
			}
		}
	}()

	h.logger.Info("grpc health server starting", "addr", lis.Addr().String())
	if err := h.server.Serve(lis); err != nil && err != grpc.ErrServerStopped {
		return err
	}
	return nil
}
