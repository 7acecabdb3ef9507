package health

import (
	"context"
	"time"

	"go.uber.org/zap"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Watch keeps the gRPC health server in line with Check until ctx is done.
// Processes without an HTTP listener, such as the worker, expose readiness
// this way.
func Watch(ctx context.Context, svc HealthService, srv *grpchealth.Server, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := healthpb.HealthCheckResponse_UNKNOWN
	for {
		status := healthpb.HealthCheckResponse_SERVING
		if svc.Check(ctx).Status != StatusHealthy {
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
		if status != last {
			zap.L().Info("health status changed", zap.Stringer("status", status))
			last = status
		}
		srv.SetServingStatus("", status)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
