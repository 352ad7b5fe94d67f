package storefront

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// HealthConfig configures the gRPC health endpoint served next to an HTTP API.
type HealthConfig struct {
	Service string
	Port    string
}

// RunHealthServer serves grpc.health.v1 on cfg.Port until ctx is done.
//
// The returned health server can be used to flip the serving status, e.g.
// to NOT_SERVING while draining.
func RunHealthServer(ctx context.Context, cfg HealthConfig, logger *zap.Logger) (*health.Server, <-chan error, error) {
	logger = OrNop(logger)

	lis, err := net.Listen("tcp", fmt.Sprintf(":%s", cfg.Port))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to listen on port %s: %w", cfg.Port, err)
	}

	s := grpc.NewServer()
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(s, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	if cfg.Service != "" {
		healthServer.SetServingStatus(cfg.Service, grpc_health_v1.HealthCheckResponse_SERVING)
	}

	logger.Info("health server started",
		zap.String("service", cfg.Service),
		zap.String("port", cfg.Port),
	)

	errc := make(chan error, 1)
	go func() {
		errc <- s.Serve(lis)
	}()
	go func() {
		<-ctx.Done()
		healthServer.Shutdown()
		s.GracefulStop()
	}()

	return healthServer, errc, nil
}

// AwaitServers blocks until the HTTP server returns or the health server
// stops. When the health server stops first, stop is called and the HTTP
// server is awaited. http.ErrServerClosed is not reported. healthErr may be
// nil when no health server runs.
func AwaitServers(serveErr, healthErr <-chan error, stop func()) error {
	select {
	case err := <-serveErr:
		return serverError(err)
	case err := <-healthErr:
		stop()
		httpErr := serverError(<-serveErr)
		if err != nil {
			return errors.Join(fmt.Errorf("health server: %w", err), httpErr)
		}
		return httpErr
	}
}

func serverError(err error) error {
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
