package grpc

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/CutzuDev/itec2025/pkg/log"
)

// ServiceName is the health service name probes ask for.
const ServiceName = "chat-sync-service"

// Check reports whether one dependency is usable.
type Check func(ctx context.Context) error

// Server serves grpc.health.v1 for the chat-sync service.
type Server struct {
	grpc   *grpc.Server
	health *health.Server
	checks map[string]Check
}

func NewServer(logger zerolog.Logger, checks map[string]Check) *Server {
	s := grpc.NewServer(
		grpc.UnaryInterceptor(log.UnaryServerInterceptor(logger)),
		grpc.StreamInterceptor(log.StreamServerInterceptor(logger)),
	)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)

	return &Server{grpc: s, health: hs, checks: checks}
}

// Start listens on addr and serves in the background.
func (s *Server) Start(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	go func() {
		l := log.L()
		l.Info().Str("address", addr).Msg("grpc health server listening")
		if err := s.grpc.Serve(lis); err != nil {
			l.Error().Err(err).Msg("grpc server error")
		}
	}()
	return nil
}

// Probe runs every check once and publishes the result.
func (s *Server) Probe(ctx context.Context) bool {
	status := healthpb.HealthCheckResponse_SERVING
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			l := log.Ctx(ctx)
			l.Warn().Err(err).Str("dependency", name).Msg("health check failed")
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	s.health.SetServingStatus(ServiceName, status)
	s.health.SetServingStatus("", status)
	return status == healthpb.HealthCheckResponse_SERVING
}

// Monitor probes every interval until ctx is cancelled.
func (s *Server) Monitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.Probe(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			probeCtx, cancel := context.WithTimeout(ctx, interval)
			s.Probe(probeCtx)
			cancel()
		}
	}
}

// Stop marks the service as going away and stops the server.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}
