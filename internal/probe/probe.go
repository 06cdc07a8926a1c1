// Package probe serves the standard gRPC health service and keeps it in step
// with the service's dependencies.
package probe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
)

// ServiceName is the health service name reported alongside the overall "" entry.
const ServiceName = "triage"

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config controls the probe.
type Config struct {
	Addr         string
	PollInterval time.Duration
	PingTimeout  time.Duration
	Logger       *slog.Logger
}

// Server is a gRPC server exposing grpc.health.v1.Health.
type Server struct {
	cfg    Config
	deps   map[string]Pinger
	grpc   *grpc.Server
	health *health.Server
	logger *slog.Logger
}

// New creates a probe server checking deps. It does not listen until Run.
func New(cfg Config, deps map[string]Pinger) *Server {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 10 * time.Second
	}
	if cfg.PingTimeout <= 0 {
		cfg.PingTimeout = 2 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	gs := grpc.NewServer(grpc.KeepaliveParams(keepalive.ServerParameters{
		MaxConnectionIdle: 5 * time.Minute,
	}))
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)

	return &Server{cfg: cfg, deps: deps, grpc: gs, health: hs, logger: cfg.Logger}
}

// Check pings every dependency once and updates the serving status.
func (s *Server) Check(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	for name, dep := range s.deps {
		pingCtx, cancel := context.WithTimeout(ctx, s.cfg.PingTimeout)
		err := dep.Ping(pingCtx)
		cancel()
		if err != nil {
			s.logger.Warn("Dependency unhealthy", "dependency", name, "error", err)
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
	return status
}

// Run listens on the configured address, polls dependencies and serves until
// ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, lis)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	s.Check(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("gRPC health server listening", "addr", lis.Addr().String())
		errCh <- s.grpc.Serve(lis)
	}()

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("gRPC health server shutting down")
			s.health.Shutdown()
			s.grpc.GracefulStop()
			if err := <-errCh; err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				return err
			}
			return nil
		case err := <-errCh:
			return fmt.Errorf("grpc serve: %w", err)
		case <-ticker.C:
			s.Check(ctx)
		}
	}
}
