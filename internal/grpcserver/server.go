package grpcserver

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// Package grpcserver serves the standard gRPC health protocol for
// orchestrators that probe over gRPC instead of HTTP.
//
// The overall status ("") and the pipeline service status follow a periodic
// readiness probe, normally the operational store's Ping.

// ServiceName is the health entry for the pipeline API.
const ServiceName = "zoneguard.Pipeline"

// DefaultProbeInterval is how often readiness is re-checked.
const DefaultProbeInterval = 10 * time.Second

// Pinger reports whether the service can answer requests.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server is the gRPC health server
type Server struct {
	server       *grpc.Server
	healthServer *health.Server
	pinger       Pinger
	interval     time.Duration
	logger       *zap.Logger

	listener net.Listener
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewServer creates a health server probing pinger every interval.
func NewServer(pinger Pinger, interval time.Duration, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = DefaultProbeInterval
	}

	opts := []grpc.ServerOption{
		grpc.MaxRecvMsgSize(1 << 20),
		grpc.ConnectionTimeout(30 * time.Second),
	}
	s := grpc.NewServer(opts...)
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(s, healthServer)
	reflection.Register(s)

	return &Server{
		server:       s,
		healthServer: healthServer,
		pinger:       pinger,
		interval:     interval,
		logger:       logger,
	}
}

// Start listens on addr and begins probing. Use port 0 to pick a free port.
func (s *Server) Start(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = listener

	ctx, s.cancel = context.WithCancel(ctx)
	s.probe(ctx)

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.logger.Info("gRPC health server starting", zap.String("addr", listener.Addr().String()))
		if err := s.server.Serve(listener); err != nil {
			s.logger.Error("gRPC server failed", zap.Error(err))
		}
	}()
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.probe(ctx)
			}
		}
	}()
	return nil
}

// Addr is the bound listen address, valid after Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// probe sets the serving status from one readiness check.
func (s *Server) probe(ctx context.Context) {
	status := grpc_health_v1.HealthCheckResponse_SERVING
	if s.pinger != nil {
		pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := s.pinger.Ping(pctx)
		cancel()
		if err != nil {
			status = grpc_health_v1.HealthCheckResponse_NOT_SERVING
			s.logger.Warn("readiness probe failed", zap.Error(err))
		}
	}
	s.healthServer.SetServingStatus("", status)
	s.healthServer.SetServingStatus(ServiceName, status)
}

// Stop marks the service NOT_SERVING and stops gracefully, forcing the stop
// after five seconds.
func (s *Server) Stop() {
	s.logger.Info("stopping gRPC health server")
	if s.cancel != nil {
		s.cancel()
	}
	s.healthServer.Shutdown()

	stopped := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		s.logger.Warn("gRPC server forced to stop after timeout")
		s.server.Stop()
	}
	s.wg.Wait()
}
