// Package grpcx serves the admin gRPC endpoint. Only grpc.health.v1 is registered.
package grpcx

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/cwrk-planet/chat-gateway/pkg/logger"
)

type Server struct {
	addr   string
	srv    *grpc.Server
	health *health.Server
	log    *slog.Logger
}

func NewServer(addr string, log *slog.Logger) *Server {
	if log == nil {
		log = logger.L()
	}
	log = log.With(slog.String("component", "grpc"))

	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(UnaryServerInterceptor(log)),
		grpc.ChainStreamInterceptor(StreamServerInterceptor(log)),
	)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)

	return &Server{addr: addr, srv: srv, health: hs, log: log}
}

// SetNotServing flips every service to NOT_SERVING ahead of shutdown.
func (s *Server) SetNotServing() { s.health.Shutdown() }

func (s *Server) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("grpc listen %s: %w", s.addr, err)
	}
	return s.Serve(ctx, lis)
}

// Serve blocks until ctx is done or the listener fails.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("grpc listen", slog.String("addr", lis.Addr().String()))
		errCh <- s.srv.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		s.SetNotServing()
		s.srv.GracefulStop()
		return nil
	case err := <-errCh:
		return err
	}
}
