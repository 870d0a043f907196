package health

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/rbright/modus/internal/fsm"
	"github.com/rbright/modus/internal/logging"
	"github.com/rbright/modus/internal/volume"
)

// VolumeService is the health service name that tracks the output device binding.
const VolumeService = "modus.volume"

// Server hosts the standard grpc.health.v1 service for a running agent.
// It satisfies volume.Observer so the volume service follows the device state.
type Server struct {
	listener   net.Listener
	grpcServer *grpc.Server
	health     *grpchealth.Server
	logger     *slog.Logger
}

// New listens on addr. The overall status starts SERVING and the volume service NOT_SERVING.
func New(addr string, logger *slog.Logger) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	grpcServer := grpc.NewServer()
	healthServer := grpchealth.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(VolumeService, grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	return &Server{
		listener:   listener,
		grpcServer: grpcServer,
		health:     healthServer,
		logger:     logging.OrDiscard(logger),
	}, nil
}

// Addr returns the listener address.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// SetDeviceState maps the output device state onto the volume service status.
func (s *Server) SetDeviceState(state fsm.State) {
	status := grpc_health_v1.HealthCheckResponse_NOT_SERVING
	if state == fsm.StateConnected {
		status = grpc_health_v1.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(VolumeService, status)
}

// VolumeChanged tracks the device state carried by each settled volume change.
func (s *Server) VolumeChanged(state volume.State) {
	s.SetDeviceState(state.Device)
}

// Serve runs the gRPC server until context cancellation.
func (s *Server) Serve(ctx context.Context) error {
	if s == nil {
		return errors.New("health server is nil")
	}
	defer s.Close()

	s.logger.Info("health server listening", "addr", s.Addr())
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.grpcServer.Serve(s.listener)
	}()

	select {
	case <-ctx.Done():
		s.health.Shutdown()
		s.grpcServer.GracefulStop()
		err := <-serveErr
		if err == nil || errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return fmt.Errorf("serve gRPC health: %w", err)
	case err := <-serveErr:
		if err == nil || errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return fmt.Errorf("serve gRPC health: %w", err)
	}
}

// Close releases the server. Every service reports NOT_SERVING first.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.health != nil {
		s.health.Shutdown()
	}
	if s.grpcServer != nil {
		s.grpcServer.Stop()
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
}
