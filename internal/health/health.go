// Package health reports the agent connection through the standard gRPC
// health checking protocol.
package health

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/erg0nix/acplink/internal/agentclient"
	"github.com/erg0nix/acplink/internal/observer"
)

// ServiceName is the health service reporting the agent connection. The
// empty service name mirrors it.
const ServiceName = "acplink.AgentConnection"

// StateSource is what Track needs from a connection.
type StateSource interface {
	State() agentclient.State
	OnStateChange(func(agentclient.State)) observer.Token
}

type Server struct {
	grpc   *grpc.Server
	health *health.Server
	log    *slog.Logger
}

func NewServer(log *slog.Logger) *Server {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	s := &Server{
		grpc:   grpc.NewServer(),
		health: health.NewServer(),
		log:    log.With("component", "health"),
	}
	healthpb.RegisterHealthServer(s.grpc, s.health)
	s.SetState(agentclient.StateDisconnected)
	return s
}

// Track follows src's state from now on.
func (s *Server) Track(src StateSource) observer.Token {
	token := src.OnStateChange(s.SetState)
	s.SetState(src.State())
	return token
}

// SetState maps a connection state to a serving status.
func (s *Server) SetState(state agentclient.State) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if state == agentclient.StateConnected {
		status = healthpb.HealthCheckResponse_SERVING
	}

	s.health.SetServingStatus(ServiceName, status)
	s.health.SetServingStatus("", status)
	s.log.Debug("health updated", "state", state, "status", status.String())
}

// Serve answers health checks on lis until ctx ends.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	go func() {
		<-ctx.Done()
		s.health.Shutdown()
		s.grpc.GracefulStop()
	}()

	s.log.Info("health listening", "address", lis.Addr().String())
	if err := s.grpc.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("health: serve: %w", err)
	}
	return nil
}

// ListenAndServe listens on bind and serves until ctx ends.
func (s *Server) ListenAndServe(ctx context.Context, bind string) error {
	lis, err := net.Listen("tcp", bind)
	if err != nil {
		return fmt.Errorf("health: listen %s: %w", bind, err)
	}
	return s.Serve(ctx, lis)
}

// Check asks the health service at addr for the connection status.
func Check(ctx context.Context, addr string) (healthpb.HealthCheckResponse_ServingStatus, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, fmt.Errorf("health: dial %s: %w", addr, err)
	}
	defer conn.Close()

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, fmt.Errorf("health: check %s: %w", addr, err)
	}
	return resp.GetStatus(), nil
}
