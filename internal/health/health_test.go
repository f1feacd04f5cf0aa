package health

import (
	"context"
	"net"
	"testing"
	"time"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/erg0nix/acplink/internal/agentclient"
	"github.com/erg0nix/acplink/internal/observer"
)

type fakeSource struct {
	state agentclient.State
	subs  *observer.Registry[agentclient.State]
}

func newFakeSource() *fakeSource {
	return &fakeSource{state: agentclient.StateDisconnected, subs: observer.NewRegistry[agentclient.State]("state", nil)}
}

func (f *fakeSource) State() agentclient.State { return f.state }

func (f *fakeSource) OnStateChange(fn func(agentclient.State)) observer.Token {
	return f.subs.Add(fn)
}

func (f *fakeSource) set(s agentclient.State) {
	f.state = s
	f.subs.Emit(s)
}

func checkStatus(t *testing.T, s *Server) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	resp, err := s.health.Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	return resp.GetStatus()
}

func TestTrackFollowsState(t *testing.T) {
	s := NewServer(nil)
	src := newFakeSource()
	s.Track(src)

	if got := checkStatus(t, s); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("initial status = %v, want NOT_SERVING", got)
	}

	src.set(agentclient.StateConnected)
	if got := checkStatus(t, s); got != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("connected status = %v, want SERVING", got)
	}

	src.set(agentclient.StateError)
	if got := checkStatus(t, s); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("error status = %v, want NOT_SERVING", got)
	}
}

func TestServeAndCheck(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	s := NewServer(nil)
	s.SetState(agentclient.StateConnected)

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- s.Serve(ctx, lis) }()

	checkCtx, checkCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer checkCancel()

	status, err := Check(checkCtx, lis.Addr().String())
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if status != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("status = %v, want SERVING", status)
	}

	cancel()
	select {
	case err := <-served:
		if err != nil {
			t.Errorf("Serve returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
