package transport

import (
	"context"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/cuemby/kestrel/pkg/log"
)

// PeerCallbacks is how a PeerMonitor reports liveness transitions. The
// agent implements this and passes itself in, so every transition is
// delivered onto the agent's own inbox alongside everything else.
type PeerCallbacks interface {
	NewMasterDetected(addr string)
	MasterPeerLost(addr string)
}

// PeerMonitor watches a master's gRPC health service and turns
// SERVING/NOT_SERVING/stream-error transitions into NewMasterDetected and
// MasterPeerLost calls. It uses grpc-go's built-in health checking
// subpackages rather than a hand-rolled heartbeat, since they ship
// pre-compiled and need no protoc step.
type PeerMonitor struct {
	callbacks PeerCallbacks
}

// NewPeerMonitor returns a monitor that reports transitions to cb.
func NewPeerMonitor(cb PeerCallbacks) *PeerMonitor {
	return &PeerMonitor{callbacks: cb}
}

// Watch dials addr and streams health Watch RPC updates until ctx is
// cancelled or the stream breaks. It blocks; callers run it in its own
// goroutine and cancel ctx to stop watching a peer that is being replaced.
func (m *PeerMonitor) Watch(ctx context.Context, addr string) error {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return err
	}
	defer conn.Close()

	client := grpc_health_v1.NewHealthClient(conn)
	stream, err := client.Watch(ctx, &grpc_health_v1.HealthCheckRequest{})
	if err != nil {
		m.callbacks.MasterPeerLost(addr)
		return err
	}

	wasServing := false
	l := log.WithComponent("peermonitor")

	for {
		resp, err := stream.Recv()
		if err == io.EOF || err != nil {
			if wasServing {
				m.callbacks.MasterPeerLost(addr)
			}
			if err == io.EOF {
				return nil
			}
			l.Warn().Err(err).Str("addr", addr).Msg("health watch stream broken")
			return err
		}

		switch resp.GetStatus() {
		case grpc_health_v1.HealthCheckResponse_SERVING:
			if !wasServing {
				wasServing = true
				m.callbacks.NewMasterDetected(addr)
			}
		default:
			if wasServing {
				wasServing = false
				m.callbacks.MasterPeerLost(addr)
			}
		}
	}
}
