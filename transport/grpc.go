package transport

import (
	"fmt"
	"net"
	"strings"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// HealthService is the service name reported by the health endpoint.
const HealthService = "meff.Node"

// GRPC serves the standard gRPC health service for a node so external tools
// (grpc_health_probe, grpcurl) can check it without speaking the peer protocol.
type GRPC struct {
	addr   string
	srv    *grpc.Server
	lis    net.Listener
	nodeID string
	health *health.Server

	wg sync.WaitGroup
}

func (g *GRPC) setupTcp() (net.Listener, error) {
	lis, err := net.Listen("tcp", g.addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen: %w", err)
	}
	return lis, nil
}

func (g *GRPC) setupServices() {
	healthpb.RegisterHealthServer(g.srv, g.health)
	g.SetServing(true)

	// Reflection for grpcurl and friends
	reflection.Register(g.srv)
}

// Start binds synchronously, so a port already in use is reported here, then
// serves in the background.
func (g *GRPC) Start() error {
	lis, err := g.setupTcp()
	if err != nil {
		return fmt.Errorf("failed to setup TCP: %w", err)
	}
	g.Serve(lis)
	return nil
}

// Serve serves on an existing listener in the background.
func (g *GRPC) Serve(lis net.Listener) {
	g.lis = lis
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		_ = g.srv.Serve(lis)
	}()
}

// Addr is the bound address once started.
func (g *GRPC) Addr() string {
	if g.lis == nil {
		return g.addr
	}
	return g.lis.Addr().String()
}

// SetServing flips both the overall and the node service status.
func (g *GRPC) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	g.health.SetServingStatus("", status)
	g.health.SetServingStatus(HealthService, status)
}

// Stop reports NOT_SERVING to watchers and shuts the server down.
func (g *GRPC) Stop() error {
	g.health.Shutdown()
	g.srv.GracefulStop()
	g.wg.Wait()
	return nil
}

func NewGRPC(addr string, nodeID string) (*GRPC, error) {
	if addr == "" || !strings.Contains(addr, ":") {
		return nil, fmt.Errorf("invalid address: %s", addr)
	}

	if nodeID == "" {
		return nil, fmt.Errorf("nodeID must be provided")
	}

	g := &GRPC{
		addr:   addr,
		srv:    grpc.NewServer(),
		nodeID: nodeID,
		health: health.NewServer(),
	}
	g.setupServices()
	return g, nil
}
