package rpc

import (
	"fmt"
	"net"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/banshee-data/spatialpointer/internal/monitoring"
)

const (
	maxMsgSize  = 4 * 1024 * 1024
	stopTimeout = 5 * time.Second
)

// Server hosts the Pointer and health services on one listener.
type Server struct {
	svc        *Service
	grpcServer *grpc.Server
	health     *health.Server

	mu       sync.Mutex
	listener net.Listener
	wg       sync.WaitGroup
}

// NewServer creates a server for svc. Nothing listens until Start.
func NewServer(svc *Service, opts ...grpc.ServerOption) *Server {
	opts = append([]grpc.ServerOption{
		grpc.MaxRecvMsgSize(maxMsgSize),
		grpc.MaxSendMsgSize(maxMsgSize),
	}, opts...)
	s := &Server{
		svc:        svc,
		grpcServer: grpc.NewServer(opts...),
		health:     health.NewServer(),
	}
	svc.Register(s.grpcServer)
	healthpb.RegisterHealthServer(s.grpcServer, s.health)
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

// GRPCServer returns the underlying server so callers can register more
// services before Start.
func (s *Server) GRPCServer() *grpc.Server { return s.grpcServer }

// Start listens on addr and serves in the background.
func (s *Server) Start(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.Serve(lis)
	return nil
}

// Serve serves on lis in the background.
func (s *Server) Serve(lis net.Listener) {
	s.mu.Lock()
	s.listener = lis
	s.mu.Unlock()

	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	monitoring.Logf("[gRPC] pointer service listening on %s", lis.Addr())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.grpcServer.Serve(lis); err != nil {
			monitoring.Logf("[gRPC] server error: %v", err)
		}
	}()
}

// Addr returns the listening address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop marks the service not serving, closes open event streams and
// waits for the serve goroutine. Calls still running after stopTimeout
// are cancelled.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.svc.Close()

	stopped := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(stopTimeout):
		monitoring.Logf("[gRPC] graceful stop timed out; closing connections")
		s.grpcServer.Stop()
		<-stopped
	}
	s.wg.Wait()
	monitoring.Logf("[gRPC] pointer service stopped")
}
