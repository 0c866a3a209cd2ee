// Package rpc serves the standard grpc.health.v1 service so orchestrators can
// tell whether the detection pipeline is still running.
package rpc

import (
	"ColorDetServer/logger"
	"fmt"
	"net"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health service name reported for the pipeline.
const ServiceName = "colordet.Pipeline"

type HealthServer struct {
	grpc   *grpc.Server
	health *health.Server
}

// NewHealthServer registers the health service with every status NOT_SERVING.
// Call SetServing once the pipeline starts.
func NewHealthServer() *HealthServer {
	s := grpc.NewServer()
	h := health.NewServer()
	healthpb.RegisterHealthServer(s, h)
	reflection.Register(s)
	hs := &HealthServer{grpc: s, health: h}
	hs.SetNotServing()
	return hs
}

func (h *HealthServer) SetServing() {
	h.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	h.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
}

func (h *HealthServer) SetNotServing() {
	h.health.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	h.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
}

// Serve blocks serving on lis.
func (h *HealthServer) Serve(lis net.Listener) error {
	return h.grpc.Serve(lis)
}

// GracefulStop marks everything NOT_SERVING, ends watch streams and stops the server.
func (h *HealthServer) GracefulStop() {
	h.health.Shutdown()
	h.grpc.GracefulStop()
}

// StartGRPCServer listens on port and serves in the background.
func StartGRPCServer(port int) (*HealthServer, error) {
	addr := fmt.Sprintf(":%d", port)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	hs := NewHealthServer()
	go func() {
		logger.Log().Info("gRPC health server listening", zap.String("addr", addr))
		if err := hs.Serve(lis); err != nil {
			logger.Log().Error("gRPC server stopped", zap.Error(err))
		}
	}()
	return hs, nil
}
