// Package serve exposes a running simulation over the network: a gRPC
// health endpoint, server-sent snapshot events and Prometheus metrics.
package serve

import (
	"context"
	"net"

	"github.com/signalsfoundry/transport-simulator/internal/logging"
	"github.com/signalsfoundry/transport-simulator/internal/observability"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// SimulationService is the health service name reported while a run is active.
const SimulationService = "pathsim.Simulation"

// GRPCServer serves gRPC health and reflection for the simulator.
type GRPCServer struct {
	srv    *grpc.Server
	health *health.Server
	log    logging.Logger
}

// NewGRPCServer builds a server with tracing, per-call logging and RPC
// metrics. api may be nil.
func NewGRPCServer(log logging.Logger, api *observability.APICollector) *GRPCServer {
	if log == nil {
		log = logging.Noop()
	}
	srv := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			LoggerUnaryServerInterceptor(log),
			TracingUnaryServerInterceptor(),
			api.UnaryServerInterceptor(),
		),
		grpc.ChainStreamInterceptor(api.StreamServerInterceptor()),
	)

	hs := health.NewServer()
	hs.SetServingStatus(SimulationService, healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(srv, hs)
	reflection.Register(srv)

	return &GRPCServer{srv: srv, health: hs, log: log}
}

// SetRunning flips the simulation health status.
func (g *GRPCServer) SetRunning(running bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if running {
		status = healthpb.HealthCheckResponse_SERVING
	}
	g.health.SetServingStatus(SimulationService, status)
	g.log.Debug(context.Background(), "health status changed",
		logging.String("service", SimulationService),
		logging.String("status", status.String()),
	)
}

// Serve accepts connections on lis until Stop is called.
func (g *GRPCServer) Serve(lis net.Listener) error {
	g.log.Info(context.Background(), "serving gRPC", logging.String("addr", lis.Addr().String()))
	return g.srv.Serve(lis)
}

// Stop marks every service as not serving and drains in-flight calls. Open
// streams such as health Watch are cut once ctx is done.
func (g *GRPCServer) Stop(ctx context.Context) {
	g.health.Shutdown()

	done := make(chan struct{})
	go func() {
		g.srv.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		g.srv.Stop()
		<-done
	}
}
