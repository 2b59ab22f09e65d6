package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/signalsfoundry/transport-simulator/core"
	"github.com/signalsfoundry/transport-simulator/internal/dashboard"
	"github.com/signalsfoundry/transport-simulator/internal/logging"
	"github.com/signalsfoundry/transport-simulator/internal/observability"
	"github.com/signalsfoundry/transport-simulator/internal/serve"
	"github.com/signalsfoundry/transport-simulator/internal/sim"
	"github.com/signalsfoundry/transport-simulator/kb"
	"github.com/signalsfoundry/transport-simulator/model"
	"github.com/signalsfoundry/transport-simulator/timectrl"
)

type config struct {
	LayoutPath  string
	Duration    time.Duration
	Tick        time.Duration
	Accelerated bool
	MetricsAddr string
	EventsAddr  string
	GRPCAddr    string
	Dashboard   bool

	// Registry defaults to the global Prometheus registry.
	Registry prometheus.Registerer
	// TraceOutput receives stdout spans; nil means os.Stdout.
	TraceOutput io.Writer
}

func main() {
	cfg := config{}
	flag.StringVar(&cfg.LayoutPath, "layout", "configs/demo_layout.json", "path to a JSON layout")
	flag.DurationVar(&cfg.Duration, "duration", 60*time.Second, "simulated time to run; 0 runs until interrupted")
	flag.DurationVar(&cfg.Tick, "tick", 20*time.Millisecond, "simulation step")
	flag.BoolVar(&cfg.Accelerated, "accelerated", false, "step as fast as possible instead of in real time")
	flag.StringVar(&cfg.MetricsAddr, "metrics-addr", ":9090", "HTTP address for Prometheus /metrics (empty disables)")
	flag.StringVar(&cfg.EventsAddr, "events-addr", ":8080", "HTTP address for state and SSE events (empty disables)")
	flag.StringVar(&cfg.GRPCAddr, "grpc-addr", ":50051", "TCP address for gRPC health (empty disables)")
	flag.BoolVar(&cfg.Dashboard, "dashboard", false, "show the terminal dashboard")
	logFile := flag.String("log-file", "simulator.log", "log destination while the dashboard owns the terminal")
	flag.Parse()

	log := logging.NewFromEnv()
	if cfg.Dashboard {
		f, err := os.OpenFile(*logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "open log file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		cfg.TraceOutput = f
		log = logging.New(logging.Config{
			Level:  os.Getenv("LOG_LEVEL"),
			Format: os.Getenv("LOG_FORMAT"),
			Output: f,
		})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error(ctx, "simulator failed", logging.Err(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config, log logging.Logger) error {
	ctx, log = logging.WithRunLogger(ctx, log)

	layout, err := loadLayout(cfg.LayoutPath)
	if err != nil {
		return err
	}

	tracingCfg := observability.TracingConfigFromEnv()
	tracingCfg.Layout = layout.Name
	tracingCfg.Output = cfg.TraceOutput
	shutdownTracing, err := observability.InitTracing(ctx, tracingCfg, log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	simMetrics, err := observability.NewSimCollector(cfg.Registry)
	if err != nil {
		return fmt.Errorf("init simulation metrics: %w", err)
	}
	apiMetrics, err := observability.NewAPICollector(cfg.Registry)
	if err != nil {
		return fmt.Errorf("init api metrics: %w", err)
	}

	sc, err := core.BuildScenario(layout, log, core.WithMetricsRecorder(simMetrics))
	if err != nil {
		return err
	}

	store := kb.NewKnowledgeBase()
	events := serve.NewEventStream(store, log)
	defer events.Close()

	var runnerOpts []sim.RunnerOption
	var grpcSrv *serve.GRPCServer
	if cfg.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			return fmt.Errorf("listen for gRPC on %q: %w", cfg.GRPCAddr, err)
		}
		grpcSrv = serve.NewGRPCServer(log, apiMetrics)
		go func() {
			if err := grpcSrv.Serve(lis); err != nil {
				log.Warn(ctx, "gRPC server exited", logging.Err(err))
			}
		}()
		runnerOpts = append(runnerOpts, sim.WithStatusReporter(grpcSrv))
	}

	stateSrv := serve.ListenAndServe(cfg.EventsAddr, serve.NewStateHandler(store, events), "state", log)
	metricsSrv := serve.ListenAndServe(cfg.MetricsAddr, observability.HandlerFor(simMetrics.Gatherer()), "metrics", log)

	runner := sim.NewRunner(sc, store, log, runnerOpts...)

	mode := timectrl.RealTime
	if cfg.Accelerated {
		mode = timectrl.Accelerated
	}
	tc := timectrl.NewTimeController(time.Now().UTC(), cfg.Tick, mode)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	dashDone := make(chan struct{})
	if cfg.Dashboard {
		go func() {
			defer close(dashDone)
			defer cancel()
			if err := dashboard.New(store).Run(runCtx, 100*time.Millisecond); err != nil {
				log.Warn(ctx, "dashboard exited", logging.Err(err))
			}
		}()
	} else {
		close(dashDone)
	}

	runErr := runner.Run(runCtx, tc, cfg.Duration)
	cancel()
	<-dashDone

	shutdownCtx, stopShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopShutdown()
	if grpcSrv != nil {
		grpcSrv.Stop(shutdownCtx)
	}
	events.Close()
	for _, srv := range []*http.Server{stateSrv, metricsSrv} {
		if srv != nil {
			_ = srv.Shutdown(shutdownCtx)
		}
	}

	if errors.Is(runErr, context.Canceled) {
		log.Info(ctx, "simulation interrupted")
		return nil
	}
	return runErr
}

func loadLayout(path string) (*model.Layout, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open layout %q: %w", path, err)
	}
	defer f.Close()
	return core.LoadLayout(f)
}
