package observability

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
)

func TestTracingConfigFromEnvDefaults(t *testing.T) {
	t.Setenv("PATHSIM_TRACING_ENABLED", "")
	t.Setenv("PATHSIM_TRACING_EXPORTER", "")
	t.Setenv("PATHSIM_TRACING_SERVICE_NAME", "")
	t.Setenv("PATHSIM_TRACING_SAMPLE_RATIO", "")
	t.Setenv("PATHSIM_OTLP_ENDPOINT", "")

	cfg := TracingConfigFromEnv()
	if cfg.Enabled {
		t.Fatalf("tracing enabled by default")
	}
	if cfg.Exporter != "stdout" || cfg.ServiceName != "transport-simulator" || cfg.SampleRatio != 1 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestTracingConfigFromEnvOverrides(t *testing.T) {
	t.Setenv("PATHSIM_TRACING_ENABLED", "TRUE")
	t.Setenv("PATHSIM_TRACING_EXPORTER", "OTLP")
	t.Setenv("PATHSIM_TRACING_SERVICE_NAME", "line-7")
	t.Setenv("PATHSIM_TRACING_SAMPLE_RATIO", "0.25")
	t.Setenv("PATHSIM_OTLP_ENDPOINT", "collector:4317")

	cfg := TracingConfigFromEnv()
	want := TracingConfig{
		Enabled:     true,
		ServiceName: "line-7",
		Exporter:    "otlp",
		Endpoint:    "collector:4317",
		SampleRatio: 0.25,
	}
	if cfg != want {
		t.Fatalf("TracingConfigFromEnv = %+v, want %+v", cfg, want)
	}

	t.Setenv("PATHSIM_TRACING_SAMPLE_RATIO", "4")
	if got := TracingConfigFromEnv().SampleRatio; got != 1 {
		t.Fatalf("out-of-range ratio accepted: %v", got)
	}
}

func TestInitTracingDisabledInstallsNoop(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), TracingConfig{}, nil)
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}
	_, span := otel.Tracer("test").Start(context.Background(), "noop")
	if span.SpanContext().IsValid() {
		t.Fatalf("disabled tracing produced a recording span")
	}
	span.End()
	ShutdownWithTimeout(context.Background(), shutdown, nil)
}

func TestInitTracingRejectsUnknownExporter(t *testing.T) {
	_, err := InitTracing(context.Background(), TracingConfig{Enabled: true, Exporter: "zipkin"}, nil)
	if err == nil {
		t.Fatalf("expected error for unknown exporter")
	}
}

func TestInitTracingStdoutRecordsLayout(t *testing.T) {
	var buf bytes.Buffer
	cfg := TracingConfig{
		Enabled:     true,
		ServiceName: "transport-simulator",
		Exporter:    ExporterStdout,
		SampleRatio: 1,
		Layout:      "demo-line",
		Output:      &buf,
	}
	shutdown, err := InitTracing(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}
	t.Cleanup(func() { _, _ = InitTracing(context.Background(), TracingConfig{}, nil) })

	_, span := otel.Tracer("test").Start(context.Background(), "SimulationEngine.Step")
	if !span.SpanContext().IsValid() {
		t.Fatalf("enabled tracing produced an invalid span")
	}
	span.End()
	ShutdownWithTimeout(context.Background(), shutdown, nil)

	out := buf.String()
	for _, want := range []string{"SimulationEngine.Step", "pathsim.layout", "demo-line"} {
		if !strings.Contains(out, want) {
			t.Fatalf("exported spans missing %q: %s", want, out)
		}
	}
}
