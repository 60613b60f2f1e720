package observability

import (
	"context"
	"testing"
)

func TestTracingConfigFromEnvDefaults(t *testing.T) {
	t.Setenv("MOBSIM_TRACING_ENABLED", "")
	t.Setenv("MOBSIM_TRACING_EXPORTER", "")
	t.Setenv("MOBSIM_TRACING_SERVICE_NAME", "")
	t.Setenv("MOBSIM_TRACING_SAMPLE_RATIO", "")

	cfg := TracingConfigFromEnv()
	if cfg.Enabled {
		t.Fatalf("tracing should be disabled by default")
	}
	if cfg.Exporter != "stdout" || cfg.ServiceName != "mobility-simulator" || cfg.SampleRatio != 1 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestTracingConfigFromEnvOverrides(t *testing.T) {
	t.Setenv("MOBSIM_TRACING_ENABLED", "TRUE")
	t.Setenv("MOBSIM_TRACING_EXPORTER", "OTLP")
	t.Setenv("MOBSIM_TRACING_SERVICE_NAME", "sim-a")
	t.Setenv("MOBSIM_TRACING_SAMPLE_RATIO", "0.25")
	t.Setenv("MOBSIM_OTLP_ENDPOINT", "collector:4317")

	cfg := TracingConfigFromEnv()
	if !cfg.Enabled || cfg.Exporter != "otlp" || cfg.ServiceName != "sim-a" || cfg.SampleRatio != 0.25 || cfg.Endpoint != "collector:4317" {
		t.Fatalf("unexpected config: %+v", cfg)
	}

	t.Setenv("MOBSIM_TRACING_SAMPLE_RATIO", "7")
	if got := TracingConfigFromEnv().SampleRatio; got != 1 {
		t.Fatalf("out of range ratio should fall back to 1, got %v", got)
	}
}

func TestInitTracingDisabledIsNoop(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), TracingConfig{}, nil)
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	_, span := Tracer().Start(context.Background(), "noop")
	if span.SpanContext().IsSampled() {
		t.Fatalf("noop tracer should not sample")
	}
	span.End()
}

func TestInitTracingRejectsUnknownExporter(t *testing.T) {
	if _, err := InitTracing(context.Background(), TracingConfig{Enabled: true, Exporter: "zipkin"}, nil); err == nil {
		t.Fatalf("expected an error for an unknown exporter")
	}
}
