package observability

import (
	"context"
	"errors"
	"testing"
)

func TestTracingConfigFromEnv(t *testing.T) {
	t.Setenv("RISK_TRACING_ENABLED", "TRUE")
	t.Setenv("RISK_TRACING_EXPORTER", "OTLP")
	t.Setenv("RISK_TRACING_SERVICE_NAME", "risk-test")
	t.Setenv("RISK_OTLP_ENDPOINT", "collector:4317")
	t.Setenv("RISK_TRACING_SAMPLE_RATIO", "0.25")

	cfg := TracingConfigFromEnv()
	if !cfg.Enabled || cfg.Exporter != "otlp" || cfg.ServiceName != "risk-test" ||
		cfg.Endpoint != "collector:4317" || cfg.SampleRatio != 0.25 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestTracingConfigIgnoresBadRatio(t *testing.T) {
	t.Setenv("RISK_TRACING_SAMPLE_RATIO", "2")
	if got := TracingConfigFromEnv().SampleRatio; got != 1.0 {
		t.Fatalf("SampleRatio = %v, want default 1.0", got)
	}
}

func TestInitTracingDisabled(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), TracingConfig{}, nil)
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestInitTracingRejectsUnknownExporter(t *testing.T) {
	_, err := InitTracing(context.Background(), TracingConfig{Enabled: true, Exporter: "zipkin"}, nil)
	if err == nil {
		t.Fatalf("expected error for unsupported exporter")
	}
}

func TestShutdownWithTimeoutSwallowsErrors(t *testing.T) {
	called := false
	ShutdownWithTimeout(context.Background(), func(ctx context.Context) error {
		called = true
		if _, ok := ctx.Deadline(); !ok {
			t.Errorf("expected a deadline on the shutdown context")
		}
		return errors.New("flush failed")
	}, nil)
	if !called {
		t.Fatalf("shutdown func was not invoked")
	}
	ShutdownWithTimeout(context.Background(), nil, nil)
}
