// Package observability provides OpenTelemetry integration for distributed tracing.
//
// # Architecture: local collector mode
//
// Traces are exported over OTLP HTTP to a collector running next to the
// service (OpenTelemetry Collector, Datadog Agent, Grafana Alloy, or any
// other OTLP receiver on the default port 4318). Exporting to a local
// collector instead of a vendor endpoint keeps credentials out of the
// application and gives us local buffering when the backend is slow.
//
// Genkit instruments every flow, model call, and retriever call with
// OpenTelemetry spans; registering a span processor on its
// TracerProvider is all that is needed to see the full RAG pipeline
// (condense → retrieve → generate) as one trace.
//
// Tracing is opt-in via config and is never a correctness dependency:
// when the exporter cannot be built the service runs untraced.
//
// # Verify the pipeline
//
// Test the collector endpoint:
//
//	curl -v http://localhost:4318/v1/traces
//
// # Configuration
//
// Config file (~/.ragagent/config.yaml):
//
//	observability:
//	  enabled: true
//	  agent_host: "localhost:4318"
//	  environment: "dev"
//	  service_name: "ragagent"
package observability

import (
	"context"
	"log/slog"
	"os"

	"github.com/firebase/genkit/go/core/tracing"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Config for OTLP trace export.
type Config struct {
	// AgentHost is the local collector's OTLP HTTP endpoint (default: localhost:4318)
	AgentHost string
	// Environment is the deployment environment (dev, staging, prod)
	Environment string
	// ServiceName is the service name shown in the tracing backend
	ServiceName string
}

// DefaultAgentHost is the default OTLP HTTP endpoint of a local collector.
const DefaultAgentHost = "localhost:4318"

// Setup registers an OTLP exporter with Genkit's TracerProvider.
// Traces are sent to the local collector via OTLP HTTP protocol.
//
// Returns a shutdown function that flushes pending spans.
// If AgentHost is empty, uses DefaultAgentHost (localhost:4318).
func Setup(ctx context.Context, cfg Config) (shutdown func(context.Context) error, err error) {
	agentHost := cfg.AgentHost
	if agentHost == "" {
		agentHost = DefaultAgentHost
	}

	// Genkit's TracerProvider reads the service identity from the
	// standard OTEL environment variables.
	if cfg.ServiceName != "" {
		_ = os.Setenv("OTEL_SERVICE_NAME", cfg.ServiceName)
	}
	if cfg.Environment != "" {
		_ = os.Setenv("OTEL_RESOURCE_ATTRIBUTES", "deployment.environment="+cfg.Environment)
	}

	// The collector handles authentication and forwarding to the backend
	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(agentHost),
		otlptracehttp.WithInsecure(), // localhost doesn't need TLS
	)
	if err != nil {
		slog.Warn("failed to create trace exporter, tracing disabled", "error", err)
		return func(context.Context) error { return nil }, nil
	}

	processor := sdktrace.NewBatchSpanProcessor(exporter)
	tracing.TracerProvider().RegisterSpanProcessor(processor)

	slog.Debug("tracing enabled",
		"agent", agentHost,
		"service", cfg.ServiceName,
		"environment", cfg.Environment,
	)

	// Create a startup span to verify the pipeline works
	tracer := tracing.TracerProvider().Tracer("ragagent-init")
	_, span := tracer.Start(ctx, "ragagent.init")
	span.End()

	return tracing.TracerProvider().Shutdown, nil
}
