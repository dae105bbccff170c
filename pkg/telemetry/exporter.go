// ABOUTME: OpenTelemetry exporter factory for metric readers and span exporters (stdout, OTLP/gRPC)
// ABOUTME: Metrics always go to stdout when enabled; traces go to every configured destination

package telemetry

import (
	"context"
	"crypto/tls"
	"fmt"

	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
)

// createMetricReader creates the periodic reader pushing to the stdout
// metric exporter. The collector only receives traces in this setup.
func createMetricReader(cfg Config) (sdkmetric.Reader, error) {
	exporter, err := stdoutmetric.New(
		stdoutmetric.WithWriter(cfg.output()),
		stdoutmetric.WithPrettyPrint(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout metric exporter: %w", err)
	}

	return sdkmetric.NewPeriodicReader(exporter,
		sdkmetric.WithInterval(cfg.ExportInterval),
		sdkmetric.WithTimeout(cfg.ExportTimeout),
	), nil
}

// createTraceExporters creates span exporters based on configuration.
func createTraceExporters(ctx context.Context, cfg Config) ([]sdktrace.SpanExporter, error) {
	var exporters []sdktrace.SpanExporter

	for _, name := range cfg.Exporters {
		switch name {
		case "otlp":
			exporter, err := createOTLPTraceExporter(ctx, cfg)
			if err != nil {
				return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
			}
			exporters = append(exporters, exporter)

		case "stdout":
			exporter, err := createStdoutTraceExporter(cfg)
			if err != nil {
				return nil, fmt.Errorf("failed to create stdout trace exporter: %w", err)
			}
			exporters = append(exporters, exporter)
		}
	}

	if len(exporters) == 0 {
		exporter, err := createStdoutTraceExporter(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create default stdout trace exporter: %w", err)
		}
		exporters = append(exporters, exporter)
	}

	return exporters, nil
}

// createOTLPTraceExporter creates an OTLP/gRPC trace exporter. The gRPC
// connection is established lazily on first export.
func createOTLPTraceExporter(ctx context.Context, cfg Config) (sdktrace.SpanExporter, error) {
	var creds credentials.TransportCredentials
	if cfg.OTLPInsecure {
		creds = insecure.NewCredentials()
	} else {
		creds = credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	return otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlptracegrpc.WithTimeout(cfg.ExportTimeout),
		otlptracegrpc.WithDialOption(
			grpc.WithTransportCredentials(creds),
			grpc.WithUserAgent(cfg.ServiceName+"/"+cfg.ServiceVersion),
		),
	)
}

// createStdoutTraceExporter creates a stdout trace exporter.
func createStdoutTraceExporter(cfg Config) (sdktrace.SpanExporter, error) {
	return stdouttrace.New(
		stdouttrace.WithWriter(cfg.output()),
		stdouttrace.WithPrettyPrint(),
	)
}
