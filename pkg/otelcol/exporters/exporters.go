package exporters

import (
	"context"
	"strings"
	"time"

	"rewards-controlplane/pkg/config"

	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
)

const dialTimeout = 10 * time.Second

// New builds the OTLP span exporter for OTEL.PROTOCOL, grpc unless "http".
// Without TLS.ENABLE the collector is reached in plaintext.
func New(cfg *config.Config) (*otlptrace.Exporter, error) {
	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()

	if strings.EqualFold(cfg.Otel.Protocol, "http") {
		opts := []otlptracehttp.Option{
			otlptracehttp.WithEndpoint(cfg.Otel.Addr),
			otlptracehttp.WithCompression(otlptracehttp.GzipCompression),
		}
		if !cfg.TLS.Enable {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		return otlptrace.New(ctx, otlptracehttp.NewClient(opts...))
	}

	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.Otel.Addr),
		otlptracegrpc.WithCompressor("gzip"),
	}
	if !cfg.TLS.Enable {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	return otlptrace.New(ctx, otlptracegrpc.NewClient(opts...))
}
