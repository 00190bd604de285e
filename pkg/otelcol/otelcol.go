package otelcol

import (
	"context"

	"rewards-controlplane/pkg/config"
	"rewards-controlplane/pkg/otelcol/exporters"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module installs global tracer and meter providers. Spans are exported only
// when OTEL.ADDR is set.
var Module = fx.Module("otelcol",
	fx.Provide(
		ProvideResource,
		ProvideTracerProvider,
		ProvideMeterProvider,
	),
)

func ProvideResource(cfg *config.Config) *resource.Resource {
	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		attribute.String("service.name", cfg.AppName),
		attribute.String("service.version", cfg.AppVersion),
		attribute.String("deployment.environment", cfg.AppEnv),
	))
	if err != nil {
		return resource.Default()
	}
	return res
}

func ProvideTrace(exporter sdktrace.SpanExporter, opts ...sdktrace.TracerProviderOption) *sdktrace.TracerProvider {
	if len(opts) == 0 {
		opts = []sdktrace.TracerProviderOption{sdktrace.WithResource(resource.Default())}
	}
	if exporter != nil {
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}
	return sdktrace.NewTracerProvider(opts...)
}

func ProvideMetric(opts ...sdkmetric.Option) *sdkmetric.MeterProvider {
	if len(opts) == 0 {
		opts = []sdkmetric.Option{sdkmetric.WithResource(resource.Default())}
	}
	return sdkmetric.NewMeterProvider(opts...)
}

func ProvideTracerProvider(lc fx.Lifecycle, cfg *config.Config, res *resource.Resource) (trace.TracerProvider, error) {
	var exporter sdktrace.SpanExporter
	if cfg.Otel.Addr != "" {
		exp, err := exporters.New(cfg)
		if err != nil {
			return nil, err
		}
		exporter = exp
		zap.L().Info("otel trace exporter configured", zap.String("addr", cfg.Otel.Addr), zap.String("protocol", cfg.Otel.Protocol))
	}

	tp := ProvideTrace(exporter, sdktrace.WithResource(res))
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return tp.Shutdown(ctx)
		},
	})
	return tp, nil
}

func ProvideMeterProvider(lc fx.Lifecycle, res *resource.Resource) metric.MeterProvider {
	mp := ProvideMetric(sdkmetric.WithResource(res))
	otel.SetMeterProvider(mp)

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return mp.Shutdown(ctx)
		},
	})
	return mp
}
