package training

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	"github.com/YuminosukeSato/amesprice/config"
	"github.com/YuminosukeSato/amesprice/pkg/errors"
)

// ServiceName is the OpenTelemetry service name of the training job.
const ServiceName = "amestrain"

// TracerName is the instrumentation scope of job spans.
const TracerName = "github.com/YuminosukeSato/amesprice/training"

// NewTracerProvider は OTLP/HTTP で span を送る TracerProvider を作る。
// endpoint が空ならエクスポーターを付けない（span は記録されず捨てられる）。
// 呼び出し側は終了時に Shutdown すること。
func NewTracerProvider(ctx context.Context, cfg config.TracingConfig, runID string) (*sdktrace.TracerProvider, error) {
	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(ServiceName),
		attribute.String("run.id", runID),
	)
	opts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}

	if cfg.OTLPEndpoint != "" {
		exporterOpts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.OTLPEndpoint)}
		if cfg.Insecure {
			exporterOpts = append(exporterOpts, otlptracehttp.WithInsecure())
		}
		exporter, err := otlptracehttp.New(ctx, exporterOpts...)
		if err != nil {
			return nil, errors.Wrap(err, "create otlp exporter")
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}
	return sdktrace.NewTracerProvider(opts...), nil
}
