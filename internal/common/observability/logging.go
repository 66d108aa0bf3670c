package observability

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"restaurant-pos/internal/common/config"
)

// SetupLogging registers a global OTLP/HTTP logger provider. Loggers built
// by the logger package forward to it through the otelzap bridge. Without
// an endpoint, or with log export off, it is a no-op.
func SetupLogging(ctx context.Context, cfg config.Tracing) (shutdown func(context.Context) error, err error) {
	noop := func(context.Context) error { return nil }
	if cfg.Endpoint == "" || !cfg.ExportLogs {
		return noop, nil
	}

	var opts []otlploghttp.Option
	if strings.Contains(cfg.Endpoint, "://") {
		opts = append(opts, otlploghttp.WithEndpointURL(cfg.Endpoint))
	} else {
		opts = append(opts, otlploghttp.WithEndpoint(cfg.Endpoint))
		if cfg.Insecure {
			opts = append(opts, otlploghttp.WithInsecure())
		}
	}
	exporter, err := otlploghttp.New(ctx, opts...)
	if err != nil {
		return noop, err
	}

	lp := sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)),
		sdklog.WithResource(resource.NewWithAttributes(semconv.SchemaURL, semconv.ServiceName(cfg.ServiceName))),
	)
	global.SetLoggerProvider(lp)
	return lp.Shutdown, nil
}
