// Package metrics configures the global OTEL meter provider.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	metric2 "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.10.0"
)

type MetricProvider interface {
	Meter(name string, options ...metric.MeterOption) metric.Meter
	Shutdown(ctx context.Context) error
}

func getReaders(ctx context.Context, cfg Config) ([]metric2.Reader, error) {
	var readers []metric2.Reader

	for _, exp := range cfg.Exporters {
		switch exp.Exporter {
		case PrometheusExporter:
			promExporter, err := prometheus.New()
			if err != nil {
				return nil, fmt.Errorf("prometheus exporter: %w", err)
			}

			readers = append(readers, promExporter)
		case OTLPExporter:
			opts := []otlpmetricgrpc.Option{
				otlpmetricgrpc.WithEndpointURL(exp.Endpoint),
			}
			if len(exp.Headers) > 0 {
				opts = append(opts, otlpmetricgrpc.WithHeaders(exp.Headers))
			}
			if exp.Insecure {
				opts = append(opts, otlpmetricgrpc.WithInsecure())
			}

			otlpExp, err := otlpmetricgrpc.New(ctx, opts...)
			if err != nil {
				return nil, fmt.Errorf("otlp metric exporter: %w", err)
			}

			interval := exp.Interval
			if interval <= 0 {
				interval = defaultPushInterval
			}
			readers = append(readers, metric2.NewPeriodicReader(otlpExp, metric2.WithInterval(interval)))
		default:
			return nil, fmt.Errorf("unknown metric exporter %q", exp.Exporter)
		}
	}

	return readers, nil
}

// NewMetricProvider builds a meter provider from the options and installs it
// as the global one. With no exporter configured it exports to Prometheus.
func NewMetricProvider(ctx context.Context, options ...OptionFn) (MetricProvider, error) {
	var cfg Config
	for _, opt := range options {
		cfg = opt(cfg)
	}
	if len(cfg.Exporters) == 0 {
		cfg = WithPrometheus()(cfg)
	}

	readers, err := getReaders(ctx, cfg)
	if err != nil {
		return nil, err
	}

	metricsOps := make([]metric2.Option, 0, len(readers)+1)
	for _, reader := range readers {
		metricsOps = append(metricsOps, metric2.WithReader(reader))
	}
	if cfg.ServiceName != "" {
		metricsOps = append(metricsOps, metric2.WithResource(
			resource.NewSchemaless(semconv.ServiceNameKey.String(cfg.ServiceName)),
		))
	}

	meterProvider := metric2.NewMeterProvider(metricsOps...)
	otel.SetMeterProvider(meterProvider)

	return meterProvider, nil
}

// Handler serves the Prometheus registry the exporter writes to.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ParseHeaders parses "k1=v1,k2=v2" into a map. Malformed pairs are skipped.
func ParseHeaders(s string) map[string]string {
	out := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || k == "" {
			continue
		}
		out[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return out
}
