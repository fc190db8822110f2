package metrics

import "time"

// Exporter names a metric backend.
type Exporter string

const (
	PrometheusExporter Exporter = "prometheus"
	OTLPExporter       Exporter = "otlp"
)

// defaultPushInterval is how often OTLP readers push.
const defaultPushInterval = 15 * time.Second

// ExporterCfg configures one reader of the meter provider.
type ExporterCfg struct {
	Exporter Exporter
	Endpoint string
	Headers  map[string]string
	Insecure bool
	// Interval between OTLP pushes; zero uses defaultPushInterval.
	Interval time.Duration
}

// Config is assembled from options by NewMetricProvider.
type Config struct {
	ServiceName string
	Exporters   []ExporterCfg
}

type OptionFn func(config Config) Config

// WithPrometheus exports to the default Prometheus registry, served by
// Handler.
func WithPrometheus() OptionFn {
	return func(config Config) Config {
		config.Exporters = append(config.Exporters, ExporterCfg{Exporter: PrometheusExporter})
		return config
	}
}

// WithOTLP pushes to an OTLP gRPC collector.
func WithOTLP(endpoint string, headers map[string]string, insecure bool, interval time.Duration) OptionFn {
	return func(config Config) Config {
		config.Exporters = append(config.Exporters, ExporterCfg{
			Exporter: OTLPExporter,
			Endpoint: endpoint,
			Headers:  headers,
			Insecure: insecure,
			Interval: interval,
		})
		return config
	}
}

func WithServiceName(serviceName string) OptionFn {
	return func(config Config) Config {
		config.ServiceName = serviceName
		return config
	}
}
