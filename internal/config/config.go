// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/fd1az/dexprice/business/pricing/domain"
)

// Config holds all application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Ethereum  EthereumConfig  `mapstructure:"ethereum"`
	Pricing   PricingConfig   `mapstructure:"pricing"`
	Postgres  PostgresConfig  `mapstructure:"postgres"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Health    HealthConfig    `mapstructure:"health"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
	TUIMode     bool   `mapstructure:"-"` // Set at runtime, not from config file
}

// EthereumConfig holds Ethereum node configuration.
type EthereumConfig struct {
	WebSocketURL   string        `mapstructure:"websocket_url"`
	HTTPURL        string        `mapstructure:"http_url"`
	ChainID        uint64        `mapstructure:"chain_id"`
	MaxReconnects  int           `mapstructure:"max_reconnects"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
	RPCPerMinute   int           `mapstructure:"rpc_per_minute"`
	CallTimeout    time.Duration `mapstructure:"call_timeout"`
}

// PricingConfig holds the pricing table and the pools the refresher reads.
type PricingConfig struct {
	ReferenceToken   string   `mapstructure:"reference_token"`
	USDPool          string   `mapstructure:"usd_pool"`
	Whitelist        []string `mapstructure:"whitelist"`
	StableCoins      []string `mapstructure:"stable_coins"`
	MinimumEthLocked string   `mapstructure:"minimum_eth_locked"`
	WatchedPools     []string `mapstructure:"watched_pools"`
}

// PostgresConfig holds price history storage settings.
type PostgresConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// RedisConfig holds live price publishing settings.
type RedisConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Addr      string        `mapstructure:"addr"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	Channel   string        `mapstructure:"channel"`
	KeyPrefix string        `mapstructure:"key_prefix"`
	TTL       time.Duration `mapstructure:"ttl"`
}

// TelemetryConfig holds observability configuration.
// Metrics are always exported to Prometheus on the health port's /metrics
// when enabled; OTLPMetrics additionally pushes them to OTLPEndpoint.
type TelemetryConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	ServiceName   string `mapstructure:"service_name"`
	TraceProvider string `mapstructure:"trace_provider"`
	OTLPEndpoint  string `mapstructure:"otlp_endpoint"`
	OTLPHeaders   string `mapstructure:"otlp_headers"`
	OTLPInsecure  bool   `mapstructure:"otlp_insecure"`
	OTLPMetrics   bool   `mapstructure:"otlp_metrics"`
	// PushInterval between OTLP metric exports.
	PushInterval time.Duration `mapstructure:"push_interval"`
}

// HealthConfig holds health endpoint settings.
type HealthConfig struct {
	Port         int           `mapstructure:"port"`
	MaxStaleness time.Duration `mapstructure:"max_staleness"`
}

// flagKeys maps command line flags onto config keys.
var flagKeys = map[string]string{
	"log-level":    "app.log_level",
	"eth-ws-url":   "ethereum.websocket_url",
	"eth-http-url": "ethereum.http_url",
	"pg-dsn":       "postgres.dsn",
	"redis-addr":   "redis.addr",
}

// Load merges config file, environment variables and flags into Config.
// flags may be nil.
func Load(configPath string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	// Config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables
	v.SetEnvPrefix("DEXPRICE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindEnvVars(v)
	setDefaults(v)

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func bindEnvVars(v *viper.Viper) {
	// App
	v.BindEnv("app.name", "DEXPRICE_APP_NAME", "SERVICE_NAME")
	v.BindEnv("app.environment", "DEXPRICE_ENVIRONMENT", "ENVIRONMENT")
	v.BindEnv("app.log_level", "DEXPRICE_LOG_LEVEL", "LOG_LEVEL")

	// Ethereum
	v.BindEnv("ethereum.websocket_url", "DEXPRICE_ETH_WS_URL", "ETH_WS_URL")
	v.BindEnv("ethereum.http_url", "DEXPRICE_ETH_HTTP_URL", "ETH_HTTP_URL")
	v.BindEnv("ethereum.chain_id", "DEXPRICE_ETH_CHAIN_ID", "ETH_CHAIN_ID")

	// Pricing
	v.BindEnv("pricing.reference_token", "DEXPRICE_REFERENCE_TOKEN")
	v.BindEnv("pricing.usd_pool", "DEXPRICE_USD_POOL")
	v.BindEnv("pricing.watched_pools", "DEXPRICE_WATCHED_POOLS")

	// Storage / publishing
	v.BindEnv("postgres.enabled", "DEXPRICE_PG_ENABLED")
	v.BindEnv("postgres.dsn", "DEXPRICE_PG_DSN", "DATABASE_URL")
	v.BindEnv("redis.enabled", "DEXPRICE_REDIS_ENABLED")
	v.BindEnv("redis.addr", "DEXPRICE_REDIS_ADDR", "REDIS_ADDR")
	v.BindEnv("redis.password", "DEXPRICE_REDIS_PASSWORD", "REDIS_PASSWORD")

	// Telemetry
	v.BindEnv("telemetry.enabled", "DEXPRICE_OTEL_ENABLED", "OTEL_ENABLED")
	v.BindEnv("telemetry.service_name", "DEXPRICE_OTEL_SERVICE_NAME", "OTEL_SERVICE_NAME")
	v.BindEnv("telemetry.trace_provider", "DEXPRICE_OTEL_TRACE_PROVIDER")
	v.BindEnv("telemetry.otlp_endpoint", "DEXPRICE_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
	v.BindEnv("telemetry.otlp_headers", "DEXPRICE_OTEL_HEADERS", "OTEL_EXPORTER_OTLP_HEADERS")
}

func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "dexprice")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	// Ethereum defaults (Base mainnet)
	v.SetDefault("ethereum.chain_id", 8453)
	v.SetDefault("ethereum.max_reconnects", 0) // infinite
	v.SetDefault("ethereum.initial_backoff", "1s")
	v.SetDefault("ethereum.max_backoff", "30s")
	v.SetDefault("ethereum.rpc_per_minute", 600)
	v.SetDefault("ethereum.call_timeout", "10s")

	// Pricing defaults (Base)
	v.SetDefault("pricing.reference_token", baseWETH)
	v.SetDefault("pricing.usd_pool", baseUSDbCWETHPool)
	v.SetDefault("pricing.whitelist", baseWhitelist)
	v.SetDefault("pricing.stable_coins", baseStableCoins)
	v.SetDefault("pricing.minimum_eth_locked", "2")
	v.SetDefault("pricing.watched_pools", []string{baseUSDbCWETHPool})

	// Storage / publishing defaults
	v.SetDefault("postgres.enabled", false)
	v.SetDefault("postgres.max_conns", 4)
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.channel", "dexprice:prices")
	v.SetDefault("redis.key_prefix", "dexprice:token:")
	v.SetDefault("redis.ttl", "10m")

	// Telemetry defaults
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "dexprice")
	v.SetDefault("telemetry.trace_provider", "none")
	v.SetDefault("telemetry.push_interval", "15s")

	// Health defaults
	v.SetDefault("health.port", 8080)
	v.SetDefault("health.max_staleness", "2m")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Ethereum.HTTPURL == "" {
		return fmt.Errorf("ethereum.http_url is required")
	}
	if !common.IsHexAddress(c.Pricing.ReferenceToken) {
		return fmt.Errorf("invalid pricing.reference_token: %q", c.Pricing.ReferenceToken)
	}
	if !common.IsHexAddress(c.Pricing.USDPool) {
		return fmt.Errorf("invalid pricing.usd_pool: %q", c.Pricing.USDPool)
	}
	for _, list := range [][]string{c.Pricing.Whitelist, c.Pricing.StableCoins, c.Pricing.WatchedPools} {
		for _, addr := range list {
			if !common.IsHexAddress(addr) {
				return fmt.Errorf("invalid pricing address: %q", addr)
			}
		}
	}
	minLocked, err := decimal.NewFromString(c.Pricing.MinimumEthLocked)
	if err != nil {
		return fmt.Errorf("invalid pricing.minimum_eth_locked: %w", err)
	}
	if minLocked.IsNegative() {
		return fmt.Errorf("pricing.minimum_eth_locked must be >= 0")
	}
	if c.Postgres.Enabled && c.Postgres.DSN == "" {
		return fmt.Errorf("postgres.dsn is required when postgres is enabled")
	}
	if c.Telemetry.Enabled && c.Telemetry.OTLPMetrics && c.Telemetry.OTLPEndpoint == "" {
		return fmt.Errorf("telemetry.otlp_endpoint is required for otlp metrics")
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required when redis is enabled")
	}
	return nil
}

// PricingTable builds the domain pricing table. Addresses are lower-cased
// so lookups compare exactly against lower-case ids.
func (c *Config) PricingTable() domain.PricingTable {
	minLocked, err := decimal.NewFromString(c.Pricing.MinimumEthLocked)
	if err != nil {
		minLocked = domain.DefaultMinimumEthLocked
	}

	return domain.PricingTable{
		ReferenceToken:   strings.ToLower(c.Pricing.ReferenceToken),
		USDPool:          strings.ToLower(c.Pricing.USDPool),
		Whitelist:        domain.NewAddressSet(c.Pricing.Whitelist...),
		StableCoins:      domain.NewAddressSet(c.Pricing.StableCoins...),
		MinimumEthLocked: minLocked,
	}
}

// WatchedPoolIDs returns the refresher's pool ids, lower-cased, with the USD
// pool always included first.
func (c *Config) WatchedPoolIDs() []string {
	usd := strings.ToLower(c.Pricing.USDPool)
	out := []string{usd}
	seen := map[string]bool{usd: true}
	for _, p := range c.Pricing.WatchedPools {
		id := strings.ToLower(p)
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
