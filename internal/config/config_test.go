package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DEXPRICE_ETH_HTTP_URL", "http://localhost:8545")

	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Ethereum.ChainID != 8453 {
		t.Errorf("ChainID = %d, want 8453", cfg.Ethereum.ChainID)
	}
	if cfg.Pricing.ReferenceToken != baseWETH {
		t.Errorf("ReferenceToken = %s", cfg.Pricing.ReferenceToken)
	}
	if len(cfg.Pricing.Whitelist) != 15 {
		t.Errorf("len(Whitelist) = %d, want 15", len(cfg.Pricing.Whitelist))
	}
	if len(cfg.Pricing.StableCoins) != 4 {
		t.Errorf("len(StableCoins) = %d, want 4", len(cfg.Pricing.StableCoins))
	}
}

func TestLoad_ExplicitMissingFile(t *testing.T) {
	t.Setenv("DEXPRICE_ETH_HTTP_URL", "http://localhost:8545")

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil); err == nil {
		t.Fatal("expected error for explicit missing config file")
	}
}

func TestLoad_FileAndFlags(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
ethereum:
  http_url: http://node:8545
pricing:
  minimum_eth_locked: "5"
  watched_pools:
    - "0xEF3C164B0FEE8EB073513E88ECEA280A58CC9945"
    - "0x0000000000000000000000000000000000000abc"
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("log-level", "info", "")
	if err := flags.Parse([]string{"--log-level=debug"}); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path, flags)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.App.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.App.LogLevel)
	}

	table := cfg.PricingTable()
	if !table.MinimumEthLocked.Equal(decimal.NewFromInt(5)) {
		t.Errorf("MinimumEthLocked = %s, want 5", table.MinimumEthLocked)
	}

	pools := cfg.WatchedPoolIDs()
	want := []string{baseUSDbCWETHPool, "0x0000000000000000000000000000000000000abc"}
	if len(pools) != len(want) {
		t.Fatalf("WatchedPoolIDs() = %v, want %v", pools, want)
	}
	for i := range want {
		if pools[i] != want[i] {
			t.Errorf("pools[%d] = %s, want %s", i, pools[i], want[i])
		}
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Ethereum: EthereumConfig{HTTPURL: "http://localhost:8545"},
			Pricing: PricingConfig{
				ReferenceToken:   baseWETH,
				USDPool:          baseUSDbCWETHPool,
				Whitelist:        baseWhitelist,
				StableCoins:      baseStableCoins,
				MinimumEthLocked: "2",
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"missing http url", func(c *Config) { c.Ethereum.HTTPURL = "" }, true},
		{"bad reference token", func(c *Config) { c.Pricing.ReferenceToken = "weth" }, true},
		{"bad whitelist entry", func(c *Config) { c.Pricing.Whitelist = []string{"0x12"} }, true},
		{"negative min locked", func(c *Config) { c.Pricing.MinimumEthLocked = "-1" }, true},
		{"non numeric min locked", func(c *Config) { c.Pricing.MinimumEthLocked = "two" }, true},
		{"postgres without dsn", func(c *Config) { c.Postgres.Enabled = true }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestPricingTable_LowerCases(t *testing.T) {
	cfg := Config{Pricing: PricingConfig{
		ReferenceToken:   "0x4200000000000000000000000000000000000006",
		USDPool:          "0xEF3C164B0FEE8EB073513E88ECEA280A58CC9945",
		Whitelist:        []string{"0xD9AAEC86B65D86F6A7B5B1B0C42FFA531710B6CA"},
		StableCoins:      []string{"0xD9AAEC86B65D86F6A7B5B1B0C42FFA531710B6CA"},
		MinimumEthLocked: "2",
	}}

	table := cfg.PricingTable()
	if table.USDPool != baseUSDbCWETHPool {
		t.Errorf("USDPool = %s", table.USDPool)
	}
	if !table.IsWhitelisted("0xd9aaec86b65d86f6a7b5b1b0c42ffa531710b6ca") {
		t.Error("whitelist lookup should match lower-case id")
	}
	if !table.IsStableCoin("0xd9aaec86b65d86f6a7b5b1b0c42ffa531710b6ca") {
		t.Error("stablecoin lookup should match lower-case id")
	}
}
