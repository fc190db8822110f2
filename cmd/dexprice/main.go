// Package main is the entry point for the dexprice Uniswap V3 price service.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/fd1az/dexprice/internal/config"
	"github.com/fd1az/dexprice/internal/logger"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "dexprice",
		Short:        "Uniswap V3 token prices in ETH and USD",
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "config file path")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.String("eth-ws-url", "", "Ethereum websocket RPC URL")
	flags.String("eth-http-url", "", "Ethereum HTTP RPC URL")
	flags.String("pg-dsn", "", "Postgres DSN for price history")
	flags.String("redis-addr", "", "Redis address for live prices")

	root.AddCommand(newRunCmd(), newConvertCmd(), newPriceCmd(), newLatestCmd())
	return root
}

// loadConfig reads the config file named by --config, overlaid with env and
// persistent flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config, w io.Writer) *logger.Logger {
	return logger.New(w, logger.ParseLevel(cfg.App.LogLevel), cfg.App.Name, nil)
}
