package main

import (
	"context"
	"fmt"
	"io"
	"math/big"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fd1az/dexprice/business/pricing"
	"github.com/fd1az/dexprice/business/pricing/domain"
	pricingDI "github.com/fd1az/dexprice/business/pricing/di"
	"github.com/fd1az/dexprice/business/pricing/infra/postgres"
	"github.com/fd1az/dexprice/business/pricing/infra/redis"
	"github.com/fd1az/dexprice/business/pricing/infra/reporter"
	"github.com/fd1az/dexprice/internal/health"
	"github.com/fd1az/dexprice/internal/monolith"
)

func newPriceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "price",
		Short: "Price the watched pools once and print the result",
		RunE:  runPrice,
	}
	cmd.Flags().String("token", "", "token address to print (all tokens when empty)")
	cmd.Flags().Uint64("block", 0, "block number, 0 means latest")
	return cmd
}

func runPrice(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	tokenID, _ := cmd.Flags().GetString("token")
	blockNumber, _ := cmd.Flags().GetUint64("block")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := newLogger(cfg, os.Stderr)
	defer log.Sync()

	mono, err := monolith.New(ctx, cfg, log, health.NewServer(cfg.Health.Port, version, log))
	if err != nil {
		return fmt.Errorf("failed to create monolith: %w", err)
	}
	defer mono.Close()

	module := &pricing.Module{}
	if err := mono.RegisterModules(module); err != nil {
		return fmt.Errorf("failed to register modules: %w", err)
	}
	if err := mono.StartModules(ctx, module); err != nil {
		return fmt.Errorf("failed to start modules: %w", err)
	}

	var block *big.Int
	if blockNumber > 0 {
		block = new(big.Int).SetUint64(blockNumber)
	}
	header, err := mono.EthClient().HeaderByNumber(ctx, block)
	if err != nil {
		return fmt.Errorf("failed to read block header: %w", err)
	}

	snapshot, err := pricingDI.GetRefresher(mono.Services()).Refresh(ctx, header.Number.Uint64(), time.Unix(int64(header.Time), 0).UTC())
	if err != nil {
		return err
	}

	if tokenID == "" {
		reporter.NewConsoleReporterTo(cmd.OutOrStdout()).UpdatePrices(snapshot)
		return nil
	}

	row, ok := snapshot.Token(strings.ToLower(tokenID))
	if !ok {
		return fmt.Errorf("token %s is not in any watched pool", tokenID)
	}
	return writeTokenPrice(cmd.OutOrStdout(), row, snapshot.BlockNumber)
}

func writeTokenPrice(w io.Writer, row domain.TokenPrice, blockNumber uint64) error {
	_, err := fmt.Fprintf(w, "%s %s @ block %d\n  derivedETH: %s\n  priceUSD:   %s\n",
		row.Symbol, row.TokenID, blockNumber,
		row.DerivedETH.String(), row.PriceUSD.StringFixed(6))
	return err
}

func newLatestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "latest",
		Short: "Print the last stored price of a token",
		RunE:  runLatest,
	}
	cmd.Flags().String("token", "", "token address")
	cmd.Flags().String("source", "postgres", "price source (postgres, redis)")
	_ = cmd.MarkFlagRequired("token")
	return cmd
}

func runLatest(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	tokenID, _ := cmd.Flags().GetString("token")
	tokenID = strings.ToLower(tokenID)
	source, _ := cmd.Flags().GetString("source")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := newLogger(cfg, os.Stderr)
	defer log.Sync()

	switch source {
	case "postgres":
		store, err := postgres.NewStore(ctx, cfg.Postgres.DSN, cfg.Postgres.MaxConns, cfg.Ethereum.ChainID, log)
		if err != nil {
			return err
		}
		defer store.Close()

		row, block, ok, err := store.LatestPrice(ctx, tokenID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("no stored price for %s", tokenID)
		}
		return writeTokenPrice(cmd.OutOrStdout(), row, block)

	case "redis":
		pub, err := redis.NewPublisher(ctx, redis.Options{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
		}, log)
		if err != nil {
			return err
		}
		defer pub.Close()

		fields, err := pub.LatestPrice(ctx, tokenID)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s %s @ block %s\n  derivedETH: %s\n  priceUSD:   %s\n",
			fields["symbol"], tokenID, fields["block"], fields["derived_eth"], fields["price_usd"])
		return err

	default:
		return fmt.Errorf("unknown source %q (want postgres or redis)", source)
	}
}
