// Package pricing implements the pricing bounded context: per-block USD and
// ETH prices for every token reachable from the watched Uniswap V3 pools.
package pricing

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"

	blockchainDI "github.com/fd1az/dexprice/business/blockchain/di"
	"github.com/fd1az/dexprice/business/pricing/app"
	pricingDI "github.com/fd1az/dexprice/business/pricing/di"
	"github.com/fd1az/dexprice/business/pricing/infra/memstore"
	"github.com/fd1az/dexprice/business/pricing/infra/postgres"
	"github.com/fd1az/dexprice/business/pricing/infra/redis"
	"github.com/fd1az/dexprice/business/pricing/infra/reporter"
	"github.com/fd1az/dexprice/business/pricing/infra/uniswap"
	"github.com/fd1az/dexprice/internal/asset"
	"github.com/fd1az/dexprice/internal/config"
	"github.com/fd1az/dexprice/internal/di"
	"github.com/fd1az/dexprice/internal/logger"
	"github.com/fd1az/dexprice/internal/monolith"
)

// Module implements the pricing bounded context.
type Module struct{}

// RegisterServices registers all pricing services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, pricingDI.StateStore, func(di.ServiceRegistry) app.StateStore {
		return memstore.New()
	})

	di.RegisterToken(c, pricingDI.StateSource, func(sr di.ServiceRegistry) app.PoolStateSource {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		ethClient := sr.Get("ethClient").(*ethclient.Client)
		registry := sr.Get("assetRegistry").(*asset.Registry)

		reader, err := uniswap.NewStateReader(ethClient, uniswap.ReaderConfig{
			ChainID:      cfg.Ethereum.ChainID,
			RPCPerMinute: cfg.Ethereum.RPCPerMinute,
			CallTimeout:  cfg.Ethereum.CallTimeout,
		}, registry, log)
		if err != nil {
			panic("failed to create uniswap state reader: " + err.Error())
		}
		return reader
	})

	di.RegisterToken(c, pricingDI.Pricer, func(sr di.ServiceRegistry) *app.Pricer {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		return app.NewPricer(pricingDI.GetStateStore(sr), cfg.PricingTable(), log)
	})

	di.RegisterToken(c, pricingDI.Refresher, func(sr di.ServiceRegistry) *app.Refresher {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		r, err := app.NewRefresher(
			pricingDI.GetStateSource(sr),
			pricingDI.GetStateStore(sr),
			pricingDI.GetPricer(sr),
			cfg.WatchedPoolIDs(),
			log,
		)
		if err != nil {
			panic("failed to create refresher: " + err.Error())
		}
		return r
	})

	di.RegisterToken(c, pricingDI.Reporter, func(sr di.ServiceRegistry) app.Reporter {
		cfg := sr.Get("config").(*config.Config)
		if cfg.App.TUIMode {
			return reporter.NewTUIReporter()
		}
		return reporter.NewConsoleReporter()
	})

	di.RegisterToken(c, pricingDI.Watcher, func(sr di.ServiceRegistry) *app.Watcher {
		log := sr.Get("logger").(logger.LoggerInterface)
		return app.NewWatcher(
			blockchainDI.GetBlockchainService(sr),
			pricingDI.GetRefresher(sr),
			pricingDI.GetReporter(sr),
			log,
		)
	})

	return nil
}

// Startup connects the snapshot sinks and registers the bundle health check.
// The watcher itself is started by the caller.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	cfg := mono.Config()
	log := mono.Logger()
	refresher := pricingDI.GetRefresher(mono.Services())

	if cfg.Postgres.Enabled {
		store, err := postgres.NewStore(ctx, cfg.Postgres.DSN, cfg.Postgres.MaxConns, cfg.Ethereum.ChainID, log)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		if err := store.Migrate(ctx); err != nil {
			store.Close()
			return fmt.Errorf("postgres: %w", err)
		}
		refresher.AddSink(store)
		mono.OnClose(closeFunc(func() error { store.Close(); return nil }))
		log.Info(ctx, "price history enabled", "sink", "postgres")
	}

	if cfg.Redis.Enabled {
		pub, err := redis.NewPublisher(ctx, redis.Options{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			Channel:   cfg.Redis.Channel,
			KeyPrefix: cfg.Redis.KeyPrefix,
			TTL:       cfg.Redis.TTL,
		}, log)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		refresher.AddSink(pub)
		mono.OnClose(pub)
		log.Info(ctx, "live price publishing enabled", "sink", "redis", "channel", cfg.Redis.Channel)
	}

	store := pricingDI.GetStateStore(mono.Services())
	mono.Health().RegisterCheck("bundle", bundleCheck(store, refresher, cfg.Health.MaxStaleness))

	log.Info(ctx, "pricing module started", "pools", len(cfg.WatchedPoolIDs()))
	return nil
}

// bundleCheck is healthy once an ETH price exists and the last refresh is
// within maxStaleness.
func bundleCheck(store app.BundleReader, refresher *app.Refresher, maxStaleness time.Duration) func(context.Context) (bool, string) {
	return func(ctx context.Context) (bool, string) {
		bundle, ok := store.Bundle(ctx)
		if !ok {
			return false, "no bundle yet"
		}
		last := refresher.LastRefresh()
		if maxStaleness > 0 && time.Since(last) > maxStaleness {
			return false, fmt.Sprintf("last refresh %s ago", time.Since(last).Round(time.Second))
		}
		return true, "eth $" + bundle.EthPriceUSD.StringFixed(2)
	}
}

type closeFunc func() error

func (f closeFunc) Close() error { return f() }
