// Package blockchain implements the blockchain bounded context: the block feed
// that drives price refreshes.
package blockchain

import (
	"context"
	"fmt"

	"github.com/fd1az/dexprice/business/blockchain/app"
	blockchainDI "github.com/fd1az/dexprice/business/blockchain/di"
	"github.com/fd1az/dexprice/business/blockchain/domain"
	"github.com/fd1az/dexprice/business/blockchain/infra/ethereum"
	"github.com/fd1az/dexprice/internal/config"
	"github.com/fd1az/dexprice/internal/di"
	"github.com/fd1az/dexprice/internal/logger"
	"github.com/fd1az/dexprice/internal/monolith"
)

// Module implements the blockchain bounded context.
type Module struct{}

// RegisterServices registers all blockchain services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, blockchainDI.BlockSubscriber, func(sr di.ServiceRegistry) app.BlockSubscriber {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		subCfg := ethereum.DefaultSubscriberConfig(cfg.Ethereum.WebSocketURL, cfg.Ethereum.HTTPURL)
		subCfg.InitialBackoff = cfg.Ethereum.InitialBackoff
		subCfg.MaxBackoff = cfg.Ethereum.MaxBackoff
		subCfg.MaxReconnects = cfg.Ethereum.MaxReconnects
		subCfg.RequestTimeout = cfg.Ethereum.CallTimeout

		sub, err := ethereum.NewSubscriber(subCfg, log)
		if err != nil {
			panic("failed to create subscriber: " + err.Error())
		}
		return sub
	})

	di.RegisterToken(c, blockchainDI.BlockchainService, func(sr di.ServiceRegistry) *app.BlockchainService {
		return app.NewBlockchainService(blockchainDI.GetBlockSubscriber(sr))
	})

	return nil
}

// Startup registers the connection health check. The subscription itself is
// opened by the pricing watcher.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	svc := blockchainDI.GetBlockchainService(mono.Services())

	mono.Health().RegisterCheck("ethereum", func(context.Context) (bool, string) {
		st := svc.ConnectionStatus()
		if st.State == domain.StateDisconnected {
			return false, "disconnected"
		}
		msg := fmt.Sprintf("%s, block %d", st.State, st.LastBlock)
		if st.UsingHTTP {
			msg += ", http polling"
		}
		return true, msg
	})

	mono.Logger().Info(ctx, "blockchain module started")
	return nil
}
