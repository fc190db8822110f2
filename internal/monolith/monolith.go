// Package monolith provides the application container and module interface.
package monolith

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/fd1az/dexprice/internal/apperror"
	"github.com/fd1az/dexprice/internal/asset"
	"github.com/fd1az/dexprice/internal/config"
	"github.com/fd1az/dexprice/internal/di"
	"github.com/fd1az/dexprice/internal/health"
	"github.com/fd1az/dexprice/internal/logger"
)

// Monolith is the main application container providing access to shared infrastructure.
type Monolith interface {
	Config() *config.Config
	Logger() logger.LoggerInterface
	EthClient() *ethclient.Client
	AssetRegistry() *asset.Registry
	Health() *health.Server
	Services() di.ServiceRegistry
	OnClose(Closer)
}

// Module represents a bounded context module that can register services and start up.
type Module interface {
	RegisterServices(di.Container) error
	Startup(context.Context, Monolith) error
}

// Closer is implemented by services that hold resources until shutdown.
type Closer interface {
	Close() error
}

type app struct {
	config        *config.Config
	logger        logger.LoggerInterface
	ethClient     *ethclient.Client
	assetRegistry *asset.Registry
	health        *health.Server
	container     di.Container
	closers       []Closer
}

// New dials the node, checks its chain id against the config and registers
// the shared services.
func New(ctx context.Context, cfg *config.Config, log logger.LoggerInterface, healthServer *health.Server) (*app, error) {
	ethClient, err := ethclient.DialContext(ctx, cfg.Ethereum.HTTPURL)
	if err != nil {
		return nil, apperror.External(apperror.CodeEthereumConnectionFailed, "dial http rpc", err)
	}

	chainID, err := ethClient.ChainID(ctx)
	if err != nil {
		ethClient.Close()
		return nil, apperror.External(apperror.CodeEthereumRPCError, "eth_chainId", err)
	}
	if cfg.Ethereum.ChainID != 0 && chainID.Uint64() != cfg.Ethereum.ChainID {
		ethClient.Close()
		return nil, apperror.New(apperror.CodeConfigurationError,
			apperror.WithContext(fmt.Sprintf("node chain id %s, configured %d", chainID, cfg.Ethereum.ChainID)))
	}

	assetRegistry := asset.DefaultRegistry()

	container := di.NewContainer()
	container.Register("config", cfg)
	container.Register("logger", log)
	container.Register("ethClient", ethClient)
	container.Register("assetRegistry", assetRegistry)
	container.Register("health", healthServer)

	log.Info(ctx, "connected to ethereum node", "chain_id", chainID.Uint64(), "known_assets", assetRegistry.Len())

	return &app{
		config:        cfg,
		logger:        log,
		ethClient:     ethClient,
		assetRegistry: assetRegistry,
		health:        healthServer,
		container:     container,
	}, nil
}

func (a *app) Config() *config.Config {
	return a.config
}

func (a *app) Logger() logger.LoggerInterface {
	return a.logger
}

func (a *app) EthClient() *ethclient.Client {
	return a.ethClient
}

func (a *app) AssetRegistry() *asset.Registry {
	return a.assetRegistry
}

func (a *app) Health() *health.Server {
	return a.health
}

func (a *app) Services() di.ServiceRegistry {
	return a.container
}

// RegisterModules registers all provided modules.
func (a *app) RegisterModules(modules ...Module) error {
	for _, m := range modules {
		if err := m.RegisterServices(a.container); err != nil {
			return err
		}
	}
	return nil
}

// StartModules starts all provided modules.
func (a *app) StartModules(ctx context.Context, modules ...Module) error {
	for _, m := range modules {
		if err := m.Startup(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

// OnClose registers c to be closed, in reverse order, by Close.
func (a *app) OnClose(c Closer) {
	a.closers = append(a.closers, c)
}

// Close closes registered resources and the node client.
func (a *app) Close() error {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.logger.Warn(context.Background(), "close failed", "error", err)
		}
	}
	if a.ethClient != nil {
		a.ethClient.Close()
	}
	return nil
}
