// Package app contains application services and port definitions for the blockchain context.
package app

import (
	"context"

	"github.com/fd1az/dexprice/business/blockchain/domain"
)

// BlockchainService exposes the block feed to other modules.
type BlockchainService struct {
	subscriber BlockSubscriber
}

// NewBlockchainService creates a new BlockchainService.
func NewBlockchainService(subscriber BlockSubscriber) *BlockchainService {
	return &BlockchainService{subscriber: subscriber}
}

// SubscribeBlocks starts the block subscription and returns the channel.
func (s *BlockchainService) SubscribeBlocks(ctx context.Context) (<-chan *domain.Block, error) {
	return s.subscriber.Subscribe(ctx)
}

// LatestBlock returns the chain head.
func (s *BlockchainService) LatestBlock(ctx context.Context) (*domain.Block, error) {
	return s.subscriber.LatestBlock(ctx)
}

// ConnectionStatus returns the subscriber's connection status.
func (s *BlockchainService) ConnectionStatus() domain.ConnectionStatus {
	return s.subscriber.Status()
}
