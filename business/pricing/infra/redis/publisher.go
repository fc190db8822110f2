// Package redis publishes live price snapshots to Redis.
package redis

import (
	"context"
	"encoding/json"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/fd1az/dexprice/business/pricing/app"
	"github.com/fd1az/dexprice/business/pricing/domain"
	"github.com/fd1az/dexprice/internal/apperror"
	"github.com/fd1az/dexprice/internal/logger"
)

// Ensure Publisher implements SnapshotSink.
var _ app.SnapshotSink = (*Publisher)(nil)

// Options configures the publisher.
type Options struct {
	Addr      string
	Password  string
	DB        int
	Channel   string
	KeyPrefix string
	TTL       time.Duration
}

// Publisher writes the latest price of each token into a hash keyed by token
// id and broadcasts the full snapshot on a pub/sub channel.
type Publisher struct {
	rdb    goredis.UniversalClient
	opts   Options
	logger logger.LoggerInterface
}

// NewPublisher connects to Redis and pings it.
func NewPublisher(ctx context.Context, opts Options, log logger.LoggerInterface) (*Publisher, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, apperror.External(apperror.CodeStorageConnectionFailed, "redis "+opts.Addr, err)
	}

	return NewPublisherWithClient(rdb, opts, log), nil
}

// NewPublisherWithClient wraps an existing client.
func NewPublisherWithClient(rdb goredis.UniversalClient, opts Options, log logger.LoggerInterface) *Publisher {
	return &Publisher{rdb: rdb, opts: opts, logger: log}
}

// Close closes the client.
func (p *Publisher) Close() error {
	return p.rdb.Close()
}

// SaveSnapshot writes every token hash and publishes the snapshot in one
// transaction.
func (p *Publisher) SaveSnapshot(ctx context.Context, snapshot *domain.PriceSnapshot) error {
	if snapshot == nil {
		return nil
	}

	payload, err := json.Marshal(newMessage(snapshot))
	if err != nil {
		return apperror.Internal(apperror.CodePublishFailed, "encode snapshot", err)
	}

	_, err = p.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		for _, t := range snapshot.Tokens {
			key := tokenKey(p.opts.KeyPrefix, t.TokenID)
			pipe.HSet(ctx, key, tokenFields(t, snapshot))
			if p.opts.TTL > 0 {
				pipe.Expire(ctx, key, p.opts.TTL)
			}
		}
		pipe.Publish(ctx, p.opts.Channel, payload)
		return nil
	})
	if err != nil {
		return apperror.External(apperror.CodePublishFailed, p.opts.Channel, err)
	}

	p.logger.Debug(ctx, "snapshot published", "channel", p.opts.Channel, "block", snapshot.BlockNumber)
	return nil
}

// LatestPrice reads a token hash back.
func (p *Publisher) LatestPrice(ctx context.Context, tokenID string) (map[string]string, error) {
	res, err := p.rdb.HGetAll(ctx, tokenKey(p.opts.KeyPrefix, tokenID)).Result()
	if err != nil {
		return nil, apperror.External(apperror.CodeExternalServiceError, "redis hgetall", err)
	}
	if len(res) == 0 {
		return nil, apperror.NotFound(apperror.CodeTokenNotFound, tokenID)
	}
	return res, nil
}

func tokenKey(prefix, tokenID string) string {
	return prefix + tokenID
}

func tokenFields(t domain.TokenPrice, s *domain.PriceSnapshot) map[string]any {
	return map[string]any{
		"symbol":      t.Symbol,
		"derived_eth": t.DerivedETH.String(),
		"price_usd":   t.PriceUSD.String(),
		"block":       s.BlockNumber,
		"updated_at":  s.Timestamp.Unix(),
	}
}

type tokenMessage struct {
	ID         string `json:"id"`
	Symbol     string `json:"symbol"`
	DerivedETH string `json:"derivedETH"`
	PriceUSD   string `json:"priceUSD"`
}

type snapshotMessage struct {
	Block       uint64         `json:"block"`
	Timestamp   int64          `json:"timestamp"`
	EthPriceUSD string         `json:"ethPriceUSD"`
	Tokens      []tokenMessage `json:"tokens"`
}

func newMessage(s *domain.PriceSnapshot) snapshotMessage {
	msg := snapshotMessage{
		Block:       s.BlockNumber,
		Timestamp:   s.Timestamp.Unix(),
		EthPriceUSD: s.EthPriceUSD.String(),
		Tokens:      make([]tokenMessage, 0, len(s.Tokens)),
	}
	for _, t := range s.Tokens {
		msg.Tokens = append(msg.Tokens, tokenMessage{
			ID:         t.TokenID,
			Symbol:     t.Symbol,
			DerivedETH: t.DerivedETH.String(),
			PriceUSD:   t.PriceUSD.String(),
		})
	}
	return msg
}
