package app

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/fd1az/dexprice/business/pricing/domain"
	"github.com/fd1az/dexprice/internal/apm"
	"github.com/fd1az/dexprice/internal/apperror"
	"github.com/fd1az/dexprice/internal/logger"
)

const (
	tracerName = "pricing"
	meterName  = "pricing"
)

// refresherMetrics holds OTEL metric instruments.
type refresherMetrics struct {
	refreshTotal   metric.Int64Counter
	refreshLatency metric.Float64Histogram
	poolErrors     metric.Int64Counter
	sinkErrors     metric.Int64Counter
	ethPriceUSD    metric.Float64Gauge
}

// Refresher reads watched pools into the store and recomputes every token's
// reference price. Refreshes are serialized.
type Refresher struct {
	source PoolStateSource
	store  StateStore
	pricer *Pricer
	pools  []string
	sinks  []SnapshotSink

	log     logger.LoggerInterface
	tracer  apm.Tracer
	metrics *refresherMetrics

	runMu sync.Mutex

	mu          sync.RWMutex
	lastRefresh time.Time
	last        *domain.PriceSnapshot
}

// NewRefresher creates a new Refresher over the given pool ids.
func NewRefresher(
	source PoolStateSource,
	store StateStore,
	pricer *Pricer,
	pools []string,
	log logger.LoggerInterface,
	sinks ...SnapshotSink,
) (*Refresher, error) {
	r := &Refresher{
		source: source,
		store:  store,
		pricer: pricer,
		pools:  pools,
		sinks:  sinks,
		log:    log,
		tracer: apm.NewTracer(tracerName),
	}

	if err := r.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to init metrics: %w", err)
	}

	return r, nil
}

func (r *Refresher) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	r.metrics = &refresherMetrics{}

	r.metrics.refreshTotal, err = meter.Int64Counter(
		"dexprice_refresh_total",
		metric.WithDescription("Total price refreshes"),
	)
	if err != nil {
		return err
	}

	r.metrics.refreshLatency, err = meter.Float64Histogram(
		"dexprice_refresh_latency_ms",
		metric.WithDescription("Price refresh latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	r.metrics.poolErrors, err = meter.Int64Counter(
		"dexprice_pool_read_errors_total",
		metric.WithDescription("Total pool state read errors"),
	)
	if err != nil {
		return err
	}

	r.metrics.sinkErrors, err = meter.Int64Counter(
		"dexprice_sink_errors_total",
		metric.WithDescription("Total snapshot sink errors"),
	)
	if err != nil {
		return err
	}

	r.metrics.ethPriceUSD, err = meter.Float64Gauge(
		"dexprice_eth_price_usd",
		metric.WithDescription("Latest reference token price in USD"),
	)
	if err != nil {
		return err
	}

	return nil
}

// AddSink registers another snapshot consumer.
func (r *Refresher) AddSink(sink SnapshotSink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks = append(r.sinks, sink)
}

// LastRefresh returns when the last successful refresh finished.
func (r *Refresher) LastRefresh() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastRefresh
}

// LastSnapshot returns the last snapshot produced, or nil.
func (r *Refresher) LastSnapshot() *domain.PriceSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.last
}

// Refresh runs one pricing pass at blockNumber (0 reads the latest state).
// Pools that fail to read keep their previous state; the pass only fails when
// every pool fails.
func (r *Refresher) Refresh(ctx context.Context, blockNumber uint64, timestamp time.Time) (*domain.PriceSnapshot, error) {
	r.runMu.Lock()
	defer r.runMu.Unlock()

	ctx, span := r.tracer.StartSpanFromContext(ctx, "pricing.refresh")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("block_number", int64(blockNumber)),
		attribute.Int("pools", len(r.pools)),
	)

	start := time.Now()
	r.metrics.refreshTotal.Add(ctx, 1)
	defer func() {
		r.metrics.refreshLatency.Record(ctx, float64(time.Since(start).Milliseconds()))
	}()

	if err := r.loadPools(ctx, blockNumber); err != nil {
		span.NoticeError(err)
		return nil, err
	}

	r.linkWhitelistPools(ctx)

	ethPriceUSD := r.pricer.EthPriceInUSD(ctx)
	r.store.PutBundle(ctx, domain.NewBundle(ethPriceUSD))
	r.metrics.ethPriceUSD.Record(ctx, ethPriceUSD.InexactFloat64())

	for _, token := range r.pricingOrder(ctx) {
		r.store.SetDerivedETH(ctx, token.ID, r.pricer.FindEthPerToken(ctx, token))
	}

	snapshot := r.buildSnapshot(ctx, blockNumber, timestamp, ethPriceUSD)

	r.mu.RLock()
	sinks := r.sinks
	r.mu.RUnlock()

	for _, sink := range sinks {
		if err := sink.SaveSnapshot(ctx, snapshot); err != nil {
			r.metrics.sinkErrors.Add(ctx, 1)
			r.log.Warn(ctx, "snapshot sink failed", "block", blockNumber, "error", err)
		}
	}

	r.mu.Lock()
	r.lastRefresh = time.Now()
	r.last = snapshot
	r.mu.Unlock()

	span.SetAttributes(
		attribute.String("eth_price_usd", ethPriceUSD.String()),
		attribute.Int("tokens", len(snapshot.Tokens)),
	)
	span.SetStatus(codes.Ok, "refreshed")

	r.log.Debug(ctx, "prices refreshed",
		"block", blockNumber,
		"eth_price_usd", ethPriceUSD.String(),
		"tokens", len(snapshot.Tokens),
	)

	return snapshot, nil
}

func (r *Refresher) loadPools(ctx context.Context, blockNumber uint64) error {
	var block *big.Int
	if blockNumber > 0 {
		block = new(big.Int).SetUint64(blockNumber)
	}

	var lastErr error
	failed := 0

	for _, poolID := range r.pools {
		pool, tokens, err := r.source.ReadPool(ctx, poolID, block)
		if err != nil {
			failed++
			lastErr = err
			r.metrics.poolErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("pool", poolID)))
			r.log.Warn(ctx, "pool read failed, keeping previous state", "pool", poolID, "error", err)
			continue
		}

		r.store.PutPool(ctx, pool)
		for _, token := range tokens {
			if existing, ok := r.store.Token(ctx, token.ID); ok {
				token.DerivedETH = existing.DerivedETH
				token.WhitelistPools = existing.WhitelistPools
			}
			r.store.PutToken(ctx, token)
		}
	}

	if len(r.pools) > 0 && failed == len(r.pools) {
		return apperror.New(apperror.CodeRefreshFailed,
			apperror.WithCause(lastErr),
			apperror.WithContext(fmt.Sprintf("all %d pools failed", failed)))
	}
	return nil
}

// linkWhitelistPools rebuilds each token's candidate pools: a pool prices a
// token when the other side is whitelisted.
func (r *Refresher) linkWhitelistPools(ctx context.Context) {
	table := r.pricer.Table()
	candidates := make(map[string][]string)

	for _, poolID := range r.pools {
		pool, ok := r.store.Pool(ctx, poolID)
		if !ok {
			continue
		}
		if table.IsWhitelisted(pool.Token0) {
			candidates[pool.Token1] = append(candidates[pool.Token1], pool.ID)
		}
		if table.IsWhitelisted(pool.Token1) {
			candidates[pool.Token0] = append(candidates[pool.Token0], pool.ID)
		}
	}

	for _, token := range r.store.Tokens(ctx) {
		token.WhitelistPools = candidates[token.ID]
		r.store.PutToken(ctx, token)
	}
}

// pricingOrder returns stored tokens with the reference token first, then
// stablecoins, then other whitelisted tokens, then the rest; ids break ties.
func (r *Refresher) pricingOrder(ctx context.Context) []domain.Token {
	table := r.pricer.Table()
	rank := func(id string) int {
		switch {
		case id == table.ReferenceToken:
			return 0
		case table.IsStableCoin(id):
			return 1
		case table.IsWhitelisted(id):
			return 2
		default:
			return 3
		}
	}

	tokens := r.store.Tokens(ctx)
	sort.SliceStable(tokens, func(i, j int) bool {
		return rank(tokens[i].ID) < rank(tokens[j].ID)
	})
	return tokens
}

func (r *Refresher) buildSnapshot(ctx context.Context, blockNumber uint64, timestamp time.Time, ethPriceUSD decimal.Decimal) *domain.PriceSnapshot {
	tokens := r.store.Tokens(ctx)
	snapshot := &domain.PriceSnapshot{
		BlockNumber: blockNumber,
		Timestamp:   timestamp,
		EthPriceUSD: ethPriceUSD,
		Tokens:      make([]domain.TokenPrice, 0, len(tokens)),
	}
	for _, token := range tokens {
		snapshot.Tokens = append(snapshot.Tokens, domain.TokenPrice{
			TokenID:    token.ID,
			Symbol:     token.Symbol,
			DerivedETH: token.DerivedETH,
			PriceUSD:   token.DerivedETH.Mul(ethPriceUSD),
		})
	}
	return snapshot
}
