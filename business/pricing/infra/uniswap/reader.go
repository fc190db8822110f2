// Package uniswap reads Uniswap V3 pool state from chain.
package uniswap

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/dexprice/business/pricing/app"
	"github.com/fd1az/dexprice/business/pricing/domain"
	"github.com/fd1az/dexprice/internal/apperror"
	"github.com/fd1az/dexprice/internal/asset"
	"github.com/fd1az/dexprice/internal/circuitbreaker"
	"github.com/fd1az/dexprice/internal/logger"
	"github.com/fd1az/dexprice/internal/ratelimit"
)

const (
	tracerName = "uniswap"
	meterName  = "uniswap"
)

// Ensure StateReader implements PoolStateSource.
var _ app.PoolStateSource = (*StateReader)(nil)

// ContractCaller executes read-only contract calls. *ethclient.Client
// satisfies it.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// ReaderConfig holds StateReader settings.
type ReaderConfig struct {
	ChainID      uint64
	RPCPerMinute int
	CallTimeout  time.Duration
}

// readerMetrics holds OTEL metric instruments.
type readerMetrics struct {
	callsTotal  metric.Int64Counter
	callLatency metric.Float64Histogram
	callErrors  metric.Int64Counter
	poolReads   metric.Int64Counter
	throttled   metric.Float64Histogram
}

type poolTokens struct {
	token0 common.Address
	token1 common.Address
}

// StateReader implements PoolStateSource over JSON-RPC eth_call.
type StateReader struct {
	caller   ContractCaller
	cfg      ReaderConfig
	poolABI  abi.ABI
	erc20ABI abi.ABI
	bytesABI abi.ABI

	registry *asset.Registry
	limiter  *ratelimit.Limiter
	cb       *circuitbreaker.CircuitBreaker[[]byte]
	logger   logger.LoggerInterface

	mu    sync.RWMutex
	pools map[common.Address]poolTokens

	tracer  trace.Tracer
	metrics *readerMetrics
}

// NewStateReader creates a new StateReader.
func NewStateReader(caller ContractCaller, cfg ReaderConfig, registry *asset.Registry, log logger.LoggerInterface) (*StateReader, error) {
	pool, erc20, bytes32, err := parsedABIs()
	if err != nil {
		return nil, fmt.Errorf("failed to parse ABIs: %w", err)
	}

	if cfg.RPCPerMinute <= 0 {
		cfg.RPCPerMinute = 600
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 10 * time.Second
	}
	if registry == nil {
		registry = asset.DefaultRegistry()
	}

	r := &StateReader{
		caller:   caller,
		cfg:      cfg,
		poolABI:  pool,
		erc20ABI: erc20,
		bytesABI: bytes32,
		registry: registry,
		limiter:  ratelimit.New(cfg.RPCPerMinute),
		logger:   log,
		pools:    make(map[common.Address]poolTokens),
		tracer:   otel.Tracer(tracerName),
	}

	cbCfg := circuitbreaker.DefaultConfig("uniswap-pool-state")
	r.cb = circuitbreaker.New[[]byte](cbCfg)

	if err := r.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to init metrics: %w", err)
	}

	return r, nil
}

func (r *StateReader) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	r.metrics = &readerMetrics{}

	r.metrics.callsTotal, err = meter.Int64Counter(
		"uniswap_calls_total",
		metric.WithDescription("Total contract calls"),
	)
	if err != nil {
		return err
	}

	r.metrics.callLatency, err = meter.Float64Histogram(
		"uniswap_call_latency_ms",
		metric.WithDescription("Contract call latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	r.metrics.callErrors, err = meter.Int64Counter(
		"uniswap_call_errors_total",
		metric.WithDescription("Total contract call errors"),
	)
	if err != nil {
		return err
	}

	r.metrics.poolReads, err = meter.Int64Counter(
		"uniswap_pool_reads_total",
		metric.WithDescription("Total pool state reads"),
	)
	if err != nil {
		return err
	}

	r.metrics.throttled, err = meter.Float64Histogram(
		"uniswap_rpc_throttle_ms",
		metric.WithDescription("Time calls waited on the RPC budget"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	return nil
}

// ReadPool reads pool state at block (nil for latest) and the metadata of
// both tokens. Prices come from slot0; TVL from each token's pool balance.
func (r *StateReader) ReadPool(ctx context.Context, poolID string, block *big.Int) (domain.Pool, []domain.Token, error) {
	if !common.IsHexAddress(poolID) {
		return domain.Pool{}, nil, apperror.Validation(apperror.CodeInvalidAddress, poolID)
	}
	poolAddr := common.HexToAddress(poolID)

	ctx, span := r.tracer.Start(ctx, "uniswap.read_pool",
		trace.WithAttributes(attribute.String("pool", poolAddr.Hex())),
	)
	defer span.End()
	if block != nil {
		span.SetAttributes(attribute.String("block", block.String()))
	}

	r.metrics.poolReads.Add(ctx, 1)

	pool, tokens, err := r.readPool(ctx, poolAddr, block)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "pool read failed")
		return domain.Pool{}, nil, apperror.Wrap(err, apperror.CodePoolReadFailed, poolAddr.Hex())
	}

	span.SetAttributes(
		attribute.String("token0_price", pool.Token0Price.String()),
		attribute.String("token1_price", pool.Token1Price.String()),
	)
	span.SetStatus(codes.Ok, "pool read")

	return pool, tokens, nil
}

func (r *StateReader) readPool(ctx context.Context, poolAddr common.Address, block *big.Int) (domain.Pool, []domain.Token, error) {
	pt, err := r.poolTokens(ctx, poolAddr)
	if err != nil {
		return domain.Pool{}, nil, err
	}

	meta0, err := r.tokenAsset(ctx, pt.token0)
	if err != nil {
		return domain.Pool{}, nil, err
	}
	meta1, err := r.tokenAsset(ctx, pt.token1)
	if err != nil {
		return domain.Pool{}, nil, err
	}

	values, err := r.call(ctx, poolAddr, r.poolABI, "slot0", block)
	if err != nil {
		return domain.Pool{}, nil, err
	}
	sqrtPriceX96, err := asBigInt(values[0])
	if err != nil {
		return domain.Pool{}, nil, apperror.New(apperror.CodeInvalidSqrtPrice, apperror.WithCause(err))
	}

	values, err = r.call(ctx, poolAddr, r.poolABI, "liquidity", block)
	if err != nil {
		return domain.Pool{}, nil, err
	}
	liquidity, err := asBigInt(values[0])
	if err != nil {
		return domain.Pool{}, nil, fmt.Errorf("liquidity: %w", err)
	}

	balance0, err := r.balanceOf(ctx, pt.token0, poolAddr, block)
	if err != nil {
		return domain.Pool{}, nil, err
	}
	balance1, err := r.balanceOf(ctx, pt.token1, poolAddr, block)
	if err != nil {
		return domain.Pool{}, nil, err
	}

	price0, price1 := domain.SqrtPriceX96ToTokenPrices(sqrtPriceX96, meta0.Decimals(), meta1.Decimals())

	id0 := toID(pt.token0)
	id1 := toID(pt.token1)

	pool := domain.Pool{
		ID:                     toID(poolAddr),
		Token0:                 id0,
		Token1:                 id1,
		Liquidity:              liquidity,
		SqrtPriceX96:           sqrtPriceX96,
		TotalValueLockedToken0: domain.ConvertTokenToDecimal(balance0, meta0.Decimals()),
		TotalValueLockedToken1: domain.ConvertTokenToDecimal(balance1, meta1.Decimals()),
		Token0Price:            price0,
		Token1Price:            price1,
	}

	tokens := []domain.Token{
		{ID: id0, Symbol: meta0.Symbol(), Decimals: meta0.Decimals()},
		{ID: id1, Symbol: meta1.Symbol(), Decimals: meta1.Decimals()},
	}

	r.logger.Debug(ctx, "pool state read",
		"pool", pool.ID,
		"block", block,
		"sqrt_price_x96", sqrtPriceX96.String(),
		"liquidity", liquidity.String(),
		"token1_price", price1.String(),
	)

	return pool, tokens, nil
}

// poolTokens returns a pool's immutable token pair, cached after first read.
func (r *StateReader) poolTokens(ctx context.Context, poolAddr common.Address) (poolTokens, error) {
	r.mu.RLock()
	pt, ok := r.pools[poolAddr]
	r.mu.RUnlock()
	if ok {
		return pt, nil
	}

	values, err := r.call(ctx, poolAddr, r.poolABI, "token0", nil)
	if err != nil {
		return poolTokens{}, err
	}
	token0, err := asAddress(values[0])
	if err != nil {
		return poolTokens{}, fmt.Errorf("token0: %w", err)
	}

	values, err = r.call(ctx, poolAddr, r.poolABI, "token1", nil)
	if err != nil {
		return poolTokens{}, err
	}
	token1, err := asAddress(values[0])
	if err != nil {
		return poolTokens{}, fmt.Errorf("token1: %w", err)
	}

	pt = poolTokens{token0: token0, token1: token1}
	r.mu.Lock()
	r.pools[poolAddr] = pt
	r.mu.Unlock()
	return pt, nil
}

// tokenAsset resolves decimals and symbol from the asset registry, reading
// them from chain the first time a token is seen.
func (r *StateReader) tokenAsset(ctx context.Context, token common.Address) (*asset.Asset, error) {
	if a, ok := r.registry.GetToken(r.cfg.ChainID, token); ok {
		return a, nil
	}

	values, err := r.call(ctx, token, r.erc20ABI, "decimals", nil)
	if err != nil {
		return nil, apperror.New(apperror.CodeTokenReadFailed,
			apperror.WithCause(err), apperror.WithContext(token.Hex()))
	}
	decimals, err := asUint8(values[0])
	if err != nil {
		return nil, apperror.New(apperror.CodeTokenReadFailed,
			apperror.WithCause(err), apperror.WithContext(token.Hex()))
	}

	a, err := asset.NewToken(r.cfg.ChainID, token, r.symbol(ctx, token), decimals)
	if err != nil {
		return nil, apperror.New(apperror.CodeTokenReadFailed,
			apperror.WithCause(err), apperror.WithContext(token.Hex()))
	}
	return r.registry.Remember(a), nil
}

// symbol reads a token symbol, accepting string or bytes32 encodings. Tokens
// without one are labelled by a shortened address.
func (r *StateReader) symbol(ctx context.Context, token common.Address) string {
	if values, err := r.call(ctx, token, r.erc20ABI, "symbol", nil); err == nil {
		if s, ok := values[0].(string); ok && s != "" {
			return s
		}
	}
	if values, err := r.call(ctx, token, r.bytesABI, "symbol", nil); err == nil {
		if s, ok := bytes32ToString(values[0]); ok && s != "" {
			return s
		}
	}
	r.logger.Debug(ctx, "token symbol unavailable", "token", token.Hex())
	return ""
}

func (r *StateReader) balanceOf(ctx context.Context, token, owner common.Address, block *big.Int) (*big.Int, error) {
	values, err := r.call(ctx, token, r.erc20ABI, "balanceOf", block, owner)
	if err != nil {
		return nil, err
	}
	return asBigInt(values[0])
}

// call packs, rate-limits and executes one eth_call through the circuit
// breaker, then unpacks the result.
func (r *StateReader) call(ctx context.Context, to common.Address, parsed abi.ABI, method string, block *big.Int, args ...interface{}) ([]interface{}, error) {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	attrs := metric.WithAttributes(attribute.String("method", method))

	waited, err := r.limiter.Wait(ctx)
	if err != nil {
		return nil, apperror.New(apperror.CodeRateLimitExceeded, apperror.WithCause(err))
	}
	if waited > 0 {
		r.metrics.throttled.Record(ctx, float64(waited.Milliseconds()), attrs)
	}

	start := time.Now()
	r.metrics.callsTotal.Add(ctx, 1, attrs)

	result, err := r.cb.Execute(func() ([]byte, error) {
		callCtx, cancel := context.WithTimeout(ctx, r.cfg.CallTimeout)
		defer cancel()
		return r.caller.CallContract(callCtx, ethereum.CallMsg{To: &to, Data: data}, block)
	})

	r.metrics.callLatency.Record(ctx, float64(time.Since(start).Milliseconds()), attrs)

	if err != nil {
		r.metrics.callErrors.Add(ctx, 1, attrs)
		if apperror.IsAppError(err) {
			return nil, err
		}
		return nil, apperror.New(apperror.CodeContractCallFailed,
			apperror.WithCause(err),
			apperror.WithContext(fmt.Sprintf("%s on %s", method, to.Hex())))
	}

	values, err := parsed.Unpack(method, result)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("unpack %s: empty result", method)
	}
	return values, nil
}

func toID(addr common.Address) string {
	return strings.ToLower(addr.Hex())
}

func bytes32ToString(value interface{}) (string, bool) {
	switch v := value.(type) {
	case [32]byte:
		return string(bytes.TrimRight(v[:], "\x00")), true
	case []byte:
		return string(bytes.TrimRight(v, "\x00")), true
	default:
		return "", false
	}
}

func asAddress(value interface{}) (common.Address, error) {
	switch v := value.(type) {
	case common.Address:
		return v, nil
	case *common.Address:
		return *v, nil
	default:
		return common.Address{}, fmt.Errorf("unsupported address type %T", value)
	}
}

func asBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
}

func asUint8(value interface{}) (uint8, error) {
	switch v := value.(type) {
	case uint8:
		return v, nil
	case *big.Int:
		if !v.IsUint64() || v.Uint64() > 255 {
			return 0, fmt.Errorf("decimals out of range: %s", v)
		}
		return uint8(v.Uint64()), nil
	default:
		return 0, fmt.Errorf("unsupported uint8 type %T", value)
	}
}
