// Package ethereum provides Ethereum blockchain infrastructure adapters.
package ethereum

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	geth "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/dexprice/business/blockchain/app"
	"github.com/fd1az/dexprice/business/blockchain/domain"
	"github.com/fd1az/dexprice/internal/apperror"
	"github.com/fd1az/dexprice/internal/circuitbreaker"
	"github.com/fd1az/dexprice/internal/logger"
)

const (
	tracerName = "github.com/fd1az/dexprice/business/blockchain/infra/ethereum"
	meterName  = "github.com/fd1az/dexprice/business/blockchain/infra/ethereum"
)

var _ app.BlockSubscriber = (*Subscriber)(nil)

// SubscriberConfig holds configuration for the Ethereum subscriber.
type SubscriberConfig struct {
	WSURL          string        // WebSocket endpoint (primary)
	HTTPURL        string        // HTTP endpoint (fallback)
	PollInterval   time.Duration // Polling interval for HTTP fallback
	RequestTimeout time.Duration // Deadline for a single header fetch
	InitialBackoff time.Duration // First WS reconnect delay
	MaxBackoff     time.Duration // Cap on the WS reconnect delay
	MaxReconnects  int           // 0 means retry WS forever
	BufferSize     int           // Block channel buffer size
}

// DefaultSubscriberConfig returns defaults tuned for a 2s block time.
func DefaultSubscriberConfig(wsURL, httpURL string) SubscriberConfig {
	return SubscriberConfig{
		WSURL:          wsURL,
		HTTPURL:        httpURL,
		PollInterval:   2 * time.Second,
		RequestTimeout: 10 * time.Second,
		InitialBackoff: time.Second,
		MaxBackoff:     30 * time.Second,
		BufferSize:     16,
	}
}

// headerClient is the part of *ethclient.Client the subscriber uses.
type headerClient interface {
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	SubscribeNewHead(ctx context.Context, ch chan<- *types.Header) (geth.Subscription, error)
	Close()
}

type dialFunc func(ctx context.Context, url string) (headerClient, error)

func dialEthclient(ctx context.Context, url string) (headerClient, error) {
	return ethclient.DialContext(ctx, url)
}

type subscriberMetrics struct {
	blocksReceived   metric.Int64Counter
	subscribeErrors  metric.Int64Counter
	connectionState  metric.Int64Gauge
	blockLatency     metric.Float64Histogram
	httpFallbackUsed metric.Int64Counter
	reorgs           metric.Int64Counter
}

// Subscriber implements BlockSubscriber using go-ethereum client.
// WebSocket is primary; HTTP polling keeps blocks flowing while WS is down.
type Subscriber struct {
	config SubscriberConfig
	logger logger.LoggerInterface
	dial   dialFunc

	wsClient   headerClient
	httpClient headerClient
	clientMu   sync.RWMutex

	state      domain.ConnectionState
	stateMu    sync.RWMutex
	usingHTTP  atomic.Bool
	reconnects atomic.Int32
	started    atomic.Bool

	headMu   sync.Mutex
	lastNum  uint64
	lastHash common.Hash
	lastSeen time.Time

	blocks  chan *domain.Block
	done    chan struct{}
	closeMu sync.Mutex
	closed  atomic.Bool
	wg      sync.WaitGroup

	httpCB *circuitbreaker.CircuitBreaker[*types.Header]

	tracer  trace.Tracer
	metrics *subscriberMetrics
}

// NewSubscriber creates a new Ethereum block subscriber.
func NewSubscriber(cfg SubscriberConfig, log logger.LoggerInterface) (*Subscriber, error) {
	return newSubscriber(cfg, log, dialEthclient)
}

func newSubscriber(cfg SubscriberConfig, log logger.LoggerInterface, dial dialFunc) (*Subscriber, error) {
	if cfg.WSURL == "" && cfg.HTTPURL == "" {
		return nil, apperror.New(apperror.CodeConfigurationError,
			apperror.WithContext("ethereum ws or http url is required"))
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 16
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}

	s := &Subscriber{
		config: cfg,
		logger: log,
		dial:   dial,
		state:  domain.StateDisconnected,
		blocks: make(chan *domain.Block, cfg.BufferSize),
		done:   make(chan struct{}),
		tracer: otel.Tracer(tracerName),
	}

	if err := s.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	httpCfg := circuitbreaker.DefaultConfig("eth-http")
	httpCfg.OnStateChange = func(name string, from, to gobreaker.State) {
		s.logger.Info(context.Background(), "circuit breaker state change",
			"breaker", name, "from", from.String(), "to", to.String())
	}
	s.httpCB = circuitbreaker.New[*types.Header](httpCfg)

	return s, nil
}

func (s *Subscriber) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	s.metrics = &subscriberMetrics{}

	s.metrics.blocksReceived, err = meter.Int64Counter(
		"eth_blocks_received_total",
		metric.WithDescription("Total blocks received"),
		metric.WithUnit("{block}"),
	)
	if err != nil {
		return err
	}

	s.metrics.subscribeErrors, err = meter.Int64Counter(
		"eth_subscribe_errors_total",
		metric.WithDescription("Total subscription and poll errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return err
	}

	s.metrics.connectionState, err = meter.Int64Gauge(
		"eth_connection_state",
		metric.WithDescription("Connection state (0=disconnected, 1=connecting, 2=connected, 3=reconnecting)"),
		metric.WithUnit("{state}"),
	)
	if err != nil {
		return err
	}

	s.metrics.blockLatency, err = meter.Float64Histogram(
		"eth_block_latency_ms",
		metric.WithDescription("Latency from block timestamp to receipt"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	s.metrics.httpFallbackUsed, err = meter.Int64Counter(
		"eth_http_fallback_total",
		metric.WithDescription("Times HTTP polling took over from WS"),
		metric.WithUnit("{fallback}"),
	)
	if err != nil {
		return err
	}

	s.metrics.reorgs, err = meter.Int64Counter(
		"eth_reorgs_total",
		metric.WithDescription("Blocks replaced at an already seen height"),
		metric.WithUnit("{block}"),
	)
	return err
}

// Subscribe connects and starts delivering blocks. It may be called once.
func (s *Subscriber) Subscribe(ctx context.Context) (<-chan *domain.Block, error) {
	ctx, span := s.tracer.Start(ctx, "eth.subscribe",
		trace.WithAttributes(
			attribute.Bool("ws_configured", s.config.WSURL != ""),
			attribute.Bool("http_configured", s.config.HTTPURL != ""),
		),
	)
	defer span.End()

	if s.closed.Load() {
		err := errors.New("subscriber is closed")
		span.RecordError(err)
		return nil, err
	}
	if !s.started.CompareAndSwap(false, true) {
		return s.blocks, nil
	}

	s.setState(domain.StateConnecting)

	wsErr := s.connect(ctx, s.config.WSURL, &s.wsClient)
	httpErr := s.connect(ctx, s.config.HTTPURL, &s.httpClient)
	if wsErr != nil && httpErr != nil {
		span.RecordError(httpErr)
		span.SetStatus(codes.Error, "both connections failed")
		s.setState(domain.StateDisconnected)
		s.started.Store(false)
		return nil, apperror.New(apperror.CodeEthereumConnectionFailed,
			apperror.WithCause(errors.Join(wsErr, httpErr)),
			apperror.WithContext("failed to connect via WS and HTTP"))
	}
	if wsErr != nil {
		s.logger.Warn(ctx, "ws connection failed, using http polling", "error", wsErr)
		span.AddEvent("ws_failed_using_http")
	}

	s.setState(domain.StateConnected)
	span.SetStatus(codes.Ok, "subscribed")

	s.wg.Add(1)
	go s.run(context.WithoutCancel(ctx))

	return s.blocks, nil
}

// connect dials url into *slot. An empty url is reported as an error.
func (s *Subscriber) connect(ctx context.Context, url string, slot *headerClient) error {
	if url == "" {
		return errors.New("url not configured")
	}

	ctx, span := s.tracer.Start(ctx, "eth.connect")
	defer span.End()

	client, err := s.dial(ctx, url)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "dial failed")
		return fmt.Errorf("dial: %w", err)
	}

	s.clientMu.Lock()
	if old := *slot; old != nil {
		old.Close()
	}
	*slot = client
	s.clientMu.Unlock()

	span.SetStatus(codes.Ok, "connected")
	return nil
}

// run follows WS heads and switches to HTTP polling whenever the WS
// subscription is down. The reconnect delay doubles up to MaxBackoff and
// resets once a subscription delivers a header.
func (s *Subscriber) run(ctx context.Context) {
	defer s.wg.Done()

	if s.config.WSURL == "" {
		s.pollHTTP(ctx, s.done)
		return
	}

	attempt := 0
	for !s.closed.Load() {
		s.clientMu.RLock()
		ws := s.wsClient
		s.clientMu.RUnlock()

		if ws != nil {
			s.usingHTTP.Store(false)
			s.setState(domain.StateConnected)
			if s.followWS(ctx, ws) {
				attempt = 0
			}
		}
		if s.closed.Load() {
			return
		}

		attempt++
		s.reconnects.Add(1)
		if s.config.MaxReconnects > 0 && attempt > s.config.MaxReconnects {
			s.logger.Warn(ctx, "ws reconnects exhausted, staying on http", "attempts", attempt-1)
			s.pollHTTP(ctx, s.done)
			return
		}

		delay := nextBackoff(attempt, s.config.InitialBackoff, s.config.MaxBackoff)
		s.setState(domain.StateReconnecting)
		s.logger.Warn(ctx, "ws subscription down", "attempt", attempt, "retry_in", delay)

		// Keep blocks flowing over HTTP until the next WS attempt.
		window := make(chan struct{})
		timer := time.AfterFunc(delay, func() { close(window) })
		s.pollHTTP(ctx, window)
		timer.Stop()

		if s.closed.Load() {
			return
		}
		if err := s.connect(ctx, s.config.WSURL, &s.wsClient); err != nil {
			s.logger.Warn(ctx, "ws reconnect failed", "error", err)
			s.clientMu.Lock()
			s.wsClient = nil
			s.clientMu.Unlock()
		}
	}
}

// followWS processes heads until the subscription fails. It reports whether
// any header arrived.
func (s *Subscriber) followWS(ctx context.Context, client headerClient) bool {
	headers := make(chan *types.Header, s.config.BufferSize)

	sub, err := client.SubscribeNewHead(ctx, headers)
	if err != nil {
		s.logger.Error(ctx, "subscribe new head failed", "error", err)
		s.metrics.subscribeErrors.Add(ctx, 1)
		return false
	}
	defer sub.Unsubscribe()

	s.logger.Info(ctx, "subscribed to new heads via ws")

	received := false
	for {
		select {
		case <-s.done:
			return received
		case err := <-sub.Err():
			if err != nil {
				s.logger.Error(ctx, "subscription error", "error", err)
				s.metrics.subscribeErrors.Add(ctx, 1)
			}
			return received
		case header := <-headers:
			if header == nil {
				continue
			}
			received = true
			s.processHeader(ctx, header, false)
		}
	}
}

// pollHTTP polls the latest header until stop or s.done is closed.
func (s *Subscriber) pollHTTP(ctx context.Context, stop <-chan struct{}) {
	s.clientMu.RLock()
	hasHTTP := s.httpClient != nil
	s.clientMu.RUnlock()

	if !hasHTTP {
		if err := s.connect(ctx, s.config.HTTPURL, &s.httpClient); err != nil {
			s.logger.Debug(ctx, "http fallback unavailable", "error", err)
			select {
			case <-stop:
			case <-s.done:
			}
			return
		}
	}

	s.usingHTTP.Store(true)
	s.metrics.httpFallbackUsed.Add(ctx, 1)
	s.logger.Info(ctx, "polling blocks over http", "interval", s.config.PollInterval)

	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	s.pollLatestBlock(ctx)
	for {
		select {
		case <-stop:
			return
		case <-s.done:
			return
		case <-ticker.C:
			s.pollLatestBlock(ctx)
		}
	}
}

func (s *Subscriber) pollLatestBlock(ctx context.Context) {
	ctx, span := s.tracer.Start(ctx, "eth.poll.block")
	defer span.End()

	s.clientMu.RLock()
	client := s.httpClient
	s.clientMu.RUnlock()

	if client == nil {
		span.AddEvent("no_http_client")
		return
	}

	// run's context outlives Subscribe's caller; the deadline keeps a
	// stalled node from blocking Close.
	callCtx, cancel := context.WithTimeout(ctx, s.config.RequestTimeout)
	defer cancel()

	header, err := s.httpCB.Execute(func() (*types.Header, error) {
		return client.HeaderByNumber(callCtx, nil)
	})
	if err != nil {
		span.RecordError(err)
		s.logger.Error(ctx, "http poll failed", "error", err)
		s.metrics.subscribeErrors.Add(ctx, 1)
		return
	}

	s.processHeader(ctx, header, true)
	span.SetStatus(codes.Ok, "polled")
}

// processHeader emits header unless it was already seen. A different hash at
// the current height is a reorg and is emitted again.
func (s *Subscriber) processHeader(ctx context.Context, header *types.Header, fromHTTP bool) {
	block := headerToBlock(header)

	s.headMu.Lock()
	switch {
	case block.Number < s.lastNum:
		s.headMu.Unlock()
		return
	case block.Number == s.lastNum && block.Hash == s.lastHash:
		s.headMu.Unlock()
		return
	case block.Number == s.lastNum:
		s.metrics.reorgs.Add(ctx, 1)
		s.logger.Warn(ctx, "block replaced at same height", "number", block.Number)
	}
	s.lastNum = block.Number
	s.lastHash = block.Hash
	s.lastSeen = time.Now()
	s.headMu.Unlock()

	ctx, span := s.tracer.Start(ctx, "eth.process.header",
		trace.WithAttributes(
			attribute.Int64("block_number", int64(block.Number)),
			attribute.Bool("from_http", fromHTTP),
		),
	)
	defer span.End()

	latency := time.Since(block.Timestamp)
	s.metrics.blockLatency.Record(ctx, float64(latency.Milliseconds()))

	// Non-blocking so a slow consumer never stalls the subscription.
	select {
	case s.blocks <- block:
		s.metrics.blocksReceived.Add(ctx, 1)
		s.logger.Debug(ctx, "block received",
			"number", block.Number,
			"hash", block.Hash.Hex()[:10],
			"latency_ms", latency.Milliseconds())
	default:
		span.AddEvent("block_dropped_buffer_full")
		s.logger.Warn(ctx, "block dropped, buffer full", "number", block.Number)
	}
}

func headerToBlock(header *types.Header) *domain.Block {
	return &domain.Block{
		Number:     header.Number.Uint64(),
		Hash:       header.Hash(),
		ParentHash: header.ParentHash,
		Timestamp:  time.Unix(int64(header.Time), 0),
	}
}

// nextBackoff returns initial doubled attempt-1 times, capped at max.
func nextBackoff(attempt int, initial, max time.Duration) time.Duration {
	if initial <= 0 {
		initial = time.Second
	}
	if max < initial {
		max = initial
	}
	d := initial
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	return d
}

// LatestBlock retrieves the most recent block over HTTP, or WS when no HTTP
// client is connected.
func (s *Subscriber) LatestBlock(ctx context.Context) (*domain.Block, error) {
	ctx, span := s.tracer.Start(ctx, "eth.latest_block")
	defer span.End()

	s.clientMu.RLock()
	client := s.httpClient
	if client == nil {
		client = s.wsClient
	}
	s.clientMu.RUnlock()

	if client == nil {
		span.SetStatus(codes.Error, "no client")
		return nil, apperror.New(apperror.CodeEthereumConnectionFailed,
			apperror.WithContext("no ethereum client connected"))
	}

	callCtx, cancel := context.WithTimeout(ctx, s.config.RequestTimeout)
	defer cancel()

	header, err := s.httpCB.Execute(func() (*types.Header, error) {
		return client.HeaderByNumber(callCtx, nil)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return nil, apperror.New(apperror.CodeBlockNotFound,
			apperror.WithCause(err),
			apperror.WithContext("failed to fetch latest block"))
	}

	span.SetStatus(codes.Ok, "fetched")
	return headerToBlock(header), nil
}

// State returns the current connection state.
func (s *Subscriber) State() domain.ConnectionState {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.state
}

// Status returns detailed connection status.
func (s *Subscriber) Status() domain.ConnectionStatus {
	s.headMu.Lock()
	last, seen := s.lastNum, s.lastSeen
	s.headMu.Unlock()

	return domain.ConnectionStatus{
		State:      s.State(),
		LastBlock:  last,
		LastSeen:   seen,
		Reconnects: int(s.reconnects.Load()),
		UsingHTTP:  s.usingHTTP.Load(),
	}
}

// Close stops the subscription and closes the block channel.
func (s *Subscriber) Close() error {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()

	if s.closed.Load() {
		return nil
	}

	s.logger.Info(context.Background(), "closing ethereum subscriber")

	s.closed.Store(true)
	close(s.done)
	s.wg.Wait()

	s.clientMu.Lock()
	if s.wsClient != nil {
		s.wsClient.Close()
		s.wsClient = nil
	}
	if s.httpClient != nil {
		s.httpClient.Close()
		s.httpClient = nil
	}
	s.clientMu.Unlock()

	close(s.blocks)
	s.setState(domain.StateDisconnected)

	return nil
}

func (s *Subscriber) setState(state domain.ConnectionState) {
	s.stateMu.Lock()
	s.state = state
	s.stateMu.Unlock()

	s.metrics.connectionState.Record(context.Background(), state.GaugeValue())
}
