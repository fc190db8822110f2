package ethereum

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	geth "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/fd1az/dexprice/business/blockchain/domain"
	"github.com/fd1az/dexprice/internal/apperror"
	"github.com/fd1az/dexprice/internal/logger"
)

func header(n int64, parent byte) *types.Header {
	return &types.Header{
		Number:     big.NewInt(n),
		ParentHash: common.Hash{parent},
		Difficulty: big.NewInt(0),
		Time:       uint64(time.Now().Unix()),
	}
}

// pollClient serves an increasing head on every HeaderByNumber call and
// refuses WS subscriptions.
type pollClient struct {
	mu   sync.Mutex
	head int64
}

func (c *pollClient) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.head++
	return header(c.head, 1), nil
}

func (c *pollClient) SubscribeNewHead(context.Context, chan<- *types.Header) (geth.Subscription, error) {
	return nil, errors.New("notifications not supported")
}

func (c *pollClient) Close() {}

func TestNextBackoff(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{6, 30 * time.Second},
		{50, 30 * time.Second},
	}
	for _, tt := range tests {
		if got := nextBackoff(tt.attempt, time.Second, 30*time.Second); got != tt.want {
			t.Errorf("nextBackoff(%d) = %s, want %s", tt.attempt, got, tt.want)
		}
	}
}

func TestNewSubscriber_RequiresURL(t *testing.T) {
	_, err := NewSubscriber(SubscriberConfig{}, logger.NewNop())
	if apperror.GetCode(err) != apperror.CodeConfigurationError {
		t.Errorf("error = %v, want CodeConfigurationError", err)
	}
}

func TestSubscriber_ProcessHeaderDedupesAndDetectsReorg(t *testing.T) {
	s, err := newSubscriber(DefaultSubscriberConfig("", "http://node"), logger.NewNop(), nil)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	s.processHeader(ctx, header(10, 1), false)
	s.processHeader(ctx, header(10, 1), true)
	s.processHeader(ctx, header(9, 1), false)
	// Same height with a different parent is a replacement block.
	s.processHeader(ctx, header(10, 2), false)
	s.processHeader(ctx, header(11, 1), false)

	var got []uint64
	for len(s.blocks) > 0 {
		got = append(got, (<-s.blocks).Number)
	}
	want := []uint64{10, 10, 11}
	if len(got) != len(want) {
		t.Fatalf("emitted %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("emitted %v, want %v", got, want)
		}
	}
	if s.Status().LastBlock != 11 {
		t.Errorf("LastBlock = %d", s.Status().LastBlock)
	}
}

func TestSubscriber_HTTPOnlyPolling(t *testing.T) {
	client := &pollClient{}
	dial := func(context.Context, string) (headerClient, error) { return client, nil }

	cfg := DefaultSubscriberConfig("", "http://node")
	cfg.PollInterval = 5 * time.Millisecond
	s, err := newSubscriber(cfg, logger.NewNop(), dial)
	if err != nil {
		t.Fatal(err)
	}

	blocks, err := s.Subscribe(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	for want := uint64(1); want <= 3; want++ {
		select {
		case b := <-blocks:
			if b.Number != want {
				t.Fatalf("block = %d, want %d", b.Number, want)
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for block")
		}
	}

	if st := s.Status(); !st.UsingHTTP || st.State != domain.StateConnected {
		t.Errorf("status = %+v", st)
	}

	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if s.State() != domain.StateDisconnected {
		t.Errorf("state after close = %s", s.State())
	}
}

func TestSubscriber_WSFailureFallsBackToHTTP(t *testing.T) {
	client := &pollClient{}
	dial := func(context.Context, string) (headerClient, error) { return client, nil }

	cfg := DefaultSubscriberConfig("ws://node", "http://node")
	cfg.PollInterval = 5 * time.Millisecond
	cfg.InitialBackoff = time.Hour
	s, err := newSubscriber(cfg, logger.NewNop(), dial)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	blocks, err := s.Subscribe(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	select {
	case <-blocks:
	case <-time.After(time.Second):
		t.Fatal("http fallback should deliver blocks while ws is down")
	}
	if !s.Status().UsingHTTP {
		t.Error("UsingHTTP = false")
	}
}

// stallClient never answers a header fetch until its context ends.
type stallClient struct {
	calls       chan struct{}
	hadDeadline chan bool
}

func (c *stallClient) HeaderByNumber(ctx context.Context, _ *big.Int) (*types.Header, error) {
	_, ok := ctx.Deadline()
	select {
	case c.hadDeadline <- ok:
	default:
	}
	select {
	case c.calls <- struct{}{}:
	default:
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

func (c *stallClient) SubscribeNewHead(context.Context, chan<- *types.Header) (geth.Subscription, error) {
	return nil, errors.New("notifications not supported")
}

func (c *stallClient) Close() {}

func TestSubscriber_StalledPollDoesNotBlockClose(t *testing.T) {
	client := &stallClient{calls: make(chan struct{}, 1), hadDeadline: make(chan bool, 1)}
	dial := func(context.Context, string) (headerClient, error) { return client, nil }

	cfg := DefaultSubscriberConfig("", "http://node")
	cfg.PollInterval = time.Hour
	cfg.RequestTimeout = 20 * time.Millisecond
	s, err := newSubscriber(cfg, logger.NewNop(), dial)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := s.Subscribe(context.Background()); err != nil {
		t.Fatal(err)
	}

	select {
	case <-client.calls:
	case <-time.After(time.Second):
		t.Fatal("poll never reached the node")
	}
	if !<-client.hadDeadline {
		t.Error("header fetch ran without a deadline")
	}

	closed := make(chan error, 1)
	go func() { closed <- s.Close() }()

	select {
	case err := <-closed:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Close blocked on a stalled header fetch")
	}
}

func TestSubscriber_BothDialsFail(t *testing.T) {
	dial := func(context.Context, string) (headerClient, error) { return nil, errors.New("refused") }

	s, err := newSubscriber(DefaultSubscriberConfig("ws://node", "http://node"), logger.NewNop(), dial)
	if err != nil {
		t.Fatal(err)
	}

	_, err = s.Subscribe(context.Background())
	if apperror.GetCode(err) != apperror.CodeEthereumConnectionFailed {
		t.Errorf("error = %v, want CodeEthereumConnectionFailed", err)
	}
}
