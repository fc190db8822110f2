package app_test

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/fd1az/dexprice/business/pricing/app"
	"github.com/fd1az/dexprice/business/pricing/domain"
	"github.com/fd1az/dexprice/business/pricing/infra/memstore"
	"github.com/fd1az/dexprice/internal/apperror"
	"github.com/fd1az/dexprice/internal/logger"
)

type poolRead struct {
	pool   domain.Pool
	tokens []domain.Token
	err    error
}

type fakeSource struct {
	mu     sync.Mutex
	reads  map[string]poolRead
	blocks []*big.Int
}

func (f *fakeSource) ReadPool(_ context.Context, poolID string, block *big.Int) (domain.Pool, []domain.Token, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blocks = append(f.blocks, block)
	r, ok := f.reads[poolID]
	if !ok {
		return domain.Pool{}, nil, apperror.New(apperror.CodePoolNotFound, apperror.WithContext(poolID))
	}
	return r.pool, r.tokens, r.err
}

type recordingSink struct {
	snapshots []*domain.PriceSnapshot
	err       error
}

func (s *recordingSink) SaveSnapshot(_ context.Context, snapshot *domain.PriceSnapshot) error {
	s.snapshots = append(s.snapshots, snapshot)
	return s.err
}

func baseSource() *fakeSource {
	usd := liquidPool(usdPool, weth, usdbc)
	usd.TotalValueLockedToken0 = d("100")
	usd.TotalValueLockedToken1 = d("200000")
	usd.Token0Price = d("0.0005")
	usd.Token1Price = d("2000")

	x := liquidPool(poolA, tokenX, weth)
	x.TotalValueLockedToken0 = d("1000")
	x.TotalValueLockedToken1 = d("10")
	x.Token0Price = d("100")
	x.Token1Price = d("0.01")

	return &fakeSource{reads: map[string]poolRead{
		usdPool: {
			pool: usd,
			tokens: []domain.Token{
				{ID: weth, Symbol: "WETH", Decimals: 18},
				{ID: usdbc, Symbol: "USDbC", Decimals: 6},
			},
		},
		poolA: {
			pool: x,
			tokens: []domain.Token{
				{ID: tokenX, Symbol: "X", Decimals: 18},
				{ID: weth, Symbol: "WETH", Decimals: 18},
			},
		},
	}}
}

func newRefresher(t *testing.T, source app.PoolStateSource, store *memstore.Store, pools []string, sinks ...app.SnapshotSink) *app.Refresher {
	t.Helper()
	r, err := app.NewRefresher(source, store, newPricer(store), pools, logger.NewNop(), sinks...)
	if err != nil {
		t.Fatalf("NewRefresher() error = %v", err)
	}
	return r
}

func TestRefresher_PricesAllTokens(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	sink := &recordingSink{}
	r := newRefresher(t, baseSource(), store, []string{usdPool, poolA}, sink)

	ts := time.Unix(1_700_000_000, 0)
	snapshot, err := r.Refresh(ctx, 100, ts)
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	if !snapshot.EthPriceUSD.Equal(d("2000")) {
		t.Errorf("EthPriceUSD = %s, want 2000", snapshot.EthPriceUSD)
	}
	if snapshot.BlockNumber != 100 || !snapshot.Timestamp.Equal(ts) {
		t.Errorf("snapshot block/time = %d/%s", snapshot.BlockNumber, snapshot.Timestamp)
	}

	want := map[string]struct{ eth, usd string }{
		weth:   {"1", "2000"},
		usdbc:  {"0.0005", "1"},
		tokenX: {"0.01", "20"},
	}
	if len(snapshot.Tokens) != len(want) {
		t.Fatalf("len(Tokens) = %d, want %d", len(snapshot.Tokens), len(want))
	}
	for id, w := range want {
		row, ok := snapshot.Token(id)
		if !ok {
			t.Errorf("token %s missing from snapshot", id)
			continue
		}
		if !row.DerivedETH.Equal(d(w.eth)) {
			t.Errorf("%s DerivedETH = %s, want %s", row.Symbol, row.DerivedETH, w.eth)
		}
		if !row.PriceUSD.Equal(d(w.usd)) {
			t.Errorf("%s PriceUSD = %s, want %s", row.Symbol, row.PriceUSD, w.usd)
		}
	}

	if len(sink.snapshots) != 1 || sink.snapshots[0] != snapshot {
		t.Errorf("sink received %d snapshots", len(sink.snapshots))
	}
	if r.LastSnapshot() != snapshot {
		t.Error("LastSnapshot() should return the latest snapshot")
	}
	if r.LastRefresh().IsZero() {
		t.Error("LastRefresh() should be set")
	}

	bundle, ok := store.Bundle(ctx)
	if !ok || !bundle.EthPriceUSD.Equal(d("2000")) {
		t.Errorf("stored bundle = %+v, %v", bundle, ok)
	}
}

func TestRefresher_LinksWhitelistPools(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	r := newRefresher(t, baseSource(), store, []string{usdPool, poolA})

	if _, err := r.Refresh(ctx, 0, time.Now()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	tests := []struct {
		token string
		want  []string
	}{
		{weth, []string{usdPool}},
		{usdbc, []string{usdPool}},
		{tokenX, []string{poolA}},
	}
	for _, tt := range tests {
		tok, _ := store.Token(ctx, tt.token)
		if len(tok.WhitelistPools) != len(tt.want) {
			t.Errorf("%s WhitelistPools = %v, want %v", tt.token, tok.WhitelistPools, tt.want)
			continue
		}
		for i := range tt.want {
			if tok.WhitelistPools[i] != tt.want[i] {
				t.Errorf("%s WhitelistPools = %v, want %v", tt.token, tok.WhitelistPools, tt.want)
			}
		}
	}
}

func TestRefresher_BlockArgument(t *testing.T) {
	source := baseSource()
	r := newRefresher(t, source, memstore.New(), []string{usdPool})

	if _, err := r.Refresh(context.Background(), 0, time.Now()); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Refresh(context.Background(), 42, time.Now()); err != nil {
		t.Fatal(err)
	}

	if source.blocks[0] != nil {
		t.Errorf("block 0 should read latest state, got %s", source.blocks[0])
	}
	if source.blocks[1] == nil || source.blocks[1].Uint64() != 42 {
		t.Errorf("block 42 passed as %v", source.blocks[1])
	}
}

func TestRefresher_PartialFailureKeepsPreviousState(t *testing.T) {
	ctx := context.Background()
	source := baseSource()
	store := memstore.New()
	r := newRefresher(t, source, store, []string{usdPool, poolA})

	if _, err := r.Refresh(ctx, 1, time.Now()); err != nil {
		t.Fatal(err)
	}

	read := source.reads[poolA]
	read.err = errors.New("rpc timeout")
	source.reads[poolA] = read

	snapshot, err := r.Refresh(ctx, 2, time.Now())
	if err != nil {
		t.Fatalf("partial failure should not fail refresh: %v", err)
	}
	row, ok := snapshot.Token(tokenX)
	if !ok || !row.DerivedETH.Equal(d("0.01")) {
		t.Errorf("tokenX after failed read = %+v, %v; want previous price kept", row, ok)
	}
}

func TestRefresher_AllPoolsFail(t *testing.T) {
	sink := &recordingSink{}
	r := newRefresher(t, &fakeSource{reads: map[string]poolRead{}}, memstore.New(), []string{usdPool, poolA}, sink)

	_, err := r.Refresh(context.Background(), 1, time.Now())
	if apperror.GetCode(err) != apperror.CodeRefreshFailed {
		t.Fatalf("Refresh() error = %v, want CodeRefreshFailed", err)
	}
	if len(sink.snapshots) != 0 {
		t.Error("failed refresh should not reach sinks")
	}
}

func TestRefresher_SinkErrorDoesNotFail(t *testing.T) {
	failing := &recordingSink{err: errors.New("db down")}
	ok := &recordingSink{}
	r := newRefresher(t, baseSource(), memstore.New(), []string{usdPool}, failing)
	r.AddSink(ok)

	if _, err := r.Refresh(context.Background(), 1, time.Now()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if len(failing.snapshots) != 1 || len(ok.snapshots) != 1 {
		t.Errorf("sinks received %d and %d snapshots, want 1 and 1", len(failing.snapshots), len(ok.snapshots))
	}
}
