package app_test

import (
	"context"
	"math/big"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/fd1az/dexprice/business/pricing/app"
	"github.com/fd1az/dexprice/business/pricing/domain"
	"github.com/fd1az/dexprice/business/pricing/infra/memstore"
	"github.com/fd1az/dexprice/internal/logger"
)

const (
	weth    = "0x4200000000000000000000000000000000000006"
	usdbc   = "0xd9aaec86b65d86f6a7b5b1b0c42ffa531710b6ca"
	dai     = "0x50c5725949a6f0c72e6c4a641f24049a917db0cb"
	usdPool = "0xef3c164b0fee8eb073513e88ecea280a58cc9945"
	tokenX  = "0x1111111111111111111111111111111111111111"
	tokenY  = "0x2222222222222222222222222222222222222222"
	poolA   = "0x000000000000000000000000000000000000000a"
	poolB   = "0x000000000000000000000000000000000000000b"
	poolC   = "0x000000000000000000000000000000000000000c"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testTable() domain.PricingTable {
	return domain.PricingTable{
		ReferenceToken:   weth,
		USDPool:          usdPool,
		Whitelist:        domain.NewAddressSet(weth, usdbc, dai),
		StableCoins:      domain.NewAddressSet(usdbc, dai),
		MinimumEthLocked: domain.DefaultMinimumEthLocked,
	}
}

func newPricer(store *memstore.Store) *app.Pricer {
	return app.NewPricer(store, testTable(), logger.NewNop())
}

func liquidPool(id, token0, token1 string) domain.Pool {
	return domain.Pool{ID: id, Token0: token0, Token1: token1, Liquidity: big.NewInt(1_000_000)}
}

func TestPricer_EthPriceInUSD(t *testing.T) {
	ctx := context.Background()

	store := memstore.New()
	p := newPricer(store)
	if got := p.EthPriceInUSD(ctx); !got.IsZero() {
		t.Errorf("EthPriceInUSD() without USD pool = %s, want 0", got)
	}

	pool := liquidPool(usdPool, weth, usdbc)
	pool.Token0Price = d("0.0005")
	pool.Token1Price = d("2000")
	store.PutPool(ctx, pool)

	if got := p.EthPriceInUSD(ctx); !got.Equal(d("2000")) {
		t.Errorf("EthPriceInUSD() = %s, want 2000", got)
	}
}

func TestPricer_FindEthPerToken_Shortcuts(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		bundle    *decimal.Decimal
		token     domain.Token
		wantPrice string
	}{
		{
			name:      "reference_token_without_bundle",
			token:     domain.Token{ID: weth},
			wantPrice: "1",
		},
		{
			name:      "missing_bundle",
			token:     domain.Token{ID: tokenX},
			wantPrice: "0",
		},
		{
			name:      "stablecoin_inverse_of_eth_price",
			bundle:    ptr(d("2000")),
			token:     domain.Token{ID: usdbc, WhitelistPools: []string{poolA}},
			wantPrice: "0.0005",
		},
		{
			name:      "stablecoin_with_zero_eth_price",
			bundle:    ptr(decimal.Zero),
			token:     domain.Token{ID: dai},
			wantPrice: "0",
		},
		{
			name:      "no_candidate_pools",
			bundle:    ptr(d("2000")),
			token:     domain.Token{ID: tokenX},
			wantPrice: "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memstore.New()
			if tt.bundle != nil {
				store.PutBundle(ctx, domain.NewBundle(*tt.bundle))
			}
			got := newPricer(store).FindEthPerToken(ctx, tt.token)
			if !got.Equal(d(tt.wantPrice)) {
				t.Errorf("FindEthPerToken() = %s, want %s", got, tt.wantPrice)
			}
		})
	}
}

func TestPricer_FindEthPerToken_PoolSelection(t *testing.T) {
	ctx := context.Background()

	// Pools pair tokenX (token0) with WETH (token1) unless noted.
	tests := []struct {
		name      string
		pools     []domain.Pool
		candidate []string
		wantPrice string
	}{
		{
			name: "deeper_pool_wins",
			pools: []domain.Pool{
				withSide1(liquidPool(poolA, tokenX, weth), "1.5", "0.01"),
				withSide1(liquidPool(poolB, tokenX, weth), "3", "0.02"),
			},
			candidate: []string{poolA, poolB},
			wantPrice: "0.02",
		},
		{
			name: "earlier_deeper_pool_kept",
			pools: []domain.Pool{
				withSide1(liquidPool(poolA, tokenX, weth), "5", "0.01"),
				withSide1(liquidPool(poolB, tokenX, weth), "3", "0.02"),
			},
			candidate: []string{poolA, poolB},
			wantPrice: "0.01",
		},
		{
			name: "tie_keeps_earlier_pool",
			pools: []domain.Pool{
				withSide1(liquidPool(poolA, tokenX, weth), "3", "0.01"),
				withSide1(liquidPool(poolB, tokenX, weth), "3", "0.02"),
			},
			candidate: []string{poolA, poolB},
			wantPrice: "0.01",
		},
		{
			name: "below_minimum_eth_locked",
			pools: []domain.Pool{
				withSide1(liquidPool(poolA, tokenX, weth), "2", "0.01"),
			},
			candidate: []string{poolA},
			wantPrice: "0",
		},
		{
			name: "token_as_token1",
			pools: []domain.Pool{
				withSide0(liquidPool(poolA, weth, tokenX), "10", "0.05"),
			},
			candidate: []string{poolA},
			wantPrice: "0.05",
		},
		{
			name: "zero_liquidity_skipped",
			pools: []domain.Pool{
				func() domain.Pool {
					p := withSide1(liquidPool(poolA, tokenX, weth), "50", "0.09")
					p.Liquidity = big.NewInt(0)
					return p
				}(),
				withSide1(liquidPool(poolB, tokenX, weth), "3", "0.02"),
			},
			candidate: []string{poolA, poolB},
			wantPrice: "0.02",
		},
		{
			name: "dangling_pool_aborts",
			pools: []domain.Pool{
				withSide1(liquidPool(poolB, tokenX, weth), "3", "0.02"),
			},
			candidate: []string{poolC, poolB},
			wantPrice: "0",
		},
		{
			name: "missing_paired_token_aborts",
			pools: []domain.Pool{
				withSide1(liquidPool(poolA, tokenX, tokenY), "30", "0.5"),
				withSide1(liquidPool(poolB, tokenX, weth), "3", "0.02"),
			},
			candidate: []string{poolA, poolB},
			wantPrice: "0",
		},
		{
			name: "pool_without_token_ignored",
			pools: []domain.Pool{
				withSide1(liquidPool(poolA, usdbc, weth), "30", "0.5"),
				withSide1(liquidPool(poolB, tokenX, weth), "3", "0.02"),
			},
			candidate: []string{poolA, poolB},
			wantPrice: "0.02",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memstore.New()
			store.PutBundle(ctx, domain.NewBundle(d("2000")))
			store.PutToken(ctx, domain.Token{ID: weth, Decimals: 18, DerivedETH: domain.One})
			store.PutToken(ctx, domain.Token{ID: usdbc, Decimals: 6, DerivedETH: d("0.0005")})
			for _, pool := range tt.pools {
				store.PutPool(ctx, pool)
			}

			token := domain.Token{ID: tokenX, Decimals: 18, WhitelistPools: tt.candidate}
			got := newPricer(store).FindEthPerToken(ctx, token)
			if !got.Equal(d(tt.wantPrice)) {
				t.Errorf("FindEthPerToken() = %s, want %s", got, tt.wantPrice)
			}
		})
	}
}

func TestPricer_FindEthPerToken_SelfPairedPoolChecksBothSides(t *testing.T) {
	ctx := context.Background()

	store := memstore.New()
	store.PutBundle(ctx, domain.NewBundle(d("2000")))
	store.PutToken(ctx, domain.Token{ID: tokenX, Decimals: 18, DerivedETH: domain.One})

	pool := liquidPool(poolA, tokenX, tokenX)
	pool.TotalValueLockedToken1 = d("3")
	pool.Token1Price = d("0.02")
	pool.TotalValueLockedToken0 = d("5")
	pool.Token0Price = d("0.07")
	store.PutPool(ctx, pool)

	// Matching as token0 prices off the 3 ETH token1 side; matching as
	// token1 then replaces it with the deeper token0 side.
	token := domain.Token{ID: tokenX, Decimals: 18, WhitelistPools: []string{poolA}}
	if got := newPricer(store).FindEthPerToken(ctx, token); !got.Equal(d("0.07")) {
		t.Errorf("FindEthPerToken() = %s, want 0.07", got)
	}
}

func TestPricer_TrackedAmountUSD(t *testing.T) {
	ctx := context.Background()

	store := memstore.New()
	store.PutBundle(ctx, domain.NewBundle(d("2000")))
	p := newPricer(store)

	wethTok := domain.Token{ID: weth, DerivedETH: domain.One}
	usdTok := domain.Token{ID: usdbc, DerivedETH: d("0.0005")}
	xTok := domain.Token{ID: tokenX, DerivedETH: d("0.01")}
	yTok := domain.Token{ID: tokenY, DerivedETH: d("0.02")}

	tests := []struct {
		name    string
		amount0 string
		token0  domain.Token
		amount1 string
		token1  domain.Token
		want    string
	}{
		{"token0_whitelisted_doubled", "100", usdTok, "7", xTok, "200"},
		{"token1_whitelisted_doubled", "7", xTok, "100", usdTok, "200"},
		{"both_whitelisted_summed", "100", usdTok, "2", wethTok, "4100"},
		{"neither_whitelisted", "100", xTok, "100", yTok, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.TrackedAmountUSD(ctx, d(tt.amount0), tt.token0, d(tt.amount1), tt.token1)
			if !got.Equal(d(tt.want)) {
				t.Errorf("TrackedAmountUSD() = %s, want %s", got, tt.want)
			}

			swapped := p.TrackedAmountUSD(ctx, d(tt.amount1), tt.token1, d(tt.amount0), tt.token0)
			if !swapped.Equal(got) {
				t.Errorf("swapped sides = %s, want %s", swapped, got)
			}
		})
	}
}

func TestPricer_TrackedAmountUSD_MissingBundle(t *testing.T) {
	p := newPricer(memstore.New())
	got := p.TrackedAmountUSD(context.Background(),
		d("100"), domain.Token{ID: usdbc, DerivedETH: d("0.0005")},
		d("1"), domain.Token{ID: weth, DerivedETH: domain.One})
	if !got.IsZero() {
		t.Errorf("TrackedAmountUSD() without bundle = %s, want 0", got)
	}
}

func TestPricer_StablecoinFollowsMissingUSDPool(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	p := newPricer(store)

	store.PutBundle(ctx, domain.NewBundle(p.EthPriceInUSD(ctx)))

	if got := p.FindEthPerToken(ctx, domain.Token{ID: usdbc}); !got.IsZero() {
		t.Errorf("stablecoin price with no USD pool = %s, want 0", got)
	}
}

func TestPricer_ValueSwap(t *testing.T) {
	ctx := context.Background()

	store := memstore.New()
	store.PutBundle(ctx, domain.NewBundle(d("2000")))
	store.PutToken(ctx, domain.Token{ID: weth, Decimals: 18, DerivedETH: domain.One})
	store.PutToken(ctx, domain.Token{ID: usdbc, Decimals: 6, DerivedETH: d("0.0005")})
	store.PutToken(ctx, domain.Token{ID: tokenX, Decimals: 18, DerivedETH: d("0.01")})
	store.PutToken(ctx, domain.Token{ID: tokenY, Decimals: 18, DerivedETH: d("0.02")})
	store.PutPool(ctx, liquidPool(usdPool, weth, usdbc))
	store.PutPool(ctx, liquidPool(poolA, tokenX, weth))
	store.PutPool(ctx, liquidPool(poolB, tokenX, tokenY))

	oneEth := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

	tests := []struct {
		name          string
		pool          string
		amount0       *big.Int
		amount1       *big.Int
		wantUSD       string
		wantETH       string
		wantUntracked string
	}{
		{
			name:          "both_sides_whitelisted",
			pool:          usdPool,
			amount0:       new(big.Int).Neg(oneEth),
			amount1:       big.NewInt(2000_000000),
			wantUSD:       "2000",
			wantETH:       "1",
			wantUntracked: "2000",
		},
		{
			name:          "one_side_whitelisted",
			pool:          poolA,
			amount0:       new(big.Int).Mul(big.NewInt(100), oneEth),
			amount1:       new(big.Int).Neg(oneEth),
			wantUSD:       "2000",
			wantETH:       "1",
			wantUntracked: "2000",
		},
		{
			name:          "no_side_whitelisted",
			pool:          poolB,
			amount0:       new(big.Int).Mul(big.NewInt(100), oneEth),
			amount1:       new(big.Int).Mul(big.NewInt(-50), oneEth),
			wantUSD:       "0",
			wantETH:       "0",
			wantUntracked: "2000",
		},
		{
			name:          "unknown_pool",
			pool:          poolC,
			amount0:       oneEth,
			amount1:       oneEth,
			wantUSD:       "0",
			wantETH:       "0",
			wantUntracked: "0",
		},
	}

	p := newPricer(store)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.ValueSwap(ctx, tt.pool, tt.amount0, tt.amount1)
			if !got.AmountUSD.Equal(d(tt.wantUSD)) {
				t.Errorf("AmountUSD = %s, want %s", got.AmountUSD, tt.wantUSD)
			}
			if !got.AmountETH.Equal(d(tt.wantETH)) {
				t.Errorf("AmountETH = %s, want %s", got.AmountETH, tt.wantETH)
			}
			if !got.AmountUSDUntracked.Equal(d(tt.wantUntracked)) {
				t.Errorf("AmountUSDUntracked = %s, want %s", got.AmountUSDUntracked, tt.wantUntracked)
			}
		})
	}
}

// withSide1 sets the token1 side: TVL of token1 and token1 per token0.
func withSide1(p domain.Pool, tvl1, token1Price string) domain.Pool {
	p.TotalValueLockedToken1 = d(tvl1)
	p.Token1Price = d(token1Price)
	return p
}

// withSide0 sets the token0 side: TVL of token0 and token0 per token1.
func withSide0(p domain.Pool, tvl0, token0Price string) domain.Pool {
	p.TotalValueLockedToken0 = d(tvl0)
	p.Token0Price = d(token0Price)
	return p
}

func ptr(v decimal.Decimal) *decimal.Decimal {
	return &v
}
