package memstore_test

import (
	"context"
	"math/big"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/fd1az/dexprice/business/pricing/domain"
	"github.com/fd1az/dexprice/business/pricing/infra/memstore"
)

func TestStore_LookupsReportPresence(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()

	if _, ok := s.Pool(ctx, "0xpool"); ok {
		t.Error("empty store should not have pool")
	}
	if _, ok := s.Token(ctx, "0xtoken"); ok {
		t.Error("empty store should not have token")
	}
	if _, ok := s.Bundle(ctx); ok {
		t.Error("empty store should not have bundle")
	}

	s.PutBundle(ctx, domain.NewBundle(decimal.NewFromInt(2000)))
	b, ok := s.Bundle(ctx)
	if !ok || b.ID != domain.BundleID || !b.EthPriceUSD.Equal(decimal.NewFromInt(2000)) {
		t.Errorf("Bundle() = %+v, %v", b, ok)
	}
}

func TestStore_CopiesValues(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()

	liq := big.NewInt(100)
	s.PutPool(ctx, domain.Pool{ID: "0xpool", Liquidity: liq})
	liq.SetInt64(0)

	p, _ := s.Pool(ctx, "0xpool")
	if p.Liquidity.Int64() != 100 {
		t.Errorf("stored liquidity changed through caller's pointer: %s", p.Liquidity)
	}

	pools := []string{"0xa"}
	s.PutToken(ctx, domain.Token{ID: "0xt", WhitelistPools: pools})
	pools[0] = "0xmutated"

	tok, _ := s.Token(ctx, "0xt")
	if tok.WhitelistPools[0] != "0xa" {
		t.Errorf("stored whitelist changed through caller's slice: %v", tok.WhitelistPools)
	}
}

func TestStore_SetDerivedETH(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	s.PutToken(ctx, domain.Token{ID: "0xt", Symbol: "T"})

	if !s.SetDerivedETH(ctx, "0xt", decimal.RequireFromString("0.5")) {
		t.Fatal("SetDerivedETH should succeed for stored token")
	}
	if s.SetDerivedETH(ctx, "0xmissing", decimal.NewFromInt(1)) {
		t.Error("SetDerivedETH should report false for unknown token")
	}

	tok, _ := s.Token(ctx, "0xt")
	if !tok.DerivedETH.Equal(decimal.RequireFromString("0.5")) {
		t.Errorf("DerivedETH = %s", tok.DerivedETH)
	}
	if tok.Symbol != "T" {
		t.Errorf("Symbol = %q, other fields should be kept", tok.Symbol)
	}
}

func TestStore_ListsSortedByID(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	for _, id := range []string{"0xc", "0xa", "0xb"} {
		s.PutToken(ctx, domain.Token{ID: id})
		s.PutPool(ctx, domain.Pool{ID: id})
	}

	tokens := s.Tokens(ctx)
	pools := s.Pools(ctx)
	want := []string{"0xa", "0xb", "0xc"}
	for i, id := range want {
		if tokens[i].ID != id {
			t.Errorf("tokens[%d] = %s, want %s", i, tokens[i].ID, id)
		}
		if pools[i].ID != id {
			t.Errorf("pools[%d] = %s, want %s", i, pools[i].ID, id)
		}
	}
}

func TestStore_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	s.PutToken(ctx, domain.Token{ID: "0xt"})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			s.SetDerivedETH(ctx, "0xt", decimal.NewFromInt(int64(i)))
		}(i)
		go func() {
			defer wg.Done()
			_ = s.Tokens(ctx)
		}()
	}
	wg.Wait()

	if _, ok := s.Token(ctx, "0xt"); !ok {
		t.Error("token lost under concurrent access")
	}
}
