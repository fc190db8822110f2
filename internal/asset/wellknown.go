package asset

import "github.com/ethereum/go-ethereum/common"

// Chain IDs
const (
	ChainIDEthereum = 1
	ChainIDBase     = 8453
)

// Well-known token addresses on Base
var (
	AddrWETHBase    = common.HexToAddress("0x4200000000000000000000000000000000000006")
	AddrUSDbCBase   = common.HexToAddress("0xd9aAEc86B65D86f6A7B5B1b0c42FFA531710b6CA")
	AddrCbETHBase   = common.HexToAddress("0x2Ae3F1Ec7F1F5012CFEab0185bfc7aa3cf0DEc22")
	AddrAxlUSDCBase = common.HexToAddress("0xEB466342C4d449BC9f53A865D5Cb90586f405215")
	AddrDAIBase     = common.HexToAddress("0x50c5725949A6F0c72E6C4a641F24049A917DB0Cb")
	AddrUSDPlusBase = common.HexToAddress("0xB79DD08EA68A908A97220C76d19A6aA9cBDE4376")
	AddrDAIPlusBase = common.HexToAddress("0x65a2508C429a6078a7BC2f7dF81aB575BD9D9275")
	AddrMIMBase     = common.HexToAddress("0x4A3A6Dd60A34bB2Aba60D73B4C88315E9CeB6A3D")
)

// Well-known Base tokens
var (
	WETHBase    = MustToken(ChainIDBase, AddrWETHBase, "WETH", 18)
	USDbCBase   = MustToken(ChainIDBase, AddrUSDbCBase, "USDbC", 6)
	CbETHBase   = MustToken(ChainIDBase, AddrCbETHBase, "cbETH", 18)
	AxlUSDCBase = MustToken(ChainIDBase, AddrAxlUSDCBase, "axlUSDC", 6)
	DAIBase     = MustToken(ChainIDBase, AddrDAIBase, "DAI", 18)
	USDPlusBase = MustToken(ChainIDBase, AddrUSDPlusBase, "USD+", 6)
	DAIPlusBase = MustToken(ChainIDBase, AddrDAIPlusBase, "DAI+", 18)
	MIMBase     = MustToken(ChainIDBase, AddrMIMBase, "MIM", 18)
)

// DefaultRegistry returns a registry pre-populated with well-known tokens.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, a := range []*Asset{
		WETHBase, USDbCBase, CbETHBase, AxlUSDCBase,
		DAIBase, USDPlusBase, DAIPlusBase, MIMBase,
	} {
		r.Register(a)
	}
	return r
}
