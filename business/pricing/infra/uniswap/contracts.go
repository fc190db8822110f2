package uniswap

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// PoolABI covers the Uniswap V3 pool getters the reader uses.
const PoolABI = `[
	{"inputs": [], "name": "token0", "outputs": [{"internalType": "address", "name": "", "type": "address"}], "stateMutability": "view", "type": "function"},
	{"inputs": [], "name": "token1", "outputs": [{"internalType": "address", "name": "", "type": "address"}], "stateMutability": "view", "type": "function"},
	{"inputs": [], "name": "liquidity", "outputs": [{"internalType": "uint128", "name": "", "type": "uint128"}], "stateMutability": "view", "type": "function"},
	{
		"inputs": [],
		"name": "slot0",
		"outputs": [
			{"internalType": "uint160", "name": "sqrtPriceX96", "type": "uint160"},
			{"internalType": "int24", "name": "tick", "type": "int24"},
			{"internalType": "uint16", "name": "observationIndex", "type": "uint16"},
			{"internalType": "uint16", "name": "observationCardinality", "type": "uint16"},
			{"internalType": "uint16", "name": "observationCardinalityNext", "type": "uint16"},
			{"internalType": "uint8", "name": "feeProtocol", "type": "uint8"},
			{"internalType": "bool", "name": "unlocked", "type": "bool"}
		],
		"stateMutability": "view",
		"type": "function"
	}
]`

// ERC20ABI covers token metadata and balances.
const ERC20ABI = `[
	{"inputs": [], "name": "decimals", "outputs": [{"type": "uint8"}], "stateMutability": "view", "type": "function"},
	{"inputs": [], "name": "symbol", "outputs": [{"type": "string"}], "stateMutability": "view", "type": "function"},
	{"inputs": [{"name": "account", "type": "address"}], "name": "balanceOf", "outputs": [{"type": "uint256"}], "stateMutability": "view", "type": "function"}
]`

// erc20Bytes32ABI decodes tokens that return symbol as bytes32.
const erc20Bytes32ABI = `[
	{"inputs": [], "name": "symbol", "outputs": [{"type": "bytes32"}], "stateMutability": "view", "type": "function"}
]`

var (
	abisOnce     sync.Once
	poolABI      abi.ABI
	erc20ABI     abi.ABI
	erc20Bytes32 abi.ABI
	abisErr      error
)

func parsedABIs() (abi.ABI, abi.ABI, abi.ABI, error) {
	abisOnce.Do(func() {
		if poolABI, abisErr = abi.JSON(strings.NewReader(PoolABI)); abisErr != nil {
			return
		}
		if erc20ABI, abisErr = abi.JSON(strings.NewReader(ERC20ABI)); abisErr != nil {
			return
		}
		erc20Bytes32, abisErr = abi.JSON(strings.NewReader(erc20Bytes32ABI))
	})
	return poolABI, erc20ABI, erc20Bytes32, abisErr
}
