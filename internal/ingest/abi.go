package ingest

import (
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const exchangeV1ABIJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "name": "maker", "type": "address"},
      {"indexed": false, "name": "taker", "type": "address"},
      {"indexed": true, "name": "feeRecipient", "type": "address"},
      {"indexed": false, "name": "makerToken", "type": "address"},
      {"indexed": false, "name": "takerToken", "type": "address"},
      {"indexed": false, "name": "filledMakerTokenAmount", "type": "uint256"},
      {"indexed": false, "name": "filledTakerTokenAmount", "type": "uint256"},
      {"indexed": false, "name": "paidMakerFee", "type": "uint256"},
      {"indexed": false, "name": "paidTakerFee", "type": "uint256"},
      {"indexed": true, "name": "tokens", "type": "bytes32"},
      {"indexed": false, "name": "orderHash", "type": "bytes32"}
    ],
    "name": "LogFill",
    "type": "event"
  }
]`

const exchangeV2ABIJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "name": "makerAddress", "type": "address"},
      {"indexed": true, "name": "feeRecipientAddress", "type": "address"},
      {"indexed": false, "name": "takerAddress", "type": "address"},
      {"indexed": false, "name": "senderAddress", "type": "address"},
      {"indexed": false, "name": "makerAssetFilledAmount", "type": "uint256"},
      {"indexed": false, "name": "takerAssetFilledAmount", "type": "uint256"},
      {"indexed": false, "name": "makerFeePaid", "type": "uint256"},
      {"indexed": false, "name": "takerFeePaid", "type": "uint256"},
      {"indexed": true, "name": "orderHash", "type": "bytes32"},
      {"indexed": false, "name": "makerAssetData", "type": "bytes"},
      {"indexed": false, "name": "takerAssetData", "type": "bytes"}
    ],
    "name": "Fill",
    "type": "event"
  }
]`

const exchangeV3ABIJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "name": "makerAddress", "type": "address"},
      {"indexed": true, "name": "feeRecipientAddress", "type": "address"},
      {"indexed": false, "name": "makerAssetData", "type": "bytes"},
      {"indexed": false, "name": "takerAssetData", "type": "bytes"},
      {"indexed": false, "name": "makerFeeAssetData", "type": "bytes"},
      {"indexed": false, "name": "takerFeeAssetData", "type": "bytes"},
      {"indexed": true, "name": "orderHash", "type": "bytes32"},
      {"indexed": false, "name": "takerAddress", "type": "address"},
      {"indexed": false, "name": "senderAddress", "type": "address"},
      {"indexed": false, "name": "makerAssetFilledAmount", "type": "uint256"},
      {"indexed": false, "name": "takerAssetFilledAmount", "type": "uint256"},
      {"indexed": false, "name": "makerFeePaid", "type": "uint256"},
      {"indexed": false, "name": "takerFeePaid", "type": "uint256"},
      {"indexed": false, "name": "protocolFeePaid", "type": "uint256"}
    ],
    "name": "Fill",
    "type": "event"
  }
]`

// exchangeProxyABIJSON covers the exchange proxy and its transformer and bridge contracts.
const exchangeProxyABIJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": false, "name": "orderHash", "type": "bytes32"},
      {"indexed": false, "name": "maker", "type": "address"},
      {"indexed": false, "name": "taker", "type": "address"},
      {"indexed": false, "name": "feeRecipient", "type": "address"},
      {"indexed": false, "name": "makerToken", "type": "address"},
      {"indexed": false, "name": "takerToken", "type": "address"},
      {"indexed": false, "name": "takerTokenFilledAmount", "type": "uint128"},
      {"indexed": false, "name": "makerTokenFilledAmount", "type": "uint128"},
      {"indexed": false, "name": "takerTokenFeeFilledAmount", "type": "uint128"},
      {"indexed": false, "name": "protocolFeePaid", "type": "uint256"},
      {"indexed": false, "name": "pool", "type": "bytes32"}
    ],
    "name": "LimitOrderFilled",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": false, "name": "orderHash", "type": "bytes32"},
      {"indexed": false, "name": "maker", "type": "address"},
      {"indexed": false, "name": "taker", "type": "address"},
      {"indexed": false, "name": "makerToken", "type": "address"},
      {"indexed": false, "name": "takerToken", "type": "address"},
      {"indexed": false, "name": "takerTokenFilledAmount", "type": "uint128"},
      {"indexed": false, "name": "makerTokenFilledAmount", "type": "uint128"},
      {"indexed": false, "name": "pool", "type": "bytes32"}
    ],
    "name": "RfqOrderFilled",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": false, "name": "inputToken", "type": "address"},
      {"indexed": false, "name": "outputToken", "type": "address"},
      {"indexed": false, "name": "inputTokenAmount", "type": "uint256"},
      {"indexed": false, "name": "outputTokenAmount", "type": "uint256"},
      {"indexed": false, "name": "provider", "type": "address"},
      {"indexed": false, "name": "recipient", "type": "address"}
    ],
    "name": "LiquidityProviderSwap",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "name": "taker", "type": "address"},
      {"indexed": false, "name": "inputToken", "type": "address"},
      {"indexed": false, "name": "outputToken", "type": "address"},
      {"indexed": false, "name": "inputTokenAmount", "type": "uint256"},
      {"indexed": false, "name": "outputTokenAmount", "type": "uint256"}
    ],
    "name": "TransformedERC20",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": false, "name": "source", "type": "bytes32"},
      {"indexed": false, "name": "inputToken", "type": "address"},
      {"indexed": false, "name": "outputToken", "type": "address"},
      {"indexed": false, "name": "inputTokenAmount", "type": "uint256"},
      {"indexed": false, "name": "outputTokenAmount", "type": "uint256"}
    ],
    "name": "BridgeFill",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": false, "name": "inputToken", "type": "address"},
      {"indexed": false, "name": "outputToken", "type": "address"},
      {"indexed": false, "name": "inputTokenAmount", "type": "uint256"},
      {"indexed": false, "name": "outputTokenAmount", "type": "uint256"},
      {"indexed": false, "name": "from", "type": "address"},
      {"indexed": false, "name": "to", "type": "address"}
    ],
    "name": "ERC20BridgeTransfer",
    "type": "event"
  }
]`

// pairABIJSON is the Uniswap V2 pair Swap. Sushiswap pairs share it.
const pairABIJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "name": "sender", "type": "address"},
      {"indexed": false, "name": "amount0In", "type": "uint256"},
      {"indexed": false, "name": "amount1In", "type": "uint256"},
      {"indexed": false, "name": "amount0Out", "type": "uint256"},
      {"indexed": false, "name": "amount1Out", "type": "uint256"},
      {"indexed": true, "name": "to", "type": "address"}
    ],
    "name": "Swap",
    "type": "event"
  }
]`

const v3PoolABIJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "name": "sender", "type": "address"},
      {"indexed": true, "name": "recipient", "type": "address"},
      {"indexed": false, "name": "amount0", "type": "int256"},
      {"indexed": false, "name": "amount1", "type": "int256"},
      {"indexed": false, "name": "sqrtPriceX96", "type": "uint160"},
      {"indexed": false, "name": "liquidity", "type": "uint128"},
      {"indexed": false, "name": "tick", "type": "int24"}
    ],
    "name": "Swap",
    "type": "event"
  }
]`

// poolViewABIJSON holds the immutable getters shared by V2 pairs and V3 pools.
const poolViewABIJSON = `[
  {"inputs": [], "name": "token0", "outputs": [{"type": "address"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "token1", "outputs": [{"type": "address"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "factory", "outputs": [{"type": "address"}], "stateMutability": "view", "type": "function"}
]`

type parsedABIs struct {
	exchangeV1    abi.ABI
	exchangeV2    abi.ABI
	exchangeV3    abi.ABI
	exchangeProxy abi.ABI
	pair          abi.ABI
	v3Pool        abi.ABI
	poolView      abi.ABI
}

var (
	abis     parsedABIs
	abisOnce sync.Once
	abisErr  error
)

func loadABIs() (parsedABIs, error) {
	abisOnce.Do(func() {
		for _, item := range []struct {
			name string
			json string
			out  *abi.ABI
		}{
			{"exchange v1", exchangeV1ABIJSON, &abis.exchangeV1},
			{"exchange v2", exchangeV2ABIJSON, &abis.exchangeV2},
			{"exchange v3", exchangeV3ABIJSON, &abis.exchangeV3},
			{"exchange proxy", exchangeProxyABIJSON, &abis.exchangeProxy},
			{"pair", pairABIJSON, &abis.pair},
			{"v3 pool", v3PoolABIJSON, &abis.v3Pool},
			{"pool view", poolViewABIJSON, &abis.poolView},
		} {
			parsed, err := abi.JSON(strings.NewReader(item.json))
			if err != nil {
				abisErr = fmt.Errorf("parse %s abi: %w", item.name, err)
				return
			}
			*item.out = parsed
		}
	})
	return abis, abisErr
}
