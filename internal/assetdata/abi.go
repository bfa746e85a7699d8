package assetdata

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Asset proxy encodings are ABI-encoded calls whose selector identifies the proxy.
const proxyABIJSON = `[
  {
    "inputs": [{"name": "tokenAddress", "type": "address"}],
    "name": "ERC20Token",
    "outputs": [],
    "stateMutability": "pure",
    "type": "function"
  },
  {
    "inputs": [
      {"name": "tokenAddress", "type": "address"},
      {"name": "tokenId", "type": "uint256"}
    ],
    "name": "ERC721Token",
    "outputs": [],
    "stateMutability": "pure",
    "type": "function"
  },
  {
    "inputs": [
      {"name": "tokenAddress", "type": "address"},
      {"name": "tokenIds", "type": "uint256[]"},
      {"name": "tokenValues", "type": "uint256[]"},
      {"name": "callbackData", "type": "bytes"}
    ],
    "name": "ERC1155Assets",
    "outputs": [],
    "stateMutability": "pure",
    "type": "function"
  },
  {
    "inputs": [
      {"name": "amounts", "type": "uint256[]"},
      {"name": "nestedAssetData", "type": "bytes[]"}
    ],
    "name": "MultiAsset",
    "outputs": [],
    "stateMutability": "pure",
    "type": "function"
  },
  {
    "inputs": [
      {"name": "tokenAddress", "type": "address"},
      {"name": "bridgeAddress", "type": "address"},
      {"name": "bridgeData", "type": "bytes"}
    ],
    "name": "ERC20Bridge",
    "outputs": [],
    "stateMutability": "pure",
    "type": "function"
  },
  {
    "inputs": [
      {"name": "staticCallTargetAddress", "type": "address"},
      {"name": "staticCallData", "type": "bytes"},
      {"name": "expectedReturnDataHash", "type": "bytes32"}
    ],
    "name": "StaticCall",
    "outputs": [],
    "stateMutability": "pure",
    "type": "function"
  }
]`

const (
	methodERC20       = "ERC20Token"
	methodERC721      = "ERC721Token"
	methodERC1155     = "ERC1155Assets"
	methodMultiAsset  = "MultiAsset"
	methodERC20Bridge = "ERC20Bridge"
	methodStaticCall  = "StaticCall"
)

var (
	proxyABI     abi.ABI
	proxyABIOnce sync.Once
	proxyABIErr  error
)

// ProxyABI returns the parsed asset proxy ABI.
func ProxyABI() (abi.ABI, error) {
	proxyABIOnce.Do(func() {
		proxyABI, proxyABIErr = abi.JSON(strings.NewReader(proxyABIJSON))
	})
	return proxyABI, proxyABIErr
}
