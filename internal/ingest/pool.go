package ingest

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"fillScope/internal/model"
)

// Factories whose pools are ingested.
const (
	UniswapV2Factory = "0x5c69bee701ef814a2b6a3edd4b1652cb9cc5aa6f"
	SushiswapFactory = "0xc0aee478e3658e2610c5f7a4a2e1777ce9e4f2ac"
	UniswapV3Factory = "0x1f98431c8ad98523631ae4a59f267346ea31f984"
)

// ContractCaller performs read-only contract calls. *chain.Client satisfies it.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// PoolMetaCache caches pool metadata by address.
type PoolMetaCache struct {
	mu   sync.RWMutex
	data map[common.Address]model.PoolMeta
}

func NewPoolMetaCache() *PoolMetaCache {
	return &PoolMetaCache{data: make(map[common.Address]model.PoolMeta)}
}

func (c *PoolMetaCache) Get(address common.Address) (model.PoolMeta, bool) {
	c.mu.RLock()
	meta, ok := c.data[address]
	c.mu.RUnlock()
	return meta, ok
}

func (c *PoolMetaCache) Set(address common.Address, meta model.PoolMeta) {
	c.mu.Lock()
	c.data[address] = meta
	c.mu.Unlock()
}

// PoolResolver loads immutable pool metadata through a cache.
type PoolResolver struct {
	caller ContractCaller
	cache  *PoolMetaCache
}

func NewPoolResolver(caller ContractCaller, cache *PoolMetaCache) *PoolResolver {
	if cache == nil {
		cache = NewPoolMetaCache()
	}
	return &PoolResolver{caller: caller, cache: cache}
}

// Meta returns the factory and token pair of pool.
func (r *PoolResolver) Meta(ctx context.Context, pool common.Address) (model.PoolMeta, error) {
	if meta, ok := r.cache.Get(pool); ok {
		return meta, nil
	}
	if r.caller == nil {
		return model.PoolMeta{}, fmt.Errorf("contract caller is nil")
	}

	parsed, err := loadABIs()
	if err != nil {
		return model.PoolMeta{}, err
	}

	var addresses [3]common.Address
	for i, method := range []string{"factory", "token0", "token1"} {
		values, err := callPoolMethod(ctx, r.caller, pool, parsed.poolView, method)
		if err != nil {
			return model.PoolMeta{}, err
		}
		addr, err := asAddress(values[0])
		if err != nil {
			return model.PoolMeta{}, fmt.Errorf("%s: %w", method, err)
		}
		addresses[i] = addr
	}

	meta := model.PoolMeta{
		Factory: lowerHex(addresses[0]),
		Token0:  lowerHex(addresses[1]),
		Token1:  lowerHex(addresses[2]),
	}
	r.cache.Set(pool, meta)
	return meta, nil
}

func callPoolMethod(ctx context.Context, caller ContractCaller, pool common.Address, poolABI abi.ABI, method string) ([]interface{}, error) {
	data, err := poolABI.Pack(method)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	resp, err := caller.CallContract(ctx, ethereum.CallMsg{To: &pool, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	values, err := poolABI.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("unpack %s: empty result", method)
	}
	return values, nil
}

func lowerHex(address common.Address) string {
	return strings.ToLower(address.Hex())
}
