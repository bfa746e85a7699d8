package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"fillScope/internal/model"
)

// DefaultTimeout bounds every RPC call made through Client.
const DefaultTimeout = 10 * time.Second

// ErrNotFound is returned when the node does not know the requested object.
var ErrNotFound = errors.New("chain: not found")

// Client wraps go-ethereum RPC and applies a per-call timeout.
type Client struct {
	rpcClient *rpc.Client
	ethClient *ethclient.Client
	timeout   time.Duration

	mu      sync.RWMutex
	tsCache map[common.Hash]uint64
}

// NewClient creates a new chain client from the RPC URL. A non-positive timeout uses DefaultTimeout.
func NewClient(ctx context.Context, rpcURL string, timeout time.Duration) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Client{
		rpcClient: rpcClient,
		ethClient: ethclient.NewClient(rpcClient),
		timeout:   timeout,
		tsCache:   make(map[common.Hash]uint64),
	}, nil
}

// Close closes the underlying RPC client.
func (c *Client) Close() {
	if c.rpcClient != nil {
		c.rpcClient.Close()
	}
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.timeout)
}

// ChainID returns the chain ID.
func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return c.ethClient.ChainID(ctx)
}

// LatestBlockNumber returns the latest block number.
func (c *Client) LatestBlockNumber(ctx context.Context) (uint64, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return c.ethClient.BlockNumber(ctx)
}

// TransactionByHash returns a mined transaction. Pending transactions are reported as ErrNotFound.
func (c *Client) TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	tx, pending, err := c.ethClient.TransactionByHash(ctx, hash)
	if err != nil {
		return nil, mapNotFound(err)
	}
	if pending {
		return nil, ErrNotFound
	}
	return tx, nil
}

// TransactionReceipt returns the receipt of a mined transaction.
func (c *Client) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	receipt, err := c.ethClient.TransactionReceipt(ctx, hash)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return receipt, nil
}

// HeaderByHash returns the block header with the given hash.
func (c *Client) HeaderByHash(ctx context.Context, hash common.Hash) (*types.Header, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	header, err := c.ethClient.HeaderByHash(ctx, hash)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return header, nil
}

// BlockTimestamp returns the timestamp of the block with the given hash, using an in-memory cache.
func (c *Client) BlockTimestamp(ctx context.Context, hash common.Hash) (uint64, error) {
	c.mu.RLock()
	ts, ok := c.tsCache[hash]
	c.mu.RUnlock()
	if ok {
		return ts, nil
	}

	header, err := c.HeaderByHash(ctx, hash)
	if err != nil {
		return 0, err
	}

	ts = header.Time
	c.mu.Lock()
	c.tsCache[hash] = ts
	c.mu.Unlock()

	return ts, nil
}

// GetBlock returns the block with the given hash, or nil when the node does not have it.
func (c *Client) GetBlock(ctx context.Context, hash string) (*model.Block, error) {
	header, err := c.HeaderByHash(ctx, common.HexToHash(hash))
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("header %s: %w", hash, err)
	}
	return &model.Block{
		Hash:   model.NormalizeAddress(header.Hash().Hex()),
		Number: header.Number.Uint64(),
		Date:   time.Unix(int64(header.Time), 0).UTC(),
	}, nil
}

// FilterLogs returns logs in the given range for addresses and topic0 filters.
func (c *Client) FilterLogs(
	ctx context.Context,
	fromBlock uint64,
	toBlock uint64,
	addresses []common.Address,
	topic0 []common.Hash,
) ([]types.Log, error) {
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: addresses,
	}
	if len(topic0) > 0 {
		query.Topics = [][]common.Hash{topic0}
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return c.ethClient.FilterLogs(ctx, query)
}

// CallContract performs an eth_call for a contract method.
func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return c.ethClient.CallContract(ctx, msg, blockNumber)
}

// CodeAt returns the contract code deployed at address. An empty result means an externally owned account.
func (c *Client) CodeAt(ctx context.Context, address common.Address) ([]byte, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return c.ethClient.CodeAt(ctx, address, nil)
}

func mapNotFound(err error) error {
	if errors.Is(err, ethereum.NotFound) {
		return ErrNotFound
	}
	return err
}
