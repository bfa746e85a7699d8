// Package txfetch implements the fetch-transaction job that stores the enclosing transaction of
// ingested Events.
package txfetch

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"fillScope/internal/model"
	"fillScope/internal/queue"
	"fillScope/internal/storage"
)

// Reader is the chain access needed to assemble a Transaction. *chain.Client satisfies it.
type Reader interface {
	ChainID(ctx context.Context) (*big.Int, error)
	TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, error)
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
	BlockTimestamp(ctx context.Context, hash common.Hash) (uint64, error)
}

// Fetcher handles fetch-transaction jobs.
type Fetcher struct {
	reader Reader
	store  storage.TransactionStore
	logger *zap.Logger

	mu     sync.Mutex
	signer types.Signer
}

func NewFetcher(reader Reader, store storage.TransactionStore, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{reader: reader, store: store, logger: logger}
}

func (f *Fetcher) Handle(ctx context.Context, job queue.Job) error {
	var payload model.FetchTransactionJob
	if err := job.Decode(&payload); err != nil {
		return fmt.Errorf("%w: %v", model.ErrMalformedID, err)
	}
	hash := strings.TrimSpace(payload.TransactionHash)
	if len(hash) != 66 || !strings.HasPrefix(hash, "0x") {
		return fmt.Errorf("%w: transaction hash %q", model.ErrMalformedID, payload.TransactionHash)
	}

	tx, err := f.Fetch(ctx, common.HexToHash(hash))
	if err != nil {
		return err
	}
	if err := f.store.SaveTransaction(ctx, tx); err != nil {
		return fmt.Errorf("save transaction %s: %w", tx.Hash, err)
	}
	f.logger.Debug("transaction fetched",
		zap.String("tx_hash", tx.Hash),
		zap.Uint64("block", tx.BlockNumber),
		zap.Bool("affiliate", tx.AffiliateAddress != ""),
	)
	return nil
}

// Fetch assembles a Transaction from the node. Transactions that are unknown or still pending
// return an error so the job is retried.
func (f *Fetcher) Fetch(ctx context.Context, hash common.Hash) (model.Transaction, error) {
	tx, err := f.reader.TransactionByHash(ctx, hash)
	if err != nil {
		return model.Transaction{}, fmt.Errorf("transaction %s: %w", hash.Hex(), err)
	}
	receipt, err := f.reader.TransactionReceipt(ctx, hash)
	if err != nil {
		return model.Transaction{}, fmt.Errorf("receipt %s: %w", hash.Hex(), err)
	}
	ts, err := f.reader.BlockTimestamp(ctx, receipt.BlockHash)
	if err != nil {
		return model.Transaction{}, fmt.Errorf("block %s: %w", receipt.BlockHash.Hex(), err)
	}

	signer, err := f.signerFor(ctx)
	if err != nil {
		return model.Transaction{}, err
	}
	from, err := types.Sender(signer, tx)
	if err != nil {
		return model.Transaction{}, fmt.Errorf("recover sender %s: %w", hash.Hex(), err)
	}

	gasPrice := tx.GasPrice()
	if receipt.EffectiveGasPrice != nil {
		gasPrice = receipt.EffectiveGasPrice
	}

	out := model.Transaction{
		Hash:        strings.ToLower(hash.Hex()),
		BlockHash:   strings.ToLower(receipt.BlockHash.Hex()),
		BlockNumber: receipt.BlockNumber.Uint64(),
		Index:       receipt.TransactionIndex,
		Date:        time.Unix(int64(ts), 0).UTC(),
		From:        lowerHex(from),
		Nonce:       tx.Nonce(),
		GasLimit:    tx.Gas(),
		GasUsed:     receipt.GasUsed,
		GasPrice:    decimal.NewFromBigInt(gasPrice, 0),
		Value:       decimal.NewFromBigInt(tx.Value(), 0),
	}
	if to := tx.To(); to != nil {
		out.To = lowerHex(*to)
	}
	if affiliate, ok := DecodeAffiliate(tx.Data()); ok {
		out.AffiliateAddress = affiliate.Address
		out.QuoteDate = affiliate.QuoteDate
	}
	return out, nil
}

func (f *Fetcher) signerFor(ctx context.Context) (types.Signer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.signer != nil {
		return f.signer, nil
	}
	chainID, err := f.reader.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("chain id: %w", err)
	}
	f.signer = types.LatestSignerForChainID(chainID)
	return f.signer, nil
}

func lowerHex(address common.Address) string {
	return strings.ToLower(address.Hex())
}
