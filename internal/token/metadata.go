package token

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"fillScope/internal/model"
	"fillScope/internal/queue"
	"fillScope/internal/storage"
)

// ContractCaller performs read-only contract calls. *chain.Client satisfies it.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// MetadataFetcher handles fetch-token-metadata jobs.
type MetadataFetcher struct {
	caller ContractCaller
	store  storage.TokenStore
	logger *zap.Logger
}

func NewMetadataFetcher(caller ContractCaller, store storage.TokenStore, logger *zap.Logger) *MetadataFetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MetadataFetcher{caller: caller, store: store, logger: logger}
}

// Handle fetches metadata for one token and marks it resolved.
func (f *MetadataFetcher) Handle(ctx context.Context, job queue.Job) error {
	var payload model.FetchTokenMetadataJob
	if err := job.Decode(&payload); err != nil {
		return fmt.Errorf("%w: %v", model.ErrMalformedID, err)
	}
	if !common.IsHexAddress(payload.TokenAddress) {
		return fmt.Errorf("%w: token address %q", model.ErrMalformedID, payload.TokenAddress)
	}

	meta, err := f.Fetch(ctx, common.HexToAddress(payload.TokenAddress), payload.TokenType)
	if err != nil {
		return err
	}
	if err := f.store.UpdateTokenMeta(ctx, payload.TokenAddress, meta); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			f.logger.Warn("token metadata for unknown token", zap.String("token", payload.TokenAddress))
			return nil
		}
		return fmt.Errorf("update token %s: %w", payload.TokenAddress, err)
	}

	f.logger.Info("token metadata fetched",
		zap.String("token", payload.TokenAddress),
		zap.String("symbol", meta.Symbol),
	)
	return nil
}

// Fetch reads name and symbol, plus decimals for ERC-20 tokens. ERC-1155 has no metadata standard
// and resolves empty.
func (f *MetadataFetcher) Fetch(ctx context.Context, token common.Address, tokenType model.TokenType) (model.TokenMeta, error) {
	var meta model.TokenMeta
	if tokenType == model.TokenTypeERC1155 {
		return meta, nil
	}

	strABI, err := StringABI()
	if err != nil {
		return meta, fmt.Errorf("parse string abi: %w", err)
	}
	b32ABI, err := Bytes32ABI()
	if err != nil {
		return meta, fmt.Errorf("parse bytes32 abi: %w", err)
	}

	if tokenType == model.TokenTypeERC20 {
		values, err := f.call(ctx, token, strABI, "decimals")
		if err != nil {
			return meta, err
		}
		decimals, ok := values[0].(uint8)
		if !ok {
			return meta, fmt.Errorf("decimals: unexpected type %T", values[0])
		}
		meta.Decimals = &decimals
	}

	meta.Symbol = f.text(ctx, token, strABI, b32ABI, "symbol")
	meta.Name = f.text(ctx, token, strABI, b32ABI, "name")
	return meta, nil
}

// text reads a string method, falling back to bytes32. Failures leave the field empty.
func (f *MetadataFetcher) text(ctx context.Context, token common.Address, strABI, b32ABI abi.ABI, method string) string {
	values, err := f.call(ctx, token, strABI, method)
	if err == nil {
		if s, ok := values[0].(string); ok {
			return s
		}
	}
	values, err = f.call(ctx, token, b32ABI, method)
	if err == nil {
		if s, ok := bytes32ToString(values[0]); ok {
			return s
		}
	}
	f.logger.Debug("token method call failed",
		zap.String("token", token.Hex()),
		zap.String("method", method),
		zap.Error(err),
	)
	return ""
}

func (f *MetadataFetcher) call(ctx context.Context, token common.Address, parsed abi.ABI, method string) ([]interface{}, error) {
	data, err := parsed.Pack(method)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	resp, err := f.caller.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("unpack %s: empty result", method)
	}
	return values, nil
}

func bytes32ToString(value interface{}) (string, bool) {
	switch v := value.(type) {
	case [32]byte:
		return string(bytes.TrimRight(v[:], "\x00")), true
	case []byte:
		return string(bytes.TrimRight(v, "\x00")), true
	default:
		return "", false
	}
}
