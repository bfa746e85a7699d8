// Package address classifies addresses seen on Fills as contracts or wallets.
package address

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"fillScope/internal/model"
	"fillScope/internal/queue"
	"fillScope/internal/storage"
)

// CodeReader returns the code deployed at an address. *chain.Client satisfies it.
type CodeReader interface {
	CodeAt(ctx context.Context, address common.Address) ([]byte, error)
}

// Resolver handles resolve-address-type jobs.
type Resolver struct {
	code   CodeReader
	store  storage.AddressStore
	logger *zap.Logger
	now    func() time.Time
}

func NewResolver(code CodeReader, store storage.AddressStore, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{code: code, store: store, logger: logger, now: time.Now}
}

// Resolve reports CONTRACT when address has deployed code and WALLET otherwise.
func (r *Resolver) Resolve(ctx context.Context, address common.Address) (model.AddressType, error) {
	code, err := r.code.CodeAt(ctx, address)
	if err != nil {
		return "", fmt.Errorf("get code %s: %w", address.Hex(), err)
	}
	if len(code) > 0 {
		return model.AddressTypeContract, nil
	}
	return model.AddressTypeWallet, nil
}

func (r *Resolver) Handle(ctx context.Context, job queue.Job) error {
	var payload model.ResolveAddressTypeJob
	if err := job.Decode(&payload); err != nil {
		return fmt.Errorf("%w: %v", model.ErrMalformedID, err)
	}
	if !common.IsHexAddress(payload.Address) {
		return fmt.Errorf("%w: address %q", model.ErrMalformedID, payload.Address)
	}

	addressType, err := r.Resolve(ctx, common.HexToAddress(payload.Address))
	if err != nil {
		return err
	}
	meta := model.AddressMeta{
		Address:    model.NormalizeAddress(payload.Address),
		Type:       addressType,
		ResolvedAt: r.now().UTC(),
	}
	if err := r.store.SaveAddressMeta(ctx, meta); err != nil {
		return fmt.Errorf("save address %s: %w", meta.Address, err)
	}
	r.logger.Debug("address resolved", zap.String("address", meta.Address), zap.String("type", string(addressType)))
	return nil
}
