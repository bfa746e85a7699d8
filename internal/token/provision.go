// Package token provisions Token records referenced by Fills and fetches their on-chain metadata.
package token

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"fillScope/internal/model"
	"fillScope/internal/queue"
	"fillScope/internal/storage"
)

// Provisioner inserts unknown tokens and schedules their metadata fetch.
type Provisioner struct {
	store     storage.TokenStore
	publisher queue.Publisher
	logger    *zap.Logger
}

func NewProvisioner(store storage.TokenStore, publisher queue.Publisher, logger *zap.Logger) *Provisioner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provisioner{store: store, publisher: publisher, logger: logger}
}

// CreateTokensIfMissing inserts refs not yet stored as unresolved tokens and publishes one
// fetch-token-metadata job per token that is still unresolved. Tokens left behind by an
// earlier failed publish are scheduled again; the job id keeps repeats from piling up.
func (p *Provisioner) CreateTokensIfMissing(ctx context.Context, refs []model.TokenRef) error {
	if len(refs) == 0 {
		return nil
	}
	unresolved, err := p.store.InsertMissingTokens(ctx, refs)
	if err != nil {
		return fmt.Errorf("insert tokens: %w", err)
	}

	for _, ref := range unresolved {
		payload := model.FetchTokenMetadataJob{TokenAddress: ref.Address, TokenType: ref.Type}
		opts := queue.Options{JobID: model.JobID(model.JobFetchTokenMetadata, ref.Address)}
		if err := queue.PublishJSON(ctx, p.publisher, model.QueueTokenProcessing, model.JobFetchTokenMetadata, payload, opts); err != nil {
			return fmt.Errorf("schedule metadata for %s: %w", ref.Address, err)
		}
	}
	if len(unresolved) > 0 {
		p.logger.Debug("token metadata scheduled", zap.Int("count", len(unresolved)))
	}
	return nil
}
