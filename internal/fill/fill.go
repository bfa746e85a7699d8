// Package fill turns exchange Events into canonical Fills: one processor per event variant,
// a dispatcher over the closed set of variants, the dependency wait on the enclosing
// transaction and the post-commit fan-out of follow-on jobs.
package fill

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"fillScope/internal/model"
	"fillScope/internal/normalize"
	"fillScope/internal/queue"
	"fillScope/internal/storage"
)

const (
	// TransactionWaitDelay is how long a job waits before retrying when its transaction is missing.
	TransactionWaitDelay = 30 * time.Second
	// StaleAfter is the event age after which a missing transaction is logged as a warning.
	StaleAfter = 5 * time.Minute
	// AmbiguousBridgeDelay postpones transforms whose transaction mixes both bridge event shapes.
	AmbiguousBridgeDelay = time.Hour
)

// ErrBlockNotFound is returned when a transaction's block cannot be fetched to date a Fill.
var ErrBlockNotFound = errors.New("block not found")

// Status is the outcome of processing one Event.
type Status int

const (
	// StatusCreated means one or more Fills were persisted.
	StatusCreated Status = iota
	// StatusExists means the Fill was already there; nothing was written.
	StatusExists
	// StatusDeferred means a dependency is missing and the job must be republished after Delay.
	StatusDeferred
	// StatusNoop means the Event produces no Fill.
	StatusNoop
)

func (s Status) String() string {
	switch s {
	case StatusCreated:
		return "created"
	case StatusExists:
		return "exists"
	case StatusDeferred:
		return "deferred"
	case StatusNoop:
		return "noop"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Result is what a Processor reports. A deferral is a Result, never an error.
type Result struct {
	Status Status
	Delay  time.Duration
	Fills  int
}

func deferred(delay time.Duration) Result {
	return Result{Status: StatusDeferred, Delay: delay}
}

// Processor builds and persists the Fills of one Event.
type Processor interface {
	Process(ctx context.Context, event model.Event) (Result, error)
}

// BlockFetcher returns a block by hash, or nil when it is unknown.
type BlockFetcher interface {
	GetBlock(ctx context.Context, hash string) (*model.Block, error)
}

// TokenProvisioner creates Token records that do not exist yet.
type TokenProvisioner interface {
	CreateTokensIfMissing(ctx context.Context, refs []model.TokenRef) error
}

// Deps are the collaborators shared by every processor.
type Deps struct {
	Store      storage.Store
	Blocks     BlockFetcher
	Tokens     TokenProvisioner
	Publisher  queue.Publisher
	Normalizer *normalize.Normalizer
	Logger     *zap.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// base carries the steps common to all processors.
type base struct {
	store  storage.Store
	blocks BlockFetcher
	tokens TokenProvisioner
	fanout *Fanout
	logger *zap.Logger
	now    func() time.Time
}

func newBase(deps Deps) *base {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &base{
		store:  deps.Store,
		blocks: deps.Blocks,
		tokens: deps.Tokens,
		fanout: NewFanout(deps.Publisher, deps.Store, logger),
		logger: logger,
		now:    now,
	}
}

// builder maps one Event and its Transaction to a Fill without dating or annotating it.
type builder func(event model.Event, tx model.Transaction) (model.Fill, error)

// processSingle runs the common single-Fill flow: existence check, dependency wait,
// mapping, token provisioning and persistence.
func (b *base) processSingle(ctx context.Context, event model.Event, build builder) (Result, error) {
	logger := b.logger.With(zap.String("event_id", event.ID.String()), zap.String("event_type", string(event.Type)))

	exists, err := b.store.FillExists(ctx, event.ID)
	if err != nil {
		return Result{}, fmt.Errorf("check fill for event %s: %w", event.ID, err)
	}
	if exists {
		logger.Warn("fill already exists")
		return Result{Status: StatusExists}, nil
	}

	tx, ok, err := b.awaitTransaction(ctx, event)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		return deferred(TransactionWaitDelay), nil
	}

	fill, err := build(event, tx)
	if err != nil {
		return Result{}, fmt.Errorf("build fill for event %s: %w", event.ID, err)
	}

	fills := []model.Fill{fill}
	if err := b.prepare(ctx, tx, fills); err != nil {
		return Result{}, err
	}
	return b.persist(ctx, logger, fills)
}

// awaitTransaction loads the Event's Transaction. ok is false when it has not been fetched yet.
func (b *base) awaitTransaction(ctx context.Context, event model.Event) (model.Transaction, bool, error) {
	tx, err := b.store.GetTransaction(ctx, event.TransactionHash)
	if err == nil {
		return tx, true, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return model.Transaction{}, false, fmt.Errorf("get transaction %s: %w", event.TransactionHash, err)
	}

	age := b.now().Sub(event.DateIngested)
	if age >= StaleAfter {
		b.logger.Warn("transaction still missing for stale event",
			zap.String("event_id", event.ID.String()),
			zap.String("transaction_hash", event.TransactionHash),
			zap.Duration("age", age),
		)
	} else {
		b.logger.Debug("transaction not fetched yet",
			zap.String("event_id", event.ID.String()),
			zap.String("transaction_hash", event.TransactionHash),
		)
	}
	return model.Transaction{}, false, nil
}

// prepare dates the fills, annotates their tokens from a fresh snapshot and hands every
// referenced token to the provisioner, which creates missing ones and reschedules metadata
// for any still unresolved. Provisioning failures are logged, not returned.
func (b *base) prepare(ctx context.Context, tx model.Transaction, fills []model.Fill) error {
	date, err := b.fillDate(ctx, tx)
	if err != nil {
		return err
	}

	refs := tokenRefs(fills)
	addresses := make([]string, 0, len(refs))
	for _, ref := range refs {
		addresses = append(addresses, ref.Address)
	}
	known, err := b.store.KnownTokens(ctx, addresses)
	if err != nil {
		return fmt.Errorf("load known tokens: %w", err)
	}

	for i := range fills {
		fills[i].Date = date
		normalize.MarkResolved(fills[i].Assets, fills[i].Fees, known)
	}

	if len(refs) > 0 && b.tokens != nil {
		if err := b.tokens.CreateTokensIfMissing(ctx, refs); err != nil {
			b.logger.Warn("create missing tokens failed", zap.Int("tokens", len(refs)), zap.Error(err))
		}
	}
	return nil
}

func (b *base) fillDate(ctx context.Context, tx model.Transaction) (time.Time, error) {
	if !tx.Date.IsZero() {
		return tx.Date, nil
	}
	if b.blocks == nil {
		return time.Time{}, fmt.Errorf("%w: %s", ErrBlockNotFound, tx.BlockHash)
	}
	block, err := b.blocks.GetBlock(ctx, tx.BlockHash)
	if err != nil {
		return time.Time{}, fmt.Errorf("get block %s: %w", tx.BlockHash, err)
	}
	if block == nil {
		return time.Time{}, fmt.Errorf("%w: %s", ErrBlockNotFound, tx.BlockHash)
	}
	return block.Date, nil
}

// persist writes fills atomically and fans out follow-on jobs after the commit.
func (b *base) persist(ctx context.Context, logger *zap.Logger, fills []model.Fill) (Result, error) {
	if err := b.store.CreateFills(ctx, fills); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			logger.Warn("fill already exists", zap.Error(err))
			return Result{Status: StatusExists}, nil
		}
		return Result{}, fmt.Errorf("persist fills: %w", err)
	}

	for _, f := range fills {
		logger.Info("fill created", zap.String("fill_id", f.ID.String()), zap.String("fill_type", string(f.Type)))
		b.fanout.Publish(ctx, f)
	}
	return Result{Status: StatusCreated, Fills: len(fills)}, nil
}

func tokenRefs(fills []model.Fill) []model.TokenRef {
	seen := make(map[string]struct{})
	var refs []model.TokenRef
	for _, f := range fills {
		for _, ref := range f.TokenRefs() {
			if _, ok := seen[ref.Address]; ok {
				continue
			}
			seen[ref.Address] = struct{}{}
			refs = append(refs, ref)
		}
	}
	return refs
}

// newFill fills in the fields every variant shares.
func newFill(event model.Event, tx model.Transaction, fillType model.FillType) model.Fill {
	return model.Fill{
		ID:               event.ID,
		EventID:          event.ID,
		Type:             fillType,
		ProtocolVersion:  event.ProtocolVersion,
		AffiliateAddress: model.NormalizeAddress(tx.AffiliateAddress),
		Assets:           []model.Asset{},
		Fees:             []model.Fee{},
		Status:           model.FillStatusSuccessful,
		BlockHash:        tx.BlockHash,
		BlockNumber:      event.BlockNumber,
		QuoteDate:        tx.QuoteDate,
		TransactionHash:  event.TransactionHash,
		LogIndex:         event.LogIndex,
	}
}

// twoSidedAssets builds the maker and taker ERC20 legs of a swap. bridge, when set, is
// attached to the maker leg.
func twoSidedAssets(makerToken, makerAmount, takerToken, takerAmount, bridge string) ([]model.Asset, error) {
	makerQty, err := model.ParseAmount(makerAmount)
	if err != nil {
		return nil, fmt.Errorf("maker amount: %w", err)
	}
	takerQty, err := model.ParseAmount(takerAmount)
	if err != nil {
		return nil, fmt.Errorf("taker amount: %w", err)
	}
	return []model.Asset{
		{
			Actor:         model.ActorMaker,
			TokenAddress:  model.NormalizeAddress(makerToken),
			TokenType:     model.TokenTypeERC20,
			Amount:        makerQty,
			BridgeAddress: model.NormalizeAddress(bridge),
		},
		{
			Actor:        model.ActorTaker,
			TokenAddress: model.NormalizeAddress(takerToken),
			TokenType:    model.TokenTypeERC20,
			Amount:       takerQty,
		},
	}, nil
}
