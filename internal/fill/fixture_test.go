package fill

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"fillScope/internal/assetdata"
	"fillScope/internal/model"
	"fillScope/internal/normalize"
	"fillScope/internal/queue"
	"fillScope/internal/storage"
	"fillScope/internal/storage/memory"
)

const (
	makerAddr  = "0x1111111111111111111111111111111111111111"
	takerAddr  = "0x2222222222222222222222222222222222222222"
	feeRecAddr = "0x3333333333333333333333333333333333333333"
	affiliate  = "0x86003b044f70dac0abc80ac8957305b6370893ed"
	daiToken   = "0x6B175474E89094C44Da98b954EedeAC495271d0F"
	wethToken  = "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"
	usdcToken  = "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"
	proxyAddr  = "0xdef1c0ded9bec7f1a1670819833240f027b25eff"
)

type recordingProvisioner struct {
	mu   sync.Mutex
	refs []model.TokenRef
}

func (r *recordingProvisioner) CreateTokensIfMissing(_ context.Context, refs []model.TokenRef) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refs = append(r.refs, refs...)
	return nil
}

type stubBlocks struct {
	blocks map[string]model.Block
}

func (s stubBlocks) GetBlock(_ context.Context, hash string) (*model.Block, error) {
	block, ok := s.blocks[hash]
	if !ok {
		return nil, nil
	}
	return &block, nil
}

type fixture struct {
	t          *testing.T
	ctx        context.Context
	now        time.Time
	store      *memory.Store
	pub        *queue.Recorder
	tokens     *recordingProvisioner
	blocks     stubBlocks
	logs       *observer.ObservedLogs
	logger     *zap.Logger
	normalizer *normalize.Normalizer
	dispatcher *Dispatcher
	nextLog    uint
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	codec, err := assetdata.NewCodec()
	require.NoError(t, err)

	core, logs := observer.New(zap.DebugLevel)
	f := &fixture{
		t:      t,
		ctx:    context.Background(),
		now:    time.Date(2021, 6, 1, 12, 0, 0, 0, time.UTC),
		store:  memory.NewStore(),
		pub:    queue.NewRecorder(),
		tokens: &recordingProvisioner{},
		blocks:     stubBlocks{blocks: map[string]model.Block{}},
		logs:       logs,
		logger:     zap.New(core),
		normalizer: normalize.New(codec),
	}
	f.useStore(f.store)
	return f
}

// useStore rebuilds the dispatcher on top of store. Fixture helpers keep writing to f.store.
func (f *fixture) useStore(store storage.Store) {
	f.dispatcher = NewDispatcher(Deps{
		Store:      store,
		Blocks:     f.blocks,
		Tokens:     f.tokens,
		Publisher:  f.pub,
		Normalizer: f.normalizer,
		Logger:     f.logger,
		Now:        func() time.Time { return f.now },
	})
}

// racingStore hides committed fills from the existence checks, as if another worker
// inserted them between the check and the write.
type racingStore struct {
	*memory.Store
}

func (racingStore) FillExists(context.Context, uuid.UUID) (bool, error) {
	return false, nil
}

func (racingStore) ExistingFills(context.Context, []uuid.UUID) (map[uuid.UUID]bool, error) {
	return map[uuid.UUID]bool{}, nil
}

// addEvent stores an event ingested one minute before now.
func (f *fixture) addEvent(txHash string, version int, typ model.EventType, data any) model.Event {
	f.t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(f.t, err)

	f.nextLog++
	event := model.Event{
		ID:              uuid.New(),
		BlockNumber:     12000000,
		TransactionHash: txHash,
		LogIndex:        f.nextLog,
		Address:         proxyAddr,
		ProtocolVersion: version,
		Type:            typ,
		Data:            raw,
		DateIngested:    f.now.Add(-time.Minute),
	}
	_, err = f.store.PutEventBatch(f.ctx, []model.Event{event})
	require.NoError(f.t, err)
	return event
}

func (f *fixture) addTransaction(hash string) model.Transaction {
	f.t.Helper()
	quote := f.now.Add(-time.Hour)
	tx := model.Transaction{
		Hash:             hash,
		BlockHash:        "0xblock-" + hash,
		BlockNumber:      12000000,
		Date:             f.now.Add(-30 * time.Minute),
		From:             takerAddr,
		GasPrice:         decimal.NewFromInt(100),
		AffiliateAddress: affiliate,
		QuoteDate:        &quote,
	}
	require.NoError(f.t, f.store.SaveTransaction(f.ctx, tx))
	return tx
}

func (f *fixture) createFillJob(event model.Event) queue.Job {
	return queue.Job{
		ID:    model.JobID(model.JobCreateFill, event.ID.String()),
		Queue: model.QueueFillProcessing,
		Name:  model.JobCreateFill,
		Data:  json.RawMessage(fmt.Sprintf(`{"eventId": %q}`, event.ID.String())),
	}
}

func (f *fixture) handle(event model.Event) error {
	return f.dispatcher.Handle(f.ctx, f.createFillJob(event))
}

func (f *fixture) warnings(message string) []observer.LoggedEntry {
	return f.logs.FilterMessage(message).FilterLevelExact(zap.WarnLevel).All()
}

func limitOrderData(takerFee string) model.LimitOrderFilledData {
	return model.LimitOrderFilledData{
		OrderHash:                 "0xorder",
		Maker:                     "0x1111111111111111111111111111111111111111",
		Taker:                     "0x2222222222222222222222222222222222222222",
		FeeRecipient:              feeRecAddr,
		MakerToken:                daiToken,
		TakerToken:                wethToken,
		MakerTokenFilledAmount:    "2000000000000000000000",
		TakerTokenFilledAmount:    "1000000000000000000",
		TakerTokenFeeFilledAmount: takerFee,
		ProtocolFeePaid:           "9007199254740993",
		Pool:                      "0x0000000000000000000000000000000000000000000000000000000000000000",
	}
}
