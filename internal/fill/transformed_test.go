package fill

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fillScope/internal/model"
	"fillScope/internal/queue"
)

func transformData() model.TransformedERC20Data {
	return model.TransformedERC20Data{
		Taker:             takerAddr,
		InputToken:        wethToken,
		OutputToken:       usdcToken,
		InputTokenAmount:  "3000",
		OutputTokenAmount: "9000",
	}
}

func bridgeFill(source, amount string) model.BridgeFillData {
	return model.BridgeFillData{
		Source:            source,
		InputToken:        wethToken,
		OutputToken:       usdcToken,
		InputTokenAmount:  "1000",
		OutputTokenAmount: amount,
	}
}

const flashWallet = "0x22f9dcf4647084d6c31b2765f6910cd85c178c18"

func TestTransformedERC20BuildsOneFillPerBridgeEvent(t *testing.T) {
	f := newFixture(t)
	transform := f.addEvent("0xtx", 4, model.EventTypeTransformedERC20, transformData())
	f.addEvent("0xtx", 4, model.EventTypeBridgeFill, bridgeFill("0x0000000000000000000000000000000000000000000000000000000000000002", "3000"))
	f.addEvent("0xtx", 4, model.EventTypeBridgeFill, bridgeFill("0x0000000000000000000000000000000000000000000000000000000000000002", "3000"))
	f.addEvent("0xtx", 4, model.EventTypeBridgeFill, bridgeFill("0x0000000000000000000000000000000000000000000000000000000000000007", "2900"))
	f.addEvent("0xtx", 4, model.EventTypeBridgeFill, bridgeFill("0x000000000000000000000000000000000000000000000000000000000000000b", "3100"))
	f.addTransaction("0xtx")

	result, err := f.dispatcher.Dispatch(f.ctx, transform)
	require.NoError(t, err)
	assert.Equal(t, StatusCreated, result.Status)
	assert.Equal(t, 3, result.Fills)

	fills := f.store.Fills()
	require.Len(t, fills, 3)
	assert.Equal(t, 1, f.store.FillWrites)
	for _, got := range fills {
		assert.Equal(t, model.FillTypeBridgeFill, got.Type)
		assert.Equal(t, proxyAddr, got.Maker)
		assert.Equal(t, takerAddr, got.Taker)
		assert.Equal(t, got.ID, got.EventID)
		assert.NotEqual(t, transform.ID, got.ID)
		require.Len(t, got.Assets, 2)
		assert.Equal(t, model.ActorMaker, got.Assets[0].Actor)
		assert.Equal(t, proxyAddr, got.Assets[0].BridgeAddress)
		assert.NotEmpty(t, got.Assets[0].BridgeData)
	}

	again, err := f.dispatcher.Dispatch(f.ctx, transform)
	require.NoError(t, err)
	assert.Equal(t, StatusExists, again.Status)
	assert.Equal(t, 1, f.store.FillWrites)
}

func TestTransformedERC20ConcurrentInsertWritesNothing(t *testing.T) {
	f := newFixture(t)
	transform := f.addEvent("0xtx", 4, model.EventTypeTransformedERC20, transformData())
	raced := f.addEvent("0xtx", 4, model.EventTypeBridgeFill, bridgeFill("0x0000000000000000000000000000000000000000000000000000000000000002", "3000"))
	f.addEvent("0xtx", 4, model.EventTypeBridgeFill, bridgeFill("0x0000000000000000000000000000000000000000000000000000000000000007", "6000"))
	f.addTransaction("0xtx")
	require.NoError(t, f.store.CreateFills(f.ctx, []model.Fill{{ID: raced.ID, EventID: raced.ID, LogIndex: raced.LogIndex}}))
	f.useStore(racingStore{f.store})

	result, err := f.dispatcher.Dispatch(f.ctx, transform)
	require.NoError(t, err)
	assert.Equal(t, StatusExists, result.Status)
	assert.Equal(t, 1, f.store.FillWrites)
	assert.Len(t, f.store.Fills(), 1)
	assert.Len(t, f.warnings("fill already exists"), 1)
	assert.Empty(t, f.pub.Publications())
}

func TestTransformedERC20LegacyBridgeTransfers(t *testing.T) {
	f := newFixture(t)
	transform := f.addEvent("0xtx", 4, model.EventTypeTransformedERC20, transformData())
	f.addEvent("0xtx", 4, model.EventTypeERC20BridgeTransfer, model.ERC20BridgeTransferData{
		InputToken: wethToken, OutputToken: usdcToken,
		InputTokenAmount: "3000", OutputTokenAmount: "9000",
		From: "0x1C29670F7a77f1052d30813A0a4f632C78A02610", To: flashWallet,
	})
	f.addTransaction("0xtx")

	_, err := f.dispatcher.Dispatch(f.ctx, transform)
	require.NoError(t, err)

	fills := f.store.Fills()
	require.Len(t, fills, 1)
	assert.Equal(t, model.FillTypeERC20BridgeTransfer, fills[0].Type)
	assert.Equal(t, "0x1c29670f7a77f1052d30813a0a4f632c78a02610", fills[0].Maker)
	assert.Equal(t, "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48", fills[0].Assets[0].TokenAddress)
	assert.Equal(t, "9000", fills[0].Assets[0].Amount.String())
}

func TestTransformedERC20Ambiguous(t *testing.T) {
	f := newFixture(t)
	transform := f.addEvent("0xtx", 4, model.EventTypeTransformedERC20, transformData())
	f.addEvent("0xtx", 4, model.EventTypeTransformedERC20, transformData())
	f.addEvent("0xtx", 4, model.EventTypeBridgeFill, bridgeFill("0x01", "1"))
	f.addTransaction("0xtx")

	_, err := f.dispatcher.Dispatch(f.ctx, transform)
	assert.ErrorIs(t, err, model.ErrAmbiguousTransform)
	assert.True(t, model.IsTerminal(err))
	assert.Empty(t, f.store.Fills())
}

func TestTransformedERC20MixedBridgeShapesDefers(t *testing.T) {
	f := newFixture(t)
	transform := f.addEvent("0xtx", 4, model.EventTypeTransformedERC20, transformData())
	f.addEvent("0xtx", 4, model.EventTypeBridgeFill, bridgeFill("0x01", "1"))
	f.addEvent("0xtx", 4, model.EventTypeERC20BridgeTransfer, model.ERC20BridgeTransferData{
		InputToken: wethToken, OutputToken: usdcToken, InputTokenAmount: "1", OutputTokenAmount: "1",
	})
	f.addTransaction("0xtx")

	job := f.createFillJob(transform)
	require.NoError(t, f.dispatcher.Handle(f.ctx, job))

	assert.Empty(t, f.store.Fills())
	assert.Len(t, f.warnings("transaction has both BridgeFill and ERC20BridgeTransfer events, deferring"), 1)

	pubs := f.pub.Publications()
	require.Len(t, pubs, 1)
	assert.Equal(t, queue.Options{Delay: time.Hour}, pubs[0].Options)
	assert.Equal(t, string(job.Data), string(pubs[0].Data))
}

func TestTransformedERC20WithoutBridgeEventsIsNoop(t *testing.T) {
	f := newFixture(t)
	transform := f.addEvent("0xtx", 4, model.EventTypeTransformedERC20, transformData())
	f.addEvent("0xtx", 4, model.EventTypeLimitOrderFilled, limitOrderData("0"))

	result, err := f.dispatcher.Dispatch(f.ctx, transform)
	require.NoError(t, err)
	assert.Equal(t, StatusNoop, result.Status)
	assert.Empty(t, f.store.Fills())
	assert.Empty(t, f.pub.Publications())
}

func TestTransformedERC20WaitsForTransaction(t *testing.T) {
	f := newFixture(t)
	transform := f.addEvent("0xtx", 4, model.EventTypeTransformedERC20, transformData())
	f.addEvent("0xtx", 4, model.EventTypeBridgeFill, bridgeFill("0x01", "1"))

	result, err := f.dispatcher.Dispatch(f.ctx, transform)
	require.NoError(t, err)
	assert.Equal(t, deferred(TransactionWaitDelay), result)
}

func TestDedupeByDataIgnoresWhitespace(t *testing.T) {
	events := []model.Event{
		{Data: []byte(`{"a": 1}`)},
		{Data: []byte(`{"a":1}`)},
		{Data: []byte(`{"a":2}`)},
	}
	assert.Len(t, dedupeByData(events), 2)
}
