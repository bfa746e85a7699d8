package fill

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fillScope/internal/assetdata"
	"fillScope/internal/model"
	"fillScope/internal/normalize"
	"fillScope/internal/queue"
)

func TestEveryFillEventTypeHasProcessor(t *testing.T) {
	f := newFixture(t)
	for _, eventType := range model.FillEventTypes() {
		assert.Contains(t, f.dispatcher.processors, eventType, eventType)
	}
	for _, eventType := range model.BridgeEventTypes() {
		assert.NotContains(t, f.dispatcher.processors, eventType, eventType)
	}
}

func TestDispatchRejectsUnknownTypes(t *testing.T) {
	f := newFixture(t)
	for _, eventType := range []model.EventType{model.EventTypeBridgeFill, "Bogus"} {
		event := f.addEvent("0xaaa", 4, eventType, map[string]string{})
		_, err := f.dispatcher.Dispatch(f.ctx, event)
		assert.ErrorIs(t, err, model.ErrUnsupportedEventType)
		assert.True(t, model.IsTerminal(err))
	}
}

func TestHandleRejectsMalformedIDs(t *testing.T) {
	f := newFixture(t)
	for _, data := range []string{`{"eventId":"not-a-uuid"}`, `{`} {
		err := f.dispatcher.Handle(f.ctx, queue.Job{Name: model.JobCreateFill, Data: json.RawMessage(data)})
		assert.ErrorIs(t, err, model.ErrMalformedID, data)
		assert.True(t, model.IsTerminal(err))
	}
	assert.Empty(t, f.pub.Publications())
}

func encodeERC20(t *testing.T, token string) string {
	t.Helper()
	parsed, err := assetdata.ProxyABI()
	require.NoError(t, err)
	data, err := parsed.Pack("ERC20Token", common.HexToAddress(token))
	require.NoError(t, err)
	return hexutil.Encode(data)
}

func TestLegacyFillVersions(t *testing.T) {
	f := newFixture(t)

	v1 := f.addEvent("0x01", 1, model.EventTypeLogFill, model.LogFillData{
		Maker: makerAddr, Taker: takerAddr, FeeRecipient: feeRecAddr,
		MakerToken: daiToken, TakerToken: wethToken,
		FilledMakerTokenAmount: "100", FilledTakerTokenAmount: "1",
		PaidMakerFee: "0", PaidTakerFee: "3",
		OrderHash: "0xv1",
	})
	v3 := f.addEvent("0x03", 3, model.EventTypeFill, model.FillData{
		MakerAddress:           makerAddr,
		TakerAddress:           takerAddr,
		FeeRecipientAddress:    feeRecAddr,
		SenderAddress:          takerAddr,
		OrderHash:              "0xv3",
		MakerAssetData:         encodeERC20(t, daiToken),
		TakerAssetData:         encodeERC20(t, wethToken),
		MakerFeeAssetData:      encodeERC20(t, usdcToken),
		TakerFeeAssetData:      "0x",
		MakerAssetFilledAmount: "100",
		TakerAssetFilledAmount: "1",
		MakerFeePaid:           "0",
		TakerFeePaid:           "0",
		ProtocolFeePaid:        "150000",
	})
	f.addTransaction("0x01")
	f.addTransaction("0x03")

	for _, event := range []model.Event{v1, v3} {
		result, err := f.dispatcher.Dispatch(f.ctx, event)
		require.NoError(t, err)
		require.Equal(t, StatusCreated, result.Status)
	}

	fills := f.store.Fills()
	require.Len(t, fills, 2)

	got1 := fills[0]
	assert.Equal(t, model.FillTypeFill, got1.Type)
	assert.Equal(t, 1, got1.ProtocolVersion)
	assert.Equal(t, feeRecAddr, got1.FeeRecipient)
	require.Len(t, got1.Fees, 1)
	assert.Equal(t, normalize.ZRXTokenAddress, got1.Fees[0].TokenAddress)
	assert.Nil(t, got1.ProtocolFee)

	got3 := fills[1]
	assert.Equal(t, 3, got3.ProtocolVersion)
	assert.Empty(t, got3.Fees)
	assert.Equal(t, takerAddr, got3.SenderAddress)
	require.NotNil(t, got3.ProtocolFee)
	assert.Equal(t, "150000", got3.ProtocolFee.String())
}

func TestLegacyUnsupportedAssetIsTerminal(t *testing.T) {
	f := newFixture(t)
	event := f.addEvent("0x02", 2, model.EventTypeFill, model.FillData{
		MakerAssetData:         "0xdeadbeef",
		TakerAssetData:         encodeERC20(t, wethToken),
		MakerAssetFilledAmount: "1",
		TakerAssetFilledAmount: "1",
	})
	f.addTransaction("0x02")

	err := f.handle(event)
	assert.ErrorIs(t, err, model.ErrUnsupportedAsset)
	assert.True(t, model.IsTerminal(err))
	assert.Empty(t, f.store.Fills())
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "deferred", StatusDeferred.String())
	assert.Equal(t, "status(9)", Status(9).String())
	assert.Equal(t, time.Hour, AmbiguousBridgeDelay)
}
