package model

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	d, err := ParseAmount("115792089237316195423570985008687907853269984665640564039457584007913129639935")
	require.NoError(t, err)
	assert.Equal(t, "115792089237316195423570985008687907853269984665640564039457584007913129639935", d.String())

	d, err = ParseAmount("1e3")
	require.NoError(t, err)
	assert.Equal(t, "1000", d.String())

	for _, bad := range []string{"", "-1", "1.5", "abc"} {
		_, err := ParseAmount(bad)
		assert.ErrorIs(t, err, ErrInvalidAmount, bad)
	}
}

func TestParseOptionalAmount(t *testing.T) {
	d, err := ParseOptionalAmount("")
	require.NoError(t, err)
	assert.Nil(t, d)

	d, err = ParseOptionalAmount("42")
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.True(t, d.Equal(decimal.NewFromInt(42)))
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, IsTerminal(fmt.Errorf("decode maker asset: %w", ErrUnsupportedAsset)))
	assert.True(t, IsTerminal(ErrAmbiguousTransform))
	assert.False(t, IsTerminal(fmt.Errorf("dial tcp: timeout")))
	assert.False(t, IsTerminal(nil))
}

func TestDecodeDataMalformedIsTerminal(t *testing.T) {
	event := Event{ID: uuid.New(), Type: EventTypeLimitOrderFilled, Data: json.RawMessage(`{"maker": 7}`)}
	var data LimitOrderFilledData
	err := event.DecodeData(&data)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedEvent)
	assert.True(t, IsTerminal(err))

	var typeErr *json.UnmarshalTypeError
	assert.ErrorAs(t, err, &typeErr)

	err = Event{ID: uuid.New()}.DecodeData(&data)
	assert.ErrorIs(t, err, ErrMalformedEvent)
	assert.True(t, IsTerminal(err))
}

func TestParseEventType(t *testing.T) {
	for _, typ := range AllEventTypes() {
		got, err := ParseEventType(string(typ))
		require.NoError(t, err)
		assert.Equal(t, typ, got)
	}

	_, err := ParseEventType("Cancel")
	assert.ErrorIs(t, err, ErrUnsupportedEventType)
}

func TestParseEventID(t *testing.T) {
	id := uuid.New()
	got, err := ParseEventID(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = ParseEventID("not-an-id")
	assert.ErrorIs(t, err, ErrMalformedID)
	assert.True(t, IsTerminal(err))
}

func TestFillAddressesAndTokenRefs(t *testing.T) {
	fill := Fill{
		Maker:            "0xaa",
		Taker:            "0xbb",
		FeeRecipient:     "0xaa",
		AffiliateAddress: "0xcc",
		Assets: []Asset{
			{Actor: ActorMaker, TokenAddress: "0x01", TokenType: TokenTypeERC20},
			{Actor: ActorTaker, TokenAddress: "0x02", TokenType: TokenTypeERC721},
		},
		Fees: []Fee{
			{TraderType: ActorTaker, TokenAddress: "0x01", TokenType: TokenTypeERC20},
		},
	}

	assert.Equal(t, []string{"0xaa", "0xbb", "0xcc"}, fill.Addresses())
	assert.Equal(t, []TokenRef{
		{Address: "0x01", Type: TokenTypeERC20},
		{Address: "0x02", Type: TokenTypeERC721},
	}, fill.TokenRefs())
}

func TestFillAmountsEncodeAsStrings(t *testing.T) {
	fill := Fill{
		Assets: []Asset{{Amount: decimal.RequireFromString("9007199254740993")}},
		Fees:   []Fee{{Amount: FeeAmount{Token: decimal.NewFromInt(1)}}},
	}

	data, err := json.Marshal(fill)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	asset := decoded["assets"].([]any)[0].(map[string]any)
	assert.Equal(t, "9007199254740993", asset["amount"])
}

func TestKnownTokens(t *testing.T) {
	known := NewKnownTokens("0xABCDEF")
	assert.True(t, known.Has("0xabcdef"))
	assert.False(t, known.Has("0x1234"))

	var empty KnownTokens
	assert.False(t, empty.Has("0xabcdef"))
}
