package token

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fillScope/internal/model"
	"fillScope/internal/queue"
	"fillScope/internal/storage/memory"
)

const (
	daiToken = "0x6b175474e89094c44da98b954eedeac495271d0f"
	mkrToken = "0x9f8f72aa9304c8b593d555f12ef6589cc3a579a2"
)

// fakeCaller answers eth_call by 4-byte selector.
type fakeCaller struct {
	responses map[string][]byte
}

func (c *fakeCaller) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	resp, ok := c.responses[string(msg.Data[:4])]
	if !ok {
		return nil, errors.New("execution reverted")
	}
	return resp, nil
}

func (c *fakeCaller) answer(t *testing.T, parsed abi.ABI, method string, values ...interface{}) {
	t.Helper()
	m := parsed.Methods[method]
	out, err := m.Outputs.Pack(values...)
	require.NoError(t, err)
	if c.responses == nil {
		c.responses = map[string][]byte{}
	}
	c.responses[string(m.ID)] = out
}

func TestCreateTokensIfMissingPublishesOnlyForUnresolvedTokens(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	pub := queue.NewRecorder()
	p := NewProvisioner(store, pub, nil)

	_, err := store.InsertMissingTokens(ctx, []model.TokenRef{{Address: daiToken, Type: model.TokenTypeERC20}})
	require.NoError(t, err)
	require.NoError(t, store.UpdateTokenMeta(ctx, daiToken, model.TokenMeta{Name: "Dai", Symbol: "DAI"}))

	refs := []model.TokenRef{
		{Address: "0x6B175474E89094C44Da98b954EedeAC495271d0F", Type: model.TokenTypeERC20},
		{Address: mkrToken, Type: model.TokenTypeERC20},
	}
	require.NoError(t, p.CreateTokensIfMissing(ctx, refs))
	require.NoError(t, p.CreateTokensIfMissing(ctx, refs))

	pubs := pub.Named(model.JobFetchTokenMetadata)
	require.Len(t, pubs, 1)
	assert.Equal(t, model.QueueTokenProcessing, pubs[0].Queue)
	assert.Equal(t, model.JobID(model.JobFetchTokenMetadata, mkrToken), pubs[0].Options.JobID)

	var payload model.FetchTokenMetadataJob
	require.NoError(t, json.Unmarshal(pubs[0].Data, &payload))
	assert.Equal(t, model.FetchTokenMetadataJob{TokenAddress: mkrToken, TokenType: model.TokenTypeERC20}, payload)

	token, ok := store.Token(mkrToken)
	require.True(t, ok)
	assert.False(t, token.Resolved)
}

func TestCreateTokensIfMissingPropagatesPublishErrors(t *testing.T) {
	pub := queue.NewRecorder()
	pub.Err = errors.New("redis down")
	p := NewProvisioner(memory.NewStore(), pub, nil)

	err := p.CreateTokensIfMissing(context.Background(), []model.TokenRef{{Address: daiToken, Type: model.TokenTypeERC20}})
	assert.ErrorContains(t, err, "redis down")
}

func TestCreateTokensIfMissingReschedulesAfterPublishFailure(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	pub := queue.NewRecorder()
	p := NewProvisioner(store, pub, nil)
	refs := []model.TokenRef{{Address: daiToken, Type: model.TokenTypeERC20}}

	pub.Err = errors.New("redis down")
	require.Error(t, p.CreateTokensIfMissing(ctx, refs))
	token, ok := store.Token(daiToken)
	require.True(t, ok)
	assert.False(t, token.Resolved)

	pub.Err = nil
	require.NoError(t, p.CreateTokensIfMissing(ctx, refs))

	pubs := pub.Named(model.JobFetchTokenMetadata)
	require.Len(t, pubs, 1)
	assert.Equal(t, model.JobID(model.JobFetchTokenMetadata, daiToken), pubs[0].Options.JobID)
}

func TestFetchERC20StringMetadata(t *testing.T) {
	strABI, err := StringABI()
	require.NoError(t, err)
	caller := &fakeCaller{}
	caller.answer(t, strABI, "decimals", uint8(18))
	caller.answer(t, strABI, "symbol", "DAI")
	caller.answer(t, strABI, "name", "Dai Stablecoin")

	meta, err := NewMetadataFetcher(caller, memory.NewStore(), nil).Fetch(context.Background(), common.HexToAddress(daiToken), model.TokenTypeERC20)
	require.NoError(t, err)
	assert.Equal(t, "DAI", meta.Symbol)
	assert.Equal(t, "Dai Stablecoin", meta.Name)
	require.NotNil(t, meta.Decimals)
	assert.Equal(t, uint8(18), *meta.Decimals)
}

func TestFetchFallsBackToBytes32(t *testing.T) {
	strABI, err := StringABI()
	require.NoError(t, err)
	b32ABI, err := Bytes32ABI()
	require.NoError(t, err)

	var symbol, name [32]byte
	copy(symbol[:], "MKR")
	copy(name[:], "Maker")

	caller := &fakeCaller{}
	caller.answer(t, strABI, "decimals", uint8(18))
	caller.answer(t, b32ABI, "symbol", symbol)
	caller.answer(t, b32ABI, "name", name)

	meta, err := NewMetadataFetcher(caller, memory.NewStore(), nil).Fetch(context.Background(), common.HexToAddress(mkrToken), model.TokenTypeERC20)
	require.NoError(t, err)
	assert.Equal(t, "MKR", meta.Symbol)
	assert.Equal(t, "Maker", meta.Name)
}

func TestFetchERC721SkipsDecimals(t *testing.T) {
	strABI, err := StringABI()
	require.NoError(t, err)
	caller := &fakeCaller{}
	caller.answer(t, strABI, "symbol", "PUNK")

	meta, err := NewMetadataFetcher(caller, memory.NewStore(), nil).Fetch(context.Background(), common.HexToAddress(daiToken), model.TokenTypeERC721)
	require.NoError(t, err)
	assert.Nil(t, meta.Decimals)
	assert.Equal(t, "PUNK", meta.Symbol)
	assert.Empty(t, meta.Name)
}

func TestFetchERC20WithoutDecimalsFails(t *testing.T) {
	_, err := NewMetadataFetcher(&fakeCaller{}, memory.NewStore(), nil).Fetch(context.Background(), common.HexToAddress(daiToken), model.TokenTypeERC20)
	assert.ErrorContains(t, err, "call decimals")
	assert.False(t, model.IsTerminal(err))
}

func TestHandleResolvesToken(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	_, err := store.InsertMissingTokens(ctx, []model.TokenRef{{Address: daiToken, Type: model.TokenTypeERC20}})
	require.NoError(t, err)

	strABI, err := StringABI()
	require.NoError(t, err)
	caller := &fakeCaller{}
	caller.answer(t, strABI, "decimals", uint8(18))
	caller.answer(t, strABI, "symbol", "DAI")
	caller.answer(t, strABI, "name", "Dai Stablecoin")

	data, err := json.Marshal(model.FetchTokenMetadataJob{TokenAddress: daiToken, TokenType: model.TokenTypeERC20})
	require.NoError(t, err)
	require.NoError(t, NewMetadataFetcher(caller, store, nil).Handle(ctx, queue.Job{Name: model.JobFetchTokenMetadata, Data: data}))

	token, ok := store.Token(daiToken)
	require.True(t, ok)
	assert.True(t, token.Resolved)
	assert.Equal(t, "DAI", token.Symbol)
}

func TestHandleRejectsBadAddress(t *testing.T) {
	err := NewMetadataFetcher(&fakeCaller{}, memory.NewStore(), nil).Handle(context.Background(), queue.Job{
		Name: model.JobFetchTokenMetadata,
		Data: json.RawMessage(`{"tokenAddress":"nope","tokenType":"ERC20"}`),
	})
	assert.True(t, model.IsTerminal(err))
}
