// Package ingest pulls exchange logs from the chain, decodes them into Events and hands them to a sink.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"

	"fillScope/internal/model"
)

// eventNamespace derives stable Event ids from (transactionHash, logIndex).
var eventNamespace = uuid.MustParse("5b0f5c8e-8d43-4c4f-9a53-0c3e2f1d7a10")

// EventID returns the id an Event at (txHash, logIndex) is stored under.
func EventID(txHash string, logIndex uint) uuid.UUID {
	return uuid.NewSHA1(eventNamespace, []byte(strings.ToLower(txHash)+":"+strconv.FormatUint(uint64(logIndex), 10)))
}

type swapKind int

const (
	swapNone swapKind = iota
	swapPair
	swapV3
)

type eventSpec struct {
	event     abi.Event
	eventType model.EventType
	version   int
	swap      swapKind
	build     func(f *fields) any
}

// Decoder turns raw logs into Events keyed by topic0.
type Decoder struct {
	specs map[common.Hash]eventSpec
	pools *PoolResolver
	now   func() time.Time
}

// NewDecoder builds a decoder for every exchange event variant. pools resolves pair and pool
// tokens for swap logs.
func NewDecoder(pools *PoolResolver) (*Decoder, error) {
	parsed, err := loadABIs()
	if err != nil {
		return nil, err
	}

	specs := []eventSpec{
		{event: parsed.exchangeV1.Events["LogFill"], eventType: model.EventTypeLogFill, version: 1, build: buildLogFill},
		{event: parsed.exchangeV2.Events["Fill"], eventType: model.EventTypeFill, version: 2, build: buildFill},
		{event: parsed.exchangeV3.Events["Fill"], eventType: model.EventTypeFill, version: 3, build: buildFill},
		{event: parsed.exchangeProxy.Events["LimitOrderFilled"], eventType: model.EventTypeLimitOrderFilled, version: 4, build: buildLimitOrder},
		{event: parsed.exchangeProxy.Events["RfqOrderFilled"], eventType: model.EventTypeRfqOrderFilled, version: 4, build: buildRfqOrder},
		{event: parsed.exchangeProxy.Events["LiquidityProviderSwap"], eventType: model.EventTypeLiquidityProviderSwap, version: 4, build: buildLiquidityProviderSwap},
		{event: parsed.exchangeProxy.Events["TransformedERC20"], eventType: model.EventTypeTransformedERC20, version: 4, build: buildTransformedERC20},
		{event: parsed.exchangeProxy.Events["BridgeFill"], eventType: model.EventTypeBridgeFill, version: 4, build: buildBridgeFill},
		{event: parsed.exchangeProxy.Events["ERC20BridgeTransfer"], eventType: model.EventTypeERC20BridgeTransfer, version: 4, build: buildERC20BridgeTransfer},
		{event: parsed.pair.Events["Swap"], version: 4, swap: swapPair},
		{event: parsed.v3Pool.Events["Swap"], eventType: model.EventTypeUniswapV3Swap, version: 4, swap: swapV3},
	}

	byTopic := make(map[common.Hash]eventSpec, len(specs))
	for _, spec := range specs {
		byTopic[spec.event.ID] = spec
	}
	return &Decoder{specs: byTopic, pools: pools, now: time.Now}, nil
}

// Topics returns the topic0 of every decodable event.
func (d *Decoder) Topics() []common.Hash {
	topics := make([]common.Hash, 0, len(d.specs))
	for topic := range d.specs {
		topics = append(topics, topic)
	}
	return topics
}

// Decode converts log into an Event. It returns nil without error for removed logs, unknown
// topics and swaps on pools from factories that are not ingested.
func (d *Decoder) Decode(ctx context.Context, log types.Log) (*model.Event, error) {
	if log.Removed || len(log.Topics) == 0 {
		return nil, nil
	}
	spec, ok := d.specs[log.Topics[0]]
	if !ok {
		return nil, nil
	}

	f, err := unpackLog(spec.event, log)
	if err != nil {
		return nil, err
	}

	eventType := spec.eventType
	var payload any
	switch spec.swap {
	case swapPair, swapV3:
		payload, eventType, err = d.decodeSwap(ctx, spec, log, f)
		if err != nil {
			return nil, err
		}
		if eventType == "" {
			return nil, nil
		}
	default:
		payload = spec.build(f)
	}
	if f.err != nil {
		return nil, fmt.Errorf("decode %s: %w", spec.event.Name, f.err)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", eventType, err)
	}

	txHash := strings.ToLower(log.TxHash.Hex())
	return &model.Event{
		ID:              EventID(txHash, log.Index),
		BlockNumber:     log.BlockNumber,
		TransactionHash: txHash,
		LogIndex:        log.Index,
		Address:         lowerHex(log.Address),
		ProtocolVersion: spec.version,
		Type:            eventType,
		Data:            data,
		DateIngested:    d.now().UTC(),
	}, nil
}

func (d *Decoder) decodeSwap(ctx context.Context, spec eventSpec, log types.Log, f *fields) (any, model.EventType, error) {
	if d.pools == nil {
		return nil, "", fmt.Errorf("pool resolver is nil")
	}
	meta, err := d.pools.Meta(ctx, log.Address)
	if err != nil {
		return nil, "", fmt.Errorf("pool %s: %w", log.Address.Hex(), err)
	}

	swap := model.SwapData{
		Sender: f.address("sender"),
		Pool:   lowerHex(log.Address),
	}

	var eventType model.EventType
	if spec.swap == swapPair {
		switch meta.Factory {
		case UniswapV2Factory:
			eventType = model.EventTypeUniswapV2Swap
		case SushiswapFactory:
			eventType = model.EventTypeSushiswapSwap
		default:
			return nil, "", nil
		}
		swap.Recipient = f.address("to")
		if f.bigInt("amount0In").Sign() > 0 {
			swap.InputToken, swap.OutputToken = meta.Token0, meta.Token1
			swap.InputTokenAmount, swap.OutputTokenAmount = f.amount("amount0In"), f.amount("amount1Out")
		} else {
			swap.InputToken, swap.OutputToken = meta.Token1, meta.Token0
			swap.InputTokenAmount, swap.OutputTokenAmount = f.amount("amount1In"), f.amount("amount0Out")
		}
		return swap, eventType, nil
	}

	if meta.Factory != UniswapV3Factory {
		return nil, "", nil
	}
	swap.Recipient = f.address("recipient")
	// Positive amounts flow into the pool.
	amount0, amount1 := f.bigInt("amount0"), f.bigInt("amount1")
	if amount0.Sign() > 0 {
		swap.InputToken, swap.OutputToken = meta.Token0, meta.Token1
		swap.InputTokenAmount, swap.OutputTokenAmount = amount0.String(), new(big.Int).Abs(amount1).String()
	} else {
		swap.InputToken, swap.OutputToken = meta.Token1, meta.Token0
		swap.InputTokenAmount, swap.OutputTokenAmount = amount1.String(), new(big.Int).Abs(amount0).String()
	}
	return swap, spec.eventType, nil
}

func buildLogFill(f *fields) any {
	return model.LogFillData{
		Maker:                  f.address("maker"),
		Taker:                  f.address("taker"),
		FeeRecipient:           f.address("feeRecipient"),
		MakerToken:             f.address("makerToken"),
		TakerToken:             f.address("takerToken"),
		FilledMakerTokenAmount: f.amount("filledMakerTokenAmount"),
		FilledTakerTokenAmount: f.amount("filledTakerTokenAmount"),
		PaidMakerFee:           f.amount("paidMakerFee"),
		PaidTakerFee:           f.amount("paidTakerFee"),
		Tokens:                 f.word("tokens"),
		OrderHash:              f.word("orderHash"),
	}
}

// buildFill serves both v2 and v3. Fee asset data and the protocol fee only exist in v3 logs.
func buildFill(f *fields) any {
	data := model.FillData{
		MakerAddress:           f.address("makerAddress"),
		TakerAddress:           f.address("takerAddress"),
		FeeRecipientAddress:    f.address("feeRecipientAddress"),
		SenderAddress:          f.address("senderAddress"),
		OrderHash:              f.word("orderHash"),
		MakerAssetData:         f.bytes("makerAssetData"),
		TakerAssetData:         f.bytes("takerAssetData"),
		MakerAssetFilledAmount: f.amount("makerAssetFilledAmount"),
		TakerAssetFilledAmount: f.amount("takerAssetFilledAmount"),
		MakerFeePaid:           f.amount("makerFeePaid"),
		TakerFeePaid:           f.amount("takerFeePaid"),
	}
	if f.has("protocolFeePaid") {
		data.MakerFeeAssetData = f.bytes("makerFeeAssetData")
		data.TakerFeeAssetData = f.bytes("takerFeeAssetData")
		data.ProtocolFeePaid = f.amount("protocolFeePaid")
	}
	return data
}

func buildLimitOrder(f *fields) any {
	return model.LimitOrderFilledData{
		OrderHash:                 f.word("orderHash"),
		Maker:                     f.address("maker"),
		Taker:                     f.address("taker"),
		FeeRecipient:              f.address("feeRecipient"),
		MakerToken:                f.address("makerToken"),
		TakerToken:                f.address("takerToken"),
		TakerTokenFilledAmount:    f.amount("takerTokenFilledAmount"),
		MakerTokenFilledAmount:    f.amount("makerTokenFilledAmount"),
		TakerTokenFeeFilledAmount: f.amount("takerTokenFeeFilledAmount"),
		ProtocolFeePaid:           f.amount("protocolFeePaid"),
		Pool:                      f.word("pool"),
	}
}

func buildRfqOrder(f *fields) any {
	return model.RfqOrderFilledData{
		OrderHash:              f.word("orderHash"),
		Maker:                  f.address("maker"),
		Taker:                  f.address("taker"),
		MakerToken:             f.address("makerToken"),
		TakerToken:             f.address("takerToken"),
		TakerTokenFilledAmount: f.amount("takerTokenFilledAmount"),
		MakerTokenFilledAmount: f.amount("makerTokenFilledAmount"),
		Pool:                   f.word("pool"),
	}
}

func buildLiquidityProviderSwap(f *fields) any {
	return model.LiquidityProviderSwapData{
		InputToken:        f.address("inputToken"),
		OutputToken:       f.address("outputToken"),
		InputTokenAmount:  f.amount("inputTokenAmount"),
		OutputTokenAmount: f.amount("outputTokenAmount"),
		Provider:          f.address("provider"),
		Recipient:         f.address("recipient"),
	}
}

func buildTransformedERC20(f *fields) any {
	return model.TransformedERC20Data{
		Taker:             f.address("taker"),
		InputToken:        f.address("inputToken"),
		OutputToken:       f.address("outputToken"),
		InputTokenAmount:  f.amount("inputTokenAmount"),
		OutputTokenAmount: f.amount("outputTokenAmount"),
	}
}

func buildBridgeFill(f *fields) any {
	return model.BridgeFillData{
		Source:            f.word("source"),
		InputToken:        f.address("inputToken"),
		OutputToken:       f.address("outputToken"),
		InputTokenAmount:  f.amount("inputTokenAmount"),
		OutputTokenAmount: f.amount("outputTokenAmount"),
	}
}

func buildERC20BridgeTransfer(f *fields) any {
	return model.ERC20BridgeTransferData{
		InputToken:        f.address("inputToken"),
		OutputToken:       f.address("outputToken"),
		InputTokenAmount:  f.amount("inputTokenAmount"),
		OutputTokenAmount: f.amount("outputTokenAmount"),
		From:              f.address("from"),
		To:                f.address("to"),
	}
}
