package fill

import (
	"context"

	"fillScope/internal/model"
)

// Bridge contracts attached to the maker leg of direct DEX swaps. They stand in for the
// liquidity source until sources are modelled on their own.
const (
	SushiswapBridgeAddress = "0x47ed0262a0b688dcb836d254c6a2e96b6c48a9f5"
	UniswapV2BridgeAddress = "0xdcd6011f4c6b80e470d9487f5871a0cba7c93f48"
	// Uniswap V3 never had a dedicated bridge; the V3 router is used instead.
	UniswapV3BridgeAddress = "0xe592427a0aece92de3edee1f18e0157c05861564"
)

// swapProcessor handles the pool Swap variants. The bridge acts as maker; the swap
// recipient is the taker.
type swapProcessor struct {
	*base
	fillType model.FillType
	bridge   string
}

func (p *swapProcessor) Process(ctx context.Context, event model.Event) (Result, error) {
	return p.processSingle(ctx, event, p.build)
}

func (p *swapProcessor) build(event model.Event, tx model.Transaction) (model.Fill, error) {
	var data model.SwapData
	if err := event.DecodeData(&data); err != nil {
		return model.Fill{}, err
	}

	assets, err := twoSidedAssets(data.OutputToken, data.OutputTokenAmount, data.InputToken, data.InputTokenAmount, p.bridge)
	if err != nil {
		return model.Fill{}, err
	}

	fill := newFill(event, tx, p.fillType)
	fill.Maker = p.bridge
	fill.Taker = model.NormalizeAddress(data.Recipient)
	fill.SenderAddress = model.NormalizeAddress(data.Sender)
	fill.Pool = model.NormalizeAddress(data.Pool)
	fill.Assets = assets
	return fill, nil
}
