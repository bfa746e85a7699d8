package fill

import (
	"context"
	"fmt"

	"fillScope/internal/model"
)

type limitOrderProcessor struct{ *base }

func (p *limitOrderProcessor) Process(ctx context.Context, event model.Event) (Result, error) {
	return p.processSingle(ctx, event, buildLimitOrderFill)
}

func buildLimitOrderFill(event model.Event, tx model.Transaction) (model.Fill, error) {
	var data model.LimitOrderFilledData
	if err := event.DecodeData(&data); err != nil {
		return model.Fill{}, err
	}

	assets, err := twoSidedAssets(data.MakerToken, data.MakerTokenFilledAmount, data.TakerToken, data.TakerTokenFilledAmount, "")
	if err != nil {
		return model.Fill{}, err
	}
	protocolFee, err := model.ParseOptionalAmount(data.ProtocolFeePaid)
	if err != nil {
		return model.Fill{}, fmt.Errorf("protocol fee: %w", err)
	}
	takerFee, err := model.ParseOptionalAmount(data.TakerTokenFeeFilledAmount)
	if err != nil {
		return model.Fill{}, fmt.Errorf("taker token fee: %w", err)
	}

	fill := newFill(event, tx, model.FillTypeLimitOrderFilled)
	fill.Maker = model.NormalizeAddress(data.Maker)
	fill.Taker = model.NormalizeAddress(data.Taker)
	fill.FeeRecipient = model.NormalizeAddress(data.FeeRecipient)
	fill.OrderHash = data.OrderHash
	fill.Pool = data.Pool
	fill.ProtocolFee = protocolFee
	fill.Assets = assets
	if takerFee != nil && takerFee.IsPositive() {
		fill.Fees = append(fill.Fees, model.Fee{
			TraderType:   model.ActorTaker,
			TokenAddress: model.NormalizeAddress(data.TakerToken),
			TokenType:    model.TokenTypeERC20,
			Amount:       model.FeeAmount{Token: *takerFee},
		})
	}
	return fill, nil
}

type rfqOrderProcessor struct{ *base }

func (p *rfqOrderProcessor) Process(ctx context.Context, event model.Event) (Result, error) {
	return p.processSingle(ctx, event, buildRfqOrderFill)
}

func buildRfqOrderFill(event model.Event, tx model.Transaction) (model.Fill, error) {
	var data model.RfqOrderFilledData
	if err := event.DecodeData(&data); err != nil {
		return model.Fill{}, err
	}

	assets, err := twoSidedAssets(data.MakerToken, data.MakerTokenFilledAmount, data.TakerToken, data.TakerTokenFilledAmount, "")
	if err != nil {
		return model.Fill{}, err
	}

	fill := newFill(event, tx, model.FillTypeRfqOrderFilled)
	fill.Maker = model.NormalizeAddress(data.Maker)
	fill.Taker = model.NormalizeAddress(data.Taker)
	fill.OrderHash = data.OrderHash
	fill.Pool = data.Pool
	fill.Assets = assets
	return fill, nil
}

type liquidityProviderProcessor struct{ *base }

func (p *liquidityProviderProcessor) Process(ctx context.Context, event model.Event) (Result, error) {
	return p.processSingle(ctx, event, buildLiquidityProviderFill)
}

// buildLiquidityProviderFill treats the provider as maker: it receives the input token and
// pays out the output token.
func buildLiquidityProviderFill(event model.Event, tx model.Transaction) (model.Fill, error) {
	var data model.LiquidityProviderSwapData
	if err := event.DecodeData(&data); err != nil {
		return model.Fill{}, err
	}

	assets, err := twoSidedAssets(data.OutputToken, data.OutputTokenAmount, data.InputToken, data.InputTokenAmount, data.Provider)
	if err != nil {
		return model.Fill{}, err
	}

	fill := newFill(event, tx, model.FillTypeLiquidityProviderSwap)
	fill.Maker = model.NormalizeAddress(data.Provider)
	fill.Taker = model.NormalizeAddress(data.Recipient)
	fill.Assets = assets
	return fill, nil
}
